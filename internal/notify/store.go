package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-alert-notify/internal/models"
	"github.com/mr1hm/go-alert-notify/internal/observability"
	"github.com/mr1hm/go-alert-notify/internal/repository"
)

// Store owns the in-memory active subscription set and its persistence.
// Mutations go through the repository before the in-memory set is updated,
// so a crash never loses an acknowledged subscribe/unsubscribe.
//
// Iteration order over the active set is insertion order.
type Store struct {
	repo    repository.SubscriptionRepository
	clock   clockwork.Clock
	metrics *observability.Metrics

	mu    sync.Mutex
	subs  map[string]*models.Subscription
	order []string
	locks map[string]*sync.Mutex
}

func NewStore(repo repository.SubscriptionRepository, clock clockwork.Clock, metrics *observability.Metrics) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		repo:    repo,
		clock:   clock,
		metrics: metrics,
		subs:    make(map[string]*models.Subscription),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Load reads persisted active subscriptions into the working set.
func (s *Store) Load(ctx context.Context) error {
	subs, err := s.repo.ListActiveSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("load subscriptions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range subs {
		if _, exists := s.subs[sub.ID]; exists {
			continue
		}
		s.subs[sub.ID] = sub
		s.order = append(s.order, sub.ID)
		s.locks[sub.ID] = &sync.Mutex{}
	}
	s.updateGaugeLocked()

	slog.Info("subscriptions loaded", "count", len(s.subs))
	return nil
}

// Subscribe creates a new subscription, applies preferences as a sparse
// override, persists it, and returns the new id.
func (s *Store) Subscribe(ctx context.Context, name string, method models.ContactMethod, address string, prefs map[string]any) (string, error) {
	if !method.Valid() {
		return "", fmt.Errorf("unknown contact method %q", method)
	}
	if address == "" {
		return "", fmt.Errorf("contact address is required")
	}

	sub := models.NewSubscription(uuid.NewString(), name, method, address, s.clock.Now())
	ApplyPreferences(sub, prefs)

	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return "", fmt.Errorf("persist subscription: %w", err)
	}

	s.mu.Lock()
	s.subs[sub.ID] = sub
	s.order = append(s.order, sub.ID)
	s.locks[sub.ID] = &sync.Mutex{}
	s.updateGaugeLocked()
	s.mu.Unlock()

	slog.Info("subscription added", "subscriber_id", sub.ID, "name", name, "method", method)
	return sub.ID, nil
}

// Unsubscribe soft-deletes: the record is marked inactive and persisted for
// audit, then evicted from the working set. Returns false for unknown ids.
func (s *Store) Unsubscribe(ctx context.Context, id string) bool {
	s.mu.Lock()
	sub, ok := s.subs[id]
	s.mu.Unlock()
	if !ok {
		return false
	}

	lock := s.lockFor(id)
	lock.Lock()
	sub.IsActive = false
	lock.Unlock()

	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		slog.Error("persisting unsubscribe failed", "subscriber_id", id, "error", err)
	}

	s.mu.Lock()
	delete(s.subs, id)
	delete(s.locks, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.updateGaugeLocked()
	s.mu.Unlock()

	slog.Info("subscription removed", "subscriber_id", id)
	return true
}

// Active returns the working set in insertion order.
func (s *Store) Active() []*models.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Subscription, 0, len(s.order))
	for _, id := range s.order {
		if sub, ok := s.subs[id]; ok {
			out = append(out, sub)
		}
	}
	return out
}

// Get returns the subscription with the given id, if active.
func (s *Store) Get(id string) (*models.Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	return sub, ok
}

// Count returns the size of the active working set.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Persist writes the subscription's current state through to storage.
func (s *Store) Persist(ctx context.Context, sub *models.Subscription) error {
	return s.repo.UpsertSubscription(ctx, sub)
}

// LockSubscription takes the per-subscription mutex, serializing counter
// mutation across concurrent dispatch passes (single-writer rule). The
// returned func releases it.
func (s *Store) LockSubscription(id string) func() {
	lock := s.lockFor(id)
	lock.Lock()
	return lock.Unlock
}

func (s *Store) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func (s *Store) updateGaugeLocked() {
	if s.metrics != nil {
		s.metrics.ActiveSubscriptions.Set(float64(len(s.subs)))
	}
}

// ApplyPreferences overlays a sparse preference map onto a subscription.
// Only known field names are applied; unknown keys and uncoercible values
// are ignored silently, matching the lenient API contract.
func ApplyPreferences(sub *models.Subscription, prefs map[string]any) {
	for key, value := range prefs {
		switch key {
		case "latitude":
			if f, ok := toFloat(value); ok {
				sub.Latitude = &f
			}
		case "longitude":
			if f, ok := toFloat(value); ok {
				sub.Longitude = &f
			}
		case "alert_radius_km":
			if f, ok := toFloat(value); ok && f > 0 {
				sub.AlertRadiusKm = f
			}
		case "city":
			if s, ok := value.(string); ok {
				sub.City = s
			}
		case "state":
			if s, ok := value.(string); ok {
				sub.State = s
			}
		case "country":
			if s, ok := value.(string); ok {
				sub.Country = s
			}
		case "disaster_types":
			if list, ok := toStringSlice(value); ok {
				sub.DisasterTypes = list
			}
		case "regions":
			if list, ok := toStringSlice(value); ok {
				sub.Regions = list
			}
		case "countries":
			if list, ok := toStringSlice(value); ok {
				sub.Countries = list
			}
		case "min_confidence":
			if f, ok := toFloat(value); ok && f >= 0 && f <= 1 {
				sub.MinConfidence = f
			}
		case "min_urgency":
			if s, ok := value.(string); ok && models.UrgencyLevel(s).Rank() >= 0 {
				sub.MinUrgency = models.UrgencyLevel(s)
			}
		case "alert_levels":
			if list, ok := toStringSlice(value); ok {
				sub.AlertLevels = list
			}
		case "max_per_hour":
			if f, ok := toFloat(value); ok && f > 0 {
				sub.MaxPerHour = int(f)
			}
		case "quiet_hours":
			if m, ok := value.(map[string]any); ok {
				qh := &models.QuietHours{}
				if s, ok := m["start"].(string); ok {
					qh.Start = s
				}
				if s, ok := m["end"].(string); ok {
					qh.End = s
				}
				sub.QuietHours = qh
			}
		case "language":
			if s, ok := value.(string); ok && s != "" {
				sub.Language = s
			}
		case "emergency_override":
			if b, ok := value.(bool); ok {
				sub.EmergencyOverride = b
			}
		}
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toStringSlice(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
