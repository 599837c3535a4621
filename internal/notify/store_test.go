package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/go-alert-notify/internal/models"
	"github.com/mr1hm/go-alert-notify/internal/observability"
)

type memorySubRepo struct {
	mu   sync.Mutex
	subs map[string]*models.Subscription
}

func newMemorySubRepo() *memorySubRepo {
	return &memorySubRepo{subs: make(map[string]*models.Subscription)}
}

func (m *memorySubRepo) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.subs[sub.ID] = &cp
	return nil
}

func (m *memorySubRepo) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs[id], nil
}

func (m *memorySubRepo) ListActiveSubscriptions(ctx context.Context) ([]*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Subscription
	for _, sub := range m.subs {
		if sub.IsActive {
			cp := *sub
			out = append(out, &cp)
		}
	}
	return out, nil
}

func newTestStore(t *testing.T) (*Store, *memorySubRepo) {
	t.Helper()
	repo := newMemorySubRepo()
	store := NewStore(repo, clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)),
		observability.NewMetricsForTesting())
	require.NoError(t, store.Load(context.Background()))
	return store, repo
}

func TestSubscribeAppliesDefaultsAndPreferences(t *testing.T) {
	store, repo := newTestStore(t)

	id, err := store.Subscribe(context.Background(), "Asha", models.ContactEmail, "asha@example.com",
		map[string]any{
			"city":           "Mumbai",
			"disaster_types": []any{"flood", "cyclone"},
			"max_per_hour":   float64(3),
			"min_urgency":    "high",
			"quiet_hours":    map[string]any{"start": "23:00", "end": "07:00"},
		})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	sub, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, "Mumbai", sub.City)
	assert.Equal(t, []string{"flood", "cyclone"}, sub.DisasterTypes)
	assert.Equal(t, 3, sub.MaxPerHour)
	assert.Equal(t, models.UrgencyHigh, sub.MinUrgency)
	require.NotNil(t, sub.QuietHours)
	assert.Equal(t, "23:00", sub.QuietHours.Start)

	// Untouched fields keep their defaults.
	assert.Equal(t, 100.0, sub.AlertRadiusKm)
	assert.Equal(t, 0.7, sub.MinConfidence)
	assert.True(t, sub.EmergencyOverride)
	assert.True(t, sub.IsActive)

	// The subscription is persisted, not just cached.
	persisted, err := repo.GetSubscription(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, "Mumbai", persisted.City)
}

func TestApplyPreferencesIgnoresUnknownAndInvalid(t *testing.T) {
	sub := models.NewSubscription("s", "n", models.ContactEmail, "a@b.c", time.Now())

	ApplyPreferences(sub, map[string]any{
		"favourite_color": "green",
		"min_confidence":  float64(7),
		"min_urgency":     "cosmic",
		"max_per_hour":    float64(-1),
		"alert_radius_km": "fifty",
	})

	assert.Equal(t, 0.7, sub.MinConfidence)
	assert.Equal(t, models.UrgencyMedium, sub.MinUrgency)
	assert.Equal(t, 10, sub.MaxPerHour)
	assert.Equal(t, 100.0, sub.AlertRadiusKm)
}

func TestUnsubscribeSoftDeletes(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	id, err := store.Subscribe(ctx, "Ben", models.ContactSMS, "+15551234567", nil)
	require.NoError(t, err)

	require.True(t, store.Unsubscribe(ctx, id))
	_, ok := store.Get(id)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Count())

	// The row survives with is_active cleared.
	persisted, err := repo.GetSubscription(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.False(t, persisted.IsActive)

	assert.False(t, store.Unsubscribe(ctx, id))
	assert.False(t, store.Unsubscribe(ctx, "never-existed"))
}

func TestLoadPopulatesFromRepository(t *testing.T) {
	repo := newMemorySubRepo()
	ctx := context.Background()

	active := models.NewSubscription("active", "Active", models.ContactEmail, "a@example.com", time.Now())
	inactive := models.NewSubscription("inactive", "Inactive", models.ContactEmail, "b@example.com", time.Now())
	inactive.IsActive = false
	require.NoError(t, repo.UpsertSubscription(ctx, active))
	require.NoError(t, repo.UpsertSubscription(ctx, inactive))

	store := NewStore(repo, clockwork.NewFakeClock(), observability.NewMetricsForTesting())
	require.NoError(t, store.Load(ctx))

	assert.Equal(t, 1, store.Count())
	_, ok := store.Get("active")
	assert.True(t, ok)
	_, ok = store.Get("inactive")
	assert.False(t, ok)
}

func TestActiveReturnsSnapshot(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, err := store.Subscribe(ctx, "First", models.ContactEmail, "1@example.com", nil)
	require.NoError(t, err)
	_, err = store.Subscribe(ctx, "Second", models.ContactEmail, "2@example.com", nil)
	require.NoError(t, err)

	subs := store.Active()
	require.Len(t, subs, 2)

	// Removing a subscriber does not disturb an already-taken snapshot.
	require.True(t, store.Unsubscribe(ctx, first))
	assert.Len(t, subs, 2)
	assert.Len(t, store.Active(), 1)
}

func TestLockSubscriptionSerializesWriters(t *testing.T) {
	store, _ := newTestStore(t)

	id, err := store.Subscribe(context.Background(), "Counter", models.ContactEmail, "c@example.com", nil)
	require.NoError(t, err)
	sub, ok := store.Get(id)
	require.True(t, ok)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := store.LockSubscription(id)
			sub.NotificationCount++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, sub.NotificationCount)
}
