package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-alert-notify/internal/models"
	"github.com/mr1hm/go-alert-notify/internal/notify/channels"
	"github.com/mr1hm/go-alert-notify/internal/observability"
)

// Broadcaster is the websocket side-channel. Every dispatched alert is
// broadcast to all connected clients, independent of per-subscriber filters.
type Broadcaster interface {
	Broadcast(alert *models.Alert, at time.Time) int
}

// Orchestrator walks the subscription set for each inbound alert, applies the
// eligibility filter, and fans out to the matching channel handler. Each
// subscription gets at most one delivery attempt per alert; failures are
// counted, never retried, and never abort the pass.
type Orchestrator struct {
	store    *Store
	filter   *Filter
	handlers map[models.ContactMethod]channels.Handler
	hub      Broadcaster
	stats    *Stats
	clock    clockwork.Clock
	metrics  *observability.Metrics

	// sendTimeout bounds every per-subscription channel call so one hung
	// endpoint cannot stall the rest of the pass.
	sendTimeout time.Duration
}

func NewOrchestrator(
	store *Store,
	filter *Filter,
	handlers map[models.ContactMethod]channels.Handler,
	hub Broadcaster,
	stats *Stats,
	clock clockwork.Clock,
	metrics *observability.Metrics,
	sendTimeout time.Duration,
) *Orchestrator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &Orchestrator{
		store:       store,
		filter:      filter,
		handlers:    handlers,
		hub:         hub,
		stats:       stats,
		clock:       clock,
		metrics:     metrics,
		sendTimeout: sendTimeout,
	}
}

// Dispatch evaluates every active subscription against the alert and returns
// the number of successful notifications. The clock is sampled once so all
// rate-limit and quiet-hour checks in the pass see the same instant.
func (o *Orchestrator) Dispatch(ctx context.Context, alert *models.Alert) int {
	now := o.clock.Now()
	start := time.Now()
	sent := 0

	for _, sub := range o.store.Active() {
		if o.notifyOne(ctx, sub, alert, now) {
			sent++
		}
	}

	// Websocket fan-out happens once per alert, unfiltered.
	if o.hub != nil {
		o.hub.Broadcast(alert, now)
	}

	if o.metrics != nil {
		o.metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	}

	slog.Info("alert dispatched",
		"alert_id", alert.ID,
		"disaster_type", alert.DisasterType,
		"notifications_sent", sent)
	return sent
}

func (o *Orchestrator) notifyOne(ctx context.Context, sub *models.Subscription, alert *models.Alert, now time.Time) bool {
	unlock := o.store.LockSubscription(sub.ID)
	defer unlock()

	if !o.filter.ShouldNotify(ctx, sub, alert, now) {
		return false
	}

	msg := FormatAlert(alert, sub.Language)
	msg.SubscriberID = sub.ID

	handler, ok := o.handlers[sub.ContactMethod]
	if !ok {
		// Websocket-method subscribers have no per-subscriber handler; they
		// are covered by the hub broadcast but count as a delivery failure
		// here, same as any other unroutable contact method.
		slog.Warn("no dispatcher for contact method", "subscriber_id", sub.ID, "method", sub.ContactMethod)
		o.stats.RecordFailed(string(sub.ContactMethod))
		return false
	}

	sendCtx, cancel := context.WithTimeout(ctx, o.sendTimeout)
	err := handler.Send(sendCtx, sub.ContactAddress, msg)
	cancel()

	if err != nil {
		slog.Warn("notification delivery failed",
			"subscriber_id", sub.ID,
			"channel", handler.Name(),
			"alert_id", alert.ID,
			"error", err)
		o.stats.RecordFailed(handler.Name())
		return false
	}

	sub.LastNotified = now.Unix()
	sub.NotificationCount++
	sub.HourlyCount++
	sub.HourlyWindowStart = now.Unix() / 3600
	if err := o.store.Persist(ctx, sub); err != nil {
		slog.Error("persisting subscription state failed", "subscriber_id", sub.ID, "error", err)
	}

	o.stats.RecordSent(handler.Name())
	return true
}
