package intake

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mr1hm/go-alert-notify/internal/models"
	"github.com/mr1hm/go-alert-notify/internal/repository"
	"github.com/mr1hm/go-alert-notify/internal/worker"
)

// Dispatcher fans one alert out to eligible subscribers and reports how
// many notifications were sent.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert *models.Alert) int
}

type Options struct {
	PollInterval  time.Duration
	MinConfidence float64
	BatchLimit    int
	Workers       int
	BufferSize    int
}

func (o *Options) withDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 30 * time.Second
	}
	if o.BatchLimit <= 0 {
		o.BatchLimit = 50
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 100
	}
}

// Manager drains pending alerts from the repository and fans them out
// through the dispatcher. Alerts pushed over the API are enqueued directly;
// the poller picks up anything written to storage out of band.
type Manager struct {
	opts       Options
	alerts     repository.AlertRepository
	dispatcher Dispatcher
	pool       *worker.Pool
	wg         sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewManager(opts Options, alerts repository.AlertRepository, dispatcher Dispatcher) *Manager {
	opts.withDefaults()
	return &Manager{
		opts:       opts,
		alerts:     alerts,
		dispatcher: dispatcher,
		inflight:   make(map[string]struct{}),
	}
}

func (m *Manager) Start(ctx context.Context) {
	m.pool = worker.NewPool(m.opts.Workers, m.opts.BufferSize, m.dispatchOne)
	m.pool.Start(ctx)

	m.wg.Add(1)
	go m.runPoller(ctx)
}

func (m *Manager) dispatchOne(ctx context.Context, alert *models.Alert) error {
	defer m.release(alert.ID)

	sent := m.dispatcher.Dispatch(ctx, alert)

	if _, err := m.alerts.MarkNotified(ctx, []string{alert.ID}); err != nil {
		slog.Error("error marking alert notified", "alert_id", alert.ID, "error", err)
		return err
	}

	slog.Info("alert processed", "alert_id", alert.ID, "type", alert.DisasterType, "sent", sent)
	return nil
}

// Enqueue hands an alert straight to the dispatch pool, skipping the next
// poll cycle. Returns false if the alert is already queued or the pool is
// saturated; either way the poller will retry it while it stays pending.
func (m *Manager) Enqueue(alert *models.Alert) bool {
	if !m.claim(alert.ID) {
		return false
	}
	if !m.pool.TrySubmit(alert) {
		m.release(alert.ID)
		return false
	}
	return true
}

func (m *Manager) runPoller(ctx context.Context) {
	defer m.wg.Done()
	slog.Info("starting alert poller", "interval", m.opts.PollInterval)

	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	m.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("alert poller shutting down")
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Manager) poll(ctx context.Context) {
	pending, err := m.alerts.ListPendingAlerts(ctx, m.opts.MinConfidence, m.opts.BatchLimit)
	if err != nil {
		slog.Error("error listing pending alerts", "error", err)
		return
	}

	queued := 0
	for _, alert := range pending {
		if !m.claim(alert.ID) {
			continue
		}
		if !m.pool.TrySubmit(alert) {
			m.release(alert.ID)
			break
		}
		queued++
	}

	if queued > 0 {
		slog.Debug("poll complete", "pending", len(pending), "queued", queued)
	}
}

func (m *Manager) claim(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inflight[id]; ok {
		return false
	}
	m.inflight[id] = struct{}{}
	return true
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	delete(m.inflight, id)
	m.mu.Unlock()
}

func (m *Manager) Stop() {
	m.wg.Wait()
	m.pool.Stop()
	slog.Info("intake manager stopped")
}
