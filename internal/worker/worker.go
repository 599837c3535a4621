package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mr1hm/go-alert-notify/internal/models"
)

// DispatchFunc processes one alert end to end. Errors are logged, not
// retried; a failed dispatch is reflected in the notification stats.
type DispatchFunc func(ctx context.Context, alert *models.Alert) error

// Pool fans alert dispatches out over a fixed set of workers. Alerts for
// different subscribers are independent, so ordering across workers does
// not matter.
type Pool struct {
	numWorkers int
	alerts     chan *models.Alert
	dispatch   DispatchFunc
	wg         sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func NewPool(numWorkers, bufferSize int, dispatch DispatchFunc) *Pool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &Pool{
		numWorkers: numWorkers,
		alerts:     make(chan *models.Alert, bufferSize),
		dispatch:   dispatch,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 1; i <= p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case alert, ok := <-p.alerts:
			if !ok {
				return
			}
			if err := p.dispatch(ctx, alert); err != nil {
				slog.Error("alert dispatch failed",
					"worker_id", id,
					"alert_id", alert.ID,
					"error", err)
			}
		}
	}
}

// Submit blocks until the alert is queued or the queue is closed.
func (p *Pool) Submit(alert *models.Alert) {
	p.alerts <- alert
}

// TrySubmit queues the alert without blocking. It reports false when the
// buffer is full or the pool has stopped, letting the caller leave the
// alert pending for the next poll instead of stalling intake.
func (p *Pool) TrySubmit(alert *models.Alert) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}
	select {
	case p.alerts <- alert:
		return true
	default:
		return false
	}
}

// Stop closes the queue and waits for in-flight dispatches to finish.
// The write lock cannot be taken while a TrySubmit send is in progress,
// so the close never races a send. Safe to call more than once.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.alerts)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
