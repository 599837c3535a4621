package notify

import (
	"sync"

	"github.com/mr1hm/go-alert-notify/internal/observability"
)

// Stats is the injected, thread-safe counter object owned by the orchestrator.
// It mirrors every increment into Prometheus when metrics are attached, and
// stays snapshotable for the stats API.
type Stats struct {
	mu          sync.Mutex
	totalSent   int64
	failed      int64
	rateLimited int64
	byChannel   map[string]int64

	metrics *observability.Metrics
}

// Snapshot is a point-in-time copy of the notification counters.
type Snapshot struct {
	TotalSent   int64            `json:"total_sent"`
	Failed      int64            `json:"failed"`
	RateLimited int64            `json:"rate_limited"`
	ByChannel   map[string]int64 `json:"by_channel"`
}

func NewStats(metrics *observability.Metrics) *Stats {
	return &Stats{
		byChannel: make(map[string]int64),
		metrics:   metrics,
	}
}

func (s *Stats) RecordSent(channel string) {
	s.mu.Lock()
	s.totalSent++
	s.byChannel[channel]++
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.NotificationsSent.WithLabelValues(channel).Inc()
	}
}

func (s *Stats) RecordFailed(channel string) {
	s.mu.Lock()
	s.failed++
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.NotificationsFailed.WithLabelValues(channel).Inc()
	}
}

func (s *Stats) RecordRateLimited() {
	s.mu.Lock()
	s.rateLimited++
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RateLimited.Inc()
	}
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	byChannel := make(map[string]int64, len(s.byChannel))
	for k, v := range s.byChannel {
		byChannel[k] = v
	}
	return Snapshot{
		TotalSent:   s.totalSent,
		Failed:      s.failed,
		RateLimited: s.rateLimited,
		ByChannel:   byChannel,
	}
}
