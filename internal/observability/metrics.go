package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for the notification service.
type Metrics struct {
	NotificationsSent   *prometheus.CounterVec // labels: channel
	NotificationsFailed *prometheus.CounterVec // labels: channel
	RateLimited         prometheus.Counter
	AlertsIngested      prometheus.Counter
	DispatchDuration    prometheus.Histogram
	ActiveSubscriptions prometheus.Gauge
	WebsocketClients    prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alert_notify",
			Name:      "notifications_sent_total",
			Help:      "Successful notification deliveries by channel.",
		}, []string{"channel"}),
		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alert_notify",
			Name:      "notifications_failed_total",
			Help:      "Failed notification deliveries by channel.",
		}, []string{"channel"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alert_notify",
			Name:      "rate_limited_total",
			Help:      "Subscriptions rejected by the hourly rate limit.",
		}),
		AlertsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alert_notify",
			Name:      "alerts_ingested_total",
			Help:      "Alerts accepted from the classification collaborator.",
		}),
		DispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "alert_notify",
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of a full dispatch pass over the subscription set.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ActiveSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "alert_notify",
			Name:      "active_subscriptions",
			Help:      "Number of subscriptions in the active working set.",
		}),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "alert_notify",
			Name:      "websocket_clients",
			Help:      "Currently connected websocket clients.",
		}),
	}
}

// NewMetrics creates and registers the service metrics on the default registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.NotificationsSent,
		m.NotificationsFailed,
		m.RateLimited,
		m.AlertsIngested,
		m.DispatchDuration,
		m.ActiveSubscriptions,
		m.WebsocketClients,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
