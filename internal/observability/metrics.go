package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the API.
type Metrics struct {
	// HTTP metrics.
	Requests        *prometheus.CounterVec   // labels: route, status
	RequestDuration *prometheus.HistogramVec // labels: route

	// StoreErrors counts StoreError-kind failures seen by the breaker. labels: op
	StoreErrors *prometheus.CounterVec

	ActiveAlerts prometheus.Gauge

	// AlertEvents counts alert event publishes. labels: outcome={published,failed}
	AlertEvents *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Requests,
		m.RequestDuration,
		m.StoreErrors,
		m.ActiveAlerts,
		m.AlertEvents,
	)
	return m
}

// NewMetricsForTesting creates unregistered metrics so tests can build as
// many as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_api",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "weather_api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route"}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_api",
			Name:      "store_errors_total",
			Help:      "Storage failures by store operation.",
		}, []string{"op"}),
		ActiveAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_api",
			Name:      "active_alerts",
			Help:      "Alerts in effect across all cities at the last refresh.",
		}),
		AlertEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_api",
			Name:      "alert_events_total",
			Help:      "Alert events handed to the broker by outcome.",
		}, []string{"outcome"}),
	}
}
