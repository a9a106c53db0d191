package sheetstore

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the handler's Prometheus collectors on a private registry so
// several handlers can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Writes   *prometheus.CounterVec
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheetsync",
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Requests handled, by action and outcome.",
		}, []string{"action", "outcome"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sheetsync",
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Request handling latency by action.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		Writes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheetsync",
			Subsystem: "backend",
			Name:      "writes_total",
			Help:      "Accepted document writes by action.",
		}, []string{"action"}),
	}
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observe(action, outcome string, started time.Time) {
	if m == nil {
		return
	}
	action = actionLabel(action)
	m.Requests.WithLabelValues(action, outcome).Inc()
	m.Duration.WithLabelValues(action).Observe(time.Since(started).Seconds())
}

// actionLabel bounds the action label to the known actions.
func actionLabel(action string) string {
	switch action {
	case actionGet, actionSave, actionClear:
		return action
	default:
		return actionUnknown
	}
}

func (m *Metrics) write(action string) {
	if m == nil {
		return
	}
	m.Writes.WithLabelValues(action).Inc()
}
