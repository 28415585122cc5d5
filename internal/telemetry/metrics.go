package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the daemon's Prometheus collectors, grounded in
// muqo16-vg-hitbot's pkg/metrics collector shape.
type Metrics struct {
	Registry *prometheus.Registry

	SessionsCreated  prometheus.Counter
	SessionsBound    prometheus.Counter
	SessionsUnbound  prometheus.Counter
	SessionsDeleted  prometheus.Counter
	DebounceFlushes  prometheus.Histogram
	OpenWindowsGauge prometheus.Gauge
}

// NewMetrics builds and registers the daemon's metric set plus any extra
// collectors (e.g. the registry's own gauges) supplied by the caller.
func NewMetrics(extra ...prometheus.Collector) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spacekeeper", Name: "sessions_created_total",
			Help: "Total number of sessions created (temporary or durable).",
		}),
		SessionsBound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spacekeeper", Name: "sessions_bound_total",
			Help: "Total number of window-to-session bind operations.",
		}),
		SessionsUnbound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spacekeeper", Name: "sessions_unbound_total",
			Help: "Total number of window-close unbind operations.",
		}),
		SessionsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spacekeeper", Name: "sessions_deleted_total",
			Help: "Total number of sessions deleted.",
		}),
		DebounceFlushes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spacekeeper", Name: "debounce_flush_seconds",
			Help:    "Time between a window event being enqueued and its debounced flush running.",
			Buckets: prometheus.DefBuckets,
		}),
		OpenWindowsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spacekeeper", Name: "open_windows",
			Help: "Number of sessions currently bound to a live window.",
		}),
	}

	reg.MustRegister(
		m.SessionsCreated, m.SessionsBound, m.SessionsUnbound,
		m.SessionsDeleted, m.DebounceFlushes, m.OpenWindowsGauge,
	)
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return m
}

// Handler returns the HTTP handler serving this registry's metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
