package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nightwatch"

// Metrics owns a private registry and the engine's instruments.
// Every method is safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	cycles         *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	lastCycleFound prometheus.Gauge
	items          *prometheus.CounterVec
	releases       *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	searchErrors   *prometheus.CounterVec
}

// New creates and registers all collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Completed poll cycles by result.",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_duration_seconds",
			Help:      "Wall time of a poll cycle.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		lastCycleFound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_new_releases",
			Help:      "New releases found by the most recent cycle.",
		}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_processed_total",
			Help:      "Watched items processed by result.",
		}, []string{"result"}),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "releases_recorded_total",
			Help:      "Releases passed to the store, by outcome.",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications by kind and status.",
		}, []string{"kind", "status"}),
		searchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_errors_total",
			Help:      "Failed searches by strategy.",
		}, []string{"strategy"}),
	}

	reg.MustRegister(m.cycles, m.cycleDuration, m.lastCycleFound, m.items, m.releases, m.notifications, m.searchErrors)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveCycle records one finished cycle
func (m *Metrics) ObserveCycle(d time.Duration, found int, failed bool) {
	if m == nil {
		return
	}
	result := "ok"
	if failed {
		result = "failed"
	}
	m.cycles.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(d.Seconds())
	m.lastCycleFound.Set(float64(found))
}

// ItemProcessed records the outcome of one watched item
func (m *Metrics) ItemProcessed(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.items.WithLabelValues(result).Inc()
}

// ReleaseRecorded counts a store decision
func (m *Metrics) ReleaseRecorded(isNew bool) {
	if m == nil {
		return
	}
	outcome := "seen"
	if isNew {
		outcome = "new"
	}
	m.releases.WithLabelValues(outcome).Inc()
}

// Notification counts a notification by kind and status (sent, failed, dropped)
func (m *Metrics) Notification(kind, status string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, status).Inc()
}

// SearchFailed counts a failed search strategy (id or query)
func (m *Metrics) SearchFailed(strategy string) {
	if m == nil {
		return
	}
	m.searchErrors.WithLabelValues(strategy).Inc()
}
