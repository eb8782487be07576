// Package metrics exposes run and query counters in the Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one process. Each instance owns its own
// registry.
type Metrics struct {
	registry *prometheus.Registry

	Runs        *prometheus.CounterVec
	RunDuration prometheus.Histogram
	Documents   *prometheus.GaugeVec
	Issues      *prometheus.GaugeVec
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	Queries     *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archgraph",
			Name:      "runs_total",
			Help:      "Index runs by outcome (ok, failed, fatal).",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "archgraph",
			Name:      "run_duration_seconds",
			Help:      "Wall time of an index run.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		Documents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "archgraph",
			Name:      "documents",
			Help:      "Documents parsed in the last run by kind.",
		}, []string{"kind"}),
		Issues: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "archgraph",
			Name:      "issues",
			Help:      "Issues reported by the last run by kind and severity.",
		}, []string{"kind", "severity"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "archgraph",
			Name:      "parse_cache_hits_total",
			Help:      "Parses served from the content-hash cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "archgraph",
			Name:      "parse_cache_misses_total",
			Help:      "Parses that scanned the document.",
		}),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archgraph",
			Name:      "queries_total",
			Help:      "Index queries by surface and record type.",
		}, []string{"surface", "record"}),
	}
	m.registry.MustRegister(m.Runs, m.RunDuration, m.Documents, m.Issues, m.CacheHits, m.CacheMisses, m.Queries)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun records the outcome and duration of one run.
func (m *Metrics) ObserveRun(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(d.Seconds())
}

// Query counts one lookup.
func (m *Metrics) Query(surface, record string) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(surface, record).Inc()
}
