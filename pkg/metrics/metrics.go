// Package metrics defines the Prometheus collectors for q-gram joins and
// exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for a process. Each Metrics owns
// its registry so that several can coexist in tests.
type Metrics struct {
	Registry           *prometheus.Registry
	QueriesTotal       *prometheus.CounterVec
	RecordsTotal       prometheus.Counter
	ScoreLatency       prometheus.Histogram
	MatchesPerQuery    prometheus.Histogram
	IndexBuildDuration prometheus.Histogram
	IndexGrams         prometheus.Gauge
	IndexReferences    prometheus.Gauge
	CacheHitsTotal     prometheus.Counter
	CacheMissesTotal   prometheus.Counter
	SinkFlushesTotal   *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qgjoin_queries_total",
				Help: "Queries scored by outcome (matched, no_match, too_short, error).",
			},
			[]string{"status"},
		),
		RecordsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "qgjoin_records_total",
				Help: "Match records emitted.",
			},
		),
		ScoreLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "qgjoin_score_latency_seconds",
				Help:    "Time to score a single query.",
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
		),
		MatchesPerQuery: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "qgjoin_matches_per_query",
				Help:    "Reference positions tied at the best streak per matched query.",
				Buckets: []float64{1, 2, 3, 5, 10, 25, 100},
			},
		),
		IndexBuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "qgjoin_index_build_seconds",
				Help:    "Reference index build time.",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
		),
		IndexGrams: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "qgjoin_index_distinct_grams",
				Help: "Distinct q-grams in the reference index.",
			},
		),
		IndexReferences: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "qgjoin_index_references",
				Help: "Reference strings in the index.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "qgjoin_cache_hits_total",
				Help: "Result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "qgjoin_cache_misses_total",
				Help: "Result cache misses.",
			},
		),
		SinkFlushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qgjoin_sink_flushes_total",
				Help: "Sink flushes by sink and status.",
			},
			[]string{"sink", "status"},
		),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.QueriesTotal,
		m.RecordsTotal,
		m.ScoreLatency,
		m.MatchesPerQuery,
		m.IndexBuildDuration,
		m.IndexGrams,
		m.IndexReferences,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.SinkFlushesTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
