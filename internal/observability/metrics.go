package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// alignment pipeline.
type Metrics struct {
	StormsProcessed *prometheus.CounterVec // labels: outcome={success,error}
	StormsRunning   prometheus.Gauge
	BinsProduced    prometheus.Counter

	// Alignment quality metrics.
	ScalarMisses  prometheus.Counter // bin/field pairs beyond tolerance
	ClampedPoints prometheus.Counter // midpoints pinned to a track endpoint

	// Event aggregation metrics.
	EventsMatched prometheus.Counter
	EventsDropped prometheus.Counter

	StormDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.StormsProcessed,
		m.StormsRunning,
		m.BinsProduced,
		m.ScalarMisses,
		m.ClampedPoints,
		m.EventsMatched,
		m.EventsDropped,
		m.StormDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		StormsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_align",
			Name:      "storms_processed_total",
			Help:      "Storms run through the pipeline, by outcome.",
		}, []string{"outcome"}),
		StormsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storm_align",
			Name:      "storms_running",
			Help:      "Storm pipelines currently in flight.",
		}),
		BinsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_align",
			Name:      "bins_produced_total",
			Help:      "Output rows produced across all storms.",
		}),
		ScalarMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_align",
			Name:      "scalar_misses_total",
			Help:      "Bin/field pairs with no scalar record within tolerance.",
		}),
		ClampedPoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_align",
			Name:      "clamped_points_total",
			Help:      "Bin midpoints outside the track span, clamped to an endpoint.",
		}),
		EventsMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_align",
			Name:      "events_matched_total",
			Help:      "Event records attributed to a bin.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_align",
			Name:      "events_dropped_total",
			Help:      "Event records outside every bin's window.",
		}),
		StormDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storm_align",
			Name:      "storm_duration_seconds",
			Help:      "Wall time to align one storm end to end.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}),
	}
}
