package engine

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors of the match engine.
type Metrics struct {
	matches        *prometheus.CounterVec
	duration       prometheus.Histogram
	candidates     prometheus.Histogram
	bundleTimeouts prometheus.Counter
}

// NewMetrics creates the engine collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		matches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeline_matches_total",
				Help: "Total number of match runs by outcome",
			},
			[]string{"status"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tradeline_match_duration_seconds",
				Help:    "Match run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		candidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tradeline_match_candidates",
				Help:    "Number of candidate tradelines per match run",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		bundleTimeouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tradeline_bundle_search_timeouts_total",
				Help: "Number of bundle searches cut short by the timeout",
			},
		),
	}

	reg.MustRegister(m.matches, m.duration, m.candidates, m.bundleTimeouts)
	return m
}
