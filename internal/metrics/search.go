package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Search and index Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search requests by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search latency in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		},
		[]string{"mode"},
	)

	SearchResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Total matches per search",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
		},
		[]string{"mode"},
	)

	IndexEntities = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_entities",
			Help:      "Indexed entities by embedding state",
		},
		[]string{"state"}, // "total" / "embedded" / "stale"
	)

	IndexConsistencyViolations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_consistency_violations_total",
			Help:      "Index entries found referencing deleted entities",
		},
	)
)

var searchOnce sync.Once

// RegisterSearchMetrics registers search and index metrics. Safe to call more than once.
func RegisterSearchMetrics() {
	searchOnce.Do(func() {
		prometheus.MustRegister(
			SearchRequestsTotal,
			SearchDuration,
			SearchResults,
			IndexEntities,
			IndexConsistencyViolations,
		)
	})
}
