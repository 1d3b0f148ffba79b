package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search, session and cache Prometheus metrics.
var (
	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Restaurant search duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	SearchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of matches per search before the top-K cut",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	FallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keyword_fallback_total",
			Help:      "Requests served by keyword-only extraction",
		},
		[]string{"reason"}, // "unavailable" / "error"
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently held in memory",
		},
	)

	SessionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_expired_total",
			Help:      "Sessions removed by the expiry sweep",
		},
	)

	SessionCommitConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_commit_conflicts_total",
			Help:      "Session commits rejected with a stale version",
		},
	)

	GeocodeCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocode cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers search, session and cache metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchResults)
	prometheus.MustRegister(FallbackTotal)
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(SessionsExpiredTotal)
	prometheus.MustRegister(SessionCommitConflictsTotal)
	prometheus.MustRegister(GeocodeCacheTotal)
	searchMetricsRegistered = true
}
