package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Matching
	MatchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_requests_total",
			Help: "Match requests by mode (user, entity) and outcome",
		},
		[]string{"mode", "outcome"},
	)

	MatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "match_duration_seconds",
			Help:    "End-to-end duration of match requests, fetch included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	CandidatesExcluded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "match_candidates_excluded_total",
			Help: "Candidates dropped because their features could not be extracted",
		},
	)

	AnomaliesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "match_anomalies_dropped_total",
			Help: "Scores removed by the outlier filter",
		},
	)

	TrendingFlagged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "match_trending_flagged_total",
			Help: "Returned matches flagged as trending",
		},
	)

	// Cache
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_cache_requests_total",
			Help: "Redis cache lookups by cache and result (hit, miss)",
		},
		[]string{"cache", "result"},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Breaker state: 0 closed, 1 half-open, 2 open",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Calls through a breaker by result (success, failure, rejected)",
		},
		[]string{"name", "result"},
	)
)
