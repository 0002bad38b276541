// Package metrics holds the prometheus collectors shared across components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lookup results.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Generation attempt outcomes.
const (
	AttemptOK           = "ok"
	AttemptServiceError = "service_error"
	AttemptParseFailed  = "parse_failed"
)

var (
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookah_cache_lookups_total",
			Help: "Suggestion cache lookups by result",
		},
		[]string{"result"},
	)

	GenerationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookah_generation_attempts_total",
			Help: "Generation service attempts by outcome",
		},
		[]string{"outcome"},
	)

	GenerationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hookah_generation_failures_total",
			Help: "Generations that exhausted every attempt",
		},
	)

	RateLimitRejects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hookah_rate_limit_rejects_total",
			Help: "Suggestion requests rejected by the rate limiter",
		},
	)

	HistoryWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hookah_history_write_failures_total",
			Help: "History entries lost because the store write failed",
		},
	)

	// HTTP request metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookah_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hookah_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	PanicRecoveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hookah_panic_recoveries_total",
			Help: "Total number of panics recovered in HTTP handlers",
		},
	)
)
