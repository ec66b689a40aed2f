// Package observability holds the Prometheus collectors shared by every component.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of ranking service calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream", "outcome"},
	)

	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rank_cache_results_total",
			Help: "Rank cache lookups by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)

	cacheOps = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Duration of Redis operations.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "result"},
	)

	workflowTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_transitions_total",
			Help: "Workflow events by type and result (applied, rejected, ignored).",
		},
		[]string{"event", "result"},
	)

	staleResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_stale_responses_total",
			Help: "Fetch completions discarded because a newer request superseded them.",
		},
		[]string{"target"},
	)

	searchQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unit_search_queries_total",
			Help: "Unit search queries by scope kind.",
		},
		[]string{"scope"},
	)

	searchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "unit_search_results",
			Help:    "Number of units returned per search.",
			Buckets: []float64{0, 1, 2, 5, 10},
		},
	)

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "workflow_sessions_active",
			Help: "Workflow sessions currently held in memory.",
		},
	)

	sessionsEvicted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "workflow_sessions_evicted_total",
			Help: "Sessions removed by the registry, by capacity or explicit delete.",
		},
	)

	invalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rank_cache_invalidations_total",
			Help: "Ranking data republish events by barrier kind and result.",
		},
		[]string{"barrier_kind", "result"},
	)

	kafkaConsumerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_errors_total",
			Help: "Errors seen by the invalidation consumer.",
		},
		[]string{"kind"},
	)

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_events_total",
			Help: "Workflow analytics events by outcome (queued, dropped, failed).",
		},
		[]string{"outcome"},
	)
)

// Collectors lists every collector of this package for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDurationSeconds,
		upstreamLatencySeconds,
		cacheResults,
		cacheOps,
		workflowTransitions,
		staleResponses,
		searchQueries,
		searchResults,
		sessionsActive,
		sessionsEvicted,
		invalidations,
		kafkaConsumerErrors,
		eventsPublished,
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, err error, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream, result(err)).Observe(durationSeconds)
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	cacheOps.WithLabelValues(op, result(err)).Observe(durationSeconds)
}

func AddCacheHits(tier string, n int) {
	if n > 0 {
		cacheResults.WithLabelValues(tier, "hit").Add(float64(n))
	}
}

func AddCacheMisses(tier string, n int) {
	if n > 0 {
		cacheResults.WithLabelValues(tier, "miss").Add(float64(n))
	}
}

func IncTransition(event, outcome string) {
	workflowTransitions.WithLabelValues(event, outcome).Inc()
}

func IncStaleResponse(target string) {
	staleResponses.WithLabelValues(target).Inc()
}

func ObserveSearch(scope string, n int) {
	searchQueries.WithLabelValues(scope).Inc()
	searchResults.Observe(float64(n))
}

func SetActiveSessions(n int) {
	sessionsActive.Set(float64(n))
}

func IncSessionEvicted() {
	sessionsEvicted.Inc()
}

func IncInvalidation(kind, outcome string) {
	invalidations.WithLabelValues(kind, outcome).Inc()
}

func IncKafkaConsumerError(kind string) {
	kafkaConsumerErrors.WithLabelValues(kind).Inc()
}

func IncEvent(outcome string) {
	eventsPublished.WithLabelValues(outcome).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
