// Package observability provides logging, metrics, and tracing.
//
// It integrates with OpenTelemetry for system monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route, method, and status label.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	// HTTPRequestDuration records request durations by route and method.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	// QueueDepth is a gauge of eligible (unprocessed) rows per queue.
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Number of eligible (processed_at is null) queue entries",
		},
		[]string{"queue"},
	)
	// QueueFetchBatchSize records how many rows fetch_next actually returned.
	QueueFetchBatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queue_fetch_batch_size",
			Help:    "Number of entries returned per fetch_next call",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"queue"},
	)
	// QueueEnqueuedTotal counts enqueue calls by queue.
	QueueEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_enqueued_total",
			Help: "Total number of entries enqueued",
		},
		[]string{"queue"},
	)
	// QueueMarkedProcessedTotal counts mark_processed calls by queue.
	QueueMarkedProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_marked_processed_total",
			Help: "Total number of entries marked processed",
		},
		[]string{"queue"},
	)
	// QueueSweptTotal counts stuck leases reclaimed by the sweeper.
	QueueSweptTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_swept_total",
			Help: "Total number of stuck leases reclaimed by the sweeper",
		},
		[]string{"queue"},
	)

	// ProcessorDuration records the wall-clock time of one process() call.
	ProcessorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "processor_duration_seconds",
			Help:    "Duration of one transaction's full processor lifecycle",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"outcome"},
	)
	// ProcessorStageDuration records per-stage durations within process().
	ProcessorStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "processor_stage_duration_seconds",
			Help:    "Duration of a single processor lifecycle stage",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"stage"},
	)
	// ProcessorRetriesTotal counts retry attempts by reason.
	ProcessorRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processor_retries_total",
			Help: "Total number of processor retry attempts",
		},
		[]string{"reason"},
	)
	// ProcessorFailedTotal counts ids moved to the recalculation/failed queue.
	ProcessorFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processor_failed_total",
			Help: "Total number of transactions exhausting their retry budget",
		},
		[]string{},
	)

	// ScoringDuration records expression-evaluation wall time per channel.
	ScoringDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scoring_duration_seconds",
			Help:    "Duration of one Expression Scorer evaluation run",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"channel"},
	)
	// ScoringTotalScore records the total_score of completed scoring events.
	ScoringTotalScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scoring_total_score",
			Help:    "Distribution of ScoringEvent.total_score",
			Buckets: []float64{0, 5, 10, 20, 30, 50, 75, 100, 150, 200},
		},
		[]string{"channel"},
	)
	// ScoringRuleErrorsTotal counts per-rule evaluation errors that were
	// skipped rather than aborting the run.
	ScoringRuleErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoring_rule_errors_total",
			Help: "Total number of rule evaluation errors skipped during scoring",
		},
		[]string{"channel", "rule"},
	)

	// MatchNodeContentionRetries counts conflict-tolerant upsert retries on
	// the hot MatchNode (matcher, value) insert path (§5).
	MatchNodeContentionRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_node_contention_retries_total",
			Help: "Total number of insert-on-conflict retries during MatchNode upsert",
		},
		[]string{"matcher"},
	)
	// MatchNodeCacheHits counts the Redis read-through cache's hit/miss split.
	MatchNodeCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_node_cache_requests_total",
			Help: "Total number of MatchNode id cache lookups by result",
		},
		[]string{"result"},
	)
	// TraversalDepthReached records the max depth reached per traversal call.
	TraversalDepthReached = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "traversal_depth_reached",
			Help:    "Maximum depth reached by find_connected_transactions",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		},
		[]string{},
	)
)

// InitMetrics registers all Prometheus metrics with the default registry.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(QueueFetchBatchSize)
	prometheus.MustRegister(QueueEnqueuedTotal)
	prometheus.MustRegister(QueueMarkedProcessedTotal)
	prometheus.MustRegister(QueueSweptTotal)
	prometheus.MustRegister(ProcessorDuration)
	prometheus.MustRegister(ProcessorStageDuration)
	prometheus.MustRegister(ProcessorRetriesTotal)
	prometheus.MustRegister(ProcessorFailedTotal)
	prometheus.MustRegister(ScoringDuration)
	prometheus.MustRegister(ScoringTotalScore)
	prometheus.MustRegister(ScoringRuleErrorsTotal)
	prometheus.MustRegister(MatchNodeContentionRetries)
	prometheus.MustRegister(MatchNodeCacheHits)
	prometheus.MustRegister(TraversalDepthReached)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// ObserveProcessorStage records the duration of a single processor
// lifecycle stage (load, matching, traversal, features, scoring, commit).
func ObserveProcessorStage(stage string, d time.Duration) {
	ProcessorStageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveProcessorOutcome records the total duration of one process() call.
func ObserveProcessorOutcome(outcome string, d time.Duration) {
	ProcessorDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordRetry increments the retry counter for the given reason.
func RecordRetry(reason string) {
	ProcessorRetriesTotal.WithLabelValues(reason).Inc()
}

// RecordProcessorFailed increments the exhausted-retry-budget counter.
func RecordProcessorFailed() {
	ProcessorFailedTotal.WithLabelValues().Inc()
}

// ObserveScoring records the duration and total score of one scorer run.
func ObserveScoring(channel string, d time.Duration, totalScore int) {
	ScoringDuration.WithLabelValues(channel).Observe(d.Seconds())
	ScoringTotalScore.WithLabelValues(channel).Observe(float64(totalScore))
}

// RecordRuleError increments the skipped-rule-evaluation-error counter.
func RecordRuleError(channel, rule string) {
	ScoringRuleErrorsTotal.WithLabelValues(channel, rule).Inc()
}

// RecordMatchNodeContention increments the upsert-retry counter for a matcher.
func RecordMatchNodeContention(matcher string) {
	MatchNodeContentionRetries.WithLabelValues(matcher).Inc()
}

// RecordMatchNodeCacheResult increments the cache hit/miss counter.
func RecordMatchNodeCacheResult(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	MatchNodeCacheHits.WithLabelValues(result).Inc()
}

// RecordTraversalDepth records the max depth reached by a traversal call.
func RecordTraversalDepth(depth int) {
	TraversalDepthReached.WithLabelValues().Observe(float64(depth))
}

// SetQueueDepth sets the eligible-rows gauge for a queue.
func SetQueueDepth(queue string, depth int) {
	QueueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordQueueFetch observes the size of one fetched batch for queue.
func RecordQueueFetch(queue string, n int) {
	QueueFetchBatchSize.WithLabelValues(queue).Observe(float64(n))
}

// RecordQueueEnqueued increments the enqueue counter for a queue.
func RecordQueueEnqueued(queue string) { QueueEnqueuedTotal.WithLabelValues(queue).Inc() }

// RecordQueueMarkedProcessed increments the mark_processed counter for a queue.
func RecordQueueMarkedProcessed(queue string) { QueueMarkedProcessedTotal.WithLabelValues(queue).Inc() }

// RecordQueueSwept increments the sweeper-reclaim counter for a queue.
func RecordQueueSwept(queue string) { QueueSweptTotal.WithLabelValues(queue).Inc() }
