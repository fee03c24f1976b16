// Package metrics provides Prometheus metrics for the kestrel intent analysis service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// defaultRefreshInterval is how often gauge metrics are refreshed by the
// background updater.
const defaultRefreshInterval = 10 * time.Second

// scoreBuckets covers the 0-100 intent risk scale.
var scoreBuckets = []float64{5, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100} //nolint:gochecknoglobals // shared bucket layout

// Manager owns all Prometheus collectors for the kestrel service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Ingest metrics.
	batchesIngested  prometheus.Counter
	batchesDuplicate prometheus.Counter
	batchesRejected  prometheus.Counter
	framesMalformed  prometheus.Counter

	// Engine metrics.
	framesProcessed  prometheus.Counter
	observations     prometheus.Counter
	riskResults      *prometheus.CounterVec
	riskScores       prometheus.Histogram
	behaviorEvents   *prometheus.CounterVec
	cycleLatency     prometheus.Histogram
	subjectsTracked  prometheus.Gauge
	subjectsEvicted  prometheus.Counter
	feedTrust        *prometheus.GaugeVec
	suspiciousFeeds  prometheus.Gauge
	suspiciousTotal  prometheus.Counter
	streamResets     prometheus.Counter

	// Queue metrics.
	queueDepth       prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueShardDepth  *prometheus.GaugeVec
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueRejections  prometheus.Counter

	// Worker metrics.
	workerActive  prometheus.Gauge
	workerLatency prometheus.Histogram
	workerErrors  prometheus.Counter

	// Risk board metrics.
	boardSubjects      prometheus.Gauge
	boardUpdateLatency prometheus.Histogram
	boardQueryLatency  prometheus.Histogram

	// HTTP metrics.
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// WebSocket metrics.
	wsClients      prometheus.Gauge
	wsMessagesSent prometheus.Counter
	wsDropped      prometheus.Counter

	// Error metrics.
	errorsByComponent *prometheus.CounterVec

	// System performance metrics.
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "kestrel",
		subsystem:        "intent",
		histogramBuckets: prometheus.DefBuckets,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// RefreshInterval reports how often gauge metrics should be refreshed.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// initializeMetrics creates all the Prometheus collectors.
func (m *Manager) initializeMetrics() { //nolint:funlen // registration of the full metric set
	auto := promauto.With(m.registry)

	m.batchesIngested = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batches_ingested_total",
		Help:      "Total number of observation batches accepted for processing",
	})

	m.batchesDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batches_duplicate_total",
		Help:      "Total number of duplicate observation batches acknowledged without reprocessing",
	})

	m.batchesRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batches_rejected_total",
		Help:      "Total number of batches rejected due to backpressure",
	})

	m.framesMalformed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_malformed_total",
		Help:      "Total number of frame buffers rejected as malformed (trust carried forward)",
	})

	m.framesProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_processed_total",
		Help:      "Total number of frame cycles run through the fusion engine",
	})

	m.observations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "observations_processed_total",
		Help:      "Total number of subject observations scored",
	})

	m.riskResults = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "risk_results_total",
			Help:      "Total number of intent risk results by alert level",
		},
		[]string{"level"},
	)

	m.riskScores = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "risk_score",
		Help:      "Distribution of emitted intent risk scores",
		Buckets:   scoreBuckets,
	})

	m.behaviorEvents = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "behavior_events_total",
			Help:      "Total number of detected behavior events by pattern kind",
		},
		[]string{"pattern"},
	)

	m.cycleLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cycle_latency_milliseconds",
		Help:      "Histogram of per-frame fusion cycle latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.subjectsTracked = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "subjects_tracked",
		Help:      "Current number of tracked subjects across all streams",
	})

	m.subjectsEvicted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "subjects_evicted_total",
		Help:      "Total number of subjects evicted after absence timeout",
	})

	m.feedTrust = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "feed_trust_score",
			Help:      "Current camera trust score per stream",
		},
		[]string{"stream_id"},
	)

	m.suspiciousFeeds = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "suspicious_feeds",
		Help:      "Number of streams currently flagged as suspicious",
	})

	m.suspiciousTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "suspicious_transitions_total",
		Help:      "Total number of trusted-to-suspicious feed transitions",
	})

	m.streamResets = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_resets_total",
		Help:      "Total number of stream state resets requested by operators",
	})

	m.queueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_depth",
		Help:      "Current number of batches waiting across all shards",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Maximum queue capacity across all shards",
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_utilization_ratio",
		Help:      "Queue utilization ratio (depth / capacity)",
	})

	m.queueShardDepth = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "queue_shard_depth",
			Help:      "Current number of batches waiting per shard",
		},
		[]string{"shard"},
	)

	m.queueEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_total",
		Help:      "Total number of batches enqueued",
	})

	m.queueDequeued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dequeue_total",
		Help:      "Total number of batches dequeued",
	})

	m.queueRejections = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_errors_total",
		Help:      "Total number of enqueue attempts rejected by a full shard",
	})

	m.workerActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_active_count",
		Help:      "Number of running shard workers",
	})

	m.workerLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_processing_latency_milliseconds",
		Help:      "Worker batch processing latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Total number of worker processing errors",
	})

	m.boardSubjects = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "board_subjects",
		Help:      "Current number of entries on the risk board",
	})

	m.boardUpdateLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "board_update_latency_milliseconds",
		Help:      "Risk board update latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.boardQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "board_query_latency_milliseconds",
		Help:      "Risk board query latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint, method and status",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.wsClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ws_clients",
		Help:      "Number of connected WebSocket consumers",
	})

	m.wsMessagesSent = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ws_messages_sent_total",
		Help:      "Total number of WebSocket messages broadcast to consumers",
	})

	m.wsDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ws_messages_dropped_total",
		Help:      "Total number of WebSocket messages dropped on slow consumers",
	})

	m.errorsByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component and type",
		},
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordBatchIngested increments the accepted batch counter.
func RecordBatchIngested() { globalManager.batchesIngested.Inc() }

// RecordBatchDuplicate increments the duplicate batch counter.
func RecordBatchDuplicate() { globalManager.batchesDuplicate.Inc() }

// RecordBatchRejected increments the backpressure rejection counter.
func RecordBatchRejected() { globalManager.batchesRejected.Inc() }

// RecordFrameMalformed increments the malformed frame counter.
func RecordFrameMalformed() { globalManager.framesMalformed.Inc() }

// RecordFrameProcessed increments the processed frame cycle counter.
func RecordFrameProcessed() { globalManager.framesProcessed.Inc() }

// RecordObservations adds to the scored observation counter.
func RecordObservations(n int) { globalManager.observations.Add(float64(n)) }

// RecordRiskResult counts one emitted result at the given alert level.
func RecordRiskResult(level string) { globalManager.riskResults.WithLabelValues(level).Inc() }

// RecordRiskScore records an emitted score in the distribution.
func RecordRiskScore(score float64) { globalManager.riskScores.Observe(score) }

// RecordBehaviorEvent counts one detected behavior event by pattern kind.
func RecordBehaviorEvent(pattern string) { globalManager.behaviorEvents.WithLabelValues(pattern).Inc() }

// RecordCycleLatency records a fusion cycle latency in milliseconds.
func RecordCycleLatency(latencyMs float64) { globalManager.cycleLatency.Observe(latencyMs) }

// UpdateSubjectsTracked sets the current tracked subject count.
func UpdateSubjectsTracked(count int) { globalManager.subjectsTracked.Set(float64(count)) }

// RecordSubjectEvicted counts evicted subjects.
func RecordSubjectEvicted(n int) { globalManager.subjectsEvicted.Add(float64(n)) }

// UpdateFeedTrust sets the trust score gauge for a stream.
func UpdateFeedTrust(streamID string, score float64) {
	globalManager.feedTrust.WithLabelValues(streamID).Set(score)
}

// UpdateSuspiciousFeeds sets the number of currently suspicious streams.
func UpdateSuspiciousFeeds(count int) { globalManager.suspiciousFeeds.Set(float64(count)) }

// RecordSuspiciousTransition counts a trusted-to-suspicious transition.
func RecordSuspiciousTransition() { globalManager.suspiciousTotal.Inc() }

// RecordStreamReset counts an operator reset.
func RecordStreamReset() { globalManager.streamResets.Inc() }

// UpdateQueueDepth sets the total queued batch count.
func UpdateQueueDepth(depth int) { globalManager.queueDepth.Set(float64(depth)) }

// UpdateQueueCapacity sets the total queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(ratio float64) { globalManager.queueUtilization.Set(ratio) }

// UpdateQueueShardDepth sets the queued batch count for one shard.
func UpdateQueueShardDepth(shard string, depth int) {
	globalManager.queueShardDepth.WithLabelValues(shard).Set(float64(depth))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueRejection increments the full-shard rejection counter.
func RecordQueueRejection() { globalManager.queueRejections.Inc() }

// UpdateWorkerActiveCount sets the number of running shard workers.
func UpdateWorkerActiveCount(count int) { globalManager.workerActive.Set(float64(count)) }

// RecordWorkerProcessingLatency records worker batch latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// UpdateBoardSubjects sets the current risk board entry count.
func UpdateBoardSubjects(count int) { globalManager.boardSubjects.Set(float64(count)) }

// RecordBoardUpdateLatency records a risk board write latency in milliseconds.
func RecordBoardUpdateLatency(latencyMs float64) {
	globalManager.boardUpdateLatency.Observe(latencyMs)
}

// RecordBoardQueryLatency records a risk board read latency in milliseconds.
func RecordBoardQueryLatency(latencyMs float64) {
	globalManager.boardQueryLatency.Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// UpdateWSClients sets the connected WebSocket consumer count.
func UpdateWSClients(count int) { globalManager.wsClients.Set(float64(count)) }

// RecordWSMessageSent increments the broadcast message counter.
func RecordWSMessageSent() { globalManager.wsMessagesSent.Inc() }

// RecordWSMessageDropped increments the slow-consumer drop counter.
func RecordWSMessageDropped() { globalManager.wsDropped.Inc() }

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
