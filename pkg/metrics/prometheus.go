// Package metrics provides Prometheus metrics for the workpulse activity coordinator.
package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the workpulse service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Ingestion
	eventsAccepted   *prometheus.CounterVec
	eventsSuppressed *prometheus.CounterVec
	eventsDuplicate  prometheus.Counter

	// Tracking
	trackingTransitions *prometheus.CounterVec
	trackingActive      prometheus.Gauge
	workMinutesAdded    prometheus.Counter

	// Stats store
	storeErrors     *prometheus.CounterVec
	storeLatency    *prometheus.HistogramVec
	cleanupRemovals prometheus.Counter

	// Broadcast
	broadcastDeliveries *prometheus.CounterVec
	observersConnected  prometheus.Gauge

	// Queue and worker
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueEnqueueErrors      prometheus.Counter
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Scheduler
	schedulerTicks *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "workpulse",
		subsystem:        "coordinator",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// name applies the configured prefix to a metric name.
func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.eventsAccepted = auto.NewCounterVec(
		m.counterOpts("events_accepted_total", "Interaction events accepted into the stats pipeline"),
		[]string{"kind"},
	)
	m.eventsSuppressed = auto.NewCounterVec(
		m.counterOpts("events_suppressed_total", "Interaction events dropped before counting"),
		[]string{"reason"},
	)
	m.eventsDuplicate = auto.NewCounter(
		m.counterOpts("events_duplicate_total", "Retried events recognised by event id"),
	)

	m.trackingTransitions = auto.NewCounterVec(
		m.counterOpts("tracking_transitions_total", "Tracking state transitions"),
		[]string{"direction", "trigger"},
	)
	m.trackingActive = auto.NewGauge(
		m.gaugeOpts("tracking_active", "1 while a tracking session is open"),
	)
	m.workMinutesAdded = auto.NewCounter(
		m.counterOpts("work_minutes_added_total", "Work minutes credited by closed sessions"),
	)

	m.storeErrors = auto.NewCounterVec(
		m.counterOpts("store_errors_total", "Stats store operations that failed"),
		[]string{"operation"},
	)
	m.storeLatency = auto.NewHistogramVec(
		m.histogramOpts("store_latency_milliseconds", "Stats store read-modify-write latency",
			[]float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250}),
		[]string{"operation"},
	)
	m.cleanupRemovals = auto.NewCounter(
		m.counterOpts("cleanup_removed_total", "Daily entries removed by retention cleanup"),
	)

	m.broadcastDeliveries = auto.NewCounterVec(
		m.counterOpts("broadcast_deliveries_total", "Notification deliveries by outcome"),
		[]string{"action", "outcome"},
	)
	m.observersConnected = auto.NewGauge(
		m.gaugeOpts("observers_connected", "Observers currently registered"),
	)

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Events waiting in the ingest queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Ingest queue capacity"))
	m.queueEnqueueErrors = auto.NewCounter(
		m.counterOpts("queue_enqueue_errors_total", "Events rejected because the queue was full"),
	)
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Running ingest workers"))
	m.workerProcessingLatency = auto.NewHistogram(
		m.histogramOpts("worker_processing_latency_milliseconds", "Time to apply one event",
			[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500}),
	)
	m.workerErrors = auto.NewCounter(
		m.counterOpts("worker_errors_total", "Events the worker failed to apply"),
	)

	m.schedulerTicks = auto.NewCounterVec(
		m.counterOpts("scheduler_ticks_total", "Periodic handler invocations"),
		[]string{"job"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests"),
		[]string{"endpoint", "method", "status"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
			[]float64{1, 5, 10, 25, 50, 100, 250, 500, 1000}),
		[]string{"endpoint", "method", "status"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Errors by HTTP endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
}

// RecordEventAccepted counts an event that reached the stats pipeline.
func RecordEventAccepted(kind string) {
	if !globalManager.enabled {
		return
	}
	globalManager.eventsAccepted.WithLabelValues(kind).Inc()
}

// RecordEventSuppressed counts an event dropped for the given reason.
func RecordEventSuppressed(reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.eventsSuppressed.WithLabelValues(reason).Inc()
}

// RecordEventDuplicate increments the duplicate events counter.
func RecordEventDuplicate() {
	if !globalManager.enabled {
		return
	}
	globalManager.eventsDuplicate.Inc()
}

// RecordTrackingTransition counts a start or stop and updates the active gauge.
func RecordTrackingTransition(direction, trigger string) {
	if !globalManager.enabled {
		return
	}
	globalManager.trackingTransitions.WithLabelValues(direction, trigger).Inc()
	if direction == "start" {
		globalManager.trackingActive.Set(1)
	} else {
		globalManager.trackingActive.Set(0)
	}
}

// UpdateTrackingActive sets the active gauge, used after restore.
func UpdateTrackingActive(active bool) {
	if !globalManager.enabled {
		return
	}
	if active {
		globalManager.trackingActive.Set(1)
		return
	}
	globalManager.trackingActive.Set(0)
}

// RecordWorkMinutes adds credited work minutes.
func RecordWorkMinutes(minutes int) {
	if !globalManager.enabled || minutes <= 0 {
		return
	}
	globalManager.workMinutesAdded.Add(float64(minutes))
}

// RecordStoreError counts a failed stats store operation.
func RecordStoreError(operation string) {
	if !globalManager.enabled {
		return
	}
	globalManager.storeErrors.WithLabelValues(operation).Inc()
}

// RecordStoreLatency records a stats store operation latency in milliseconds.
func RecordStoreLatency(operation string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordCleanupRemovals adds the number of daily entries pruned.
func RecordCleanupRemovals(n int) {
	if !globalManager.enabled || n <= 0 {
		return
	}
	globalManager.cleanupRemovals.Add(float64(n))
}

// RecordBroadcastDelivery counts one delivery attempt outcome (delivered, failed).
func RecordBroadcastDelivery(action, outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.broadcastDeliveries.WithLabelValues(action, outcome).Inc()
}

// UpdateObserversConnected sets the registered observer gauge.
func UpdateObserversConnected(n int) {
	if !globalManager.enabled {
		return
	}
	globalManager.observersConnected.Set(float64(n))
}

// UpdateQueueSize updates the queue size gauge.
func UpdateQueueSize(size int) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity updates the queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueueError counts an enqueue rejected by backpressure.
func RecordQueueEnqueueError() {
	if !globalManager.enabled {
		return
	}
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount updates the worker count gauge.
func UpdateWorkerCount(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts an event the worker failed to apply.
func RecordWorkerError() {
	if !globalManager.enabled {
		return
	}
	globalManager.workerErrors.Inc()
}

// RecordSchedulerTick counts one invocation of a periodic job.
func RecordSchedulerTick(job string) {
	if !globalManager.enabled {
		return
	}
	globalManager.schedulerTicks.WithLabelValues(job).Inc()
}

// RecordHTTPRequest increments the HTTP requests counter.
func RecordHTTPRequest(endpoint, method, status string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, status string, durationMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(durationMs)
}

// RecordErrorByEndpoint records an error for a specific HTTP endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMetrics samples memory and goroutine gauges.
func UpdateSystemMetrics() {
	if !globalManager.enabled {
		return
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	globalManager.systemMemoryUsage.Set(float64(ms.Alloc))
	globalManager.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
}

// RefreshInterval returns how often system gauges should be sampled.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the custom Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
