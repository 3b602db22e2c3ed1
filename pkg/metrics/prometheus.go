// Package metrics provides Prometheus metrics for the shiny counter service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus series the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Counter store
	counterMutations *prometheus.CounterVec
	countersTotal    prometheus.Gauge
	homeCounters     prometheus.Gauge

	// Persistence
	persistEnqueued  prometheus.Counter
	persistDropped   prometheus.Counter
	persistWrites    prometheus.Counter
	persistStale     prometheus.Counter
	persistErrors    prometheus.Counter
	persistLatency   prometheus.Histogram
	queueSize        prometheus.Gauge
	queueUtilization prometheus.Gauge

	// Mirroring sink
	sinkPushes  *prometheus.CounterVec
	sinkErrors  *prometheus.CounterVec
	mirrorSyncs *prometheus.CounterVec

	// Catalog lookups
	catalogLookups *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // avoids default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager registered on the configured registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "shinycounter",
		subsystem:        "core",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of series
	auto := promauto.With(m.registry)

	m.counterMutations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "counter_mutations_total",
		Help:      "Counter store mutations by operation",
	}, []string{"op"})

	m.countersTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "counters",
		Help:      "Number of counters in the collection",
	})

	m.homeCounters = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "home_counters",
		Help:      "Number of ids in the home aggregate set",
	})

	m.persistEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_enqueued_total",
		Help:      "Snapshots scheduled for persistence",
	})

	m.persistDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_dropped_total",
		Help:      "Snapshots dropped because the persistence queue was full or closed",
	})

	m.persistWrites = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_writes_total",
		Help:      "Snapshots written to the key-value store",
	})

	m.persistStale = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_stale_total",
		Help:      "Snapshots skipped because a newer revision was already written",
	})

	m.persistErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_errors_total",
		Help:      "Failed snapshot writes",
	})

	m.persistLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_write_latency_milliseconds",
		Help:      "Snapshot write latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_queue_size",
		Help:      "Snapshots waiting in the persistence queue",
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_queue_utilization_ratio",
		Help:      "Persistence queue size divided by capacity",
	})

	m.sinkPushes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sink_pushes_total",
		Help:      "Values pushed to the mirroring sink by field",
	}, []string{"field"})

	m.sinkErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sink_errors_total",
		Help:      "Failed pushes to the mirroring sink by field",
	}, []string{"field"})

	m.mirrorSyncs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "mirror_syncs_total",
		Help:      "Mirror sync passes by outcome (synced, unchanged, disconnected)",
	}, []string{"outcome"})

	m.catalogLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "catalog_lookups_total",
		Help:      "Catalog lookups by outcome",
	}, []string{"outcome"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// RecordCounterMutation increments the mutation counter for op.
func RecordCounterMutation(op string) {
	globalManager.counterMutations.WithLabelValues(op).Inc()
}

// UpdateCounters sets the collection size and home set size gauges.
func UpdateCounters(total, home int) {
	globalManager.countersTotal.Set(float64(total))
	globalManager.homeCounters.Set(float64(home))
}

// RecordPersistEnqueued counts a scheduled snapshot.
func RecordPersistEnqueued() {
	globalManager.persistEnqueued.Inc()
}

// RecordPersistDropped counts a snapshot that could not be scheduled.
func RecordPersistDropped() {
	globalManager.persistDropped.Inc()
}

// RecordPersistWrite counts a written snapshot and its latency.
func RecordPersistWrite(latencyMs float64) {
	globalManager.persistWrites.Inc()
	globalManager.persistLatency.Observe(latencyMs)
}

// RecordPersistStale counts a snapshot skipped by the revision guard.
func RecordPersistStale() {
	globalManager.persistStale.Inc()
}

// RecordPersistError counts a failed snapshot write.
func RecordPersistError() {
	globalManager.persistErrors.Inc()
}

// UpdateQueue sets the persistence queue size and utilization.
func UpdateQueue(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// RecordSinkPush counts a successful push for field (count, image, probability).
func RecordSinkPush(field string) {
	globalManager.sinkPushes.WithLabelValues(field).Inc()
}

// RecordSinkError counts a failed push for field.
func RecordSinkError(field string) {
	globalManager.sinkErrors.WithLabelValues(field).Inc()
}

// RecordMirrorSync counts a mirror pass by outcome.
func RecordMirrorSync(outcome string) {
	globalManager.mirrorSyncs.WithLabelValues(outcome).Inc()
}

// RecordCatalogLookup counts a catalog lookup by outcome.
func RecordCatalogLookup(outcome string) {
	globalManager.catalogLookups.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
