// Package metrics provides Prometheus metrics for the covid map service.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// defaultLatencyBuckets are in milliseconds.
var defaultLatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000} //nolint:gochecknoglobals // constant slice

// Manager owns every collector the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer
	gatherer         prometheus.Gatherer

	// Pipeline
	stageDuration     *prometheus.HistogramVec
	rowsDropped       *prometheus.CounterVec
	joinMisses        *prometheus.CounterVec
	snapshotRows      prometheus.Gauge
	snapshotFeedRows  prometheus.Gauge
	snapshotTimestamp prometheus.Gauge
	snapshotBuilds    *prometheus.CounterVec

	// Subscribers and mail
	subscriberCount prometheus.Gauge
	mailSent        *prometheus.CounterVec
	mailFailed      *prometheus.CounterVec
	mailDuplicates  prometheus.Counter
	mailLatency     prometheus.Histogram

	// Outbox
	outboxSize        prometheus.Gauge
	outboxCapacity    prometheus.Gauge
	outboxEnqueued    prometheus.Counter
	outboxRejected    *prometheus.CounterVec
	workerActiveCount prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// current is the manager the package helpers record into.
var current atomic.Pointer[Manager] //nolint:gochecknoglobals // singleton metrics manager

func init() { //nolint:gochecknoinits // global metrics setup
	Init()
}

// Init replaces the package manager with one built from opts on a fresh
// registry, which keeps default Go collectors out of the exported set.
// Observations recorded before the call stay on the old registry.
func Init(opts ...Option) *Manager {
	reg := prometheus.NewRegistry()
	m := NewManager(append(opts, WithPrometheusRegistry(reg))...)
	m.gatherer = reg
	current.Store(m)
	return m
}

func global() *Manager { return current.Load() }

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "covidmap",
		subsystem:        "service",
		histogramBuckets: defaultLatencyBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.stageDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "pipeline",
		Name:        "stage_duration_milliseconds",
		Help:        "Duration of each snapshot pipeline stage in milliseconds",
		Buckets:     []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 30000},
		ConstLabels: labels,
	}, []string{"stage"})

	m.rowsDropped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "pipeline",
		Name:        "rows_dropped_total",
		Help:        "Feed rows excluded from the derived set, by reason",
		ConstLabels: labels,
	}, []string{"reason"})

	m.joinMisses = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "pipeline",
		Name:        "join_misses_total",
		Help:        "Derived rows whose county matched no boundary feature",
		ConstLabels: labels,
	}, []string{"metric"})

	m.snapshotRows = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "snapshot",
		Name:        "derived_rows",
		Help:        "Number of derived rows in the published snapshot",
		ConstLabels: labels,
	})

	m.snapshotFeedRows = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "snapshot",
		Name:        "feed_rows",
		Help:        "Number of rows in the unfiltered feed",
		ConstLabels: labels,
	})

	m.snapshotTimestamp = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "snapshot",
		Name:        "built_unix",
		Help:        "Unix time at which the snapshot was built",
		ConstLabels: labels,
	})

	m.snapshotBuilds = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "snapshot",
		Name:        "builds_total",
		Help:        "Snapshot builds by outcome",
		ConstLabels: labels,
	}, []string{"outcome"})

	m.subscriberCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "subscribers",
		Help:        "Number of stored subscribers",
		ConstLabels: labels,
	})

	m.mailSent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "mail",
		Name:        "sent_total",
		Help:        "Emails delivered by kind",
		ConstLabels: labels,
	}, []string{"kind"})

	m.mailFailed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "mail",
		Name:        "failed_total",
		Help:        "Emails that failed delivery by kind",
		ConstLabels: labels,
	}, []string{"kind"})

	m.mailDuplicates = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "mail",
		Name:        "duplicate_requests_total",
		Help:        "Update requests skipped because one was already queued for the snapshot",
		ConstLabels: labels,
	})

	m.mailLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "mail",
		Name:        "send_latency_milliseconds",
		Help:        "Latency of a single mail delivery in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.outboxSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "outbox",
		Name:        "size",
		Help:        "Messages waiting in the outbox",
		ConstLabels: labels,
	})

	m.outboxCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "outbox",
		Name:        "capacity",
		Help:        "Maximum number of queued messages",
		ConstLabels: labels,
	})

	m.outboxEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "outbox",
		Name:        "enqueued_total",
		Help:        "Messages accepted into the outbox",
		ConstLabels: labels,
	})

	m.outboxRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "outbox",
		Name:        "rejected_total",
		Help:        "Messages refused by the outbox, by reason",
		ConstLabels: labels,
	}, []string{"reason"})

	m.workerActiveCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "outbox",
		Name:        "workers",
		Help:        "Number of running mail workers",
		ConstLabels: labels,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "http",
		Name:        "requests_total",
		Help:        "HTTP requests by endpoint, method and status",
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "http",
		Name:        "request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_component_total",
		Help:        "Errors by component and type",
		ConstLabels: labels,
	}, []string{"component", "error_type"})

	m.errorsByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_endpoint_total",
		Help:        "HTTP errors by endpoint, method and type",
		ConstLabels: labels,
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "memory_usage_bytes",
		Help:        "Allocated heap bytes",
		ConstLabels: labels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "goroutine_count",
		Help:        "Number of goroutines",
		ConstLabels: labels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "gc_pause_time_milliseconds",
		Help:        "Average GC pause in milliseconds",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		ConstLabels: labels,
	})
}

// Enabled reports whether the manager records observations.
func (m *Manager) Enabled() bool { return m.enabled }

// RefreshInterval is how often periodic gauges should be refreshed.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// RefreshInterval is the refresh interval of the package manager.
func RefreshInterval() time.Duration { return global().refreshInterval }

// Pipeline

// RecordStageDuration records how long a pipeline stage took.
func RecordStageDuration(stage string, ms float64) {
	m := global()
	if !m.enabled {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(ms)
}

// RecordRowsDropped counts rows excluded for reason.
func RecordRowsDropped(reason string, n int) {
	m := global()
	if !m.enabled {
		return
	}
	if n > 0 {
		m.rowsDropped.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordJoinMisses counts derived rows with no matching boundary.
func RecordJoinMisses(metric string, n int) {
	m := global()
	if !m.enabled {
		return
	}
	if n > 0 {
		m.joinMisses.WithLabelValues(metric).Add(float64(n))
	}
}

// UpdateSnapshotRows sets the derived and raw row gauges.
func UpdateSnapshotRows(derived, feed int) {
	m := global()
	if !m.enabled {
		return
	}
	m.snapshotRows.Set(float64(derived))
	m.snapshotFeedRows.Set(float64(feed))
}

// UpdateSnapshotTimestamp records when the snapshot was built.
func UpdateSnapshotTimestamp(t time.Time) {
	m := global()
	if !m.enabled {
		return
	}
	m.snapshotTimestamp.Set(float64(t.Unix()))
}

// RecordSnapshotBuild counts a build with outcome "ok" or "failed".
func RecordSnapshotBuild(outcome string) {
	m := global()
	if !m.enabled {
		return
	}
	m.snapshotBuilds.WithLabelValues(outcome).Inc()
}

// Subscribers and mail

// UpdateSubscriberCount sets the subscriber gauge.
func UpdateSubscriberCount(n int) {
	m := global()
	if !m.enabled {
		return
	}
	m.subscriberCount.Set(float64(n))
}

// RecordMailSent counts a delivered email.
func RecordMailSent(kind string) {
	m := global()
	if !m.enabled {
		return
	}
	m.mailSent.WithLabelValues(kind).Inc()
}

// RecordMailFailed counts a failed email.
func RecordMailFailed(kind string) {
	m := global()
	if !m.enabled {
		return
	}
	m.mailFailed.WithLabelValues(kind).Inc()
}

// RecordMailDuplicate counts a deduplicated update request.
func RecordMailDuplicate() {
	m := global()
	if !m.enabled {
		return
	}
	m.mailDuplicates.Inc()
}

// RecordMailLatency observes a delivery latency.
func RecordMailLatency(ms float64) {
	m := global()
	if !m.enabled {
		return
	}
	m.mailLatency.Observe(ms)
}

// Outbox

// UpdateOutboxSize sets the current outbox length.
func UpdateOutboxSize(n int) {
	m := global()
	if !m.enabled {
		return
	}
	m.outboxSize.Set(float64(n))
}

// UpdateOutboxCapacity sets the outbox capacity.
func UpdateOutboxCapacity(n int) {
	m := global()
	if !m.enabled {
		return
	}
	m.outboxCapacity.Set(float64(n))
}

// RecordOutboxEnqueue counts an accepted message.
func RecordOutboxEnqueue() {
	m := global()
	if !m.enabled {
		return
	}
	m.outboxEnqueued.Inc()
}

// RecordOutboxRejected counts a refused message.
func RecordOutboxRejected(reason string) {
	m := global()
	if !m.enabled {
		return
	}
	m.outboxRejected.WithLabelValues(reason).Inc()
}

// UpdateWorkerActiveCount sets the number of running mail workers.
func UpdateWorkerActiveCount(n int) {
	m := global()
	if !m.enabled {
		return
	}
	m.workerActiveCount.Set(float64(n))
}

// HTTP

// RecordHTTPRequest counts a request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	m := global()
	if !m.enabled {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes a request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	m := global()
	if !m.enabled {
		return
	}
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors

// RecordErrorByComponent counts an error raised inside component.
func RecordErrorByComponent(component, errorType string) {
	m := global()
	if !m.enabled {
		return
	}
	m.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint counts an HTTP error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	m := global()
	if !m.enabled {
		return
	}
	m.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System

// UpdateSystemMemoryUsage sets the heap gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	m := global()
	if !m.enabled {
		return
	}
	m.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	m := global()
	if !m.enabled {
		return
	}
	m.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime observes an average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	m := global()
	if !m.enabled {
		return
	}
	m.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the gatherer of the package manager. It follows Init.
func GetRegistry() prometheus.Gatherer {
	return prometheus.GathererFunc(func() ([]*dto.MetricFamily, error) {
		return global().gatherer.Gather()
	})
}
