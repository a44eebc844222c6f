package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "support_chat"

// Metrics wraps the Prometheus collectors used across the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	errors           *prometheus.CounterVec
	messagesSent     *prometheus.CounterVec
	replications     *prometheus.CounterVec
	attachmentOps    *prometheus.CounterVec
	presignDuration  prometheus.Histogram
	liveConnections  prometheus.Gauge
	droppedBroadcast prometheus.Counter
}

// NewMetrics registers collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "path"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "HTTP errors by domain error code",
		}, []string{"method", "path", "code"}),
		messagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Persisted chat messages by kind",
		}, []string{"kind"}),
		replications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "message_log",
			Name:      "appends_total",
			Help:      "Secondary store appends by outcome",
		}, []string{"status"}),
		attachmentOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "attachments",
			Name:      "operations_total",
			Help:      "Object store operations by outcome",
		}, []string{"operation", "status"}),
		presignDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "attachments",
			Name:      "presign_duration_seconds",
			Help:      "Presigned URL generation duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		liveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Currently connected websocket clients",
		}),
		droppedBroadcast: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "realtime",
			Name:      "dropped_events_total",
			Help:      "Events dropped because a client buffer was full",
		}),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(method, path, code).Inc()
}

// RecordMessage counts a persisted message.
func (m *Metrics) RecordMessage(kind string) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(kind).Inc()
}

// RecordReplication counts a secondary store append outcome.
func (m *Metrics) RecordReplication(status string) {
	if m == nil {
		return
	}
	m.replications.WithLabelValues(status).Inc()
}

// RecordAttachmentOp counts an object store operation outcome.
func (m *Metrics) RecordAttachmentOp(operation, status string) {
	if m == nil {
		return
	}
	m.attachmentOps.WithLabelValues(operation, status).Inc()
}

// RecordPresign observes presign latency.
func (m *Metrics) RecordPresign(duration time.Duration) {
	if m == nil {
		return
	}
	m.presignDuration.Observe(duration.Seconds())
}

// ConnectionOpened tracks a websocket connect.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.liveConnections.Inc()
}

// ConnectionClosed tracks a websocket disconnect.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.liveConnections.Dec()
}

// RecordDroppedEvent counts a fan-out event dropped on a full buffer.
func (m *Metrics) RecordDroppedEvent() {
	if m == nil {
		return
	}
	m.droppedBroadcast.Inc()
}
