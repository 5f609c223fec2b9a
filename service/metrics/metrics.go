package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// It is passed explicitly to every component that records metrics. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	// Solana RPC
	solanaRPCCallsTotal        *prometheus.CounterVec
	solanaRPCCallDuration      *prometheus.HistogramVec
	solanaRPCSignaturesPerCall prometheus.Histogram

	// Poll loop
	pollCyclesTotal         *prometheus.CounterVec
	pollCycleDuration       *prometheus.HistogramVec
	pollerState             prometheus.Gauge
	signaturesProcessed     *prometheus.CounterVec
	extractRejectionsTotal  *prometheus.CounterVec
	transfersInsertedTotal  prometheus.Counter
	temporalActivityLatency *prometheus.HistogramVec

	// Database
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections prometheus.Gauge
	sseEventsSent        prometheus.Counter

	// NATS
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   prometheus.Histogram
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method"},
		),
		solanaRPCSignaturesPerCall: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_signatures_per_call",
				Help:    "Number of signatures returned per getSignaturesForAddress call",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000},
			},
		),

		pollCyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poll_cycles_total",
				Help: "Total number of poll cycles by status",
			},
			[]string{"status"},
		),
		pollCycleDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "poll_cycle_duration_seconds",
				Help:    "Duration of poll cycles in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"status"},
		),
		pollerState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "poller_cycling",
				Help: "1 while a poll cycle is running, 0 when idle",
			},
		),
		signaturesProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poll_signatures_processed_total",
				Help: "Signatures handled by the poll loop by outcome",
			},
			[]string{"outcome"},
		),
		extractRejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extract_rejections_total",
				Help: "Transactions that did not yield a transfer record, by reason",
			},
			[]string{"reason"},
		),
		transfersInsertedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "transfers_inserted_total",
				Help: "Total number of transfer records persisted",
			},
		),
		temporalActivityLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "temporal_activity_duration_seconds",
				Help:    "Duration of Temporal poll activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"activity"},
		),

		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"operation"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
		),
		sseEventsSent: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of transfer events published to NATS",
			},
			[]string{"status"},
		),
		natsPublishDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status string, duration float64) {
	if m == nil {
		return
	}
	m.solanaRPCCallsTotal.WithLabelValues(method, status).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method).Observe(duration)
}

// RecordRPCSignaturesPerCall records the number of signatures returned by one listing.
func (m *Metrics) RecordRPCSignaturesPerCall(count int) {
	if m == nil {
		return
	}
	m.solanaRPCSignaturesPerCall.Observe(float64(count))
}

// Poll loop metric helpers

// RecordCycle records a finished poll cycle.
func (m *Metrics) RecordCycle(status string, duration float64) {
	if m == nil {
		return
	}
	m.pollCyclesTotal.WithLabelValues(status).Inc()
	m.pollCycleDuration.WithLabelValues(status).Observe(duration)
}

// SetCycling flips the poller state gauge.
func (m *Metrics) SetCycling(cycling bool) {
	if m == nil {
		return
	}
	if cycling {
		m.pollerState.Set(1)
		return
	}
	m.pollerState.Set(0)
}

// RecordSignatureOutcome records how one signature was handled.
func (m *Metrics) RecordSignatureOutcome(outcome string) {
	if m == nil {
		return
	}
	m.signaturesProcessed.WithLabelValues(outcome).Inc()
}

// RecordRejection records an extraction rejection.
func (m *Metrics) RecordRejection(reason string) {
	if m == nil {
		return
	}
	m.extractRejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordTransferInserted records one newly persisted transfer.
func (m *Metrics) RecordTransferInserted() {
	if m == nil {
		return
	}
	m.transfersInsertedTotal.Inc()
}

// RecordActivityDuration records a Temporal activity execution.
func (m *Metrics) RecordActivityDuration(activity string, duration float64) {
	if m == nil {
		return
	}
	m.temporalActivityLatency.WithLabelValues(activity).Observe(duration)
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation string, duration float64, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	if m == nil {
		return
	}
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(delta float64) {
	if m == nil {
		return
	}
	m.sseActiveConnections.Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent() {
	if m == nil {
		return
	}
	m.sseEventsSent.Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(status string, duration float64) {
	if m == nil {
		return
	}
	m.natsMessagesPublished.WithLabelValues(status).Inc()
	m.natsPublishDuration.Observe(duration)
}

func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
