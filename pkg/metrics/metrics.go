// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ConversationTransitions tracks hosting-flow state changes.
	ConversationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostbot_conversation_transitions_total",
			Help: "Conversation state transitions",
		},
		[]string{"from", "to"},
	)

	// ValidationFailures tracks rejected user input by field.
	ValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostbot_validation_failures_total",
			Help: "User input rejected by the hosting flow",
		},
		[]string{"field", "reason"},
	)

	// SessionsActive tracks hosting sessions that are not idle.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hostbot_sessions_active",
			Help: "Number of in-progress hosting sessions",
		},
	)

	// EventsCreated tracks committed events.
	EventsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hostbot_events_created_total",
			Help: "Total events created",
		},
	)

	// EventsExpired tracks rows removed by cleanup and refresh.
	EventsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hostbot_events_expired_total",
			Help: "Total expired events deleted",
		},
	)

	// SweepsTotal tracks scheduler cycles.
	SweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostbot_sweeps_total",
			Help: "Periodic sweep cycles by outcome",
		},
		[]string{"sweeper", "status"},
	)

	// StoreOperationDuration tracks event store latency.
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hostbot_store_operation_duration_seconds",
			Help:    "Event store operation duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"op", "status"},
	)

	// TransportFailures tracks outbound delivery failures.
	TransportFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostbot_transport_failures_total",
			Help: "Outbound chat messages that could not be delivered",
		},
		[]string{"transport"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordTransition records a conversation state change.
func RecordTransition(from, to string) {
	ConversationTransitions.WithLabelValues(from, to).Inc()
}

// RecordValidationFailure records a rejected input.
func RecordValidationFailure(field, reason string) {
	ValidationFailures.WithLabelValues(field, reason).Inc()
}

// RecordStoreOp records the outcome and latency of a store call.
func RecordStoreOp(op string, err error, duration float64) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StoreOperationDuration.WithLabelValues(op, status).Observe(duration)
}

// RecordSweep records one scheduler cycle.
func RecordSweep(sweeper string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	SweepsTotal.WithLabelValues(sweeper, status).Inc()
}
