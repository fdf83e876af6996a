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
			Name:    "widget_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// BackendCallDuration tracks calls to the Companin API.
	BackendCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "widget_backend_call_duration_seconds",
			Help:    "Duration of calls to the Companin API",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation", "outcome"},
	)

	// SessionsTotal counts how sessions were obtained.
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_sessions_total",
			Help: "Widget sessions by origin (created, restored, discovered, expired, failed)",
		},
		[]string{"variant", "origin"},
	)

	// MessagesTotal tracks messages sent by outcome.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_messages_total",
			Help: "Messages sent from widgets",
		},
		[]string{"outcome"},
	)

	// FlowTriggersTotal tracks scripted flow resolution.
	FlowTriggersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_flow_triggers_total",
			Help: "Flow lookups by result",
		},
		[]string{"result"},
	)

	// ButtonClicksTotal tracks button clicks, including suppressed duplicates.
	ButtonClicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_button_clicks_total",
			Help: "Button clicks by kind and result",
		},
		[]string{"kind", "result"},
	)

	// FeedbackTotal tracks feedback outcomes.
	FeedbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_feedback_total",
			Help: "Feedback dialog outcomes",
		},
		[]string{"outcome"},
	)

	// InstancesActive tracks live widget instances.
	InstancesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "widget_instances_active",
			Help: "Number of live widget instances",
		},
	)

	// StreamsActive tracks open instance state streams.
	StreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "widget_streams_active",
			Help: "Number of open instance state streams",
		},
	)

	// EventsPublished tracks lifecycle events sent to NATS.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_events_published_total",
			Help: "Lifecycle events published",
		},
		[]string{"type", "status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordBackendCall records one Companin API call.
func RecordBackendCall(operation string, err error, duration float64) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	BackendCallDuration.WithLabelValues(operation, outcome).Observe(duration)
}

// IncrementInstances increments the live instance count.
func IncrementInstances() {
	InstancesActive.Inc()
}

// DecrementInstances decrements the live instance count.
func DecrementInstances() {
	InstancesActive.Dec()
}

// IncrementStreams increments the open stream count.
func IncrementStreams() {
	StreamsActive.Inc()
}

// DecrementStreams decrements the open stream count.
func DecrementStreams() {
	StreamsActive.Dec()
}
