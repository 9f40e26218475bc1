package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the flow of access requests through the pipeline.
type Metrics struct {
	// RequestsSubmitted counts guest requests accepted by the portal.
	RequestsSubmitted prometheus.Counter

	// RequestsDispatched counts requests claimed and broadcast by the
	// fan-out loop.
	RequestsDispatched prometheus.Counter

	// NotificationsSent counts individual approval prompts delivered to chats.
	NotificationsSent prometheus.Counter

	// Decisions counts recorded confirmations.
	// Labels: outcome (granted|denied)
	Decisions *prometheus.CounterVec

	// ControllerErrors counts failed controller authorize calls.
	ControllerErrors prometheus.Counter

	// TransportErrors counts failed Telegram sends and edits.
	TransportErrors prometheus.Counter

	// HTTPRequestDuration measures portal request latency in seconds.
	// Labels: method, path, status_code
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics with a fresh registry and
// returns both. The registry is served at /metrics by the portal.
func NewMetrics() (*Metrics, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		RequestsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "hotspot_requests_submitted_total",
			Help: "Guest access requests accepted by the portal.",
		}),
		RequestsDispatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "hotspot_requests_dispatched_total",
			Help: "Requests claimed and broadcast to approval chats.",
		}),
		NotificationsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "hotspot_notifications_sent_total",
			Help: "Approval prompts delivered to individual chats.",
		}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hotspot_decisions_total",
			Help: "Recorded approval decisions.",
		}, []string{"outcome"}),
		ControllerErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "hotspot_controller_errors_total",
			Help: "Failed UniFi controller calls.",
		}),
		TransportErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "hotspot_transport_errors_total",
			Help: "Failed Telegram message sends and edits.",
		}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hotspot_http_request_duration_seconds",
			Help:    "Portal HTTP request latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method", "path", "status_code"}),
	}
	return m, registry
}
