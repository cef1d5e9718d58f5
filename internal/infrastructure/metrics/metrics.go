package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Routing-API Metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zapdesk",
			Subsystem: "routing_api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zapdesk",
			Subsystem: "routing_api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Inbound pipeline
	InboundMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zapdesk",
			Subsystem: "routing_api",
			Name:      "inbound_messages_total",
			Help:      "Inbound gateway messages by outcome",
		},
		[]string{"outcome"}, // stored, duplicate, malformed, failed
	)

	// Ownership transitions
	ClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zapdesk",
			Subsystem: "routing_api",
			Name:      "claims_total",
			Help:      "Conversation claim attempts by outcome",
		},
		[]string{"outcome"}, // won, conflict
	)

	RoutedWithoutDepartment = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "zapdesk",
			Subsystem: "routing_api",
			Name:      "routed_without_department_total",
			Help:      "New conversations left unowned because no default department is configured",
		},
	)

	// Session lifecycle
	SessionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zapdesk",
			Subsystem: "routing_api",
			Name:      "session_transitions_total",
			Help:      "Session state transitions",
		},
		[]string{"to"},
	)

	SessionQRExpirations = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "zapdesk",
			Subsystem: "routing_api",
			Name:      "session_qr_expirations_total",
			Help:      "Sessions reverted to STOPPED after the QR window expired",
		},
	)

	// Realtime fanout
	FanoutEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zapdesk",
			Subsystem: "routing_api",
			Name:      "fanout_events_total",
			Help:      "Realtime events by delivery outcome",
		},
		[]string{"outcome"}, // delivered, dropped
	)

	FanoutClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "zapdesk",
			Subsystem: "routing_api",
			Name:      "fanout_clients",
			Help:      "Currently registered realtime clients",
		},
	)

	// Gateway client
	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zapdesk",
			Subsystem: "routing_api",
			Name:      "gateway_requests_total",
			Help:      "Outbound gateway calls",
		},
		[]string{"operation", "status"},
	)

	GatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zapdesk",
			Subsystem: "routing_api",
			Name:      "gateway_duration_seconds",
			Help:      "Gateway call duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"operation"},
	)
)
