package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks active WebSocket connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "finx_ws_active_connections",
		Help: "Number of active WebSocket connections",
	})

	// ReconnectAttemptsTotal tracks reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finx_ws_reconnect_attempts_total",
		Help: "Total number of WebSocket reconnection attempts",
	})

	// ReconnectFailuresTotal tracks reconnection failures.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finx_ws_reconnect_failures_total",
		Help: "Total number of WebSocket reconnection failures",
	})

	// AuthenticationsTotal tracks authentication acknowledgements by result.
	AuthenticationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finx_ws_authentications_total",
			Help: "Total number of socket authentication acknowledgements",
		},
		[]string{"result"},
	)

	// MessagesReceivedTotal tracks frames received by type.
	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finx_ws_messages_received_total",
			Help: "Total number of WebSocket frames received",
		},
		[]string{"frame_type"},
	)

	// MessagesSentTotal tracks frames written to the socket.
	MessagesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finx_ws_messages_sent_total",
		Help: "Total number of WebSocket frames sent",
	})

	// MessageLatencySeconds tracks frame handling latency.
	MessageLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "finx_ws_message_latency_seconds",
		Help:    "WebSocket frame handling latency",
		Buckets: prometheus.DefBuckets,
	})

	// MessagesDroppedTotal tracks frames that could not be handled.
	MessagesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finx_ws_messages_dropped_total",
			Help: "Total number of WebSocket frames dropped",
		},
		[]string{"reason"},
	)

	// ConnectionDuration tracks WebSocket connection lifetime.
	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "finx_ws_connection_duration_seconds",
		Help:    "Duration of WebSocket connections before disconnect",
		Buckets: []float64{1, 10, 60, 300, 600, 1800, 3600, 7200, 14400, 28800, 86400},
	})
)
