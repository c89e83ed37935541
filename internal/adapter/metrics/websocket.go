package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics holds Prometheus metrics for room connections and fan-out.
type WebSocketMetrics struct {
	ActiveConnections   prometheus.Gauge
	MessagesPublished   prometheus.Counter
	MessagesDropped     prometheus.Counter
	SlowClientsEvicted  prometheus.Counter
	ConnectionsReplaced prometheus.Counter
	ConnectionsRejected *prometheus.CounterVec
	HeartbeatTimeouts   prometheus.Counter
	InboundDropped      prometheus.Counter
	MessageSendDuration prometheus.Histogram
}

// NewWebSocketMetrics creates and registers WebSocket metrics on the given registry.
func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of connections currently in the registry.",
		}),
		MessagesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "messages_published_total",
			Help:      "Total number of frames enqueued to clients.",
		}),
		MessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "messages_dropped_total",
			Help:      "Total number of frames dropped because a send queue was full.",
		}),
		SlowClientsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "slow_clients_evicted_total",
			Help:      "Total number of clients disconnected for not draining their send queue.",
		}),
		ConnectionsReplaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "connections_replaced_total",
			Help:      "Total number of connections closed because the same user connected again.",
		}),
		ConnectionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "connections_rejected_total",
			Help:      "Total number of rejected upgrade attempts, by reason.",
		}, []string{"reason"}),
		HeartbeatTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "heartbeat_timeouts_total",
			Help:      "Total number of connections closed by the liveness check.",
		}),
		InboundDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "inbound_dropped_total",
			Help:      "Total number of malformed inbound frames that were ignored.",
		}),
		MessageSendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "message_send_duration_seconds",
			Help:      "Time spent writing a single frame to a socket.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}

	reg.MustRegister(
		m.ActiveConnections, m.MessagesPublished, m.MessagesDropped, m.SlowClientsEvicted,
		m.ConnectionsReplaced, m.ConnectionsRejected, m.HeartbeatTimeouts, m.InboundDropped,
		m.MessageSendDuration,
	)
	return m
}
