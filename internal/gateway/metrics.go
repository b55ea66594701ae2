package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wsConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_connections_total",
			Help: "Total number of WebSocket connections",
		},
	)

	wsActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	messagesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Total number of chat messages delivered",
		},
	)

	deliveryFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_delivery_failures_total",
			Help: "Total number of message submissions that failed persistence",
		},
	)

	typingEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_typing_events_total",
			Help: "Total number of typing signals processed",
		},
	)
)
