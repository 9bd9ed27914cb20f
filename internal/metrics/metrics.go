// Package metrics defines the prometheus collectors of the realtime service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks live WebSocket connections across all users.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pentrypal_ws_active_connections",
		Help: "Number of live WebSocket connections",
	})

	// ActiveUsers tracks users with at least one live connection.
	ActiveUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pentrypal_ws_active_users",
		Help: "Number of users with at least one live connection",
	})

	// ActiveRooms tracks rooms with at least one member.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pentrypal_ws_active_rooms",
		Help: "Number of non-empty broadcast rooms",
	})

	// MessagesSentTotal counts frames successfully written to sockets.
	MessagesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pentrypal_ws_messages_sent_total",
		Help: "Total WebSocket messages written",
	})

	// DeliveryFailuresTotal counts per-connection delivery failures that led
	// to a deregistration.
	DeliveryFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pentrypal_ws_delivery_failures_total",
		Help: "Total delivery failures (connection dropped as a result)",
	})

	// InboundMessagesTotal counts decoded client messages by type tag.
	InboundMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pentrypal_ws_inbound_messages_total",
		Help: "Total inbound client messages by type",
	}, []string{"type"})

	// ProtocolErrorsTotal counts malformed or unknown inbound messages.
	ProtocolErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pentrypal_ws_protocol_errors_total",
		Help: "Total malformed or unknown inbound messages",
	})

	// AuthFailuresTotal counts rejected connection handshakes.
	AuthFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pentrypal_ws_auth_failures_total",
		Help: "Total WebSocket authentication failures",
	})

	// PingFailuresTotal counts keepalive pings that failed to write.
	PingFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pentrypal_ws_ping_failures_total",
		Help: "Total keepalive ping write failures",
	})

	// ConnectionsRejectedTotal counts upgrades refused before the handshake,
	// by admission-limit reason.
	ConnectionsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pentrypal_ws_connections_rejected_total",
		Help: "Total connections rejected by admission limits",
	}, []string{"reason"})

	// BridgeNotificationsTotal counts domain events pushed through the
	// notification bridge, by event kind.
	BridgeNotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pentrypal_bridge_notifications_total",
		Help: "Total domain events pushed through the notification bridge",
	}, []string{"kind"})

	// BridgeErrorsTotal counts bridge calls that failed and were swallowed.
	BridgeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pentrypal_bridge_errors_total",
		Help: "Total bridge call failures (logged, never propagated)",
	})
)
