// Package bridge is the one-way surface business logic uses to push domain
// events into the realtime fanout without knowing anything about transports
// or rooms. Delivery is a best-effort side channel: a failure in here is
// logged and swallowed, and must never roll back or fail the business write
// that triggered it.
package bridge

import (
	"log/slog"

	"github.com/mohsin924ali/pentrypal/internal/metrics"
	"github.com/mohsin924ali/pentrypal/internal/realtime"
)

// Notifier is the narrow capability interface handed to business logic. The
// bridge never depends on business-logic internals; the dependency runs one
// way only.
type Notifier interface {
	NotifyListUpdate(data any, listID string)
	NotifyItemUpdate(data any, listID string)
	NotifyFriendRequest(data any, userID string)
	NotifyFriendStatusUpdate(data any, userID string)
	NotifyGeneric(data any, userID string)
	IsUserOnline(userID string) bool
}

// Bridge implements Notifier over the fanout engine.
type Bridge struct {
	fanout *realtime.Fanout
}

func New(fanout *realtime.Fanout) *Bridge {
	return &Bridge{fanout: fanout}
}

// NotifyListUpdate pushes a list_update to every collaborator joined to the
// list's room.
func (b *Bridge) NotifyListUpdate(data any, listID string) {
	defer b.contain("list_update")
	metrics.BridgeNotificationsTotal.WithLabelValues("list_update").Inc()
	b.fanout.BroadcastToRoom(realtime.ListRoom(listID), realtime.NewListUpdate(data, listID, b.fanout.Clock()), "")
}

// NotifyItemUpdate pushes an item_update to every collaborator joined to the
// list's room.
func (b *Bridge) NotifyItemUpdate(data any, listID string) {
	defer b.contain("item_update")
	metrics.BridgeNotificationsTotal.WithLabelValues("item_update").Inc()
	b.fanout.BroadcastToRoom(realtime.ListRoom(listID), realtime.NewItemUpdate(data, listID, b.fanout.Clock()), "")
}

// NotifyFriendRequest pushes a friend_request event to one user.
func (b *Bridge) NotifyFriendRequest(data any, userID string) {
	defer b.contain("friend_request")
	metrics.BridgeNotificationsTotal.WithLabelValues("friend_request").Inc()
	b.fanout.SendToUser(realtime.UserID(userID), realtime.NewFriendRequest(data, b.fanout.Clock()))
}

// NotifyFriendStatusUpdate pushes a friend_status_update event to one user.
func (b *Bridge) NotifyFriendStatusUpdate(data any, userID string) {
	defer b.contain("friend_status_update")
	metrics.BridgeNotificationsTotal.WithLabelValues("friend_status_update").Inc()
	b.fanout.SendToUser(realtime.UserID(userID), realtime.NewFriendStatusUpdate(data, b.fanout.Clock()))
}

// NotifyGeneric pushes an untyped notification to one user.
func (b *Bridge) NotifyGeneric(data any, userID string) {
	defer b.contain("notification")
	metrics.BridgeNotificationsTotal.WithLabelValues("notification").Inc()
	b.fanout.SendToUser(realtime.UserID(userID), realtime.NewNotification(data, b.fanout.Clock()))
}

// IsUserOnline reports whether the user holds at least one live connection.
func (b *Bridge) IsUserOnline(userID string) bool {
	return b.fanout.Hub().IsOnline(realtime.UserID(userID))
}

// contain recovers any panic escaping a bridge call. The fanout layer already
// contains delivery failures; this is the boundary guarantee that nothing in
// the side channel can surface into a business operation.
func (b *Bridge) contain(kind string) {
	if r := recover(); r != nil {
		metrics.BridgeErrorsTotal.Inc()
		slog.Error("notification bridge call failed", "kind", kind, "panic", r)
	}
}
