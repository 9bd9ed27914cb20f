package realtime

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mohsin924ali/pentrypal/internal/logging"
	"github.com/mohsin924ali/pentrypal/internal/metrics"
)

// Fanout resolves a destination (one user, one room, everyone) into the
// current connection set and performs best-effort delivery. Delivery is
// fire-and-forget: no acknowledgement, no retry, and failures never reach the
// caller. A failed connection is deregistered on the spot, which is the
// engine's only self-healing mechanism.
type Fanout struct {
	hub   *Hub
	clock clockwork.Clock
}

func NewFanout(hub *Hub, clock clockwork.Clock) *Fanout {
	return &Fanout{hub: hub, clock: clock}
}

// Hub exposes the underlying registry for presence queries.
func (f *Fanout) Hub() *Hub { return f.hub }

// Clock exposes the injected clock so collaborators stamp events consistently.
func (f *Fanout) Clock() clockwork.Clock { return f.clock }

// SendToUser serializes msg once and attempts delivery to every currently
// registered connection of user. An offline user is a silent no-op.
func (f *Fanout) SendToUser(user UserID, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal outbound message", "user_id", user, "error", err)
		return
	}
	f.sendRaw(user, data)
}

func (f *Fanout) sendRaw(user UserID, data []byte) {
	for _, cw := range f.hub.connSnapshot(user) {
		if !cw.trySend(data) {
			// Full buffer or dead writer: the peer cannot keep up. Contain
			// the failure to this one connection.
			metrics.DeliveryFailuresTotal.Inc()
			slog.Warn("delivery failed, dropping connection", "user_id", user, "conn_id", cw.id)
			f.Disconnect(user, cw.id)
		}
	}
}

// BroadcastToRoom delivers msg to every member of room except exclude. It
// works from a membership snapshot, not a live view; an unknown or empty room
// is a silent no-op.
func (f *Fanout) BroadcastToRoom(room RoomID, msg any, exclude UserID) {
	members := f.hub.RoomMembers(room)
	if len(members) == 0 {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logging.WithRoom(string(room)).Error("failed to marshal room broadcast", "error", err)
		return
	}
	for _, member := range members {
		if exclude != "" && member == exclude {
			continue
		}
		f.sendRaw(member, data)
	}
}

// BroadcastToAll delivers msg to every registered user.
func (f *Fanout) BroadcastToAll(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal broadcast", "error", err)
		return
	}
	for _, user := range f.hub.userSnapshot() {
		f.sendRaw(user, data)
	}
}

// Disconnect tears down one connection and runs the disconnect cascade:
// if it was the user's last connection, remaining members of every vacated
// room are told the user left. Idempotent; the session teardown and the
// delivery-failure path may both call it for the same connection.
func (f *Fanout) Disconnect(user UserID, connID uuid.UUID) {
	vacated, offline := f.hub.Deregister(user, connID)
	if !offline {
		return
	}
	for _, room := range vacated {
		f.BroadcastToRoom(room, NewUserLeftRoom(user, room, f.clock), user)
	}
}
