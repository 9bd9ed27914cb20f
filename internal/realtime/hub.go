package realtime

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/samber/lo"

	"github.com/mohsin924ali/pentrypal/internal/metrics"
)

// Hub owns the connection registry (user -> live connections) and the room
// directory (room -> members, plus its reverse index user -> rooms). The two
// room maps are kept mutually consistent under a single mutex: every compound
// mutation, including the disconnect cascade, holds the lock for its full
// duration.
type Hub struct {
	mu    sync.Mutex
	clock clockwork.Clock

	conns     map[UserID]map[uuid.UUID]*connWriter
	rooms     map[RoomID]map[UserID]struct{}
	userRooms map[UserID]map[RoomID]struct{}
}

// NewHub creates an empty hub. Each test and each process builds its own;
// there is no package-level instance.
func NewHub(clock clockwork.Clock) *Hub {
	return &Hub{
		clock:     clock,
		conns:     make(map[UserID]map[uuid.UUID]*connWriter),
		rooms:     make(map[RoomID]map[UserID]struct{}),
		userRooms: make(map[UserID]map[RoomID]struct{}),
	}
}

// Register admits a connection for user and returns its handle id.
func (h *Hub) Register(user UserID, conn Conn) uuid.UUID {
	cw := newConnWriter(conn, h.clock)

	h.mu.Lock()
	set, ok := h.conns[user]
	if !ok {
		set = make(map[uuid.UUID]*connWriter)
		h.conns[user] = set
	}
	set[cw.id] = cw
	users, total := len(h.conns), h.totalConnectionsLocked()
	h.mu.Unlock()

	metrics.ActiveConnections.Set(float64(total))
	metrics.ActiveUsers.Set(float64(users))
	slog.Debug("connection registered", "user_id", user, "conn_id", cw.id, "total_connections", total)
	return cw.id
}

// Deregister removes one connection. Removing the user's last connection
// cascades: the user leaves every room (emptied rooms are deleted) and the
// registry entry itself is removed. It returns the rooms the user vacated via
// the cascade, so the caller can notify remaining members, and reports whether
// the user went fully offline. Safe to call repeatedly for the same connection.
func (h *Hub) Deregister(user UserID, connID uuid.UUID) (vacated []RoomID, offline bool) {
	h.mu.Lock()
	set, ok := h.conns[user]
	if !ok {
		h.mu.Unlock()
		return nil, false
	}
	cw, ok := set[connID]
	if !ok {
		h.mu.Unlock()
		return nil, false
	}
	delete(set, connID)

	if len(set) == 0 {
		delete(h.conns, user)
		offline = true
		for room := range h.userRooms[user] {
			vacated = append(vacated, room)
			h.removeMemberLocked(user, room)
		}
		delete(h.userRooms, user)
	}
	users, total, rooms := len(h.conns), h.totalConnectionsLocked(), len(h.rooms)
	h.mu.Unlock()

	// Stop outside the lock: stop waits for the writer goroutine.
	cw.stop()

	metrics.ActiveConnections.Set(float64(total))
	metrics.ActiveUsers.Set(float64(users))
	metrics.ActiveRooms.Set(float64(rooms))
	if offline {
		slog.Info("user disconnected", "user_id", user, "vacated_rooms", len(vacated))
	} else {
		slog.Debug("connection deregistered", "user_id", user, "conn_id", connID)
	}
	return vacated, offline
}

// Join adds user to room and reports whether membership actually changed.
// Joining a room the user is already in is a no-op. Users without a live
// connection cannot join: the disconnect cascade would never clean them up.
func (h *Hub) Join(user UserID, room RoomID) bool {
	h.mu.Lock()
	if _, online := h.conns[user]; !online {
		h.mu.Unlock()
		return false
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[UserID]struct{})
		h.rooms[room] = members
	}
	if _, already := members[user]; already {
		h.mu.Unlock()
		return false
	}
	members[user] = struct{}{}
	joined, ok := h.userRooms[user]
	if !ok {
		joined = make(map[RoomID]struct{})
		h.userRooms[user] = joined
	}
	joined[room] = struct{}{}
	rooms := len(h.rooms)
	h.mu.Unlock()

	metrics.ActiveRooms.Set(float64(rooms))
	slog.Debug("user joined room", "user_id", user, "room_id", room)
	return true
}

// Leave removes user from room, deleting the room once its member set is
// empty. Leaving a room the user is not in is a no-op.
func (h *Hub) Leave(user UserID, room RoomID) bool {
	h.mu.Lock()
	members, ok := h.rooms[room]
	if !ok {
		h.mu.Unlock()
		return false
	}
	if _, member := members[user]; !member {
		h.mu.Unlock()
		return false
	}
	h.removeMemberLocked(user, room)
	if joined, ok := h.userRooms[user]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(h.userRooms, user)
		}
	}
	rooms := len(h.rooms)
	h.mu.Unlock()

	metrics.ActiveRooms.Set(float64(rooms))
	slog.Debug("user left room", "user_id", user, "room_id", room)
	return true
}

// removeMemberLocked drops user from the room's member set and deletes the
// room key the instant the set becomes empty. Caller holds h.mu and maintains
// the reverse index.
func (h *Hub) removeMemberLocked(user UserID, room RoomID) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, user)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// --- Snapshots ---
//
// Fanout works against copies taken under the lock so socket writes never run
// with the lock held and concurrent mutation never invalidates an iteration.

func (h *Hub) connSnapshot(user UserID) []*connWriter {
	h.mu.Lock()
	defer h.mu.Unlock()
	return lo.Values(h.conns[user])
}

func (h *Hub) userSnapshot() []UserID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return lo.Keys(h.conns)
}

// RoomMembers returns a snapshot of the room's member set. Unknown rooms yield
// an empty slice.
func (h *Hub) RoomMembers(room RoomID) []UserID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return lo.Keys(h.rooms[room])
}

// UserRooms returns a snapshot of the rooms user currently belongs to.
func (h *Hub) UserRooms(user UserID) []RoomID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return lo.Keys(h.userRooms[user])
}

// --- Presence queries ---

// IsOnline reports whether user holds at least one live connection.
func (h *Hub) IsOnline(user UserID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[user]) > 0
}

// TotalConnections counts live connections across all users.
func (h *Hub) TotalConnections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.totalConnectionsLocked()
}

// ActiveUserCount counts users with at least one live connection.
func (h *Hub) ActiveUserCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// ActiveRoomCount counts rooms with at least one member.
func (h *Hub) ActiveRoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

func (h *Hub) totalConnectionsLocked() int {
	total := 0
	for _, set := range h.conns {
		total += len(set)
	}
	return total
}

// Close tears down every connection, gracefully when possible. Used on
// process shutdown.
func (h *Hub) Close(code int, reason string) {
	h.mu.Lock()
	var writers []*connWriter
	for user, set := range h.conns {
		writers = append(writers, lo.Values(set)...)
		delete(h.conns, user)
	}
	h.rooms = make(map[RoomID]map[UserID]struct{})
	h.userRooms = make(map[UserID]map[RoomID]struct{})
	h.mu.Unlock()

	for _, cw := range writers {
		cw.stopGraceful(code, reason)
	}
	metrics.ActiveConnections.Set(0)
	metrics.ActiveUsers.Set(0)
	metrics.ActiveRooms.Set(0)
	slog.Info("hub closed", "disconnected", len(writers))
}
