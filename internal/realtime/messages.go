package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Outbound message type tags (server -> client).
const (
	TypeConnectionEstablished = "connection_established"
	TypeRoomJoined            = "room_joined"
	TypeUserJoinedRoom        = "user_joined_room"
	TypeUserLeftRoom          = "user_left_room"
	TypePong                  = "pong"
	TypeOnlineStatusUpdate    = "online_status_update"
	TypeTypingIndicator       = "typing_indicator"
	TypeError                 = "error"
	TypeNotification          = "notification"
	TypeListUpdate            = "list_update"
	TypeItemUpdate            = "item_update"
	TypeFriendRequest         = "friend_request"
	TypeFriendStatusUpdate    = "friend_status_update"
	TypeAdminBroadcast        = "admin_broadcast"
)

// isoNow renders the current time as ISO-8601 UTC, the timestamp format every
// outbound event carries.
func isoNow(clock clockwork.Clock) string {
	return clock.Now().UTC().Format(time.RFC3339)
}

type ConnectionEstablished struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	UserID    UserID `json:"user_id"`
	Timestamp string `json:"timestamp"`
}

func NewConnectionEstablished(user UserID, clock clockwork.Clock) ConnectionEstablished {
	return ConnectionEstablished{
		Type:      TypeConnectionEstablished,
		Message:   "Connected to real-time updates",
		UserID:    user,
		Timestamp: isoNow(clock),
	}
}

type RoomJoined struct {
	Type      string `json:"type"`
	RoomID    RoomID `json:"room_id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func NewRoomJoined(room RoomID, clock clockwork.Clock) RoomJoined {
	return RoomJoined{
		Type:      TypeRoomJoined,
		RoomID:    room,
		Message:   fmt.Sprintf("Joined room %s", room),
		Timestamp: isoNow(clock),
	}
}

type RoomPresenceEvent struct {
	Type      string `json:"type"`
	RoomID    RoomID `json:"room_id"`
	UserID    UserID `json:"user_id"`
	Timestamp string `json:"timestamp"`
}

func NewUserJoinedRoom(user UserID, room RoomID, clock clockwork.Clock) RoomPresenceEvent {
	return RoomPresenceEvent{Type: TypeUserJoinedRoom, RoomID: room, UserID: user, Timestamp: isoNow(clock)}
}

func NewUserLeftRoom(user UserID, room RoomID, clock clockwork.Clock) RoomPresenceEvent {
	return RoomPresenceEvent{Type: TypeUserLeftRoom, RoomID: room, UserID: user, Timestamp: isoNow(clock)}
}

// Pong echoes the client-supplied timestamp verbatim; no server timestamp is
// added.
type Pong struct {
	Type      string          `json:"type"`
	Timestamp json.RawMessage `json:"timestamp"`
}

func NewPong(timestamp json.RawMessage) Pong {
	return Pong{Type: TypePong, Timestamp: timestamp}
}

type OnlineStatusUpdate struct {
	Type string          `json:"type"`
	Data map[UserID]bool `json:"data"`
}

func NewOnlineStatusUpdate(status map[UserID]bool) OnlineStatusUpdate {
	return OnlineStatusUpdate{Type: TypeOnlineStatusUpdate, Data: status}
}

type TypingBroadcast struct {
	Type     string `json:"type"`
	ListID   string `json:"list_id"`
	UserID   UserID `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}

func NewTypingBroadcast(user UserID, listID string, isTyping bool) TypingBroadcast {
	return TypingBroadcast{Type: TypeTypingIndicator, ListID: listID, UserID: user, IsTyping: isTyping}
}

type ErrorReply struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	ListID  string `json:"list_id,omitempty"`
}

func NewErrorReply(message string) ErrorReply {
	return ErrorReply{Type: TypeError, Message: message}
}

type Notification struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

func NewNotification(data any, clock clockwork.Clock) Notification {
	return Notification{Type: TypeNotification, Data: data, Timestamp: isoNow(clock)}
}

type ListEvent struct {
	Type      string `json:"type"`
	ListID    string `json:"list_id"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

func NewListUpdate(data any, listID string, clock clockwork.Clock) ListEvent {
	return ListEvent{Type: TypeListUpdate, ListID: listID, Data: data, Timestamp: isoNow(clock)}
}

func NewItemUpdate(data any, listID string, clock clockwork.Clock) ListEvent {
	return ListEvent{Type: TypeItemUpdate, ListID: listID, Data: data, Timestamp: isoNow(clock)}
}

type FriendEvent struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

func NewFriendRequest(data any, clock clockwork.Clock) FriendEvent {
	return FriendEvent{Type: TypeFriendRequest, Data: data, Timestamp: isoNow(clock)}
}

func NewFriendStatusUpdate(data any, clock clockwork.Clock) FriendEvent {
	return FriendEvent{Type: TypeFriendStatusUpdate, Data: data, Timestamp: isoNow(clock)}
}

type AdminBroadcast struct {
	Type     string `json:"type"`
	Data     any    `json:"data"`
	FromUser UserID `json:"from_user"`
}

func NewAdminBroadcast(data any, from UserID) AdminBroadcast {
	return AdminBroadcast{Type: TypeAdminBroadcast, Data: data, FromUser: from}
}
