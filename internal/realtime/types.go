package realtime

import "time"

// UserID is the opaque identifier of an authenticated principal.
type UserID string

// RoomID keys a broadcast group. List-scoped rooms use the "list_" prefix.
type RoomID string

// listRoomPrefix is the id convention shared with every bridge caller.
const listRoomPrefix = "list_"

// ListRoom derives the room id for a shared shopping list.
func ListRoom(listID string) RoomID {
	return RoomID(listRoomPrefix + listID)
}

// Conn is the transport surface the realtime core needs from one live
// full-duplex connection. *websocket.Conn satisfies it; tests substitute fakes.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// TokenResolver is the identity collaborator: it turns an opaque credential
// into a UserID or fails with an authentication error.
type TokenResolver interface {
	Resolve(token string) (UserID, error)
}

// ListAccessChecker is the business-logic collaborator consulted before a user
// may join a list room. An error is treated as denial.
type ListAccessChecker interface {
	CanAccessList(user UserID, listID string) (bool, error)
}

// AllowAllLists grants every user access to every list. Used when the host
// application wires no permission layer.
type AllowAllLists struct{}

func (AllowAllLists) CanAccessList(UserID, string) (bool, error) { return true, nil }
