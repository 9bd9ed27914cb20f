package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/mohsin924ali/pentrypal/internal/wserrors"
)

// Inbound is the closed set of client control messages. Decoding happens once
// at the boundary; handlers switch over the concrete types and never touch raw
// JSON.
type Inbound interface{ inbound() }

type JoinListRoom struct {
	ListID string `json:"list_id"`
}

type LeaveListRoom struct {
	ListID string `json:"list_id"`
}

type Ping struct {
	// Echoed back verbatim in the pong reply, whatever its JSON type.
	Timestamp json.RawMessage `json:"timestamp"`
}

type GetOnlineStatus struct {
	FriendIDs []UserID `json:"friend_ids"`
}

type TypingIndicator struct {
	ListID   string `json:"list_id"`
	IsTyping bool   `json:"is_typing"`
}

func (JoinListRoom) inbound()    {}
func (LeaveListRoom) inbound()   {}
func (Ping) inbound()            {}
func (GetOnlineStatus) inbound() {}
func (TypingIndicator) inbound() {}

// Inbound message type tags (client -> server).
const (
	typeJoinListRoom    = "join_list_room"
	typeLeaveListRoom   = "leave_list_room"
	typePing            = "ping"
	typeGetOnlineStatus = "get_online_status"
	typeTypingIndicator = "typing_indicator"
)

// DecodeInbound parses one client frame into its typed form. Malformed JSON,
// a missing or unknown type tag, and schema violations all come back as
// protocol errors; the session answers those with an error reply and stays
// active.
func DecodeInbound(data []byte) (Inbound, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, wserrors.Protocol("malformed message", err)
	}

	switch envelope.Type {
	case typeJoinListRoom:
		var msg JoinListRoom
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, wserrors.Protocol("malformed join_list_room message", err)
		}
		if msg.ListID == "" {
			return nil, wserrors.Protocol("join_list_room requires list_id", nil)
		}
		return msg, nil

	case typeLeaveListRoom:
		var msg LeaveListRoom
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, wserrors.Protocol("malformed leave_list_room message", err)
		}
		if msg.ListID == "" {
			return nil, wserrors.Protocol("leave_list_room requires list_id", nil)
		}
		return msg, nil

	case typePing:
		var msg Ping
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, wserrors.Protocol("malformed ping message", err)
		}
		return msg, nil

	case typeGetOnlineStatus:
		var msg GetOnlineStatus
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, wserrors.Protocol("malformed get_online_status message", err)
		}
		return msg, nil

	case typeTypingIndicator:
		var msg TypingIndicator
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, wserrors.Protocol("malformed typing_indicator message", err)
		}
		if msg.ListID == "" {
			return nil, wserrors.Protocol("typing_indicator requires list_id", nil)
		}
		return msg, nil

	default:
		// Default arm keeps the union closed against future client versions.
		return nil, wserrors.Protocol(fmt.Sprintf("unknown message type: %s", envelope.Type), nil)
	}
}
