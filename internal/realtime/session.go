package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mohsin924ali/pentrypal/internal/logging"
	"github.com/mohsin924ali/pentrypal/internal/metrics"
	"github.com/mohsin924ali/pentrypal/internal/wserrors"
)

// State tracks where a session is in its lifecycle. Closed is terminal.
type State int

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session drives one connection through its lifecycle: authenticate the
// opaque token, register with the hub, run the receive loop, and tear down
// exactly once on close or error. It is the sole writer into the registry and
// directory for its connection.
type Session struct {
	fanout   *Fanout
	resolver TokenResolver
	access   ListAccessChecker

	state State
	user  UserID
	log   *slog.Logger
}

func NewSession(fanout *Fanout, resolver TokenResolver, access ListAccessChecker) *Session {
	if access == nil {
		access = AllowAllLists{}
	}
	return &Session{fanout: fanout, resolver: resolver, access: access, state: StateConnecting, log: slog.Default()}
}

// State reports the current lifecycle state.
func (s *Session) State() State { return s.state }

// User returns the authenticated principal, empty until authentication.
func (s *Session) User() UserID { return s.user }

// Run blocks until the connection closes. The token is resolved before any
// registry mutation: an invalid token closes the socket with a policy
// violation and the hub never sees the connection.
func (s *Session) Run(conn Conn, token string) {
	user, err := s.resolver.Resolve(token)
	if err != nil {
		s.state = StateClosed
		metrics.AuthFailuresTotal.Inc()
		slog.Warn("websocket authentication failed", "error", err)
		closeWithPolicyViolation(conn, err)
		return
	}
	s.user = user
	s.state = StateAuthenticated
	s.log = logging.WithUser(string(user))

	hub := s.fanout.Hub()
	connID := hub.Register(user, conn)
	defer func() {
		s.state = StateClosed
		s.fanout.Disconnect(user, connID)
	}()

	// Confirmation goes to the new connection only, not the user's other
	// devices. The writer owns the socket, so route through it.
	s.sendToConn(hub, connID, NewConnectionEstablished(user, s.fanout.Clock()))
	s.state = StateActive

	// Receive loop: awaiting the next frame is the session's sole suspension
	// point. Transport close or error ends the loop and triggers teardown.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.handle(data)
	}
}

func (s *Session) handle(data []byte) {
	msg, err := DecodeInbound(data)
	if err != nil {
		// Protocol errors are non-fatal: reply to the sender, stay active.
		metrics.ProtocolErrorsTotal.Inc()
		s.log.Debug("protocol error", "error", err)
		s.fanout.SendToUser(s.user, NewErrorReply(wserrors.ClientMessage(err)))
		return
	}

	switch m := msg.(type) {
	case JoinListRoom:
		metrics.InboundMessagesTotal.WithLabelValues(typeJoinListRoom).Inc()
		s.handleJoin(m)
	case LeaveListRoom:
		metrics.InboundMessagesTotal.WithLabelValues(typeLeaveListRoom).Inc()
		s.handleLeave(m)
	case Ping:
		metrics.InboundMessagesTotal.WithLabelValues(typePing).Inc()
		s.fanout.SendToUser(s.user, NewPong(m.Timestamp))
	case GetOnlineStatus:
		metrics.InboundMessagesTotal.WithLabelValues(typeGetOnlineStatus).Inc()
		s.handleOnlineStatus(m)
	case TypingIndicator:
		metrics.InboundMessagesTotal.WithLabelValues(typeTypingIndicator).Inc()
		s.fanout.BroadcastToRoom(ListRoom(m.ListID), NewTypingBroadcast(s.user, m.ListID, m.IsTyping), s.user)
	}
}

func (s *Session) handleJoin(m JoinListRoom) {
	allowed, err := s.access.CanAccessList(s.user, m.ListID)
	if err != nil {
		s.log.Error("list access check failed", "list_id", m.ListID, "error", err)
		allowed = false
	}
	if !allowed {
		reply := NewErrorReply("Access denied to shopping list")
		reply.ListID = m.ListID
		s.fanout.SendToUser(s.user, reply)
		return
	}

	room := ListRoom(m.ListID)
	if !s.fanout.Hub().Join(s.user, room) {
		// Repeated join: confirm again, but do not re-announce to the room.
		s.fanout.SendToUser(s.user, NewRoomJoined(room, s.fanout.Clock()))
		return
	}
	s.fanout.SendToUser(s.user, NewRoomJoined(room, s.fanout.Clock()))
	s.fanout.BroadcastToRoom(room, NewUserJoinedRoom(s.user, room, s.fanout.Clock()), s.user)
}

func (s *Session) handleLeave(m LeaveListRoom) {
	room := ListRoom(m.ListID)
	if !s.fanout.Hub().Leave(s.user, room) {
		return
	}
	s.fanout.BroadcastToRoom(room, NewUserLeftRoom(s.user, room, s.fanout.Clock()), s.user)
}

func (s *Session) handleOnlineStatus(m GetOnlineStatus) {
	status := make(map[UserID]bool, len(m.FriendIDs))
	for _, friend := range m.FriendIDs {
		status[friend] = s.fanout.Hub().IsOnline(friend)
	}
	s.fanout.SendToUser(s.user, NewOnlineStatusUpdate(status))
}

// sendToConn targets one specific connection of the user instead of all of
// them.
func (s *Session) sendToConn(hub *Hub, connID uuid.UUID, msg any) {
	for _, cw := range hub.connSnapshot(s.user) {
		if cw.id != connID {
			continue
		}
		data, err := json.Marshal(msg)
		if err != nil {
			s.log.Error("failed to marshal message", "error", err)
			return
		}
		if !cw.trySend(data) {
			s.fanout.Disconnect(s.user, cw.id)
		}
		return
	}
}

func closeWithPolicyViolation(conn Conn, err error) {
	code := websocket.ClosePolicyViolation
	reason := "authentication failed"
	var structured *wserrors.Error
	if errors.As(err, &structured) {
		code = structured.CloseCode()
		reason = structured.Message
	}
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
	_ = conn.Close()
}
