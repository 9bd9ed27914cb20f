package realtime

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohsin924ali/pentrypal/internal/wserrors"
)

type stubResolver map[string]UserID

func (r stubResolver) Resolve(token string) (UserID, error) {
	if user, ok := r[token]; ok {
		return user, nil
	}
	return "", wserrors.Authentication("invalid authentication token", nil)
}

type denyLists map[string]bool

func (d denyLists) CanAccessList(_ UserID, listID string) (bool, error) {
	return !d[listID], nil
}

var testTokens = stubResolver{
	"token-a": "alice",
	"token-b": "bob",
	"token-c": "carol",
}

type sessionHarness struct {
	fanout *Fanout
	hub    *Hub
}

func newSessionHarness() *sessionHarness {
	clock := clockwork.NewFakeClock()
	hub := NewHub(clock)
	return &sessionHarness{fanout: NewFanout(hub, clock), hub: hub}
}

// start runs a session for conn in the background and blocks until it is
// active (or, for bad tokens, until Run returned).
func (h *sessionHarness) start(t *testing.T, conn *fakeConn, token string, access ListAccessChecker) *Session {
	t.Helper()
	session := NewSession(h.fanout, testTokens, access)
	done := make(chan struct{})
	go func() {
		session.Run(conn, token)
		close(done)
	}()
	t.Cleanup(func() {
		conn.Close()
		select {
		case <-done:
		case <-time.After(waitFor):
			t.Error("session did not terminate")
		}
	})

	if _, ok := testTokens[token]; ok {
		require.Eventually(t, func() bool {
			return conn.countType(t, TypeConnectionEstablished) == 1
		}, waitFor, tick, "session never became active")
	} else {
		select {
		case <-done:
		case <-time.After(waitFor):
			t.Fatal("session with bad token did not close")
		}
	}
	return session
}

func TestSession_AuthenticationFailureClosesWithPolicyViolation(t *testing.T) {
	h := newSessionHarness()
	conn := newFakeConn()

	session := h.start(t, conn, "bad-token", nil)

	code, _ := conn.lastClose()
	assert.Equal(t, websocket.ClosePolicyViolation, code)
	assert.Equal(t, StateClosed, session.State())

	// Registry was never touched: no presence, no rooms, no connections.
	assert.Equal(t, 0, h.hub.TotalConnections())
	assert.Equal(t, 0, h.hub.ActiveUserCount())
	assert.Equal(t, 0, h.hub.ActiveRoomCount())
}

func TestSession_ConnectionEstablishedGoesToNewConnectionOnly(t *testing.T) {
	h := newSessionHarness()

	first := newFakeConn()
	h.start(t, first, "token-a", nil)

	second := newFakeConn()
	h.start(t, second, "token-a", nil)

	assert.Equal(t, 1, second.countType(t, TypeConnectionEstablished))
	assert.Equal(t, 1, first.countType(t, TypeConnectionEstablished), "existing device must not get a second confirmation")
	assert.Equal(t, 2, h.hub.TotalConnections())
}

func TestSession_JoinRoom(t *testing.T) {
	h := newSessionHarness()
	conn := newFakeConn()
	session := h.start(t, conn, "token-a", nil)

	conn.send(t, map[string]any{"type": "join_list_room", "list_id": "42"})

	require.Eventually(t, func() bool {
		return conn.countType(t, TypeRoomJoined) == 1
	}, waitFor, tick)

	joined := conn.lastOfType(t, TypeRoomJoined)
	assert.Equal(t, "list_42", joined["room_id"])
	assert.Contains(t, h.hub.RoomMembers("list_42"), UserID("alice"))
	assert.Equal(t, StateActive, session.State())
	assert.Equal(t, 0, conn.countType(t, TypeUserJoinedRoom), "joiner must not see their own join event")
}

// Scenario: alice on two devices and bob on one all join list_42. Each side
// sees the other's join exactly once, never their own.
func TestSession_TwoUsersJoinSameRoom(t *testing.T) {
	h := newSessionHarness()

	aliceConn1, aliceConn2, bobConn := newFakeConn(), newFakeConn(), newFakeConn()
	h.start(t, aliceConn1, "token-a", nil)
	h.start(t, aliceConn2, "token-a", nil)
	h.start(t, bobConn, "token-b", nil)

	aliceConn1.send(t, map[string]any{"type": "join_list_room", "list_id": "42"})
	require.Eventually(t, func() bool {
		return aliceConn1.countType(t, TypeRoomJoined) == 1
	}, waitFor, tick)

	bobConn.send(t, map[string]any{"type": "join_list_room", "list_id": "42"})
	require.Eventually(t, func() bool {
		return bobConn.countType(t, TypeRoomJoined) == 1
	}, waitFor, tick)

	assert.ElementsMatch(t, []UserID{"alice", "bob"}, h.hub.RoomMembers("list_42"))

	// Bob's join reaches both of alice's devices, excluding bob.
	require.Eventually(t, func() bool {
		return aliceConn1.countType(t, TypeUserJoinedRoom) == 1 &&
			aliceConn2.countType(t, TypeUserJoinedRoom) == 1
	}, waitFor, tick)
	event := aliceConn1.lastOfType(t, TypeUserJoinedRoom)
	assert.Equal(t, "bob", event["user_id"])
	assert.Equal(t, 0, bobConn.countType(t, TypeUserJoinedRoom))
}

func TestSession_JoinDeniedByAccessChecker(t *testing.T) {
	h := newSessionHarness()
	conn := newFakeConn()
	h.start(t, conn, "token-a", denyLists{"42": true})

	conn.send(t, map[string]any{"type": "join_list_room", "list_id": "42"})

	require.Eventually(t, func() bool {
		return conn.countType(t, TypeError) == 1
	}, waitFor, tick)

	reply := conn.lastOfType(t, TypeError)
	assert.Equal(t, "42", reply["list_id"])
	assert.Equal(t, 0, h.hub.ActiveRoomCount(), "denied join must create no room state")
}

func TestSession_LeaveRoomNotifiesRemainingMembers(t *testing.T) {
	h := newSessionHarness()

	aliceConn, bobConn := newFakeConn(), newFakeConn()
	h.start(t, aliceConn, "token-a", nil)
	h.start(t, bobConn, "token-b", nil)

	aliceConn.send(t, map[string]any{"type": "join_list_room", "list_id": "42"})
	bobConn.send(t, map[string]any{"type": "join_list_room", "list_id": "42"})
	require.Eventually(t, func() bool {
		return len(h.hub.RoomMembers("list_42")) == 2
	}, waitFor, tick)

	aliceConn.send(t, map[string]any{"type": "leave_list_room", "list_id": "42"})

	require.Eventually(t, func() bool {
		return bobConn.countType(t, TypeUserLeftRoom) == 1
	}, waitFor, tick)
	assert.Equal(t, 0, aliceConn.countType(t, TypeUserLeftRoom), "leaver must not see their own leave event")
	assert.NotContains(t, h.hub.RoomMembers("list_42"), UserID("alice"))
}

func TestSession_PingEchoesTimestampVerbatim(t *testing.T) {
	h := newSessionHarness()
	conn := newFakeConn()
	h.start(t, conn, "token-a", nil)

	// Whatever JSON type the client sends comes back untouched, and the
	// server adds no timestamp of its own.
	conn.sendRaw(`{"type":"ping","timestamp":1712345678901}`)
	require.Eventually(t, func() bool {
		return conn.countType(t, TypePong) == 1
	}, waitFor, tick)
	pong := conn.lastOfType(t, TypePong)
	assert.Equal(t, float64(1712345678901), pong["timestamp"])

	conn.sendRaw(`{"type":"ping","timestamp":"2026-08-28T10:00:00Z"}`)
	require.Eventually(t, func() bool {
		return conn.countType(t, TypePong) == 2
	}, waitFor, tick)
	pong = conn.lastOfType(t, TypePong)
	assert.Equal(t, "2026-08-28T10:00:00Z", pong["timestamp"])
}

func TestSession_OnlineStatusBatchesFriends(t *testing.T) {
	h := newSessionHarness()

	aliceConn, bobConn := newFakeConn(), newFakeConn()
	h.start(t, aliceConn, "token-a", nil)
	h.start(t, bobConn, "token-b", nil)

	aliceConn.send(t, map[string]any{
		"type":       "get_online_status",
		"friend_ids": []string{"bob", "carol"},
	})

	require.Eventually(t, func() bool {
		return aliceConn.countType(t, TypeOnlineStatusUpdate) == 1
	}, waitFor, tick)

	update := aliceConn.lastOfType(t, TypeOnlineStatusUpdate)
	data := update["data"].(map[string]any)
	assert.Equal(t, true, data["bob"])
	assert.Equal(t, false, data["carol"])
}

func TestSession_TypingIndicatorExcludesSender(t *testing.T) {
	h := newSessionHarness()

	aliceConn, bobConn := newFakeConn(), newFakeConn()
	h.start(t, aliceConn, "token-a", nil)
	h.start(t, bobConn, "token-b", nil)

	aliceConn.send(t, map[string]any{"type": "join_list_room", "list_id": "42"})
	bobConn.send(t, map[string]any{"type": "join_list_room", "list_id": "42"})
	require.Eventually(t, func() bool {
		return len(h.hub.RoomMembers("list_42")) == 2
	}, waitFor, tick)

	aliceConn.send(t, map[string]any{"type": "typing_indicator", "list_id": "42", "is_typing": true})

	require.Eventually(t, func() bool {
		return bobConn.countType(t, TypeTypingIndicator) == 1
	}, waitFor, tick)
	event := bobConn.lastOfType(t, TypeTypingIndicator)
	assert.Equal(t, "alice", event["user_id"])
	assert.Equal(t, true, event["is_typing"])
	assert.Equal(t, 0, aliceConn.countType(t, TypeTypingIndicator))
}

func TestSession_ProtocolErrorsAreNotFatal(t *testing.T) {
	h := newSessionHarness()
	conn := newFakeConn()
	h.start(t, conn, "token-a", nil)

	conn.sendRaw(`this is not json`)
	conn.sendRaw(`{"type":"subscribe_everything"}`)
	conn.sendRaw(`{"type":"join_list_room"}`)

	require.Eventually(t, func() bool {
		return conn.countType(t, TypeError) == 3
	}, waitFor, tick)

	// The connection stays active and keeps serving.
	conn.sendRaw(`{"type":"ping","timestamp":1}`)
	require.Eventually(t, func() bool {
		return conn.countType(t, TypePong) == 1
	}, waitFor, tick)
	assert.True(t, h.hub.IsOnline("alice"))
}

// Scenario: alice's only connection closes while she shares a room with bob.
func TestSession_DisconnectCascade(t *testing.T) {
	h := newSessionHarness()

	aliceConn, bobConn := newFakeConn(), newFakeConn()
	h.start(t, aliceConn, "token-a", nil)
	h.start(t, bobConn, "token-b", nil)

	aliceConn.send(t, map[string]any{"type": "join_list_room", "list_id": "42"})
	bobConn.send(t, map[string]any{"type": "join_list_room", "list_id": "42"})
	require.Eventually(t, func() bool {
		return len(h.hub.RoomMembers("list_42")) == 2
	}, waitFor, tick)

	aliceConn.Close()

	require.Eventually(t, func() bool {
		return bobConn.countType(t, TypeUserLeftRoom) == 1
	}, waitFor, tick)
	left := bobConn.lastOfType(t, TypeUserLeftRoom)
	assert.Equal(t, "alice", left["user_id"])
	assert.Equal(t, "list_42", left["room_id"])

	assert.False(t, h.hub.IsOnline("alice"))
	assert.NotContains(t, h.hub.RoomMembers("list_42"), UserID("alice"))
	assertIndexConsistent(t, h.hub)
}
