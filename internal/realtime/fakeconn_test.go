package realtime

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory Conn for tests: written frames are recorded,
// inbound frames are scripted through a channel, and writes can be made to
// fail to exercise the self-healing path.
type fakeConn struct {
	mu          sync.Mutex
	frames      [][]byte
	closeCode   int
	closeReason string
	failWrites  bool
	closed      bool

	inbound   chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg, ok := <-c.inbound:
		if !ok {
			return 0, nil, errors.New("use of closed connection")
		}
		return websocket.TextMessage, msg, nil
	case <-c.done:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites {
		return errors.New("broken pipe")
	}
	switch messageType {
	case websocket.TextMessage:
		c.frames = append(c.frames, append([]byte(nil), data...))
	case websocket.CloseMessage:
		if len(data) >= 2 {
			c.closeCode = int(binary.BigEndian.Uint16(data[:2]))
			c.closeReason = string(data[2:])
		}
	}
	return nil
}

func (c *fakeConn) WriteControl(messageType int, data []byte, _ time.Time) error {
	return c.WriteMessage(messageType, data)
}

func (c *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
	return nil
}

func (c *fakeConn) setFailWrites(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failWrites = fail
}

// send scripts one inbound client frame.
func (c *fakeConn) send(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	c.inbound <- data
}

func (c *fakeConn) sendRaw(raw string) {
	c.inbound <- []byte(raw)
}

// received decodes every recorded text frame.
func (c *fakeConn) received(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, frame := range c.frames {
		var msg map[string]any
		require.NoError(t, json.Unmarshal(frame, &msg))
		out = append(out, msg)
	}
	return out
}

// countType counts recorded frames carrying the given type tag.
func (c *fakeConn) countType(t *testing.T, msgType string) int {
	t.Helper()
	count := 0
	for _, msg := range c.received(t) {
		if msg["type"] == msgType {
			count++
		}
	}
	return count
}

// lastOfType returns the most recent frame of the given type, or nil.
func (c *fakeConn) lastOfType(t *testing.T, msgType string) map[string]any {
	t.Helper()
	var last map[string]any
	for _, msg := range c.received(t) {
		if msg["type"] == msgType {
			last = msg
		}
	}
	return last
}

func (c *fakeConn) lastClose() (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode, c.closeReason
}
