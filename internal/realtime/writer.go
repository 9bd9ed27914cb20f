package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/mohsin924ali/pentrypal/internal/metrics"
)

const (
	writeDeadline    = 5 * time.Second
	pingInterval     = 30 * time.Second
	pongDeadline     = 60 * time.Second
	sendBufferSize   = 16
	closeGracePeriod = time.Second
)

// connWriter owns all writes to one connection. Fanout enqueues serialized
// messages on sendCh; the run goroutine drains it in FIFO order, which is the
// only ordering guarantee the engine makes.
type connWriter struct {
	id       uuid.UUID
	conn     Conn
	clock    clockwork.Clock
	sendCh   chan []byte
	doneCh   chan struct{}
	deadCh   chan struct{}
	deadOnce sync.Once
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newConnWriter(conn Conn, clock clockwork.Clock) *connWriter {
	cw := &connWriter{
		id:     uuid.New(),
		conn:   conn,
		clock:  clock,
		sendCh: make(chan []byte, sendBufferSize),
		doneCh: make(chan struct{}),
		deadCh: make(chan struct{}),
	}
	cw.conn.SetPongHandler(func(string) error {
		return cw.conn.SetReadDeadline(cw.clock.Now().Add(pongDeadline))
	})
	_ = cw.conn.SetReadDeadline(cw.clock.Now().Add(pongDeadline))
	cw.wg.Add(1)
	go cw.run()
	return cw
}

func (cw *connWriter) run() {
	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cw.wg.Done()

	for {
		select {
		case msg, ok := <-cw.sendCh:
			if !ok {
				return
			}
			_ = cw.conn.SetWriteDeadline(cw.clock.Now().Add(writeDeadline))
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				// Flag the writer dead so the next fanout attempt fails fast
				// and triggers deregistration. The paired read loop also
				// notices the broken transport and tears the session down.
				cw.markDead()
				return
			}
			metrics.MessagesSentTotal.Inc()
		case <-ticker.Chan():
			_ = cw.conn.SetWriteDeadline(cw.clock.Now().Add(writeDeadline))
			if err := cw.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.PingFailuresTotal.Inc()
				cw.markDead()
				return
			}
		case <-cw.doneCh:
			return
		}
	}
}

// trySend enqueues without blocking. A dead writer or a full buffer means the
// peer is gone or cannot keep up; the caller treats either as a delivery
// failure for this connection.
func (cw *connWriter) trySend(msg []byte) bool {
	select {
	case <-cw.doneCh:
		return false
	case <-cw.deadCh:
		return false
	default:
	}
	select {
	case cw.sendCh <- msg:
		return true
	default:
		return false
	}
}

func (cw *connWriter) markDead() {
	cw.deadOnce.Do(func() { close(cw.deadCh) })
}

func (cw *connWriter) dead() bool {
	select {
	case <-cw.deadCh:
		return true
	default:
		return false
	}
}

func (cw *connWriter) stop() {
	cw.stopOnce.Do(func() {
		close(cw.doneCh)
		_ = cw.conn.Close()
	})
	cw.wg.Wait()
}

// stopGraceful writes a close frame with the given code and reason before
// closing. The run goroutine must exit first so the close frame is not written
// concurrently with a pending message.
func (cw *connWriter) stopGraceful(code int, reason string) {
	cw.stopOnce.Do(func() {
		close(cw.doneCh)
		cw.wg.Wait()

		msg := websocket.FormatCloseMessage(code, reason)
		deadline := cw.clock.Now().Add(closeGracePeriod)
		_ = cw.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = cw.conn.Close()
	})
	cw.wg.Wait()
}
