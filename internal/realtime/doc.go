// Package realtime implements the connection/room fanout core: a registry of
// live WebSocket connections per user, a bidirectional room membership index,
// best-effort fanout with self-healing deregistration of failed connections,
// and the per-connection session lifecycle (authenticate, receive loop, teardown).
//
// Registry and directory mutations run under a single mutex for their full
// compound duration. Actual socket writes never happen under that lock: fanout
// takes a snapshot, releases the lock, then enqueues to per-connection writer
// goroutines, so a stalled peer cannot block unrelated joins or disconnects.
package realtime
