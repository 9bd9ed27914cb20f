// Package server wires the realtime core to the outside world: the WebSocket
// handshake endpoint with connection admission limits, the administrative
// read/notify surface, and health/metrics endpoints, all served over echo.
package server
