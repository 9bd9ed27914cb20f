package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/mohsin924ali/pentrypal/internal/metrics"
	"github.com/mohsin924ali/pentrypal/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser and mobile clients connect from arbitrary origins; the
		// token, not the origin, is the credential.
		return true
	},
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()
	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.ConnectionsRejectedTotal.WithLabelValues(string(reason)).Inc()
		if reason == LimitReasonRate {
			return c.String(http.StatusTooManyRequests, "connection rate limit exceeded")
		}
		return c.String(http.StatusServiceUnavailable, "connection limit reached")
	}
	defer s.limits.Release(ip)

	token := c.Param("token")
	if token == "" {
		token = c.QueryParam("token")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	// Authentication happens inside the session, after the upgrade, so a bad
	// token can be answered with a policy-violation close frame.
	session := realtime.NewSession(s.fanout, s.resolver, s.access)
	session.Run(conn, token)
	return nil
}
