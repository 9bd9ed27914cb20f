package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability (no auth)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Realtime endpoint. Token via query param; the path-style variant exists
	// for clients that cannot set query params on websocket URLs.
	s.echo.GET("/ws", s.handleWebSocket)
	s.echo.GET("/ws/:token", s.handleWebSocket)

	// Administrative surface. Stats is a pure read and stays open; the
	// mutating endpoints require a bearer token.
	s.echo.GET("/ws/stats", s.handleStats)
	s.echo.POST("/ws/broadcast", s.handleBroadcast, s.requireAuth)
	s.echo.POST("/ws/notify/:user_id", s.handleNotify, s.requireAuth)
}
