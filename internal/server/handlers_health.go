package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohsin924ali/pentrypal/internal/version"
)

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "build": version.Get()})
}

// handleReadiness reports ready while the service accepts new connections.
// The fanout core holds no external dependencies, so readiness only reflects
// admission capacity.
func (s *Server) handleReadiness(c echo.Context) error {
	if s.limits.Current() >= s.config.MaxConnections {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "at_capacity"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
