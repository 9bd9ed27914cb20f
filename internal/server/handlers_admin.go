package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohsin924ali/pentrypal/internal/realtime"
)

const userContextKey = "authenticated_user"

// requireAuth resolves the bearer token and stores the user id in the request
// context. Used by the admin surface only; websocket sessions authenticate
// themselves.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
		}
		user, err := s.resolver.Resolve(token)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		}
		c.Set(userContextKey, user)
		return next(c)
	}
}

// handleStats returns the administrative read surface: pure reads, no side
// effects.
func (s *Server) handleStats(c echo.Context) error {
	hub := s.fanout.Hub()
	return c.JSON(http.StatusOK, map[string]any{
		"total_connections": hub.TotalConnections(),
		"active_users":      hub.ActiveUserCount(),
		"active_rooms":      hub.ActiveRoomCount(),
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
	})
}

// handleBroadcast pushes an admin_broadcast to every connected user.
func (s *Server) handleBroadcast(c echo.Context) error {
	var payload map[string]any
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
	}
	from, _ := c.Get(userContextKey).(realtime.UserID)
	s.fanout.BroadcastToAll(realtime.NewAdminBroadcast(payload, from))
	return c.JSON(http.StatusOK, map[string]string{"message": "Broadcast sent successfully"})
}

// handleNotify pushes a notification to one user.
func (s *Server) handleNotify(c echo.Context) error {
	userID := c.Param("user_id")
	var payload map[string]any
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
	}
	s.notifier.NotifyGeneric(payload, userID)
	return c.JSON(http.StatusOK, map[string]string{"message": "Notification sent to user " + userID})
}
