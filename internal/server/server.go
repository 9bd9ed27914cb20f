package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mohsin924ali/pentrypal/internal/bridge"
	"github.com/mohsin924ali/pentrypal/internal/config"
	"github.com/mohsin924ali/pentrypal/internal/realtime"
)

// Server exposes the WebSocket endpoint, the administrative read/notify
// surface, and the observability endpoints over echo.
type Server struct {
	echo     *echo.Echo
	config   *config.Config
	fanout   *realtime.Fanout
	notifier bridge.Notifier
	resolver realtime.TokenResolver
	access   realtime.ListAccessChecker
	limits   *ConnectionLimits
}

func New(cfg *config.Config, fanout *realtime.Fanout, notifier bridge.Notifier, resolver realtime.TokenResolver, access realtime.ListAccessChecker) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:     e,
		config:   cfg,
		fanout:   fanout,
		notifier: notifier,
		resolver: resolver,
		access:   access,
		limits:   NewConnectionLimits(cfg.MaxConnections, cfg.MaxConnectionsPerIP, cfg.ConnectionsPerSecond, cfg.ConnectionBurst),
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo exposes the router for handler tests.
func (s *Server) Echo() *echo.Echo { return s.echo }
