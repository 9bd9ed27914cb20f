package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/mohsin924ali/pentrypal/internal/auth"
	"github.com/mohsin924ali/pentrypal/internal/bridge"
	"github.com/mohsin924ali/pentrypal/internal/config"
	"github.com/mohsin924ali/pentrypal/internal/logging"
	"github.com/mohsin924ali/pentrypal/internal/realtime"
	"github.com/mohsin924ali/pentrypal/internal/server"
	"github.com/mohsin924ali/pentrypal/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}

	logging.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("application starting", "env", cfg.AppEnv, "port", cfg.Port, "build", version.Get().String())

	clock := clockwork.NewRealClock()
	hub := realtime.NewHub(clock)
	fanout := realtime.NewFanout(hub, clock)
	notifier := bridge.New(fanout)
	resolver := auth.NewJWTResolver(cfg.JWTSecret)

	// The permission layer lives with the business backend; the fanout
	// service on its own admits any authenticated user into any list room.
	var access realtime.ListAccessChecker = realtime.AllowAllLists{}

	srv := server.New(cfg, fanout, notifier, resolver, access)

	done := runGracefulShutdown(srv, hub, cfg)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}

func runGracefulShutdown(srv *server.Server, hub *realtime.Hub, cfg *config.Config) <-chan struct{} {
	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		slog.Info("shutdown signal received, cleaning up")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}

		hub.Close(websocket.CloseGoingAway, "Server shutting down")
		close(done)
	}()

	return done
}
