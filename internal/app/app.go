// Package app provides the top-level application lifecycle management for the
// paper trading engine. It wires together all dependencies (stores, caches,
// the price feed, services, and notifications) and runs the HTTP server, the
// WebSocket hub, and the trigger poller under one errgroup.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/papertrader/internal/config"
	"github.com/alanyoungcy/papertrader/internal/server"
	"github.com/alanyoungcy/papertrader/internal/server/handler"
	"github.com/alanyoungcy/papertrader/internal/server/ws"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the HTTP
// server, WebSocket hub, and poller, and blocks until the context is
// cancelled or one of them fails. On return the caller should invoke Close.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	hub := ws.NewHub(deps.SignalBus, a.logger)

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.logger),
		Signals:   handler.NewSignalHandler(deps.Positions, deps.Throttle, a.logger),
		Positions: handler.NewPositionHandler(deps.Positions, deps.KillSwitch, a.logger),
		Portfolio: handler.NewPortfolioHandler(deps.Stats, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimitPerMin: a.cfg.Server.RateLimitPerMin,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(ctx)
	})

	g.Go(func() error {
		return srv.Start()
	})

	// Shut the HTTP server down when the group context ends so Start returns.
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if deps.Poller != nil {
		g.Go(func() error {
			return deps.Poller.RunLoop(ctx, a.cfg.Poller.Interval.Duration)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
