// Package app provides the top-level application lifecycle management for the
// risk engine. It wires together all dependencies (chain client, decoders,
// caches, stores, services, and the API server) and runs them until the
// context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/perpdex/internal/config"
	"github.com/alanyoungcy/perpdex/internal/notify"
	"github.com/alanyoungcy/perpdex/internal/platform/solana"
	"github.com/alanyoungcy/perpdex/internal/server"
	"github.com/alanyoungcy/perpdex/internal/server/handler"
	"github.com/alanyoungcy/perpdex/internal/server/ws"
	"github.com/alanyoungcy/perpdex/internal/service"
)

// Version is reported by the health endpoint.
var Version = "dev"

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

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

// Run is the main entry point. It wires all dependencies, starts the
// WebSocket hub and HTTP server, and blocks until the context is cancelled.
// Cleanup happens in Close.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("rpc", a.cfg.RPC.URL),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	cluster := a.cfg.RPC.Cluster
	if cluster == "" {
		cluster = solana.ClusterLabel(a.cfg.RPC.URL)
	}

	oracles := service.NewOracleService(deps.Oracles)
	positions := service.NewPositionService(
		service.PositionConfig{Program: deps.Program, OracleConcurrency: a.cfg.Oracle.MaxConcurrency},
		deps.Chain, deps.Decoder, deps.Oracles, deps.Feeds,
		deps.SignalBus, deps.AuditStore, a.logger,
	)
	sims := service.NewSimulationService(deps.Registry, deps.Oracles, deps.SignalBus, deps.AuditStore, a.logger)
	wallets := service.NewWalletService(deps.Chain, cluster, a.cfg.RPC.URL, a.logger)

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(Version, deps.Checks),
		Positions: handler.NewPositionHandler(positions, a.logger),
		Simulate:  handler.NewSimulateHandler(sims, a.logger),
		Oracle:    handler.NewOracleHandler(oracles, a.logger),
		Wallet:    handler.NewWalletHandler(wallets, a.logger),
	}
	if deps.AuditStore != nil {
		handlers.Audit = handler.NewAuditHandler(deps.AuditStore, a.logger)
	}

	hub := ws.NewHub(deps.SignalBus, ws.Config{
		Cluster:        cluster,
		Markets:        deps.Registry.Symbols(),
		StartedAt:      time.Now().UTC(),
		AllowedOrigins: a.cfg.Server.CORSOrigins,
	}, a.logger)

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.RateLimit.Requests,
		RateWindow:  a.cfg.RateWindow(),
	}, handlers, hub, deps.RateLimiter, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("app: ws hub: %w", err)
		}
		return nil
	})

	if deps.Notifier.Enabled() {
		alerter := notify.NewRiskAlerter(deps.SignalBus, deps.Notifier, a.cfg.Notify.Levels, a.logger)
		g.Go(func() error { return alerter.Run(ctx) })
	}

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
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
