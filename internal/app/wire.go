package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/perpdex/internal/anchor"
	"github.com/alanyoungcy/perpdex/internal/cache/memory"
	"github.com/alanyoungcy/perpdex/internal/cache/redis"
	"github.com/alanyoungcy/perpdex/internal/config"
	"github.com/alanyoungcy/perpdex/internal/domain"
	"github.com/alanyoungcy/perpdex/internal/market"
	"github.com/alanyoungcy/perpdex/internal/notify"
	"github.com/alanyoungcy/perpdex/internal/oracle"
	"github.com/alanyoungcy/perpdex/internal/perpdex"
	"github.com/alanyoungcy/perpdex/internal/platform/solana"
	"github.com/alanyoungcy/perpdex/internal/server/handler"
	"github.com/alanyoungcy/perpdex/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the services need
// to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Chain
	Chain   *solana.Client
	Program domain.PublicKey
	Decoder *perpdex.Decoder
	Oracles *oracle.Adapter

	// Static tables
	Registry *market.Registry
	Feeds    *market.FeedTable

	// Caches; RateLimiter is nil without Redis.
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus

	// Stores; AuditStore is nil without Postgres.
	AuditStore domain.AuditStore

	// Checks probes the optional backends for the health endpoint.
	Checks map[string]handler.Checker

	// Notifications; Notifier has no senders when none are configured.
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Checks: make(map[string]handler.Checker)}

	// --- Static tables ---
	registry, err := market.NewRegistry(marketConfigs(cfg.Markets))
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	deps.Registry = registry

	feeds, err := market.NewFeedTable(cfg.Oracle.Feeds)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	deps.Feeds = feeds

	// --- Program layout ---
	program, err := perpdex.ParseProgramID(cfg.Program.ID)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	deps.Program = program

	schema, err := loadSchema(cfg.Program.IDLPath)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	decoder, err := perpdex.NewDecoder(schema, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	deps.Decoder = decoder

	// --- Solana RPC ---
	chain, err := solana.Dial(ctx, solana.Config{
		URL:        cfg.RPC.URL,
		Commitment: cfg.RPC.Commitment,
		Timeout:    cfg.RPC.Timeout.Duration,
	}, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	closers = append(closers, chain.Close)
	deps.Chain = chain
	deps.Oracles = oracle.NewAdapter(chain, feeds, logger)

	// --- PostgreSQL (optional audit trail) ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.AuditStore = postgres.NewAuditStore(pgClient.Pool())
		deps.Checks["postgres"] = pgClient.Ping
	}

	// --- Redis (optional; the bus falls back to in-process) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.Checks["redis"] = redisClient.Ping
	} else {
		deps.SignalBus = memory.NewSignalBus()
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender("", cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, logger)

	logger.InfoContext(ctx, "wire: dependencies ready",
		slog.String("rpc", cfg.RPC.URL),
		slog.String("program", program.String()),
		slog.String("schema", schema.Version),
		slog.Bool("redis", cfg.Redis.Enabled),
		slog.Bool("postgres", cfg.Postgres.Enabled),
		slog.Int("alert_senders", len(senders)),
	)

	return deps, cleanup, nil
}

func marketConfigs(rows []config.MarketConfig) []domain.MarketConfig {
	out := make([]domain.MarketConfig, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.MarketConfig{
			Symbol:                    domain.Symbol(r.Symbol),
			MaxLeverage:               r.MaxLeverage,
			MaintenanceMarginFraction: r.MaintenanceMargin,
		})
	}
	return out
}

// loadSchema reads an Anchor IDL from path, or returns the built-in layout
// when path is empty.
func loadSchema(path string) (*anchor.Schema, error) {
	if path == "" {
		return perpdex.DefaultSchema(), nil
	}
	schema, err := anchor.LoadIDL(path)
	if err != nil {
		return nil, fmt.Errorf("load idl %s: %w", path, err)
	}
	return schema, nil
}
