// Package config defines the top-level configuration for the risk engine and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mr-tron/base58"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by PERPDEX_* environment variables.
type Config struct {
	RPC       RPCConfig       `toml:"rpc"`
	Program   ProgramConfig   `toml:"program"`
	Oracle    OracleConfig    `toml:"oracle"`
	Markets   []MarketConfig  `toml:"markets"`
	Redis     RedisConfig     `toml:"redis"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Server    ServerConfig    `toml:"server"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Notify    NotifyConfig    `toml:"notify"`
	LogLevel  string          `toml:"log_level"`
}

// RPCConfig holds the Solana JSON-RPC endpoint.
type RPCConfig struct {
	URL string `toml:"url"`
	// Cluster overrides the label derived from URL.
	Cluster    string   `toml:"cluster"`
	Commitment string   `toml:"commitment"`
	Timeout    duration `toml:"timeout"`
}

// ProgramConfig identifies the perp program and its account layout.
type ProgramConfig struct {
	ID string `toml:"id"`
	// IDLPath points at an Anchor IDL JSON file. Empty uses the built-in
	// schema.
	IDLPath string `toml:"idl_path"`
}

// OracleConfig holds the Pyth feed table.
type OracleConfig struct {
	Feeds          map[string]string `toml:"feeds"`
	MaxConcurrency int               `toml:"max_concurrency"`
}

// MarketConfig is one row of the risk table.
type MarketConfig struct {
	Symbol            string  `toml:"symbol"`
	MaxLeverage       float64 `toml:"max_leverage"`
	MaintenanceMargin float64 `toml:"maintenance_margin"`
}

// RedisConfig holds Redis connection parameters. Redis backs rate limiting
// and cross-process event fan-out.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// PostgresConfig holds PostgreSQL connection parameters for the audit log.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// RateLimitConfig bounds requests per client IP. Applies only with Redis.
type RateLimitConfig struct {
	Requests int      `toml:"requests"`
	Window   duration `toml:"window"`
}

// NotifyConfig holds alert channel credentials. Alerts fire when a listed
// position enters one of Levels.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Levels            []string `toml:"levels"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		RPC: RPCConfig{
			URL:        "https://api.devnet.solana.com",
			Commitment: "confirmed",
			Timeout:    duration{15 * time.Second},
		},
		Program: ProgramConfig{
			ID: "HGqW2bHqovHnVqMDsz59TdcXGZi5eEbVWVDuvScDUrEQ",
		},
		Oracle: OracleConfig{
			Feeds: map[string]string{
				"ETH": "EdVCmQ9FSPcVe5YySXDPCRmc8aDQLKJ9xvYBMZPie1Vw",
				"SOL": "J83w4HKfqxwcq3BEMMkPFSppX3gqekLyLJBexebFVkix",
			},
			MaxConcurrency: 8,
		},
		Markets: []MarketConfig{
			{Symbol: "ETH", MaxLeverage: 10, MaintenanceMargin: 0.06},
			{Symbol: "SOL", MaxLeverage: 8, MaintenanceMargin: 0.08},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "perpdex:",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "perpdex",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Server: ServerConfig{
			Port:        4000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		RateLimit: RateLimitConfig{
			Requests: 120,
			Window:   duration{time.Minute},
		},
		Notify: NotifyConfig{
			Levels: []string{"high"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validCommitments = map[string]bool{
	"processed": true,
	"confirmed": true,
	"finalized": true,
}

var validRiskLevels = map[string]bool{
	"safe":    true,
	"caution": true,
	"high":    true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// RPC
	if strings.TrimSpace(c.RPC.URL) == "" {
		errs = append(errs, "rpc: url must not be empty")
	}
	if !validCommitments[c.RPC.Commitment] {
		errs = append(errs, fmt.Sprintf("rpc: unknown commitment %q (valid: processed, confirmed, finalized)", c.RPC.Commitment))
	}
	if c.RPC.Timeout.Duration <= 0 {
		errs = append(errs, "rpc: timeout must be > 0")
	}

	// Program
	if !isPublicKey(c.Program.ID) {
		errs = append(errs, fmt.Sprintf("program: id %q is not a base58 public key", c.Program.ID))
	}

	// Oracle
	for sym, key := range c.Oracle.Feeds {
		if !isPublicKey(key) {
			errs = append(errs, fmt.Sprintf("oracle: feed %s: %q is not a base58 public key", sym, key))
		}
	}
	if c.Oracle.MaxConcurrency < 1 {
		errs = append(errs, "oracle: max_concurrency must be >= 1")
	}

	// Markets
	if len(c.Markets) == 0 {
		errs = append(errs, "markets: at least one market is required")
	}
	seen := make(map[string]bool, len(c.Markets))
	for _, m := range c.Markets {
		sym := strings.ToUpper(strings.TrimSpace(m.Symbol))
		if sym == "" {
			errs = append(errs, "markets: symbol must not be empty")
			continue
		}
		if seen[sym] {
			errs = append(errs, fmt.Sprintf("markets: duplicate symbol %s", sym))
		}
		seen[sym] = true
		if m.MaxLeverage < 1 {
			errs = append(errs, fmt.Sprintf("markets: %s: max_leverage must be >= 1", sym))
		}
		if m.MaintenanceMargin <= 0 || m.MaintenanceMargin >= 1 {
			errs = append(errs, fmt.Sprintf("markets: %s: maintenance_margin must be in (0, 1)", sym))
		}
		if !c.hasFeed(sym) {
			errs = append(errs, fmt.Sprintf("markets: %s: no oracle feed configured", sym))
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	// Rate limit
	if c.RateLimit.Requests < 0 {
		errs = append(errs, "rate_limit: requests must be >= 0")
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Window.Duration <= 0 {
		errs = append(errs, "rate_limit: window must be > 0 when requests is set")
	}

	// Notify
	for _, l := range c.Notify.Levels {
		if !validRiskLevels[strings.ToLower(strings.TrimSpace(l))] {
			errs = append(errs, fmt.Sprintf("notify: unknown level %q (valid: safe, caution, high)", l))
		}
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// RateWindow returns the rate limit window.
func (c *Config) RateWindow() time.Duration { return c.RateLimit.Window.Duration }

func (c *Config) hasFeed(symbol string) bool {
	for s := range c.Oracle.Feeds {
		if strings.EqualFold(strings.TrimSpace(s), symbol) {
			return true
		}
	}
	return false
}

func isPublicKey(s string) bool {
	b, err := base58.Decode(s)
	return err == nil && len(b) == 32
}
