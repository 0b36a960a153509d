package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PERPDEX_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned
// Config has NOT been validated; the caller should invoke Config.Validate()
// after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		// A [[markets]] table replaces the default rows rather than
		// merging into them.
		defaults := cfg.Markets
		cfg.Markets = nil
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
		if len(cfg.Markets) == 0 {
			cfg.Markets = defaults
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PERPDEX_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── RPC ──
	setStr(&cfg.RPC.URL, "SOLANA_RPC_URL") // compatibility alias
	setStr(&cfg.RPC.URL, "PERPDEX_RPC_URL")
	setStr(&cfg.RPC.Cluster, "PERPDEX_RPC_CLUSTER")
	setStr(&cfg.RPC.Commitment, "PERPDEX_RPC_COMMITMENT")
	setDuration(&cfg.RPC.Timeout, "PERPDEX_RPC_TIMEOUT")

	// ── Program ──
	setStr(&cfg.Program.ID, "PERPDEX_PROGRAM_ID")
	setStr(&cfg.Program.IDLPath, "PERPDEX_PROGRAM_IDL_PATH")

	// ── Oracle ──
	setFeed(cfg, "ETH", "PERPDEX_ORACLE_ETH_FEED")
	setFeed(cfg, "SOL", "PERPDEX_ORACLE_SOL_FEED")
	setInt(&cfg.Oracle.MaxConcurrency, "PERPDEX_ORACLE_MAX_CONCURRENCY")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "PERPDEX_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "PERPDEX_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PERPDEX_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PERPDEX_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PERPDEX_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PERPDEX_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PERPDEX_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "PERPDEX_REDIS_KEY_PREFIX")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "PERPDEX_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.DSN, "PERPDEX_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PERPDEX_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PERPDEX_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PERPDEX_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PERPDEX_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PERPDEX_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PERPDEX_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PERPDEX_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PERPDEX_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PERPDEX_POSTGRES_RUN_MIGRATIONS")

	// ── Server ──
	setInt(&cfg.Server.Port, "PORT") // compatibility alias
	setInt(&cfg.Server.Port, "PERPDEX_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PERPDEX_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "PERPDEX_SERVER_API_KEY")

	// ── Rate limit ──
	setInt(&cfg.RateLimit.Requests, "PERPDEX_RATE_LIMIT_REQUESTS")
	setDuration(&cfg.RateLimit.Window, "PERPDEX_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PERPDEX_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PERPDEX_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PERPDEX_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Levels, "PERPDEX_NOTIFY_LEVELS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "PERPDEX_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setFeed(cfg *Config, symbol, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if cfg.Oracle.Feeds == nil {
			cfg.Oracle.Feeds = make(map[string]string)
		}
		cfg.Oracle.Feeds[symbol] = v
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
