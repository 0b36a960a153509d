package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 15*time.Second, cfg.RPC.Timeout.Duration)
	assert.Len(t, cfg.Markets, 2)
	assert.Equal(t, time.Minute, cfg.RateWindow())
}

func TestLoadFile(t *testing.T) {
	path := writeTOML(t, `
log_level = "debug"

[rpc]
url = "https://api.mainnet-beta.solana.com"
timeout = "3s"

[oracle.feeds]
BTC = "GVXRSBjFk6e6J3NbVPXohDJetcTjaeeuykUpbQF8UoMU"

[[markets]]
symbol = "BTC"
max_leverage = 20
maintenance_margin = 0.05

[server]
port = 9090
api_key = "topsecret"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.RPC.URL)
	assert.Equal(t, 3*time.Second, cfg.RPC.Timeout.Duration)
	assert.Equal(t, "confirmed", cfg.RPC.Commitment, "untouched defaults survive")
	require.Len(t, cfg.Markets, 1, "file markets replace defaults")
	assert.Equal(t, "BTC", cfg.Markets[0].Symbol)
	assert.Len(t, cfg.Oracle.Feeds, 3, "feeds merge with defaults")
	assert.Equal(t, 9090, cfg.Server.Port)
	require.NoError(t, cfg.Validate())
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Len(t, cfg.Markets, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SOLANA_RPC_URL", "http://alias:8899")
	t.Setenv("PERPDEX_RPC_URL", "http://localhost:8899")
	t.Setenv("PERPDEX_ORACLE_ETH_FEED", "JBu1AL4obBcCMqKBBxhpWCNUt136ijcuMZLFvTP7iWdB")
	t.Setenv("PERPDEX_REDIS_ENABLED", "true")
	t.Setenv("PERPDEX_SERVER_CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("PERPDEX_RATE_LIMIT_WINDOW", "30s")
	t.Setenv("PERPDEX_SERVER_PORT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8899", cfg.RPC.URL)
	assert.Equal(t, "JBu1AL4obBcCMqKBBxhpWCNUt136ijcuMZLFvTP7iWdB", cfg.Oracle.Feeds["ETH"])
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.RateWindow())
	assert.Equal(t, 4000, cfg.Server.Port, "unparsable values are ignored")
}

func TestEnvAlias(t *testing.T) {
	t.Setenv("PERPDEX_RPC_URL", "")
	t.Setenv("SOLANA_RPC_URL", "http://alias:8899")
	t.Setenv("PORT", "5050")
	t.Setenv("PERPDEX_SERVER_PORT", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://alias:8899", cfg.RPC.URL)
	assert.Equal(t, 5050, cfg.Server.Port)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.RPC.Commitment = "eventually"
	cfg.Program.ID = "not-a-key"
	cfg.Markets = append(cfg.Markets,
		MarketConfig{Symbol: "eth", MaxLeverage: 5, MaintenanceMargin: 0.1},
		MarketConfig{Symbol: "DOGE", MaxLeverage: 0.5, MaintenanceMargin: 1},
	)
	cfg.Postgres.Enabled = true
	cfg.Postgres.PoolMinConns = 50
	cfg.Notify.Levels = []string{"extreme"}
	cfg.Notify.TelegramToken = "t"

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"log_level",
		"rpc: unknown commitment",
		"program: id",
		"duplicate symbol ETH",
		"DOGE: max_leverage",
		"DOGE: maintenance_margin",
		"DOGE: no oracle feed",
		"pool_min_conns must not exceed",
		"notify: unknown level",
		"telegram_token and telegram_chat_id",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Server.APIKey = "k"
	cfg.Postgres.Password = "pw"
	cfg.Redis.Password = ""
	cfg.Notify.DiscordWebhookURL = "https://discord.example/hook"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Empty(t, out.Redis.Password)
	assert.Equal(t, "***", out.Notify.DiscordWebhookURL)

	out.Oracle.Feeds["ETH"] = "changed"
	out.Markets[0].MaxLeverage = 99
	assert.NotEqual(t, "changed", cfg.Oracle.Feeds["ETH"])
	assert.Equal(t, 10.0, cfg.Markets[0].MaxLeverage)
	assert.Equal(t, "k", cfg.Server.APIKey)
}
