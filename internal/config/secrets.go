package config

import "maps"

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	redact(&out.Redis.Password)

	// Server
	redact(&out.Server.APIKey)

	// Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = make([]string, len(cfg.Server.CORSOrigins))
		copy(out.Server.CORSOrigins, cfg.Server.CORSOrigins)
	}
	if cfg.Notify.Levels != nil {
		out.Notify.Levels = make([]string, len(cfg.Notify.Levels))
		copy(out.Notify.Levels, cfg.Notify.Levels)
	}
	if cfg.Markets != nil {
		out.Markets = make([]MarketConfig, len(cfg.Markets))
		copy(out.Markets, cfg.Markets)
	}

	// Copy maps so mutations to the redacted copy do not affect the original.
	if cfg.Oracle.Feeds != nil {
		out.Oracle.Feeds = maps.Clone(cfg.Oracle.Feeds)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
