package config

import (
	"fmt"

	"github.com/alanyoungcy/forecastarena/internal/crypto"
)

// GatewayAPIKey resolves the OpenRouter credential: the raw api_key when
// set, otherwise the encrypted key file decrypted with key_password.
func (c *Config) GatewayAPIKey() (string, error) {
	key, err := crypto.LoadSecret(crypto.SecretConfig{
		RawSecret:           c.Gateway.APIKey,
		EncryptedSecretPath: c.Gateway.EncryptedKeyPath,
		Password:            c.Gateway.KeyPassword,
	})
	if err != nil {
		return "", fmt.Errorf("config: gateway api key: %w", err)
	}
	return key, nil
}

// CronSecret resolves the shared secret guarding the mutating API endpoints.
// An empty result disables the guard.
func (c *Config) CronSecret() (string, error) {
	if c.Server.CronSecret == "" && c.Server.EncryptedSecretPath == "" {
		return "", nil
	}
	secret, err := crypto.LoadSecret(crypto.SecretConfig{
		RawSecret:           c.Server.CronSecret,
		EncryptedSecretPath: c.Server.EncryptedSecretPath,
		Password:            c.Server.SecretPassword,
	})
	if err != nil {
		return "", fmt.Errorf("config: cron secret: %w", err)
	}
	return secret, nil
}

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Gateway
	out.Gateway = cfg.Gateway
	redact(&out.Gateway.APIKey)
	redact(&out.Gateway.KeyPassword)

	// Postgres
	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// S3
	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Server
	out.Server = cfg.Server
	redact(&out.Server.CronSecret)
	redact(&out.Server.SecretPassword)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = make([]string, len(cfg.Server.CORSOrigins))
		copy(out.Server.CORSOrigins, cfg.Server.CORSOrigins)
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
