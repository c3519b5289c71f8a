// Package config defines the TOML-backed configuration for the tournament
// engine and its loader. Every field can be overridden with an ARENA_*
// environment variable; see loader.go for the mapping.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure, decoded from TOML.
type Config struct {
	Gateway    GatewayConfig    `toml:"gateway"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Arena      ArenaConfig      `toml:"arena"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`

	// Mode selects what the process does: "server", "round", "settle",
	// "cohort", "sync", "leaderboard", or "full".
	Mode string `toml:"mode"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `toml:"log_level"`
}

// GatewayConfig holds OpenRouter connection parameters. The API key may be
// given raw, or as a path to an encrypted key file plus its password.
type GatewayConfig struct {
	APIKey            string   `toml:"api_key"`
	EncryptedKeyPath  string   `toml:"encrypted_key_path"`
	KeyPassword       string   `toml:"key_password"`
	BaseURL           string   `toml:"base_url"`
	Referer           string   `toml:"referer"`
	Title             string   `toml:"title"`
	RequestsPerMinute int      `toml:"requests_per_minute"`
	Timeout           duration `toml:"timeout"`
}

// PolymarketConfig holds the Gamma API endpoint and the admissibility filter
// applied to markets before they are offered to forecasters.
type PolymarketConfig struct {
	GammaHost    string   `toml:"gamma_host"`
	MinVolume24h float64  `toml:"min_volume_24h"`
	MinHorizon   duration `toml:"min_horizon"`
	MaxHorizon   duration `toml:"max_horizon"`
}

// PostgresConfig holds database connection parameters. Either a full DSN or
// the individual host/port/database fields may be given; DSN wins.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"sslmode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for round archives.
// When Enabled is false no archives are written and the archive endpoint is
// not served.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArenaConfig holds the tournament parameters: the spend cap, round shape,
// market selection bounds, and the scheduler intervals used in full mode.
type ArenaConfig struct {
	BudgetCapUSD       float64 `toml:"budget_cap_usd"`
	EstimatedRoundCost float64 `toml:"estimated_round_cost"`

	MarketsPerRound  int     `toml:"markets_per_round"`
	MinYesPrice      float64 `toml:"min_yes_price"`
	MaxYesPrice      float64 `toml:"max_yes_price"`
	PreviousBetLimit int     `toml:"previous_bet_limit"`
	InitialBankroll  float64 `toml:"initial_bankroll"`

	RoundInterval  duration `toml:"round_interval"`
	SettleInterval duration `toml:"settle_interval"`
	SyncInterval   duration `toml:"sync_interval"`
}

// ServerConfig holds HTTP API parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`

	// CronSecret guards the mutating trigger endpoints. Empty disables the
	// guard, which is only sensible in local development.
	CronSecret          string   `toml:"cron_secret"`
	EncryptedSecretPath string   `toml:"encrypted_secret_path"`
	SecretPassword      string   `toml:"secret_password"`
	RateLimit           int      `toml:"rate_limit"`
	RateWindow          duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "6h" or "30s".
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
		Gateway: GatewayConfig{
			BaseURL:           "https://openrouter.ai",
			Title:             "Forecast Arena",
			RequestsPerMinute: 30,
			Timeout:           duration{120 * time.Second},
		},
		Polymarket: PolymarketConfig{
			GammaHost:    "https://gamma-api.polymarket.com",
			MinVolume24h: 1000,
			MinHorizon:   duration{24 * time.Hour},
			MaxHorizon:   duration{60 * 24 * time.Hour},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "forecastarena",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arena-archives",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Arena: ArenaConfig{
			BudgetCapUSD:       100,
			EstimatedRoundCost: 3,
			MarketsPerRound:    15,
			MinYesPrice:        0.05,
			MaxYesPrice:        0.95,
			PreviousBetLimit:   3,
			InitialBankroll:    10_000,
			RoundInterval:      duration{6 * time.Hour},
			SettleInterval:     duration{1 * time.Hour},
			SyncInterval:       duration{30 * time.Minute},
		},
		Server: ServerConfig{
			Port:       8080,
			RateLimit:  60,
			RateWindow: duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"round_completed", "markets_settled", "budget_exhausted"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":      true,
	"round":       true,
	"settle":      true,
	"cohort":      true,
	"sync":        true,
	"leaderboard": true,
	"full":        true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, round, settle, cohort, sync, leaderboard, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Gateway — a key source is required for the modes that call models.
	// Server mode counts: the round trigger endpoint fans out to models.
	needsGateway := c.Mode == "round" || c.Mode == "server" || c.Mode == "full"
	if needsGateway {
		if c.Gateway.APIKey == "" && c.Gateway.EncryptedKeyPath == "" {
			errs = append(errs, "gateway: either api_key or encrypted_key_path must be set for mode "+c.Mode)
		}
		if c.Gateway.EncryptedKeyPath != "" && c.Gateway.KeyPassword == "" {
			errs = append(errs, "gateway: key_password is required when encrypted_key_path is set")
		}
	}
	if c.Gateway.BaseURL == "" {
		errs = append(errs, "gateway: base_url must not be empty")
	}
	if c.Gateway.RequestsPerMinute < 0 {
		errs = append(errs, "gateway: requests_per_minute must be >= 0")
	}

	// Polymarket
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.MinVolume24h < 0 {
		errs = append(errs, "polymarket: min_volume_24h must be >= 0")
	}
	if c.Polymarket.MinHorizon.Duration > c.Polymarket.MaxHorizon.Duration {
		errs = append(errs, "polymarket: min_horizon must not exceed max_horizon")
	}

	// Postgres
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

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Arena
	if c.Arena.BudgetCapUSD <= 0 {
		errs = append(errs, "arena: budget_cap_usd must be > 0")
	}
	if c.Arena.EstimatedRoundCost <= 0 {
		errs = append(errs, "arena: estimated_round_cost must be > 0")
	}
	if c.Arena.EstimatedRoundCost > c.Arena.BudgetCapUSD {
		errs = append(errs, "arena: estimated_round_cost must not exceed budget_cap_usd")
	}
	if c.Arena.MarketsPerRound < 1 {
		errs = append(errs, "arena: markets_per_round must be >= 1")
	}
	if c.Arena.MinYesPrice <= 0 || c.Arena.MaxYesPrice >= 1 || c.Arena.MinYesPrice >= c.Arena.MaxYesPrice {
		errs = append(errs, fmt.Sprintf("arena: yes price band must satisfy 0 < min < max < 1, got [%v, %v]", c.Arena.MinYesPrice, c.Arena.MaxYesPrice))
	}
	if c.Arena.InitialBankroll <= 0 {
		errs = append(errs, "arena: initial_bankroll must be > 0")
	}
	if c.Mode == "full" {
		if c.Arena.RoundInterval.Duration <= 0 {
			errs = append(errs, "arena: round_interval must be > 0 for full mode")
		}
		if c.Arena.SettleInterval.Duration <= 0 {
			errs = append(errs, "arena: settle_interval must be > 0 for full mode")
		}
		if c.Arena.SyncInterval.Duration <= 0 {
			errs = append(errs, "arena: sync_interval must be > 0 for full mode")
		}
	}

	// Server
	if c.Mode == "server" || c.Mode == "full" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.EncryptedSecretPath != "" && c.Server.SecretPassword == "" {
			errs = append(errs, "server: secret_password is required when encrypted_secret_path is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
