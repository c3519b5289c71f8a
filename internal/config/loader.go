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
// built-in defaults, applies ARENA_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// LoadOrDefaults behaves like Load but falls back to pure defaults plus env
// overrides when the file does not exist, so the engine can run from
// environment variables alone.
func LoadOrDefaults(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Defaults()
		_ = godotenv.Load()
		applyEnvOverrides(&cfg)
		return &cfg, nil
	}
	return Load(path)
}

// applyEnvOverrides reads well-known ARENA_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Gateway ──
	setStr(&cfg.Gateway.APIKey, "OPENROUTER_API_KEY") // compatibility alias
	setStr(&cfg.Gateway.APIKey, "ARENA_GATEWAY_API_KEY")
	setStr(&cfg.Gateway.EncryptedKeyPath, "ARENA_GATEWAY_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Gateway.KeyPassword, "ARENA_GATEWAY_KEY_PASSWORD")
	setStr(&cfg.Gateway.BaseURL, "ARENA_GATEWAY_BASE_URL")
	setStr(&cfg.Gateway.Referer, "ARENA_GATEWAY_REFERER")
	setStr(&cfg.Gateway.Title, "ARENA_GATEWAY_TITLE")
	setInt(&cfg.Gateway.RequestsPerMinute, "ARENA_GATEWAY_REQUESTS_PER_MINUTE")
	setDuration(&cfg.Gateway.Timeout, "ARENA_GATEWAY_TIMEOUT")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "ARENA_POLYMARKET_GAMMA_HOST")
	setFloat64(&cfg.Polymarket.MinVolume24h, "ARENA_POLYMARKET_MIN_VOLUME_24H")
	setDuration(&cfg.Polymarket.MinHorizon, "ARENA_POLYMARKET_MIN_HORIZON")
	setDuration(&cfg.Polymarket.MaxHorizon, "ARENA_POLYMARKET_MAX_HORIZON")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.DSN, "ARENA_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ARENA_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARENA_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARENA_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARENA_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARENA_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARENA_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARENA_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARENA_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARENA_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARENA_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARENA_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARENA_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARENA_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARENA_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARENA_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ARENA_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ARENA_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARENA_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARENA_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARENA_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARENA_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARENA_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARENA_S3_FORCE_PATH_STYLE")

	// ── Arena ──
	setFloat64(&cfg.Arena.BudgetCapUSD, "ARENA_BUDGET_CAP_USD")
	setFloat64(&cfg.Arena.EstimatedRoundCost, "ARENA_ESTIMATED_ROUND_COST")
	setInt(&cfg.Arena.MarketsPerRound, "ARENA_MARKETS_PER_ROUND")
	setFloat64(&cfg.Arena.MinYesPrice, "ARENA_MIN_YES_PRICE")
	setFloat64(&cfg.Arena.MaxYesPrice, "ARENA_MAX_YES_PRICE")
	setInt(&cfg.Arena.PreviousBetLimit, "ARENA_PREVIOUS_BET_LIMIT")
	setFloat64(&cfg.Arena.InitialBankroll, "ARENA_INITIAL_BANKROLL")
	setDuration(&cfg.Arena.RoundInterval, "ARENA_ROUND_INTERVAL")
	setDuration(&cfg.Arena.SettleInterval, "ARENA_SETTLE_INTERVAL")
	setDuration(&cfg.Arena.SyncInterval, "ARENA_SYNC_INTERVAL")

	// ── Server ──
	setInt(&cfg.Server.Port, "PORT") // platform-injected port
	setInt(&cfg.Server.Port, "ARENA_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ARENA_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.CronSecret, "ARENA_SERVER_CRON_SECRET")
	setStr(&cfg.Server.EncryptedSecretPath, "ARENA_SERVER_ENCRYPTED_SECRET_PATH")
	setStr(&cfg.Server.SecretPassword, "ARENA_SERVER_SECRET_PASSWORD")
	setInt(&cfg.Server.RateLimit, "ARENA_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "ARENA_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARENA_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARENA_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARENA_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARENA_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARENA_MODE")
	setStr(&cfg.LogLevel, "ARENA_LOG_LEVEL")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
