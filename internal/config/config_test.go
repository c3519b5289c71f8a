package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.APIKey = "sk-or-test"
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Arena.MinYesPrice = 0.95
	cfg.Arena.MaxYesPrice = 0.05
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "yes price band")
	assert.Contains(t, err.Error(), "redis: addr")
}

func TestValidateRequiresGatewayKeyForRoundMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "round"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway: either api_key or encrypted_key_path")

	cfg.Gateway.APIKey = "sk-or-test"
	require.NoError(t, cfg.Validate())
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
mode = "sync"

[arena]
budget_cap_usd = 50.0
round_interval = "2h"

[server]
port = 9999
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	t.Setenv("ARENA_SERVER_PORT", "7777")
	t.Setenv("ARENA_REDIS_ADDR", "redis:6379")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sync", cfg.Mode)
	assert.Equal(t, 50.0, cfg.Arena.BudgetCapUSD)
	assert.Equal(t, 2*time.Hour, cfg.Arena.RoundInterval.Duration)
	assert.Equal(t, 7777, cfg.Server.Port, "env override wins over file")
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)

	// Untouched sections keep defaults.
	assert.Equal(t, 3.0, cfg.Arena.EstimatedRoundCost)
	assert.Equal(t, "https://gamma-api.polymarket.com", cfg.Polymarket.GammaHost)
}

func TestLoadOrDefaultsMissingFile(t *testing.T) {
	cfg, err := LoadOrDefaults(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "server", cfg.Mode)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.APIKey = "sk-or-secret"
	cfg.Postgres.Password = "hunter2"
	cfg.Server.CronSecret = "cron"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Gateway.APIKey)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Server.CronSecret)
	assert.Equal(t, "sk-or-secret", cfg.Gateway.APIKey, "original untouched")
	assert.Empty(t, red.Redis.Password, "empty fields stay empty")
}
