package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), false)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Service.Port)
	assert.Equal(t, "engine", cfg.Source.Kind)
	assert.Equal(t, 60*time.Second, cfg.Auto.PollInterval)
	assert.Equal(t, 90*time.Minute, cfg.Auto.SignalTTL)
	assert.Equal(t, 5*time.Second, cfg.Auto.MaxLatency)
	assert.Equal(t, 60, cfg.Dispatch.MinConfidence)
	assert.Equal(t, 24*time.Hour, cfg.Dispatch.Cooldown)
	assert.True(t, cfg.Dispatch.Enabled)
	assert.Equal(t, 20, cfg.Strategy.EMAFast)
	assert.Equal(t, 50, cfg.Strategy.EMASlow)
	assert.Equal(t, 2.0, cfg.Strategy.TPMultiplier)
	assert.Equal(t, "file", cfg.Lock.Kind)
	assert.False(t, cfg.Auto.FailOpen)
	assert.Equal(t, filepath.Join("data", "auto_execution_log.jsonl"), cfg.Path(cfg.Storage.ExecutionLog))
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), true)
	assert.Error(t, err)
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := writeYAML(t, `
service:
  port: 9090
feed:
  symbol: GBP/USD
  timeframe: H1
auto:
  poll_interval: 30s
  enabled: false
dispatch:
  min_confidence: 70
storage:
  dir: /var/lib/signal
`)
	t.Setenv("TWELVE_DATA_API_KEY", "td-key")
	t.Setenv("AUTO_V0_ENABLED", "true")
	t.Setenv("TELEGRAM_CHAT_ID", "-1001234")

	cfg, err := Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Service.Port)
	assert.Equal(t, "GBP/USD", cfg.Feed.Symbol)
	assert.Equal(t, "H1", cfg.Feed.Timeframe)
	assert.Equal(t, 30*time.Second, cfg.Auto.PollInterval)
	assert.Equal(t, 70, cfg.Dispatch.MinConfidence)
	assert.Equal(t, "td-key", cfg.Feed.APIKey)
	assert.True(t, cfg.Auto.Enabled)
	assert.Equal(t, int64(-1001234), cfg.Telegram.ChatID)
	assert.Equal(t, "/var/lib/signal/dispatch_state.json", cfg.Path(cfg.Storage.DispatchState))
	assert.NoError(t, cfg.RequireFeedKey())
	// неизменённые ключи остаются по умолчанию
	assert.Equal(t, 90*time.Minute, cfg.Auto.SignalTTL)
}

func TestKillSwitchRereadsEnv(t *testing.T) {
	t.Setenv("AUTO_V0_ENABLED", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), false)
	require.NoError(t, err)
	// без переменной автоисполнение выключено
	assert.False(t, cfg.Auto.Enabled)
	assert.False(t, cfg.AutoEnabled())

	t.Setenv("AUTO_V0_ENABLED", "false")
	assert.False(t, cfg.AutoEnabled())
	t.Setenv("AUTO_V0_ENABLED", "1")
	assert.True(t, cfg.AutoEnabled())
}

func TestValidation(t *testing.T) {
	cases := map[string]string{
		"bad source":     "source:\n  kind: kafka\n",
		"rest no base":   "source:\n  kind: rest\n",
		"supabase no db": "source:\n  kind: supabase\n",
		"ema order":      "strategy:\n  ema_fast: 50\n  ema_slow: 20\n",
		"confidence":     "dispatch:\n  min_confidence: 101\n",
		"timeframe":      "feed:\n  timeframe: W1\n",
		"redis no addr":  "lock:\n  kind: redis\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeYAML(t, body), true)
			assert.Error(t, err)
		})
	}
}

func TestRedisLockNeedsDatabase(t *testing.T) {
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("SUPABASE_DB_URL", "")
	t.Setenv("REDIS_ADDR", "")

	_, err := Load(writeYAML(t, "lock:\n  kind: redis\n  redis_addr: localhost:6379\n"), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db.dsn")

	cfg, err := Load(writeYAML(t, "lock:\n  kind: redis\n  redis_addr: localhost:6379\ndb:\n  dsn: postgres://bot@localhost/signals\n"), true)
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Lock.Kind)
}

func TestRequireFeedKey(t *testing.T) {
	t.Setenv("TWELVE_DATA_API_KEY", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), false)
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.RequireFeedKey(), ErrNoFeedKey)
}
