package config

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestManager returns a manager reading env from the given map only.
func newTestManager(path string, env map[string]string) *ConfigManager {
	cm := NewConfigManager(path, testLogger())
	cm.getenv = func(key string) string { return env[key] }
	return cm
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "quotecast", config.AppName)
	assert.Equal(t, []string{"bitcoin", "ethereum"}, config.Exchange.Coins)
	assert.Equal(t, "usd", config.Exchange.Currency)
	assert.Equal(t, 3, config.Exchange.MaxRetries)
	assert.Equal(t, 2*time.Second, config.Exchange.BackoffInterval())
	assert.Equal(t, 10*time.Second, config.Exchange.RequestTimeout())
	assert.Equal(t, 24, config.Forecast.Horizon)
	assert.Equal(t, 6, config.Forecast.MinPoints)
	assert.Equal(t, "bitcoin", config.Forecast.DefaultAsset)
	assert.Equal(t, 32, config.Cache.Size)
	assert.Equal(t, filepath.Join("data", "parquet"), filepath.Clean(config.Storage.ParquetRoot()))
	assert.Equal(t, filepath.Join("data", "logs", "quotes.ndjson"), filepath.Clean(config.Storage.AuditLogPath()))
}

func TestConfigValidation(t *testing.T) {
	cm := newTestManager("", nil)

	t.Run("valid config passes validation", func(t *testing.T) {
		config := DefaultConfig()
		assert.NoError(t, cm.validateConfig(config))
	})

	t.Run("no coins fails", func(t *testing.T) {
		config := DefaultConfig()
		config.Exchange.Coins = nil
		err := cm.validateConfig(config)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exchange.coins must list at least one asset")
	})

	t.Run("zero retries fails", func(t *testing.T) {
		config := DefaultConfig()
		config.Exchange.MaxRetries = 0
		err := cm.validateConfig(config)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exchange.max_retries must be at least 1")
	})

	t.Run("unknown model fails", func(t *testing.T) {
		config := DefaultConfig()
		config.Forecast.Model = "prophet"
		err := cm.validateConfig(config)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "forecast.model must be one of: auto, fallback")
	})

	t.Run("redis backend requires address", func(t *testing.T) {
		config := DefaultConfig()
		config.Cache.Backend = "redis"
		config.Cache.RedisAddr = ""
		err := cm.validateConfig(config)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cache.redis_addr is required")
	})

	t.Run("strict assets allows empty default asset", func(t *testing.T) {
		config := DefaultConfig()
		config.Forecast.DefaultAsset = ""
		config.Forecast.StrictAssets = true
		assert.NoError(t, cm.validateConfig(config))
	})

	t.Run("multiple errors are reported together", func(t *testing.T) {
		config := DefaultConfig()
		config.Forecast.Horizon = 0
		config.Logging.Level = "verbose"
		err := cm.validateConfig(config)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "forecast.horizon must be greater than 0")
		assert.Contains(t, err.Error(), "logging.level must be one of")
	})
}

func TestLoadConfigFromEnv(t *testing.T) {
	cm := newTestManager("", map[string]string{
		"COINS":          " Bitcoin, solana ,bitcoin,",
		"MAX_RETRIES":    "5",
		"BACKOFF_S":      "0.5",
		"HORIZON":        "12",
		"STRICT_ASSETS":  "true",
		"FORECAST_MODEL": "FALLBACK",
		"FETCH_INTERVAL": "30",
		"API_BASE_URL":   "http://localhost:8080/api/",
	})

	config, err := cm.LoadConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"bitcoin", "solana"}, config.Exchange.Coins)
	assert.Equal(t, 5, config.Exchange.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, config.Exchange.BackoffInterval())
	assert.Equal(t, 12, config.Forecast.Horizon)
	assert.True(t, config.Forecast.StrictAssets)
	assert.Equal(t, "fallback", config.Forecast.Model)
	assert.Equal(t, "http://localhost:8080/api", config.Exchange.BaseURL)

	interval, err := config.Scheduler.FetchInterval()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, interval)
}

func TestLoadConfigInvalidEnv(t *testing.T) {
	cm := newTestManager("", map[string]string{
		"MAX_RETRIES":   "three",
		"STRICT_ASSETS": "maybe",
	})

	_, err := cm.LoadConfig(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_RETRIES must be an integer")
	assert.Contains(t, err.Error(), "STRICT_ASSETS must be a boolean")
}

func TestLoadConfigFromJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	fileConfig := DefaultConfig()
	fileConfig.Exchange.Coins = []string{"cardano"}
	fileConfig.Forecast.MinPoints = 10
	data, err := json.Marshal(fileConfig)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cm := newTestManager(path, map[string]string{"MIN_POINTS": "8"})
	config, err := cm.LoadConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"cardano"}, config.Exchange.Coins)
	assert.Equal(t, 8, config.Forecast.MinPoints, "environment overrides file")
	assert.Equal(t, path, config.ConfigPath)
}

func TestLoadConfigFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quotecast.yaml")

	yamlContent := `
exchange:
  coins: [bitcoin, dogecoin]
  max_retries: 4
forecast:
  default_asset: dogecoin
  model: fallback
cache:
  backend: redis
  redis_addr: redis:6379
scheduler:
  interval: 2m
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0644))

	cm := newTestManager(path, nil)
	config, err := cm.LoadConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"bitcoin", "dogecoin"}, config.Exchange.Coins)
	assert.Equal(t, 4, config.Exchange.MaxRetries)
	assert.Equal(t, "usd", config.Exchange.Currency, "unset keys keep defaults")
	assert.Equal(t, "dogecoin", config.Forecast.DefaultAsset)
	assert.Equal(t, "redis", config.Cache.Backend)

	interval, err := config.Scheduler.FetchInterval()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, interval)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cm := newTestManager(filepath.Join(t.TempDir(), "absent.json"), nil)
	config, err := cm.LoadConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Exchange.Coins, config.Exchange.Coins)
}

func TestFetchInterval(t *testing.T) {
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "60", want: time.Minute},
		{raw: "90s", want: 90 * time.Second},
		{raw: "1h", want: time.Hour},
		{raw: "", wantErr: true},
		{raw: "100ms", wantErr: true},
		{raw: "often", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := SchedulerConfig{Interval: tt.raw}.FetchInterval()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigStringRedactsPassword(t *testing.T) {
	config := DefaultConfig()
	config.Cache.RedisPassword = "hunter2"
	out := config.String()
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "[REDACTED]")
}
