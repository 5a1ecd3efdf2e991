// Package config provides centralized configuration management for the quote
// forecaster. Configuration is layered: built-in defaults, an optional JSON or
// YAML file, then environment variables, followed by a single validation pass
// that reports every problem at once.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig represents the complete application configuration
type AppConfig struct {
	AppName    string `json:"app_name" yaml:"app_name" env:"APP_NAME"`
	Version    string `json:"version" yaml:"version" env:"VERSION"`
	ConfigPath string `json:"-" yaml:"-" env:"CONFIG_PATH"`

	Exchange  ExchangeConfig  `json:"exchange" yaml:"exchange"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Forecast  ForecastConfig  `json:"forecast" yaml:"forecast"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
}

// ExchangeConfig configures the upstream price API client
type ExchangeConfig struct {
	Coins          []string `json:"coins" yaml:"coins" env:"COINS"`                         // Tracked asset identifiers
	Currency       string   `json:"currency" yaml:"currency" env:"CURRENCY"`                // Quote currency
	BaseURL        string   `json:"base_url" yaml:"base_url" env:"API_BASE_URL"`            // Upstream API base URL
	TimeoutSeconds float64  `json:"timeout_s" yaml:"timeout_s" env:"TIMEOUT"`               // Per-request timeout
	MaxRetries     int      `json:"max_retries" yaml:"max_retries" env:"MAX_RETRIES"`       // Total attempts per fetch
	BackoffSeconds float64  `json:"backoff_s" yaml:"backoff_s" env:"BACKOFF_S"`             // Linear backoff unit
	RateLimit      int      `json:"rate_limit" yaml:"rate_limit" env:"RATE_LIMIT"`          // Requests per minute
}

// StorageConfig configures the on-disk layout
type StorageConfig struct {
	DataDir string `json:"data_dir" yaml:"data_dir" env:"DATA_DIR"`
}

// ForecastConfig configures the forecast engine
type ForecastConfig struct {
	Horizon      int    `json:"horizon" yaml:"horizon" env:"HORIZON"`                   // Default forecast steps
	MinPoints    int    `json:"min_points" yaml:"min_points" env:"MIN_POINTS"`          // Below this, flat projection
	DefaultAsset string `json:"default_asset" yaml:"default_asset" env:"DEFAULT_ASSET"` // Substitute for unknown assets
	StrictAssets bool   `json:"strict_assets" yaml:"strict_assets" env:"STRICT_ASSETS"` // Reject unknown assets instead
	Model        string `json:"model" yaml:"model" env:"FORECAST_MODEL"`                // "auto" or "fallback"
	SeasonLength int    `json:"season_length" yaml:"season_length" env:"SEASON_LENGTH"` // Seasonal period in hours
}

// CacheConfig configures the forecast result cache
type CacheConfig struct {
	Backend       string `json:"backend" yaml:"backend" env:"CACHE_BACKEND"` // "memory" or "redis"
	Size          int    `json:"size" yaml:"size" env:"CACHE_SIZE"`
	RedisAddr     string `json:"redis_addr" yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `json:"redis_password" yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db" env:"REDIS_DB"`
}

// SchedulerConfig configures periodic ingestion
type SchedulerConfig struct {
	Interval string `json:"interval" yaml:"interval" env:"FETCH_INTERVAL"`
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	Level         string            `json:"level" yaml:"level" env:"LOG_LEVEL"`                   // Log level: debug, info, warn, error
	Format        string            `json:"format" yaml:"format" env:"LOG_FORMAT"`                // Log format: json, text
	Output        string            `json:"output" yaml:"output" env:"LOG_OUTPUT"`                // Output: stdout, stderr, file
	FilePath      string            `json:"file_path" yaml:"file_path" env:"LOG_FILE_PATH"`       // Log file path
	MaxSize       int               `json:"max_size" yaml:"max_size" env:"LOG_MAX_SIZE"`          // Maximum log file size in MB
	MaxBackups    int               `json:"max_backups" yaml:"max_backups" env:"LOG_MAX_BACKUPS"` // Maximum log file backups
	MaxAge        int               `json:"max_age" yaml:"max_age" env:"LOG_MAX_AGE"`             // Maximum log file age in days
	Compress      bool              `json:"compress" yaml:"compress" env:"LOG_COMPRESS"`          // Compress old log files
	ContextFields map[string]string `json:"context_fields" yaml:"context_fields"`
}

// ConfigManager handles configuration loading and validation
type ConfigManager struct {
	configPath string
	logger     *slog.Logger
	getenv     func(string) string
}

// NewConfigManager creates a new configuration manager
func NewConfigManager(configPath string, logger *slog.Logger) *ConfigManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &ConfigManager{
		configPath: configPath,
		logger:     logger,
		getenv:     os.Getenv,
	}
}

// LoadConfig loads configuration from multiple sources with priority order:
// 1. Environment variables (highest priority)
// 2. Configuration file
// 3. Default values (lowest priority)
func (cm *ConfigManager) LoadConfig(ctx context.Context) (*AppConfig, error) {
	config := DefaultConfig()
	config.ConfigPath = cm.configPath

	if cm.configPath != "" {
		if err := cm.loadFromFile(config); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := cm.loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	config.normalize()

	if err := cm.validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	cm.logger.Debug("configuration loaded successfully",
		"config_path", cm.configPath,
		"coins", strings.Join(config.Exchange.Coins, ","),
		"data_dir", config.Storage.DataDir,
		"forecast_model", config.Forecast.Model,
		"cache_backend", config.Cache.Backend)

	return config, nil
}

// loadFromFile loads configuration from a JSON or YAML file, chosen by extension
func (cm *ConfigManager) loadFromFile(config *AppConfig) error {
	if _, err := os.Stat(cm.configPath); os.IsNotExist(err) {
		cm.logger.Debug("config file does not exist, using defaults", "path", cm.configPath)
		return nil
	}

	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cm.configPath, err)
	}

	switch strings.ToLower(filepath.Ext(cm.configPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", cm.configPath, err)
	}

	cm.logger.Debug("loaded configuration from file", "path", cm.configPath)
	return nil
}

// loadFromEnv loads configuration from environment variables. Malformed
// numeric or boolean values are collected and reported together.
func (cm *ConfigManager) loadFromEnv(config *AppConfig) error {
	var problems []string

	str := func(key string, dst *string) {
		if val := cm.getenv(key); val != "" {
			*dst = val
		}
	}
	integer := func(key string, dst *int) {
		if val := cm.getenv(key); val != "" {
			n, err := strconv.Atoi(strings.TrimSpace(val))
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s must be an integer, got %q", key, val))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if val := cm.getenv(key); val != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s must be a number, got %q", key, val))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if val := cm.getenv(key); val != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(val))
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s must be a boolean, got %q", key, val))
				return
			}
			*dst = b
		}
	}

	str("APP_NAME", &config.AppName)
	str("VERSION", &config.Version)

	if val := cm.getenv("COINS"); val != "" {
		config.Exchange.Coins = strings.Split(val, ",")
	}
	str("CURRENCY", &config.Exchange.Currency)
	str("API_BASE_URL", &config.Exchange.BaseURL)
	float("TIMEOUT", &config.Exchange.TimeoutSeconds)
	integer("MAX_RETRIES", &config.Exchange.MaxRetries)
	float("BACKOFF_S", &config.Exchange.BackoffSeconds)
	integer("RATE_LIMIT", &config.Exchange.RateLimit)

	str("DATA_DIR", &config.Storage.DataDir)

	integer("HORIZON", &config.Forecast.Horizon)
	integer("MIN_POINTS", &config.Forecast.MinPoints)
	str("DEFAULT_ASSET", &config.Forecast.DefaultAsset)
	boolean("STRICT_ASSETS", &config.Forecast.StrictAssets)
	str("FORECAST_MODEL", &config.Forecast.Model)
	integer("SEASON_LENGTH", &config.Forecast.SeasonLength)

	str("CACHE_BACKEND", &config.Cache.Backend)
	integer("CACHE_SIZE", &config.Cache.Size)
	str("REDIS_ADDR", &config.Cache.RedisAddr)
	str("REDIS_PASSWORD", &config.Cache.RedisPassword)
	integer("REDIS_DB", &config.Cache.RedisDB)

	str("FETCH_INTERVAL", &config.Scheduler.Interval)

	str("LOG_LEVEL", &config.Logging.Level)
	str("LOG_FORMAT", &config.Logging.Format)
	str("LOG_OUTPUT", &config.Logging.Output)
	str("LOG_FILE_PATH", &config.Logging.FilePath)
	integer("LOG_MAX_SIZE", &config.Logging.MaxSize)
	integer("LOG_MAX_BACKUPS", &config.Logging.MaxBackups)
	integer("LOG_MAX_AGE", &config.Logging.MaxAge)
	boolean("LOG_COMPRESS", &config.Logging.Compress)

	if len(problems) > 0 {
		return fmt.Errorf("invalid environment values:\n- %s", strings.Join(problems, "\n- "))
	}

	cm.logger.Debug("loaded configuration from environment variables")
	return nil
}

// normalize trims and lower-cases the identifiers that are matched verbatim
// against upstream payloads and stored rows.
func (c *AppConfig) normalize() {
	coins := make([]string, 0, len(c.Exchange.Coins))
	seen := make(map[string]bool, len(c.Exchange.Coins))
	for _, coin := range c.Exchange.Coins {
		coin = strings.ToLower(strings.TrimSpace(coin))
		if coin == "" || seen[coin] {
			continue
		}
		seen[coin] = true
		coins = append(coins, coin)
	}
	c.Exchange.Coins = coins
	c.Exchange.Currency = strings.ToLower(strings.TrimSpace(c.Exchange.Currency))
	c.Exchange.BaseURL = strings.TrimRight(c.Exchange.BaseURL, "/")
	c.Forecast.DefaultAsset = strings.ToLower(strings.TrimSpace(c.Forecast.DefaultAsset))
	c.Forecast.Model = strings.ToLower(c.Forecast.Model)
	c.Cache.Backend = strings.ToLower(c.Cache.Backend)
}

// validateConfig validates the configuration for consistency and required fields
func (cm *ConfigManager) validateConfig(config *AppConfig) error {
	var errors []string

	// Exchange
	if len(config.Exchange.Coins) == 0 {
		errors = append(errors, "exchange.coins must list at least one asset")
	}
	if config.Exchange.Currency == "" {
		errors = append(errors, "exchange.currency is required")
	}
	if config.Exchange.BaseURL == "" {
		errors = append(errors, "exchange.base_url is required")
	}
	if config.Exchange.TimeoutSeconds <= 0 {
		errors = append(errors, "exchange.timeout_s must be greater than 0")
	}
	if config.Exchange.MaxRetries < 1 {
		errors = append(errors, "exchange.max_retries must be at least 1")
	}
	if config.Exchange.BackoffSeconds < 0 {
		errors = append(errors, "exchange.backoff_s cannot be negative")
	}
	if config.Exchange.RateLimit <= 0 {
		errors = append(errors, "exchange.rate_limit must be greater than 0")
	}

	// Storage
	if config.Storage.DataDir == "" {
		errors = append(errors, "storage.data_dir is required")
	}

	// Forecast
	if config.Forecast.Horizon <= 0 {
		errors = append(errors, "forecast.horizon must be greater than 0")
	}
	if config.Forecast.MinPoints < 1 {
		errors = append(errors, "forecast.min_points must be at least 1")
	}
	if config.Forecast.DefaultAsset == "" && !config.Forecast.StrictAssets {
		errors = append(errors, "forecast.default_asset is required unless strict_assets is set")
	}
	validModels := map[string]bool{"auto": true, "fallback": true}
	if !validModels[config.Forecast.Model] {
		errors = append(errors, "forecast.model must be one of: auto, fallback")
	}
	if config.Forecast.SeasonLength < 2 {
		errors = append(errors, "forecast.season_length must be at least 2")
	}

	// Cache
	switch config.Cache.Backend {
	case "memory":
		if config.Cache.Size <= 0 {
			errors = append(errors, "cache.size must be greater than 0")
		}
	case "redis":
		if config.Cache.RedisAddr == "" {
			errors = append(errors, "cache.redis_addr is required for the redis backend")
		}
	default:
		errors = append(errors, "cache.backend must be one of: memory, redis")
	}

	// Scheduler
	if _, err := config.Scheduler.FetchInterval(); err != nil {
		errors = append(errors, fmt.Sprintf("scheduler.interval is not a valid duration: %v", err))
	}

	// Logging
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[config.Logging.Level] {
		errors = append(errors, "logging.level must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[config.Logging.Format] {
		errors = append(errors, "logging.format must be one of: json, text")
	}

	if config.Logging.Output == "file" && config.Logging.FilePath == "" {
		errors = append(errors, "logging.file_path is required when output is file")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *AppConfig {
	return &AppConfig{
		AppName: "quotecast",
		Version: "1.0.0",
		Exchange: ExchangeConfig{
			Coins:          []string{"bitcoin", "ethereum"},
			Currency:       "usd",
			BaseURL:        "https://api.coingecko.com/api/v3",
			TimeoutSeconds: 10,
			MaxRetries:     3,
			BackoffSeconds: 2,
			RateLimit:      30,
		},
		Storage: StorageConfig{
			DataDir: "./data",
		},
		Forecast: ForecastConfig{
			Horizon:      24,
			MinPoints:    6,
			DefaultAsset: "bitcoin",
			StrictAssets: false,
			Model:        "auto",
			SeasonLength: 24,
		},
		Cache: CacheConfig{
			Backend:   "memory",
			Size:      32,
			RedisAddr: "localhost:6379",
		},
		Scheduler: SchedulerConfig{
			Interval: "60s",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stderr",
			MaxSize:    100, // 100MB
			MaxBackups: 5,
			MaxAge:     30, // 30 days
			Compress:   true,
			ContextFields: map[string]string{
				"service": "quotecast",
			},
		},
	}
}

// RequestTimeout returns the per-request timeout
func (e ExchangeConfig) RequestTimeout() time.Duration {
	return secondsToDuration(e.TimeoutSeconds)
}

// BackoffInterval returns the linear backoff unit
func (e ExchangeConfig) BackoffInterval() time.Duration {
	return secondsToDuration(e.BackoffSeconds)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// ParquetRoot returns the directory holding the daily partitions
func (s StorageConfig) ParquetRoot() string {
	return filepath.Join(s.DataDir, "parquet")
}

// AuditLogPath returns the NDJSON audit log location
func (s StorageConfig) AuditLogPath() string {
	return filepath.Join(s.DataDir, "logs", "quotes.ndjson")
}

// FetchInterval parses the scheduler interval. A bare number is read as
// seconds, anything else as a Go duration.
func (s SchedulerConfig) FetchInterval() (time.Duration, error) {
	raw := strings.TrimSpace(s.Interval)
	if raw == "" {
		return 0, fmt.Errorf("interval is empty")
	}

	var (
		d   time.Duration
		err error
	)
	if secs, convErr := strconv.ParseFloat(raw, 64); convErr == nil {
		d = secondsToDuration(secs)
	} else if d, err = time.ParseDuration(raw); err != nil {
		return 0, err
	}

	if d < time.Second {
		return 0, fmt.Errorf("interval %s is shorter than one second", d)
	}
	return d, nil
}

// String returns a string representation of the configuration (excluding sensitive data)
func (c *AppConfig) String() string {
	sanitized := *c
	if sanitized.Cache.RedisPassword != "" {
		sanitized.Cache.RedisPassword = "[REDACTED]"
	}

	data, _ := json.MarshalIndent(&sanitized, "", "  ")
	return string(data)
}
