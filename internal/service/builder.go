package service

import (
	"context"
	"fmt"
	"time"

	"github.com/johnayoung/go-quote-forecaster/internal/cache"
	"github.com/johnayoung/go-quote-forecaster/internal/config"
	qerrors "github.com/johnayoung/go-quote-forecaster/internal/errors"
	"github.com/johnayoung/go-quote-forecaster/internal/exchange"
	"github.com/johnayoung/go-quote-forecaster/internal/forecast"
	"github.com/johnayoung/go-quote-forecaster/internal/logger"
	"github.com/johnayoung/go-quote-forecaster/internal/pipeline"
	"github.com/johnayoung/go-quote-forecaster/internal/series"
	"github.com/johnayoung/go-quote-forecaster/internal/storage"
)

// Builder assembles a Service. Dependencies left unset are built from the
// configuration.
type Builder struct {
	cfg     *config.AppConfig
	logs    *logger.LoggerManager
	fetcher exchange.PriceFetcher
	store   storage.QuoteStore
	cache   cache.ForecastCache
	clock   func() time.Time
	models  []forecast.Model
}

// NewBuilder creates a builder for cfg. A nil cfg uses config.DefaultConfig.
func NewBuilder(cfg *config.AppConfig) *Builder {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Builder{cfg: cfg}
}

// WithLoggerManager sets the logger manager
func (b *Builder) WithLoggerManager(logs *logger.LoggerManager) *Builder {
	b.logs = logs
	return b
}

// WithFetcher sets the upstream price source
func (b *Builder) WithFetcher(fetcher exchange.PriceFetcher) *Builder {
	b.fetcher = fetcher
	return b
}

// WithStore sets the quote store
func (b *Builder) WithStore(store storage.QuoteStore) *Builder {
	b.store = store
	return b
}

// WithCache sets the forecast cache
func (b *Builder) WithCache(c cache.ForecastCache) *Builder {
	b.cache = c
	return b
}

// WithClock sets the clock used to stamp ingested quotes and forecasts
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithModels replaces the primary and fallback forecast models
func (b *Builder) WithModels(primary, fallback forecast.Model) *Builder {
	b.models = []forecast.Model{primary, fallback}
	return b
}

// Build constructs the Service.
func (b *Builder) Build(ctx context.Context) (*Service, error) {
	cfg := b.cfg
	logs := b.logs
	if logs == nil {
		var err error
		if logs, err = logger.NewLoggerManager(cfg.Logging); err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	fetcher := b.fetcher
	if fetcher == nil {
		fetcher = exchange.NewCoinGeckoClient(exchange.CoinGeckoConfig{
			BaseURL:        cfg.Exchange.BaseURL,
			Currency:       cfg.Exchange.Currency,
			MaxRetries:     cfg.Exchange.MaxRetries,
			Backoff:        cfg.Exchange.BackoffInterval(),
			RequestTimeout: cfg.Exchange.RequestTimeout(),
			RatePerMinute:  cfg.Exchange.RateLimit,
		}, exchange.WithLogger(logs.GetComponentLogger("exchange").Logger))
	}

	store := b.store
	if store == nil {
		var err error
		if store, err = storage.NewParquetStore(cfg.Storage.ParquetRoot(), logs.GetComponentLogger("storage").Logger); err != nil {
			return nil, qerrors.WrapError(err, "service", "build", "failed to open quote store")
		}
	}

	fc := b.cache
	if fc == nil {
		var err error
		fc, err = cache.New(ctx, cfg.Cache.Backend, cfg.Cache.Size, cache.RedisOptions{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			store.Close()
			return nil, qerrors.WrapError(err, "service", "build", "failed to create forecast cache")
		}
	}

	loader := series.NewLoader(store, logs.GetComponentLogger("series").Logger)

	var engineOpts []forecast.Option
	if b.models != nil {
		engineOpts = append(engineOpts, forecast.WithModels(b.models[0], b.models[1]))
	}
	if b.clock != nil {
		engineOpts = append(engineOpts, forecast.WithClock(b.clock))
	}
	engine := forecast.NewEngine(loader, fc, forecast.Config{
		Horizon:      cfg.Forecast.Horizon,
		MinPoints:    cfg.Forecast.MinPoints,
		DefaultAsset: cfg.Forecast.DefaultAsset,
		StrictAssets: cfg.Forecast.StrictAssets,
		Model:        cfg.Forecast.Model,
		SeasonLength: cfg.Forecast.SeasonLength,
	}, logs.GetComponentLogger("forecast").Logger, engineOpts...)

	audit := storage.NewAuditLog(cfg.Storage.AuditLogPath())

	pipeOpts := []pipeline.Option{pipeline.WithLogger(logs.GetComponentLogger("pipeline"))}
	if b.clock != nil {
		pipeOpts = append(pipeOpts, pipeline.WithClock(b.clock))
	}
	pipe := pipeline.New(fetcher, store, audit, engine, pipeOpts...)

	return &Service{
		cfg:      cfg,
		fetcher:  fetcher,
		store:    store,
		audit:    audit,
		cache:    fc,
		loader:   loader,
		engine:   engine,
		pipeline: pipe,
	}, nil
}
