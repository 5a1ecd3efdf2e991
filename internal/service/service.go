// Package service is the facade consumed by the CLI and any serving layer:
// ingest, history, forecast and cache invalidation over one set of
// process-wide dependencies.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/johnayoung/go-quote-forecaster/internal/cache"
	"github.com/johnayoung/go-quote-forecaster/internal/config"
	"github.com/johnayoung/go-quote-forecaster/internal/exchange"
	"github.com/johnayoung/go-quote-forecaster/internal/forecast"
	"github.com/johnayoung/go-quote-forecaster/internal/logger"
	"github.com/johnayoung/go-quote-forecaster/internal/models"
	"github.com/johnayoung/go-quote-forecaster/internal/pipeline"
	"github.com/johnayoung/go-quote-forecaster/internal/series"
	"github.com/johnayoung/go-quote-forecaster/internal/storage"
)

// Service owns the store, fetch client, cache and engine for one process.
type Service struct {
	cfg      *config.AppConfig
	fetcher  exchange.PriceFetcher
	store    storage.QuoteStore
	audit    *storage.AuditLog
	cache    cache.ForecastCache
	loader   *series.Loader
	engine   *forecast.Engine
	pipeline *pipeline.Pipeline
}

// Status is a point-in-time summary of the service.
type Status struct {
	Store     *storage.StoreStats `json:"store,omitempty"`
	StoreErr  string              `json:"store_error,omitempty"`
	AuditRows int                 `json:"audit_rows"`
	AuditPath string              `json:"audit_path"`
	Forecast  forecast.Stats      `json:"forecast"`
	Ingest    pipeline.Stats      `json:"ingest"`
	CacheSize int                 `json:"cache_size"`
	Upstream  string              `json:"upstream"`
}

// New wires a Service from cfg with the production CoinGecko client, parquet
// store and configured cache backend.
func New(ctx context.Context, cfg *config.AppConfig, logs *logger.LoggerManager) (*Service, error) {
	return NewBuilder(cfg).WithLoggerManager(logs).Build(ctx)
}

// Ingest runs one ingestion cycle for the configured coins and returns the
// number of rows written.
func (s *Service) Ingest(ctx context.Context) (int, error) {
	quotes, err := s.pipeline.Run(ctx, s.cfg.Exchange.Coins)
	return len(quotes), err
}

// History returns the stored quotes of assetID in ascending order, limited to
// the last hours when hours is positive.
func (s *Service) History(ctx context.Context, assetID string, hours int) ([]models.Quote, error) {
	return s.loader.History(ctx, assetID, hours)
}

// Transform derives conversion, smoothing, return and volatility columns over
// the stored history of assetID and keeps the rows in the requested range.
func (s *Service) Transform(ctx context.Context, assetID string, opts series.TransformOptions) ([]series.TransformRow, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	quotes, err := s.loader.History(ctx, assetID, 0)
	if err != nil {
		return nil, err
	}
	return series.Transform(quotes, opts)
}

// Forecast returns the horizon-step forecast for assetID.
func (s *Service) Forecast(ctx context.Context, assetID string, horizon int) (*models.ForecastResult, error) {
	return s.engine.Forecast(ctx, assetID, horizon)
}

// Invalidate drops cached forecasts for assetID.
func (s *Service) Invalidate(ctx context.Context, assetID string) error {
	return s.engine.Invalidate(ctx, assetID)
}

// InvalidateAll drops every cached forecast.
func (s *Service) InvalidateAll(ctx context.Context) error {
	return s.engine.InvalidateAll(ctx)
}

// Strategy reports which forecasting path was selected at startup.
func (s *Service) Strategy() forecast.ProbeResult {
	return s.engine.Strategy()
}

// Status gathers store, audit, cache and engine statistics. An empty store is
// reported in StoreErr rather than as an error.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	st := &Status{
		AuditPath: s.audit.Path(),
		Forecast:  s.engine.Stats(),
		Ingest:    s.pipeline.Stats(),
		Upstream:  "unchecked",
	}

	stats, err := s.store.Stats(ctx)
	switch {
	case err == nil:
		st.Store = stats
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	default:
		st.StoreErr = err.Error()
	}

	rows, err := s.auditRows()
	if err != nil {
		return nil, err
	}
	st.AuditRows = rows

	if n, err := s.cache.Len(ctx); err == nil {
		st.CacheSize = n
	}

	if hc, ok := s.fetcher.(exchange.HealthChecker); ok {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := hc.HealthCheck(checkCtx); err != nil {
			st.Upstream = "unreachable: " + err.Error()
		} else {
			st.Upstream = "ok"
		}
	}
	return st, nil
}

func (s *Service) auditRows() (int, error) {
	f, err := os.Open(s.audit.Path())
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	quotes, err := storage.ReadAudit(f)
	if err != nil {
		return 0, fmt.Errorf("failed to read audit log: %w", err)
	}
	return len(quotes), nil
}

// Close releases the store and cache.
func (s *Service) Close() error {
	var errs []error
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if err := s.cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close cache: %w", err))
	}
	return errors.Join(errs...)
}
