package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/johnayoung/go-quote-forecaster/internal/cache"
	qerrors "github.com/johnayoung/go-quote-forecaster/internal/errors"
	"github.com/johnayoung/go-quote-forecaster/internal/logger"
	"github.com/johnayoung/go-quote-forecaster/internal/models"
)

// SeriesLoader provides the hourly series an engine fits on.
type SeriesLoader interface {
	LoadHourly(ctx context.Context, assetID string) (*models.HourlySeries, error)
}

// Config controls engine behaviour.
type Config struct {
	Horizon      int
	MinPoints    int
	DefaultAsset string
	StrictAssets bool
	// Model is SelectAuto or SelectFallback.
	Model        string
	SeasonLength int
}

// Stats are cumulative engine counters.
type Stats struct {
	Strategy      string         `json:"strategy"`
	Fits          map[string]int `json:"fits"`
	CacheHits     int64          `json:"cache_hits"`
	CacheMisses   int64          `json:"cache_misses"`
	Substitutions int64          `json:"substitutions"`
}

// Engine produces cached N-step hourly forecasts.
type Engine struct {
	loader   SeriesLoader
	cache    cache.ForecastCache
	cfg      Config
	logger   *slog.Logger
	primary  Model
	fallback Model
	probe    ProbeResult
	now      func() time.Time

	mu          sync.Mutex
	generations map[string]uint64
	epoch       uint64
	stats       Stats

	// assets whose primary fit has already been reported at warn level
	fitWarned sync.Map
}

// Option customises an Engine.
type Option func(*Engine)

// WithModels replaces the primary and fallback models.
func WithModels(primary, fallback Model) Option {
	return func(e *Engine) {
		e.primary = primary
		e.fallback = fallback
	}
}

// WithClock sets the clock used for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine builds an engine and probes the primary model once.
func NewEngine(loader SeriesLoader, c cache.ForecastCache, cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = models.DefaultHorizon
	}
	if cfg.MinPoints <= 0 {
		cfg.MinPoints = 1
	}
	if cfg.SeasonLength <= 1 {
		cfg.SeasonLength = DefaultSeasonLength
	}

	e := &Engine{
		loader:      loader,
		cache:       c,
		cfg:         cfg,
		logger:      logger,
		primary:     NewAutoARIMA(cfg.SeasonLength),
		fallback:    NewDampedTrend(),
		now:         time.Now,
		generations: make(map[string]uint64),
		stats:       Stats{Fits: make(map[string]int)},
	}
	for _, opt := range opts {
		opt(e)
	}

	e.probe = Probe(cfg.Model, e.primary, cfg.SeasonLength)
	e.stats.Strategy = e.probe.Strategy.String()
	if e.probe.Strategy == StrategyFallback {
		e.logger.Warn("primary forecast model unavailable, using damped trend",
			"reason", e.probe.Reason,
			"fallback", e.fallback.Name())
	} else {
		e.logger.Info("forecast strategy selected", "strategy", e.probe.Strategy.String(), "model", e.primary.Name())
	}
	return e
}

// Strategy reports the probe outcome.
func (e *Engine) Strategy() ProbeResult {
	return e.probe
}

// Forecast returns the horizon-step hourly forecast for assetID. A horizon of
// zero or less uses the configured default. Unknown assets are answered with
// the default asset unless strict mode is on. Repeated calls return the same
// cached result until Invalidate is called for the asset.
func (e *Engine) Forecast(ctx context.Context, assetID string, horizon int) (*models.ForecastResult, error) {
	if horizon <= 0 {
		horizon = e.cfg.Horizon
	}
	assetID = strings.ToLower(strings.TrimSpace(assetID))
	if assetID == "" {
		assetID = e.cfg.DefaultAsset
	}

	ctx = logger.WithAsset(logger.WithOperation(ctx, "forecast"), assetID)

	key := cache.Key{AssetID: assetID, Horizon: horizon}
	if result, ok := e.lookup(ctx, key); ok {
		return result, nil
	}

	gen := e.generation(assetID)
	s, err := e.loader.LoadHourly(ctx, assetID)
	if err != nil {
		var noData *qerrors.NoDataForAssetError
		if !errors.As(err, &noData) {
			return nil, err
		}
		if e.cfg.StrictAssets {
			return nil, &qerrors.UnknownAssetError{AssetID: assetID, Err: err}
		}
		if assetID == e.cfg.DefaultAsset || e.cfg.DefaultAsset == "" {
			return nil, err
		}

		e.log(ctx).Warn("no data for asset, substituting default",
			"substitute", e.cfg.DefaultAsset)
		e.mu.Lock()
		e.stats.Substitutions++
		e.mu.Unlock()

		assetID = e.cfg.DefaultAsset
		ctx = logger.WithAsset(ctx, assetID)
		key = cache.Key{AssetID: assetID, Horizon: horizon}
		if result, ok := e.lookup(ctx, key); ok {
			return result, nil
		}
		gen = e.generation(assetID)
		if s, err = e.loader.LoadHourly(ctx, assetID); err != nil {
			return nil, err
		}
	}

	result, err := e.compute(ctx, s, horizon)
	if err != nil {
		return nil, err
	}

	e.store(ctx, key, gen, result)
	return result, nil
}

// Invalidate drops cached forecasts for assetID. A forecast already being
// computed for the asset is not cached when it completes.
func (e *Engine) Invalidate(ctx context.Context, assetID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generations[assetID]++
	if err := e.cache.Invalidate(ctx, assetID); err != nil {
		return fmt.Errorf("failed to invalidate forecasts for %s: %w", assetID, err)
	}
	return nil
}

// InvalidateAll drops every cached forecast.
func (e *Engine) InvalidateAll(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.epoch++
	if err := e.cache.Purge(ctx); err != nil {
		return fmt.Errorf("failed to purge forecast cache: %w", err)
	}
	return nil
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.stats
	out.Fits = make(map[string]int, len(e.stats.Fits))
	for k, v := range e.stats.Fits {
		out.Fits[k] = v
	}
	return out
}

// log returns the engine logger with the operation and asset carried by ctx.
func (e *Engine) log(ctx context.Context) *slog.Logger {
	return e.logger.With(logger.ContextAttrs(ctx)...)
}

func (e *Engine) lookup(ctx context.Context, key cache.Key) (*models.ForecastResult, bool) {
	result, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Warn("forecast cache lookup failed", "key", key.String(), "error", err)
		ok = false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if ok {
		e.stats.CacheHits++
		return result, true
	}
	e.stats.CacheMisses++
	return nil, false
}

func (e *Engine) generation(assetID string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epoch + e.generations[assetID]
}

func (e *Engine) store(ctx context.Context, key cache.Key, gen uint64, result *models.ForecastResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch+e.generations[key.AssetID] != gen {
		e.logger.Debug("asset invalidated during forecast, not caching", "key", key.String())
		return
	}
	if err := e.cache.Put(ctx, key, result); err != nil {
		e.logger.Warn("failed to cache forecast", "key", key.String(), "error", err)
	}
}

func (e *Engine) compute(ctx context.Context, s *models.HourlySeries, horizon int) (*models.ForecastResult, error) {
	if s == nil || s.Len() == 0 {
		return nil, qerrors.ErrEmptySeries
	}
	log := e.log(ctx)

	values := s.Values()
	var (
		prices []float64
		model  string
		err    error
	)

	switch {
	case len(values) < e.cfg.MinPoints:
		log.Info("insufficient history, projecting last price",
			"points", len(values),
			"min_points", e.cfg.MinPoints)
		prices, model = FlatProjection(values[len(values)-1], horizon), ModelFlat

	case e.probe.Strategy == StrategyPrimary:
		prices, err = e.primary.Forecast(values, horizon)
		model = e.primary.Name()
		if err != nil {
			level := slog.LevelWarn
			if _, warned := e.fitWarned.LoadOrStore(s.AssetID, struct{}{}); warned {
				level = slog.LevelDebug
			}
			log.Log(ctx, level, "primary model fit failed, using fallback for this series",
				"error", err)
			prices, err = e.fallback.Forecast(values, horizon)
			model = e.fallback.Name()
		}

	default:
		prices, err = e.fallback.Forecast(values, horizon)
		model = e.fallback.Name()
	}
	if err != nil {
		return nil, fmt.Errorf("forecast %s: %w", s.AssetID, err)
	}
	if len(prices) != horizon {
		return nil, fmt.Errorf("forecast %s: %s returned %d points, want %d", s.AssetID, model, len(prices), horizon)
	}

	e.mu.Lock()
	e.stats.Fits[model]++
	e.mu.Unlock()

	result := &models.ForecastResult{
		AssetID:     s.AssetID,
		Horizon:     horizon,
		Model:       model,
		GeneratedAt: e.now().UTC(),
		Points:      make([]models.ForecastPoint, horizon),
	}
	for i, ts := range models.FutureHours(s.Last().Hour, horizon) {
		result.Points[i] = models.ForecastPoint{Timestamp: ts, Price: prices[i]}
	}

	log.Debug("forecast computed",
		"model", model,
		"horizon", horizon,
		"points", len(values))
	return result, nil
}
