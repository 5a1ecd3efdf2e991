// Package pipeline runs one ingestion cycle: fetch the latest prices, append
// them to today's partition and the audit log, and drop stale forecasts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	qerrors "github.com/johnayoung/go-quote-forecaster/internal/errors"
	"github.com/johnayoung/go-quote-forecaster/internal/exchange"
	"github.com/johnayoung/go-quote-forecaster/internal/logger"
	"github.com/johnayoung/go-quote-forecaster/internal/models"
	"github.com/johnayoung/go-quote-forecaster/internal/storage"
)

// AuditWriter records ingested quotes outside the partitioned store.
type AuditWriter interface {
	Append(quotes []models.Quote) error
}

// Invalidator drops cached forecasts of an asset.
type Invalidator interface {
	Invalidate(ctx context.Context, assetID string) error
}

// Pipeline wires the fetcher to the store, audit log and forecast cache.
type Pipeline struct {
	fetcher     exchange.PriceFetcher
	store       storage.QuoteWriter
	audit       AuditWriter
	invalidator Invalidator
	logger      *logger.ComponentLogger
	now         func() time.Time
	metrics     *runMetrics
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used to stamp quotes.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithLogger sets the component logger.
func WithLogger(l *logger.ComponentLogger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// New creates a pipeline. audit and invalidator may be nil.
func New(fetcher exchange.PriceFetcher, store storage.QuoteWriter, audit AuditWriter, invalidator Invalidator, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:     fetcher,
		store:       store,
		audit:       audit,
		invalidator: invalidator,
		logger:      &logger.ComponentLogger{Logger: slog.Default()},
		now:         time.Now,
		metrics:     newRunMetrics(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run performs one ingestion cycle for assetIDs and returns the quotes written
// to the store. Quotes are returned even when a later step (audit or cache
// invalidation) fails; that failure is reported in the error.
func (p *Pipeline) Run(ctx context.Context, assetIDs []string) ([]models.Quote, error) {
	start := time.Now()
	runID := uuid.New().String()
	ctx = logger.WithRunID(ctx, runID)
	ctx = logger.WithOperation(ctx, "ingest")
	log := p.logger.FromContext(ctx)

	p.metrics.recordRun(runID)

	prices, err := p.fetcher.FetchPrices(ctx, assetIDs)
	if err != nil {
		p.metrics.recordFailure(err)
		return nil, fmt.Errorf("ingest run %s: %w", runID, err)
	}

	quotes := p.buildQuotes(log, prices)
	if len(quotes) == 0 {
		err := fmt.Errorf("ingest run %s: %w", runID, qerrors.ErrNoDataFetched)
		p.metrics.recordFailure(err)
		return nil, err
	}

	if err := p.store.Append(ctx, quotes); err != nil {
		p.metrics.recordFailure(err)
		return nil, fmt.Errorf("ingest run %s: %w", runID, err)
	}

	var errs []error
	if p.audit != nil {
		if err := p.audit.Append(quotes); err != nil {
			errs = append(errs, fmt.Errorf("audit: %w", err))
		}
	}

	if p.invalidator != nil {
		for _, q := range quotes {
			if err := p.invalidator.Invalidate(ctx, q.AssetID); err != nil {
				errs = append(errs, fmt.Errorf("invalidate %s: %w", q.AssetID, err))
			}
		}
	}

	if len(errs) > 0 {
		err := fmt.Errorf("ingest run %s: %w", runID, errors.Join(errs...))
		p.metrics.recordPartial(len(quotes), p.now().UTC(), time.Since(start), err)
		return quotes, err
	}

	p.metrics.recordSuccess(len(quotes), p.now().UTC(), time.Since(start))

	log.Info("ingestion run completed",
		"rows", len(quotes),
		"duration", time.Since(start))
	return quotes, nil
}

// Stats returns a snapshot of the run counters.
func (p *Pipeline) Stats() Stats {
	return p.metrics.snapshot()
}

// buildQuotes stamps every fetched price with one run timestamp. Quotes are
// ordered by asset so partitions are written deterministically.
func (p *Pipeline) buildQuotes(log *slog.Logger, prices map[string]models.PriceQuote) []models.Quote {
	ts := p.now().UTC()

	ids := make([]string, 0, len(prices))
	for id := range prices {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	quotes := make([]models.Quote, 0, len(ids))
	for _, id := range ids {
		q, err := models.NewQuote(ts, id, prices[id])
		if err != nil {
			log.Warn("dropping invalid quote", "asset", id, "error", err)
			continue
		}
		quotes = append(quotes, *q)
	}
	return quotes
}
