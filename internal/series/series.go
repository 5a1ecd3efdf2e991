// Package series turns the raw quote history of an asset into the uniform
// hourly series the forecast engine fits on.
package series

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/johnayoung/go-quote-forecaster/internal/models"
	"github.com/johnayoung/go-quote-forecaster/internal/storage"
)

// Loader reads quotes from a store and derives hourly series from them.
type Loader struct {
	store  storage.QuoteReader
	logger *slog.Logger
}

// NewLoader creates a loader over store.
func NewLoader(store storage.QuoteReader, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: store, logger: logger}
}

// LoadHourly scans every quote of assetID and resamples it to an hourly grid.
// Store errors (no partitions, unknown asset) are returned unchanged so the
// caller can match them.
func (l *Loader) LoadHourly(ctx context.Context, assetID string) (*models.HourlySeries, error) {
	quotes, err := l.store.Scan(ctx, assetID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load quotes for %s: %w", assetID, err)
	}

	s := ResampleHourly(assetID, quotes)
	l.logger.Debug("resampled hourly series",
		"asset", assetID,
		"quotes", len(quotes),
		"buckets", s.Len(),
		"filled", s.Filled)
	return s, nil
}

// History returns the deduplicated quotes of assetID in ascending order. When
// hours is positive only quotes within hours of the most recent one are kept.
func (l *Loader) History(ctx context.Context, assetID string, hours int) ([]models.Quote, error) {
	quotes, err := l.store.Scan(ctx, assetID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", assetID, err)
	}

	quotes = Dedup(quotes)
	if hours <= 0 || len(quotes) == 0 {
		return quotes, nil
	}

	cutoff := quotes[len(quotes)-1].Timestamp.Add(-time.Duration(hours) * time.Hour)
	i := sort.Search(len(quotes), func(i int) bool { return !quotes[i].Timestamp.Before(cutoff) })
	return quotes[i:], nil
}

// Dedup sorts quotes by timestamp and keeps one quote per exact timestamp. On
// ties the later quote in input order wins, which for store scans is the most
// recent write.
func Dedup(quotes []models.Quote) []models.Quote {
	if len(quotes) == 0 {
		return nil
	}

	sorted := make([]models.Quote, len(quotes))
	copy(sorted, quotes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	out := sorted[:0]
	for _, q := range sorted {
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(q.Timestamp) {
			out[n-1] = q
			continue
		}
		out = append(out, q)
	}
	return out
}

// ResampleHourly builds the hourly series: quotes are deduplicated, bucketed by
// the hour they fall in (last observation wins) and hours without any quote
// carry the previous bucket's price forward. Nothing is filled before the first
// observation and values are never interpolated.
func ResampleHourly(assetID string, quotes []models.Quote) *models.HourlySeries {
	s := &models.HourlySeries{AssetID: assetID}

	deduped := Dedup(quotes)
	if len(deduped) == 0 {
		return s
	}

	buckets := make(map[time.Time]float64, len(deduped))
	for _, q := range deduped {
		buckets[q.Timestamp.UTC().Truncate(time.Hour)] = q.Price
	}

	first := deduped[0].Timestamp.UTC().Truncate(time.Hour)
	last := deduped[len(deduped)-1].Timestamp.UTC().Truncate(time.Hour)

	n := int(last.Sub(first)/time.Hour) + 1
	s.Points = make([]models.HourlyPoint, 0, n)

	var carry float64
	for hour := first; !hour.After(last); hour = hour.Add(time.Hour) {
		if price, ok := buckets[hour]; ok {
			carry = price
			s.Observed++
		} else {
			s.Filled++
		}
		s.Points = append(s.Points, models.HourlyPoint{Hour: hour, Price: carry})
	}
	return s
}
