package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	qerrors "github.com/johnayoung/go-quote-forecaster/internal/errors"
	"github.com/johnayoung/go-quote-forecaster/internal/models"
)

// MemoryStore provides an in-memory implementation of QuoteStore with the same
// partitioning and error semantics as ParquetStore. It is used by tests of the
// upper layers and by embedding callers that do not need persistence.
type MemoryStore struct {
	mu sync.RWMutex

	// partitions: day -> rows in write order
	partitions map[string][]models.Quote
	closed     bool
}

// NewMemoryStore creates a new in-memory store instance.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		partitions: make(map[string][]models.Quote),
	}
}

// Append implements QuoteWriter.Append
func (m *MemoryStore) Append(ctx context.Context, quotes []models.Quote) error {
	if ctx.Err() != nil {
		return NewAppendError("", ctx.Err())
	}
	if len(quotes) == 0 {
		return nil
	}
	if err := validateQuotes(quotes); err != nil {
		return NewAppendError("", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return NewAppendError("", errors.New("storage is closed"))
	}

	groups, days := groupByDay(quotes)
	for _, day := range days {
		for _, q := range groups[day] {
			q.Timestamp = q.Timestamp.UTC()
			m.partitions[day] = append(m.partitions[day], q)
		}
	}
	return nil
}

// Scan implements QuoteReader.Scan
func (m *MemoryStore) Scan(ctx context.Context, assetID string, since *time.Time) ([]models.Quote, error) {
	if ctx.Err() != nil {
		return nil, NewScanError("", ctx.Err())
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.partitions) == 0 {
		return nil, qerrors.ErrStoreNotInitialized
	}

	var out []models.Quote
	for _, day := range m.sortedDays() {
		start, _ := partitionDayStart(day)
		if !partitionOverlaps(start, since) {
			continue
		}
		for _, q := range m.partitions[day] {
			if q.AssetID != assetID {
				continue
			}
			if since != nil && q.Timestamp.Before(*since) {
				continue
			}
			out = append(out, q)
		}
	}

	if len(out) == 0 {
		return nil, &qerrors.NoDataForAssetError{AssetID: assetID}
	}

	// stable keeps write order for equal timestamps
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Partitions implements QuoteReader.Partitions
func (m *MemoryStore) Partitions(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedDays(), nil
}

// Stats implements QuoteStore.Stats
func (m *MemoryStore) Stats(ctx context.Context) (*StoreStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.partitions) == 0 {
		return nil, qerrors.ErrStoreNotInitialized
	}

	stats := &StoreStats{Partitions: len(m.partitions)}
	assets := make(map[string]bool)
	for _, rows := range m.partitions {
		for _, q := range rows {
			stats.Rows++
			assets[q.AssetID] = true
			if stats.Earliest.IsZero() || q.Timestamp.Before(stats.Earliest) {
				stats.Earliest = q.Timestamp
			}
			if q.Timestamp.After(stats.Latest) {
				stats.Latest = q.Timestamp
			}
		}
	}
	for asset := range assets {
		stats.Assets = append(stats.Assets, asset)
	}
	sort.Strings(stats.Assets)
	return stats, nil
}

// Close implements QuoteStore.Close
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryStore) sortedDays() []string {
	days := make([]string, 0, len(m.partitions))
	for day := range m.partitions {
		days = append(days, day)
	}
	sort.Strings(days)
	return days
}

// Compile-time interface compliance check
var _ QuoteStore = (*MemoryStore)(nil)
