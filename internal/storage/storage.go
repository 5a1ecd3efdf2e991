// Package storage persists price quotes in a day-partitioned columnar store and
// an append-only NDJSON audit log.
//
// The partitioned store is the system of record for forecasting: every UTC day
// owns one parquet file under <root>/YYYY-MM-DD/quotes.parquet. Writers to the
// same day serialize on a per-partition lock while readers never lock and may
// observe the state before a concurrent write.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/johnayoung/go-quote-forecaster/internal/models"
)

// QuoteWriter appends quotes to the store.
type QuoteWriter interface {
	// Append groups quotes by UTC day and appends each group to its
	// partition, creating the partition on first write. Existing rows are
	// preserved; the partition is replaced atomically.
	Append(ctx context.Context, quotes []models.Quote) error
}

// QuoteReader reads quotes back from the store.
type QuoteReader interface {
	// Scan returns every quote for assetID with a timestamp at or after since
	// (all quotes when since is nil), in ascending timestamp order. Rows
	// sharing a timestamp are returned in write order.
	//
	// It returns errors.ErrStoreNotInitialized when no partition exists and
	// *errors.NoDataForAssetError when partitions exist but none match.
	Scan(ctx context.Context, assetID string, since *time.Time) ([]models.Quote, error)

	// Partitions lists the partition days in ascending order.
	Partitions(ctx context.Context) ([]string, error)
}

// QuoteStore combines reading, writing and housekeeping.
type QuoteStore interface {
	QuoteWriter
	QuoteReader

	// Stats summarizes the store contents.
	Stats(ctx context.Context) (*StoreStats, error)

	// Close releases resources held by the store.
	Close() error
}

// StoreStats provides operational statistics about the store.
type StoreStats struct {
	Partitions int       `json:"partitions"`
	Rows       int64     `json:"rows"`
	Assets     []string  `json:"assets"`
	Earliest   time.Time `json:"earliest,omitempty"`
	Latest     time.Time `json:"latest,omitempty"`

	// SizeBytes is the on-disk size of all partition files.
	SizeBytes int64 `json:"size_bytes"`

	// QueryPerformance contains average durations by operation.
	QueryPerformance map[string]time.Duration `json:"query_performance,omitempty"`
}

// StorageError represents errors that occur during storage operations.
type StorageError struct {
	// Operation is the storage operation that failed (e.g., "append", "scan")
	Operation string

	// Partition is the day partition involved, if any
	Partition string

	// Query is the SQL statement involved (may be empty)
	Query string

	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for StorageError.
func (e *StorageError) Error() string {
	if e.Partition != "" {
		return fmt.Sprintf("storage operation %s on partition %s failed: %v", e.Operation, e.Partition, e.Err)
	}
	return fmt.Sprintf("storage operation %s failed: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error for error chain support.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError with the provided details.
func NewStorageError(operation, partition, query string, err error) *StorageError {
	return &StorageError{
		Operation: operation,
		Partition: partition,
		Query:     query,
		Err:       err,
	}
}

// NewAppendError creates a StorageError for append operations.
func NewAppendError(partition string, err error) *StorageError {
	return &StorageError{
		Operation: "append",
		Partition: partition,
		Err:       err,
	}
}

// NewScanError creates a StorageError for scan operations.
func NewScanError(query string, err error) *StorageError {
	return &StorageError{
		Operation: "scan",
		Query:     query,
		Err:       err,
	}
}

// groupByDay splits quotes into per-partition batches, keeping input order
// within each batch.
func groupByDay(quotes []models.Quote) (map[string][]models.Quote, []string) {
	groups := make(map[string][]models.Quote)
	var days []string
	for _, q := range quotes {
		day := q.Day()
		if _, ok := groups[day]; !ok {
			days = append(days, day)
		}
		groups[day] = append(groups[day], q)
	}
	return groups, days
}

// validateQuotes rejects the whole batch if any quote is invalid.
func validateQuotes(quotes []models.Quote) error {
	for i := range quotes {
		if err := quotes[i].Validate(); err != nil {
			return fmt.Errorf("invalid quote at index %d: %w", i, err)
		}
	}
	return nil
}

// partitionDayStart parses a partition name, reporting false for anything that
// is not a YYYY-MM-DD directory name.
func partitionDayStart(name string) (time.Time, bool) {
	if len(name) != len(models.PartitionLayout) {
		return time.Time{}, false
	}
	day, err := time.Parse(models.PartitionLayout, name)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// partitionOverlaps reports whether a partition may hold rows at or after since.
func partitionOverlaps(dayStart time.Time, since *time.Time) bool {
	if since == nil {
		return true
	}
	return dayStart.Add(24 * time.Hour).After(since.UTC())
}
