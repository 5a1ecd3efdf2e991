package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/johnayoung/go-quote-forecaster/internal/errors"
	"github.com/johnayoung/go-quote-forecaster/internal/models"
)

var baseTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type storeFactory func(t *testing.T) QuoteStore

func newTestParquetStore(t *testing.T) QuoteStore {
	t.Helper()
	root := filepath.Join(t.TempDir(), "parquet")
	store, err := NewParquetStore(root, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err, "failed to create test parquet store")
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestMemoryStore(t *testing.T) QuoteStore {
	return NewMemoryStore()
}

// createTestQuotes generates hourly quotes for an asset.
func createTestQuotes(asset string, count int, start time.Time, basePrice float64) []models.Quote {
	quotes := make([]models.Quote, count)
	for i := range quotes {
		quotes[i] = models.Quote{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			AssetID:   asset,
			Price:     basePrice + float64(i),
			ChangePct: null.FloatFrom(float64(i) / 10),
		}
	}
	return quotes
}

func forEachStore(t *testing.T, fn func(t *testing.T, newStore storeFactory)) {
	t.Run("parquet", func(t *testing.T) { fn(t, newTestParquetStore) })
	t.Run("memory", func(t *testing.T) { fn(t, newTestMemoryStore) })
}

func TestStore_AppendPreservesExistingRows(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		store := newStore(t)
		ctx := context.Background()

		first := createTestQuotes("bitcoin", 3, baseTime, 100)
		second := createTestQuotes("bitcoin", 4, baseTime.Add(3*time.Hour), 200)

		require.NoError(t, store.Append(ctx, first))
		require.NoError(t, store.Append(ctx, second))

		got, err := store.Scan(ctx, "bitcoin", nil)
		require.NoError(t, err)
		require.Len(t, got, 7)

		for i, q := range first {
			assert.True(t, q.Timestamp.Equal(got[i].Timestamp))
			assert.Equal(t, q.Price, got[i].Price)
			assert.Equal(t, q.ChangePct, got[i].ChangePct)
		}
		assert.Equal(t, 203.0, got[6].Price)

		partitions, err := store.Partitions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-05-01"}, partitions)
	})
}

func TestStore_PartitionsByUTCDay(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		store := newStore(t)
		ctx := context.Background()

		quotes := createTestQuotes("ethereum", 40, baseTime, 3000) // spans into the next two days
		require.NoError(t, store.Append(ctx, quotes))

		partitions, err := store.Partitions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-05-01", "2024-05-02", "2024-05-03"}, partitions)

		got, err := store.Scan(ctx, "ethereum", nil)
		require.NoError(t, err)
		require.Len(t, got, 40)
		for i := 1; i < len(got); i++ {
			assert.True(t, got[i].Timestamp.After(got[i-1].Timestamp), "ascending order")
		}
	})
}

func TestStore_ScanFiltersAssetAndSince(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Append(ctx, createTestQuotes("bitcoin", 48, baseTime, 100)))
		require.NoError(t, store.Append(ctx, createTestQuotes("ethereum", 5, baseTime, 10)))

		since := baseTime.Add(40 * time.Hour)
		got, err := store.Scan(ctx, "bitcoin", &since)
		require.NoError(t, err)
		require.Len(t, got, 8)
		assert.True(t, got[0].Timestamp.Equal(since))
		for _, q := range got {
			assert.Equal(t, "bitcoin", q.AssetID)
		}

		future := baseTime.Add(30 * 24 * time.Hour)
		_, err = store.Scan(ctx, "bitcoin", &future)
		assert.True(t, qerrors.IsNoData(err))
	})
}

func TestStore_Errors(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.Scan(ctx, "bitcoin", nil)
		assert.ErrorIs(t, err, qerrors.ErrStoreNotInitialized)

		_, err = store.Stats(ctx)
		assert.ErrorIs(t, err, qerrors.ErrStoreNotInitialized)

		require.NoError(t, store.Append(ctx, createTestQuotes("bitcoin", 1, baseTime, 100)))

		_, err = store.Scan(ctx, "dogecoin", nil)
		var noData *qerrors.NoDataForAssetError
		require.ErrorAs(t, err, &noData)
		assert.Equal(t, "dogecoin", noData.AssetID)
	})
}

func TestStore_RejectsInvalidBatch(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		store := newStore(t)
		ctx := context.Background()

		batch := createTestQuotes("bitcoin", 2, baseTime, 100)
		batch[1].Price = -1
		err := store.Append(ctx, batch)
		require.Error(t, err)

		var serr *StorageError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "append", serr.Operation)

		_, err = store.Scan(ctx, "bitcoin", nil)
		assert.ErrorIs(t, err, qerrors.ErrStoreNotInitialized, "nothing written")
	})
}

func TestStore_NullChangePercentRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		store := newStore(t)
		ctx := context.Background()

		q := models.Quote{Timestamp: baseTime, AssetID: "solana", Price: 150.5}
		require.NoError(t, store.Append(ctx, []models.Quote{q}))

		got, err := store.Scan(ctx, "solana", nil)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.False(t, got[0].ChangePct.Valid)
		assert.Equal(t, time.UTC, got[0].Timestamp.Location())
	})
}

func TestStore_DuplicateTimestampsKeepWriteOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Append(ctx, []models.Quote{{Timestamp: baseTime, AssetID: "bitcoin", Price: 1}}))
		time.Sleep(2 * time.Millisecond)
		require.NoError(t, store.Append(ctx, []models.Quote{{Timestamp: baseTime, AssetID: "bitcoin", Price: 2}}))

		got, err := store.Scan(ctx, "bitcoin", nil)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 1.0, got[0].Price)
		assert.Equal(t, 2.0, got[1].Price)
	})
}

func TestStore_ConcurrentAppendsSamePartition(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		store := newStore(t)
		ctx := context.Background()

		const writers = 8
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				q := models.Quote{
					Timestamp: baseTime.Add(time.Duration(i) * time.Minute),
					AssetID:   "bitcoin",
					Price:     float64(100 + i),
				}
				errs <- store.Append(ctx, []models.Quote{q})
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, err := store.Scan(ctx, "bitcoin", nil)
		require.NoError(t, err)
		assert.Len(t, got, writers, "no append may be lost")
	})
}

func TestStore_Stats(t *testing.T) {
	forEachStore(t, func(t *testing.T, newStore storeFactory) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Append(ctx, createTestQuotes("bitcoin", 26, baseTime, 100)))
		require.NoError(t, store.Append(ctx, createTestQuotes("ethereum", 2, baseTime, 10)))

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Partitions)
		assert.Equal(t, int64(28), stats.Rows)
		assert.Equal(t, []string{"bitcoin", "ethereum"}, stats.Assets)
		assert.True(t, stats.Earliest.Equal(baseTime))
		assert.True(t, stats.Latest.Equal(baseTime.Add(25*time.Hour)))
	})
}

func TestParquetStore_IgnoresForeignEntries(t *testing.T) {
	root := filepath.Join(t.TempDir(), "parquet")
	store, err := NewParquetStore(root, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, createTestQuotes("bitcoin", 2, baseTime, 100)))

	require.NoError(t, os.WriteFile(filepath.Join(root, "README.txt"), []byte("notes"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tmp"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "2024-05-09"), 0o755)) // interrupted first write
	require.NoError(t, os.WriteFile(filepath.Join(root, "2024-05-01", ".quotes.parquet-x.tmp"), []byte("partial"), 0o644))

	partitions, err := store.Partitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-05-01"}, partitions)

	got, err := store.Scan(ctx, "bitcoin", nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestParquetStore_LayoutAndNoLeftovers(t *testing.T) {
	root := filepath.Join(t.TempDir(), "parquet")
	store, err := NewParquetStore(root, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(ctx, createTestQuotes("bitcoin", 1, baseTime.Add(time.Duration(i)*time.Hour), 100)))
	}

	entries, err := os.ReadDir(filepath.Join(root, "2024-05-01"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files are renamed away")
	assert.Equal(t, "quotes.parquet", entries[0].Name())

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Greater(t, stats.SizeBytes, int64(0))
	assert.Contains(t, stats.QueryPerformance, "append")
}

func TestParquetStore_MissingRoot(t *testing.T) {
	store, err := NewParquetStore(filepath.Join(t.TempDir(), "does", "not", "exist"), nil)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Partitions(context.Background())
	assert.ErrorIs(t, err, qerrors.ErrStoreNotInitialized)
}

func TestParquetStore_PathWithQuote(t *testing.T) {
	root := filepath.Join(t.TempDir(), "o'brien", "parquet")
	store, err := NewParquetStore(root, nil)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, createTestQuotes("bitcoin", 2, baseTime, 100)))
	require.NoError(t, store.Append(ctx, createTestQuotes("bitcoin", 2, baseTime.Add(2*time.Hour), 100)))

	got, err := store.Scan(ctx, "bitcoin", nil)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestMemoryStore_Closed(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Close())
	err := store.Append(context.Background(), createTestQuotes("bitcoin", 1, baseTime, 1))
	assert.Error(t, err)
}

func TestSQLLiteral(t *testing.T) {
	assert.Equal(t, "'a''b'", sqlLiteral("a'b"))
	assert.Equal(t, "['x', 'y']", sqlList([]string{"x", "y"}))
}

func ExampleMemoryStore() {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Append(ctx, []models.Quote{{Timestamp: baseTime, AssetID: "bitcoin", Price: 64000}})
	quotes, _ := store.Scan(ctx, "bitcoin", nil)
	fmt.Println(len(quotes), quotes[0].Day())
	// Output: 1 2024-05-01
}
