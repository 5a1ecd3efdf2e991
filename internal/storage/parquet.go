package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marcboeker/go-duckdb/v2"

	qerrors "github.com/johnayoung/go-quote-forecaster/internal/errors"
	"github.com/johnayoung/go-quote-forecaster/internal/models"
)

const (
	// partitionFile is the single parquet file inside each day directory
	partitionFile = "quotes.parquet"

	quoteColumns = "ts, asset_id, price, pct, ingested_at"
	quoteSchema  = "ts TIMESTAMPTZ, asset_id VARCHAR, price DOUBLE, pct DOUBLE, ingested_at TIMESTAMPTZ"
)

// ParquetStore implements QuoteStore on top of daily parquet files. DuckDB runs
// in memory and is used only as the parquet engine: appends are staged with the
// Appender API and rewritten with COPY, scans use read_parquet.
type ParquetStore struct {
	root   string
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// Performance tracking
	queryTimes map[string][]time.Duration
	queryMu    sync.Mutex
}

// NewParquetStore opens a store rooted at root. The directory is created on the
// first append, so a fresh store reports ErrStoreNotInitialized until then.
func NewParquetStore(root string, logger *slog.Logger) (*ParquetStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if root == "" {
		return nil, NewStorageError("open", "", "", fmt.Errorf("store root is required"))
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, NewStorageError("open", "", "", fmt.Errorf("failed to open DuckDB engine: %w", err))
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	s := &ParquetStore{
		root:       root,
		db:         db,
		logger:     logger,
		now:        time.Now,
		locks:      make(map[string]*sync.Mutex),
		queryTimes: make(map[string][]time.Duration),
	}

	s.configureEngine()
	return s, nil
}

// configureEngine applies optional DuckDB settings.
func (s *ParquetStore) configureEngine() {
	settings := []string{
		"SET GLOBAL enable_progress_bar = false",
		"SET GLOBAL memory_limit = '512MB'",
	}
	for _, setting := range settings {
		if _, err := s.db.Exec(setting); err != nil {
			s.logger.Warn("failed to apply engine setting", "setting", setting, "error", err)
		}
	}
}

// Append implements QuoteWriter.Append
func (s *ParquetStore) Append(ctx context.Context, quotes []models.Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	if err := validateQuotes(quotes); err != nil {
		return NewAppendError("", err)
	}

	groups, days := groupByDay(quotes)
	for _, day := range days {
		if err := s.appendPartition(ctx, day, groups[day]); err != nil {
			return err
		}
	}
	return nil
}

// partitionLock returns the writer lock for a day, creating it on first use.
func (s *ParquetStore) partitionLock(day string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, ok := s.locks[day]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[day] = lock
	}
	return lock
}

// appendPartition rewrites one day's file as old rows followed by the new ones.
func (s *ParquetStore) appendPartition(ctx context.Context, day string, rows []models.Quote) error {
	start := time.Now()
	defer func() {
		s.recordQueryTime("append", time.Since(start))
	}()

	lock := s.partitionLock(day)
	lock.Lock()
	defer lock.Unlock()

	dir := filepath.Join(s.root, day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return NewAppendError(day, fmt.Errorf("failed to create partition directory: %w", err))
	}
	final := filepath.Join(dir, partitionFile)

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return NewAppendError(day, fmt.Errorf("failed to get connection: %w", err))
	}
	defer conn.Close()

	staging := "staging_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", staging, quoteSchema)); err != nil {
		return NewAppendError(day, fmt.Errorf("failed to create staging table: %w", err))
	}
	defer func() {
		if _, err := conn.ExecContext(context.Background(), "DROP TABLE IF EXISTS "+staging); err != nil {
			s.logger.Warn("failed to drop staging table", "table", staging, "error", err)
		}
	}()

	ingestedAt := s.now().UTC()
	err = conn.Raw(func(dc any) error {
		driverConn, ok := dc.(driver.Conn)
		if !ok {
			return fmt.Errorf("underlying connection is not a DuckDB connection")
		}

		appender, err := duckdb.NewAppenderFromConn(driverConn, "", staging)
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}

		for _, q := range rows {
			var pct driver.Value
			if q.ChangePct.Valid {
				pct = q.ChangePct.Float64
			}
			if err := appender.AppendRow(q.Timestamp.UTC(), q.AssetID, q.Price, pct, ingestedAt); err != nil {
				appender.Close()
				return fmt.Errorf("failed to append quote %s: %w", q.String(), err)
			}
		}

		// Close flushes the remaining rows
		return appender.Close()
	})
	if err != nil {
		return NewAppendError(day, err)
	}

	source := fmt.Sprintf("SELECT %s FROM %s", quoteColumns, staging)
	existing, err := fileExists(final)
	if err != nil {
		return NewAppendError(day, err)
	}
	if existing {
		source = fmt.Sprintf("SELECT %s FROM read_parquet(%s) UNION ALL %s", quoteColumns, sqlLiteral(final), source)
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s-%s.tmp", partitionFile, uuid.NewString()))
	copyStmt := fmt.Sprintf("COPY (%s) TO %s (FORMAT PARQUET, COMPRESSION SNAPPY)", source, sqlLiteral(tmp))
	if _, err := conn.ExecContext(ctx, copyStmt); err != nil {
		os.Remove(tmp)
		return &StorageError{Operation: "append", Partition: day, Query: copyStmt, Err: fmt.Errorf("failed to write partition: %w", err)}
	}

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return NewAppendError(day, fmt.Errorf("failed to replace partition file: %w", err))
	}

	s.logger.Debug("appended quotes to partition",
		"partition", day,
		"rows", len(rows),
		"existing", existing,
		"duration", time.Since(start))

	return nil
}

// Scan implements QuoteReader.Scan
func (s *ParquetStore) Scan(ctx context.Context, assetID string, since *time.Time) ([]models.Quote, error) {
	start := time.Now()
	defer func() {
		s.recordQueryTime("scan", time.Since(start))
	}()

	files, err := s.partitionFiles(since)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &qerrors.NoDataForAssetError{AssetID: assetID}
	}

	query := fmt.Sprintf("SELECT ts, asset_id, price, pct FROM read_parquet(%s) WHERE asset_id = ? ORDER BY ts, ingested_at",
		sqlList(files))

	rows, err := s.db.QueryContext(ctx, query, assetID)
	if err != nil {
		return nil, NewScanError(query, err)
	}
	defer rows.Close()

	var quotes []models.Quote
	for rows.Next() {
		var (
			q   models.Quote
			pct sql.NullFloat64
		)
		if err := rows.Scan(&q.Timestamp, &q.AssetID, &q.Price, &pct); err != nil {
			return nil, NewScanError(query, fmt.Errorf("failed to scan row: %w", err))
		}
		q.Timestamp = q.Timestamp.UTC()
		if pct.Valid {
			q.ChangePct.SetValid(pct.Float64)
		}
		if since != nil && q.Timestamp.Before(*since) {
			continue
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, NewScanError(query, err)
	}

	if len(quotes) == 0 {
		return nil, &qerrors.NoDataForAssetError{AssetID: assetID}
	}
	return quotes, nil
}

// Partitions implements QuoteReader.Partitions
func (s *ParquetStore) Partitions(ctx context.Context) ([]string, error) {
	days, err := s.listPartitions()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.name
	}
	return names, nil
}

// Stats implements QuoteStore.Stats
func (s *ParquetStore) Stats(ctx context.Context) (*StoreStats, error) {
	files, err := s.partitionFiles(nil)
	if err != nil {
		return nil, err
	}

	stats := &StoreStats{
		Partitions:       len(files),
		QueryPerformance: s.averageQueryTimes(),
	}
	for _, f := range files {
		if info, err := os.Stat(f); err == nil {
			stats.SizeBytes += info.Size()
		}
	}

	source := "read_parquet(" + sqlList(files) + ")"

	var earliest, latest sql.NullTime
	summary := "SELECT count(*), min(ts), max(ts) FROM " + source
	if err := s.db.QueryRowContext(ctx, summary).Scan(&stats.Rows, &earliest, &latest); err != nil {
		return nil, NewStorageError("stats", "", summary, err)
	}
	if earliest.Valid {
		stats.Earliest = earliest.Time.UTC()
	}
	if latest.Valid {
		stats.Latest = latest.Time.UTC()
	}

	assetsQuery := "SELECT DISTINCT asset_id FROM " + source + " ORDER BY asset_id"
	rows, err := s.db.QueryContext(ctx, assetsQuery)
	if err != nil {
		return nil, NewStorageError("stats", "", assetsQuery, err)
	}
	defer rows.Close()
	for rows.Next() {
		var asset string
		if err := rows.Scan(&asset); err != nil {
			return nil, NewStorageError("stats", "", assetsQuery, err)
		}
		stats.Assets = append(stats.Assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("stats", "", assetsQuery, err)
	}

	return stats, nil
}

// Close implements QuoteStore.Close
func (s *ParquetStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

type partitionEntry struct {
	name  string
	start time.Time
	file  string
}

// listPartitions discovers day directories holding a partition file. Entries
// that are not YYYY-MM-DD directories are ignored.
func (s *ParquetStore) listPartitions() ([]partitionEntry, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, qerrors.ErrStoreNotInitialized
		}
		return nil, NewStorageError("list", "", "", fmt.Errorf("failed to read store root: %w", err))
	}

	var out []partitionEntry
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dayStart, ok := partitionDayStart(entry.Name())
		if !ok {
			continue
		}
		file := filepath.Join(s.root, entry.Name(), partitionFile)
		exists, err := fileExists(file)
		if err != nil {
			return nil, NewStorageError("list", entry.Name(), "", err)
		}
		if !exists {
			continue
		}
		out = append(out, partitionEntry{name: entry.Name(), start: dayStart, file: file})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].start.Before(out[j].start) })
	return out, nil
}

// partitionFiles returns the files of partitions that may hold rows at or after
// since. It fails with ErrStoreNotInitialized when the store has no partition.
func (s *ParquetStore) partitionFiles(since *time.Time) ([]string, error) {
	partitions, err := s.listPartitions()
	if err != nil {
		return nil, err
	}
	if len(partitions) == 0 {
		return nil, qerrors.ErrStoreNotInitialized
	}

	files := make([]string, 0, len(partitions))
	for _, p := range partitions {
		if partitionOverlaps(p.start, since) {
			files = append(files, p.file)
		}
	}
	return files, nil
}

// recordQueryTime tracks operation durations for Stats
func (s *ParquetStore) recordQueryTime(operation string, duration time.Duration) {
	s.queryMu.Lock()
	defer s.queryMu.Unlock()

	// Keep only last 100 measurements to prevent memory growth
	times := s.queryTimes[operation]
	if len(times) >= 100 {
		times = times[1:]
	}
	s.queryTimes[operation] = append(times, duration)
}

func (s *ParquetStore) averageQueryTimes() map[string]time.Duration {
	s.queryMu.Lock()
	defer s.queryMu.Unlock()

	avg := make(map[string]time.Duration, len(s.queryTimes))
	for op, times := range s.queryTimes {
		if len(times) == 0 {
			continue
		}
		var total time.Duration
		for _, t := range times {
			total += t
		}
		avg[op] = total / time.Duration(len(times))
	}
	return avg
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", path, err)
}

// sqlLiteral quotes a string for inline use in DuckDB statements that do not
// accept bound parameters, such as COPY targets.
func sqlLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func sqlList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = sqlLiteral(item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// Compile-time interface compliance check
var _ QuoteStore = (*ParquetStore)(nil)
