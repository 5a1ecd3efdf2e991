package pipeline

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats summarises ingestion runs since the pipeline was created. Every run
// counts once: as a failure, a partial failure (rows stored but audit or
// invalidation failed) or neither.
type Stats struct {
	Runs            int64         `json:"runs"`
	Failures        int64         `json:"failures"`
	PartialFailures int64         `json:"partial_failures"`
	RowsWritten     int64         `json:"rows_written"`
	LastRunID       string        `json:"last_run_id,omitempty"`
	LastSuccess     time.Time     `json:"last_success,omitempty"`
	LastError       string        `json:"last_error,omitempty"`
	AvgDuration     time.Duration `json:"avg_duration"`
}

// runMetrics tracks pipeline runs
type runMetrics struct {
	runs          int64
	failures      int64
	partials      int64
	rowsWritten   int64
	successes     int64
	totalDuration int64 // nanoseconds

	mu          sync.RWMutex
	lastRunID   string
	lastSuccess time.Time
	lastError   string
}

func newRunMetrics() *runMetrics {
	return &runMetrics{}
}

func (m *runMetrics) recordRun(runID string) {
	atomic.AddInt64(&m.runs, 1)
	m.mu.Lock()
	m.lastRunID = runID
	m.mu.Unlock()
}

func (m *runMetrics) recordSuccess(rows int, at time.Time, duration time.Duration) {
	atomic.AddInt64(&m.rowsWritten, int64(rows))
	atomic.AddInt64(&m.successes, 1)
	atomic.AddInt64(&m.totalDuration, duration.Nanoseconds())
	m.mu.Lock()
	m.lastSuccess = at
	m.mu.Unlock()
}

// recordPartial counts a run whose rows were stored but whose follow-up steps
// failed.
func (m *runMetrics) recordPartial(rows int, at time.Time, duration time.Duration, err error) {
	m.recordSuccess(rows, at, duration)
	atomic.AddInt64(&m.partials, 1)
	m.mu.Lock()
	m.lastError = err.Error()
	m.mu.Unlock()
}

func (m *runMetrics) recordFailure(err error) {
	atomic.AddInt64(&m.failures, 1)
	m.mu.Lock()
	m.lastError = err.Error()
	m.mu.Unlock()
}

func (m *runMetrics) snapshot() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{
		Runs:            atomic.LoadInt64(&m.runs),
		Failures:        atomic.LoadInt64(&m.failures),
		PartialFailures: atomic.LoadInt64(&m.partials),
		RowsWritten:     atomic.LoadInt64(&m.rowsWritten),
		LastRunID:       m.lastRunID,
		LastSuccess:     m.lastSuccess,
		LastError:       m.lastError,
	}
	if n := atomic.LoadInt64(&m.successes); n > 0 {
		s.AvgDuration = time.Duration(atomic.LoadInt64(&m.totalDuration) / n)
	}
	return s
}
