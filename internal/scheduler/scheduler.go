// Package scheduler triggers ingestion runs on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/johnayoung/go-quote-forecaster/internal/logger"
)

// Job performs one ingestion run and reports the rows written.
type Job func(ctx context.Context) (int, error)

// Stats describes scheduled activity.
type Stats struct {
	Interval  time.Duration `json:"interval"`
	Runs      int64         `json:"runs"`
	Failures  int64         `json:"failures"`
	LastRows  int           `json:"last_rows"`
	LastRun   time.Time     `json:"last_run,omitempty"`
	LastError string        `json:"last_error,omitempty"`
	NextRun   time.Time     `json:"next_run,omitempty"`
	Running   bool          `json:"running"`
}

// Scheduler runs a Job every interval. Scheduled runs never overlap: a tick
// that fires while the previous run is still going is skipped.
type Scheduler struct {
	cron     *cron.Cron
	job      Job
	interval time.Duration
	logger   *logger.ComponentLogger

	runMu sync.Mutex

	mu      sync.Mutex
	entry   cron.EntryID
	cancel  context.CancelFunc
	running bool
	stats   Stats
}

// New creates a scheduler for job. interval must be at least one second.
func New(interval time.Duration, job Job, log *logger.ComponentLogger) (*Scheduler, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("fetch interval must be at least 1s, got %s", interval)
	}
	if job == nil {
		return nil, fmt.Errorf("scheduler job cannot be nil")
	}
	if log == nil {
		log = &logger.ComponentLogger{Logger: slog.Default()}
	}

	cl := cronLogger{log: log.Logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		job:      job,
		interval: interval,
		logger:   log,
		stats:    Stats{Interval: interval},
	}
	return s, nil
}

// Start registers the job and starts ticking. Runs receive a context derived
// from ctx that is cancelled when Stop gives up waiting.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	schedule := fmt.Sprintf("@every %s", s.interval)
	runCtx, cancel := context.WithCancel(ctx)
	id, err := s.cron.AddFunc(schedule, func() {
		s.execute(runCtx, "scheduled")
	})
	if err != nil {
		cancel()
		return fmt.Errorf("register ingestion job %q: %w", schedule, err)
	}

	s.entry = id
	s.cancel = cancel
	s.running = true
	s.cron.Start()
	s.logger.Info("scheduler started", "interval", s.interval.String())
	return nil
}

// Stop halts the ticker and waits for an in-flight run to finish. If ctx ends
// first the run's context is cancelled and ctx's error is returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	done := s.cron.Stop()
	s.cron.Remove(s.entry)
	defer cancel()

	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out, cancelling run")
		return ctx.Err()
	}
}

// RunNow runs the job immediately, waiting for any run already in progress.
func (s *Scheduler) RunNow(ctx context.Context) (int, error) {
	return s.execute(ctx, "manual")
}

// Stats returns a snapshot of scheduler activity.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.stats
	out.Running = s.running
	if s.running {
		out.NextRun = s.cron.Entry(s.entry).Next
	}
	return out
}

func (s *Scheduler) execute(ctx context.Context, trigger string) (int, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := time.Now()
	log := s.logger.FromContext(ctx)

	rows, err := s.job(ctx)

	s.mu.Lock()
	s.stats.Runs++
	s.stats.LastRun = start.UTC()
	s.stats.LastRows = rows
	if err != nil {
		s.stats.Failures++
		s.stats.LastError = err.Error()
	} else {
		s.stats.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		log.Error("ingestion job failed",
			"trigger", trigger,
			"duration", time.Since(start),
			"error", err)
		return rows, err
	}

	log.Info("ingestion job succeeded",
		"trigger", trigger,
		"rows", rows,
		"duration", time.Since(start))
	return rows, nil
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	log *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
