package pruner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

// Scheduler ticks the pruner on a cron schedule. A tick that fires while the
// previous one still runs is skipped.
type Scheduler struct {
	pruner  *Pruner
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewScheduler creates a scheduler for pruner.
func NewScheduler(pruner *Pruner) *Scheduler {
	logger := slog.Default().With("component", "retention.scheduler")
	clog := cronLogger{logger: logger}
	return &Scheduler{
		pruner: pruner,
		cron: cron.New(
			cron.WithLogger(clog),
			cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
		),
		logger: logger,
	}
}

// Start registers the tick and starts the cron runner. The schedule is read
// from the pruner config and accepts standard cron syntax and descriptors:
//
//   - "0 3 * * *"  daily at 3 AM
//   - "@every 1h"  hourly
//
// An empty schedule leaves the scheduler idle. The scheduler stops when ctx
// is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule := s.pruner.config.Schedule
	if schedule == "" {
		s.logger.Info("prune schedule not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return nil
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("retention scheduler started", "schedule", schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Tick runs one scheduled pass and logs its outcome.
func (s *Scheduler) Tick(ctx context.Context) {
	summary, err := s.pruner.RunScheduled(ctx, RunOptions{})
	switch {
	case errors.Is(err, ErrNotDue):
		s.logger.Debug("scheduled pruning not due")
	case errors.Is(err, ErrRunInProgress):
		s.logger.Warn("scheduled pruning skipped, a run is in progress")
	case err != nil:
		attrs := []any{"error", err}
		if summary != nil {
			attrs = append(attrs, "run_id", summary.RunID, "processed", summary.Processed, "state", summary.State.String())
		}
		s.logger.Error("scheduled pruning failed", attrs...)
	case summary.Deleted > 0:
		s.logger.Info("scheduled pruning completed",
			"run_id", summary.RunID,
			"deleted_count", summary.Deleted,
			"skipped_count", summary.Skipped,
			"duration", summary.Duration,
		)
	default:
		s.logger.Debug("scheduled pruning completed, no revisions deleted", "run_id", summary.RunID)
	}
}

// Stop stops the scheduler, cancels the active run and waits for the
// running tick to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		s.pruner.Cancel()
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("retention scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next tick time, or nil when nothing is scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}
