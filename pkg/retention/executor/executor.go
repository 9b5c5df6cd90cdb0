package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/revkeep/pkg/revision"
	"mercator-hq/revkeep/pkg/telemetry/tracing"
)

// Config contains configuration for a deletion run.
type Config struct {
	// ChunkSize is the number of revisions handled per chunk.
	// Default: 50
	ChunkSize int

	// Sink receives progress events. Default: NopSink
	Sink Sink

	// Clock returns the current time. Default: time.Now
	Clock func() time.Time

	// RunID identifies the run in logs, spans and metrics.
	// Default: a random UUID
	RunID string

	// ContentType labels the run. Empty for mixed runs.
	ContentType string
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig() *Config {
	return &Config{
		ChunkSize: 50,
		Sink:      NopSink{},
		Clock:     time.Now,
	}
}

// Executor deletes a candidate set in chunks. An executor runs once:
//
//	Idle -> Running -> Completed | Failed | Cancelled
type Executor struct {
	store  revision.Store
	config Config
	logger *slog.Logger
	tracer trace.Tracer

	state      atomic.Int32
	cancel     chan struct{}
	cancelOnce sync.Once
}

// New creates an executor over store.
func New(store revision.Store, config *Config) *Executor {
	cfg := *DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.Sink == nil {
		cfg.Sink = NopSink{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	logger := slog.Default().With(
		"component", "retention.executor",
		"run_id", cfg.RunID,
	)
	if cfg.ContentType != "" {
		logger = logger.With("content_type", cfg.ContentType)
	}

	return &Executor{
		store:  store,
		config: cfg,
		logger: logger,
		tracer: otel.Tracer(tracing.InstrumentationName),
		cancel: make(chan struct{}),
	}
}

// RunID returns the identifier of the run.
func (e *Executor) RunID() string {
	return e.config.RunID
}

// State returns the current state.
func (e *Executor) State() State {
	return State(e.state.Load())
}

// Cancel asks a running executor to stop at the next chunk boundary.
func (e *Executor) Cancel() {
	e.cancelOnce.Do(func() { close(e.cancel) })
}

func (e *Executor) cancelled(ctx context.Context) error {
	select {
	case <-e.cancel:
		return ErrCancelled
	default:
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}

// Run processes set in candidate order. Skipped revisions (already gone, or
// turned into the current revision) are recorded in the summary and do not
// stop the run. Any other error halts the run; completed chunks stand.
//
// The returned summary is non-nil once the run started. The error is non-nil
// when the run ended Failed or Cancelled.
func (e *Executor) Run(ctx context.Context, set CandidateSet) (*Summary, error) {
	if e.config.ChunkSize < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidChunkSize, e.config.ChunkSize)
	}
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, ErrAlreadyStarted
	}

	total := len(set.Candidates)
	summary := &Summary{
		RunID:       e.config.RunID,
		ContentType: e.config.ContentType,
		State:       StateRunning,
		DryRun:      set.DryRun,
		Total:       total,
		StartedAt:   e.config.Clock(),
	}

	ctx, span := e.tracer.Start(ctx, "retention.executor.run")
	defer span.End()
	tracing.SetRunAttributes(span, summary.RunID, summary.ContentType, set.DryRun, total)

	e.logger.Info("deletion run started",
		"total", total,
		"chunk_size", e.config.ChunkSize,
		"dry_run", set.DryRun,
	)

	chunker, _ := e.store.(revision.ChunkDeleter)

	var runErr error
	for start := 0; start < total; start += e.config.ChunkSize {
		if err := e.cancelled(ctx); err != nil {
			runErr = err
			break
		}

		end := start + e.config.ChunkSize
		if end > total {
			end = total
		}
		chunk := set.Candidates[start:end]
		summary.Chunks++

		deleted, skipped, err := e.processChunk(ctx, summary.Chunks, chunk, set.DryRun, chunker, summary)
		summary.Deleted += deleted
		summary.Skipped += skipped
		if err != nil {
			runErr = err
			break
		}
		summary.Processed += len(chunk)

		e.config.Sink.Progress(e.progress(summary, deleted, skipped))
	}

	e.finish(summary, runErr)
	tracing.SetStatus(span, summary.Err)
	if summary.Err != nil {
		tracing.SetErrorAttributes(span, summary.Err, summary.State.String())
	}

	e.config.Sink.Finish(summary)

	return summary, summary.Err
}

func (e *Executor) processChunk(ctx context.Context, index int, chunk []revision.Ref, dryRun bool, chunker revision.ChunkDeleter, summary *Summary) (deleted, skipped int, err error) {
	ctx, span := e.tracer.Start(ctx, "retention.executor.chunk")
	defer func() {
		tracing.SetChunkAttributes(span, index, len(chunk), deleted, skipped)
		tracing.SetStatus(span, err)
		span.End()
	}()

	if dryRun {
		return len(chunk), 0, nil
	}

	if chunker != nil {
		results, err := chunker.DeleteRevisions(ctx, chunk)
		if err != nil {
			return 0, 0, fmt.Errorf("delete chunk %d: %w", index, err)
		}
		for i, itemErr := range results {
			if itemErr == nil {
				deleted++
				continue
			}
			skipped++
			e.skip(summary, chunk[i], itemErr)
		}
		return deleted, skipped, nil
	}

	for _, ref := range chunk {
		err := e.store.DeleteRevision(ctx, ref.RecordID, ref.RevisionID)
		switch {
		case err == nil:
			deleted++
		case revision.IsSkippable(err):
			skipped++
			e.skip(summary, ref, err)
		default:
			summary.Processed += deleted + skipped
			return deleted, skipped, fmt.Errorf("delete revision %d of record %d: %w", ref.RevisionID, ref.RecordID, err)
		}
	}
	return deleted, skipped, nil
}

func (e *Executor) skip(summary *Summary, ref revision.Ref, err error) {
	summary.Errors = append(summary.Errors, ItemError{Ref: ref, Err: err})
	e.logger.Warn("revision skipped",
		"record_id", ref.RecordID,
		"revision_id", ref.RevisionID,
		"error", err,
	)
}

func (e *Executor) progress(summary *Summary, deleted, skipped int) Progress {
	p := Progress{
		RunID:        summary.RunID,
		Chunk:        summary.Chunks,
		Processed:    summary.Processed,
		Total:        summary.Total,
		Percentage:   100,
		ChunkDeleted: deleted,
		ChunkSkipped: skipped,
		DryRun:       summary.DryRun,
	}
	if summary.Total > 0 {
		p.Percentage = float64(summary.Processed) * 100 / float64(summary.Total)
	}
	if summary.Processed > 0 && summary.Processed < summary.Total {
		elapsed := e.config.Clock().Sub(summary.StartedAt)
		perItem := elapsed / time.Duration(summary.Processed)
		p.EstimatedRemaining = perItem * time.Duration(summary.Total-summary.Processed)
	}
	return p
}

func (e *Executor) finish(summary *Summary, runErr error) {
	now := e.config.Clock()
	summary.Duration = now.Sub(summary.StartedAt)

	switch {
	case runErr == nil:
		summary.State = StateCompleted
		if !summary.DryRun {
			summary.CompletedAt = now
		}
		e.logger.Info("deletion run completed",
			"processed", summary.Processed,
			"deleted", summary.Deleted,
			"skipped", summary.Skipped,
			"chunks", summary.Chunks,
			"dry_run", summary.DryRun,
			"duration", summary.Duration,
		)
	case errors.Is(runErr, ErrCancelled):
		summary.State = StateCancelled
		summary.Err = runErr
		e.logger.Warn("deletion run cancelled",
			"processed", summary.Processed,
			"total", summary.Total,
		)
	default:
		summary.State = StateFailed
		summary.Err = runErr
		summary.Errors = append(summary.Errors, ItemError{Err: runErr})
		e.logger.Error("deletion run failed",
			"processed", summary.Processed,
			"total", summary.Total,
			"error", runErr,
		)
	}

	e.state.Store(int32(summary.State))
}
