package pruner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/revkeep/pkg/retention"
	"mercator-hq/revkeep/pkg/retention/executor"
	"mercator-hq/revkeep/pkg/retention/selector"
	"mercator-hq/revkeep/pkg/retention/settings"
	"mercator-hq/revkeep/pkg/revision"
)

var (
	// ErrRunInProgress is returned when a run starts while another is active.
	ErrRunInProgress = errors.New("a pruning run is already in progress")

	// ErrNotDue is returned by RunScheduled when the frequency gate is closed.
	ErrNotDue = errors.New("scheduled run not due")
)

// Config contains configuration for the pruner.
type Config struct {
	// ChunkSize is the default number of revisions per chunk.
	// Default: 50
	ChunkSize int

	// Schedule is the cron expression of the scheduled trigger tick.
	// Empty disables the scheduler.
	Schedule string

	// Language is the active language for prior-revision selection.
	// Default: "en"
	Language string

	// Sink receives the events of every run, in addition to the per-run sink.
	Sink executor.Sink

	// Clock returns the current time. Default: time.Now
	Clock func() time.Time
}

// DefaultConfig returns the default pruner configuration.
func DefaultConfig() *Config {
	return &Config{
		ChunkSize: 50,
		Schedule:  "@every 1h",
		Language:  "en",
		Clock:     time.Now,
	}
}

// RunOptions tune one run.
type RunOptions struct {
	DryRun bool

	// ChunkSize overrides the configured chunk size when > 0.
	ChunkSize int

	// Limit caps the number of candidates handled when > 0.
	Limit int

	// Sink receives the events of this run only.
	Sink executor.Sink
}

// Plan is the preview of a run for one content type.
type Plan struct {
	Policy  *retention.Policy
	Records []selector.RecordCandidates
	Refs    []revision.Ref
}

// Pruner ties the selector, the executor and the settings together.
// At most one run is active at a time.
type Pruner struct {
	store    revision.Store
	selector *selector.Selector
	settings *settings.Manager
	config   Config
	logger   *slog.Logger

	chunkSize atomic.Int64

	mu      sync.Mutex
	current *executor.Executor
	running bool
}

// New creates a pruner.
func New(store revision.Store, mgr *settings.Manager, config *Config) *Pruner {
	cfg := *DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Sink == nil {
		cfg.Sink = executor.NopSink{}
	}
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = 50
	}

	p := &Pruner{
		store: store,
		selector: selector.New(store, &selector.Config{
			Language: cfg.Language,
			Clock:    cfg.Clock,
		}),
		settings: mgr,
		config:   cfg,
		logger:   slog.Default().With("component", "retention.pruner"),
	}
	p.chunkSize.Store(int64(cfg.ChunkSize))
	return p
}

// Selector returns the candidate selector, for registering query hooks.
func (p *Pruner) Selector() *selector.Selector {
	return p.selector
}

// Settings returns the settings manager.
func (p *Pruner) Settings() *settings.Manager {
	return p.settings
}

// ChunkSize returns the default chunk size.
func (p *Pruner) ChunkSize() int {
	return int(p.chunkSize.Load())
}

// SetChunkSize changes the default chunk size of future runs.
func (p *Pruner) SetChunkSize(n int) error {
	if n < 1 {
		return fmt.Errorf("%w, got %d", executor.ErrInvalidChunkSize, n)
	}
	p.chunkSize.Store(int64(n))
	return nil
}

// Cancel asks the active run, if any, to stop at the next chunk boundary.
func (p *Pruner) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.Cancel()
	}
}

// Plan previews the candidates of a content type without deleting anything.
func (p *Pruner) Plan(ctx context.Context, contentType string) (*Plan, error) {
	policy, err := p.settings.GetPolicy(ctx, contentType)
	if err != nil {
		return nil, err
	}
	ids, err := p.selector.CandidateRecords(ctx, policy.ContentType, policy.MinimumRevisionsToKeep)
	if err != nil {
		return nil, err
	}
	groups, err := p.selector.CandidatesByRecord(ctx, policy, ids)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Policy: policy, Records: groups, Refs: []revision.Ref{}}
	for _, g := range groups {
		for _, id := range g.Revisions {
			plan.Refs = append(plan.Refs, revision.Ref{RecordID: g.Record.ID, RevisionID: id})
		}
	}
	return plan, nil
}

// PruneContentType deletes the candidates of one content type under its
// stored policy.
func (p *Pruner) PruneContentType(ctx context.Context, contentType string, opts RunOptions) (*executor.Summary, error) {
	policy, err := p.settings.GetPolicy(ctx, contentType)
	if err != nil {
		return nil, err
	}
	refs, err := p.selector.CandidateRevisions(ctx, policy)
	if err != nil {
		return nil, fmt.Errorf("select candidates for %s: %w", contentType, err)
	}
	return p.execute(ctx, contentType, refs, opts)
}

// PruneRecords deletes the candidates of an explicit list of records of one
// content type.
func (p *Pruner) PruneRecords(ctx context.Context, contentType string, recordIDs []int64, opts RunOptions) (*executor.Summary, error) {
	policy, err := p.settings.GetPolicy(ctx, contentType)
	if err != nil {
		return nil, err
	}
	refs, err := p.selector.CandidateRevisionsForRecords(ctx, policy, recordIDs)
	if err != nil {
		return nil, fmt.Errorf("select candidates for %s: %w", contentType, err)
	}
	return p.execute(ctx, contentType, refs, opts)
}

// DeletePrior deletes the revisions of a record older than boundary that
// changed content in the active language. With includeBoundary the boundary
// revision goes too, unless it is the current revision.
func (p *Pruner) DeletePrior(ctx context.Context, recordID, boundary int64, includeBoundary bool, opts RunOptions) (*executor.Summary, error) {
	rec, err := p.store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	prior, err := p.selector.PriorRevisions(ctx, recordID, boundary)
	if err != nil {
		return nil, err
	}

	refs := make([]revision.Ref, 0, len(prior)+1)
	for _, rev := range prior {
		refs = append(refs, revision.Ref{RecordID: recordID, RevisionID: rev.ID})
	}
	if includeBoundary {
		if boundary == rec.CurrentRevisionID {
			p.logger.Warn("boundary is the current revision, keeping it",
				"record_id", recordID,
				"revision_id", boundary,
			)
		} else if _, err := p.store.GetRevision(ctx, recordID, boundary); err == nil {
			refs = append(refs, revision.Ref{RecordID: recordID, RevisionID: boundary})
		} else if !revision.IsNotFound(err) {
			return nil, err
		}
	}

	return p.execute(ctx, rec.Type, refs, opts)
}

// RunScheduled runs one scheduled pass when the frequency gate is open: the
// candidates of every policy, in content type order, capped at the per-run
// quantity. It returns ErrNotDue when the gate is closed.
func (p *Pruner) RunScheduled(ctx context.Context, opts RunOptions) (*executor.Summary, error) {
	freq, err := p.settings.Frequency(ctx)
	if err != nil {
		return nil, err
	}
	last, err := p.settings.LastExecute(ctx)
	if err != nil {
		return nil, err
	}
	eligible, err := retention.Eligible(freq, last, p.config.Clock())
	if err != nil {
		return nil, err
	}
	if !eligible {
		p.logger.Debug("scheduled run not due", "frequency", freq, "last_execute", last)
		return nil, ErrNotDue
	}

	limit := opts.Limit
	if limit <= 0 {
		if limit, err = p.settings.RevisionsPerRun(ctx); err != nil {
			return nil, err
		}
	}

	policies, err := p.settings.ListPolicies(ctx)
	if err != nil {
		return nil, err
	}

	refs := []revision.Ref{}
	for _, policy := range policies {
		if len(refs) >= limit {
			break
		}
		found, err := p.selector.CandidateRevisions(ctx, policy)
		if err != nil {
			return nil, fmt.Errorf("select candidates for %s: %w", policy.ContentType, err)
		}
		refs = append(refs, found...)
	}

	opts.Limit = limit
	return p.execute(ctx, "", refs, opts)
}

func (p *Pruner) execute(ctx context.Context, contentType string, refs []revision.Ref, opts RunOptions) (*executor.Summary, error) {
	if opts.Limit > 0 && len(refs) > opts.Limit {
		refs = refs[:opts.Limit]
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = p.ChunkSize()
	}

	sinks := executor.MultiSink{p.config.Sink}
	if opts.Sink != nil {
		sinks = append(sinks, opts.Sink)
	}

	exec := executor.New(p.store, &executor.Config{
		ChunkSize:   chunkSize,
		Sink:        sinks,
		Clock:       p.config.Clock,
		ContentType: contentType,
	})

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, ErrRunInProgress
	}
	p.running = true
	p.current = exec
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.current = nil
		p.mu.Unlock()
	}()

	summary, err := exec.Run(ctx, executor.CandidateSet{Candidates: refs, DryRun: opts.DryRun})
	if summary == nil {
		return nil, err
	}

	if summary.State == executor.StateCompleted && !summary.DryRun {
		if serr := p.settings.SetLastExecute(ctx, summary.CompletedAt); serr != nil {
			return summary, fmt.Errorf("record last execute: %w", serr)
		}
	}
	return summary, err
}
