package executor

import (
	"errors"
	"fmt"
	"time"

	"mercator-hq/revkeep/pkg/revision"
)

var (
	// ErrAlreadyStarted is returned when Run is called on a used executor.
	ErrAlreadyStarted = errors.New("executor already started")

	// ErrInvalidChunkSize is returned when the chunk size is below 1.
	ErrInvalidChunkSize = errors.New("chunk size must be >= 1")

	// ErrCancelled is returned when a run stops at a chunk boundary because
	// of Cancel or context cancellation.
	ErrCancelled = errors.New("run cancelled")
)

// State is the lifecycle state of an executor.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// CandidateSet is an ordered list of revisions to delete together with the
// mode it runs under. It is computed per invocation and never persisted.
type CandidateSet struct {
	Candidates []revision.Ref
	DryRun     bool
}

// Progress is emitted after every chunk.
type Progress struct {
	RunID              string
	Chunk              int // 1-based
	Processed          int
	Total              int
	Percentage         float64
	EstimatedRemaining time.Duration
	ChunkDeleted       int
	ChunkSkipped       int
	DryRun             bool
}

// ItemError records why a single revision was not deleted.
type ItemError struct {
	Ref revision.Ref
	Err error
}

// Error implements the error interface.
func (e *ItemError) Error() string {
	return fmt.Sprintf("record %d revision %d: %v", e.Ref.RecordID, e.Ref.RevisionID, e.Err)
}

// Unwrap returns the underlying error.
func (e *ItemError) Unwrap() error {
	return e.Err
}

// Summary is the final report of a run.
type Summary struct {
	RunID       string
	ContentType string
	State       State
	DryRun      bool

	Total     int
	Processed int
	Deleted   int // in a dry run, revisions that would have been deleted
	Skipped   int
	Chunks    int

	// Errors holds the skipped revisions and, for failed runs, the fatal
	// error last.
	Errors []ItemError

	// Err is the error that ended a failed or cancelled run.
	Err error

	StartedAt time.Time
	// CompletedAt is set only when a non-dry run completes. Callers persist
	// it as the last execute time.
	CompletedAt time.Time
	Duration    time.Duration
}

// Sink receives progress events and the final summary of a run.
type Sink interface {
	Progress(p Progress)
	Finish(s *Summary)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Progress(Progress) {}
func (NopSink) Finish(*Summary)   {}

// MultiSink fans events out to several sinks in order.
type MultiSink []Sink

// Progress forwards p to every sink.
func (m MultiSink) Progress(p Progress) {
	for _, s := range m {
		s.Progress(p)
	}
}

// Finish forwards s to every sink.
func (m MultiSink) Finish(s *Summary) {
	for _, sink := range m {
		sink.Finish(s)
	}
}
