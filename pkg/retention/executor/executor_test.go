package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/revkeep/pkg/revision"
	"mercator-hq/revkeep/pkg/revision/storage"
)

// plainStore hides the ChunkDeleter of the wrapped store and counts deletes.
type plainStore struct {
	revision.Store

	mu      sync.Mutex
	deletes int
	failOn  map[int64]error // revision id -> injected error
	onCall  func(n int)
}

func (p *plainStore) DeleteRevision(ctx context.Context, recordID, revisionID int64) error {
	p.mu.Lock()
	p.deletes++
	n := p.deletes
	err := p.failOn[revisionID]
	p.mu.Unlock()

	if p.onCall != nil {
		p.onCall(n)
	}
	if err != nil {
		return err
	}
	return p.Store.DeleteRevision(ctx, recordID, revisionID)
}

// recordingSink captures every event.
type recordingSink struct {
	mu       sync.Mutex
	progress []Progress
	summary  *Summary
}

func (r *recordingSink) Progress(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recordingSink) Finish(s *Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary = s
}

// seedStore creates record 1 with revisions 1..n, n being current.
func seedStore(t *testing.T, n int64) (*storage.MemoryStore, []revision.Ref) {
	t.Helper()
	ctx := context.Background()

	s, err := storage.NewMemoryStore()
	if err != nil {
		t.Fatalf("NewMemoryStore() failed: %v", err)
	}
	if err := s.PutRecord(ctx, &revision.Record{ID: 1, Type: "article", CurrentRevisionID: n, Changed: time.Now()}); err != nil {
		t.Fatalf("PutRecord() failed: %v", err)
	}

	var refs []revision.Ref
	for id := int64(1); id <= n; id++ {
		if err := s.PutRevision(ctx, &revision.Revision{ID: id, RecordID: 1, Timestamp: time.Now()}); err != nil {
			t.Fatalf("PutRevision() failed: %v", err)
		}
		if id < n {
			refs = append(refs, revision.Ref{RecordID: 1, RevisionID: id})
		}
	}
	return s, refs
}

func countRevisions(t *testing.T, s revision.Store) int {
	t.Helper()
	n, err := s.CountRevisions(context.Background(), 1)
	if err != nil {
		t.Fatalf("CountRevisions() failed: %v", err)
	}
	return n
}

func TestRun_ChunkingAndProgress(t *testing.T) {
	for _, chunkSize := range []int{1, 3, 4, 10, 100} {
		for _, chunked := range []bool{true, false} {
			mem, refs := seedStore(t, 11) // 10 candidates
			var store revision.Store = mem
			if !chunked {
				store = &plainStore{Store: mem}
			}

			sink := &recordingSink{}
			exec := New(store, &Config{ChunkSize: chunkSize, Sink: sink})

			summary, err := exec.Run(context.Background(), CandidateSet{Candidates: refs})
			if err != nil {
				t.Fatalf("Run(chunk=%d) failed: %v", chunkSize, err)
			}
			if summary.State != StateCompleted || exec.State() != StateCompleted {
				t.Fatalf("state = %v, want completed", summary.State)
			}
			if summary.Processed != 10 || summary.Deleted != 10 {
				t.Errorf("processed=%d deleted=%d, want 10/10", summary.Processed, summary.Deleted)
			}
			if summary.CompletedAt.IsZero() {
				t.Error("CompletedAt not set on non-dry completion")
			}

			sum := 0
			last := -1.0
			for _, p := range sink.progress {
				sum += p.ChunkDeleted + p.ChunkSkipped
				if p.Percentage < last {
					t.Errorf("progress decreased: %v after %v", p.Percentage, last)
				}
				last = p.Percentage
			}
			if sum != 10 {
				t.Errorf("chunk=%d: chunk counts sum to %d, want 10", chunkSize, sum)
			}
			wantChunks := (10 + chunkSize - 1) / chunkSize
			if len(sink.progress) != wantChunks {
				t.Errorf("chunk=%d: %d progress events, want %d", chunkSize, len(sink.progress), wantChunks)
			}
			if last != 100 {
				t.Errorf("final percentage = %v, want 100", last)
			}
			if sink.summary != summary {
				t.Error("sink did not receive the summary")
			}
			if got := countRevisions(t, mem); got != 1 {
				t.Errorf("%d revisions remain, want 1", got)
			}
		}
	}
}

func TestRun_DryRunNeverDeletes(t *testing.T) {
	mem, refs := seedStore(t, 6)
	store := &plainStore{Store: mem}
	sink := &recordingSink{}

	summary, err := New(store, &Config{ChunkSize: 2, Sink: sink}).Run(context.Background(), CandidateSet{Candidates: refs, DryRun: true})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if store.deletes != 0 {
		t.Errorf("dry run called DeleteRevision %d times", store.deletes)
	}
	if !summary.CompletedAt.IsZero() {
		t.Error("dry run set CompletedAt")
	}
	if summary.Deleted != 5 || summary.Processed != 5 {
		t.Errorf("deleted=%d processed=%d, want 5/5", summary.Deleted, summary.Processed)
	}
	if len(sink.progress) != 3 || !sink.progress[0].DryRun {
		t.Errorf("unexpected progress events %+v", sink.progress)
	}
	if got := countRevisions(t, mem); got != 6 {
		t.Errorf("%d revisions remain, want 6", got)
	}
}

func TestRun_SkipsMissingRevisions(t *testing.T) {
	for _, chunked := range []bool{true, false} {
		mem, refs := seedStore(t, 5)
		refs = append(refs,
			revision.Ref{RecordID: 1, RevisionID: 99},
			revision.Ref{RecordID: 42, RevisionID: 1},
			revision.Ref{RecordID: 1, RevisionID: 5}, // current
		)

		var store revision.Store = mem
		if !chunked {
			store = &plainStore{Store: mem}
		}

		summary, err := New(store, &Config{ChunkSize: 3}).Run(context.Background(), CandidateSet{Candidates: refs})
		if err != nil {
			t.Fatalf("Run() failed: %v", err)
		}
		if summary.State != StateCompleted {
			t.Fatalf("state = %v, want completed", summary.State)
		}
		if summary.Deleted != 4 || summary.Skipped != 3 || summary.Processed != 7 {
			t.Errorf("deleted=%d skipped=%d processed=%d, want 4/3/7", summary.Deleted, summary.Skipped, summary.Processed)
		}
		if len(summary.Errors) != 3 {
			t.Fatalf("expected 3 item errors, got %v", summary.Errors)
		}
		if !errors.Is(&summary.Errors[0], revision.ErrRevisionNotFound) {
			t.Errorf("Errors[0] = %v, want ErrRevisionNotFound", &summary.Errors[0])
		}
		if !errors.Is(&summary.Errors[1], revision.ErrRecordNotFound) {
			t.Errorf("Errors[1] = %v, want ErrRecordNotFound", &summary.Errors[1])
		}
		if !errors.Is(&summary.Errors[2], revision.ErrDefaultRevision) {
			t.Errorf("Errors[2] = %v, want ErrDefaultRevision", &summary.Errors[2])
		}
	}
}

func TestRun_FatalErrorHalts(t *testing.T) {
	mem, refs := seedStore(t, 11)
	unavailable := revision.NewStorageError("test", "delete", errors.New("disk gone"))
	store := &plainStore{Store: mem, failOn: map[int64]error{6: unavailable}}
	sink := &recordingSink{}

	summary, err := New(store, &Config{ChunkSize: 3, Sink: sink}).Run(context.Background(), CandidateSet{Candidates: refs})
	if !errors.Is(err, revision.ErrStorageUnavailable) {
		t.Fatalf("Run() error = %v, want ErrStorageUnavailable", err)
	}
	if summary.State != StateFailed {
		t.Fatalf("state = %v, want failed", summary.State)
	}
	// Chunk 1 (1,2,3) completed; chunk 2 deleted 4 and 5 before failing on 6.
	if summary.Processed != 5 || summary.Deleted != 5 {
		t.Errorf("processed=%d deleted=%d, want 5/5", summary.Processed, summary.Deleted)
	}
	if !summary.CompletedAt.IsZero() {
		t.Error("failed run set CompletedAt")
	}
	if len(sink.progress) != 1 {
		t.Errorf("expected 1 progress event, got %d", len(sink.progress))
	}
	if got := countRevisions(t, mem); got != 6 {
		t.Errorf("%d revisions remain, want 6", got)
	}
	if store.deletes != 6 {
		t.Errorf("DeleteRevision called %d times after failure, want 6", store.deletes)
	}
}

func TestRun_CancelBetweenChunks(t *testing.T) {
	mem, refs := seedStore(t, 11)

	var exec *Executor
	store := &plainStore{Store: mem}
	store.onCall = func(n int) {
		if n == 2 {
			exec.Cancel()
		}
	}
	exec = New(store, &Config{ChunkSize: 4})

	summary, err := exec.Run(context.Background(), CandidateSet{Candidates: refs})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Run() error = %v, want ErrCancelled", err)
	}
	if summary.State != StateCancelled {
		t.Fatalf("state = %v, want cancelled", summary.State)
	}
	// The chunk in flight finishes.
	if summary.Processed != 4 {
		t.Errorf("processed = %d, want 4", summary.Processed)
	}
	if got := countRevisions(t, mem); got != 7 {
		t.Errorf("%d revisions remain, want 7", got)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	mem, refs := seedStore(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := New(mem, &Config{ChunkSize: 1}).Run(ctx, CandidateSet{Candidates: refs})
	if !errors.Is(err, ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want ErrCancelled wrapping context.Canceled", err)
	}
	if summary.Processed != 0 {
		t.Errorf("processed = %d, want 0", summary.Processed)
	}
}

func TestRun_NoCandidates(t *testing.T) {
	mem, _ := seedStore(t, 1)
	sink := &recordingSink{}

	summary, err := New(mem, &Config{ChunkSize: 10, Sink: sink}).Run(context.Background(), CandidateSet{})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if summary.State != StateCompleted || summary.Chunks != 0 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if summary.CompletedAt.IsZero() {
		t.Error("zero-work completion should still report CompletedAt")
	}
	if len(sink.progress) != 0 || sink.summary == nil {
		t.Errorf("expected no progress and a final summary")
	}
}

func TestRun_Preconditions(t *testing.T) {
	mem, refs := seedStore(t, 3)

	exec := New(mem, &Config{ChunkSize: 0})
	if _, err := exec.Run(context.Background(), CandidateSet{Candidates: refs}); !errors.Is(err, ErrInvalidChunkSize) {
		t.Errorf("Run() error = %v, want ErrInvalidChunkSize", err)
	}
	if exec.State() != StateIdle {
		t.Errorf("state = %v after rejected run, want idle", exec.State())
	}
	if got := countRevisions(t, mem); got != 3 {
		t.Errorf("rejected run deleted revisions")
	}

	exec = New(mem, &Config{ChunkSize: 2})
	if _, err := exec.Run(context.Background(), CandidateSet{Candidates: refs}); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if _, err := exec.Run(context.Background(), CandidateSet{Candidates: refs}); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Run() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestRun_EstimatedRemaining(t *testing.T) {
	mem, refs := seedStore(t, 5)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	clock := func() time.Time {
		calls++
		return start.Add(time.Duration(calls-1) * time.Second)
	}
	sink := &recordingSink{}

	if _, err := New(mem, &Config{ChunkSize: 2, Sink: sink, Clock: clock}).Run(context.Background(), CandidateSet{Candidates: refs}); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	first := sink.progress[0]
	if first.Processed != 2 || first.EstimatedRemaining <= 0 {
		t.Errorf("unexpected first progress %+v", first)
	}
	last := sink.progress[len(sink.progress)-1]
	if last.EstimatedRemaining != 0 {
		t.Errorf("final EstimatedRemaining = %v, want 0", last.EstimatedRemaining)
	}
}

func TestRun_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(provider)

	mem, refs := seedStore(t, 6)
	if _, err := New(mem, &Config{ChunkSize: 2, RunID: "run-1"}).Run(context.Background(), CandidateSet{Candidates: refs}); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	runs, chunks := 0, 0
	for _, span := range recorder.Ended() {
		switch span.Name() {
		case "retention.executor.run":
			runs++
		case "retention.executor.chunk":
			chunks++
		}
	}
	if runs != 1 || chunks != 3 {
		t.Errorf("spans: %d runs, %d chunks, want 1 and 3", runs, chunks)
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateIdle:      "idle",
		StateRunning:   "running",
		StateCompleted: "completed",
		StateFailed:    "failed",
		StateCancelled: "cancelled",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
