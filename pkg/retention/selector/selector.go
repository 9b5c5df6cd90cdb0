package selector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/revkeep/pkg/retention"
	"mercator-hq/revkeep/pkg/revision"
)

// TagCandidates is carried by every candidate-records query. Per content type
// queries also carry TagCandidates + "_" + type.
const TagCandidates = "revision_prune_candidates"

// QueryHook narrows a candidate-records query before the store runs it.
// Hooks may restrict the query but cannot lower its revision floor.
type QueryHook func(ctx context.Context, query *revision.RecordQuery) error

// Config contains configuration for the candidate selector.
type Config struct {
	// Language is the active language for prior-revision selection.
	// Default: "en"
	Language string

	// Clock returns the current time. Default: time.Now
	Clock func() time.Time
}

// DefaultConfig returns the default selector configuration.
func DefaultConfig() *Config {
	return &Config{
		Language: "en",
		Clock:    time.Now,
	}
}

// RecordCandidates groups the candidates of one record.
type RecordCandidates struct {
	Record    *revision.Record
	Revisions []int64 // ascending
	Total     int     // revision count of the record
}

// Selector computes which revisions may be deleted under a policy.
// It never mutates the store.
type Selector struct {
	store    revision.Store
	language string
	clock    func() time.Time
	logger   *slog.Logger

	mu    sync.RWMutex
	hooks map[string][]QueryHook
}

// New creates a new candidate selector.
func New(store revision.Store, config *Config) *Selector {
	if config == nil {
		config = DefaultConfig()
	}
	language := config.Language
	if language == "" {
		language = "en"
	}
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Selector{
		store:    store,
		language: language,
		clock:    clock,
		logger:   slog.Default().With("component", "retention.selector"),
		hooks:    make(map[string][]QueryHook),
	}
}

// Language returns the active language.
func (s *Selector) Language() string {
	return s.language
}

// RegisterHook attaches a hook to queries carrying tag.
func (s *Selector) RegisterHook(tag string, hook QueryHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[tag] = append(s.hooks[tag], hook)
}

// CandidateRecords returns the ids of records of contentType whose revision
// count strictly exceeds minimumRevisionsToKeep, in ascending order.
func (s *Selector) CandidateRecords(ctx context.Context, contentType string, minimumRevisionsToKeep int) ([]int64, error) {
	if minimumRevisionsToKeep < 0 {
		return nil, retention.NewPolicyError(contentType, retention.FieldMinimumRevisionsToKeep,
			fmt.Sprintf("must be >= 0, got %d", minimumRevisionsToKeep))
	}

	query := &revision.RecordQuery{
		ContentType:      contentType,
		MinimumRevisions: minimumRevisionsToKeep,
		Tags:             []string{TagCandidates, TagCandidates + "_" + contentType},
	}

	if err := s.applyHooks(ctx, query); err != nil {
		return nil, err
	}

	// The core rules win over anything a hook did.
	query.ContentType = contentType
	if query.MinimumRevisions < minimumRevisionsToKeep {
		query.MinimumRevisions = minimumRevisionsToKeep
	}

	ids, err := s.store.ListQualifyingRecordIDs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list candidate records for %s: %w", contentType, err)
	}

	s.logger.Debug("selected candidate records",
		"content_type", contentType,
		"minimum_revisions_to_keep", minimumRevisionsToKeep,
		"records", len(ids),
	)
	return ids, nil
}

func (s *Selector) applyHooks(ctx context.Context, query *revision.RecordQuery) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tag := range query.Tags {
		for _, hook := range s.hooks[tag] {
			if err := hook(ctx, query); err != nil {
				return fmt.Errorf("query hook %s: %w", tag, err)
			}
		}
	}
	return nil
}

// CandidateRevisions returns every deletable revision under policy, ordered
// by record id and then ascending revision id.
func (s *Selector) CandidateRevisions(ctx context.Context, policy *retention.Policy) ([]revision.Ref, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	ids, err := s.CandidateRecords(ctx, policy.ContentType, policy.MinimumRevisionsToKeep)
	if err != nil {
		return nil, err
	}
	return s.CandidateRevisionsForRecords(ctx, policy, ids)
}

// CandidateRevisionsForRecords applies policy to an explicit list of records.
// Records of another content type, or that no longer exist, are skipped.
func (s *Selector) CandidateRevisionsForRecords(ctx context.Context, policy *retention.Policy, recordIDs []int64) ([]revision.Ref, error) {
	groups, err := s.CandidatesByRecord(ctx, policy, recordIDs)
	if err != nil {
		return nil, err
	}

	refs := []revision.Ref{}
	for _, g := range groups {
		for _, id := range g.Revisions {
			refs = append(refs, revision.Ref{RecordID: g.Record.ID, RevisionID: id})
		}
	}
	return refs, nil
}

// CandidatesByRecord is CandidateRevisionsForRecords grouped per record, with
// the record metadata attached. Records without candidates are omitted.
func (s *Selector) CandidatesByRecord(ctx context.Context, policy *retention.Policy, recordIDs []int64) ([]RecordCandidates, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	now := s.clock()
	groups := []RecordCandidates{}
	for _, id := range recordIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		group, err := s.recordCandidates(ctx, policy, id, now)
		if err != nil {
			return nil, err
		}
		if group != nil && len(group.Revisions) > 0 {
			groups = append(groups, *group)
		}
	}
	return groups, nil
}

func (s *Selector) recordCandidates(ctx context.Context, policy *retention.Policy, recordID int64, now time.Time) (*RecordCandidates, error) {
	rec, err := s.store.GetRecord(ctx, recordID)
	if revision.IsNotFound(err) {
		s.logger.Debug("record vanished during selection", "record_id", recordID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load record %d: %w", recordID, err)
	}
	if rec.Type != policy.ContentType {
		s.logger.Debug("record type does not match policy",
			"record_id", recordID,
			"record_type", rec.Type,
			"content_type", policy.ContentType,
		)
		return nil, nil
	}

	if policy.WhenToDelete.Enabled() && rec.Changed.After(policy.WhenToDelete.Cutoff(now)) {
		return nil, nil
	}

	ids, err := s.store.ListRevisionIDs(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("list revisions of record %d: %w", recordID, err)
	}

	nonDefault := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id != rec.CurrentRevisionID {
			nonDefault = append(nonDefault, id)
		}
	}

	// The current revision counts toward the floor.
	keep := policy.MinimumRevisionsToKeep - 1
	if keep < 0 {
		keep = 0
	}
	if len(nonDefault) <= keep {
		return &RecordCandidates{Record: rec, Total: len(ids)}, nil
	}
	pool := nonDefault[:len(nonDefault)-keep]

	candidates := make([]int64, 0, len(pool))
	if !policy.MinimumAgeToDelete.Enabled() {
		candidates = append(candidates, pool...)
	} else {
		cutoff := policy.MinimumAgeToDelete.Cutoff(now)
		for _, id := range pool {
			rev, err := s.store.GetRevision(ctx, recordID, id)
			if revision.IsNotFound(err) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("load revision %d of record %d: %w", id, recordID, err)
			}
			if rev.IsDefault || rev.Timestamp.After(cutoff) {
				continue
			}
			candidates = append(candidates, id)
		}
	}

	return &RecordCandidates{Record: rec, Revisions: candidates, Total: len(ids)}, nil
}

// PriorRevisions returns, newest first, every revision of the record older
// than boundaryRevisionID that changed content in the active language. The
// boundary itself is never included. An unknown boundary or an empty history
// yields an empty slice.
func (s *Selector) PriorRevisions(ctx context.Context, recordID, boundaryRevisionID int64) ([]revision.Revision, error) {
	ids, err := s.store.ListRevisionIDs(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("list revisions of record %d: %w", recordID, err)
	}

	found := false
	for _, id := range ids {
		if id == boundaryRevisionID {
			found = true
			break
		}
	}
	if !found {
		return []revision.Revision{}, nil
	}

	prior := []revision.Revision{}
	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]
		if id >= boundaryRevisionID {
			continue
		}
		rev, err := s.store.GetRevision(ctx, recordID, id)
		if revision.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load revision %d of record %d: %w", id, recordID, err)
		}
		if rev.IsDefault || !rev.IsTranslationAffecting(s.language) {
			continue
		}
		prior = append(prior, *rev)
	}
	return prior, nil
}
