package revision

import (
	"context"
	"time"
)

// Status is the publication status of a record.
type Status string

const (
	// StatusPublished marks a record whose current revision is public.
	StatusPublished Status = "published"
	// StatusUnpublished marks a record that is not public.
	StatusUnpublished Status = "unpublished"
)

// Record is a versioned logical content item (a node). The pruning engine
// only reads records; they are created and mutated by the content system.
type Record struct {
	ID                int64     `json:"id"`
	Type              string    `json:"type"`                // Content type, the policy key
	CurrentRevisionID int64     `json:"current_revision_id"` // Live revision, never deletable
	Owner             string    `json:"owner"`
	Status            Status    `json:"status"`
	Title             string    `json:"title"`
	Changed           time.Time `json:"changed"` // Last time the record changed
}

// Revision is an immutable snapshot of a record at a point in time.
// Revision ids grow monotonically within a record's history: a higher id is
// a newer revision.
type Revision struct {
	ID        int64     `json:"id"`
	RecordID  int64     `json:"record_id"`
	Timestamp time.Time `json:"timestamp"`
	IsDefault bool      `json:"is_default"`

	// Translations maps a language code to whether this revision changed
	// content in that language. A missing key means the revision has no
	// translation in that language.
	Translations map[string]bool `json:"translations,omitempty"`
}

// HasTranslation reports whether the revision carries a translation for lang.
func (r *Revision) HasTranslation(lang string) bool {
	_, ok := r.Translations[lang]
	return ok
}

// IsTranslationAffecting reports whether the revision changed content in lang.
func (r *Revision) IsTranslationAffecting(lang string) bool {
	return r.Translations[lang]
}

// Ref identifies a single revision of a single record.
type Ref struct {
	RecordID   int64 `json:"record_id"`
	RevisionID int64 `json:"revision_id"`
}

// RecordQuery selects records whose revision count strictly exceeds
// MinimumRevisions. Hooks may narrow it before it reaches the store.
type RecordQuery struct {
	ContentType      string
	MinimumRevisions int

	// Optional narrowing filters. Empty means no restriction.
	Statuses   []Status
	Owners     []string
	IncludeIDs []int64
	ExcludeIDs []int64

	// Tags names the extension points the query passed through.
	Tags []string
}

// HasTag reports whether the query carries the given tag.
func (q *RecordQuery) HasTag(tag string) bool {
	for _, t := range q.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Matches reports whether a record with the given attributes and revision
// count satisfies the query. Backends that cannot push every filter down to
// their query language use it to filter in process.
func (q *RecordQuery) Matches(rec *Record, revisionCount int) bool {
	if q.ContentType != "" && rec.Type != q.ContentType {
		return false
	}
	if revisionCount <= q.MinimumRevisions {
		return false
	}
	if len(q.Statuses) > 0 && !containsStatus(q.Statuses, rec.Status) {
		return false
	}
	if len(q.Owners) > 0 && !containsString(q.Owners, rec.Owner) {
		return false
	}
	if len(q.IncludeIDs) > 0 && !containsID(q.IncludeIDs, rec.ID) {
		return false
	}
	if containsID(q.ExcludeIDs, rec.ID) {
		return false
	}
	return true
}

// Store is the read and delete surface of the versioned content store.
// Implementations must be safe for concurrent use.
type Store interface {
	// GetRecord returns the record or ErrRecordNotFound.
	GetRecord(ctx context.Context, recordID int64) (*Record, error)

	// CountRevisions returns the total number of revisions of a record,
	// including the current one.
	CountRevisions(ctx context.Context, recordID int64) (int, error)

	// ListRevisionIDs returns the record's revision ids in ascending order.
	// A record without revisions yields an empty slice.
	ListRevisionIDs(ctx context.Context, recordID int64) ([]int64, error)

	// GetRevision returns a single revision or ErrRevisionNotFound.
	GetRevision(ctx context.Context, recordID, revisionID int64) (*Revision, error)

	// ListQualifyingRecordIDs returns the ids of records matching the query,
	// in ascending order.
	ListQualifyingRecordIDs(ctx context.Context, query *RecordQuery) ([]int64, error)

	// DeleteRevision permanently removes one revision. It returns
	// ErrRevisionNotFound or ErrRecordNotFound when there is nothing to
	// delete, ErrDefaultRevision when asked to delete the live revision, and
	// a StorageError for backend failures.
	DeleteRevision(ctx context.Context, recordID, revisionID int64) error

	// Close releases any resources held by the store.
	Close() error
}

// ChunkDeleter is implemented by stores that can delete several revisions in
// one transaction. The returned slice holds one entry per ref: nil, or a
// skippable error (see IsSkippable) for refs that were not deleted. A non-nil
// error means nothing in the chunk was committed.
type ChunkDeleter interface {
	DeleteRevisions(ctx context.Context, refs []Ref) ([]error, error)
}

// Writer is implemented by stores that accept new content. The pruning
// engine never writes; seeding tools and tests do.
type Writer interface {
	PutRecord(ctx context.Context, rec *Record) error
	PutRevision(ctx context.Context, rev *Revision) error
}

// Pinger is implemented by stores that can verify their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsID(list []int64, id int64) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
