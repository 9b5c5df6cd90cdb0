package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/go-memdb"

	"mercator-hq/revkeep/pkg/revision"
)

const (
	tblRecords   = "records"
	tblRevisions = "revisions"
)

var memorySchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblRecords: {
			Name: tblRecords,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.IntFieldIndex{Field: "ID"},
				},
				"type": {
					Name:    "type",
					Indexer: &memdb.StringFieldIndex{Field: "Type"},
				},
			},
		},
		tblRevisions: {
			Name: tblRevisions,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:   "id",
					Unique: true,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.IntFieldIndex{Field: "RecordID"},
							&memdb.IntFieldIndex{Field: "ID"},
						},
					},
				},
				"record_id": {
					Name:    "record_id",
					Indexer: &memdb.IntFieldIndex{Field: "RecordID"},
				},
			},
		},
	},
}

// MemoryStore implements revision.Store on top of go-memdb.
// It is intended for tests, previews and small fixtures.
type MemoryStore struct {
	db *memdb.MemDB
}

// NewMemoryStore creates an empty in-memory content store.
func NewMemoryStore() (*MemoryStore, error) {
	db, err := memdb.NewMemDB(memorySchema)
	if err != nil {
		return nil, revision.NewStorageError("memory", "open", err)
	}
	return &MemoryStore{db: db}, nil
}

// PutRecord inserts or replaces a record.
func (s *MemoryStore) PutRecord(ctx context.Context, rec *revision.Record) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	recordCopy := *rec
	if err := txn.Insert(tblRecords, &recordCopy); err != nil {
		return revision.NewStorageError("memory", "put_record", err)
	}
	txn.Commit()
	return nil
}

// PutRevision inserts or replaces a revision. The owning record must exist.
func (s *MemoryStore) PutRevision(ctx context.Context, rev *revision.Revision) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblRecords, "id", rev.RecordID)
	if err != nil {
		return revision.NewStorageError("memory", "put_revision", err)
	}
	if raw == nil {
		return revision.NewRecordNotFound(rev.RecordID)
	}

	revisionCopy := *rev
	revisionCopy.Translations = copyTranslations(rev.Translations)
	if err := txn.Insert(tblRevisions, &revisionCopy); err != nil {
		return revision.NewStorageError("memory", "put_revision", err)
	}
	txn.Commit()
	return nil
}

// GetRecord returns a copy of the record.
func (s *MemoryStore) GetRecord(ctx context.Context, recordID int64) (*revision.Record, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblRecords, "id", recordID)
	if err != nil {
		return nil, revision.NewStorageError("memory", "get_record", err)
	}
	if raw == nil {
		return nil, revision.NewRecordNotFound(recordID)
	}

	recordCopy := *raw.(*revision.Record)
	return &recordCopy, nil
}

// CountRevisions returns the number of revisions of a record.
func (s *MemoryStore) CountRevisions(ctx context.Context, recordID int64) (int, error) {
	ids, err := s.ListRevisionIDs(ctx, recordID)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// ListRevisionIDs returns the record's revision ids in ascending order.
func (s *MemoryStore) ListRevisionIDs(ctx context.Context, recordID int64) ([]int64, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	return listRevisionIDs(txn, recordID)
}

func listRevisionIDs(txn *memdb.Txn, recordID int64) ([]int64, error) {
	iter, err := txn.Get(tblRevisions, "record_id", recordID)
	if err != nil {
		return nil, revision.NewStorageError("memory", "list_revisions", err)
	}

	ids := []int64{}
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		ids = append(ids, raw.(*revision.Revision).ID)
	}
	// Varint-encoded index keys do not sort numerically.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// GetRevision returns a copy of a revision with IsDefault resolved against
// the record's current revision.
func (s *MemoryStore) GetRevision(ctx context.Context, recordID, revisionID int64) (*revision.Revision, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	rawRecord, err := txn.First(tblRecords, "id", recordID)
	if err != nil {
		return nil, revision.NewStorageError("memory", "get_revision", err)
	}
	if rawRecord == nil {
		return nil, revision.NewRecordNotFound(recordID)
	}

	raw, err := txn.First(tblRevisions, "id", recordID, revisionID)
	if err != nil {
		return nil, revision.NewStorageError("memory", "get_revision", err)
	}
	if raw == nil {
		return nil, revision.NewRevisionNotFound(recordID, revisionID)
	}

	revisionCopy := *raw.(*revision.Revision)
	revisionCopy.Translations = copyTranslations(revisionCopy.Translations)
	revisionCopy.IsDefault = rawRecord.(*revision.Record).CurrentRevisionID == revisionID
	return &revisionCopy, nil
}

// ListQualifyingRecordIDs returns matching record ids in ascending order.
func (s *MemoryStore) ListQualifyingRecordIDs(ctx context.Context, query *revision.RecordQuery) ([]int64, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	var (
		iter memdb.ResultIterator
		err  error
	)
	if query.ContentType != "" {
		iter, err = txn.Get(tblRecords, "type", query.ContentType)
	} else {
		iter, err = txn.Get(tblRecords, "id")
	}
	if err != nil {
		return nil, revision.NewStorageError("memory", "list_records", err)
	}

	ids := []int64{}
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		rec := raw.(*revision.Record)
		revisionIDs, err := listRevisionIDs(txn, rec.ID)
		if err != nil {
			return nil, err
		}
		if query.Matches(rec, len(revisionIDs)) {
			ids = append(ids, rec.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// DeleteRevision removes a single revision.
func (s *MemoryStore) DeleteRevision(ctx context.Context, recordID, revisionID int64) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	if err := deleteRevision(txn, recordID, revisionID); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// DeleteRevisions removes a chunk of revisions in one transaction.
func (s *MemoryStore) DeleteRevisions(ctx context.Context, refs []revision.Ref) ([]error, error) {
	txn := s.db.Txn(true)
	defer txn.Abort()

	results := make([]error, len(refs))
	for i, ref := range refs {
		err := deleteRevision(txn, ref.RecordID, ref.RevisionID)
		if err != nil && !revision.IsSkippable(err) {
			return nil, err
		}
		results[i] = err
	}
	txn.Commit()
	return results, nil
}

func deleteRevision(txn *memdb.Txn, recordID, revisionID int64) error {
	rawRecord, err := txn.First(tblRecords, "id", recordID)
	if err != nil {
		return revision.NewStorageError("memory", "delete_revision", err)
	}
	if rawRecord == nil {
		return revision.NewRecordNotFound(recordID)
	}
	if rawRecord.(*revision.Record).CurrentRevisionID == revisionID {
		return fmt.Errorf("delete revision %d of record %d: %w", revisionID, recordID, revision.ErrDefaultRevision)
	}

	raw, err := txn.First(tblRevisions, "id", recordID, revisionID)
	if err != nil {
		return revision.NewStorageError("memory", "delete_revision", err)
	}
	if raw == nil {
		return revision.NewRevisionNotFound(recordID, revisionID)
	}
	if err := txn.Delete(tblRevisions, raw); err != nil {
		return revision.NewStorageError("memory", "delete_revision", err)
	}
	return nil
}

func copyTranslations(in map[string]bool) map[string]bool {
	if in == nil {
		return nil
	}
	out := make(map[string]bool, len(in))
	for lang, affected := range in {
		out[lang] = affected
	}
	return out
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
