// Package revision defines the data model and query surface of a versioned
// content store: records (nodes) and their ordered revision histories.
//
// # Model
//
// A Record is a logical content item of some content type. Every change to
// a record produces a new Revision with a higher id than all previous ones;
// the newest revision is the record's current (default) revision and is
// never deletable.
//
// # Store
//
// Store is the only surface the pruning engine uses to read histories and to
// delete revisions. Backends live in the storage sub-package:
//
//   - Memory: go-memdb based, for tests and dry experiments
//   - SQLite: embedded single-node content database
//   - PostgreSQL: shared content database
//
// Stores that implement ChunkDeleter delete a whole chunk of revisions in a
// single transaction.
//
// # Errors
//
// Missing records and revisions are reported with ErrRecordNotFound and
// ErrRevisionNotFound (see IsNotFound); they are skipped by the deletion
// pipeline. Backend failures are reported as *StorageError, which matches
// ErrStorageUnavailable and halts a run.
package revision
