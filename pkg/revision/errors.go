package revision

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordNotFound is returned when a record does not exist.
	// The deletion pipeline treats it as non-fatal.
	ErrRecordNotFound = errors.New("record not found")

	// ErrRevisionNotFound is returned when a revision does not exist.
	// The deletion pipeline treats it as non-fatal.
	ErrRevisionNotFound = errors.New("revision not found")

	// ErrDefaultRevision is returned when asked to delete a record's
	// current revision.
	ErrDefaultRevision = errors.New("revision is the default revision")

	// ErrStorageUnavailable classifies backend failures. It halts a run.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// StorageError represents an error from the storage backend.
type StorageError struct {
	Backend   string // Storage backend type ("sqlite", "postgres", "memory")
	Operation string // Operation that failed ("count", "delete", ...)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// Is reports every StorageError as ErrStorageUnavailable.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// NotFoundError carries the ids of a missing record or revision.
type NotFoundError struct {
	RecordID   int64
	RevisionID int64 // 0 when the record itself is missing
	Cause      error // ErrRecordNotFound or ErrRevisionNotFound
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.RevisionID != 0 {
		return fmt.Sprintf("%v [record_id=%d, revision_id=%d]", e.Cause, e.RecordID, e.RevisionID)
	}
	return fmt.Sprintf("%v [record_id=%d]", e.Cause, e.RecordID)
}

// Unwrap returns the underlying sentinel.
func (e *NotFoundError) Unwrap() error {
	return e.Cause
}

// NewRecordNotFound creates a NotFoundError for a missing record.
func NewRecordNotFound(recordID int64) *NotFoundError {
	return &NotFoundError{RecordID: recordID, Cause: ErrRecordNotFound}
}

// NewRevisionNotFound creates a NotFoundError for a missing revision.
func NewRevisionNotFound(recordID, revisionID int64) *NotFoundError {
	return &NotFoundError{RecordID: recordID, RevisionID: revisionID, Cause: ErrRevisionNotFound}
}

// IsNotFound reports whether err means the record or revision is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRevisionNotFound) || errors.Is(err, ErrRecordNotFound)
}

// IsSkippable reports whether a failed delete should be reported and skipped
// rather than halting a run: the target is gone, or it became the live
// revision after candidates were selected.
func IsSkippable(err error) bool {
	return IsNotFound(err) || errors.Is(err, ErrDefaultRevision)
}
