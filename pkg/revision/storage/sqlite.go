package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mercator-hq/revkeep/pkg/revision"
)

// SQLiteConfig contains configuration for the SQLite content store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/content.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements revision.Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore opens (and if needed creates) a SQLite content database.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "revision.storage.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, revision.NewStorageError("sqlite", "open", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite content store initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)

	return s, nil
}

// initialize sets up the database schema and enables WAL mode.
func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return revision.NewStorageError("sqlite", "enable_wal", err)
		}
		s.logger.Debug("WAL mode enabled")
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return revision.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return revision.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return revision.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return revision.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return revision.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// PutRecord inserts or replaces a record.
func (s *SQLiteStore) PutRecord(ctx context.Context, rec *revision.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (id, type, current_revision_id, owner, status, title, changed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			current_revision_id = excluded.current_revision_id,
			owner = excluded.owner,
			status = excluded.status,
			title = excluded.title,
			changed = excluded.changed`,
		rec.ID, rec.Type, rec.CurrentRevisionID, rec.Owner, string(rec.Status), rec.Title, rec.Changed.Unix(),
	)
	if err != nil {
		return revision.NewStorageError("sqlite", "put_record", err)
	}
	return nil
}

// PutRevision inserts or replaces a revision and its translation state.
func (s *SQLiteStore) PutRevision(ctx context.Context, rev *revision.Revision) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return revision.NewStorageError("sqlite", "begin", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM records WHERE id = ?", rev.RecordID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return revision.NewRecordNotFound(rev.RecordID)
	}
	if err != nil {
		return revision.NewStorageError("sqlite", "put_revision", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO revisions (record_id, id, timestamp) VALUES (?, ?, ?)
		ON CONFLICT(record_id, id) DO UPDATE SET timestamp = excluded.timestamp`,
		rev.RecordID, rev.ID, rev.Timestamp.Unix(),
	)
	if err != nil {
		return revision.NewStorageError("sqlite", "put_revision", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM revision_translations WHERE record_id = ? AND revision_id = ?",
		rev.RecordID, rev.ID,
	); err != nil {
		return revision.NewStorageError("sqlite", "put_revision", err)
	}
	for lang, affected := range rev.Translations {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO revision_translations (record_id, revision_id, langcode, affected) VALUES (?, ?, ?, ?)",
			rev.RecordID, rev.ID, lang, affected,
		); err != nil {
			return revision.NewStorageError("sqlite", "put_revision", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return revision.NewStorageError("sqlite", "commit", err)
	}
	return nil
}

// GetRecord returns a record by id.
func (s *SQLiteStore) GetRecord(ctx context.Context, recordID int64) (*revision.Record, error) {
	var (
		rec     revision.Record
		status  string
		changed int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, type, current_revision_id, owner, status, title, changed FROM records WHERE id = ?",
		recordID,
	).Scan(&rec.ID, &rec.Type, &rec.CurrentRevisionID, &rec.Owner, &status, &rec.Title, &changed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, revision.NewRecordNotFound(recordID)
	}
	if err != nil {
		return nil, revision.NewStorageError("sqlite", "get_record", err)
	}
	rec.Status = revision.Status(status)
	rec.Changed = time.Unix(changed, 0).UTC()
	return &rec, nil
}

// CountRevisions returns the number of revisions of a record.
func (s *SQLiteStore) CountRevisions(ctx context.Context, recordID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM revisions WHERE record_id = ?", recordID).Scan(&count)
	if err != nil {
		return 0, revision.NewStorageError("sqlite", "count_revisions", err)
	}
	return count, nil
}

// ListRevisionIDs returns the record's revision ids in ascending order.
func (s *SQLiteStore) ListRevisionIDs(ctx context.Context, recordID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM revisions WHERE record_id = ? ORDER BY id ASC", recordID)
	if err != nil {
		return nil, revision.NewStorageError("sqlite", "list_revisions", err)
	}
	defer rows.Close()

	return scanIDs(rows, "sqlite", "list_revisions")
}

// GetRevision returns one revision with its translation state.
func (s *SQLiteStore) GetRevision(ctx context.Context, recordID, revisionID int64) (*revision.Revision, error) {
	var (
		rev       revision.Revision
		timestamp int64
		currentID int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.record_id, r.timestamp, n.current_revision_id
		FROM revisions r JOIN records n ON n.id = r.record_id
		WHERE r.record_id = ? AND r.id = ?`,
		recordID, revisionID,
	).Scan(&rev.ID, &rev.RecordID, &timestamp, &currentID)
	if errors.Is(err, sql.ErrNoRows) {
		if _, recErr := s.GetRecord(ctx, recordID); recErr != nil {
			return nil, recErr
		}
		return nil, revision.NewRevisionNotFound(recordID, revisionID)
	}
	if err != nil {
		return nil, revision.NewStorageError("sqlite", "get_revision", err)
	}
	rev.Timestamp = time.Unix(timestamp, 0).UTC()
	rev.IsDefault = currentID == revisionID

	rows, err := s.db.QueryContext(ctx,
		"SELECT langcode, affected FROM revision_translations WHERE record_id = ? AND revision_id = ?",
		recordID, revisionID,
	)
	if err != nil {
		return nil, revision.NewStorageError("sqlite", "get_translations", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			lang     string
			affected bool
		)
		if err := rows.Scan(&lang, &affected); err != nil {
			return nil, revision.NewStorageError("sqlite", "get_translations", err)
		}
		if rev.Translations == nil {
			rev.Translations = make(map[string]bool)
		}
		rev.Translations[lang] = affected
	}
	if err := rows.Err(); err != nil {
		return nil, revision.NewStorageError("sqlite", "get_translations", err)
	}

	return &rev, nil
}

// ListQualifyingRecordIDs returns matching record ids in ascending order.
func (s *SQLiteStore) ListQualifyingRecordIDs(ctx context.Context, query *revision.RecordQuery) ([]int64, error) {
	sqlQuery, args := buildQualifyingQuery(query, questionMark)

	s.logger.Debug("executing candidate records query",
		"sql", sqlQuery,
		"args_count", len(args),
		"tags", query.Tags,
	)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, revision.NewStorageError("sqlite", "list_records", err)
	}
	defer rows.Close()

	return scanIDs(rows, "sqlite", "list_records")
}

// DeleteRevision removes a single revision in its own transaction.
func (s *SQLiteStore) DeleteRevision(ctx context.Context, recordID, revisionID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return revision.NewStorageError("sqlite", "begin", err)
	}
	defer tx.Rollback()

	if err := s.deleteInTx(ctx, tx, recordID, revisionID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return revision.NewStorageError("sqlite", "commit", err)
	}
	return nil
}

// DeleteRevisions removes a chunk of revisions in one transaction.
func (s *SQLiteStore) DeleteRevisions(ctx context.Context, refs []revision.Ref) ([]error, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, revision.NewStorageError("sqlite", "begin", err)
	}
	defer tx.Rollback()

	results := make([]error, len(refs))
	for i, ref := range refs {
		err := s.deleteInTx(ctx, tx, ref.RecordID, ref.RevisionID)
		if err != nil && !revision.IsSkippable(err) {
			return nil, err
		}
		results[i] = err
	}

	if err := tx.Commit(); err != nil {
		return nil, revision.NewStorageError("sqlite", "commit", err)
	}
	return results, nil
}

func (s *SQLiteStore) deleteInTx(ctx context.Context, tx *sql.Tx, recordID, revisionID int64) error {
	var currentID int64
	err := tx.QueryRowContext(ctx, "SELECT current_revision_id FROM records WHERE id = ?", recordID).Scan(&currentID)
	if errors.Is(err, sql.ErrNoRows) {
		return revision.NewRecordNotFound(recordID)
	}
	if err != nil {
		return revision.NewStorageError("sqlite", "delete_revision", err)
	}
	if currentID == revisionID {
		return fmt.Errorf("delete revision %d of record %d: %w", revisionID, recordID, revision.ErrDefaultRevision)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM revisions WHERE record_id = ? AND id = ?", recordID, revisionID)
	if err != nil {
		return revision.NewStorageError("sqlite", "delete_revision", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return revision.NewStorageError("sqlite", "delete_revision", err)
	}
	if affected == 0 {
		return revision.NewRevisionNotFound(recordID, revisionID)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM revision_translations WHERE record_id = ? AND revision_id = ?",
		recordID, revisionID,
	); err != nil {
		return revision.NewStorageError("sqlite", "delete_translations", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return revision.NewStorageError("sqlite", "ping", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return revision.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite content store closed")
	return nil
}

func scanIDs(rows *sql.Rows, backend, operation string) ([]int64, error) {
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, revision.NewStorageError(backend, operation, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, revision.NewStorageError(backend, operation, err)
	}
	return ids, nil
}
