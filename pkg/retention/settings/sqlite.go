package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"mercator-hq/revkeep/pkg/retention"
)

const keyLastExecute = "last_execute"

// SQLiteBackend implements Backend on a SQLite file. It is meant for a
// single process; the scheduler guards against concurrent runs in-process.
type SQLiteBackend struct {
	db        *sql.DB
	dbPath    string
	closeOnce sync.Once

	savePolicyStmt   *sql.Stmt
	getPolicyStmt    *sql.Stmt
	deletePolicyStmt *sql.Stmt
	getSettingStmt   *sql.Stmt
	setSettingStmt   *sql.Stmt
}

// SQLiteBackendConfig configures the SQLite backend.
type SQLiteBackendConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteBackend opens (and if needed creates) the state database.
func NewSQLiteBackend(cfg SQLiteBackendConfig) (*SQLiteBackend, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)",
		cfg.DBPath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	b := &SQLiteBackend{db: db, dbPath: cfg.DBPath}

	if err := b.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := b.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return b, nil
}

func (b *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS policies (
		content_type TEXT PRIMARY KEY,
		minimum_revisions_to_keep INTEGER NOT NULL,
		minimum_age_amount INTEGER NOT NULL DEFAULT 0,
		minimum_age_unit TEXT NOT NULL DEFAULT '',
		when_to_delete_amount INTEGER NOT NULL DEFAULT 0,
		when_to_delete_unit TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	_, err := b.db.Exec(schema)
	return err
}

func (b *SQLiteBackend) prepareStatements() error {
	var err error

	b.savePolicyStmt, err = b.db.Prepare(`
		INSERT INTO policies (content_type, minimum_revisions_to_keep,
			minimum_age_amount, minimum_age_unit, when_to_delete_amount, when_to_delete_unit, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (content_type) DO UPDATE SET
			minimum_revisions_to_keep = excluded.minimum_revisions_to_keep,
			minimum_age_amount = excluded.minimum_age_amount,
			minimum_age_unit = excluded.minimum_age_unit,
			when_to_delete_amount = excluded.when_to_delete_amount,
			when_to_delete_unit = excluded.when_to_delete_unit,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare save policy statement: %w", err)
	}

	b.getPolicyStmt, err = b.db.Prepare(`
		SELECT content_type, minimum_revisions_to_keep,
			minimum_age_amount, minimum_age_unit, when_to_delete_amount, when_to_delete_unit
		FROM policies
		WHERE content_type = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get policy statement: %w", err)
	}

	b.deletePolicyStmt, err = b.db.Prepare(`DELETE FROM policies WHERE content_type = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete policy statement: %w", err)
	}

	b.getSettingStmt, err = b.db.Prepare(`SELECT value FROM settings WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get setting statement: %w", err)
	}

	b.setSettingStmt, err = b.db.Prepare(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare set setting statement: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*retention.Policy, error) {
	var p retention.Policy
	var ageUnit, whenUnit string
	err := row.Scan(&p.ContentType, &p.MinimumRevisionsToKeep,
		&p.MinimumAgeToDelete.Amount, &ageUnit,
		&p.WhenToDelete.Amount, &whenUnit)
	if err != nil {
		return nil, err
	}
	p.MinimumAgeToDelete.Unit = retention.Unit(ageUnit)
	p.WhenToDelete.Unit = retention.Unit(whenUnit)
	return &p, nil
}

func (b *SQLiteBackend) GetPolicy(ctx context.Context, contentType string) (*retention.Policy, error) {
	p, err := scanPolicy(b.getPolicyStmt.QueryRowContext(ctx, contentType))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", retention.ErrPolicyNotFound, contentType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load policy %s: %w", contentType, err)
	}
	return p, nil
}

func (b *SQLiteBackend) SavePolicy(ctx context.Context, policy *retention.Policy) error {
	_, err := b.savePolicyStmt.ExecContext(ctx,
		policy.ContentType,
		policy.MinimumRevisionsToKeep,
		policy.MinimumAgeToDelete.Amount, string(policy.MinimumAgeToDelete.Unit),
		policy.WhenToDelete.Amount, string(policy.WhenToDelete.Unit),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save policy %s: %w", policy.ContentType, err)
	}
	return nil
}

func (b *SQLiteBackend) DeletePolicy(ctx context.Context, contentType string) (bool, error) {
	res, err := b.deletePolicyStmt.ExecContext(ctx, contentType)
	if err != nil {
		return false, fmt.Errorf("failed to delete policy %s: %w", contentType, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete policy %s: %w", contentType, err)
	}
	return n > 0, nil
}

func (b *SQLiteBackend) ListPolicies(ctx context.Context) ([]*retention.Policy, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT content_type, minimum_revisions_to_keep,
			minimum_age_amount, minimum_age_unit, when_to_delete_amount, when_to_delete_unit
		FROM policies
		ORDER BY content_type ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	policies := []*retention.Policy{}
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	return policies, nil
}

func (b *SQLiteBackend) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := b.getSettingStmt.QueryRowContext(ctx, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load setting %s: %w", key, err)
	}
	return value, true, nil
}

func (b *SQLiteBackend) SetSetting(ctx context.Context, key, value string) error {
	if _, err := b.setSettingStmt.ExecContext(ctx, key, value, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

// LastExecute is stored in unix seconds.
func (b *SQLiteBackend) LastExecute(ctx context.Context) (time.Time, error) {
	v, ok, err := b.GetSetting(ctx, keyLastExecute)
	if err != nil || !ok {
		return time.Time{}, err
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s value %q: %w", keyLastExecute, v, err)
	}
	if secs == 0 {
		return time.Time{}, nil
	}
	return time.Unix(secs, 0).UTC(), nil
}

func (b *SQLiteBackend) SetLastExecute(ctx context.Context, t time.Time) error {
	var secs int64
	if !t.IsZero() {
		secs = t.Unix()
	}
	return b.SetSetting(ctx, keyLastExecute, strconv.FormatInt(secs, 10))
}

// Close releases the statements and the database handle.
func (b *SQLiteBackend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{
			b.savePolicyStmt, b.getPolicyStmt, b.deletePolicyStmt,
			b.getSettingStmt, b.setSettingStmt,
		} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = b.db.Close()
	})
	return err
}
