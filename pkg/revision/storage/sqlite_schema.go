package storage

// SchemaVersion is the current content database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the content database schema.
// Timestamps are stored as unix seconds.
const Schema = `
-- Records (nodes)
CREATE TABLE IF NOT EXISTS records (
    id INTEGER PRIMARY KEY,
    type TEXT NOT NULL,
    current_revision_id INTEGER NOT NULL,
    owner TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'published',
    title TEXT NOT NULL DEFAULT '',
    changed INTEGER NOT NULL
);

-- Revisions, one row per snapshot
CREATE TABLE IF NOT EXISTS revisions (
    record_id INTEGER NOT NULL,
    id INTEGER NOT NULL,
    timestamp INTEGER NOT NULL,
    PRIMARY KEY (record_id, id)
);

-- Per-language translation state of a revision
CREATE TABLE IF NOT EXISTS revision_translations (
    record_id INTEGER NOT NULL,
    revision_id INTEGER NOT NULL,
    langcode TEXT NOT NULL,
    affected BOOLEAN NOT NULL,
    PRIMARY KEY (record_id, revision_id, langcode)
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_type ON records(type);
CREATE INDEX IF NOT EXISTS idx_revisions_timestamp ON revisions(timestamp);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
