package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// SchemaVersion is the version written to cache_metadata by CreateSchema.
const SchemaVersion = "1.0"

// CreateSchema creates all tables and indexes for the inventory database.
// Uses a transaction so schema creation succeeds or fails as a whole.
//
// Must be called with SQLite PRAGMA foreign_keys = ON.
func CreateSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	tables := []struct {
		name string
		ddl  string
	}{
		{"inventory_runs", createInventoryRunsTable},
		{"run_files", createRunFilesTable},
		{"script_objects", createScriptObjectsTable},
		{"statements", createStatementsTable},
		{"object_refs", createObjectRefsTable},
		{"object_warnings", createObjectWarningsTable},
		{"run_failures", createRunFailuresTable},
		{"cache_metadata", createCacheMetadataTable},
	}

	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	for i, idx := range getAllIndexes() {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index %d: %w", i+1, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	bootstrapSQL := `
		INSERT INTO cache_metadata (key, value, updated_at) VALUES
			('schema_version', ?, ?),
			('last_run', '', ?)
	`
	if _, err := tx.Exec(bootstrapSQL, SchemaVersion, now, now); err != nil {
		return fmt.Errorf("failed to bootstrap cache_metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}
	return nil
}

// GetSchemaVersion retrieves the schema version from cache_metadata.
// Returns "0" if the table doesn't exist (new database).
func GetSchemaVersion(db *sql.DB) (string, error) {
	var tableExists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='cache_metadata'").Scan(&tableExists)
	if err != nil {
		return "", fmt.Errorf("failed to check cache_metadata existence: %w", err)
	}
	if tableExists == 0 {
		return "0", nil
	}

	version, err := getMetadata(db, "schema_version")
	if err != nil {
		return "", err
	}
	if version == "" {
		return "", fmt.Errorf("schema_version key not found in cache_metadata")
	}
	return version, nil
}

type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func getMetadata(db queryRower, key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM cache_metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read metadata %s: %w", key, err)
	}
	return value, nil
}

func setMetadata(db execer, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO cache_metadata (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	if _, err := db.Exec(query, key, value, now); err != nil {
		return fmt.Errorf("failed to update metadata %s: %w", key, err)
	}
	return nil
}

// Table DDL constants

const createInventoryRunsTable = `
CREATE TABLE inventory_runs (
    run_id TEXT PRIMARY KEY,                     -- UUID
    object_type TEXT NOT NULL,                   -- query, proc, form
    started_at TEXT NOT NULL,                    -- ISO 8601
    finished_at TEXT NOT NULL,                   -- ISO 8601
    file_count INTEGER NOT NULL DEFAULT 0,
    record_count INTEGER NOT NULL DEFAULT 0,
    object_count INTEGER NOT NULL DEFAULT 0,
    failure_count INTEGER NOT NULL DEFAULT 0,
    dropped_count INTEGER NOT NULL DEFAULT 0     -- End markers without a declaration
)
`

const createRunFilesTable = `
CREATE TABLE run_files (
    run_id TEXT NOT NULL,
    file_path TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (run_id, file_path),
    FOREIGN KEY (run_id) REFERENCES inventory_runs(run_id) ON DELETE CASCADE
)
`

const createScriptObjectsTable = `
CREATE TABLE script_objects (
    run_id TEXT NOT NULL,
    object_key TEXT NOT NULL,                    -- <db>.<name> as declared
    position INTEGER NOT NULL,                   -- Order of first appearance
    name TEXT NOT NULL,
    db_name TEXT NOT NULL,
    object_type TEXT NOT NULL,
    last_used_date TEXT,
    override INTEGER NOT NULL DEFAULT 0,
    masked_sql TEXT,                             -- NULL when written without SQL
    converted_sql TEXT,
    file_export INTEGER NOT NULL DEFAULT 0,
    save_as_table INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, object_key),
    FOREIGN KEY (run_id) REFERENCES inventory_runs(run_id) ON DELETE CASCADE
)
`

const createStatementsTable = `
CREATE TABLE statements (
    run_id TEXT NOT NULL,
    object_key TEXT NOT NULL,
    position INTEGER NOT NULL,                   -- 0-indexed RUN order
    object_name TEXT NOT NULL,
    form_name TEXT,
    target_table TEXT,
    file_output TEXT,                            -- JSON object, NULL when absent
    PRIMARY KEY (run_id, object_key, position),
    FOREIGN KEY (run_id, object_key) REFERENCES script_objects(run_id, object_key) ON DELETE CASCADE
)
`

const createObjectRefsTable = `
CREATE TABLE object_refs (
    run_id TEXT NOT NULL,
    object_key TEXT NOT NULL,
    kind TEXT NOT NULL,                          -- used, form, source, target, unknown
    ref TEXT NOT NULL,                           -- Fully qualified <db>.<name>
    PRIMARY KEY (run_id, object_key, kind, ref),
    FOREIGN KEY (run_id, object_key) REFERENCES script_objects(run_id, object_key) ON DELETE CASCADE
)
`

const createObjectWarningsTable = `
CREATE TABLE object_warnings (
    run_id TEXT NOT NULL,
    object_key TEXT NOT NULL,
    position INTEGER NOT NULL,
    message TEXT NOT NULL,
    PRIMARY KEY (run_id, object_key, position),
    FOREIGN KEY (run_id, object_key) REFERENCES script_objects(run_id, object_key) ON DELETE CASCADE
)
`

const createRunFailuresTable = `
CREATE TABLE run_failures (
    run_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    file_path TEXT NOT NULL,
    object_key TEXT NOT NULL,
    line INTEGER NOT NULL,
    message TEXT NOT NULL,
    PRIMARY KEY (run_id, position),
    FOREIGN KEY (run_id) REFERENCES inventory_runs(run_id) ON DELETE CASCADE
)
`

const createCacheMetadataTable = `
CREATE TABLE cache_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL
)
`

// getAllIndexes returns all index creation statements.
func getAllIndexes() []string {
	return []string{
		"CREATE INDEX idx_inventory_runs_finished ON inventory_runs(finished_at)",
		"CREATE INDEX idx_script_objects_db ON script_objects(db_name)",
		"CREATE INDEX idx_script_objects_type ON script_objects(object_type)",
		"CREATE INDEX idx_object_refs_ref ON object_refs(ref)",
		"CREATE INDEX idx_object_refs_kind ON object_refs(kind)",
	}
}
