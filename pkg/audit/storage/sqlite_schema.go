package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the audit database schema.
// Times are Unix nanoseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    pipeline TEXT NOT NULL,
    pipeline_name TEXT NOT NULL DEFAULT '',
    pipeline_hash TEXT NOT NULL DEFAULT '',

    input_r1 TEXT NOT NULL DEFAULT '',
    input_r2 TEXT NOT NULL DEFAULT '',
    output_r1 TEXT NOT NULL DEFAULT '',
    output_r2 TEXT NOT NULL DEFAULT '',

    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL,

    total_reads INTEGER NOT NULL DEFAULT 0,
    successful_reads INTEGER NOT NULL DEFAULT 0,
    failed_reads INTEGER NOT NULL DEFAULT 0,
    success_rate REAL NOT NULL DEFAULT 0,
    failures_by_step TEXT NOT NULL DEFAULT '{}',

    error TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS verdicts (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    read_id TEXT NOT NULL,
    passed BOOLEAN NOT NULL,
    failed_step TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL DEFAULT '',
    vars TEXT NOT NULL DEFAULT '{}',
    recorded_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_pipeline ON runs(pipeline);
CREATE INDEX IF NOT EXISTS idx_verdicts_run_id ON verdicts(run_id);
CREATE INDEX IF NOT EXISTS idx_verdicts_failed_step ON verdicts(failed_step);
CREATE INDEX IF NOT EXISTS idx_verdicts_recorded_at ON verdicts(recorded_at);
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
