package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"mercator-hq/readbreak/pkg/audit"
)

// Driver names accepted by SQLiteConfig.Driver.
const (
	DriverModernc = "sqlite"
	DriverCgo     = "sqlite3"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver is the database/sql driver name: "sqlite" (pure Go) or
	// "sqlite3" (cgo).
	// Default: "sqlite"
	Driver string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 4
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 2
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/audit.db",
		Driver:       DriverModernc,
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements audit.Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens the database, enables WAL mode if configured and
// creates the schema.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Driver == "" {
		config.Driver = DriverModernc
	}
	if config.Driver != DriverModernc && config.Driver != DriverCgo {
		return nil, audit.NewStorageError("sqlite", "open",
			fmt.Errorf("unknown driver %q (want %q or %q)", config.Driver, DriverModernc, DriverCgo))
	}

	logger := slog.Default().With("component", "audit.storage.sqlite")

	db, err := sql.Open(config.Driver, config.Path)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "open", err)
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite storage initialized",
		"path", config.Path,
		"driver", config.Driver,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return audit.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return audit.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return audit.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return audit.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return audit.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return audit.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// StoreRun persists a run record, replacing an existing one with the same id.
func (s *SQLiteStorage) StoreRun(ctx context.Context, r *audit.RunRecord) error {
	failures, err := json.Marshal(r.FailuresByStep)
	if err != nil {
		return audit.NewStorageError("sqlite", "store_run", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			id, pipeline, pipeline_name, pipeline_hash,
			input_r1, input_r2, output_r1, output_r2,
			started_at, finished_at,
			total_reads, successful_reads, failed_reads, success_rate, failures_by_step,
			error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Pipeline, r.PipelineName, r.PipelineHash,
		r.Input1, r.Input2, r.Output1, r.Output2,
		r.StartedAt.UnixNano(), r.FinishedAt.UnixNano(),
		r.TotalReads, r.SuccessfulReads, r.FailedReads, r.SuccessRate, string(failures),
		r.Error,
	)
	if err != nil {
		return audit.NewStorageError("sqlite", "store_run", err)
	}
	return nil
}

// StoreVerdict persists a verdict record.
func (s *SQLiteStorage) StoreVerdict(ctx context.Context, v *audit.VerdictRecord) error {
	vars, err := json.Marshal(v.Vars)
	if err != nil {
		return audit.NewStorageError("sqlite", "store_verdict", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO verdicts (id, run_id, read_id, passed, failed_step, message, vars, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.RunID, v.ReadID, v.Passed, v.FailedStep, v.Message, string(vars), v.RecordedAt.UnixNano(),
	)
	if err != nil {
		return audit.NewStorageError("sqlite", "store_verdict", err)
	}
	return nil
}

const runColumns = `id, pipeline, pipeline_name, pipeline_hash,
	input_r1, input_r2, output_r1, output_r2,
	started_at, finished_at,
	total_reads, successful_reads, failed_reads, success_rate, failures_by_step,
	error`

// QueryRuns returns runs matching q.
func (s *SQLiteStorage) QueryRuns(ctx context.Context, q *audit.Query) ([]*audit.RunRecord, error) {
	where, args := buildRunWhere(q)
	query := "SELECT " + runColumns + " FROM runs" + where +
		orderAndPage("started_at", q)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "query_runs", err)
	}
	defer rows.Close()

	runs := []*audit.RunRecord{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, audit.NewStorageError("sqlite", "scan", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError("sqlite", "query_runs", err)
	}
	return runs, nil
}

// QueryVerdicts returns verdicts matching q.
func (s *SQLiteStorage) QueryVerdicts(ctx context.Context, q *audit.Query) ([]*audit.VerdictRecord, error) {
	where, args := buildVerdictWhere(q)
	query := "SELECT id, run_id, read_id, passed, failed_step, message, vars, recorded_at FROM verdicts" +
		where + orderAndPage("recorded_at", q)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "query_verdicts", err)
	}
	defer rows.Close()

	out := []*audit.VerdictRecord{}
	for rows.Next() {
		var (
			v        audit.VerdictRecord
			vars     string
			recorded int64
		)
		if err := rows.Scan(&v.ID, &v.RunID, &v.ReadID, &v.Passed, &v.FailedStep, &v.Message, &vars, &recorded); err != nil {
			return nil, audit.NewStorageError("sqlite", "scan", err)
		}
		if err := json.Unmarshal([]byte(vars), &v.Vars); err != nil {
			return nil, audit.NewStorageError("sqlite", "scan", err)
		}
		v.RecordedAt = time.Unix(0, recorded)
		out = append(out, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError("sqlite", "query_verdicts", err)
	}
	return out, nil
}

// CountRuns returns the number of runs matching q.
func (s *SQLiteStorage) CountRuns(ctx context.Context, q *audit.Query) (int64, error) {
	where, args := buildRunWhere(q)

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs"+where, args...).Scan(&count); err != nil {
		return 0, audit.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// DeleteRuns removes runs matching q and their verdicts in one transaction.
func (s *SQLiteStorage) DeleteRuns(ctx context.Context, q *audit.Query) (int64, error) {
	where, args := buildRunWhere(q)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "delete", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM verdicts WHERE run_id IN (SELECT id FROM runs"+where+")", args...); err != nil {
		return 0, audit.NewStorageError("sqlite", "delete", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM runs"+where, args...)
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "delete", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "delete", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, audit.NewStorageError("sqlite", "delete", err)
	}
	return count, nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return audit.NewStorageError("sqlite", "ping", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return audit.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite storage closed")
	return nil
}

func buildRunWhere(q *audit.Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if q.RunID != "" {
		conds = append(conds, "id = ?")
		args = append(args, q.RunID)
	}
	if q.Pipeline != "" {
		conds = append(conds, "pipeline = ?")
		args = append(args, q.Pipeline)
	}
	conds, args = timeRange("started_at", q, conds, args)
	return joinWhere(conds), args
}

func buildVerdictWhere(q *audit.Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if q.RunID != "" {
		conds = append(conds, "run_id = ?")
		args = append(args, q.RunID)
	}
	if q.StepID != "" {
		conds = append(conds, "failed_step = ?")
		args = append(args, q.StepID)
	}
	if q.Passed != nil {
		conds = append(conds, "passed = ?")
		args = append(args, *q.Passed)
	}
	conds, args = timeRange("recorded_at", q, conds, args)
	return joinWhere(conds), args
}

func timeRange(col string, q *audit.Query, conds []string, args []any) ([]string, []any) {
	if q.StartTime != nil {
		conds = append(conds, col+" >= ?")
		args = append(args, q.StartTime.UnixNano())
	}
	if q.EndTime != nil {
		conds = append(conds, col+" < ?")
		args = append(args, q.EndTime.UnixNano())
	}
	return conds, args
}

func joinWhere(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func orderAndPage(col string, q *audit.Query) string {
	order := "DESC"
	if strings.EqualFold(q.SortOrder, "asc") {
		order = "ASC"
	}
	limit := defaultLimit
	if q.Limit > 0 {
		limit = q.Limit
	}
	s := fmt.Sprintf(" ORDER BY %s %s, id LIMIT %d", col, order, limit)
	if q.Offset > 0 {
		s += fmt.Sprintf(" OFFSET %d", q.Offset)
	}
	return s
}

func scanRun(rows *sql.Rows) (*audit.RunRecord, error) {
	var (
		r                 audit.RunRecord
		started, finished int64
		failures          string
	)
	err := rows.Scan(
		&r.ID, &r.Pipeline, &r.PipelineName, &r.PipelineHash,
		&r.Input1, &r.Input2, &r.Output1, &r.Output2,
		&started, &finished,
		&r.TotalReads, &r.SuccessfulReads, &r.FailedReads, &r.SuccessRate, &failures,
		&r.Error,
	)
	if err != nil {
		return nil, err
	}
	r.StartedAt = time.Unix(0, started)
	r.FinishedAt = time.Unix(0, finished)
	if err := json.Unmarshal([]byte(failures), &r.FailuresByStep); err != nil {
		return nil, fmt.Errorf("failures_by_step: %w", err)
	}
	return &r, nil
}
