package audit

import (
	"context"
	"time"
)

// RunRecord describes one pipeline run.
type RunRecord struct {
	// ID is the run id (engine.RunState.ID).
	ID string `json:"id"`

	// Pipeline is the pipeline file path.
	Pipeline string `json:"pipeline"`

	// PipelineName is the name declared in the pipeline file.
	PipelineName string `json:"pipeline_name,omitempty"`

	// PipelineHash is the SHA-256 of the pipeline file contents.
	PipelineHash string `json:"pipeline_hash,omitempty"`

	// Inputs and outputs.
	Input1  string `json:"input_r1"`
	Input2  string `json:"input_r2"`
	Output1 string `json:"output_r1,omitempty"`
	Output2 string `json:"output_r2,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Parse log counters.
	TotalReads      int64            `json:"total_reads"`
	SuccessfulReads int64            `json:"successful_reads"`
	FailedReads     int64            `json:"failed_reads"`
	SuccessRate     float64          `json:"success_rate"`
	FailuresByStep  map[string]int64 `json:"failures_by_step,omitempty"`

	// Error is set when the run stopped early.
	Error string `json:"error,omitempty"`
}

// Duration returns the wall time of the run.
func (r *RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// VerdictRecord describes the verdict for one read pair.
type VerdictRecord struct {
	ID         string         `json:"id"`
	RunID      string         `json:"run_id"`
	ReadID     string         `json:"read_id"`
	Passed     bool           `json:"passed"`
	FailedStep string         `json:"failed_step,omitempty"`
	Message    string         `json:"message,omitempty"`
	Vars       map[string]any `json:"vars,omitempty"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// Query filters audit records. Zero values match everything.
//
// Runs are filtered by RunID, Pipeline and their start time. Verdicts are
// filtered by RunID, StepID, Passed and their recorded time.
type Query struct {
	RunID    string
	Pipeline string

	// StepID matches the failed step of a verdict.
	StepID string

	// Passed filters verdicts by outcome when non-nil.
	Passed *bool

	StartTime *time.Time
	EndTime   *time.Time

	// Limit caps the result count. Default: 100.
	Limit  int
	Offset int

	// SortOrder is "asc" or "desc" (default) on the record time.
	SortOrder string
}

// Storage defines the interface for audit storage backends.
// Implementations must be safe for concurrent use.
type Storage interface {
	// StoreRun persists a run record, replacing one with the same id.
	StoreRun(ctx context.Context, run *RunRecord) error

	// StoreVerdict persists a verdict record.
	StoreVerdict(ctx context.Context, v *VerdictRecord) error

	// QueryRuns returns runs matching the query. Returns an empty slice if
	// nothing matches.
	QueryRuns(ctx context.Context, q *Query) ([]*RunRecord, error)

	// QueryVerdicts returns verdicts matching the query.
	QueryVerdicts(ctx context.Context, q *Query) ([]*VerdictRecord, error)

	// CountRuns returns the number of runs matching the query.
	CountRuns(ctx context.Context, q *Query) (int64, error)

	// DeleteRuns removes runs matching the query together with their
	// verdicts. Returns the number of runs deleted.
	DeleteRuns(ctx context.Context, q *Query) (int64, error)

	// Close releases resources held by the backend.
	Close() error
}
