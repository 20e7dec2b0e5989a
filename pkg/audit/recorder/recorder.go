package recorder

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mercator-hq/readbreak/pkg/audit"
	"mercator-hq/readbreak/pkg/engine"
)

// Config contains configuration for the audit recorder.
type Config struct {
	// Enabled enables verdict recording. RecordRun works either way.
	Enabled bool

	// FailedOnly records only failed pairs.
	// Default: true
	FailedOnly bool

	// IncludeVars stores the pair variables with each verdict.
	// Default: true
	IncludeVars bool

	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout bounds a single storage write and the wait for buffer
	// space when the channel is full.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		FailedOnly:   true,
		IncludeVars:  true,
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder records verdicts of one run asynchronously.
type Recorder struct {
	storage audit.Storage
	runID   string
	config  *Config
	logger  *slog.Logger

	recordChan chan *audit.VerdictRecord
	done       chan struct{}
	closed     atomic.Bool
	closeOnce  sync.Once
	wg         sync.WaitGroup

	recorded atomic.Int64
	dropped  atomic.Int64
}

// NewRecorder creates a recorder for the run runID and starts its worker.
func NewRecorder(storage audit.Storage, runID string, config *Config, logger *slog.Logger) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		storage:    storage,
		runID:      runID,
		config:     config,
		logger:     logger.With("component", "audit.recorder", "run_id", runID),
		recordChan: make(chan *audit.VerdictRecord, config.AsyncBuffer),
		done:       make(chan struct{}),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Debug("audit recorder initialized",
		"async_buffer", config.AsyncBuffer,
		"failed_only", config.FailedOnly,
	)

	return r
}

// ObserveVerdict enqueues v for writing. It returns immediately unless the
// buffer is full, in which case it waits up to WriteTimeout and then drops
// the record.
func (r *Recorder) ObserveVerdict(ctx context.Context, v *engine.Verdict) {
	if !r.config.Enabled || (r.config.FailedOnly && v.Passed) {
		return
	}
	if r.closed.Load() {
		r.dropped.Add(1)
		r.logger.Warn("recorder closed, dropping verdict", "read_id", v.ReadID)
		return
	}

	rec := r.newVerdictRecord(v)

	select {
	case r.recordChan <- rec:
	case <-time.After(r.config.WriteTimeout):
		r.dropped.Add(1)
		r.logger.Error("audit channel full, dropping verdict",
			"read_id", v.ReadID,
			"channel_capacity", r.config.AsyncBuffer,
			"error", audit.NewRecorderError(v.ReadID, context.DeadlineExceeded),
		)
	case <-r.done:
		r.dropped.Add(1)
		r.logger.Warn("recorder shutting down, dropping verdict", "read_id", v.ReadID)
	}
}

// RecordRun stores the run record synchronously.
func (r *Recorder) RecordRun(ctx context.Context, run *audit.RunRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.WriteTimeout)
	defer cancel()

	if run.ID == "" {
		run.ID = r.runID
	}
	if err := r.storage.StoreRun(ctx, run); err != nil {
		return audit.NewRecorderError("", err)
	}
	r.logger.Info("run recorded",
		"pipeline", run.Pipeline,
		"total_reads", run.TotalReads,
		"failed_reads", run.FailedReads,
	)
	return nil
}

// Recorded returns the number of verdicts written to storage.
func (r *Recorder) Recorded() int64 { return r.recorded.Load() }

// Dropped returns the number of verdicts that could not be written.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Close drains the channel and waits for pending writes. It is safe to call
// more than once.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.done)
		r.wg.Wait()
		r.logger.Debug("audit recorder closed",
			"recorded", r.recorded.Load(),
			"dropped", r.dropped.Load(),
		)
	})
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case rec := <-r.recordChan:
			r.write(rec)
		case <-r.done:
			for {
				select {
				case rec := <-r.recordChan:
					r.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(rec *audit.VerdictRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.storage.StoreVerdict(ctx, rec); err != nil {
		r.dropped.Add(1)
		r.logger.Error("failed to store verdict",
			"read_id", rec.ReadID,
			"error", err,
		)
		return
	}
	r.recorded.Add(1)
}

func (r *Recorder) newVerdictRecord(v *engine.Verdict) *audit.VerdictRecord {
	rec := &audit.VerdictRecord{
		ID:         uuid.NewString(),
		RunID:      r.runID,
		ReadID:     v.ReadID,
		Passed:     v.Passed,
		FailedStep: v.FailedStep,
		Message:    v.Message,
		RecordedAt: time.Now(),
	}
	if r.config.IncludeVars && v.Context != nil {
		rec.Vars = v.Context.Export()
	}
	return rec
}

// NewRunRecord builds a run record from a parse log.
func NewRunRecord(runID, pipeline string, log engine.ParseLog, started, finished time.Time) *audit.RunRecord {
	return &audit.RunRecord{
		ID:              runID,
		Pipeline:        pipeline,
		StartedAt:       started,
		FinishedAt:      finished,
		TotalReads:      log.TotalReads,
		SuccessfulReads: log.SuccessfulReads,
		FailedReads:     log.FailedReads,
		SuccessRate:     log.SuccessRate,
		FailuresByStep:  maps.Clone(log.FailuresByStep),
	}
}
