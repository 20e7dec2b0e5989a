package runner

import (
	"bufio"
	"encoding/json"
	"io"

	"mercator-hq/readbreak/pkg/engine"
)

// ReportRecord is one line of a verdict report.
type ReportRecord struct {
	ReadID     string         `json:"read_id"`
	Passed     bool           `json:"passed"`
	FailedStep string         `json:"failed_step,omitempty"`
	Message    string         `json:"message,omitempty"`
	Vars       map[string]any `json:"vars,omitempty"`
	Steps      []ReportStep   `json:"steps,omitempty"`
}

// ReportStep is the outcome of one executed step.
type ReportStep struct {
	ID         string  `json:"id"`
	Op         string  `json:"op"`
	State      string  `json:"state"`
	Reason     string  `json:"reason,omitempty"`
	DurationUS float64 `json:"duration_us"`
}

// NewReportRecord summarizes a verdict.
func NewReportRecord(v *engine.Verdict) ReportRecord {
	rec := ReportRecord{
		ReadID:     v.ReadID,
		Passed:     v.Passed,
		FailedStep: v.FailedStep,
		Message:    v.Message,
	}
	if v.Context == nil {
		return rec
	}
	rec.Vars = v.Context.Export()
	for _, o := range v.Context.Outcomes {
		rec.Steps = append(rec.Steps, ReportStep{
			ID:         o.StepID,
			Op:         o.Op,
			State:      o.State.String(),
			Reason:     o.Reason,
			DurationUS: float64(o.Duration.Nanoseconds()) / 1e3,
		})
	}
	return rec
}

// ReportSink writes one JSON object per verdict.
type ReportSink struct {
	w          *bufio.Writer
	enc        *json.Encoder
	failedOnly bool
}

// NewReportSink writes reports to w. With failedOnly set, passing pairs are
// skipped.
func NewReportSink(w io.Writer, failedOnly bool) *ReportSink {
	bw := bufio.NewWriter(w)
	return &ReportSink{w: bw, enc: json.NewEncoder(bw), failedOnly: failedOnly}
}

// Write implements engine.Sink.
func (s *ReportSink) Write(v *engine.Verdict) error {
	if s.failedOnly && v.Passed {
		return nil
	}
	return s.enc.Encode(NewReportRecord(v))
}

// Flush writes buffered records.
func (s *ReportSink) Flush() error {
	return s.w.Flush()
}

// MultiSink fans a verdict out to several sinks in order.
type MultiSink []engine.Sink

// Write implements engine.Sink.
func (m MultiSink) Write(v *engine.Verdict) error {
	for _, s := range m {
		if err := s.Write(v); err != nil {
			return err
		}
	}
	return nil
}
