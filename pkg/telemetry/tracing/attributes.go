package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/readbreak/pkg/engine"
)

// Span names.
const (
	SpanRun  = "readbreak.run"
	SpanPair = "readbreak.pair"
)

// Attribute keys. The pair keys match the attributes set by the engine on
// SpanPair.
const (
	AttrRunID    = "readbreak.run_id"
	AttrPipeline = "readbreak.pipeline"
	AttrInput1   = "readbreak.input1"
	AttrInput2   = "readbreak.input2"

	AttrReadID        = "readbreak.read_id"
	AttrPassed        = "readbreak.passed"
	AttrFailedStep    = "readbreak.failed_step"
	AttrStepsExecuted = "readbreak.steps_executed"

	AttrTotalReads      = "readbreak.reads.total"
	AttrSuccessfulReads = "readbreak.reads.successful"
	AttrFailedReads     = "readbreak.reads.failed"
	AttrSuccessRate     = "readbreak.success_rate"
	AttrWritten         = "readbreak.pairs.written"
	AttrDropped         = "readbreak.pairs.dropped"

	AttrErrorMessage = "error.message"
)

// SetRunAttributes sets the identifying attributes of a run span.
func SetRunAttributes(span trace.Span, runID, pipeline string) {
	span.SetAttributes(
		attribute.String(AttrRunID, runID),
		attribute.String(AttrPipeline, pipeline),
	)
}

// SetInputAttributes records the input FASTQ paths.
func SetInputAttributes(span trace.Span, input1, input2 string) {
	span.SetAttributes(
		attribute.String(AttrInput1, input1),
		attribute.String(AttrInput2, input2),
	)
}

// SetRunResult records the parse log and output counts of a finished run.
func SetRunResult(span trace.Span, log engine.ParseLog, written, dropped int64) {
	span.SetAttributes(
		attribute.Int64(AttrTotalReads, log.TotalReads),
		attribute.Int64(AttrSuccessfulReads, log.SuccessfulReads),
		attribute.Int64(AttrFailedReads, log.FailedReads),
		attribute.Float64(AttrSuccessRate, log.SuccessRate),
		attribute.Int64(AttrWritten, written),
		attribute.Int64(AttrDropped, dropped),
	)
	span.SetStatus(codes.Ok, "")
}

// SetError marks the span as failed and records the error.
func SetError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.SetAttributes(
		attribute.Bool("error", true),
		attribute.String(AttrErrorMessage, err.Error()),
	)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
