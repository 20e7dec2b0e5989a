package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Context keys for common log fields.
type contextKey string

const (
	// RunIDKey is the context key for run ids.
	RunIDKey contextKey = "run_id"

	// ReadIDKey is the context key for read pair ids.
	ReadIDKey contextKey = "read_id"

	// StepIDKey is the context key for step ids.
	StepIDKey contextKey = "step_id"

	// PipelineKey is the context key for the pipeline file.
	PipelineKey contextKey = "pipeline"
)

var contextKeys = []contextKey{RunIDKey, PipelineKey, ReadIDKey, StepIDKey}

// WithRunID adds a run id to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithReadID adds a read pair id to the context.
func WithReadID(ctx context.Context, readID string) context.Context {
	return context.WithValue(ctx, ReadIDKey, readID)
}

// WithStepID adds a step id to the context.
func WithStepID(ctx context.Context, stepID string) context.Context {
	return context.WithValue(ctx, StepIDKey, stepID)
}

// WithPipeline adds the pipeline file to the context.
func WithPipeline(ctx context.Context, pipeline string) context.Context {
	return context.WithValue(ctx, PipelineKey, pipeline)
}

// Get retrieves a string field from the context.
func Get(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// contextAttrs extracts the known fields from ctx, plus the trace and span
// ids of a valid span.
func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for _, k := range contextKeys {
		if v := Get(ctx, k); v != "" {
			attrs = append(attrs, slog.String(string(k), v))
		}
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return attrs
}
