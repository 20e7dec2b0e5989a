// Package tracing provides OpenTelemetry tracing for pipeline runs.
//
// # Overview
//
// A run produces one "readbreak.run" span. The engine adds one
// "readbreak.pair" child span per read pair when it is given the tracer
// returned by Tracer.Tracer. Spans are exported over OTLP gRPC.
//
// # Sampling Strategies
//
//   - always: trace every pair (debugging small inputs)
//   - never: trace nothing
//   - ratio: trace a fraction of pairs chosen by trace id
//   - parent_based: follow the run span decision, ratio for roots
//
// With millions of pairs per run, keep sample_ratio low.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, tracing.SpanRun)
//	tracing.SetRunAttributes(span, runID, pipelinePath)
//	defer span.End()
//
//	engCfg.Tracer = tracer.Tracer()
//
// When tracing is disabled, New returns a tracer backed by the noop
// provider.
package tracing
