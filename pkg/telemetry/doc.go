// Package telemetry groups the observability packages of readbreak.
//
// # Components
//
//   - logging: structured slog logging with run, pipeline, read and step ids
//     taken from the context
//   - metrics: Prometheus counters and histograms for verdicts, steps, the
//     expression cache and whole runs, served over HTTP or written to a
//     node_exporter textfile
//   - tracing: OpenTelemetry spans for runs and sampled read pairs, exported
//     over OTLP gRPC
//   - health: liveness, readiness, progress and version endpoints served
//     next to the metrics during a run
//
// # Usage
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, os.Stderr))
//	ctx = logging.WithRunID(ctx, state.ID)
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
//	collector.WatchCache(state.Cache)
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	ctx, span := tracer.Start(ctx, tracing.SpanRun)
//	defer span.End()
//
// Every component is off or quiet by default. Logging goes to stderr so
// that stdout carries only command output.
package telemetry
