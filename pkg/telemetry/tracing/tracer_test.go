package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/readbreak/pkg/config"
	"mercator-hq/readbreak/pkg/engine"
)

func newRecordingTracer(t *testing.T) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := NewWithExporter(&config.TracingConfig{
		Enabled:     true,
		Sampler:     SamplerAlways,
		ServiceName: "readbreak-test",
	}, exporter)
	if err != nil {
		t.Fatalf("NewWithExporter() error = %v", err)
	}
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })
	return tracer, exporter
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *config.TracingConfig
		wantErr bool
	}{
		{name: "nil config", config: nil, wantErr: true},
		{name: "disabled tracing", config: &config.TracingConfig{Enabled: false}},
		{
			name:    "enabled without endpoint",
			config:  &config.TracingConfig{Enabled: true, Sampler: SamplerAlways},
			wantErr: true,
		},
		{
			name: "enabled with bad sampler",
			config: &config.TracingConfig{
				Enabled:  true,
				Sampler:  "sometimes",
				Endpoint: "localhost:4317",
				Insecure: true,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tracer != nil {
				_ = tracer.Shutdown(context.Background())
			}
		})
	}
}

func TestDisabledTracer(t *testing.T) {
	tracer, err := New(&config.TracingConfig{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}

	if tracer.Enabled() {
		t.Error("Enabled() = true for disabled config")
	}
	if tracer.Tracer() != nil {
		t.Error("Tracer() should be nil when disabled")
	}

	ctx, span := tracer.Start(context.Background(), SpanRun)
	span.End()
	if span.SpanContext().IsValid() {
		t.Error("noop span has a valid span context")
	}
	if TraceID(ctx) != "" {
		t.Error("TraceID() should be empty for a noop span")
	}
	if err := tracer.ForceFlush(context.Background()); err != nil {
		t.Errorf("ForceFlush() error = %v", err)
	}
}

func TestRunSpan(t *testing.T) {
	tracer, exporter := newRecordingTracer(t)

	ctx, span := tracer.Start(context.Background(), SpanRun)
	SetRunAttributes(span, "run-1", "pipeline.yaml")
	SetInputAttributes(span, "r1.fq", "r2.fq")
	SetRunResult(span, engine.ParseLog{
		TotalReads:      10,
		SuccessfulReads: 8,
		FailedReads:     2,
		SuccessRate:     80,
	}, 8, 0)

	if TraceID(ctx) == "" {
		t.Error("TraceID() empty inside a recorded span")
	}
	span.End()

	if err := tracer.ForceFlush(context.Background()); err != nil {
		t.Fatal(err)
	}
	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("exported %d spans, want 1", len(spans))
	}

	got := spans[0]
	if got.Name != SpanRun {
		t.Errorf("span name = %q", got.Name)
	}
	attrs := attrMap(got.Attributes)
	if attrs[AttrRunID].AsString() != "run-1" {
		t.Errorf("%s = %v", AttrRunID, attrs[AttrRunID])
	}
	if attrs[AttrTotalReads].AsInt64() != 10 {
		t.Errorf("%s = %v", AttrTotalReads, attrs[AttrTotalReads])
	}
	if attrs[AttrSuccessRate].AsFloat64() != 80 {
		t.Errorf("%s = %v", AttrSuccessRate, attrs[AttrSuccessRate])
	}
	if got.Status.Code != codes.Ok {
		t.Errorf("status = %v, want Ok", got.Status.Code)
	}

	var serviceName string
	for _, kv := range got.Resource.Attributes() {
		if kv.Key == "service.name" {
			serviceName = kv.Value.AsString()
		}
	}
	if serviceName != "readbreak-test" {
		t.Errorf("service.name = %q", serviceName)
	}
}

func TestSetError(t *testing.T) {
	tracer, exporter := newRecordingTracer(t)

	_, span := tracer.Start(context.Background(), SpanRun)
	SetError(span, nil)
	SetError(span, errors.New("input truncated"))
	span.End()

	if err := tracer.ForceFlush(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := exporter.GetSpans()[0]
	if got.Status.Code != codes.Error {
		t.Errorf("status = %v, want Error", got.Status.Code)
	}
	if attrMap(got.Attributes)[AttrErrorMessage].AsString() != "input truncated" {
		t.Error("error message attribute missing")
	}
	if len(got.Events) != 1 {
		t.Errorf("recorded %d events, want 1", len(got.Events))
	}
}

func TestChildSpanSharesTrace(t *testing.T) {
	tracer, exporter := newRecordingTracer(t)

	ctx, run := tracer.Start(context.Background(), SpanRun)
	_, pair := tracer.Tracer().Start(ctx, SpanPair)
	pair.End()
	run.End()

	if err := tracer.ForceFlush(context.Background()); err != nil {
		t.Fatal(err)
	}
	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("exported %d spans, want 2", len(spans))
	}
	if spans[0].SpanContext.TraceID() != spans[1].SpanContext.TraceID() {
		t.Error("pair span is not in the run trace")
	}
}
