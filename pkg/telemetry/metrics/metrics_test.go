package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/readbreak/pkg/config"
	"mercator-hq/readbreak/pkg/engine"
	"mercator-hq/readbreak/pkg/expr"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	return NewCollector(&config.MetricsConfig{Enabled: true}, nil)
}

func failedVerdict() *engine.Verdict {
	return &engine.Verdict{
		ReadID:     "r1",
		Passed:     false,
		FailedStep: "linker",
		Message:    "no match",
		Context: &engine.Context{
			Outcomes: []engine.StepOutcome{
				{StepID: "anchor", Op: "match", State: engine.StatePassed, MustPass: true, Duration: time.Microsecond},
				{StepID: "umi", Op: "extract", State: engine.StateFailed, MustPass: false, Duration: time.Microsecond},
				{StepID: "linker", Op: "hamming_test", State: engine.StateFailed, MustPass: true, Duration: time.Microsecond},
			},
		},
	}
}

func TestNewCollectorDefaults(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: true}
	c := NewCollector(cfg, nil)

	if c.Registry() == nil {
		t.Fatal("Registry() = nil")
	}
	if cfg.Namespace != config.DefaultMetricsNamespace {
		t.Errorf("Namespace = %q, want %q", cfg.Namespace, config.DefaultMetricsNamespace)
	}
	if cfg.Subsystem != config.DefaultMetricsSubsystem {
		t.Errorf("Subsystem = %q, want %q", cfg.Subsystem, config.DefaultMetricsSubsystem)
	}
	if len(cfg.StepDurationBuckets) != len(config.DefaultStepDurationBuckets) {
		t.Errorf("StepDurationBuckets = %v", cfg.StepDurationBuckets)
	}
}

func TestObserveVerdict(t *testing.T) {
	c := newTestCollector(t)
	ctx := context.Background()

	c.ObserveVerdict(ctx, failedVerdict())
	c.ObserveVerdict(ctx, &engine.Verdict{ReadID: "r2", Passed: true})

	rm := c.readMetrics
	if got := testutil.ToFloat64(rm.readsTotal.WithLabelValues("failed", "linker")); got != 1 {
		t.Errorf("failed reads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rm.readsTotal.WithLabelValues("passed", "")); got != 1 {
		t.Errorf("passed reads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rm.softFailuresTotal.WithLabelValues("umi")); got != 1 {
		t.Errorf("soft failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rm.softFailuresTotal.WithLabelValues("linker")); got != 0 {
		t.Errorf("must_pass failure counted as soft: %v", got)
	}
	if got := testutil.ToFloat64(rm.stepOutcomesTotal.WithLabelValues("anchor", "match", "PASSED")); got != 1 {
		t.Errorf("anchor outcomes = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(rm.stepDuration); got != 3 {
		t.Errorf("step duration series = %d, want 3", got)
	}
}

func TestObserveVerdictDisabled(t *testing.T) {
	c := NewCollector(&config.MetricsConfig{Enabled: false}, nil)
	c.ObserveVerdict(context.Background(), failedVerdict())

	if got := testutil.CollectAndCount(c.readMetrics.readsTotal); got != 0 {
		t.Errorf("disabled collector recorded %d series", got)
	}
}

func TestWatchCache(t *testing.T) {
	c := newTestCollector(t)
	cache := expr.NewCache()
	c.WatchCache(cache)

	for i := 0; i < 3; i++ {
		if _, err := cache.Compile("{{ s1_start + 1 }}"); err != nil {
			t.Fatalf("Compile() error = %v", err)
		}
	}

	expected := `
# HELP readbreak_pipeline_template_cache_entries Current number of compiled templates
# TYPE readbreak_pipeline_template_cache_entries gauge
readbreak_pipeline_template_cache_entries 1
# HELP readbreak_pipeline_template_cache_hits_total Total number of template cache hits
# TYPE readbreak_pipeline_template_cache_hits_total counter
readbreak_pipeline_template_cache_hits_total 2
# HELP readbreak_pipeline_template_cache_misses_total Total number of template compilations
# TYPE readbreak_pipeline_template_cache_misses_total counter
readbreak_pipeline_template_cache_misses_total 1
`
	err := testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected),
		"readbreak_pipeline_template_cache_entries",
		"readbreak_pipeline_template_cache_hits_total",
		"readbreak_pipeline_template_cache_misses_total",
	)
	if err != nil {
		t.Error(err)
	}
}

func TestRecordRun(t *testing.T) {
	c := newTestCollector(t)
	log := engine.ParseLog{
		TotalReads:      4,
		SuccessfulReads: 3,
		FailedReads:     1,
		FailuresByStep:  map[string]int64{"anchor": 0, "linker": 1},
		SuccessRate:     75,
	}

	c.RecordRun(log, 2*time.Second, 3, 0)
	c.RecordRunError()

	rm := c.runMetrics
	if got := testutil.ToFloat64(rm.successRate); got != 75 {
		t.Errorf("success rate = %v, want 75", got)
	}
	if got := testutil.ToFloat64(rm.duration); got != 2 {
		t.Errorf("duration = %v, want 2", got)
	}
	if got := testutil.ToFloat64(rm.pairs.WithLabelValues("written")); got != 3 {
		t.Errorf("written = %v, want 3", got)
	}
	if got := testutil.ToFloat64(rm.failuresByStep.WithLabelValues("linker")); got != 1 {
		t.Errorf("linker failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rm.runsTotal.WithLabelValues("completed")); got != 1 {
		t.Errorf("completed runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rm.runsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("error runs = %v, want 1", got)
	}
}

func TestWriteToTextfile(t *testing.T) {
	c := newTestCollector(t)
	c.RecordRun(engine.ParseLog{SuccessRate: 100}, time.Second, 1, 0)

	path := filepath.Join(t.TempDir(), "readbreak.prom")
	if err := c.WriteToTextfile(path); err != nil {
		t.Fatalf("WriteToTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "readbreak_pipeline_run_success_rate 100") {
		t.Errorf("textfile missing success rate:\n%s", data)
	}
}

func TestHandler(t *testing.T) {
	c := newTestCollector(t)
	c.ObserveVerdict(context.Background(), failedVerdict())

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "readbreak_pipeline_reads_total") {
		t.Errorf("response missing reads_total:\n%s", body)
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)

	if !cl.Allow("a") || !cl.Allow("b") {
		t.Fatal("Allow() rejected values under the limit")
	}
	if cl.Allow("c") {
		t.Error("Allow() accepted a value over the limit")
	}
	if !cl.Allow("a") {
		t.Error("Allow() rejected a tracked value")
	}
	if cl.Count() != 2 {
		t.Errorf("Count() = %d, want 2", cl.Count())
	}
}

func TestStepLabelOverflow(t *testing.T) {
	c := newTestCollector(t)
	c.cardinalityLimiter = NewCardinalityLimiter(1)

	if got := c.stepLabel("first"); got != "first" {
		t.Errorf("stepLabel(first) = %q", got)
	}
	if got := c.stepLabel("second"); got != otherStep {
		t.Errorf("stepLabel(second) = %q, want %q", got, otherStep)
	}
}
