package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/readbreak/pkg/config"
	"mercator-hq/readbreak/pkg/engine"
	"mercator-hq/readbreak/pkg/expr"
)

// otherStep replaces step ids beyond the cardinality limit.
const otherStep = "other"

// Collector owns the readbreak metrics and their registry. It implements
// engine.Observer and is safe for concurrent use.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	readMetrics  *ReadMetrics
	cacheMetrics *CacheMetrics
	runMetrics   *RunMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a collector. If registry is nil a new registry is
// created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.StepDurationBuckets) == 0 {
		cfg.StepDurationBuckets = append([]float64(nil), config.DefaultStepDurationBuckets...)
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		readMetrics:        NewReadMetrics(cfg, registry),
		cacheMetrics:       NewCacheMetrics(cfg, registry),
		runMetrics:         NewRunMetrics(cfg, registry),
		cardinalityLimiter: NewCardinalityLimiter(1000),
	}
}

// ObserveVerdict records the verdict and the outcome of every executed
// step.
func (c *Collector) ObserveVerdict(ctx context.Context, v *engine.Verdict) {
	if !c.config.Enabled {
		return
	}

	if v.Passed {
		c.readMetrics.RecordRead("passed", "")
	} else {
		c.readMetrics.RecordRead("failed", c.stepLabel(v.FailedStep))
	}

	if v.Context == nil {
		return
	}
	for _, o := range v.Context.Outcomes {
		step := c.stepLabel(o.StepID)
		c.readMetrics.RecordStep(step, o.Op, o.State.String(), o.Duration)
		if !o.Passed() && !o.MustPass {
			c.readMetrics.RecordSoftFailure(step)
		}
	}
}

// WatchCache exports the counters of a template cache. Call it at most once
// per collector.
func (c *Collector) WatchCache(cache *expr.Cache) {
	c.cacheMetrics.Watch(cache)
}

// RecordRun records the parse log and output counts of a finished run.
func (c *Collector) RecordRun(log engine.ParseLog, duration time.Duration, written, dropped int64) {
	if !c.config.Enabled {
		return
	}
	c.runMetrics.Record(log, duration, written, dropped)
}

// RecordRunError counts a run that stopped on an error.
func (c *Collector) RecordRunError() {
	if !c.config.Enabled {
		return
	}
	c.runMetrics.RecordError()
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteToTextfile writes the registry in the Prometheus text format,
// atomically replacing path. Suitable for the node_exporter textfile
// collector.
func (c *Collector) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

func (c *Collector) stepLabel(stepID string) string {
	if !c.cardinalityLimiter.Allow(stepID) {
		return otherStep
	}
	return stepID
}

// CardinalityLimiter caps the number of distinct label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter allowing maxCardinality values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is already tracked or fits under the limit.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
