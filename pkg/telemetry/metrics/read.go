package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/readbreak/pkg/config"
)

// ReadMetrics tracks read pair and step outcomes.
//
// Metrics:
//   - readbreak_pipeline_reads_total: pairs by status and aborting step
//   - readbreak_pipeline_step_outcomes_total: step outcomes by step, op and state
//   - readbreak_pipeline_step_soft_failures_total: failures of non must_pass steps
//   - readbreak_pipeline_step_duration_seconds: step duration histogram
type ReadMetrics struct {
	readsTotal        *prometheus.CounterVec
	stepOutcomesTotal *prometheus.CounterVec
	softFailuresTotal *prometheus.CounterVec
	stepDuration      *prometheus.HistogramVec
}

// NewReadMetrics creates and registers read metrics.
func NewReadMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ReadMetrics {
	rm := &ReadMetrics{
		readsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "reads_total",
				Help:      "Total number of read pairs processed",
			},
			[]string{"status", "failed_step"},
		),

		stepOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "step_outcomes_total",
				Help:      "Total number of executed steps by terminal state",
			},
			[]string{"step_id", "op", "state"},
		),

		softFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "step_soft_failures_total",
				Help:      "Total number of failures of steps that are not must_pass",
			},
			[]string{"step_id"},
		),

		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "step_duration_seconds",
				Help:      "Duration of step execution in seconds",
				Buckets:   cfg.StepDurationBuckets,
			},
			[]string{"step_id", "op"},
		),
	}

	registry.MustRegister(
		rm.readsTotal,
		rm.stepOutcomesTotal,
		rm.softFailuresTotal,
		rm.stepDuration,
	)

	return rm
}

// RecordRead counts one pair. failedStep is empty for passing pairs.
func (rm *ReadMetrics) RecordRead(status, failedStep string) {
	rm.readsTotal.WithLabelValues(status, failedStep).Inc()
}

// RecordStep records a step outcome and its duration.
func (rm *ReadMetrics) RecordStep(stepID, op, state string, duration time.Duration) {
	rm.stepOutcomesTotal.WithLabelValues(stepID, op, state).Inc()
	rm.stepDuration.WithLabelValues(stepID, op).Observe(duration.Seconds())
}

// RecordSoftFailure counts a failure that did not abort the pair.
func (rm *ReadMetrics) RecordSoftFailure(stepID string) {
	rm.softFailuresTotal.WithLabelValues(stepID).Inc()
}
