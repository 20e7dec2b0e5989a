package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/readbreak/pkg/config"
	"mercator-hq/readbreak/pkg/engine"
)

// RunMetrics describes the last finished run.
//
// Metrics:
//   - readbreak_pipeline_runs_total: runs by status
//   - readbreak_pipeline_run_success_rate: success percentage of the last run
//   - readbreak_pipeline_run_duration_seconds: wall time of the last run
//   - readbreak_pipeline_run_pairs: written and dropped pairs of the last run
//   - readbreak_pipeline_run_failures_by_step: aborted pairs per step in the last run
type RunMetrics struct {
	runsTotal      *prometheus.CounterVec
	successRate    prometheus.Gauge
	duration       prometheus.Gauge
	pairs          *prometheus.GaugeVec
	failuresByStep *prometheus.GaugeVec
}

// NewRunMetrics creates and registers run metrics.
func NewRunMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RunMetrics {
	rm := &RunMetrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "runs_total",
				Help:      "Total number of pipeline runs by status",
			},
			[]string{"status"},
		),

		successRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "run_success_rate",
			Help:      "Percentage of read pairs that passed in the last run",
		}),

		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run in seconds",
		}),

		pairs: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "run_pairs",
				Help:      "Clipped pairs written and dropped in the last run",
			},
			[]string{"result"},
		),

		failuresByStep: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "run_failures_by_step",
				Help:      "Pairs aborted by each step in the last run",
			},
			[]string{"step_id"},
		),
	}

	registry.MustRegister(
		rm.runsTotal,
		rm.successRate,
		rm.duration,
		rm.pairs,
		rm.failuresByStep,
	)

	return rm
}

// Record sets the gauges from a finished run.
func (rm *RunMetrics) Record(log engine.ParseLog, duration time.Duration, written, dropped int64) {
	rm.runsTotal.WithLabelValues("completed").Inc()
	rm.successRate.Set(log.SuccessRate)
	rm.duration.Set(duration.Seconds())
	rm.pairs.WithLabelValues("written").Set(float64(written))
	rm.pairs.WithLabelValues("dropped").Set(float64(dropped))

	rm.failuresByStep.Reset()
	for step, n := range log.FailuresByStep {
		rm.failuresByStep.WithLabelValues(step).Set(float64(n))
	}
}

// RecordError counts a failed run.
func (rm *RunMetrics) RecordError() {
	rm.runsTotal.WithLabelValues("error").Inc()
}
