package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/readbreak/pkg/config"
	"mercator-hq/readbreak/pkg/expr"
)

// CacheMetrics exports the template cache counters.
//
// Metrics:
//   - readbreak_pipeline_template_cache_hits_total
//   - readbreak_pipeline_template_cache_misses_total
//   - readbreak_pipeline_template_cache_entries
type CacheMetrics struct {
	cfg      *config.MetricsConfig
	registry *prometheus.Registry
}

// NewCacheMetrics creates cache metrics. Nothing is registered until Watch.
func NewCacheMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CacheMetrics {
	return &CacheMetrics{cfg: cfg, registry: registry}
}

// Watch registers collectors that read cache on every scrape.
func (cm *CacheMetrics) Watch(cache *expr.Cache) {
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{
			Namespace: cm.cfg.Namespace,
			Subsystem: cm.cfg.Subsystem,
			Name:      name,
			Help:      help,
		}
	}

	cm.registry.MustRegister(
		prometheus.NewCounterFunc(
			prometheus.CounterOpts(opts("template_cache_hits_total", "Total number of template cache hits")),
			func() float64 { return float64(cache.Stats().Hits) },
		),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts(opts("template_cache_misses_total", "Total number of template compilations")),
			func() float64 { return float64(cache.Stats().Misses) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts(opts("template_cache_entries", "Current number of compiled templates")),
			func() float64 { return float64(cache.Len()) },
		),
	)
}
