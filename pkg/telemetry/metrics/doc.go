// Package metrics provides Prometheus metrics for pipeline runs.
//
// # Metrics Categories
//
//   - Read metrics: pairs processed by verdict, aborting step and soft failures
//   - Step metrics: outcomes and durations per step
//   - Cache metrics: template cache hits, misses and entries
//   - Run metrics: success rate, duration and clipped output counts
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	eng.AddObserver(collector)
//	collector.WatchCache(state.Cache)
//
//	// At the end of the run
//	collector.RecordRun(summary.Log, summary.Duration, summary.Written, summary.Dropped)
//	collector.WriteToTextfile("readbreak.prom")
//
// The Collector can also be served over HTTP with Handler while a run is in
// progress.
package metrics
