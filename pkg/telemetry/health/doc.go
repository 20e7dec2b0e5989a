// Package health serves probe and progress endpoints while a run is in
// progress.
//
// # Endpoints
//
//   - /health: liveness, always 200 while the process runs
//   - /ready: readiness, 503 when any registered check fails
//   - /progress: live parse log of the current run
//   - /version: build information
//
// # Usage
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("audit", store.Ping)
//	checker.RegisterCheck("output", health.WritableDir(outDir))
//
//	mux := http.NewServeMux()
//	health.Register(mux, checker, state.Stats.Snapshot, version.Version)
package health
