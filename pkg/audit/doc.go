// Package audit persists the outcome of pipeline runs so failed reads can be
// inspected after the fact.
//
// # Records
//
// A RunRecord is written once per run and carries the parse log of the run:
// read totals, the success rate and failures by step. A VerdictRecord is
// written per read pair (by default only for failed pairs) and keeps the
// aborting step, the failure message and the pair's variables.
//
// # Recording Flow
//
// Verdicts are recorded asynchronously so storage latency never slows the
// read loop:
//
//	Engine.Run → Verdict
//	     ↓
//	recorder.Recorder (engine.Observer, buffered channel)
//	     ↓
//	Storage backend (SQLite, WAL mode)
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
//	    Path:    "data/audit.db",
//	    WALMode: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	rec := recorder.NewRecorder(store, nil, logger)
//	defer rec.Close()
//
//	eng.AddObserver(rec)
//
// # Retention
//
// The retention package deletes old runs (and their verdicts) by age and by
// count, either once or on a cron schedule.
package audit
