// Package engine executes declarative read-parsing pipelines against paired
// reads.
//
// An Engine is built once per run from a validated spec.Spec and its loaded
// spec.Globals. Construction resolves params, compiles every templated step
// field through the run's expression cache and freezes fields that depend
// only on params and globals. Each call to Run then processes one read pair:
// a fresh Context is created, steps execute in declared order through the
// state machine
//
//	PENDING -> RESOLVING_FIELDS -> DISPATCHED -> PASSED | FAILED
//
// and a failing must_pass step aborts the pair. Run statistics are updated
// exactly once per pair by the runner.
//
// Configuration-class problems (an unknown whitelist, pattern or distance
// function referenced by a step) are returned as *ConfigurationError and
// must stop the run. Every other problem is confined to the current pair.
//
// Basic usage:
//
//	state := engine.NewRunState()
//	eng, err := engine.New(s, globals, state, engine.DefaultConfig(), logger)
//	if err != nil {
//		return err
//	}
//	verdict, err := eng.Run(ctx, pair)
package engine
