package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/readbreak/pkg/expr"
	"mercator-hq/readbreak/pkg/spec"
)

// Observer receives every verdict after run statistics were updated.
// Observers are called from the goroutine that ran the pair and must be
// safe for concurrent use when Process runs with several workers.
type Observer interface {
	ObserveVerdict(ctx context.Context, v *Verdict)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, v *Verdict)

// ObserveVerdict calls f.
func (f ObserverFunc) ObserveVerdict(ctx context.Context, v *Verdict) {
	f(ctx, v)
}

// Engine runs a compiled pipeline over read pairs.
type Engine struct {
	// spec is the pipeline definition.
	spec *spec.Spec

	// steps are the compiled steps in declared order.
	steps []*compiledStep

	// params are the resolved run-level constants.
	params expr.Vars

	// globals are the loaded whitelists, patterns and static values.
	globals *spec.Globals

	// res resolves named resources for steps.
	res *resources

	// state is the run-wide cache and statistics.
	state *RunState

	// config is the engine configuration.
	config *Config

	// logger is the structured logger.
	logger *slog.Logger

	// mu guards observers.
	mu        sync.RWMutex
	observers []Observer
}

// StepInfo describes a compiled step.
type StepInfo struct {
	ID       string
	Op       string
	Read     int
	MustPass bool

	// Frozen lists fields evaluated once at construction.
	Frozen []string

	// Dynamic lists fields evaluated for every read pair.
	Dynamic []string
}

// New compiles s into an Engine. It resolves params, compiles every
// template through state's cache and freezes the fields that do not depend
// on per-read variables. A nil state, config or logger gets a default.
func New(s *spec.Spec, globals *spec.Globals, state *RunState, config *Config, logger *slog.Logger) (*Engine, error) {
	if s == nil {
		return nil, errors.New("spec cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if state == nil {
		state = NewRunState()
	}
	if state.Cache == nil {
		state.Cache = expr.NewCache()
	}
	if state.Stats == nil {
		state.Stats = NewStats()
	}
	if globals == nil {
		globals = &spec.Globals{}
	}

	params, err := expr.ResolveParams(s.Params, globals.Values, state.Cache)
	if err != nil {
		return nil, &ConfigurationError{Field: "params", Message: "cannot resolve params", Cause: err}
	}

	e := &Engine{
		spec:    s,
		params:  params,
		globals: globals,
		res:     &resources{globals: globals},
		state:   state,
		config:  config,
		logger:  logger,
	}

	// Default IDs are assigned first so that default store names
	// derived from them are known to be per-read.
	pipeline := make([]spec.Step, len(s.Pipeline))
	for i, st := range s.Pipeline {
		if st.ID == "" {
			st.ID = fmt.Sprintf("step_%d", i)
		}
		pipeline[i] = st
	}

	perRead := make(map[string]bool)
	for _, name := range spec.BuiltinVars {
		perRead[name] = true
	}
	for _, st := range pipeline {
		for _, name := range st.StoredNames() {
			perRead[name] = true
		}
	}
	static := expr.Scope{Params: params, Globals: globals.Values}

	ids := make([]string, 0, len(pipeline))
	seen := make(map[string]bool, len(pipeline))
	frozen, dynamic := 0, 0
	for _, st := range pipeline {
		if seen[st.ID] {
			return nil, &ConfigurationError{StepID: st.ID, Field: "id", Message: "duplicate step id"}
		}
		seen[st.ID] = true

		fc := &fieldCompiler{step: st, cache: state.Cache, static: static, perRead: perRead}
		cs, err := compileStep(st, fc, e.res, config)
		if err != nil {
			return nil, err
		}
		e.steps = append(e.steps, cs)
		ids = append(ids, cs.id)
		frozen += len(cs.frozen)
		dynamic += len(cs.dynamic)
	}
	state.Stats.register(ids)

	logger.Info("pipeline compiled",
		"component", "engine",
		"run_id", state.ID,
		"pipeline", s.Name,
		"steps", len(e.steps),
		"frozen_fields", frozen,
		"dynamic_fields", dynamic,
		"cached_templates", state.Cache.Len())

	return e, nil
}

// AddObserver registers o to receive verdicts.
func (e *Engine) AddObserver(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

// Run processes one read pair. A configuration-class error is returned
// with a nil verdict and leaves the statistics untouched; the caller must
// stop the run. Any other failure is reported in the verdict.
func (e *Engine) Run(ctx context.Context, pair ReadPair) (*Verdict, error) {
	var span trace.Span
	if e.config.Tracer != nil {
		ctx, span = e.config.Tracer.Start(ctx, "readbreak.pair",
			trace.WithAttributes(
				attribute.String("readbreak.run_id", e.state.ID),
				attribute.String("readbreak.read_id", pair.ID),
			))
		defer span.End()
	}

	c := newContext(pair, len(e.steps))
	scope := expr.Scope{Context: c.Vars, Params: e.params, Globals: e.globals.Values}
	v := &Verdict{ReadID: pair.ID, Passed: true, Context: c}

	for _, st := range e.steps {
		out, err := e.execute(st, c, scope)
		if err != nil {
			if span != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "configuration error")
			}
			e.logger.Error("configuration error",
				"component", "engine",
				"run_id", e.state.ID,
				"read_id", pair.ID,
				"step_id", st.id,
				"error", err)
			return nil, err
		}
		c.Outcomes = append(c.Outcomes, out)
		if out.State == StateFailed && st.mustPass {
			v.Passed = false
			v.FailedStep = st.id
			v.Message = fmt.Sprintf("%s operation failed: %s", st.op, out.Reason)
			break
		}
	}

	e.state.Stats.record(v)

	if span != nil {
		span.SetAttributes(
			attribute.Bool("readbreak.passed", v.Passed),
			attribute.Int("readbreak.steps_executed", len(c.Outcomes)),
		)
		if !v.Passed {
			span.SetAttributes(attribute.String("readbreak.failed_step", v.FailedStep))
		}
	}

	e.mu.RLock()
	observers := e.observers
	e.mu.RUnlock()
	for _, o := range observers {
		o.ObserveVerdict(ctx, v)
	}
	return v, nil
}

// Stats returns the run statistics.
func (e *Engine) Stats() *Stats {
	return e.state.Stats
}

// RunState returns the run-wide state.
func (e *Engine) RunState() *RunState {
	return e.state
}

// Spec returns the pipeline definition.
func (e *Engine) Spec() *spec.Spec {
	return e.spec
}

// Params returns a copy of the resolved params.
func (e *Engine) Params() expr.Vars {
	out := make(expr.Vars, len(e.params))
	for k, v := range e.params {
		out[k] = v
	}
	return out
}

// Steps describes the compiled steps in declared order.
func (e *Engine) Steps() []StepInfo {
	out := make([]StepInfo, 0, len(e.steps))
	for _, st := range e.steps {
		info := StepInfo{
			ID:       st.id,
			Op:       st.op,
			Read:     st.read,
			MustPass: st.mustPass,
			Frozen:   append([]string(nil), st.frozen...),
			Dynamic:  append([]string(nil), st.dynamic...),
		}
		sort.Strings(info.Frozen)
		sort.Strings(info.Dynamic)
		out = append(out, info)
	}
	return out
}
