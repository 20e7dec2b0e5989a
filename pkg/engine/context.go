package engine

import (
	"mercator-hq/readbreak/pkg/expr"
	"mercator-hq/readbreak/pkg/spec"
)

// Context is the per-read-pair execution state. A new Context is created for
// every pair and is never shared between pairs.
type Context struct {
	// Pair is the read pair being processed. Steps must not modify it.
	Pair ReadPair

	// Vars holds variables stored by steps and the built-ins read_id,
	// len_seq1 and len_seq2.
	Vars expr.Vars

	// Outcomes is the audit trail of executed steps, in order.
	Outcomes []StepOutcome

	// Trace holds state transitions when tracing is enabled.
	Trace []TraceStep
}

func newContext(pair ReadPair, steps int) *Context {
	return &Context{
		Pair: pair,
		Vars: expr.Vars{
			spec.VarReadID:  expr.String(pair.ID),
			spec.VarLenSeq1: expr.Int(int64(len(pair.R1.Seq))),
			spec.VarLenSeq2: expr.Int(int64(len(pair.R2.Seq))),
		},
		Outcomes: make([]StepOutcome, 0, steps),
	}
}

// Get returns a context variable.
func (c *Context) Get(name string) (expr.Value, bool) {
	v, ok := c.Vars[name]
	return v, ok
}

// Int returns an integer context variable.
func (c *Context) Int(name string) (int, bool) {
	v, ok := c.Vars[name]
	if !ok {
		return 0, false
	}
	i, ok := v.AsInt()
	return int(i), ok
}

// String returns a string context variable.
func (c *Context) String(name string) (string, bool) {
	v, ok := c.Vars[name]
	if !ok {
		return "", false
	}
	return v.AsString()
}

func (c *Context) set(name string, v expr.Value) {
	c.Vars[name] = v
}

// Outcome returns the outcome of a step that executed for this pair.
func (c *Context) Outcome(stepID string) (StepOutcome, bool) {
	for _, o := range c.Outcomes {
		if o.StepID == stepID {
			return o, true
		}
	}
	return StepOutcome{}, false
}

// Export returns the variables as plain Go values, suitable for JSON.
func (c *Context) Export() map[string]any {
	out := make(map[string]any, len(c.Vars))
	for k, v := range c.Vars {
		out[k] = v.Interface()
	}
	return out
}
