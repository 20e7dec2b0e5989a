package engine

import (
	"errors"
	"time"

	"mercator-hq/readbreak/pkg/expr"
)

// execute drives one step through its state machine for one read pair.
// Only configuration-class errors are returned; every other failure ends
// in StateFailed.
func (e *Engine) execute(st *compiledStep, c *Context, scope expr.Scope) (StepOutcome, error) {
	start := time.Now()
	out := StepOutcome{StepID: st.id, Op: st.op, MustPass: st.mustPass, State: StatePending}

	e.transition(c, &out, StateResolvingFields, "")
	r := &resolver{step: st, res: e.res, scope: scope}
	dispatch := st.impl.resolve(r)
	if r.err != nil {
		if IsConfigurationError(r.err) {
			return out, r.err
		}
		e.fail(c, &out, r.err, start)
		return out, nil
	}

	e.transition(c, &out, StateDispatched, "")
	var seq string
	if st.read != 0 {
		rd, _ := c.Pair.Read(st.read)
		seq = rd.Seq
	}
	passed, reason := dispatch(c, seq)
	if !passed {
		if IsConfigurationError(reason) {
			return out, reason
		}
		if !isSentinel(reason) {
			reason = &StepError{StepID: st.id, Op: st.op, Cause: reason}
		}
		e.fail(c, &out, reason, start)
		return out, nil
	}

	e.transition(c, &out, StatePassed, "")
	out.Duration = time.Since(start)
	return out, nil
}

func (e *Engine) transition(c *Context, out *StepOutcome, to StepState, detail string) {
	if e.config.EnableTrace {
		c.Trace = append(c.Trace, TraceStep{StepID: out.StepID, From: out.State, To: to, Detail: detail})
	}
	out.State = to
}

func (e *Engine) fail(c *Context, out *StepOutcome, err error, start time.Time) {
	if err == nil {
		err = ErrPredicateFalse
	}
	out.Err = err
	out.Reason = err.Error()
	e.transition(c, out, StateFailed, out.Reason)
	out.Duration = time.Since(start)

	e.logger.Debug("step failed",
		"component", "engine",
		"read_id", c.Pair.ID,
		"step_id", out.StepID,
		"op", out.Op,
		"must_pass", out.MustPass,
		"reason", out.Reason)
}

func isSentinel(err error) bool {
	return err == nil ||
		errors.Is(err, ErrMatchNotFound) ||
		errors.Is(err, ErrWhitelistMiss) ||
		errors.Is(err, ErrPredicateFalse)
}
