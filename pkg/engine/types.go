package engine

import (
	"time"

	"mercator-hq/readbreak/pkg/expr"
)

// Read is one sequencing read.
type Read struct {
	ID   string
	Seq  string
	Qual string
}

// ReadPair is read 1 and read 2 sharing one logical identifier.
type ReadPair struct {
	ID string
	R1 Read
	R2 Read
}

// Read returns read 1 or read 2.
func (p ReadPair) Read(n int) (Read, bool) {
	switch n {
	case 1:
		return p.R1, true
	case 2:
		return p.R2, true
	}
	return Read{}, false
}

// StepState is the execution state of one step for one read pair.
type StepState int

const (
	StatePending StepState = iota
	StateResolvingFields
	StateDispatched
	StatePassed
	StateFailed
)

// String returns the state name.
func (s StepState) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateResolvingFields:
		return "RESOLVING_FIELDS"
	case StateDispatched:
		return "DISPATCHED"
	case StatePassed:
		return "PASSED"
	case StateFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// StepOutcome records how one step finished for one read pair.
type StepOutcome struct {
	// StepID and Op identify the step.
	StepID string
	Op     string

	// State is the terminal state, StatePassed or StateFailed.
	State StepState

	// MustPass is copied from the step definition.
	MustPass bool

	// Reason describes a failure. Empty when the step passed.
	Reason string

	// Err is the failure cause when the step failed on an error rather
	// than a false predicate. errors.As works with *StepError,
	// *OutOfBoundsError, *match.LengthMismatchError and
	// *expr.EvaluationError.
	Err error

	// Duration is the wall time spent in the step.
	Duration time.Duration
}

// Passed reports whether the step passed.
func (o StepOutcome) Passed() bool {
	return o.State == StatePassed
}

// TraceStep is one state transition, recorded when tracing is enabled.
type TraceStep struct {
	StepID string
	From   StepState
	To     StepState
	Detail string
}

// Verdict is the result of running the pipeline on one read pair.
type Verdict struct {
	// ReadID is the pair identifier.
	ReadID string

	// Passed is true when every executed must_pass step passed.
	Passed bool

	// FailedStep is the id of the aborting step when Passed is false.
	FailedStep string

	// Message describes the failure.
	Message string

	// Context holds the variables and step outcomes for the pair.
	Context *Context
}

// Vars returns the context variables, or nil.
func (v *Verdict) Vars() expr.Vars {
	if v.Context == nil {
		return nil
	}
	return v.Context.Vars
}
