package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrMatchNotFound is the failure reason of a match or regex_search
	// step that found nothing.
	ErrMatchNotFound = errors.New("no match found")

	// ErrWhitelistMiss is the failure reason of an extract step whose
	// fragment is not whitelisted and whose miss policy is fail.
	ErrWhitelistMiss = errors.New("fragment not in whitelist")

	// ErrPredicateFalse is the failure reason of a test, compute or
	// hamming_test step whose predicate evaluated to false.
	ErrPredicateFalse = errors.New("predicate is false")
)

// ConfigurationError reports a problem with the pipeline definition that
// was detected while building or running the engine. It is fatal for the
// whole run.
type ConfigurationError struct {
	StepID     string
	Field      string
	Message    string
	Suggestion string
	Cause      error
}

// Error returns the error message.
func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.StepID != "" {
		msg = fmt.Sprintf("%s in step '%s'", msg, e.StepID)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s field '%s'", msg, e.Field)
	}
	msg = fmt.Sprintf("%s: %s", msg, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Suggestion != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Suggestion)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// IsConfigurationError reports whether err is, or wraps, a
// *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// StepError is a per-read failure of one step. It never stops the run.
type StepError struct {
	StepID string
	Op     string
	Field  string
	Cause  error
}

// Error returns the error message.
func (e *StepError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("step '%s' (%s) field '%s': %v", e.StepID, e.Op, e.Field, e.Cause)
	}
	return fmt.Sprintf("step '%s' (%s): %v", e.StepID, e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StepError) Unwrap() error {
	return e.Cause
}

// OutOfBoundsError reports a slice that does not fit inside a read.
type OutOfBoundsError struct {
	Start   int
	Length  int
	ReadLen int
}

// Error returns the error message.
func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("slice [%d:%d] out of bounds for read of length %d",
		e.Start, e.Start+e.Length, e.ReadLen)
}

// TypeError reports a field that evaluated to a value of the wrong kind.
type TypeError struct {
	Want string
	Got  string
}

// Error returns the error message.
func (e *TypeError) Error() string {
	return fmt.Sprintf("expected %s, got %s", e.Want, e.Got)
}
