package expr

import "fmt"

// SyntaxError reports a template that fails to compile.
type SyntaxError struct {
	Source  string
	Pos     int
	Message string
}

// Error returns the error message.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d in %q: %s", e.Pos, e.Source, e.Message)
}

// EvaluationError reports a template that compiled but could not be
// evaluated against a scope. Identifier is set when the failure is an
// unresolved name.
type EvaluationError struct {
	Source     string
	Identifier string
	Message    string
	Cause      error
}

// Error returns the error message.
func (e *EvaluationError) Error() string {
	msg := e.Message
	if e.Identifier != "" {
		msg = fmt.Sprintf("%s: %q", e.Message, e.Identifier)
	}
	if e.Cause != nil {
		return fmt.Sprintf("evaluating %q: %s: %v", e.Source, msg, e.Cause)
	}
	return fmt.Sprintf("evaluating %q: %s", e.Source, msg)
}

// Unwrap returns the underlying cause.
func (e *EvaluationError) Unwrap() error {
	return e.Cause
}

// evalError is raised inside the evaluator and wrapped into an
// EvaluationError carrying the template source at the Template boundary.
type evalError struct {
	ident string
	msg   string
}

func (e *evalError) Error() string {
	if e.ident != "" {
		return fmt.Sprintf("%s: %q", e.msg, e.ident)
	}
	return e.msg
}

func errorf(format string, args ...any) error {
	return &evalError{msg: fmt.Sprintf(format, args...)}
}

func undefined(name string) error {
	return &evalError{ident: name, msg: "undefined identifier"}
}
