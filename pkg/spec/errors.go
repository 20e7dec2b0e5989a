package spec

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// ErrorType categorizes pipeline definition errors.
type ErrorType string

const (
	ErrorTypeSyntax     ErrorType = "syntax"     // YAML or template syntax error
	ErrorTypeStructural ErrorType = "structural" // Missing, unknown or mistyped fields
	ErrorTypeSemantic   ErrorType = "semantic"   // Unresolvable references
	ErrorTypeIO         ErrorType = "io"         // File I/O error
)

// Location is a position in a pipeline file.
type Location struct {
	File   string
	Line   int
	Column int
}

// String returns "file:line:column".
func (l Location) String() string {
	if l.File == "" {
		if l.Line > 0 {
			return fmt.Sprintf("line %d", l.Line)
		}
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// IsValid reports whether the location has line information.
func (l Location) IsValid() bool {
	return l.Line > 0
}

// Error is a pipeline definition error with location and an optional
// suggested fix.
type Error struct {
	Type       ErrorType
	Message    string
	StepID     string
	Field      string
	Location   Location
	Context    string
	Suggestion string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] ", e.Type)
	if e.StepID != "" {
		fmt.Fprintf(&sb, "step %q: ", e.StepID)
	}
	if e.Field != "" {
		fmt.Fprintf(&sb, "field %q: ", e.Field)
	}
	sb.WriteString(e.Message)
	sb.WriteString("\n")
	if e.Location.IsValid() {
		fmt.Fprintf(&sb, "  --> %s\n", e.Location)
	}
	if e.Context != "" {
		sb.WriteString("  |\n")
		sb.WriteString(e.Context)
		sb.WriteString("  |\n")
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&sb, "  = suggestion: %s\n", e.Suggestion)
	}
	return sb.String()
}

// ErrorList accumulates errors so that all problems in a file are reported
// at once.
type ErrorList struct {
	Errors []*Error
}

// Add appends an error to the list.
func (el *ErrorList) Add(err *Error) {
	el.Errors = append(el.Errors, err)
}

// HasErrors reports whether the list is non-empty.
func (el *ErrorList) HasErrors() bool {
	return len(el.Errors) > 0
}

// Error implements the error interface.
func (el *ErrorList) Error() string {
	if !el.HasErrors() {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d error(s):\n\n", len(el.Errors))
	for i, err := range el.Errors {
		fmt.Fprintf(&sb, "Error %d:\n%s\n", i+1, err.Error())
	}
	return sb.String()
}

// ToError returns nil for an empty list and the list itself otherwise.
func (el *ErrorList) ToError() error {
	if !el.HasErrors() {
		return nil
	}
	return el
}

// ByType returns the errors of the given type.
func (el *ErrorList) ByType(t ErrorType) []*Error {
	var out []*Error
	for _, err := range el.Errors {
		if err.Type == t {
			out = append(out, err)
		}
	}
	return out
}

// attachContext fills in source excerpts for every located error.
func (el *ErrorList) attachContext(src []byte, lines int) {
	if len(src) == 0 {
		return
	}
	var all []string
	sc := bufio.NewScanner(bytes.NewReader(src))
	for sc.Scan() {
		all = append(all, sc.Text())
	}
	for _, e := range el.Errors {
		if e.Location.IsValid() && e.Context == "" {
			e.Context = excerpt(all, e.Location, lines)
		}
	}
}

func excerpt(all []string, loc Location, n int) string {
	at := loc.Line - 1
	if at < 0 || at >= len(all) {
		return ""
	}
	lo, hi := max(at-n, 0), min(at+n, len(all)-1)
	width := len(fmt.Sprint(hi + 1))
	var sb strings.Builder
	for i := lo; i <= hi; i++ {
		marker := "  "
		if i == at {
			marker = "->"
		}
		fmt.Fprintf(&sb, "%s %*d | %s\n", marker, width, i+1, all[i])
	}
	return sb.String()
}
