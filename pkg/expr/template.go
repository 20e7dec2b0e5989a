package expr

import (
	"errors"
	"sort"
	"strings"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// IsTemplate reports whether s contains an expression segment.
func IsTemplate(s string) bool {
	return strings.Contains(s, openDelim)
}

type part struct {
	text string
	node Node
}

// Template is a compiled template. It is immutable and safe for
// concurrent use.
type Template struct {
	source string
	parts  []part
	single Node
	refs   []Ref
}

// Compile parses src into a Template. Most callers should go through a
// Cache rather than calling Compile directly.
func Compile(src string) (*Template, error) {
	t := &Template{source: src}
	rest, offset := src, 0
	for {
		i := strings.Index(rest, openDelim)
		if i < 0 {
			if rest != "" {
				t.parts = append(t.parts, part{text: rest})
			}
			break
		}
		if i > 0 {
			t.parts = append(t.parts, part{text: rest[:i]})
		}
		body := offset + i + len(openDelim)
		end := findClose(src, body)
		if end < 0 {
			return nil, &SyntaxError{Source: src, Pos: offset + i, Message: "unclosed {{"}
		}
		n, err := parseExpr(src[body:end], body)
		if err != nil {
			var se *SyntaxError
			if errors.As(err, &se) {
				se.Source = src
			}
			return nil, err
		}
		t.parts = append(t.parts, part{node: n})
		offset = end + len(closeDelim)
		rest = src[offset:]
	}
	if j := strings.Index(src, "{%"); j >= 0 {
		return nil, &SyntaxError{Source: src, Pos: j, Message: "statement blocks are not supported"}
	}

	var exprs []Node
	onlySpace := true
	for _, p := range t.parts {
		if p.node != nil {
			exprs = append(exprs, p.node)
		} else if strings.TrimSpace(p.text) != "" {
			onlySpace = false
		}
	}
	if len(exprs) == 1 && onlySpace {
		t.single = exprs[0]
	}

	seen := make(map[Ref]struct{})
	for _, n := range exprs {
		collectRefs(n, seen)
	}
	for r := range seen {
		t.refs = append(t.refs, r)
	}
	sort.Slice(t.refs, func(i, j int) bool {
		if t.refs[i].Namespace != t.refs[j].Namespace {
			return t.refs[i].Namespace < t.refs[j].Namespace
		}
		return t.refs[i].Name < t.refs[j].Name
	})
	return t, nil
}

// findClose returns the index of the }} closing an expression starting at
// from, skipping delimiters inside string literals.
func findClose(src string, from int) int {
	var quote byte
	for i := from; i < len(src); i++ {
		c := src[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '}' && i+1 < len(src) && src[i+1] == '}':
			return i
		}
	}
	return -1
}

// Source returns the literal template text.
func (t *Template) Source() string { return t.source }

// Refs returns the identifiers referenced by the template, sorted.
func (t *Template) Refs() []Ref { return t.refs }

// Eval evaluates the template against scope. A template made of exactly
// one expression yields that expression's typed value. Any other template
// is rendered to text and coerced with Coerce; text without expressions is
// returned verbatim.
func (t *Template) Eval(scope Scope) (Value, error) {
	if t.single != nil {
		v, err := Eval(t.single, scope)
		if err != nil {
			return Value{}, t.wrap(err)
		}
		return v, nil
	}

	var sb strings.Builder
	hasExpr := false
	for _, p := range t.parts {
		if p.node == nil {
			sb.WriteString(p.text)
			continue
		}
		hasExpr = true
		v, err := Eval(p.node, scope)
		if err != nil {
			return Value{}, t.wrap(err)
		}
		sb.WriteString(v.String())
	}
	if !hasExpr {
		return String(sb.String()), nil
	}
	return Coerce(sb.String()), nil
}

func (t *Template) wrap(err error) error {
	var ee *evalError
	if errors.As(err, &ee) {
		return &EvaluationError{Source: t.source, Identifier: ee.ident, Message: ee.msg}
	}
	return &EvaluationError{Source: t.source, Message: "evaluation failed", Cause: err}
}
