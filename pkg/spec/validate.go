package spec

import (
	"errors"
	"fmt"
	"sort"

	"mercator-hq/readbreak/pkg/expr"
	"mercator-hq/readbreak/pkg/match"
)

// Validate checks a parsed spec for semantic problems: duplicate step ids,
// invalid read selectors, malformed templates, references to unknown
// params, globals, whitelists, patterns or distance functions, and
// variables used before any earlier step stores them. All problems are
// returned together as an *ErrorList.
func Validate(s *Spec) error {
	v := &validator{spec: s, errs: &ErrorList{}}
	v.run()
	return v.errs.ToError()
}

type validator struct {
	spec *Spec
	errs *ErrorList
}

func (v *validator) add(st Step, field string, format string, args ...any) *Error {
	e := &Error{
		Type:     ErrorTypeSemantic,
		Message:  fmt.Sprintf(format, args...),
		StepID:   st.ID,
		Field:    field,
		Location: st.FieldLocation(field),
	}
	v.errs.Add(e)
	return e
}

func (v *validator) run() {
	s := v.spec

	for name, decl := range s.Globals.Patterns {
		if t, ok := decl.Type.(string); ok && !expr.IsTemplate(t) &&
			t != match.PatternFull && t != match.PatternFullOrTail {
			v.errs.Add(&Error{
				Type:       ErrorTypeSemantic,
				Message:    fmt.Sprintf("pattern %q: unknown type %q", name, t),
				Location:   Location{File: s.Source, Line: decl.Line},
				Suggestion: Suggest(t, []string{match.PatternFull, match.PatternFullOrTail}),
			})
		}
	}

	storedBy := make(map[string]string) // variable -> first step storing it
	for _, st := range s.Pipeline {
		for _, name := range st.StoredNames() {
			if _, ok := storedBy[name]; !ok {
				storedBy[name] = st.ID
			}
		}
	}

	seen := make(map[string]int)
	available := make(map[string]bool)
	for _, b := range BuiltinVars {
		available[b] = true
	}

	for i, st := range s.Pipeline {
		if prev, dup := seen[st.ID]; dup {
			v.add(st, "", "duplicate step id (first used by step %d)", prev)
		} else {
			seen[st.ID] = i
		}

		schema, ok := Ops[st.Op]
		if !ok {
			continue
		}
		switch {
		case schema.NeedsRead && st.Read != 1 && st.Read != 2:
			e := v.add(st, "", "operation %q requires read: 1 or read: 2", st.Op)
			e.Suggestion = "Add 'read: 1' or 'read: 2' to the step"
		case !schema.NeedsRead && st.Read != 0 && st.Read != 1 && st.Read != 2:
			v.add(st, "", "read must be 1 or 2, got %d", st.Read)
		}

		v.checkStores(st, schema)
		v.checkLiterals(st, schema)
		v.checkTemplates(st, available, storedBy)

		for _, name := range st.StoredNames() {
			available[name] = true
		}
	}
}

func (v *validator) checkStores(st Step, schema OpSchema) {
	for _, f := range schema.Stores {
		raw, ok := st.Fields[f]
		if !ok {
			continue
		}
		name, isStr := raw.(string)
		switch {
		case !isStr || name == "":
			v.add(st, f, "must name a variable")
		case expr.IsTemplate(name):
			v.add(st, f, "variable names cannot be templates")
		case name == expr.NamespaceParams || name == expr.NamespaceGlobals:
			v.add(st, f, "%q is reserved", name)
		}
	}
}

func (v *validator) checkLiterals(st Step, schema OpSchema) {
	for _, f := range schema.Integer {
		raw, ok := st.Fields[f]
		if !ok {
			continue
		}
		switch t := raw.(type) {
		case int:
			if t < 0 {
				v.add(st, f, "must not be negative, got %d", t)
			}
		case string:
			if !expr.IsTemplate(t) {
				v.add(st, f, "must be an integer or a template, got %q", t)
			}
		default:
			v.add(st, f, "must be an integer, got %v", raw)
		}
	}

	literal := func(f string) (string, bool) {
		s, ok := st.FieldString(f)
		return s, ok && !expr.IsTemplate(s)
	}
	if name, ok := literal(FieldHammingFn); ok {
		if _, err := match.Lookup(name); err != nil {
			e := v.add(st, FieldHammingFn, "unknown distance function %q", name)
			e.Suggestion = Suggest(name, match.Names())
		}
	}
	if name, ok := literal(FieldWhitelist); ok {
		if _, found := v.spec.Globals.Whitelists[name]; !found {
			e := v.add(st, FieldWhitelist, "unknown whitelist %q", name)
			e.Suggestion = Suggest(name, sortedNames(v.spec.Globals.Whitelists))
		}
	}
	if name, ok := literal(FieldPattern); ok {
		if _, found := v.spec.Globals.Patterns[name]; !found {
			e := v.add(st, FieldPattern, "unknown pattern %q", name)
			e.Suggestion = Suggest(name, sortedNames(v.spec.Globals.Patterns))
		}
	}
	if p, ok := literal(FieldOnWhitelistMiss); ok && p != WhitelistMissFail && p != WhitelistMissRecord {
		e := v.add(st, FieldOnWhitelistMiss, "must be %q or %q, got %q", WhitelistMissFail, WhitelistMissRecord, p)
		e.Suggestion = Suggest(p, []string{WhitelistMissFail, WhitelistMissRecord})
	}
}

func (v *validator) checkTemplates(st Step, available map[string]bool, storedBy map[string]string) {
	fields := make([]string, 0, len(st.Fields))
	for f := range st.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, f := range fields {
		src, ok := st.Fields[f].(string)
		if !ok || !expr.IsTemplate(src) {
			continue
		}
		tmpl, err := expr.Compile(src)
		if err != nil {
			var se *expr.SyntaxError
			msg := err.Error()
			if errors.As(err, &se) {
				msg = se.Message
			}
			v.errs.Add(&Error{
				Type:     ErrorTypeSyntax,
				Message:  fmt.Sprintf("invalid template: %s", msg),
				StepID:   st.ID,
				Field:    f,
				Location: st.FieldLocation(f),
			})
			continue
		}
		for _, ref := range tmpl.Refs() {
			v.checkRef(st, f, ref, available, storedBy)
		}
	}
}

func (v *validator) checkRef(st Step, field string, ref expr.Ref, available map[string]bool, storedBy map[string]string) {
	s := v.spec
	switch ref.Namespace {
	case expr.NamespaceParams:
		if _, ok := s.Params[ref.Name]; !ok {
			e := v.add(st, field, "undefined param %q", ref.Name)
			e.Suggestion = Suggest(ref.Name, sortedNames(s.Params))
		}
		return
	case expr.NamespaceGlobals:
		if _, ok := s.Globals.Values[ref.Name]; !ok {
			e := v.add(st, field, "undefined global %q", ref.Name)
			e.Suggestion = Suggest(ref.Name, sortedNames(s.Globals.Values))
		}
		return
	}

	if available[ref.Name] {
		return
	}
	if _, ok := s.Params[ref.Name]; ok {
		return
	}
	if _, ok := s.Globals.Values[ref.Name]; ok {
		return
	}
	if by, ok := storedBy[ref.Name]; ok {
		e := v.add(st, field, "variable %q is used before step %q stores it", ref.Name, by)
		e.Suggestion = "Steps run in declared order; move this step after the one that stores the variable"
		return
	}
	known := make([]string, 0, len(available))
	for name := range available {
		known = append(known, name)
	}
	known = append(known, sortedNames(s.Params)...)
	sort.Strings(known)
	e := v.add(st, field, "undefined variable %q", ref.Name)
	e.Suggestion = Suggest(ref.Name, known)
}

func sortedNames[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
