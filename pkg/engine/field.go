package engine

import (
	"fmt"

	"mercator-hq/readbreak/pkg/expr"
	"mercator-hq/readbreak/pkg/spec"
)

// field is a compiled step field. A frozen field holds its final value; a
// dynamic field holds a template evaluated once per read pair.
type field struct {
	name   string
	set    bool
	frozen bool
	value  expr.Value
	tmpl   *expr.Template
}

func (f field) eval(scope expr.Scope) (expr.Value, error) {
	if f.frozen {
		return f.value, nil
	}
	return f.tmpl.Eval(scope)
}

// fieldCompiler compiles the fields of one step.
type fieldCompiler struct {
	step  spec.Step
	cache *expr.Cache

	// static is the params and globals scope used for freezing.
	static expr.Scope

	// perRead holds names that only exist in a per-read context: the
	// built-in variables and every name any step stores.
	perRead map[string]bool
}

func (c *fieldCompiler) compile(name string) (field, error) {
	raw, ok := c.step.Field(name)
	if !ok {
		return field{name: name}, nil
	}
	f := field{name: name, set: true}

	if s, isStr := raw.(string); isStr && expr.IsTemplate(s) {
		t, err := c.cache.Compile(s)
		if err != nil {
			return f, &ConfigurationError{StepID: c.step.ID, Field: name, Message: "invalid template", Cause: err}
		}
		if !c.freezable(t) {
			f.tmpl = t
			return f, nil
		}
		v, err := t.Eval(c.static)
		if err != nil {
			return f, &ConfigurationError{StepID: c.step.ID, Field: name, Message: "cannot evaluate", Cause: err}
		}
		f.frozen, f.value = true, v
		return f, nil
	}

	v, err := expr.FromAny(raw)
	if err != nil {
		return f, &ConfigurationError{StepID: c.step.ID, Field: name, Message: "unsupported value", Cause: err}
	}
	f.frozen, f.value = true, v
	return f, nil
}

// freezable reports whether every identifier in t resolves without a
// per-read context.
func (c *fieldCompiler) freezable(t *expr.Template) bool {
	for _, ref := range t.Refs() {
		if ref.Namespace != "" {
			continue
		}
		if c.perRead[ref.Name] {
			return false
		}
		if _, ok := c.static.Lookup(ref.Name); !ok {
			return false
		}
	}
	return true
}

// storeName returns the literal variable name in a store field, or def.
func (c *fieldCompiler) storeName(name, def string) string {
	if v, ok := c.step.FieldString(name); ok && v != "" {
		return v
	}
	return def
}

// resolver evaluates fields for one step and one read pair. The first
// failure is kept and later calls become no-ops.
type resolver struct {
	step  *compiledStep
	res   *resources
	scope expr.Scope
	err   error
}

func (r *resolver) fail(f field, cause error) {
	if r.err == nil {
		r.err = &StepError{StepID: r.step.id, Op: r.step.op, Field: f.name, Cause: cause}
	}
}

func (r *resolver) value(f field) expr.Value {
	if r.err != nil || !f.set {
		return expr.Value{}
	}
	v, err := f.eval(r.scope)
	if err != nil {
		r.fail(f, err)
		return expr.Value{}
	}
	return v
}

func (r *resolver) int(f field, def int) int {
	if !f.set {
		return def
	}
	v := r.value(f)
	if r.err != nil {
		return def
	}
	i, ok := v.AsInt()
	if !ok {
		r.fail(f, &TypeError{Want: "integer", Got: describe(v)})
		return def
	}
	return int(i)
}

func (r *resolver) str(f field, def string) string {
	if !f.set {
		return def
	}
	v := r.value(f)
	if r.err != nil {
		return def
	}
	s, ok := v.AsString()
	if !ok {
		r.fail(f, &TypeError{Want: "string", Got: describe(v)})
		return def
	}
	return s
}

func (r *resolver) bool(f field) bool {
	v := r.value(f)
	if r.err != nil {
		return false
	}
	b, ok := v.AsBool()
	if !ok {
		r.fail(f, &TypeError{Want: "boolean", Got: describe(v)})
		return false
	}
	return b
}

func describe(v expr.Value) string {
	return fmt.Sprintf("%s %#v", v.Kind(), v)
}
