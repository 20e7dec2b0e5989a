package expr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrParamCycle indicates params whose templates depend on each other.
var ErrParamCycle = errors.New("params reference each other cyclically")

// ResolveParams turns raw params (literals or templates) into values.
// Templates may reference other params, by bare name or as params.NAME,
// and globals. Params are resolved repeatedly until every template has a
// value; a set of templates that can never be resolved is an error wrapping
// ErrParamCycle. The cache may be nil.
func ResolveParams(raw map[string]any, globals Vars, cache *Cache) (Vars, error) {
	out := make(Vars, len(raw))
	pending := make(map[string]*Template)

	for name, v := range raw {
		if s, ok := v.(string); ok && IsTemplate(s) {
			var (
				t   *Template
				err error
			)
			if cache != nil {
				t, err = cache.Compile(s)
			} else {
				t, err = Compile(s)
			}
			if err != nil {
				return nil, fmt.Errorf("param %q: %w", name, err)
			}
			pending[name] = t
			continue
		}
		val, err := FromAny(v)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", name, err)
		}
		out[name] = val
	}

	for len(pending) > 0 {
		progressed := false
		for _, name := range sortedKeys(pending) {
			v, err := pending[name].Eval(Scope{Params: out, Globals: globals})
			if err != nil {
				var ee *EvaluationError
				if errors.As(err, &ee) && waitsOn(ee.Identifier, pending) {
					continue
				}
				return nil, fmt.Errorf("param %q: %w", name, err)
			}
			out[name] = v
			delete(pending, name)
			progressed = true
		}
		if !progressed {
			return nil, fmt.Errorf("%w: %s", ErrParamCycle, strings.Join(sortedKeys(pending), ", "))
		}
	}
	return out, nil
}

// waitsOn reports whether an unresolved identifier names a param that has
// not been resolved yet.
func waitsOn(ident string, pending map[string]*Template) bool {
	name := strings.TrimPrefix(ident, NamespaceParams+".")
	_, ok := pending[name]
	return ok
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
