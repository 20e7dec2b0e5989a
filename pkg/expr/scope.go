package expr

// Vars maps variable names to values.
type Vars map[string]Value

// Scope is the three-layer variable resolution scope used during
// evaluation. Bare identifiers resolve against Context, then Params, then
// Globals. Any layer may be nil.
type Scope struct {
	Context Vars
	Params  Vars
	Globals Vars
}

// Lookup resolves a bare identifier.
func (s Scope) Lookup(name string) (Value, bool) {
	if v, ok := s.Context[name]; ok {
		return v, true
	}
	if v, ok := s.Params[name]; ok {
		return v, true
	}
	v, ok := s.Globals[name]
	return v, ok
}

// LookupNamespace resolves NAME in the params or globals layer only.
func (s Scope) LookupNamespace(ns, name string) (Value, bool) {
	var layer Vars
	switch ns {
	case NamespaceParams:
		layer = s.Params
	case NamespaceGlobals:
		layer = s.Globals
	}
	v, ok := layer[name]
	return v, ok
}
