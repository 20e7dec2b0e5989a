package engine

import (
	"mercator-hq/readbreak/pkg/match"
	"mercator-hq/readbreak/pkg/spec"
)

// resources resolves the named whitelists, patterns and distance functions
// that steps refer to.
type resources struct {
	globals *spec.Globals
}

func (rs *resources) distance(stepID, fieldName, name string) (match.DistanceFunc, error) {
	fn, err := match.Lookup(name)
	if err != nil {
		return nil, &ConfigurationError{
			StepID:     stepID,
			Field:      fieldName,
			Message:    "unknown distance function '" + name + "'",
			Suggestion: spec.Suggest(name, match.Names()),
		}
	}
	return fn, nil
}

func (rs *resources) whitelist(stepID, fieldName, name string) (match.Whitelist, error) {
	wl, ok := rs.globals.Whitelists[name]
	if !ok {
		return nil, &ConfigurationError{
			StepID:     stepID,
			Field:      fieldName,
			Message:    "unknown whitelist '" + name + "'",
			Suggestion: spec.Suggest(name, rs.globals.WhitelistNames()),
		}
	}
	return wl, nil
}

func (rs *resources) pattern(stepID, fieldName, name string) (*match.Pattern, error) {
	p, ok := rs.globals.Patterns[name]
	if !ok {
		return nil, &ConfigurationError{
			StepID:     stepID,
			Field:      fieldName,
			Message:    "unknown pattern '" + name + "'",
			Suggestion: spec.Suggest(name, rs.globals.PatternNames()),
		}
	}
	return p, nil
}

func (rs *resources) distanceName(stepID, fieldName, name string) error {
	_, err := rs.distance(stepID, fieldName, name)
	return err
}

func (rs *resources) whitelistName(stepID, fieldName, name string) error {
	_, err := rs.whitelist(stepID, fieldName, name)
	return err
}

func (rs *resources) patternName(stepID, fieldName, name string) error {
	_, err := rs.pattern(stepID, fieldName, name)
	return err
}

// checkFrozen validates a frozen name field once at construction so that
// typos surface before any read is processed.
func (rs *resources) checkFrozen(stepID string, f field, check func(stepID, fieldName, name string) error) error {
	if !f.set || !f.frozen {
		return nil
	}
	name, ok := f.value.AsString()
	if !ok {
		return &ConfigurationError{StepID: stepID, Field: f.name, Message: "expected a name", Cause: &TypeError{Want: "string", Got: describe(f.value)}}
	}
	return check(stepID, f.name, name)
}

func (r *resolver) distance(f field) match.DistanceFunc {
	name := r.str(f, match.DefaultDistance)
	if r.err != nil {
		return nil
	}
	fn, err := r.res.distance(r.step.id, f.name, name)
	if err != nil {
		r.err = err
	}
	return fn
}

func (r *resolver) whitelist(f field) match.Whitelist {
	name := r.str(f, "")
	if r.err != nil {
		return nil
	}
	wl, err := r.res.whitelist(r.step.id, f.name, name)
	if err != nil {
		r.err = err
	}
	return wl
}

func (r *resolver) pattern(f field) *match.Pattern {
	name := r.str(f, "")
	if r.err != nil {
		return nil
	}
	p, err := r.res.pattern(r.step.id, f.name, name)
	if err != nil {
		r.err = err
	}
	return p
}
