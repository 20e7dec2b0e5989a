package engine

import (
	"mercator-hq/readbreak/pkg/expr"
	"mercator-hq/readbreak/pkg/match"
	"mercator-hq/readbreak/pkg/spec"
)

// operation is implemented by the six step operations. The set is closed:
// compileStep is the only constructor.
type operation interface {
	// resolve evaluates the step fields for one read pair. It returns nil
	// when resolution failed; the failure is left in r.err.
	resolve(r *resolver) dispatchFunc
}

// dispatchFunc applies a resolved operation to the target read sequence.
// A false result carries the failure reason.
type dispatchFunc func(c *Context, seq string) (bool, error)

// compiledStep is a pipeline step ready for execution.
type compiledStep struct {
	id       string
	op       string
	read     int
	mustPass bool
	impl     operation

	// frozen and dynamic list field names by evaluation mode.
	frozen  []string
	dynamic []string
}

type matchOp struct {
	ref, hammingFn, maxWobble, maxMismatch, baseOffset field
	storePos                                          string
}

func (o *matchOp) resolve(r *resolver) dispatchFunc {
	ref := r.str(o.ref, "")
	fn := r.distance(o.hammingFn)
	w := match.Window{
		Ref:         ref,
		BaseOffset:  r.int(o.baseOffset, 0),
		MaxWobble:   r.int(o.maxWobble, 0),
		MaxMismatch: r.int(o.maxMismatch, 0),
	}
	if r.err != nil {
		return nil
	}
	return func(c *Context, seq string) (bool, error) {
		off, found, err := match.Wobble(seq, w, fn)
		if err != nil {
			return false, err
		}
		if !found {
			c.set(o.storePos, expr.Int(-1))
			return false, ErrMatchNotFound
		}
		c.set(o.storePos, expr.Int(int64(off)))
		return true, nil
	}
}

type extractOp struct {
	start, length, whitelist field
	storeSeq, storeMatch     string
	missPolicy               string
}

func (o *extractOp) resolve(r *resolver) dispatchFunc {
	start := r.int(o.start, 0)
	length := r.int(o.length, 0)
	var wl match.Whitelist
	if o.whitelist.set {
		wl = r.whitelist(o.whitelist)
	}
	if r.err != nil {
		return nil
	}
	return func(c *Context, seq string) (bool, error) {
		frag, err := slice(seq, start, length)
		if err != nil {
			return false, err
		}
		c.set(o.storeSeq, expr.String(frag))
		if !o.whitelist.set {
			return true, nil
		}
		ok := wl.Contains(frag)
		c.set(o.storeMatch, expr.Bool(ok))
		if !ok && o.missPolicy == spec.WhitelistMissFail {
			return false, ErrWhitelistMiss
		}
		return true, nil
	}
}

type hammingTestOp struct {
	ref, hammingFn, start, length, maxMismatch field
	storeResult                                string
}

func (o *hammingTestOp) resolve(r *resolver) dispatchFunc {
	ref := r.str(o.ref, "")
	fn := r.distance(o.hammingFn)
	start := r.int(o.start, 0)
	length := r.int(o.length, 0)
	maxMismatch := r.int(o.maxMismatch, 0)
	if r.err != nil {
		return nil
	}
	return func(c *Context, seq string) (bool, error) {
		frag, err := slice(seq, start, length)
		if err != nil {
			return false, err
		}
		d, err := fn(ref, frag)
		if err != nil {
			return false, err
		}
		ok := d <= maxMismatch
		c.set(o.storeResult, expr.Bool(ok))
		if !ok {
			return false, ErrPredicateFalse
		}
		return true, nil
	}
}

type regexSearchOp struct {
	pattern, def         field
	storePos, storeMatch string
}

func (o *regexSearchOp) resolve(r *resolver) dispatchFunc {
	p := r.pattern(o.pattern)
	def := expr.Int(-1)
	if o.def.set {
		def = r.value(o.def)
	}
	if r.err != nil {
		return nil
	}
	return func(c *Context, seq string) (bool, error) {
		pos, text, ok := p.Find(seq)
		if !ok {
			c.set(o.storePos, def)
			if o.storeMatch != "" {
				c.set(o.storeMatch, expr.String(""))
			}
			return false, ErrMatchNotFound
		}
		c.set(o.storePos, expr.Int(int64(pos)))
		if o.storeMatch != "" {
			c.set(o.storeMatch, expr.String(text))
		}
		return true, nil
	}
}

type testOp struct {
	expression  field
	storeResult string
}

func (o *testOp) resolve(r *resolver) dispatchFunc {
	v := r.value(o.expression)
	if r.err != nil {
		return nil
	}
	return func(c *Context, _ string) (bool, error) {
		b, ok := v.AsBool()
		if !ok {
			return false, &TypeError{Want: "boolean", Got: describe(v)}
		}
		c.set(o.storeResult, expr.Bool(b))
		if !b {
			return false, ErrPredicateFalse
		}
		return true, nil
	}
}

type computeOp struct {
	expression, passIf field
	storeAs            string
}

func (o *computeOp) resolve(r *resolver) dispatchFunc {
	v := r.value(o.expression)
	if r.err != nil {
		return nil
	}
	// pass_if sees the value just stored, so it is evaluated at dispatch.
	scope := r.scope
	return func(c *Context, _ string) (bool, error) {
		c.set(o.storeAs, v)
		if !o.passIf.set {
			return true, nil
		}
		pv, err := o.passIf.eval(scope)
		if err != nil {
			return false, err
		}
		b, ok := pv.AsBool()
		if !ok {
			return false, &TypeError{Want: "boolean", Got: describe(pv)}
		}
		if !b {
			return false, ErrPredicateFalse
		}
		return true, nil
	}
}

func slice(seq string, start, length int) (string, error) {
	if start < 0 || length < 0 || start+length > len(seq) {
		return "", &OutOfBoundsError{Start: start, Length: length, ReadLen: len(seq)}
	}
	return seq[start : start+length], nil
}

// compileStep builds the operation for st, freezing fields where possible.
func compileStep(st spec.Step, fc *fieldCompiler, res *resources, cfg *Config) (*compiledStep, error) {
	schema, ok := spec.Ops[st.Op]
	if !ok {
		return nil, &ConfigurationError{
			StepID:     st.ID,
			Field:      "op",
			Message:    "unknown operation '" + st.Op + "'",
			Suggestion: spec.Suggest(st.Op, spec.OpNames()),
		}
	}
	if schema.NeedsRead && st.Read != 1 && st.Read != 2 {
		return nil, &ConfigurationError{StepID: st.ID, Field: "read", Message: "read must be 1 or 2"}
	}

	for _, name := range schema.Required {
		if _, ok := st.Field(name); !ok {
			return nil, &ConfigurationError{StepID: st.ID, Field: name, Message: "required field is missing"}
		}
	}

	cs := &compiledStep{id: st.ID, op: st.Op, read: st.Read, mustPass: st.MustPass}
	var err error
	compile := func(name string) field {
		f, ferr := fc.compile(name)
		if ferr != nil && err == nil {
			err = ferr
		}
		if f.set {
			if f.frozen {
				cs.frozen = append(cs.frozen, name)
			} else {
				cs.dynamic = append(cs.dynamic, name)
			}
		}
		return f
	}

	switch st.Op {
	case spec.OpMatch:
		o := &matchOp{
			ref:         compile(spec.FieldRef),
			hammingFn:   compile(spec.FieldHammingFn),
			maxWobble:   compile(spec.FieldMaxWobble),
			maxMismatch: compile(spec.FieldMaxMismatch),
			baseOffset:  compile(spec.FieldBaseOffset),
			storePos:    fc.storeName(spec.FieldStorePosAs, ""),
		}
		if err == nil {
			err = res.checkFrozen(st.ID, o.hammingFn, res.distanceName)
		}
		cs.impl = o
	case spec.OpExtract:
		o := &extractOp{
			start:      compile(spec.FieldStart),
			length:     compile(spec.FieldLength),
			whitelist:  compile(spec.FieldWhitelist),
			storeSeq:   fc.storeName(spec.FieldStoreSeqAs, ""),
			storeMatch: fc.storeName(spec.FieldStoreMatchAs, spec.DefaultMatchName(st.ID)),
			missPolicy: fc.storeName(spec.FieldOnWhitelistMiss, cfg.WhitelistMiss),
		}
		if o.missPolicy != spec.WhitelistMissFail && o.missPolicy != spec.WhitelistMissRecord && err == nil {
			err = &ConfigurationError{
				StepID:     st.ID,
				Field:      spec.FieldOnWhitelistMiss,
				Message:    "unknown policy '" + o.missPolicy + "'",
				Suggestion: spec.Suggest(o.missPolicy, []string{spec.WhitelistMissFail, spec.WhitelistMissRecord}),
			}
		}
		if err == nil {
			err = res.checkFrozen(st.ID, o.whitelist, res.whitelistName)
		}
		cs.impl = o
	case spec.OpHammingTest:
		o := &hammingTestOp{
			ref:         compile(spec.FieldRef),
			hammingFn:   compile(spec.FieldHammingFn),
			start:       compile(spec.FieldStart),
			length:      compile(spec.FieldLength),
			maxMismatch: compile(spec.FieldMaxMismatch),
			storeResult: fc.storeName(spec.FieldStoreResultAs, st.ID),
		}
		if err == nil {
			err = res.checkFrozen(st.ID, o.hammingFn, res.distanceName)
		}
		cs.impl = o
	case spec.OpRegexSearch:
		o := &regexSearchOp{
			pattern:    compile(spec.FieldPattern),
			def:        compile(spec.FieldDefault),
			storePos:   fc.storeName(spec.FieldStorePosAs, ""),
			storeMatch: fc.storeName(spec.FieldStoreMatchAs, ""),
		}
		if err == nil {
			err = res.checkFrozen(st.ID, o.pattern, res.patternName)
		}
		cs.impl = o
	case spec.OpTest:
		cs.impl = &testOp{
			expression:  compile(spec.FieldExpression),
			storeResult: fc.storeName(spec.FieldStoreResultAs, st.ID),
		}
	case spec.OpCompute:
		cs.impl = &computeOp{
			expression: compile(spec.FieldExpression),
			passIf:     compile(spec.FieldPassIf),
			storeAs:    fc.storeName(spec.FieldStoreAs, ""),
		}
	}
	if err != nil {
		return nil, err
	}
	return cs, nil
}
