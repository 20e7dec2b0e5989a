package spec

import (
	"sort"

	"mercator-hq/readbreak/pkg/expr"
	"mercator-hq/readbreak/pkg/match"
)

// Spec is a decoded pipeline definition. It is immutable once parsed.
type Spec struct {
	// Name and Description are optional metadata.
	Name        string
	Description string

	// Params holds run-level constants. Values are scalars or template
	// strings resolved at engine construction.
	Params map[string]any

	// Globals holds named resources and static values.
	Globals GlobalsSection

	// Pipeline is the ordered list of steps.
	Pipeline []Step

	// Source is the file the spec was read from, if any. Relative
	// whitelist paths resolve against its directory.
	Source string
}

// GlobalsSection is the declarative globals block.
type GlobalsSection struct {
	// Whitelists maps a whitelist name to a file path.
	Whitelists map[string]string
	// Patterns maps a pattern name to its declaration. Fields may be
	// templates over params.
	Patterns map[string]PatternDecl
	// Values holds static scalars addressable as globals.NAME.
	Values map[string]any
}

// PatternDecl is a regex pattern declaration before compilation.
type PatternDecl struct {
	Type     any
	Sequence any
	MinTail  any
	Line     int
}

// Step is one pipeline step.
type Step struct {
	ID       string
	Op       string
	Read     int // 0 when the step does not target a read
	MustPass bool

	// Fields holds the operation-specific fields, literals or templates.
	Fields map[string]any

	Location   Location
	FieldLines map[string]int
}

// Field returns the raw value of an operation field.
func (s Step) Field(name string) (any, bool) {
	v, ok := s.Fields[name]
	return v, ok
}

// FieldString returns a string field.
func (s Step) FieldString(name string) (string, bool) {
	v, ok := s.Fields[name].(string)
	return v, ok
}

// FieldLocation returns the location of a field, falling back to the step.
func (s Step) FieldLocation(name string) Location {
	if line, ok := s.FieldLines[name]; ok {
		loc := s.Location
		loc.Line, loc.Column = line, 0
		return loc
	}
	return s.Location
}

// StoredNames returns the context variables the step writes, including
// the default names some operations use when no store field is given.
func (s Step) StoredNames() []string {
	schema, ok := Ops[s.Op]
	if !ok {
		return nil
	}
	var names []string
	for _, f := range schema.Stores {
		if v, ok := s.FieldString(f); ok && v != "" {
			names = append(names, v)
		}
	}
	switch s.Op {
	case OpHammingTest, OpTest:
		if _, ok := s.Fields[FieldStoreResultAs]; !ok {
			names = append(names, s.ID)
		}
	case OpExtract:
		_, wl := s.Fields[FieldWhitelist]
		_, named := s.Fields[FieldStoreMatchAs]
		if wl && !named {
			names = append(names, DefaultMatchName(s.ID))
		}
	}
	return names
}

// DefaultMatchName is the variable an extract step stores its whitelist
// result under when store_match_as is absent.
func DefaultMatchName(stepID string) string {
	return stepID + "_ok"
}

// Built-in per-read variables present in every context.
const (
	VarReadID  = "read_id"
	VarLenSeq1 = "len_seq1"
	VarLenSeq2 = "len_seq2"
)

// BuiltinVars lists the built-in per-read variables.
var BuiltinVars = []string{VarReadID, VarLenSeq1, VarLenSeq2}

// Operation names.
const (
	OpMatch       = "match"
	OpExtract     = "extract"
	OpHammingTest = "hamming_test"
	OpRegexSearch = "regex_search"
	OpTest        = "test"
	OpCompute     = "compute"
)

// Field names shared by several operations.
const (
	FieldRef             = "ref"
	FieldHammingFn       = "hamming_fn"
	FieldMaxWobble       = "max_wobble"
	FieldMaxMismatch     = "max_mismatch"
	FieldBaseOffset      = "base_offset"
	FieldStart           = "start"
	FieldLength          = "length"
	FieldWhitelist       = "whitelist"
	FieldOnWhitelistMiss = "on_whitelist_miss"
	FieldPattern         = "pattern"
	FieldDefault         = "default"
	FieldExpression      = "expression"
	FieldPassIf          = "pass_if"
	FieldStorePosAs      = "store_pos_as"
	FieldStoreSeqAs      = "store_seq_as"
	FieldStoreMatchAs    = "store_match_as"
	FieldStoreResultAs   = "store_result_as"
	FieldStoreAs         = "store_as"
)

// Whitelist miss policies for extract.
const (
	WhitelistMissFail   = "fail"
	WhitelistMissRecord = "record"
)

// OpSchema describes the fields an operation accepts.
type OpSchema struct {
	NeedsRead bool
	Required  []string
	Optional  []string
	// Stores lists fields whose value names a context variable.
	Stores []string
	// Integer lists fields that must evaluate to integers.
	Integer []string
}

// Ops is the fixed operation table.
var Ops = map[string]OpSchema{
	OpMatch: {
		NeedsRead: true,
		Required:  []string{FieldRef, FieldMaxWobble, FieldMaxMismatch, FieldStorePosAs},
		Optional:  []string{FieldHammingFn, FieldBaseOffset},
		Stores:    []string{FieldStorePosAs},
		Integer:   []string{FieldMaxWobble, FieldMaxMismatch, FieldBaseOffset},
	},
	OpExtract: {
		NeedsRead: true,
		Required:  []string{FieldStart, FieldLength, FieldStoreSeqAs},
		Optional:  []string{FieldWhitelist, FieldStoreMatchAs, FieldOnWhitelistMiss},
		Stores:    []string{FieldStoreSeqAs, FieldStoreMatchAs},
		Integer:   []string{FieldStart, FieldLength},
	},
	OpHammingTest: {
		NeedsRead: true,
		Required:  []string{FieldRef, FieldStart, FieldLength, FieldMaxMismatch},
		Optional:  []string{FieldHammingFn, FieldStoreResultAs},
		Stores:    []string{FieldStoreResultAs},
		Integer:   []string{FieldStart, FieldLength, FieldMaxMismatch},
	},
	OpRegexSearch: {
		NeedsRead: true,
		Required:  []string{FieldPattern, FieldStorePosAs},
		Optional:  []string{FieldStoreMatchAs, FieldDefault},
		Stores:    []string{FieldStorePosAs, FieldStoreMatchAs},
	},
	OpTest: {
		Required: []string{FieldExpression},
		Optional: []string{FieldStoreResultAs},
		Stores:   []string{FieldStoreResultAs},
	},
	OpCompute: {
		Required: []string{FieldExpression, FieldStoreAs},
		Optional: []string{FieldPassIf},
		Stores:   []string{FieldStoreAs},
	},
}

// OpNames returns the operation names in sorted order.
func OpNames() []string {
	names := make([]string, 0, len(Ops))
	for name := range Ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fields returns every field the operation accepts.
func (o OpSchema) Fields() []string {
	out := make([]string, 0, len(o.Required)+len(o.Optional))
	out = append(out, o.Required...)
	return append(out, o.Optional...)
}

// IsStore reports whether field names a context variable.
func (o OpSchema) IsStore(field string) bool {
	for _, f := range o.Stores {
		if f == field {
			return true
		}
	}
	return false
}

// Globals is the loaded resource table handed to the engine.
type Globals struct {
	Whitelists map[string]match.Whitelist
	Patterns   map[string]*match.Pattern
	Values     expr.Vars
}
