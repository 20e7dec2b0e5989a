package spec

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Top-level and reserved keys.
const (
	keyName        = "name"
	keyDescription = "description"
	keyParams      = "params"
	keyGlobals     = "globals"
	keyPipeline    = "pipeline"
	keyWhitelists  = "barcode_whitelists"
	keyPatterns    = "regex_patterns"

	keyID       = "id"
	keyOp       = "op"
	keyRead     = "read"
	keyMustPass = "must_pass"
)

var topLevelKeys = []string{keyName, keyDescription, keyParams, keyGlobals, keyPipeline}

// Parser decodes pipeline definitions.
type Parser struct {
	maxFileSize  int64
	strictMode   bool
	contextLines int
}

// NewParser creates a parser with default limits.
func NewParser() *Parser {
	return &Parser{
		maxFileSize:  4 * 1024 * 1024,
		contextLines: 2,
	}
}

// WithMaxFileSize sets the largest accepted file in bytes.
func (p *Parser) WithMaxFileSize(size int64) *Parser {
	p.maxFileSize = size
	return p
}

// WithStrictMode rejects step fields the operation does not define.
func (p *Parser) WithStrictMode(strict bool) *Parser {
	p.strictMode = strict
	return p
}

// ParseFile reads and decodes the pipeline file at path.
func (p *Parser) ParseFile(path string) (*Spec, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &Error{Type: ErrorTypeIO, Message: fmt.Sprintf("failed to access file: %v", err), Location: Location{File: path}}
	}
	if info.Size() > p.maxFileSize {
		return nil, &Error{
			Type:     ErrorTypeIO,
			Message:  fmt.Sprintf("file size %d exceeds maximum %d bytes", info.Size(), p.maxFileSize),
			Location: Location{File: path},
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Type: ErrorTypeIO, Message: fmt.Sprintf("failed to read file: %v", err), Location: Location{File: path}}
	}
	return p.ParseBytes(data, path)
}

// ParseBytes decodes a pipeline definition held in memory. source is used
// in error locations and to resolve relative whitelist paths.
func (p *Parser) ParseBytes(data []byte, source string) (*Spec, error) {
	if int64(len(data)) > p.maxFileSize {
		return nil, &Error{
			Type:     ErrorTypeIO,
			Message:  fmt.Sprintf("data size %d exceeds maximum %d bytes", len(data), p.maxFileSize),
			Location: Location{File: source},
		}
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &Error{
			Type:       ErrorTypeSyntax,
			Message:    fmt.Sprintf("YAML parsing failed: %v", err),
			Location:   Location{File: source, Line: 1, Column: 1},
			Suggestion: "Check YAML syntax (indentation, colons, quotes)",
		}
	}

	b := &builder{source: source, strict: p.strictMode, errs: &ErrorList{}}
	s := b.build(&root)
	if b.errs.HasErrors() {
		b.errs.attachContext(data, p.contextLines)
		return nil, b.errs
	}
	return s, nil
}

type builder struct {
	source string
	strict bool
	errs   *ErrorList
}

func (b *builder) loc(n *yaml.Node) Location {
	if n == nil {
		return Location{File: b.source}
	}
	return Location{File: b.source, Line: n.Line, Column: n.Column}
}

func (b *builder) errorf(t ErrorType, n *yaml.Node, format string, args ...any) *Error {
	e := &Error{Type: t, Message: fmt.Sprintf(format, args...), Location: b.loc(n)}
	b.errs.Add(e)
	return e
}

func (b *builder) build(root *yaml.Node) *Spec {
	s := &Spec{
		Source: b.source,
		Params: make(map[string]any),
		Globals: GlobalsSection{
			Whitelists: make(map[string]string),
			Patterns:   make(map[string]PatternDecl),
			Values:     make(map[string]any),
		},
	}

	doc := root
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			b.errorf(ErrorTypeStructural, doc, "empty pipeline file")
			return s
		}
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		b.errorf(ErrorTypeStructural, doc, "pipeline file must be a mapping")
		return s
	}

	var pipeline *yaml.Node
	for i := 0; i+1 < len(doc.Content); i += 2 {
		k, v := doc.Content[i], doc.Content[i+1]
		switch k.Value {
		case keyName:
			s.Name = b.str(v)
		case keyDescription:
			s.Description = b.str(v)
		case keyParams:
			b.params(v, s)
		case keyGlobals:
			b.globals(v, s)
		case keyPipeline:
			pipeline = v
		default:
			e := b.errorf(ErrorTypeStructural, k, "unknown top-level key %q", k.Value)
			e.Suggestion = Suggest(k.Value, topLevelKeys)
		}
	}

	if pipeline == nil {
		e := b.errorf(ErrorTypeStructural, doc, "missing %q section", keyPipeline)
		e.Suggestion = "Add a 'pipeline:' list of steps"
		return s
	}
	if pipeline.Kind != yaml.SequenceNode {
		b.errorf(ErrorTypeStructural, pipeline, "%q must be a list of steps", keyPipeline)
		return s
	}
	for i, n := range pipeline.Content {
		s.Pipeline = append(s.Pipeline, b.step(i, n))
	}
	return s
}

func (b *builder) str(n *yaml.Node) string {
	if n.Kind != yaml.ScalarNode {
		b.errorf(ErrorTypeStructural, n, "expected a string")
		return ""
	}
	return n.Value
}

func (b *builder) scalar(n *yaml.Node) (any, bool) {
	if n.Kind != yaml.ScalarNode {
		return nil, false
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, false
	}
	if v == nil {
		return nil, false
	}
	return v, true
}

func (b *builder) params(n *yaml.Node, s *Spec) {
	if n.Kind != yaml.MappingNode {
		b.errorf(ErrorTypeStructural, n, "%q must be a mapping", keyParams)
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		switch k.Value {
		case keyWhitelists:
			b.whitelists(v, s)
		case keyPatterns:
			b.patterns(v, s)
		default:
			val, ok := b.scalar(v)
			if !ok {
				b.errorf(ErrorTypeStructural, v, "param %q must be a string, number or boolean", k.Value)
				continue
			}
			s.Params[k.Value] = val
		}
	}
}

func (b *builder) globals(n *yaml.Node, s *Spec) {
	if n.Kind != yaml.MappingNode {
		b.errorf(ErrorTypeStructural, n, "%q must be a mapping", keyGlobals)
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		switch k.Value {
		case keyWhitelists:
			b.whitelists(v, s)
		case keyPatterns:
			b.patterns(v, s)
		default:
			val, ok := b.scalar(v)
			if !ok {
				b.errorf(ErrorTypeStructural, v, "global %q must be a string, number or boolean", k.Value)
				continue
			}
			s.Globals.Values[k.Value] = val
		}
	}
}

func (b *builder) whitelists(n *yaml.Node, s *Spec) {
	if n.Kind != yaml.MappingNode {
		b.errorf(ErrorTypeStructural, n, "%q must map names to file paths", keyWhitelists)
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if v.Kind != yaml.ScalarNode || v.Value == "" {
			b.errorf(ErrorTypeStructural, v, "whitelist %q must be a file path", k.Value)
			continue
		}
		s.Globals.Whitelists[k.Value] = v.Value
	}
}

func (b *builder) patterns(n *yaml.Node, s *Spec) {
	if n.Kind != yaml.MappingNode {
		b.errorf(ErrorTypeStructural, n, "%q must map names to pattern definitions", keyPatterns)
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		decl := PatternDecl{Line: v.Line}
		switch v.Kind {
		case yaml.ScalarNode:
			decl.Sequence = v.Value
		case yaml.MappingNode:
			for j := 0; j+1 < len(v.Content); j += 2 {
				fk, fv := v.Content[j], v.Content[j+1]
				val, ok := b.scalar(fv)
				if !ok {
					b.errorf(ErrorTypeStructural, fv, "pattern %q field %q must be a scalar", k.Value, fk.Value)
					continue
				}
				switch fk.Value {
				case "type":
					decl.Type = val
				case "sequence":
					decl.Sequence = val
				case "min_tail":
					decl.MinTail = val
				default:
					e := b.errorf(ErrorTypeStructural, fk, "pattern %q: unknown field %q", k.Value, fk.Value)
					e.Suggestion = Suggest(fk.Value, []string{"type", "sequence", "min_tail"})
				}
			}
		default:
			b.errorf(ErrorTypeStructural, v, "pattern %q must be a sequence or a mapping", k.Value)
			continue
		}
		if decl.Sequence == nil {
			b.errorf(ErrorTypeStructural, v, "pattern %q: missing sequence", k.Value)
			continue
		}
		s.Globals.Patterns[k.Value] = decl
	}
}

func (b *builder) step(index int, n *yaml.Node) Step {
	st := Step{
		ID:         fmt.Sprintf("step_%d", index),
		Fields:     make(map[string]any),
		FieldLines: make(map[string]int),
		Location:   b.loc(n),
	}
	if n.Kind != yaml.MappingNode {
		b.errorf(ErrorTypeStructural, n, "step %d must be a mapping", index)
		return st
	}

	hasID := false
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		switch k.Value {
		case keyID:
			st.ID = b.str(v)
			hasID = true
		case keyOp:
			st.Op = b.str(v)
		case keyRead:
			var r int
			if v.Kind != yaml.ScalarNode || v.Decode(&r) != nil {
				b.errorf(ErrorTypeStructural, v, "step %d: %q must be 1 or 2", index, keyRead)
				continue
			}
			st.Read = r
		case keyMustPass:
			var mp bool
			if v.Kind != yaml.ScalarNode || v.Decode(&mp) != nil {
				b.errorf(ErrorTypeStructural, v, "step %d: %q must be a boolean", index, keyMustPass)
				continue
			}
			st.MustPass = mp
		default:
			val, ok := b.scalar(v)
			if !ok {
				b.errorf(ErrorTypeStructural, v, "step %d: field %q must be a string, number or boolean", index, k.Value)
				continue
			}
			st.Fields[k.Value] = val
			st.FieldLines[k.Value] = k.Line
		}
	}

	if !hasID || st.ID == "" {
		e := b.errorf(ErrorTypeStructural, n, "step %d: missing %q", index, keyID)
		e.Suggestion = "Add 'id: <unique name>' to the step"
	}
	schema, ok := Ops[st.Op]
	switch {
	case st.Op == "":
		e := b.errorf(ErrorTypeStructural, n, "step %q: missing %q", st.ID, keyOp)
		e.Suggestion = fmt.Sprintf("Valid operations: %v", OpNames())
	case !ok:
		e := b.errorf(ErrorTypeStructural, n, "step %q: unknown operation %q", st.ID, st.Op)
		e.Suggestion = Suggest(st.Op, OpNames())
	default:
		b.checkFields(st, schema)
	}
	return st
}

func (b *builder) checkFields(st Step, schema OpSchema) {
	for _, f := range schema.Required {
		if _, ok := st.Fields[f]; !ok {
			e := &Error{
				Type:       ErrorTypeStructural,
				Message:    fmt.Sprintf("missing required field %q for operation %q", f, st.Op),
				StepID:     st.ID,
				Location:   st.Location,
				Suggestion: fmt.Sprintf("Add '%s: ...' to the step", f),
			}
			b.errs.Add(e)
		}
	}
	if !b.strict {
		return
	}
	known := schema.Fields()
	names := make([]string, 0, len(st.Fields))
	for f := range st.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	for _, f := range names {
		if !contains(known, f) {
			b.errs.Add(&Error{
				Type:       ErrorTypeStructural,
				Message:    fmt.Sprintf("unknown field for operation %q", st.Op),
				StepID:     st.ID,
				Field:      f,
				Location:   st.FieldLocation(f),
				Suggestion: Suggest(f, known),
			})
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
