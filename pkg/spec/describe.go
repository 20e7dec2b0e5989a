package spec

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// String describes the pipeline in a human-readable form: metadata,
// params, globals and one line per step with its fields.
func (s *Spec) String() string {
	var b strings.Builder

	name := s.Name
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Fprintf(&b, "Pipeline: %s\n", name)
	if s.Description != "" {
		fmt.Fprintf(&b, "  %s\n", s.Description)
	}
	if s.Source != "" {
		fmt.Fprintf(&b, "Source: %s\n", s.Source)
	}

	if len(s.Params) > 0 {
		b.WriteString("Params:\n")
		for _, k := range sortedNames(s.Params) {
			fmt.Fprintf(&b, "  %s = %v\n", k, s.Params[k])
		}
	}

	g := s.Globals
	if len(g.Whitelists)+len(g.Patterns)+len(g.Values) > 0 {
		b.WriteString("Globals:\n")
		for _, k := range sortedNames(g.Whitelists) {
			fmt.Fprintf(&b, "  whitelist %s: %s\n", k, g.Whitelists[k])
		}
		for _, k := range sortedNames(g.Patterns) {
			p := g.Patterns[k]
			fmt.Fprintf(&b, "  pattern %s: %v", k, p.Sequence)
			if p.Type != nil {
				fmt.Fprintf(&b, " (%v", p.Type)
				if p.MinTail != nil {
					fmt.Fprintf(&b, ", min_tail %v", p.MinTail)
				}
				b.WriteString(")")
			}
			b.WriteString("\n")
		}
		for _, k := range sortedNames(g.Values) {
			fmt.Fprintf(&b, "  %s = %v\n", k, g.Values[k])
		}
	}

	fmt.Fprintf(&b, "Steps (%d):\n", len(s.Pipeline))
	for i, st := range s.Pipeline {
		fmt.Fprintf(&b, "  %d. %s [%s", i+1, st.ID, st.Op)
		if st.Read != 0 {
			fmt.Fprintf(&b, ", read %d", st.Read)
		}
		if st.MustPass {
			b.WriteString(", must_pass")
		}
		b.WriteString("]\n")
		for _, f := range st.fieldOrder() {
			fmt.Fprintf(&b, "       %s: %v\n", f, st.Fields[f])
		}
	}
	return b.String()
}

// fieldOrder returns the step's field names, schema fields first.
func (s Step) fieldOrder() []string {
	seen := make(map[string]bool, len(s.Fields))
	var out []string
	if schema, ok := Ops[s.Op]; ok {
		for _, f := range schema.Fields() {
			if _, ok := s.Fields[f]; ok {
				out = append(out, f)
				seen[f] = true
			}
		}
	}
	var rest []string
	for f := range s.Fields {
		if !seen[f] {
			rest = append(rest, f)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Marshal encodes s back into the pipeline file format. Keys are emitted
// in a stable order so the output diffs cleanly.
func Marshal(s *Spec) ([]byte, error) {
	root := mapping()

	if s.Name != "" {
		addScalar(root, keyName, s.Name)
	}
	if s.Description != "" {
		addScalar(root, keyDescription, s.Description)
	}

	if len(s.Params) > 0 {
		params := mapping()
		for _, k := range sortedNames(s.Params) {
			if err := addValue(params, k, s.Params[k]); err != nil {
				return nil, err
			}
		}
		add(root, keyParams, params)
	}

	if globals, err := marshalGlobals(s.Globals); err != nil {
		return nil, err
	} else if len(globals.Content) > 0 {
		add(root, keyGlobals, globals)
	}

	steps := &yaml.Node{Kind: yaml.SequenceNode}
	for _, st := range s.Pipeline {
		n, err := marshalStep(st)
		if err != nil {
			return nil, err
		}
		steps.Content = append(steps.Content, n)
	}
	add(root, keyPipeline, steps)

	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
	return yaml.Marshal(doc)
}

func marshalGlobals(g GlobalsSection) (*yaml.Node, error) {
	n := mapping()

	if len(g.Whitelists) > 0 {
		wl := mapping()
		for _, k := range sortedNames(g.Whitelists) {
			addScalar(wl, k, g.Whitelists[k])
		}
		add(n, keyWhitelists, wl)
	}

	if len(g.Patterns) > 0 {
		pats := mapping()
		for _, k := range sortedNames(g.Patterns) {
			p := g.Patterns[k]
			if p.Type == nil && p.MinTail == nil {
				if err := addValue(pats, k, p.Sequence); err != nil {
					return nil, err
				}
				continue
			}
			pn := mapping()
			for _, kv := range []struct {
				key string
				val any
			}{{"type", p.Type}, {"sequence", p.Sequence}, {"min_tail", p.MinTail}} {
				if kv.val == nil {
					continue
				}
				if err := addValue(pn, kv.key, kv.val); err != nil {
					return nil, err
				}
			}
			add(pats, k, pn)
		}
		add(n, keyPatterns, pats)
	}

	for _, k := range sortedNames(g.Values) {
		if err := addValue(n, k, g.Values[k]); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func marshalStep(st Step) (*yaml.Node, error) {
	n := mapping()
	addScalar(n, keyID, st.ID)
	addScalar(n, keyOp, st.Op)
	if st.Read != 0 {
		if err := addValue(n, keyRead, st.Read); err != nil {
			return nil, err
		}
	}
	if st.MustPass {
		if err := addValue(n, keyMustPass, true); err != nil {
			return nil, err
		}
	}
	for _, f := range st.fieldOrder() {
		if err := addValue(n, f, st.Fields[f]); err != nil {
			return nil, fmt.Errorf("step %q field %q: %w", st.ID, f, err)
		}
	}
	return n, nil
}

func mapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode}
}

func add(m *yaml.Node, key string, v *yaml.Node) {
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, v)
}

func addScalar(m *yaml.Node, key, value string) {
	add(m, key, &yaml.Node{Kind: yaml.ScalarNode, Value: value})
}

func addValue(m *yaml.Node, key string, v any) error {
	var n yaml.Node
	if err := n.Encode(v); err != nil {
		return err
	}
	add(m, key, &n)
	return nil
}
