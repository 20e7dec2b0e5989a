package match

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern types.
const (
	PatternFull       = "full"
	PatternFullOrTail = "full_or_tail"
)

// DefaultMinTail is the shortest read-end prefix accepted by a
// full_or_tail pattern when none is configured.
const DefaultMinTail = 4

// PatternSpec is the declarative form of a named search pattern.
type PatternSpec struct {
	Type     string `yaml:"type"`
	Sequence string `yaml:"sequence"`
	MinTail  int    `yaml:"min_tail"`
}

// Pattern is a compiled search pattern.
type Pattern struct {
	Name string
	Spec PatternSpec
	re   *regexp.Regexp
}

// CompilePattern compiles spec. A full pattern is used as a regular
// expression verbatim. A full_or_tail pattern also matches any prefix of
// the sequence at least MinTail long that ends the read, which catches an
// adapter running off the end of a short read.
func CompilePattern(name string, spec PatternSpec) (*Pattern, error) {
	if spec.Type == "" {
		spec.Type = PatternFull
	}
	if spec.Sequence == "" {
		return nil, fmt.Errorf("pattern %q: sequence is required", name)
	}

	var expr string
	switch spec.Type {
	case PatternFull:
		expr = spec.Sequence
	case PatternFullOrTail:
		if spec.MinTail == 0 {
			spec.MinTail = DefaultMinTail
		}
		if spec.MinTail < 0 || spec.MinTail > len(spec.Sequence) {
			return nil, fmt.Errorf("pattern %q: min_tail (%d) is longer than sequence length (%d)",
				name, spec.MinTail, len(spec.Sequence))
		}
		alts := make([]string, 0, len(spec.Sequence)-spec.MinTail+1)
		for i := spec.MinTail; i <= len(spec.Sequence); i++ {
			alts = append(alts, spec.Sequence[:i])
		}
		expr = spec.Sequence + "|(" + strings.Join(alts, "|") + ")$"
	default:
		return nil, fmt.Errorf("pattern %q: unknown pattern type %q", name, spec.Type)
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", name, err)
	}
	return &Pattern{Name: name, Spec: spec, re: re}, nil
}

// Find returns the start position and text of the leftmost match in seq.
func (p *Pattern) Find(seq string) (int, string, bool) {
	loc := p.re.FindStringIndex(seq)
	if loc == nil {
		return 0, "", false
	}
	return loc[0], seq[loc[0]:loc[1]], true
}

// String returns the compiled regular expression.
func (p *Pattern) String() string {
	return p.re.String()
}
