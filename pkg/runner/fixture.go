package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"mercator-hq/readbreak/pkg/engine"
	"mercator-hq/readbreak/pkg/expr"
)

// Suite is a set of fixture cases for one pipeline.
//
// Suite format (YAML):
//
//	pipeline: umi.yaml        # optional, relative to the suite file
//	cases:
//	  - name: anchored read
//	    read_id: r1
//	    r1: NNCATGACGT
//	    r2: ACGT
//	    expect:
//	      passed: true
//	      vars:
//	        s1: 2
//	        umi: AC
//	  - name: no anchor
//	    r1: NNNNNNNN
//	    expect:
//	      passed: false
//	      failed_step: anchor
//	      absent: [umi]
type Suite struct {
	Pipeline string `yaml:"pipeline"`
	Cases    []Case `yaml:"cases"`

	// Path is the file the suite was loaded from.
	Path string `yaml:"-"`
}

// Case is one fixture read pair and its expected verdict.
type Case struct {
	Name   string      `yaml:"name"`
	ReadID string      `yaml:"read_id"`
	R1     string      `yaml:"r1"`
	R2     string      `yaml:"r2"`
	Q1     string      `yaml:"q1"`
	Q2     string      `yaml:"q2"`
	Expect Expectation `yaml:"expect"`
}

// Expectation describes the verdict a case must produce. Unset fields are
// not checked.
type Expectation struct {
	Passed     *bool          `yaml:"passed"`
	FailedStep string         `yaml:"failed_step"`
	Vars       map[string]any `yaml:"vars"`
	Absent     []string       `yaml:"absent"`
}

// CaseResult is the outcome of one case.
type CaseResult struct {
	Name       string
	Passed     bool
	Mismatches []string
	Error      string
	Duration   time.Duration
	Verdict    *engine.Verdict
}

// LoadSuite reads a fixture suite.
func LoadSuite(path string) (*Suite, error) {
	// #nosec G304 - reading a user-specified fixture file is the point.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	suite.Path = path
	for i := range suite.Cases {
		if suite.Cases[i].Name == "" {
			suite.Cases[i].Name = fmt.Sprintf("case_%d", i)
		}
		if suite.Cases[i].ReadID == "" {
			suite.Cases[i].ReadID = suite.Cases[i].Name
		}
	}
	return &suite, nil
}

// PipelinePath returns the pipeline file named by the suite, resolved
// against the suite's directory, or "".
func (s *Suite) PipelinePath() string {
	if s.Pipeline == "" || filepath.IsAbs(s.Pipeline) {
		return s.Pipeline
	}
	return filepath.Join(filepath.Dir(s.Path), s.Pipeline)
}

// Run executes every case against e. A configuration error stops the
// suite and is returned.
func (s *Suite) Run(ctx context.Context, e *engine.Engine) ([]CaseResult, error) {
	results := make([]CaseResult, 0, len(s.Cases))
	for _, c := range s.Cases {
		r, err := c.run(ctx, e)
		if err != nil {
			results = append(results, r)
			return results, fmt.Errorf("case %q: %w", c.Name, err)
		}
		results = append(results, r)
	}
	return results, nil
}

func (c Case) run(ctx context.Context, e *engine.Engine) (CaseResult, error) {
	start := time.Now()
	result := CaseResult{Name: c.Name}

	pair := engine.ReadPair{
		ID: c.ReadID,
		R1: engine.Read{ID: c.ReadID, Seq: c.R1, Qual: c.Q1},
		R2: engine.Read{ID: c.ReadID, Seq: c.R2, Qual: c.Q2},
	}
	v, err := e.Run(ctx, pair)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}
	result.Verdict = v
	result.Mismatches = c.Expect.check(v)
	result.Passed = len(result.Mismatches) == 0
	return result, nil
}

func (x Expectation) check(v *engine.Verdict) []string {
	var out []string
	if x.Passed != nil && *x.Passed != v.Passed {
		out = append(out, fmt.Sprintf("passed: expected %v, got %v (%s)", *x.Passed, v.Passed, v.Message))
	}
	if x.FailedStep != "" && x.FailedStep != v.FailedStep {
		out = append(out, fmt.Sprintf("failed_step: expected %q, got %q", x.FailedStep, v.FailedStep))
	}

	names := make([]string, 0, len(x.Vars))
	for name := range x.Vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		want, err := expr.FromAny(x.Vars[name])
		if err != nil {
			out = append(out, fmt.Sprintf("%s: bad expectation: %v", name, err))
			continue
		}
		got, ok := v.Context.Get(name)
		switch {
		case !ok:
			out = append(out, fmt.Sprintf("%s: expected %#v, not stored", name, want))
		case !got.Equal(want):
			out = append(out, fmt.Sprintf("%s: expected %#v, got %#v", name, want, got))
		}
	}
	for _, name := range x.Absent {
		if got, ok := v.Context.Get(name); ok {
			out = append(out, fmt.Sprintf("%s: expected absent, got %#v", name, got))
		}
	}
	return out
}
