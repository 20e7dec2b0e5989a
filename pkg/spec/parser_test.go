package spec

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const samplePipeline = `
name: deaminase
params:
  LINKER: GGGTAC
  LINKER_LEN: "{{ params.LINKER | length }}"
  barcode_whitelists:
    bc1: bc1.txt
globals:
  UMI_LEN: 4
  regex_patterns:
    adapter:
      type: full_or_tail
      sequence: AGATCGGAAG
      min_tail: 5
pipeline:
  - id: anchor
    op: match
    read: 1
    ref: "{{ params.LINKER }}"
    max_wobble: 3
    max_mismatch: 0
    store_pos_as: s1_start
    must_pass: true
  - id: tag
    op: extract
    read: 1
    start: "{{ s1_start + LINKER_LEN }}"
    length: 4
    store_seq_as: tag
    whitelist: bc1
  - id: tail
    op: regex_search
    read: 2
    pattern: adapter
    store_pos_as: adapter_pos
  - id: long_enough
    op: test
    expression: "{{ len_seq1 > 10 }}"
`

func TestParseBytes(t *testing.T) {
	s, err := NewParser().ParseBytes([]byte(samplePipeline), "pipeline.yaml")
	if err != nil {
		t.Fatalf("ParseBytes() error = %v", err)
	}

	if s.Name != "deaminase" {
		t.Errorf("Name = %q, want deaminase", s.Name)
	}
	if len(s.Params) != 2 {
		t.Errorf("len(Params) = %d, want 2 (resource keys folded into globals)", len(s.Params))
	}
	if s.Globals.Whitelists["bc1"] != "bc1.txt" {
		t.Errorf("whitelist bc1 = %q, want bc1.txt", s.Globals.Whitelists["bc1"])
	}
	if decl, ok := s.Globals.Patterns["adapter"]; !ok || decl.MinTail != 5 {
		t.Errorf("pattern adapter = %+v, want min_tail 5", decl)
	}
	if s.Globals.Values["UMI_LEN"] != 4 {
		t.Errorf("globals UMI_LEN = %v, want 4", s.Globals.Values["UMI_LEN"])
	}
	if len(s.Pipeline) != 4 {
		t.Fatalf("len(Pipeline) = %d, want 4", len(s.Pipeline))
	}

	anchor := s.Pipeline[0]
	if anchor.ID != "anchor" || anchor.Op != OpMatch || anchor.Read != 1 || !anchor.MustPass {
		t.Errorf("anchor = %+v", anchor)
	}
	if anchor.Fields[FieldMaxWobble] != 3 {
		t.Errorf("max_wobble = %v, want 3", anchor.Fields[FieldMaxWobble])
	}
	if anchor.Location.Line == 0 || anchor.FieldLines[FieldRef] <= anchor.Location.Line {
		t.Errorf("line tracking: step line %d, ref line %d", anchor.Location.Line, anchor.FieldLines[FieldRef])
	}
	if s.Pipeline[1].MustPass {
		t.Error("must_pass should default to false")
	}
}

func TestParseBytesStructuralErrors(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		wantMsg     string
		wantSuggest string
	}{
		{
			name:    "invalid yaml",
			yaml:    "pipeline: [",
			wantMsg: "YAML parsing failed",
		},
		{
			name:    "missing pipeline",
			yaml:    "params: {A: 1}",
			wantMsg: `missing "pipeline"`,
		},
		{
			name:        "unknown top-level key",
			yaml:        "pipelin: []",
			wantMsg:     "unknown top-level key",
			wantSuggest: "pipeline",
		},
		{
			name:        "unknown op",
			yaml:        "pipeline:\n  - {id: a, op: extrac, read: 1, start: 0, length: 1, store_seq_as: x}",
			wantMsg:     "unknown operation",
			wantSuggest: "extract",
		},
		{
			name:    "missing required field",
			yaml:    "pipeline:\n  - {id: a, op: match, read: 1, ref: AC, max_wobble: 1, store_pos_as: p}",
			wantMsg: `missing required field "max_mismatch"`,
		},
		{
			name:    "missing id",
			yaml:    "pipeline:\n  - {op: test, expression: '{{ 1 }}'}",
			wantMsg: `missing "id"`,
		},
		{
			name:    "non-scalar field",
			yaml:    "pipeline:\n  - {id: a, op: test, expression: [1, 2]}",
			wantMsg: "must be a string, number or boolean",
		},
		{
			name:    "bad must_pass",
			yaml:    "pipeline:\n  - {id: a, op: test, expression: x, must_pass: maybe}",
			wantMsg: "must be a boolean",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().ParseBytes([]byte(tt.yaml), "p.yaml")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want substring %q", err, tt.wantMsg)
			}
			if tt.wantSuggest != "" && !strings.Contains(err.Error(), tt.wantSuggest) {
				t.Errorf("error = %v, want suggestion containing %q", err, tt.wantSuggest)
			}
		})
	}
}

func TestParseStrictMode(t *testing.T) {
	src := "pipeline:\n  - {id: a, op: test, expression: '{{ 1 }}', store_reslt_as: r}"

	if _, err := NewParser().ParseBytes([]byte(src), "p.yaml"); err != nil {
		t.Fatalf("lenient ParseBytes() error = %v", err)
	}

	_, err := NewParser().WithStrictMode(true).ParseBytes([]byte(src), "p.yaml")
	var list *ErrorList
	if !errors.As(err, &list) {
		t.Fatalf("strict ParseBytes() error = %v, want *ErrorList", err)
	}
	if len(list.Errors) != 1 || list.Errors[0].Field != "store_reslt_as" {
		t.Fatalf("errors = %v", list.Errors)
	}
	if !strings.Contains(list.Errors[0].Suggestion, "store_result_as") {
		t.Errorf("Suggestion = %q, want store_result_as", list.Errors[0].Suggestion)
	}
	if list.Errors[0].Context == "" {
		t.Error("expected source context on located error")
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.yaml")
	if err := os.WriteFile(path, []byte(samplePipeline), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewParser().ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if s.Source != path {
		t.Errorf("Source = %q, want %q", s.Source, path)
	}

	_, err = NewParser().WithMaxFileSize(10).ParseFile(path)
	var e *Error
	if !errors.As(err, &e) || e.Type != ErrorTypeIO {
		t.Errorf("oversized ParseFile() error = %v, want io error", err)
	}

	_, err = NewParser().ParseFile(filepath.Join(dir, "missing.yaml"))
	if !errors.As(err, &e) || e.Type != ErrorTypeIO {
		t.Errorf("missing ParseFile() error = %v, want io error", err)
	}
}

func TestStoredNames(t *testing.T) {
	tests := []struct {
		step Step
		want []string
	}{
		{Step{ID: "h", Op: OpHammingTest, Fields: map[string]any{}}, []string{"h"}},
		{Step{ID: "h", Op: OpHammingTest, Fields: map[string]any{FieldStoreResultAs: "ok"}}, []string{"ok"}},
		{Step{ID: "e", Op: OpExtract, Fields: map[string]any{FieldStoreSeqAs: "bc", FieldWhitelist: "w"}}, []string{"bc", "e_ok"}},
		{Step{ID: "e", Op: OpExtract, Fields: map[string]any{FieldStoreSeqAs: "bc"}}, []string{"bc"}},
		{Step{ID: "r", Op: OpRegexSearch, Fields: map[string]any{FieldStorePosAs: "p", FieldStoreMatchAs: "m"}}, []string{"p", "m"}},
		{Step{ID: "c", Op: OpCompute, Fields: map[string]any{FieldStoreAs: "v"}}, []string{"v"}},
		{Step{ID: "x", Op: "nope"}, nil},
	}
	for _, tt := range tests {
		got := tt.step.StoredNames()
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("StoredNames(%s %s) = %v, want %v", tt.step.Op, tt.step.ID, got, tt.want)
		}
	}
}
