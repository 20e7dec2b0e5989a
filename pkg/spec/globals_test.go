package spec

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mercator-hq/readbreak/pkg/expr"
	"mercator-hq/readbreak/pkg/fastq"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadGlobals(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bc1.txt"), "CTAG\nAAAA\n\n")

	gz, err := fastq.Create(filepath.Join(dir, "bc2.txt.gz"), fastq.CompressionGzip, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := gz.Write([]byte("TTTT\nGGGG\nCCCC\n")); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	src := `
params:
  ADAPTER: AGATCGGAAG
  TAIL: "{{ 2 + 3 }}"
globals:
  UMI_LEN: 8
  barcode_whitelists:
    bc1: bc1.txt
    bc2: bc2.txt.gz
  regex_patterns:
    plain: ACGT
    adapter:
      type: full_or_tail
      sequence: "{{ params.ADAPTER }}"
      min_tail: "{{ TAIL }}"
pipeline: []
`
	path := filepath.Join(dir, "pipeline.yaml")
	writeFile(t, path, src)

	s, err := NewParser().ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	g, err := LoadGlobals(s, LoadOptions{Cache: expr.NewCache()})
	if err != nil {
		t.Fatalf("LoadGlobals() error = %v", err)
	}

	if got := g.Whitelists["bc1"].Len(); got != 2 {
		t.Errorf("bc1 size = %d, want 2", got)
	}
	if !g.Whitelists["bc2"].Contains("GGGG") {
		t.Error("bc2 should contain GGGG")
	}
	if v, _ := g.Values["UMI_LEN"].AsInt(); v != 8 {
		t.Errorf("UMI_LEN = %d, want 8", v)
	}

	adapter := g.Patterns["adapter"]
	if adapter == nil {
		t.Fatal("adapter pattern missing")
	}
	if adapter.Spec.MinTail != 5 || adapter.Spec.Sequence != "AGATCGGAAG" {
		t.Errorf("adapter spec = %+v", adapter.Spec)
	}
	if pos, _, ok := adapter.Find("NNNNNNNAGATC"); !ok || pos != 7 {
		t.Errorf("adapter.Find() = (%d, %v), want (7, true)", pos, ok)
	}
	if _, _, ok := g.Patterns["plain"].Find("TTACGTT"); !ok {
		t.Error("plain pattern should match")
	}
	if strings.Join(g.WhitelistNames(), ",") != "bc1,bc2" {
		t.Errorf("WhitelistNames() = %v", g.WhitelistNames())
	}
	if strings.Join(g.PatternNames(), ",") != "adapter,plain" {
		t.Errorf("PatternNames() = %v", g.PatternNames())
	}
}

func TestLoadGlobalsErrors(t *testing.T) {
	dir := t.TempDir()
	src := `
globals:
  barcode_whitelists:
    missing: nope.txt
  regex_patterns:
    short: {type: full_or_tail, sequence: ACG}
pipeline: []
`
	path := filepath.Join(dir, "pipeline.yaml")
	writeFile(t, path, src)

	s, err := NewParser().ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	_, err = LoadGlobals(s, LoadOptions{})
	var list *ErrorList
	if !errors.As(err, &list) {
		t.Fatalf("LoadGlobals() error = %v, want *ErrorList", err)
	}
	if len(list.ByType(ErrorTypeIO)) != 1 {
		t.Errorf("io errors = %d, want 1", len(list.ByType(ErrorTypeIO)))
	}
	if len(list.ByType(ErrorTypeSemantic)) != 1 {
		t.Errorf("semantic errors = %d, want 1", len(list.ByType(ErrorTypeSemantic)))
	}
}
