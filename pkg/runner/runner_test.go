package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercator-hq/readbreak/pkg/engine"
	"mercator-hq/readbreak/pkg/expr"
	"mercator-hq/readbreak/pkg/fastq"
)

const clipPipeline = `
name: clip
params:
  LINKER: CATG
pipeline:
  - id: anchor
    op: match
    read: 1
    ref: "{{ params.LINKER }}"
    max_wobble: 4
    max_mismatch: 0
    store_pos_as: s1
    must_pass: true
  - id: start
    op: compute
    expression: "{{ s1 + 4 }}"
    store_as: start_r1
  - id: tag
    op: extract
    read: 1
    start: "{{ start_r1 }}"
    length: 2
    store_seq_as: read_tag
`

const (
	inR1 = "@a extra\nNNCATGACGTT\n+\nABCDEFGHIJK\n@b extra\nNNNNNNNN\n+\nIIIIIIII\n"
	inR2 = "@a extra\nGGGG\n+\nIIII\n@b extra\nTTTT\n+\nIIII\n"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestClip(t *testing.T) {
	p := engine.ReadPair{
		ID: "r",
		R1: engine.Read{Seq: "ACGTACGT", Qual: "ABCDEFGH"},
		R2: engine.Read{Seq: "TTTT", Qual: "IIII"},
	}

	tests := []struct {
		name           string
		s1, e1, s2, e2 int
		tag            string
		wantID         string
		wantR1, wantR2 string
	}{
		{"whole reads", 0, ToEnd, 0, ToEnd, "", "r/1", "ACGTACGT", "TTTT"},
		{"tagged window", 2, 5, 1, ToEnd, "AC", "r/1_AC", "GTA", "TTT"},
		{"end clamped", 6, 100, 0, 2, "", "r/1", "GT", "TT"},
		{"start past end", 20, ToEnd, 0, ToEnd, "", "r/1", "", "TTTT"},
		{"negative end counts back", 0, -3, 0, ToEnd, "", "r/1", "ACGTA", "TTTT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clip(p, tt.s1, tt.e1, tt.s2, tt.e2, tt.tag)
			assert.Equal(t, tt.wantID, got.ID)
			assert.Equal(t, tt.wantR1, got.R1.Seq)
			assert.Equal(t, len(got.R1.Seq), len(got.R1.Qual))
			assert.Equal(t, tt.wantR2, got.R2.Seq)
		})
	}
}

type pairCollector struct{ pairs []fastq.Pair }

func (c *pairCollector) Write(p fastq.Pair) error {
	c.pairs = append(c.pairs, p)
	return nil
}

func TestClipSink(t *testing.T) {
	col := &pairCollector{}
	sink := NewClipSink(col, DefaultClip())

	ctx := &engine.Context{
		Pair: engine.ReadPair{ID: "a", R1: engine.Read{Seq: "ACGTAC", Qual: "IIIIII"}, R2: engine.Read{Seq: "GG", Qual: "II"}},
		Vars: expr.Vars{KeyStartR1: expr.Int(2), KeyReadTag: expr.Int(7)},
	}
	require.NoError(t, sink.Write(&engine.Verdict{ReadID: "a", Passed: true, Context: ctx}))
	require.NoError(t, sink.Write(&engine.Verdict{ReadID: "b", Passed: false, Context: ctx}))

	require.Len(t, col.pairs, 1)
	assert.Equal(t, "a/1_7", col.pairs[0].ID)
	assert.Equal(t, "GTAC", col.pairs[0].R1.Seq)
	assert.Equal(t, "GG", col.pairs[0].R2.Seq)
	assert.EqualValues(t, 1, sink.Written())
	assert.EqualValues(t, 1, sink.Dropped())
}

func TestReportSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewReportSink(&buf, true)

	ctx := &engine.Context{
		Vars:     expr.Vars{"s1": expr.Int(-1)},
		Outcomes: []engine.StepOutcome{{StepID: "anchor", Op: "match", State: engine.StateFailed, Reason: "no match found"}},
	}
	require.NoError(t, sink.Write(&engine.Verdict{ReadID: "ok", Passed: true}))
	require.NoError(t, sink.Write(&engine.Verdict{ReadID: "bad", FailedStep: "anchor", Context: ctx}))
	require.NoError(t, sink.Flush())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec ReportRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "bad", rec.ReadID)
	assert.Equal(t, "anchor", rec.FailedStep)
	assert.EqualValues(t, -1, rec.Vars["s1"])
	require.Len(t, rec.Steps, 1)
	assert.Equal(t, "FAILED", rec.Steps[0].State)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	specPath := writeFile(t, dir, "clip.yaml", clipPipeline)
	r1 := writeFile(t, dir, "in.R1.fastq", inR1)
	r2 := writeFile(t, dir, "in.R2.fastq", inR2)
	out := filepath.Join(dir, "out")
	report := filepath.Join(dir, "report.jsonl")

	sum, err := Run(context.Background(), Options{
		SpecPath:   specPath,
		R1:         r1,
		R2:         r2,
		TrimTail:   true,
		OutDir:     out,
		ReportPath: report,
		Clip:       DefaultClip(),
		Workers:    1,
	}, quietLogger())
	require.NoError(t, err)

	assert.EqualValues(t, 2, sum.Log.TotalReads)
	assert.EqualValues(t, 1, sum.Log.FailuresByStep["anchor"])
	assert.EqualValues(t, 1, sum.Written)
	assert.EqualValues(t, 1, sum.Dropped)
	assert.Equal(t, filepath.Join(out, "clipped.R1.fastq.gz"), sum.Output1)

	reader, err := fastq.OpenPaired(sum.Output1, sum.Output2)
	require.NoError(t, err)
	defer reader.Close()

	p, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "a/1_AC", p.ID)
	assert.Equal(t, "ACGTT", p.R1.Seq)
	assert.Equal(t, "GHIJK", p.R1.Qual)
	assert.Equal(t, "GGGG", p.R2.Seq)

	_, err = reader.Next()
	assert.True(t, errors.Is(err, io.EOF))

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestRunInvalidPipeline(t *testing.T) {
	dir := t.TempDir()
	specPath := writeFile(t, dir, "bad.yaml", "pipeline:\n  - id: x\n    op: matc\n")

	_, err := Run(context.Background(), Options{SpecPath: specPath, OutDir: dir}, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match")
}

const suiteFile = `
pipeline: clip.yaml
cases:
  - name: anchored
    r1: NNCATGACGTT
    r2: GGGG
    expect:
      passed: true
      vars:
        s1: 2
        read_tag: AC
  - name: unanchored
    r1: NNNNNNNN
    expect:
      passed: false
      failed_step: anchor
      absent: [read_tag]
  - name: wrong expectation
    r1: NNCATGACGTT
    expect:
      vars:
        s1: 3
        missing: 1
`

func TestSuite(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "clip.yaml", clipPipeline)
	suitePath := writeFile(t, dir, "clip_test.yaml", suiteFile)

	suite, err := LoadSuite(suitePath)
	require.NoError(t, err)
	require.Len(t, suite.Cases, 3)
	assert.Equal(t, filepath.Join(dir, "clip.yaml"), suite.PipelinePath())

	p, err := Load(suite.PipelinePath(), LoadOptions{Logger: quietLogger()})
	require.NoError(t, err)
	eng, err := engine.New(p.Spec, p.Globals, nil, nil, quietLogger())
	require.NoError(t, err)

	results, err := suite.Run(context.Background(), eng)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Passed, "%v", results[0].Mismatches)
	assert.True(t, results[1].Passed, "%v", results[1].Mismatches)
	assert.False(t, results[2].Passed)
	assert.Len(t, results[2].Mismatches, 2)
}
