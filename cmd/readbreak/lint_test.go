package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercator-hq/readbreak/pkg/cli"
	"mercator-hq/readbreak/pkg/config"
)

func resetLintFlags() {
	lintFlags.file = ""
	lintFlags.dir = ""
	lintFlags.strict = false
	lintFlags.format = "text"
	lintFlags.watch = false
}

const noMustPassPipeline = `
name: loose
pipeline:
  - id: anchor
    op: match
    read: 1
    ref: CATG
    max_wobble: 2
    max_mismatch: 0
    store_pos_as: s1
`

func TestLintPipelinesValidFile(t *testing.T) {
	resetLintFlags()
	dir := t.TempDir()
	path := writeFile(t, dir, "clip.yaml", clipPipeline)

	cmd, out := outputCmd()
	require.NoError(t, lintPipelines(cmd, []string{path}))
	assert.Contains(t, out.String(), "✓ "+path+" (3 steps)")
	assert.Contains(t, out.String(), "1 file(s), 0 error(s), 0 warning(s)")
}

func TestLintPipelinesInvalidFile(t *testing.T) {
	resetLintFlags()
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.yaml", "pipeline:\n  - id: x\n    op: matc\n")

	cmd, out := outputCmd()
	err := lintPipelines(cmd, []string{path})
	require.Error(t, err)
	assert.Equal(t, cli.ExitFailure, cli.ExitCode(err))
	assert.Contains(t, out.String(), "✗ "+path)
}

func TestLintPipelinesNonexistentFile(t *testing.T) {
	resetLintFlags()
	lintFlags.file = filepath.Join(t.TempDir(), "nonexistent.yaml")

	cmd, _ := outputCmd()
	err := lintPipelines(cmd, nil)
	require.Error(t, err)
	assert.Equal(t, cli.ExitFailure, cli.ExitCode(err))
}

func TestLintPipelinesNoFiles(t *testing.T) {
	resetLintFlags()

	cmd, _ := outputCmd()
	err := lintPipelines(cmd, nil)
	require.Error(t, err)
	assert.Equal(t, cli.ExitConfig, cli.ExitCode(err))
}

func TestLintPipelinesBadFormat(t *testing.T) {
	resetLintFlags()
	lintFlags.format = "xml"

	cmd, _ := outputCmd()
	err := lintPipelines(cmd, []string{"x.yaml"})
	require.Error(t, err)
	assert.Equal(t, cli.ExitConfig, cli.ExitCode(err))
}

func TestLintPipelinesJSONFormat(t *testing.T) {
	resetLintFlags()
	lintFlags.format = "json"
	dir := t.TempDir()
	good := writeFile(t, dir, "clip.yaml", clipPipeline)
	bad := writeFile(t, dir, "bad.yaml", "pipeline:\n  - id: x\n    op: matc\n")

	cmd, out := outputCmd()
	require.Error(t, lintPipelines(cmd, []string{good, bad}))

	var results []LintResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))
	require.Len(t, results, 2)
	assert.True(t, results[0].Valid)
	assert.Equal(t, "clip", results[0].Pipeline)
	assert.False(t, results[1].Valid)
	require.NotEmpty(t, results[1].Errors)
	assert.Equal(t, "x", results[1].Errors[0].StepID)
}

func TestLintPipelinesDirectory(t *testing.T) {
	resetLintFlags()
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", clipPipeline)
	writeFile(t, dir, "b.yml", clipPipeline)
	writeFile(t, dir, "notes.txt", "not a pipeline")
	lintFlags.dir = dir

	cmd, out := outputCmd()
	require.NoError(t, lintPipelines(cmd, nil))
	assert.Contains(t, out.String(), "2 file(s)")
}

func TestLintWarnings(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "loose.yaml", noMustPassPipeline)

	result := lintFile(path, false)
	assert.True(t, result.Valid)
	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0].Message, "no must_pass step")
	assert.Equal(t, "anchor", result.Warnings[1].StepID)

	strict := lintFile(path, true)
	assert.False(t, strict.Valid)
}

func TestLintConfigStrict(t *testing.T) {
	resetLintFlags()
	cfg := testConfig()
	cfg.Engine.Strict = true
	useConfig(t, cfg)
	path := writeFile(t, t.TempDir(), "loose.yaml", noMustPassPipeline)

	cmd, out := outputCmd()
	err := lintPipelines(cmd, []string{path})
	require.Error(t, err)
	assert.Equal(t, cli.ExitFailure, cli.ExitCode(err))
	assert.Contains(t, out.String(), "✗ "+path)
}

// lockedBuffer is a bytes.Buffer safe for the watcher goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchLintReloadsConfig(t *testing.T) {
	resetLintFlags()
	useConfig(t, testConfig())
	dir := t.TempDir()
	path := writeFile(t, dir, "loose.yaml", noMustPassPipeline)
	configDir := t.TempDir()
	cfgPath := writeFile(t, configDir, "readbreak.yaml", "engine:\n  strict: false\n")
	cfgFile = cfgPath
	t.Cleanup(func() { cfgFile = "" })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var out lockedBuffer
	done := make(chan error, 1)
	go func() {
		done <- watchLint(ctx, &out, []string{path}, cli.FormatText, testConfig(), slog.New(slog.DiscardHandler))
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Watching for changes")
	}, 5*time.Second, 10*time.Millisecond)

	writeFile(t, configDir, "readbreak.yaml", "engine:\n  strict: true\n")
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "✗ "+path)
	}, 5*time.Second, 20*time.Millisecond, out.String())
	assert.True(t, config.GetConfig().Engine.Strict)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watchLint did not stop")
	}
}

func TestLintFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name      string
		content   string
		wantValid bool
		wantType  string
	}{
		{
			name:      "valid pipeline",
			content:   clipPipeline,
			wantValid: true,
		},
		{
			name:      "unknown op",
			content:   "pipeline:\n  - id: x\n    op: matc\n",
			wantValid: false,
		},
		{
			name: "undefined variable",
			content: `
pipeline:
  - id: t
    op: test
    expression: "{{ nowhere > 1 }}"
    must_pass: true
`,
			wantValid: false,
		},
		{
			name: "missing whitelist file",
			content: `
globals:
  barcode_whitelists:
    bc: missing.txt
pipeline:
  - id: bc
    op: extract
    read: 1
    start: 0
    length: 4
    whitelist: bc
    must_pass: true
`,
			wantValid: false,
		},
		{
			name:      "yaml syntax",
			content:   "pipeline: [\n",
			wantValid: false,
			wantType:  "syntax",
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, fmt.Sprintf("case%d.yaml", i), tt.content)
			result := lintFile(path, false)
			assert.Equal(t, tt.wantValid, result.Valid, "%+v", result.Errors)
			if !tt.wantValid {
				assert.NotEmpty(t, result.Errors)
			}
			if tt.wantType != "" {
				require.NotEmpty(t, result.Errors)
				assert.Equal(t, tt.wantType, result.Errors[0].Type)
			}
		})
	}
}
