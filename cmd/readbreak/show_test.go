package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"mercator-hq/readbreak/pkg/cli"
)

func resetShowFlags(t *testing.T) {
	t.Helper()
	useConfig(t, testConfig())
	showFlags.yaml = false
	showFlags.dot = false
	showFlags.strict = false
	showFlags.format = "text"
}

func TestShowPipelineText(t *testing.T) {
	resetShowFlags(t)
	path := writeFile(t, t.TempDir(), "clip.yaml", clipPipeline)

	cmd, out := outputCmd()
	require.NoError(t, showPipeline(cmd, []string{path}))

	got := out.String()
	assert.Contains(t, got, "Pipeline: clip")
	assert.Contains(t, got, "Steps (3):")
	assert.Contains(t, got, "1. anchor [match, read 1, must_pass]")
	assert.Contains(t, got, "Compiled:")
	assert.Contains(t, got, "depends on: start")
}

func TestShowPipelineJSON(t *testing.T) {
	resetShowFlags(t)
	showFlags.format = "json"
	path := writeFile(t, t.TempDir(), "clip.yaml", clipPipeline)

	cmd, out := outputCmd()
	require.NoError(t, showPipeline(cmd, []string{path}))

	var desc PipelineDescription
	require.NoError(t, json.Unmarshal(out.Bytes(), &desc))
	assert.Equal(t, "clip", desc.Name)
	require.Len(t, desc.Steps, 3)

	anchor, start, tag := desc.Steps[0], desc.Steps[1], desc.Steps[2]
	assert.True(t, anchor.MustPass)
	assert.Contains(t, anchor.Frozen, "ref")
	assert.Equal(t, []string{"s1"}, anchor.Stores)
	assert.Equal(t, []string{"anchor"}, start.DependsOn)
	assert.Equal(t, []string{"start"}, tag.DependsOn)
	assert.Contains(t, tag.Dynamic, "start")
}

func TestShowPipelineYAML(t *testing.T) {
	resetShowFlags(t)
	showFlags.yaml = true
	path := writeFile(t, t.TempDir(), "clip.yaml", clipPipeline)

	cmd, out := outputCmd()
	require.NoError(t, showPipeline(cmd, []string{path}))

	var doc struct {
		Name     string           `yaml:"name"`
		Pipeline []map[string]any `yaml:"pipeline"`
	}
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, "clip", doc.Name)
	require.Len(t, doc.Pipeline, 3)
	assert.Equal(t, "anchor", doc.Pipeline[0]["id"])
}

func TestShowPipelineDOT(t *testing.T) {
	resetShowFlags(t)
	showFlags.dot = true
	path := writeFile(t, t.TempDir(), "clip.yaml", clipPipeline)

	cmd, out := outputCmd()
	require.NoError(t, showPipeline(cmd, []string{path}))
	assert.Contains(t, out.String(), "digraph")
	assert.Contains(t, out.String(), `"anchor"`)
}

func TestShowPipelineGitSource(t *testing.T) {
	cfg := testConfig()
	cfg.Sources.Git.CacheDir = t.TempDir()
	cfg.Sources.Git.Branch = "master"
	cfg.Sources.Git.Depth = 0
	resetShowFlags(t)
	useConfig(t, cfg)
	showFlags.format = "json"

	repo := createGitRepo(t, map[string]string{"pipelines/clip.yaml": clipPipeline})

	cmd, out := outputCmd()
	require.NoError(t, showPipeline(cmd, []string{"git::" + repo + "//pipelines/clip.yaml"}))

	var desc PipelineDescription
	require.NoError(t, json.Unmarshal(out.Bytes(), &desc))
	assert.Equal(t, "clip", desc.Name)
	require.NotNil(t, desc.Commit)
	assert.Equal(t, "master", desc.Commit.Branch)
	assert.Len(t, desc.Commit.SHA, 40)

	resetShowFlags(t)
	useConfig(t, cfg)
	err := showPipeline(cmd, []string{"git::" + repo + "//pipelines/missing.yaml"})
	require.Error(t, err)
	assert.Equal(t, cli.ExitConfig, cli.ExitCode(err))
}

func TestShowPipelineErrors(t *testing.T) {
	resetShowFlags(t)
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.yaml", "pipeline:\n  - id: x\n    op: matc\n")

	cmd, _ := outputCmd()
	err := showPipeline(cmd, []string{bad})
	require.Error(t, err)
	assert.Equal(t, cli.ExitConfig, cli.ExitCode(err))

	showFlags.yaml = true
	showFlags.dot = true
	err = showPipeline(cmd, []string{bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}
