package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"mercator-hq/readbreak/pkg/config"
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

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

// useConfig installs cfg as the process configuration for the test. The
// first Initialize call is spent so setup does not replace cfg.
func useConfig(t *testing.T, cfg *config.Config) {
	t.Helper()
	require.NoError(t, config.Initialize(""))
	prev := config.GetConfig()
	config.SetConfig(cfg)
	t.Cleanup(func() { config.SetConfig(prev) })
}

// testConfig returns defaults with quiet logging.
func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Telemetry.Logging.Level = "error"
	return cfg
}

// outputCmd returns a command whose output is captured in the returned
// buffer.
func outputCmd() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	return cmd, &buf
}

// createGitRepo commits files to a new repository on "master" and returns
// its directory.
func createGitRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	worktree, err := repo.Worktree()
	require.NoError(t, err)
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		_, err := worktree.Add(name)
		require.NoError(t, err)
	}
	_, err = worktree.Commit("add pipelines", &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir
}
