package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercator-hq/readbreak/pkg/audit"
	"mercator-hq/readbreak/pkg/cli"
	"mercator-hq/readbreak/pkg/config"
	"mercator-hq/readbreak/pkg/runner"
)

func resetRunFlags() {
	runFlags.pipeline = ""
	runFlags.r1 = ""
	runFlags.r2 = ""
	runFlags.out = ""
	runFlags.prefix = ""
	runFlags.compression = ""
	runFlags.level = 0
	runFlags.report = ""
	runFlags.reportAll = false
	runFlags.workers = 0
	runFlags.strict = false
	runFlags.whitelistMiss = ""
	runFlags.trimTail = true
	runFlags.noAudit = false
	runFlags.metricsFile = ""
	runFlags.metricsListen = ""
	runFlags.progress = false
	runFlags.format = "text"
}

// runFixture writes the clip pipeline and inputs into dir and points the
// run flags at them.
func runFixture(t *testing.T, dir string) {
	t.Helper()
	resetRunFlags()
	runFlags.pipeline = writeFile(t, dir, "clip.yaml", clipPipeline)
	runFlags.r1 = writeFile(t, dir, "in.R1.fastq", inR1)
	runFlags.r2 = writeFile(t, dir, "in.R2.fastq", inR2)
	runFlags.out = filepath.Join(dir, "out")
}

func TestRunPipelineRequiresInputs(t *testing.T) {
	resetRunFlags()
	useConfig(t, testConfig())

	cmd, _ := outputCmd()
	err := runPipeline(cmd, nil)
	require.Error(t, err)
	assert.Equal(t, cli.ExitConfig, cli.ExitCode(err))
}

func TestRunPipelineText(t *testing.T) {
	dir := t.TempDir()
	runFixture(t, dir)
	useConfig(t, testConfig())

	cmd, out := outputCmd()
	require.NoError(t, runPipeline(cmd, nil))

	got := out.String()
	assert.Contains(t, got, "Pipeline:       clip (")
	assert.Contains(t, got, "Total reads:    2")
	assert.Contains(t, got, "Success rate:   50.00%")
	assert.Contains(t, got, "Failures by step:")
	assert.FileExists(t, filepath.Join(dir, "out", "clipped.R1.fastq.gz"))
	assert.FileExists(t, filepath.Join(dir, "out", "clipped.R2.fastq.gz"))
}

func TestRunPipelineJSONWithOverrides(t *testing.T) {
	dir := t.TempDir()
	runFixture(t, dir)
	runFlags.format = "json"
	runFlags.prefix = "sample"
	runFlags.compression = "none"
	runFlags.workers = 2
	runFlags.report = filepath.Join(dir, "report.jsonl")
	runFlags.metricsFile = filepath.Join(dir, "readbreak.prom")
	useConfig(t, testConfig())

	cmd, out := outputCmd()
	require.NoError(t, runPipeline(cmd, nil))

	var sum runner.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &sum))
	assert.Equal(t, "clip", sum.Name)
	assert.EqualValues(t, 2, sum.Log.TotalReads)
	assert.EqualValues(t, 1, sum.Log.FailuresByStep["anchor"])
	assert.EqualValues(t, 1, sum.Written)
	assert.Equal(t, filepath.Join(dir, "out", "sample.R1.fastq"), sum.Output1)
	assert.FileExists(t, runFlags.report)

	metrics, err := os.ReadFile(runFlags.metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "readbreak_pipeline_reads_total")
	assert.Contains(t, string(metrics), "readbreak_pipeline_runs_total")
}

func TestRunPipelineGitSource(t *testing.T) {
	dir := t.TempDir()
	runFixture(t, dir)
	runFlags.format = "json"
	repo := createGitRepo(t, map[string]string{"clip.yaml": clipPipeline})
	runFlags.pipeline = "git::" + repo + "//clip.yaml?ref=master"

	cfg := testConfig()
	cfg.Sources.Git.CacheDir = filepath.Join(dir, "sources")
	cfg.Sources.Git.Depth = 0
	useConfig(t, cfg)

	cmd, out := outputCmd()
	require.NoError(t, runPipeline(cmd, nil))

	var sum runner.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &sum))
	assert.Equal(t, runFlags.pipeline, sum.Pipeline)
	assert.Len(t, sum.Commit, 40)
	assert.EqualValues(t, 1, sum.Written)
}

func TestRunPipelineInvalidPipeline(t *testing.T) {
	dir := t.TempDir()
	runFixture(t, dir)
	runFlags.pipeline = writeFile(t, dir, "bad.yaml", "pipeline:\n  - id: x\n    op: matc\n")
	useConfig(t, testConfig())

	cmd, _ := outputCmd()
	err := runPipeline(cmd, nil)
	require.Error(t, err)
	assert.Equal(t, cli.ExitConfig, cli.ExitCode(err))
}

func TestRunPipelineBadCompression(t *testing.T) {
	dir := t.TempDir()
	runFixture(t, dir)
	runFlags.compression = "bzip2"
	useConfig(t, testConfig())

	cmd, _ := outputCmd()
	err := runPipeline(cmd, nil)
	require.Error(t, err)
	assert.Equal(t, cli.ExitConfig, cli.ExitCode(err))
}

func auditConfig(dir string) *config.Config {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.Backend = "sqlite"
	cfg.Audit.SQLite.Path = filepath.Join(dir, "db", "audit.db")
	return cfg
}

func TestRunPipelineRecordsAudit(t *testing.T) {
	dir := t.TempDir()
	runFixture(t, dir)
	useConfig(t, auditConfig(dir))

	cmd, _ := outputCmd()
	require.NoError(t, runPipeline(cmd, nil))

	auditListFlags.pipeline = ""
	auditListFlags.since = ""
	auditListFlags.limit = 20
	auditListFlags.format = "json"
	listCmd, listOut := outputCmd()
	require.NoError(t, auditList(listCmd, nil))

	var runs []*audit.RunRecord
	require.NoError(t, json.Unmarshal(listOut.Bytes(), &runs))
	require.Len(t, runs, 1)
	run := runs[0]
	assert.Equal(t, "clip", run.PipelineName)
	assert.NotEmpty(t, run.PipelineHash)
	assert.EqualValues(t, 2, run.TotalReads)
	assert.EqualValues(t, 1, run.FailedReads)
	assert.Equal(t, runFlags.r1, run.Input1)
	assert.Empty(t, run.Error)

	auditVerdictsFlags.run = run.ID
	auditVerdictsFlags.step = ""
	auditVerdictsFlags.limit = 100
	auditVerdictsFlags.format = "csv"
	verdictsCmd, verdictsOut := outputCmd()
	require.NoError(t, auditVerdicts(verdictsCmd, nil))
	assert.Contains(t, verdictsOut.String(), "READ,PASSED,FAILED_STEP,MESSAGE")
	assert.Contains(t, verdictsOut.String(), "b,false,anchor,")

	auditPruneFlags.days = 0
	auditPruneFlags.maxRuns = 0
	auditPruneFlags.schedule = ""
	pruneCmd, pruneOut := outputCmd()
	require.NoError(t, auditPrune(pruneCmd, nil))
	assert.Contains(t, pruneOut.String(), "Deleted 0 run(s)")
}

func TestRunPipelineNoAudit(t *testing.T) {
	dir := t.TempDir()
	runFixture(t, dir)
	runFlags.noAudit = true
	useConfig(t, auditConfig(dir))

	cmd, _ := outputCmd()
	require.NoError(t, runPipeline(cmd, nil))
	assert.NoFileExists(t, filepath.Join(dir, "db", "audit.db"))
}

func TestAuditVerdictsRequiresRun(t *testing.T) {
	auditVerdictsFlags.run = ""
	auditVerdictsFlags.format = "text"

	cmd, _ := outputCmd()
	err := auditVerdicts(cmd, nil)
	require.Error(t, err)
	assert.Equal(t, cli.ExitConfig, cli.ExitCode(err))
}

func TestOpenStorageUnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Backend = "postgres"

	_, err := openStorage(cfg)
	require.Error(t, err)
	assert.Equal(t, cli.ExitConfig, cli.ExitCode(err))
}

func TestApplyRunFlags(t *testing.T) {
	resetRunFlags()
	runFlags.out = "clipped"
	runFlags.workers = 4
	runFlags.whitelistMiss = "record"
	runFlags.metricsListen = "127.0.0.1:0"

	cfg := config.Defaults()
	applyRunFlags(nil, cfg)

	assert.Equal(t, "clipped", cfg.IO.OutDir)
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, "record", cfg.Engine.WhitelistMiss)
	assert.True(t, cfg.Telemetry.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:0", cfg.Telemetry.Metrics.ListenAddress)
	assert.True(t, cfg.IO.TrimTail, "unchanged flags keep the configured value")
}
