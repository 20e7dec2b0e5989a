package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"mercator-hq/readbreak/pkg/audit/recorder"
	"mercator-hq/readbreak/pkg/cli"
	"mercator-hq/readbreak/pkg/config"
	"mercator-hq/readbreak/pkg/engine"
	"mercator-hq/readbreak/pkg/fastq"
	"mercator-hq/readbreak/pkg/runner"
	"mercator-hq/readbreak/pkg/source"
	"mercator-hq/readbreak/pkg/spec"
	"mercator-hq/readbreak/pkg/telemetry/health"
	"mercator-hq/readbreak/pkg/telemetry/logging"
	"mercator-hq/readbreak/pkg/telemetry/metrics"
	"mercator-hq/readbreak/pkg/telemetry/tracing"
)

var runFlags struct {
	pipeline      string
	r1            string
	r2            string
	out           string
	prefix        string
	compression   string
	level         int
	report        string
	reportAll     bool
	workers       int
	strict        bool
	whitelistMiss string
	trimTail      bool
	noAudit       bool
	metricsFile   string
	metricsListen string
	progress      bool
	format        string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a pipeline over paired FASTQ files",
	Long: `Run a pipeline over every read pair of two FASTQ files.

Passing pairs are clipped to the coordinates stored by the pipeline
(start_r1, end_r1, start_r2, end_r2) and written to <out>/<prefix>.R1 and
<out>/<prefix>.R2. Read ids are tagged with read_tag when it is stored.
Failing pairs are dropped and counted against the step that rejected them.

Inputs may be plain, gzip or zstd compressed. The pipeline may be a local
file or a git:: reference to a file in a Git repository.

Examples:
  # Clip a pair of files with the default configuration
  readbreak run -p umi.yaml --r1 s_R1.fastq.gz --r2 s_R2.fastq.gz -o clipped/

  # Use 8 workers and write a report of the failed pairs
  readbreak run -p umi.yaml --r1 a.fq.gz --r2 b.fq.gz -w 8 --report failed.jsonl

  # Serve metrics and health endpoints while running
  readbreak run -p umi.yaml --r1 a.fq.gz --r2 b.fq.gz --metrics-listen 127.0.0.1:9464

  # Pipeline from a tagged Git branch
  readbreak run -p "git::https://github.com/lab/pipelines.git//umi.yaml?ref=v2" --r1 a.fq.gz --r2 b.fq.gz

  # Machine-readable summary
  readbreak run -p umi.yaml --r1 a.fq.gz --r2 b.fq.gz --format json`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.pipeline, "pipeline", "p", "", "pipeline file or git:: reference (required)")
	runCmd.Flags().StringVar(&runFlags.r1, "r1", "", "read 1 FASTQ file (required)")
	runCmd.Flags().StringVar(&runFlags.r2, "r2", "", "read 2 FASTQ file (required)")
	runCmd.Flags().StringVarP(&runFlags.out, "out", "o", "", "override output directory")
	runCmd.Flags().StringVar(&runFlags.prefix, "prefix", "", "override output file prefix")
	runCmd.Flags().StringVar(&runFlags.compression, "compression", "", "override output codec (gzip, zstd, none)")
	runCmd.Flags().IntVar(&runFlags.level, "level", 0, "override compression level")
	runCmd.Flags().StringVar(&runFlags.report, "report", "", "write a JSON Lines verdict report to this file")
	runCmd.Flags().BoolVar(&runFlags.reportAll, "report-all", false, "include passing pairs in the report")
	runCmd.Flags().IntVarP(&runFlags.workers, "workers", "w", 0, "override number of pipeline workers")
	runCmd.Flags().BoolVar(&runFlags.strict, "strict", false, "reject unknown step fields")
	runCmd.Flags().StringVar(&runFlags.whitelistMiss, "whitelist-miss", "", "override default whitelist miss policy (fail, record)")
	runCmd.Flags().BoolVar(&runFlags.trimTail, "trim-tail", true, "cut read ids at the first whitespace")
	runCmd.Flags().BoolVar(&runFlags.noAudit, "no-audit", false, "do not record the run in the audit store")
	runCmd.Flags().StringVar(&runFlags.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")
	runCmd.Flags().StringVar(&runFlags.metricsListen, "metrics-listen", "", "serve metrics and health endpoints on this address")
	runCmd.Flags().BoolVar(&runFlags.progress, "progress", false, "print progress to stderr")
	runCmd.Flags().StringVar(&runFlags.format, "format", "text", "summary format: text, json")
}

// applyRunFlags copies the run flags that were set over cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if runFlags.out != "" {
		cfg.IO.OutDir = runFlags.out
	}
	if runFlags.prefix != "" {
		cfg.IO.Prefix = runFlags.prefix
	}
	if runFlags.compression != "" {
		cfg.IO.Compression = runFlags.compression
	}
	if runFlags.level > 0 {
		cfg.IO.Level = runFlags.level
	}
	if runFlags.report != "" {
		cfg.IO.ReportPath = runFlags.report
	}
	if flagChanged(cmd, "report-all") {
		cfg.IO.ReportFailedOnly = !runFlags.reportAll
	}
	if flagChanged(cmd, "trim-tail") {
		cfg.IO.TrimTail = runFlags.trimTail
	}
	if runFlags.workers > 0 {
		cfg.Engine.Workers = runFlags.workers
	}
	if runFlags.strict {
		cfg.Engine.Strict = true
	}
	if runFlags.whitelistMiss != "" {
		cfg.Engine.WhitelistMiss = runFlags.whitelistMiss
	}
	if runFlags.noAudit {
		cfg.Audit.Enabled = false
	}
	if runFlags.metricsFile != "" {
		cfg.Telemetry.Metrics.Enabled = true
		cfg.Telemetry.Metrics.TextfilePath = runFlags.metricsFile
	}
	if runFlags.metricsListen != "" {
		cfg.Telemetry.Metrics.Enabled = true
		cfg.Telemetry.Metrics.ListenAddress = runFlags.metricsListen
	}
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil {
		return false
	}
	return cmd.Flags().Changed(name)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	if runFlags.pipeline == "" || runFlags.r1 == "" || runFlags.r2 == "" {
		return cli.NewConfigError("flags", "--pipeline, --r1 and --r2 are required")
	}
	format, err := cli.ParseFormat(runFlags.format, cli.FormatText, cli.FormatJSON)
	if err != nil {
		return err
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("config", err.Error())
	}
	compression, err := fastq.ParseCompression(cfg.IO.Compression)
	if err != nil {
		return cli.NewConfigError("io.compression", err.Error())
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	src, err := resolvePipeline(ctx, cfg, logger, runFlags.pipeline)
	if err != nil {
		return err
	}

	state := engine.NewRunState()
	logger = logger.With("run_id", state.ID)
	ctx = logging.WithRunID(ctx, state.ID)
	ctx = logging.WithPipeline(ctx, runFlags.pipeline)

	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		return cli.NewConfigError("telemetry.tracing", err.Error())
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	ctx, span := tracer.Start(ctx, tracing.SpanRun)
	defer span.End()
	tracing.SetRunAttributes(span, state.ID, runFlags.pipeline)
	tracing.SetInputAttributes(span, runFlags.r1, runFlags.r2)

	var observers []engine.Observer

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
		collector.WatchCache(state.Cache)
		observers = append(observers, collector)
	}

	var (
		store auditStore
		rec   *recorder.Recorder
	)
	if cfg.Audit.Enabled {
		store, err = openStorage(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		rec = recorder.NewRecorder(store, state.ID, &recorder.Config{
			Enabled:      true,
			FailedOnly:   cfg.Audit.Recorder.FailedOnly,
			IncludeVars:  cfg.Audit.Recorder.IncludeVars,
			AsyncBuffer:  cfg.Audit.Recorder.AsyncBuffer,
			WriteTimeout: cfg.Audit.Recorder.WriteTimeout,
		}, logger)
		defer rec.Close()
		observers = append(observers, rec)
	}

	if addr := cfg.Telemetry.Metrics.ListenAddress; addr != "" && collector != nil {
		mux := http.NewServeMux()
		collector.Mount(mux, cfg.Telemetry.Metrics.Path)

		checker := health.New(2 * time.Second)
		checker.RegisterCheck("output_dir", health.WritableDir(cfg.IO.OutDir))
		if store != nil {
			checker.RegisterCheck("audit_store", store.Ping)
		}
		health.Register(mux, checker, state.Stats.Snapshot, Version)

		srvCtx, cancelSrv := context.WithCancel(ctx)
		defer cancelSrv()
		go func() {
			if err := metrics.Serve(srvCtx, addr, mux, logger); err != nil {
				logger.Warn("metrics listener stopped", "address", addr, "error", err)
			}
		}()
	}

	stopProgress := func() {}
	if runFlags.progress {
		stopProgress = startProgress(ctx, state)
	}

	sum, runErr := runner.Run(ctx, runner.Options{
		SpecPath:    src.Path,
		R1:          runFlags.r1,
		R2:          runFlags.r2,
		TrimTail:    cfg.IO.TrimTail,
		OutDir:      cfg.IO.OutDir,
		Prefix:      cfg.IO.Prefix,
		Compression: compression,
		Level:       cfg.IO.Level,
		ReportPath:  cfg.IO.ReportPath,
		FailedOnly:  cfg.IO.ReportFailedOnly,
		Clip:        runner.DefaultClip(),
		Workers:     cfg.Engine.Workers,
		Strict:      cfg.Engine.Strict,
		MaxSpecSize: cfg.Engine.MaxSpecSize,
		Engine: &engine.Config{
			WhitelistMiss: cfg.Engine.WhitelistMiss,
			EnableTrace:   cfg.Engine.Trace,
			Tracer:        tracer.Tracer(),
			Workers:       cfg.Engine.Workers,
		},
		State:     state,
		Observers: observers,
	}, logger)
	stopProgress()
	finished := time.Now()

	if rec != nil {
		rec.Close()
		recordRun(context.WithoutCancel(ctx), rec, state, src, sum, runErr, finished, logger)
	}

	if collector != nil {
		if runErr != nil {
			collector.RecordRunError()
		} else {
			collector.RecordRun(sum.Log, sum.Duration, sum.Written, sum.Dropped)
		}
		if path := cfg.Telemetry.Metrics.TextfilePath; path != "" {
			if err := collector.WriteToTextfile(path); err != nil {
				logger.Warn("failed to write metrics file", "path", path, "error", err)
			}
		}
	}

	if runErr != nil {
		tracing.SetError(span, runErr)
		return classifyRunError(runErr)
	}
	tracing.SetRunResult(span, sum.Log, sum.Written, sum.Dropped)

	sum.Pipeline = src.Ref
	if src.Commit != nil {
		sum.Commit = src.Commit.SHA
	}

	w := stdout(cmd)
	if format == cli.FormatJSON {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(w, sum)
	}
	printSummary(w, sum)
	return nil
}

// classifyRunError maps pipeline definition problems to configuration
// errors so they exit with the configuration code.
func classifyRunError(err error) error {
	var specErr *spec.Error
	var specErrs *spec.ErrorList
	if errors.As(err, &specErrs) || errors.As(err, &specErr) || engine.IsConfigurationError(err) {
		return cli.NewConfigError("pipeline", err.Error())
	}
	if errors.Is(err, context.Canceled) {
		return cli.NewCommandError("run", fmt.Errorf("interrupted: %w", err))
	}
	return cli.NewCommandError("run", err)
}

func startProgress(ctx context.Context, state *engine.RunState) func() {
	p := cli.NewProgressReporter(os.Stderr)
	p.Start(0)

	pctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		cli.Poll(pctx, p, 500*time.Millisecond, state.Stats.Snapshot)
	}()

	return func() {
		cancel()
		<-done
		p.Update(state.Stats.Snapshot().TotalReads)
		p.Finish()
	}
}

func recordRun(ctx context.Context, rec *recorder.Recorder, state *engine.RunState, src *source.Resolved, sum *runner.Summary, runErr error, finished time.Time, logger *slog.Logger) {
	log := state.Stats.Snapshot()
	if sum != nil {
		log = sum.Log
	}

	run := recorder.NewRunRecord(state.ID, runFlags.pipeline, log, state.Started, finished)
	run.Input1 = runFlags.r1
	run.Input2 = runFlags.r2
	if hash, err := recorder.HashFile(src.Path); err == nil {
		run.PipelineHash = hash
	}
	if sum != nil {
		run.PipelineName = sum.Name
		run.Output1 = sum.Output1
		run.Output2 = sum.Output2
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	if err := rec.RecordRun(ctx, run); err != nil {
		logger.Warn("failed to record run", "error", err)
	}
	if dropped := rec.Dropped(); dropped > 0 {
		logger.Warn("some verdicts were not recorded", "dropped", dropped, "recorded", rec.Recorded())
	}
}

func printSummary(w io.Writer, sum *runner.Summary) {
	fmt.Fprintf(w, "Run:            %s\n", sum.RunID)
	if sum.Name != "" {
		fmt.Fprintf(w, "Pipeline:       %s (%s)\n", sum.Name, sum.Pipeline)
	} else {
		fmt.Fprintf(w, "Pipeline:       %s\n", sum.Pipeline)
	}
	if sum.Commit != "" {
		fmt.Fprintf(w, "Commit:         %s\n", sum.Commit)
	}
	fmt.Fprintf(w, "Output:         %s\n", sum.Output1)
	fmt.Fprintf(w, "                %s\n", sum.Output2)
	if sum.Report != "" {
		fmt.Fprintf(w, "Report:         %s\n", sum.Report)
	}
	fmt.Fprintf(w, "Total reads:    %d\n", sum.Log.TotalReads)
	fmt.Fprintf(w, "Successful:     %d\n", sum.Log.SuccessfulReads)
	fmt.Fprintf(w, "Failed:         %d\n", sum.Log.FailedReads)
	fmt.Fprintf(w, "Success rate:   %.2f%%\n", sum.Log.SuccessRate)
	fmt.Fprintf(w, "Written:        %d\n", sum.Written)
	fmt.Fprintf(w, "Duration:       %s\n", sum.Duration.Round(time.Millisecond))

	printCounts(w, "Failures by step:", sum.Log.FailuresByStep)
	printCounts(w, "Soft failures by step:", sum.Log.SoftFailuresByStep)
}

// printCounts prints the non-zero counts, largest first.
func printCounts(w io.Writer, title string, counts map[string]int64) {
	ids := make([]string, 0, len(counts))
	for id, n := range counts {
		if n > 0 {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})

	fmt.Fprintln(w, title)
	for _, id := range ids {
		fmt.Fprintf(w, "  %-20s %d\n", id, counts[id])
	}
}
