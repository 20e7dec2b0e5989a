package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/readbreak/pkg/cli"
	"mercator-hq/readbreak/pkg/engine"
	"mercator-hq/readbreak/pkg/runner"
)

var testFlags struct {
	pipeline string
	format   string
	trace    bool
}

var testCmd = &cobra.Command{
	Use:   "test <suite.yaml...>",
	Short: "Run fixture read pairs against a pipeline",
	Long: `Run fixture read pairs against a pipeline and check the verdicts.

A suite file names its pipeline (relative to the suite) and lists cases:

  pipeline: umi.yaml
  cases:
    - name: anchored read
      r1: NNCATGACGT
      r2: ACGT
      expect:
        passed: true
        vars:
          umi: AC
    - name: no anchor
      r1: NNNNNNNN
      expect:
        passed: false
        failed_step: anchor

Examples:
  # Run a suite
  readbreak test umi_test.yaml

  # Run a suite against another pipeline file
  readbreak test umi_test.yaml --pipeline umi_v2.yaml

  # Show step transitions of failing cases
  readbreak test umi_test.yaml --trace

  # JUnit XML for CI
  readbreak test tests/*.yaml --format junit > report.xml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTests,
}

func init() {
	rootCmd.AddCommand(testCmd)

	testCmd.Flags().StringVarP(&testFlags.pipeline, "pipeline", "p", "", "pipeline file or git:: reference (overrides the suite's pipeline)")
	testCmd.Flags().StringVar(&testFlags.format, "format", "text", "output format: text, json, junit")
	testCmd.Flags().BoolVar(&testFlags.trace, "trace", false, "print step transitions of failing cases")
}

// SuiteReport is the result of one suite file.
type SuiteReport struct {
	File     string       `json:"file"`
	Pipeline string       `json:"pipeline"`
	Passed   int          `json:"passed"`
	Failed   int          `json:"failed"`
	Error    string       `json:"error,omitempty"`
	Cases    []CaseReport `json:"cases"`
	Duration float64      `json:"duration_seconds"`
}

// CaseReport is the result of one fixture case.
type CaseReport struct {
	Name       string   `json:"name"`
	Passed     bool     `json:"passed"`
	Mismatches []string `json:"mismatches,omitempty"`
	Error      string   `json:"error,omitempty"`
	FailedStep string   `json:"failed_step,omitempty"`
	Trace      []string `json:"trace,omitempty"`
	Duration   float64  `json:"duration_seconds"`
}

func runTests(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(testFlags.format, cli.FormatText, cli.FormatJSON, cli.FormatJUnit)
	if err != nil {
		return err
	}
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	ctx := context.Background()

	override := testFlags.pipeline
	if override != "" {
		src, err := resolvePipeline(ctx, cfg, logger, override)
		if err != nil {
			return err
		}
		override = src.Path
	}
	engineCfg := &engine.Config{
		WhitelistMiss: cfg.Engine.WhitelistMiss,
		EnableTrace:   testFlags.trace,
		Workers:       1,
	}

	reports := make([]SuiteReport, 0, len(args))
	for _, path := range args {
		reports = append(reports, runSuite(ctx, path, override, cfg.Engine.Strict, engineCfg))
	}

	w := stdout(cmd)
	switch format {
	case cli.FormatJSON:
		if err := cli.NewFormatter(cli.FormatJSON).FormatTo(w, reports); err != nil {
			return err
		}
	case cli.FormatJUnit:
		if err := cli.NewFormatter(cli.FormatJUnit).FormatTo(w, junitSuite(reports)); err != nil {
			return err
		}
	default:
		printTestReports(w, reports)
	}

	failed := 0
	for _, r := range reports {
		failed += r.Failed
		if r.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return cli.NewFailureError("test", failed, "failing case(s)")
	}
	return nil
}

// runSuite loads a suite and its pipeline and runs every case. A non-empty
// pipeline replaces the suite's own. Load errors are reported on the suite.
func runSuite(ctx context.Context, path, pipeline string, strict bool, engineCfg *engine.Config) (report SuiteReport) {
	start := time.Now()
	report.File = path
	defer func() { report.Duration = time.Since(start).Seconds() }()

	suite, err := runner.LoadSuite(path)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Pipeline = pipeline
	if report.Pipeline == "" {
		report.Pipeline = suite.PipelinePath()
	}
	if report.Pipeline == "" {
		report.Error = "no pipeline: set pipeline in the suite or use --pipeline"
		return report
	}

	quiet := slog.New(slog.DiscardHandler)
	p, err := runner.Load(report.Pipeline, runner.LoadOptions{Strict: strict, Logger: quiet})
	if err != nil {
		report.Error = err.Error()
		return report
	}
	cfg := *engineCfg
	eng, err := engine.New(p.Spec, p.Globals, nil, &cfg, quiet)
	if err != nil {
		report.Error = err.Error()
		return report
	}

	results, err := suite.Run(ctx, eng)
	if err != nil {
		report.Error = err.Error()
	}
	for _, r := range results {
		report.Cases = append(report.Cases, caseReport(r))
		if r.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	return report
}

func caseReport(r runner.CaseResult) CaseReport {
	c := CaseReport{
		Name:       r.Name,
		Passed:     r.Passed,
		Mismatches: r.Mismatches,
		Error:      r.Error,
		Duration:   r.Duration.Seconds(),
	}
	if r.Verdict == nil {
		return c
	}
	c.FailedStep = r.Verdict.FailedStep
	if !r.Passed && r.Verdict.Context != nil {
		for _, t := range r.Verdict.Context.Trace {
			line := fmt.Sprintf("%s: %s -> %s", t.StepID, t.From, t.To)
			if t.Detail != "" {
				line += " (" + t.Detail + ")"
			}
			c.Trace = append(c.Trace, line)
		}
	}
	return c
}

func printTestReports(w io.Writer, reports []SuiteReport) {
	var passed, failed int
	for _, r := range reports {
		if r.Pipeline != "" {
			fmt.Fprintf(w, "%s (%s)\n", r.File, r.Pipeline)
		} else {
			fmt.Fprintln(w, r.File)
		}
		for _, c := range r.Cases {
			if c.Passed {
				fmt.Fprintf(w, "  ✓ %s\n", c.Name)
				continue
			}
			fmt.Fprintf(w, "  ✗ %s\n", c.Name)
			for _, m := range c.Mismatches {
				fmt.Fprintf(w, "      %s\n", m)
			}
			if c.Error != "" {
				fmt.Fprintf(w, "      error: %s\n", c.Error)
			}
			for _, t := range c.Trace {
				fmt.Fprintf(w, "      | %s\n", t)
			}
		}
		if r.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", strings.TrimSpace(r.Error))
			failed++
		}
		passed += r.Passed
		failed += r.Failed
	}
	fmt.Fprintf(w, "\n%d passed, %d failed\n", passed, failed)
}

func junitSuite(reports []SuiteReport) cli.JUnitSuite {
	suite := cli.JUnitSuite{Name: "readbreak"}
	for _, r := range reports {
		suite.Time += r.Duration
		if r.Error != "" && len(r.Cases) == 0 {
			suite.Tests++
			suite.Errors++
			suite.Cases = append(suite.Cases, cli.JUnitCase{
				Name:      r.File,
				ClassName: r.File,
				Error:     &cli.JUnitFailure{Message: "suite error", Text: r.Error},
			})
			continue
		}
		for _, c := range r.Cases {
			jc := cli.JUnitCase{Name: c.Name, ClassName: r.File, Time: c.Duration}
			switch {
			case c.Error != "":
				jc.Error = &cli.JUnitFailure{Message: "case error", Text: c.Error}
				suite.Errors++
			case !c.Passed:
				text := strings.Join(append(slices.Clone(c.Mismatches), c.Trace...), "\n")
				jc.Failure = &cli.JUnitFailure{Message: "verdict mismatch", Text: text}
				suite.Failures++
			}
			suite.Tests++
			suite.Cases = append(suite.Cases, jc)
		}
	}
	return suite
}
