package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"mercator-hq/readbreak/pkg/cli"
	"mercator-hq/readbreak/pkg/config"
	"mercator-hq/readbreak/pkg/engine"
	"mercator-hq/readbreak/pkg/runner"
	"mercator-hq/readbreak/pkg/spec"
	"mercator-hq/readbreak/pkg/watch"
)

var lintFlags struct {
	file   string
	dir    string
	strict bool
	format string
	watch  bool
}

var lintCmd = &cobra.Command{
	Use:   "lint [pipeline.yaml...]",
	Short: "Validate pipeline files",
	Long: `Validate pipeline files for syntax and semantic errors.

The lint command performs the same checks as run, without reading any
FASTQ data:
  - YAML syntax and pipeline structure
  - Operation fields (required, unknown, literal types)
  - Variable references (defined by an earlier step, params or globals)
  - Whitelist files and regex patterns
  - Template compilation and freezing

Warnings flag pipelines that are valid but probably wrong, such as a
pipeline without any must_pass step. They fail a file under --strict or
when engine.strict is set in the configuration.

Examples:
  # Lint files
  readbreak lint umi.yaml barcodes.yaml

  # Lint a directory
  readbreak lint --dir pipelines/

  # Strict mode (unknown fields and warnings are errors)
  readbreak lint umi.yaml --strict

  # JSON output for CI/CD
  readbreak lint umi.yaml --format json

  # Re-lint whenever a file or the config changes
  readbreak lint --dir pipelines/ --watch --config readbreak.yaml`,
	RunE: lintPipelines,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.file, "file", "f", "", "pipeline file to validate")
	lintCmd.Flags().StringVarP(&lintFlags.dir, "dir", "d", "", "directory of pipeline files")
	lintCmd.Flags().BoolVar(&lintFlags.strict, "strict", false, "reject unknown fields and treat warnings as errors")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
	lintCmd.Flags().BoolVar(&lintFlags.watch, "watch", false, "re-lint when files change")
}

// LintResult is the validation result for a single pipeline file.
type LintResult struct {
	File     string      `json:"file"`
	Valid    bool        `json:"valid"`
	Pipeline string      `json:"pipeline,omitempty"`
	Steps    int         `json:"steps"`
	Errors   []LintIssue `json:"errors,omitempty"`
	Warnings []LintIssue `json:"warnings,omitempty"`
}

// LintIssue is a single error or warning.
type LintIssue struct {
	Line       int    `json:"line,omitempty"`
	Column     int    `json:"column,omitempty"`
	Type       string `json:"type,omitempty"`
	StepID     string `json:"step_id,omitempty"`
	Field      string `json:"field,omitempty"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

func lintPipelines(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(lintFlags.format, cli.FormatText, cli.FormatJSON)
	if err != nil {
		return err
	}

	files, err := lintTargets(args)
	if err != nil {
		return err
	}
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	w := stdout(cmd)
	failErr := lintAndReport(w, files, format, lintStrict(cfg))
	if !lintFlags.watch {
		return failErr
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()
	return watchLint(ctx, w, args, format, cfg, logger)
}

// lintStrict reports whether warnings fail a file: --strict or
// engine.strict in the configuration.
func lintStrict(cfg *config.Config) bool {
	return lintFlags.strict || cfg.Engine.Strict
}

// watchLint re-lints after every change to the pipeline files until ctx is
// cancelled. A change to the --config file reloads the configuration first;
// an invalid file keeps the previous one.
func watchLint(ctx context.Context, w io.Writer, args []string, format cli.OutputFormat, cfg *config.Config, logger *slog.Logger) error {
	files, err := lintTargets(args)
	if err != nil {
		return err
	}
	paths := slices.Clone(files)
	if lintFlags.dir != "" {
		paths = append(paths, lintFlags.dir)
	}
	var configPath string
	if cfgFile != "" {
		if configPath, err = filepath.Abs(cfgFile); err != nil {
			return cli.NewConfigError("config", err.Error())
		}
		paths = append(paths, configPath)
	}

	wcfg := watch.DefaultConfig()
	wcfg.Paths = paths
	watcher, err := watch.New(wcfg, logger)
	if err != nil {
		return cli.NewCommandError("lint", err)
	}
	defer watcher.Close()

	fmt.Fprintln(w, "Watching for changes (Ctrl+C to stop)...")
	return watcher.Watch(ctx, func(path string) error {
		fmt.Fprintf(w, "\n--- %s changed ---\n", path)
		if path == configPath {
			if err := config.ReloadConfig(cfgFile); err != nil {
				fmt.Fprintf(w, "config not reloaded: %v\n", err)
			} else {
				cfg = config.MustGetConfig()
				logger.Info("configuration reloaded", "path", cfgFile, "strict", cfg.Engine.Strict)
			}
		}
		targets, err := lintTargets(args)
		if err != nil {
			return err
		}
		lintAndReport(w, targets, format, lintStrict(cfg))
		return nil
	})
}

// lintTargets collects the files named by args, --file and --dir.
func lintTargets(args []string) ([]string, error) {
	files := slices.Clone(args)
	if lintFlags.file != "" {
		files = append(files, lintFlags.file)
	}
	if lintFlags.dir != "" {
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(lintFlags.dir, pattern))
			if err != nil {
				return nil, fmt.Errorf("failed to list pipeline files: %w", err)
			}
			files = append(files, matches...)
		}
	}
	if len(files) == 0 {
		if lintFlags.dir != "" {
			return nil, cli.NewConfigError("dir", "no pipeline files found")
		}
		return nil, cli.NewConfigError("file", "no pipeline files given (use arguments, --file or --dir)")
	}
	return files, nil
}

// lintAndReport lints files, writes the report and returns a FailureError
// when any file has errors.
func lintAndReport(w io.Writer, files []string, format cli.OutputFormat, strict bool) error {
	results := make([]LintResult, 0, len(files))
	for _, f := range files {
		results = append(results, lintFile(f, strict))
	}

	if format == cli.FormatJSON {
		if err := cli.NewFormatter(cli.FormatJSON).FormatTo(w, results); err != nil {
			return err
		}
	} else {
		printLintResults(w, results)
	}

	failed := 0
	for _, r := range results {
		if !r.Valid {
			failed++
		}
	}
	if failed > 0 {
		return cli.NewFailureError("lint", failed, "invalid pipeline file(s)")
	}
	return nil
}

// lintFile parses, validates and compiles one pipeline file. With strict
// unknown fields are errors and any warning invalidates the file.
func lintFile(path string, strict bool) LintResult {
	result := LintResult{File: path, Valid: true}

	s, err := spec.NewParser().WithStrictMode(strict).ParseFile(path)
	if err != nil {
		result.Valid = false
		result.Errors = issuesFrom(err)
		return result
	}
	result.Pipeline = s.Name
	result.Steps = len(s.Pipeline)

	if err := spec.Validate(s); err != nil {
		result.Valid = false
		result.Errors = issuesFrom(err)
		return result
	}

	quiet := slog.New(slog.DiscardHandler)
	globals, err := spec.LoadGlobals(s, spec.LoadOptions{Logger: quiet})
	if err != nil {
		result.Valid = false
		result.Errors = issuesFrom(err)
		return result
	}
	if _, err := engine.New(s, globals, nil, nil, quiet); err != nil {
		result.Valid = false
		result.Errors = issuesFrom(err)
		return result
	}

	result.Warnings = lintWarnings(s)
	if strict && len(result.Warnings) > 0 {
		result.Valid = false
	}
	return result
}

// issuesFrom flattens the error types returned while loading a pipeline.
func issuesFrom(err error) []LintIssue {
	var list *spec.ErrorList
	if errors.As(err, &list) {
		issues := make([]LintIssue, 0, len(list.Errors))
		for _, e := range list.Errors {
			issues = append(issues, specIssue(e))
		}
		return issues
	}
	var one *spec.Error
	if errors.As(err, &one) {
		return []LintIssue{specIssue(one)}
	}
	var cfgErr *engine.ConfigurationError
	if errors.As(err, &cfgErr) {
		return []LintIssue{{
			Type:       "configuration",
			StepID:     cfgErr.StepID,
			Field:      cfgErr.Field,
			Message:    cfgErr.Message,
			Suggestion: cfgErr.Suggestion,
		}}
	}
	return []LintIssue{{Message: err.Error()}}
}

func specIssue(e *spec.Error) LintIssue {
	return LintIssue{
		Line:       e.Location.Line,
		Column:     e.Location.Column,
		Type:       string(e.Type),
		StepID:     e.StepID,
		Field:      e.Field,
		Message:    e.Message,
		Suggestion: e.Suggestion,
	}
}

// clipKeys are the variables the run command reads after the pipeline.
var clipKeys = []string{runner.KeyStartR1, runner.KeyEndR1, runner.KeyStartR2, runner.KeyEndR2, runner.KeyReadTag}

// lintWarnings reports valid constructs that are probably mistakes: a
// pipeline that cannot reject a pair, and optional steps whose result
// nothing reads.
func lintWarnings(s *spec.Spec) []LintIssue {
	var warnings []LintIssue

	mustPass := 0
	for _, st := range s.Pipeline {
		if st.MustPass {
			mustPass++
		}
	}
	if mustPass == 0 && len(s.Pipeline) > 0 {
		warnings = append(warnings, LintIssue{
			Type:    "semantic",
			Message: "pipeline has no must_pass step, so every read pair passes",
		})
	}

	g, err := spec.DependencyGraph(s)
	if err != nil {
		return warnings
	}
	adjacency, err := g.AdjacencyMap()
	if err != nil {
		return warnings
	}
	for _, st := range s.Pipeline {
		if st.MustPass || len(adjacency[st.ID]) > 0 {
			continue
		}
		stored := st.StoredNames()
		if slices.ContainsFunc(stored, func(name string) bool { return slices.Contains(clipKeys, name) }) {
			continue
		}
		warnings = append(warnings, LintIssue{
			Line:    st.Location.Line,
			Column:  st.Location.Column,
			Type:    "semantic",
			StepID:  st.ID,
			Message: "step is not must_pass and no later step reads its result",
		})
	}
	return warnings
}

func printLintResults(w io.Writer, results []LintResult) {
	var errCount, warnCount int
	for _, r := range results {
		if r.Valid {
			fmt.Fprintf(w, "✓ %s (%d steps)\n", r.File, r.Steps)
		} else {
			fmt.Fprintf(w, "✗ %s\n", r.File)
		}
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  error: %s\n", formatIssue(e))
			if e.Suggestion != "" {
				fmt.Fprintf(w, "    suggestion: %s\n", e.Suggestion)
			}
		}
		for _, wn := range r.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", formatIssue(wn))
		}
		errCount += len(r.Errors)
		warnCount += len(r.Warnings)
	}
	fmt.Fprintf(w, "\n%d file(s), %d error(s), %d warning(s)\n", len(results), errCount, warnCount)
}

func formatIssue(i LintIssue) string {
	prefix := ""
	if i.Line > 0 {
		prefix = fmt.Sprintf("line %d:%d: ", i.Line, i.Column)
	}
	if i.StepID != "" {
		prefix += fmt.Sprintf("step %q: ", i.StepID)
	}
	if i.Field != "" {
		prefix += fmt.Sprintf("field %q: ", i.Field)
	}
	return prefix + i.Message
}
