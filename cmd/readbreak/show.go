package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/readbreak/pkg/cli"
	"mercator-hq/readbreak/pkg/engine"
	"mercator-hq/readbreak/pkg/runner"
	"mercator-hq/readbreak/pkg/source"
	"mercator-hq/readbreak/pkg/spec"
)

var showFlags struct {
	yaml   bool
	dot    bool
	strict bool
	format string
}

var showCmd = &cobra.Command{
	Use:   "show <pipeline.yaml>",
	Short: "Describe a pipeline",
	Long: `Describe a pipeline after loading and compiling it.

The text output lists params, globals and steps, then shows for every step
which fields were frozen at load time and which are evaluated per read
pair, and which earlier steps it reads variables from.

Examples:
  # Human-readable description
  readbreak show umi.yaml

  # Normalized YAML
  readbreak show umi.yaml --yaml

  # A pipeline kept in a Git repository
  readbreak show "git::https://github.com/lab/pipelines.git//umi.yaml?ref=v2"

  # Step dependency graph for Graphviz
  readbreak show umi.yaml --dot | dot -Tsvg > umi.svg`,
	Args: cobra.ExactArgs(1),
	RunE: showPipeline,
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().BoolVar(&showFlags.yaml, "yaml", false, "print the pipeline as normalized YAML")
	showCmd.Flags().BoolVar(&showFlags.dot, "dot", false, "print the step dependency graph in DOT format")
	showCmd.Flags().BoolVar(&showFlags.strict, "strict", false, "reject unknown step fields")
	showCmd.Flags().StringVar(&showFlags.format, "format", "text", "output format: text, json")
}

// PipelineDescription is the JSON form of show.
type PipelineDescription struct {
	Name        string             `json:"name,omitempty"`
	Description string             `json:"description,omitempty"`
	Source      string             `json:"source"`
	Commit      *source.CommitInfo `json:"commit,omitempty"`
	Whitelists  []string           `json:"whitelists,omitempty"`
	Patterns    []string           `json:"patterns,omitempty"`
	Steps       []StepDescription  `json:"steps"`
}

// StepDescription describes one compiled step.
type StepDescription struct {
	ID        string   `json:"id"`
	Op        string   `json:"op"`
	Read      int      `json:"read,omitempty"`
	MustPass  bool     `json:"must_pass"`
	Frozen    []string `json:"frozen,omitempty"`
	Dynamic   []string `json:"dynamic,omitempty"`
	DependsOn []string `json:"depends_on,omitempty"`
	Stores    []string `json:"stores,omitempty"`
}

func showPipeline(cmd *cobra.Command, args []string) error {
	if showFlags.yaml && showFlags.dot {
		return cli.NewConfigError("flags", "--yaml and --dot are mutually exclusive")
	}
	format, err := cli.ParseFormat(showFlags.format, cli.FormatText, cli.FormatJSON)
	if err != nil {
		return err
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	src, err := resolvePipeline(context.Background(), cfg, logger, args[0])
	if err != nil {
		return err
	}

	quiet := slog.New(slog.DiscardHandler)
	p, err := runner.Load(src.Path, runner.LoadOptions{Strict: showFlags.strict, Logger: quiet})
	if err != nil {
		return cli.NewConfigError("pipeline", err.Error())
	}

	w := stdout(cmd)
	switch {
	case showFlags.yaml:
		data, err := spec.Marshal(p.Spec)
		if err != nil {
			return cli.NewCommandError("show", err)
		}
		_, err = w.Write(data)
		return err
	case showFlags.dot:
		return spec.WriteDOT(w, p.Spec)
	}

	eng, err := engine.New(p.Spec, p.Globals, nil, nil, quiet)
	if err != nil {
		return cli.NewConfigError("pipeline", err.Error())
	}
	desc, err := describePipeline(p, eng)
	if err != nil {
		return cli.NewCommandError("show", err)
	}
	desc.Commit = src.Commit

	if format == cli.FormatJSON {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(w, desc)
	}
	if src.Commit != nil {
		fmt.Fprintf(w, "# %s at %s (%s)\n", src.Ref, src.Commit.Short(), src.Commit.Branch)
	}
	fmt.Fprint(w, p.Spec.String())
	printCompiled(w, desc)
	return nil
}

func describePipeline(p *runner.Pipeline, eng *engine.Engine) (*PipelineDescription, error) {
	deps, err := spec.Dependencies(p.Spec)
	if err != nil {
		return nil, err
	}

	desc := &PipelineDescription{
		Name:        p.Spec.Name,
		Description: p.Spec.Description,
		Source:      p.Spec.Source,
		Whitelists:  p.Globals.WhitelistNames(),
		Patterns:    p.Globals.PatternNames(),
	}
	for i, info := range eng.Steps() {
		desc.Steps = append(desc.Steps, StepDescription{
			ID:        info.ID,
			Op:        info.Op,
			Read:      info.Read,
			MustPass:  info.MustPass,
			Frozen:    info.Frozen,
			Dynamic:   info.Dynamic,
			DependsOn: deps[info.ID],
			Stores:    p.Spec.Pipeline[i].StoredNames(),
		})
	}
	return desc, nil
}

func printCompiled(w io.Writer, desc *PipelineDescription) {
	fmt.Fprintln(w, "Compiled:")
	for _, st := range desc.Steps {
		fmt.Fprintf(w, "  %s\n", st.ID)
		printList(w, "frozen", st.Frozen)
		printList(w, "per read", st.Dynamic)
		printList(w, "depends on", st.DependsOn)
		printList(w, "stores", st.Stores)
	}
}

func printList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "    %-11s %s\n", label+":", strings.Join(items, ", "))
}
