package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/readbreak/pkg/cli"
	"mercator-hq/readbreak/pkg/config"
	"mercator-hq/readbreak/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile   string
	verbose   bool
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "readbreak",
	Short: "readbreak - declarative paired-read structure pipelines",
	Long: `readbreak runs YAML-declared pipelines over paired short reads.

A pipeline is an ordered list of steps:
  - match: find a reference sequence allowing wobble and mismatches
  - extract: cut a fragment, optionally checked against a whitelist
  - hamming_test: compare a fragment against a reference
  - regex_search: search a named pattern
  - test, compute: evaluate expressions over stored variables

Steps marked must_pass reject the read pair on failure. Passing pairs are
clipped to the coordinates the pipeline stores and written out.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the code matching the
// returned error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override log format (json, text, console)")
}

// setup loads the runtime configuration, applies the global flag overrides
// and installs the default logger. The returned Config is a copy that
// commands may modify.
func setup() (*config.Config, *slog.Logger, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, nil, cli.NewConfigError("config", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := *config.MustGetConfig()

	if logLevel != "" {
		cfg.Telemetry.Logging.Level = logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if logFormat != "" {
		cfg.Telemetry.Logging.Format = logFormat
	}

	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, os.Stderr))
	if err != nil {
		return nil, nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)
	return &cfg, logger, nil
}

// stdout returns the command's output writer, or os.Stdout when the command
// is invoked directly in tests.
func stdout(cmd *cobra.Command) io.Writer {
	if cmd == nil {
		return os.Stdout
	}
	return cmd.OutOrStdout()
}
