package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/readbreak/pkg/audit"
	"mercator-hq/readbreak/pkg/audit/retention"
	"mercator-hq/readbreak/pkg/audit/storage"
	"mercator-hq/readbreak/pkg/cli"
	"mercator-hq/readbreak/pkg/config"
)

// auditStore is an audit backend that can report its health.
type auditStore interface {
	audit.Storage
	Ping(ctx context.Context) error
}

// openStorage opens the configured audit backend.
func openStorage(cfg *config.Config) (auditStore, error) {
	switch cfg.Audit.Backend {
	case "memory":
		return storage.NewMemoryStorage(), nil
	case "sqlite", "":
		path := cfg.Audit.SQLite.Path
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, cli.NewCommandError("audit", fmt.Errorf("failed to create audit directory: %w", err))
			}
		}
		s, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
			Path:         path,
			Driver:       cfg.Audit.SQLite.Driver,
			MaxOpenConns: cfg.Audit.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.Audit.SQLite.MaxIdleConns,
			WALMode:      cfg.Audit.SQLite.WALMode,
			BusyTimeout:  cfg.Audit.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, cli.NewCommandError("audit", fmt.Errorf("failed to open SQLite storage: %w", err))
		}
		return s, nil
	default:
		return nil, cli.NewConfigError("audit.backend", fmt.Sprintf("unsupported audit backend: %s", cfg.Audit.Backend))
	}
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect and prune the audit store",
	Long: `Inspect and prune the audit store.

Every readbreak run with audit enabled stores a run record (inputs, outputs,
parse log) and one verdict record per failed read pair.

Subcommands:
  list      List recorded runs
  verdicts  List the verdicts recorded for a run
  prune     Delete old runs according to the retention policy`,
}

var auditListFlags struct {
	pipeline string
	since    string
	limit    int
	format   string
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs",
	Long: `List recorded runs, newest first.

Examples:
  # Last 20 runs
  readbreak audit list

  # Runs of one pipeline in the last week, as CSV
  readbreak audit list --pipeline umi.yaml --since 168h --format csv`,
	RunE: auditList,
}

var auditVerdictsFlags struct {
	run    string
	step   string
	limit  int
	format string
}

var auditVerdictsCmd = &cobra.Command{
	Use:   "verdicts",
	Short: "List the verdicts recorded for a run",
	Long: `List the verdicts recorded for a run.

Examples:
  # Failed pairs of a run
  readbreak audit verdicts --run 3f0c...

  # Only pairs rejected by the anchor step, as JSON
  readbreak audit verdicts --run 3f0c... --step anchor --format json`,
	RunE: auditVerdicts,
}

var auditPruneFlags struct {
	days     int
	maxRuns  int64
	schedule string
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old runs",
	Long: `Delete runs older than the retention period, then the oldest runs
beyond the run cap. Verdicts are deleted with their run.

With --schedule the command stays resident and prunes on the given cron
expression until interrupted.

Examples:
  # Apply the configured retention policy once
  readbreak audit prune

  # Keep 30 days and at most 500 runs
  readbreak audit prune --days 30 --max-runs 500

  # Prune daily at 3 AM
  readbreak audit prune --schedule "0 3 * * *"`,
	RunE: auditPrune,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd, auditVerdictsCmd, auditPruneCmd)

	auditListCmd.Flags().StringVar(&auditListFlags.pipeline, "pipeline", "", "only runs of this pipeline file")
	auditListCmd.Flags().StringVar(&auditListFlags.since, "since", "", "only runs started within this duration (e.g. 24h)")
	auditListCmd.Flags().IntVarP(&auditListFlags.limit, "limit", "n", 20, "maximum number of runs")
	auditListCmd.Flags().StringVar(&auditListFlags.format, "format", "text", "output format: text, json, yaml, csv")

	auditVerdictsCmd.Flags().StringVar(&auditVerdictsFlags.run, "run", "", "run id (required)")
	auditVerdictsCmd.Flags().StringVar(&auditVerdictsFlags.step, "step", "", "only pairs rejected by this step")
	auditVerdictsCmd.Flags().IntVarP(&auditVerdictsFlags.limit, "limit", "n", 100, "maximum number of verdicts")
	auditVerdictsCmd.Flags().StringVar(&auditVerdictsFlags.format, "format", "text", "output format: text, json, yaml, csv")

	auditPruneCmd.Flags().IntVar(&auditPruneFlags.days, "days", -1, "override retention days (0 keeps runs forever)")
	auditPruneCmd.Flags().Int64Var(&auditPruneFlags.maxRuns, "max-runs", -1, "override maximum number of runs (0 is unlimited)")
	auditPruneCmd.Flags().StringVar(&auditPruneFlags.schedule, "schedule", "", "prune on this cron expression until interrupted")
}

// runTable renders runs as a table.
type runTable []*audit.RunRecord

func (t runTable) Header() []string {
	return []string{"RUN", "PIPELINE", "STARTED", "DURATION", "READS", "FAILED", "RATE", "ERROR"}
}

func (t runTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{
			r.ID,
			r.Pipeline,
			r.StartedAt.Format(time.RFC3339),
			r.Duration().Round(time.Millisecond).String(),
			strconv.FormatInt(r.TotalReads, 10),
			strconv.FormatInt(r.FailedReads, 10),
			strconv.FormatFloat(r.SuccessRate, 'f', 2, 64) + "%",
			r.Error,
		})
	}
	return rows
}

// verdictTable renders verdicts as a table.
type verdictTable []*audit.VerdictRecord

func (t verdictTable) Header() []string {
	return []string{"READ", "PASSED", "FAILED_STEP", "MESSAGE"}
}

func (t verdictTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, v := range t {
		rows = append(rows, []string{v.ReadID, strconv.FormatBool(v.Passed), v.FailedStep, v.Message})
	}
	return rows
}

func auditList(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(auditListFlags.format, cli.FormatText, cli.FormatJSON, cli.FormatYAML, cli.FormatCSV)
	if err != nil {
		return err
	}
	q := &audit.Query{
		Pipeline: auditListFlags.pipeline,
		Limit:    auditListFlags.limit,
	}
	if auditListFlags.since != "" {
		d, err := time.ParseDuration(auditListFlags.since)
		if err != nil {
			return cli.NewConfigError("since", err.Error())
		}
		start := time.Now().Add(-d)
		q.StartTime = &start
	}

	cfg, _, err := setup()
	if err != nil {
		return err
	}
	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.QueryRuns(context.Background(), q)
	if err != nil {
		return cli.NewCommandError("audit list", err)
	}
	if format == cli.FormatJSON || format == cli.FormatYAML {
		return cli.NewFormatter(format).FormatTo(stdout(cmd), runs)
	}
	return cli.NewFormatter(format).FormatTo(stdout(cmd), runTable(runs))
}

func auditVerdicts(cmd *cobra.Command, args []string) error {
	if auditVerdictsFlags.run == "" {
		return cli.NewConfigError("run", "--run is required")
	}
	format, err := cli.ParseFormat(auditVerdictsFlags.format, cli.FormatText, cli.FormatJSON, cli.FormatYAML, cli.FormatCSV)
	if err != nil {
		return err
	}

	cfg, _, err := setup()
	if err != nil {
		return err
	}
	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	verdicts, err := store.QueryVerdicts(context.Background(), &audit.Query{
		RunID:     auditVerdictsFlags.run,
		StepID:    auditVerdictsFlags.step,
		Limit:     auditVerdictsFlags.limit,
		SortOrder: "asc",
	})
	if err != nil {
		return cli.NewCommandError("audit verdicts", err)
	}
	if format == cli.FormatJSON || format == cli.FormatYAML {
		return cli.NewFormatter(format).FormatTo(stdout(cmd), verdicts)
	}
	return cli.NewFormatter(format).FormatTo(stdout(cmd), verdictTable(verdicts))
}

func auditPrune(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	rc := &retention.Config{
		RetentionDays: cfg.Audit.Retention.Days,
		MaxRuns:       cfg.Audit.Retention.MaxRuns,
		PruneSchedule: cfg.Audit.Retention.PruneSchedule,
	}
	if auditPruneFlags.days >= 0 {
		rc.RetentionDays = auditPruneFlags.days
	}
	if auditPruneFlags.maxRuns >= 0 {
		rc.MaxRuns = auditPruneFlags.maxRuns
	}
	if auditPruneFlags.schedule != "" {
		rc.PruneSchedule = auditPruneFlags.schedule
	}

	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	pruner := retention.NewPruner(store, rc, logger)

	if auditPruneFlags.schedule == "" {
		deleted, err := pruner.Prune(context.Background())
		if err != nil {
			return cli.NewCommandError("audit prune", err)
		}
		fmt.Fprintf(stdout(cmd), "✓ Deleted %d run(s)\n", deleted)
		return nil
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	scheduler := retention.NewScheduler(pruner)
	if err := scheduler.Start(ctx); err != nil {
		return cli.NewConfigError("schedule", err.Error())
	}
	defer scheduler.Stop()

	if next := scheduler.NextRun(); next != nil {
		fmt.Fprintf(stdout(cmd), "Pruning on %q, next run at %s\n", rc.PruneSchedule, next.Format(time.RFC3339))
	}
	<-ctx.Done()
	return nil
}
