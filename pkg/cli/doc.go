/*
Package cli provides command-line helpers used by the readbreak command.

Output Formatting:

Command results can be printed as text, JSON, YAML, CSV or JUnit XML:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, summary); err != nil {
		return err
	}

Values implementing Table are rendered as aligned columns in text format
and as rows in CSV.

Progress Reporting:

A run streams pairs from FASTQ so the total is usually unknown:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(0)
	go cli.Poll(ctx, progress, time.Second, state.Stats.Snapshot)
	...
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()
*/
package cli
