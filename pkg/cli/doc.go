/*
Package cli provides command-line interface utilities for revkeep.

The cli package includes output formatters, a terminal progress sink, and
common helpers used by the revkeep command.

Output Formatting:

Command results are printed as aligned tables, JSON, YAML or CSV:

	t := &cli.Table{Header: []string{"Content Type", "Keep"}}
	t.AppendRow("article", 3)
	if err := cli.NewFormatter(cli.FormatText).FormatTo(os.Stdout, t); err != nil {
		return err
	}

Progress Reporting:

ProgressSink implements executor.Sink and prints one status line per chunk:

	[█████████░░░░░░] Deleted 30 out of 50 (60%). Estimated time: 4s.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()
*/
package cli
