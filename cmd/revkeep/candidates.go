package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/revkeep/pkg/cli"
	"mercator-hq/revkeep/pkg/config"
	"mercator-hq/revkeep/pkg/retention"
	"mercator-hq/revkeep/pkg/retention/report"
	"mercator-hq/revkeep/pkg/telemetry/logging"
	"mercator-hq/revkeep/pkg/telemetry/tracing"
)

var candidatesFlags struct {
	outFile string
}

var candidatesCmd = &cobra.Command{
	Use:   "candidates <content-type>",
	Short: "List the revisions a prune would delete",
	Long: `List the candidate revisions of a content type without deleting anything.

The text output prints one line per revision. JSON, YAML and
CSV output produce a report that can be archived or reviewed before a run.

Examples:
  # Table on the terminal
  revkeep candidates article

  # CSV report written to a file
  revkeep candidates article -o csv --out article.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runCandidates,
}

func init() {
	rootCmd.AddCommand(candidatesCmd)

	candidatesCmd.Flags().StringVar(&candidatesFlags.outFile, "out", "", "write the report to a file instead of stdout")
}

func runCandidates(cmd *cobra.Command, args []string) error {
	contentType := args[0]
	ctx := logging.WithContentType(cmd.Context(), contentType)
	ctx, span := tracer.Start(ctx, "revkeep.candidates")
	defer span.End()

	a, err := openApp(ctx, config.MustGetConfig(), nil)
	if err != nil {
		return cli.NewCommandError("candidates", err)
	}
	defer a.Close()

	plan, err := a.pruner.Plan(ctx, contentType)
	tracing.SetStatus(span, err)
	if err != nil {
		return cli.NewCommandError("candidates", err)
	}

	rep := report.New(plan.Policy, plan.Records, time.Now())

	var w io.Writer = cmd.OutOrStdout()
	if candidatesFlags.outFile != "" {
		f, err := os.Create(candidatesFlags.outFile)
		if err != nil {
			return cli.NewCommandError("candidates", err)
		}
		defer f.Close()
		w = f
	}

	format, _ := cli.ParseOutputFormat(outputFormat)
	switch format {
	case cli.FormatJSON:
		return report.NewJSONExporter(true).Export(ctx, rep, w)
	case cli.FormatCSV:
		return report.NewCSVExporter(true).Export(ctx, rep, w)
	case cli.FormatYAML:
		return cli.NewFormatter(format).FormatTo(w, rep)
	}

	fmt.Fprintf(w, "Policy for %s: keep %d, minimum age %s, when to delete %s\n\n",
		contentType,
		rep.Policy.MinimumRevisionsToKeep,
		describeAge(retention.FieldMinimumAgeToDelete, rep.Policy.MinimumAgeToDelete),
		describeAge(retention.FieldWhenToDelete, rep.Policy.WhenToDelete),
	)
	if rep.Total == 0 {
		fmt.Fprintln(w, "No candidate revisions.")
		return nil
	}

	t := &cli.Table{Header: []string{"Record", "Title", "Owner", "Status", "Changed", "Revision", "Revisions"}}
	for _, row := range rep.Candidates {
		t.AppendRow(row.RecordID, row.Title, row.Owner, row.Status, row.Changed.Format("2006-01-02"), row.RevisionID, row.RevisionCount)
	}
	if err := cli.NewFormatter(cli.FormatText).FormatTo(w, t); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d revisions in %d records.\n", rep.Total, rep.Records)
	return nil
}
