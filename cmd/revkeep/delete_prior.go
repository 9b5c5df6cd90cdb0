package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/revkeep/pkg/cli"
	"mercator-hq/revkeep/pkg/config"
	"mercator-hq/revkeep/pkg/retention/pruner"
	"mercator-hq/revkeep/pkg/telemetry/logging"
	"mercator-hq/revkeep/pkg/telemetry/tracing"
)

var deletePriorFlags struct {
	includeBoundary bool
	dryRun          bool
	chunkSize       int
	yes             bool
	quiet           bool
}

var deletePriorCmd = &cobra.Command{
	Use:   "delete-prior <record-id> <revision-id>",
	Short: "Delete the revisions of a record older than a given revision",
	Long: `Delete every revision of a record that is older than the given revision
and changed content in the configured language (prune.language).

The given revision is kept unless --include-boundary is set. The current
revision of the record is never deleted.

Examples:
  # Delete everything before revision 120 of record 42
  revkeep delete-prior 42 120

  # Also delete revision 120
  revkeep delete-prior 42 120 --include-boundary --yes`,
	Args: cobra.ExactArgs(2),
	RunE: runDeletePrior,
}

func init() {
	rootCmd.AddCommand(deletePriorCmd)

	deletePriorCmd.Flags().BoolVar(&deletePriorFlags.includeBoundary, "include-boundary", false, "delete the given revision too")
	deletePriorCmd.Flags().BoolVar(&deletePriorFlags.dryRun, "dry-run", false, "report what would be deleted without deleting")
	deletePriorCmd.Flags().IntVar(&deletePriorFlags.chunkSize, "chunk-size", 0, "revisions per chunk (default from prune.chunk_size)")
	deletePriorCmd.Flags().BoolVarP(&deletePriorFlags.yes, "yes", "y", false, "do not ask for confirmation")
	deletePriorCmd.Flags().BoolVarP(&deletePriorFlags.quiet, "quiet", "q", false, "do not print progress")
}

func runDeletePrior(cmd *cobra.Command, args []string) error {
	recordID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return cli.NewConfigError("record-id", fmt.Sprintf("not a number: %q", args[0]))
	}
	boundary, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return cli.NewConfigError("revision-id", fmt.Sprintf("not a number: %q", args[1]))
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()
	ctx = logging.WithRecordID(ctx, recordID)
	ctx, span := tracer.Start(ctx, "revkeep.delete_prior")
	defer span.End()

	a, err := openApp(ctx, config.MustGetConfig(), nil)
	if err != nil {
		return cli.NewCommandError("delete-prior", err)
	}
	defer a.Close()

	if !deletePriorFlags.dryRun && !deletePriorFlags.yes {
		prior, err := a.pruner.Selector().PriorRevisions(ctx, recordID, boundary)
		if err != nil {
			return cli.NewCommandError("delete-prior", err)
		}
		n := len(prior)
		if deletePriorFlags.includeBoundary {
			n++
		}
		if n == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No prior revisions.")
			return nil
		}
		ok, err := cli.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
			fmt.Sprintf("Delete up to %d revisions of record %d?", n, recordID))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	opts := pruner.RunOptions{
		DryRun:    deletePriorFlags.dryRun,
		ChunkSize: deletePriorFlags.chunkSize,
	}
	if !deletePriorFlags.quiet {
		opts.Sink = cli.NewProgressSink(cmd.OutOrStdout())
	}

	summary, err := a.pruner.DeletePrior(ctx, recordID, boundary, deletePriorFlags.includeBoundary, opts)
	tracing.SetStatus(span, err)
	if err != nil {
		return wrapRunError("delete-prior", err)
	}

	logging.FromContext(ctx).Info("prior revisions deleted",
		"boundary", boundary,
		"deleted", summary.Deleted,
		"dry_run", summary.DryRun,
	)
	return nil
}
