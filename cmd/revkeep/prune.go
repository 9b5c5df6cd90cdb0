package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/revkeep/pkg/cli"
	"mercator-hq/revkeep/pkg/config"
	"mercator-hq/revkeep/pkg/retention/executor"
	"mercator-hq/revkeep/pkg/retention/pruner"
	"mercator-hq/revkeep/pkg/telemetry/logging"
	"mercator-hq/revkeep/pkg/telemetry/tracing"
)

var pruneFlags struct {
	dryRun    bool
	chunkSize int
	limit     int
	records   []int64
	scheduled bool
	yes       bool
	quiet     bool
}

var pruneCmd = &cobra.Command{
	Use:   "prune [content-type]",
	Short: "Delete the candidate revisions of a content type",
	Long: `Delete the revisions selected by the retention policy of a content type.

With --records only the listed records are considered. With --scheduled the
command behaves like one scheduler tick: nothing happens unless the global
frequency says a run is due, and the candidates of every policy are deleted
up to the per-run quantity.

Examples:
  # Preview a run
  revkeep prune article --dry-run

  # Delete without asking
  revkeep prune article --yes

  # Only two records, 10 revisions per chunk
  revkeep prune article --records 12,40 --chunk-size 10

  # One scheduled tick (for cron or systemd timers)
  revkeep prune --scheduled`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().BoolVar(&pruneFlags.dryRun, "dry-run", false, "report what would be deleted without deleting")
	pruneCmd.Flags().IntVar(&pruneFlags.chunkSize, "chunk-size", 0, "revisions per chunk (default from prune.chunk_size)")
	pruneCmd.Flags().IntVar(&pruneFlags.limit, "limit", 0, "maximum number of revisions to delete")
	pruneCmd.Flags().Int64SliceVar(&pruneFlags.records, "records", nil, "restrict the run to these record ids")
	pruneCmd.Flags().BoolVar(&pruneFlags.scheduled, "scheduled", false, "run as a scheduled tick honoring the frequency")
	pruneCmd.Flags().BoolVarP(&pruneFlags.yes, "yes", "y", false, "do not ask for confirmation")
	pruneCmd.Flags().BoolVarP(&pruneFlags.quiet, "quiet", "q", false, "do not print progress")
}

func runPrune(cmd *cobra.Command, args []string) error {
	switch {
	case pruneFlags.scheduled && len(args) > 0:
		return cli.NewConfigError("content-type", "cannot be combined with --scheduled")
	case !pruneFlags.scheduled && len(args) == 0:
		return cli.NewConfigError("content-type", "a content type is required (or use --scheduled)")
	case pruneFlags.scheduled && len(pruneFlags.records) > 0:
		return cli.NewConfigError("records", "cannot be combined with --scheduled")
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	a, err := openApp(ctx, config.MustGetConfig(), nil)
	if err != nil {
		return cli.NewCommandError("prune", err)
	}
	defer a.Close()

	opts := pruner.RunOptions{
		DryRun:    pruneFlags.dryRun,
		ChunkSize: pruneFlags.chunkSize,
		Limit:     pruneFlags.limit,
	}
	if !pruneFlags.quiet {
		opts.Sink = cli.NewProgressSink(cmd.OutOrStdout())
	}

	if pruneFlags.scheduled {
		ctx, span := tracer.Start(ctx, "revkeep.prune.scheduled")
		defer span.End()

		_, err := a.pruner.RunScheduled(ctx, opts)
		tracing.SetStatus(span, err)
		if errors.Is(err, pruner.ErrNotDue) {
			fmt.Fprintln(cmd.OutOrStdout(), "Not due yet; nothing to do.")
			return nil
		}
		return wrapRunError("prune", err)
	}

	contentType := args[0]
	ctx = logging.WithContentType(ctx, contentType)
	ctx, span := tracer.Start(ctx, "revkeep.prune")
	defer span.End()

	if !pruneFlags.dryRun && !pruneFlags.yes {
		ok, err := confirmPrune(ctx, cmd, a, contentType)
		if err != nil || !ok {
			tracing.SetStatus(span, err)
			return err
		}
	}

	if len(pruneFlags.records) > 0 {
		_, err = a.pruner.PruneRecords(ctx, contentType, pruneFlags.records, opts)
	} else {
		_, err = a.pruner.PruneContentType(ctx, contentType, opts)
	}
	tracing.SetStatus(span, err)
	return wrapRunError("prune", err)
}

// confirmPrune plans the run and asks before deleting anything.
func confirmPrune(ctx context.Context, cmd *cobra.Command, a *app, contentType string) (bool, error) {
	plan, err := a.pruner.Plan(ctx, contentType)
	if err != nil {
		return false, cli.NewCommandError("prune", err)
	}

	n := len(plan.Refs)
	if len(pruneFlags.records) > 0 {
		n = 0
		wanted := make(map[int64]bool, len(pruneFlags.records))
		for _, id := range pruneFlags.records {
			wanted[id] = true
		}
		for _, ref := range plan.Refs {
			if wanted[ref.RecordID] {
				n++
			}
		}
	}
	if pruneFlags.limit > 0 && n > pruneFlags.limit {
		n = pruneFlags.limit
	}
	if n == 0 {
		return true, nil
	}

	ok, err := cli.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
		fmt.Sprintf("Delete %d revisions of %s?", n, contentType))
	if err != nil {
		return false, err
	}
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
	}
	return ok, nil
}

// wrapRunError wraps run failures. Cancellation is passed through so that
// the exit code reflects it.
func wrapRunError(command string, err error) error {
	if err == nil || errors.Is(err, executor.ErrCancelled) {
		return err
	}
	return cli.NewCommandError(command, err)
}
