package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/revkeep/pkg/cli"
	"mercator-hq/revkeep/pkg/config"
	"mercator-hq/revkeep/pkg/retention"
)

var frequencyFlags struct {
	list bool
}

var lastExecuteFlags struct {
	reset bool
}

var frequencyCmd = &cobra.Command{
	Use:   "frequency [key]",
	Short: "Show or set how often scheduled runs may happen",
	Long: `Show or set the global frequency. A scheduled tick only deletes anything
when at least this much time has passed since the last completed run.

Keys: never, every_time, every_hour, everyday, every_week, every_10_days,
every_15_days, every_month, every_3_months, every_6_months, every_year,
every_2_years, or every_<n>_days|weeks|months.

Examples:
  revkeep frequency
  revkeep frequency every_week
  revkeep frequency --list`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFrequency,
}

var perRunCmd = &cobra.Command{
	Use:   "per-run [n]",
	Short: "Show or set the number of revisions deleted per scheduled run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPerRun,
}

var lastExecuteCmd = &cobra.Command{
	Use:   "last-execute",
	Short: "Show when the last deletion run completed",
	Args:  cobra.NoArgs,
	RunE:  runLastExecute,
}

var ceilingCmd = &cobra.Command{
	Use:   "ceiling <minimum_age_to_delete|when_to_delete> [max] [unit]",
	Short: "Show or set the global maximum of a time criterion",
	Long: `Show or set the global ceiling of a time criterion. Policies may not
exceed the ceiling; lowering it clamps the policies above the new maximum.

Examples:
  revkeep ceiling when_to_delete
  revkeep ceiling when_to_delete 6
  revkeep ceiling minimum_age_to_delete 30 days`,
	Args: cobra.RangeArgs(1, 3),
	RunE: runCeiling,
}

func init() {
	rootCmd.AddCommand(frequencyCmd)
	rootCmd.AddCommand(perRunCmd)
	rootCmd.AddCommand(lastExecuteCmd)
	rootCmd.AddCommand(ceilingCmd)

	frequencyCmd.Flags().BoolVar(&frequencyFlags.list, "list", false, "list the named frequencies")
	lastExecuteCmd.Flags().BoolVar(&lastExecuteFlags.reset, "reset", false, "forget the last run so the next scheduled tick is due")
}

func runFrequency(cmd *cobra.Command, args []string) error {
	if frequencyFlags.list {
		t := &cli.Table{Header: []string{"Key", "Label"}}
		for _, key := range retention.FrequencyKeys {
			label, _ := retention.FrequencyLabel(key)
			t.AppendRow(key, label)
		}
		return formatter().FormatTo(cmd.OutOrStdout(), t)
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, config.MustGetConfig(), nil)
	if err != nil {
		return cli.NewCommandError("frequency", err)
	}
	defer a.Close()

	if len(args) == 1 {
		if err := a.settings.SetFrequency(ctx, args[0]); err != nil {
			return cli.NewCommandError("frequency", err)
		}
	}

	key, err := a.settings.Frequency(ctx)
	if err != nil {
		return cli.NewCommandError("frequency", err)
	}
	label, err := retention.FrequencyLabel(key)
	if err != nil {
		return cli.NewCommandError("frequency", err)
	}

	t := &cli.Table{Header: []string{"Key", "Label"}}
	t.AppendRow(key, label)
	return formatter().FormatTo(cmd.OutOrStdout(), t)
}

func runPerRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, config.MustGetConfig(), nil)
	if err != nil {
		return cli.NewCommandError("per-run", err)
	}
	defer a.Close()

	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return cli.NewConfigError("n", fmt.Sprintf("not a number: %q", args[0]))
		}
		if err := a.settings.SetRevisionsPerRun(ctx, n); err != nil {
			return cli.NewCommandError("per-run", err)
		}
	}

	n, err := a.settings.RevisionsPerRun(ctx)
	if err != nil {
		return cli.NewCommandError("per-run", err)
	}
	return formatter().FormatTo(cmd.OutOrStdout(), n)
}

func runLastExecute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, config.MustGetConfig(), nil)
	if err != nil {
		return cli.NewCommandError("last-execute", err)
	}
	defer a.Close()

	if lastExecuteFlags.reset {
		if err := a.settings.SetLastExecute(ctx, time.Time{}); err != nil {
			return cli.NewCommandError("last-execute", err)
		}
	}

	last, err := a.settings.LastExecute(ctx)
	if err != nil {
		return cli.NewCommandError("last-execute", err)
	}
	freq, err := a.settings.Frequency(ctx)
	if err != nil {
		return cli.NewCommandError("last-execute", err)
	}
	due, err := retention.Eligible(freq, last, time.Now())
	if err != nil {
		return cli.NewCommandError("last-execute", err)
	}

	lastText := "never"
	if !last.IsZero() {
		lastText = last.Local().Format(time.RFC3339)
	}

	t := &cli.Table{Header: []string{"Last Execute", "Frequency", "Due"}}
	t.AppendRow(lastText, freq, due)
	return formatter().FormatTo(cmd.OutOrStdout(), t)
}

func runCeiling(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	field := args[0]
	if !retention.ValidTimeField(field) {
		return cli.NewConfigError("field", fmt.Sprintf("unknown time field %q (must be minimum_age_to_delete or when_to_delete)", field))
	}

	a, err := openApp(ctx, config.MustGetConfig(), nil)
	if err != nil {
		return cli.NewCommandError("ceiling", err)
	}
	defer a.Close()

	if len(args) > 1 {
		maxNumber, err := strconv.Atoi(args[1])
		if err != nil {
			return cli.NewConfigError("max", fmt.Sprintf("not a number: %q", args[1]))
		}

		var clamped []string
		if len(args) == 3 {
			var unit retention.Unit
			if unit, err = retention.ParseUnit(args[2]); err != nil {
				return cli.NewConfigError("unit", err.Error())
			}
			clamped, err = a.settings.SetCeiling(ctx, field, retention.Ceiling{MaxNumber: maxNumber, Unit: unit})
		} else {
			clamped, err = a.settings.LowerGlobalCeiling(ctx, field, maxNumber)
		}
		for _, ct := range clamped {
			fmt.Fprintf(cmd.ErrOrStderr(), "Policy for %s lowered to the new maximum\n", ct)
		}
		if err != nil {
			return cli.NewCommandError("ceiling", err)
		}
	}

	c, err := a.settings.Ceiling(ctx, field)
	if err != nil {
		return cli.NewCommandError("ceiling", err)
	}

	t := &cli.Table{Header: []string{"Field", "Max Number", "Unit"}}
	t.AppendRow(field, c.MaxNumber, string(c.Unit))
	return formatter().FormatTo(cmd.OutOrStdout(), t)
}
