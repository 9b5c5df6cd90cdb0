package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/revkeep/pkg/cli"
	"mercator-hq/revkeep/pkg/config"
	"mercator-hq/revkeep/pkg/retention"
)

var policyFlags struct {
	keep         int
	minimumAge   string
	whenToDelete string
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage retention policies",
	Long: `Manage the retention policies stored in the state database.

A policy applies to one content type:
  minimum_revisions_to_keep  records with this many revisions or fewer are left alone
  minimum_age_to_delete      revisions younger than this are kept
  when_to_delete             records changed more recently than this are skipped

Ages are written as "N unit" with days, weeks or months. A bare number uses
the unit of the global ceiling; "0" or "off" disables the criterion.

Subcommands:
  list    - List all policies
  get     - Show one policy
  set     - Create or update a policy
  delete  - Remove a policy`,
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all policies",
	Args:  cobra.NoArgs,
	RunE:  runPolicyList,
}

var policyGetCmd = &cobra.Command{
	Use:   "get <content-type>",
	Short: "Show one policy",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicyGet,
}

var policySetCmd = &cobra.Command{
	Use:   "set <content-type>",
	Short: "Create or update a policy",
	Long: `Create or update the policy of a content type. Flags that are not given
keep their stored value.

Examples:
  # Keep 5 revisions, delete only revisions older than 3 months
  revkeep policy set article --keep 5 --minimum-age "3 months"

  # Only prune pages untouched for 6 months
  revkeep policy set page --when-to-delete 6

  # Disable the age requirement
  revkeep policy set article --minimum-age off`,
	Args: cobra.ExactArgs(1),
	RunE: runPolicySet,
}

var policyDeleteCmd = &cobra.Command{
	Use:   "delete <content-type>",
	Short: "Remove a policy",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicyDelete,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyListCmd)
	policyCmd.AddCommand(policyGetCmd)
	policyCmd.AddCommand(policySetCmd)
	policyCmd.AddCommand(policyDeleteCmd)

	policySetCmd.Flags().IntVar(&policyFlags.keep, "keep", 0, "minimum number of revisions to keep")
	policySetCmd.Flags().StringVar(&policyFlags.minimumAge, "minimum-age", "", `minimum revision age before deletion (e.g. "3 months")`)
	policySetCmd.Flags().StringVar(&policyFlags.whenToDelete, "when-to-delete", "", `record inactivity required before deletion (e.g. "6 months")`)
}

func runPolicyList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), config.MustGetConfig(), nil)
	if err != nil {
		return cli.NewCommandError("policy list", err)
	}
	defer a.Close()

	policies, err := a.settings.ListPolicies(cmd.Context())
	if err != nil {
		return cli.NewCommandError("policy list", err)
	}
	return formatter().FormatTo(cmd.OutOrStdout(), policyTable(policies...))
}

func runPolicyGet(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), config.MustGetConfig(), nil)
	if err != nil {
		return cli.NewCommandError("policy get", err)
	}
	defer a.Close()

	p, err := a.settings.GetPolicy(cmd.Context(), args[0])
	if err != nil {
		return cli.NewCommandError("policy get", err)
	}
	return formatter().FormatTo(cmd.OutOrStdout(), policyTable(p))
}

func runPolicySet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	contentType := args[0]

	a, err := openApp(ctx, config.MustGetConfig(), nil)
	if err != nil {
		return cli.NewCommandError("policy set", err)
	}
	defer a.Close()

	p, err := a.settings.GetPolicy(ctx, contentType)
	switch {
	case errors.Is(err, retention.ErrPolicyNotFound):
		if !cmd.Flags().Changed("keep") {
			return cli.NewConfigError("keep", "--keep is required for a new policy")
		}
		p = &retention.Policy{ContentType: contentType}
	case err != nil:
		return cli.NewCommandError("policy set", err)
	}

	if err := applyPolicyFlags(cmd, p); err != nil {
		return err
	}

	if err := a.settings.SavePolicy(ctx, p); err != nil {
		return cli.NewCommandError("policy set", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Policy for %s saved\n", contentType)
	return formatter().FormatTo(cmd.OutOrStdout(), policyTable(p))
}

// applyPolicyFlags copies the flags the user set onto p.
func applyPolicyFlags(cmd *cobra.Command, p *retention.Policy) error {
	if cmd.Flags().Changed("keep") {
		p.MinimumRevisionsToKeep = policyFlags.keep
	}
	if cmd.Flags().Changed("minimum-age") {
		age, err := retention.ParseAge(policyFlags.minimumAge)
		if err != nil {
			return cli.NewConfigError("minimum-age", err.Error())
		}
		p.MinimumAgeToDelete = age
	}
	if cmd.Flags().Changed("when-to-delete") {
		age, err := retention.ParseAge(policyFlags.whenToDelete)
		if err != nil {
			return cli.NewConfigError("when-to-delete", err.Error())
		}
		p.WhenToDelete = age
	}
	return nil
}

func runPolicyDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), config.MustGetConfig(), nil)
	if err != nil {
		return cli.NewCommandError("policy delete", err)
	}
	defer a.Close()

	existed, err := a.settings.DeletePolicy(cmd.Context(), args[0])
	if err != nil {
		return cli.NewCommandError("policy delete", err)
	}
	if !existed {
		return cli.NewCommandError("policy delete", fmt.Errorf("%w: %s", retention.ErrPolicyNotFound, args[0]))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Policy for %s deleted\n", args[0])
	return nil
}

func policyTable(policies ...*retention.Policy) *cli.Table {
	t := &cli.Table{Header: []string{"Content Type", "Keep", "Minimum Age", "When To Delete"}}
	for _, p := range policies {
		t.AppendRow(
			p.ContentType,
			p.MinimumRevisionsToKeep,
			describeAge(retention.FieldMinimumAgeToDelete, p.MinimumAgeToDelete),
			describeAge(retention.FieldWhenToDelete, p.WhenToDelete),
		)
	}
	return t
}

// describeAge renders a time criterion, or "-" when it is disabled.
func describeAge(field string, a retention.Age) string {
	if !a.Enabled() {
		return "-"
	}
	return retention.AgeString(field, a)
}
