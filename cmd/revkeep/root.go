package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/revkeep/pkg/cli"
	"mercator-hq/revkeep/pkg/config"
	"mercator-hq/revkeep/pkg/telemetry/logging"
	"mercator-hq/revkeep/pkg/telemetry/tracing"
	"mercator-hq/revkeep/pkg/version"
)

var (
	// Global flags
	cfgFile      string
	verbose      bool
	outputFormat string
)

var (
	logger *logging.Logger
	tracer *tracing.Tracer
)

var rootCmd = &cobra.Command{
	Use:   "revkeep",
	Short: "revkeep - revision retention and pruning",
	Long: `revkeep deletes old revisions of versioned content according to
per-content-type retention policies.

A policy keeps a minimum number of revisions per record and can require
revisions (or whole records) to reach an age before anything is deleted.
Deletion runs in chunks, can be previewed with --dry-run, and can be
triggered manually or on a schedule gated by a global frequency.`,
	Version:           version.Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	teardown()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.ExitCode(err))
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults and REVKEEP_* environment when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format (text, json, yaml, csv)")
}

// setup loads the configuration and installs logging and tracing for every
// command except version.
func setup(cmd *cobra.Command, args []string) error {
	if cmd == versionCmd {
		return nil
	}
	if _, err := cli.ParseOutputFormat(outputFormat); err != nil {
		return cli.NewConfigError("output", err.Error())
	}

	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("config", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	logCfg := cfg.Telemetry.Logging
	if verbose {
		logCfg.Level = "debug"
	}
	l, err := logging.Install(logCfg, cmd.ErrOrStderr())
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	logger = l

	t, err := tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	tracer = t

	return nil
}

// teardown flushes pending spans. It runs after every command, including
// failed ones.
func teardown() {
	if tracer != nil {
		if err := tracer.Shutdown(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}
}

// formatter returns the formatter selected by --output.
func formatter() cli.Formatter {
	format, _ := cli.ParseOutputFormat(outputFormat)
	return cli.NewFormatter(format)
}
