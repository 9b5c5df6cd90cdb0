package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/revkeep/pkg/cli"
	"mercator-hq/revkeep/pkg/config"
	"mercator-hq/revkeep/pkg/retention/pruner"
	"mercator-hq/revkeep/pkg/revision"
	"mercator-hq/revkeep/pkg/telemetry/health"
	"mercator-hq/revkeep/pkg/telemetry/metrics"
	"mercator-hq/revkeep/pkg/version"
)

// settingsRefreshInterval is how often the state gauges are re-read. Other
// revkeep processes may change the state database at any time.
const settingsRefreshInterval = time.Minute

var runFlags struct {
	validate bool
	noWatch  bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pruning scheduler",
	Long: `Run revkeep as a long-lived process.

The scheduler ticks on prune.schedule. Every tick consults the global
frequency; when a run is due the candidates of all policies are deleted,
capped at the per-run quantity. The Prometheus endpoint and the /health,
/ready and /version probes are served when telemetry.metrics.enabled is set,
and the configuration file is watched for changes to the log level, the
chunk size and new policies.

Examples:
  # Start with a config file
  revkeep run --config /etc/revkeep/revkeep.yaml

  # Validate the configuration and exit
  revkeep run --validate`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runFlags.validate, "validate", false, "validate config and stores without starting")
	runCmd.Flags().BoolVar(&runFlags.noWatch, "no-watch", false, "do not reload the config file on change")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg := config.MustGetConfig()

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	a, err := openApp(ctx, cfg, collector)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer a.Close()

	if runFlags.validate {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	if err := collector.ObserveSettings(ctx, a.settings); err != nil {
		slog.Warn("failed to read state for metrics", "error", err)
	}

	errChan := make(chan error, 1)

	var srv *metrics.Server
	if cfg.Telemetry.Metrics.Enabled {
		srv, err = metrics.NewServer(collector)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		health.Register(srv, newHealthChecker(a))
		go func() {
			if err := srv.Serve(); err != nil {
				errChan <- err
			}
		}()
		go refreshSettings(ctx, collector, a)
	}

	scheduler := pruner.NewScheduler(a.pruner)
	if err := scheduler.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	defer scheduler.Stop()

	if cfgFile != "" && !runFlags.noWatch {
		watcher, err := config.NewWatcher(cfgFile, config.DefaultDebounceInterval)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		defer watcher.Stop()
		go func() {
			if err := watcher.Watch(ctx, func(next *config.Config) { applyReload(ctx, a, collector, next) }); err != nil {
				slog.Error("config watcher exited", "error", err)
			}
		}()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "revkeep %s\n", version.Version)
	if next := scheduler.NextRun(); next != nil {
		fmt.Fprintf(out, "✓ Scheduler started (%s, next tick %s)\n", cfg.Prune.Schedule, next.Format(time.RFC3339))
	} else {
		fmt.Fprintln(out, "✓ Scheduler disabled (prune.schedule is empty)")
	}
	if srv != nil {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", srv.Addr(), cfg.Telemetry.Metrics.Path)
		fmt.Fprintf(out, "✓ Health endpoints: http://%s/health, /ready\n", srv.Addr())
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	select {
	case err := <-errChan:
		return cli.NewCommandError("run", err)
	case <-ctx.Done():
		fmt.Fprintln(out, "\nShutting down...")
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", "error", err)
		}
	}

	fmt.Fprintln(out, "✓ Stopped")
	return nil
}

// applyReload applies the settings that can change without a restart:
// the log level, the chunk size and newly added policies. Store, state and
// schedule changes need a restart.
func applyReload(ctx context.Context, a *app, collector *metrics.Collector, next *config.Config) {
	if logger != nil && !verbose {
		if err := logger.SetLevel(next.Telemetry.Logging.Level); err != nil {
			slog.Warn("log level not applied", "error", err)
		}
	}
	if err := a.pruner.SetChunkSize(next.Prune.ChunkSize); err != nil {
		slog.Warn("chunk size not applied", "error", err)
	}
	if _, err := a.seed(ctx, next); err != nil {
		slog.Warn("policies not seeded", "error", err)
	}
	if next.Prune.Schedule != a.cfg.Prune.Schedule {
		slog.Warn("schedule changes take effect after a restart",
			"current", a.cfg.Prune.Schedule,
			"configured", next.Prune.Schedule,
		)
	}
	if err := collector.ObserveSettings(ctx, a.settings); err != nil {
		slog.Warn("failed to read state for metrics", "error", err)
	}
}

func newHealthChecker(a *app) *health.Checker {
	checker := health.New(5 * time.Second)
	if p, ok := a.store.(revision.Pinger); ok {
		checker.RegisterCheck("store", health.StoreCheck(p))
	}
	checker.RegisterCheck("state", health.StateCheck(a.settings))
	return checker
}

func refreshSettings(ctx context.Context, collector *metrics.Collector, a *app) {
	ticker := time.NewTicker(settingsRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := collector.ObserveSettings(ctx, a.settings); err != nil {
				slog.Warn("failed to read state for metrics", "error", err)
			}
		}
	}
}
