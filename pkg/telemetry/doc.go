// Package telemetry groups the observability packages of revkeep.
//
// # Components
//
//   - logging: structured slog logging with run, content type and record
//     context
//   - metrics: Prometheus metrics for pruning runs and the stored state
//   - tracing: OpenTelemetry spans for commands and runs, exported over OTLP
//   - health: liveness and readiness probes served by the daemon
//
// # Usage
//
//	cfg := config.GetConfig()
//
//	logger, err := logging.Install(cfg.Telemetry.Logging, os.Stderr)
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	defer tracer.Shutdown(ctx)
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	p := pruner.New(store, manager, &pruner.Config{Sink: collector})
//
// The collector implements executor.Sink, so every run the pruner executes
// is recorded without further wiring.
package telemetry
