// Package tracing wires OpenTelemetry tracing for revkeep.
//
// Packages create spans through the global provider with
// otel.Tracer(tracing.InstrumentationName). New installs an SDK provider that
// exports over OTLP gRPC when tracing is enabled; otherwise the global noop
// provider stays in place and spans cost almost nothing.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
// A deletion run produces one "retention.executor.run" span with one
// "retention.executor.chunk" child per chunk.
//
// # Sampling Strategies
//
//   - always: Sample all traces
//   - never: Sample no traces
//   - ratio: Sample a fraction of traces (sample_ratio)
package tracing
