// Package metrics provides Prometheus metrics for revkeep.
//
// # Overview
//
// A Collector owns its own registry and implements executor.Sink, so it
// receives the progress and summary of every deletion run it is attached
// to. Gauges derived from the persisted state (configured policies, last
// execute time) are refreshed with ObserveSettings.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	p := pruner.New(store, manager, &pruner.Config{Sink: collector})
//
//	srv, err := metrics.NewServer(collector)
//	if err != nil {
//		return err
//	}
//	go srv.Serve()
//
// Content type labels are capped by a CardinalityLimiter; values past the
// limit are reported as "other". Runs that span every policy are labelled
// "all".
package metrics
