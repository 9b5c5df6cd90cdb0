// Package health serves the liveness and readiness probes of the revkeep
// daemon.
//
// The daemon mounts three endpoints next to the metrics endpoint:
//
//   - /health: the process is running
//   - /ready: the content store and the state backend answer
//   - /version: build information
//
// Readiness checks run concurrently, each bounded by the checker timeout.
// A failing or slow check turns the status to "degraded" and the endpoint
// answers 503.
//
// # Usage
//
//	checker := health.New(5 * time.Second)
//	if p, ok := store.(revision.Pinger); ok {
//	    checker.RegisterCheck("store", health.StoreCheck(p))
//	}
//	checker.RegisterCheck("state", health.StateCheck(manager))
//	health.Register(mux, checker)
package health
