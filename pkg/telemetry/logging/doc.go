// Package logging configures structured logging for revkeep.
//
// # Overview
//
// The package builds a log/slog logger from the telemetry.logging section
// of the configuration and installs it as the process default, so every
// component that calls slog.Default() picks it up:
//
//	logger, err := logging.Install(cfg.Telemetry.Logging, os.Stderr)
//	if err != nil {
//	    return err
//	}
//
// The level is held in a slog.LevelVar and can be changed after a
// configuration reload without rebuilding handlers:
//
//	_ = logger.SetLevel("debug")
//
// # Context fields
//
// Run identifiers travel in the context. Records logged with the *Context
// variants (InfoContext, ErrorContext, ...) carry them automatically, as do
// the trace and span IDs of an active OpenTelemetry span:
//
//	ctx = logging.WithRunID(ctx, runID)
//	ctx = logging.WithContentType(ctx, "article")
//	slog.InfoContext(ctx, "pruning started")
//	// ... run_id=... content_type=article
package logging
