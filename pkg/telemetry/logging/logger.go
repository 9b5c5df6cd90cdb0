package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"mercator-hq/revkeep/pkg/config"
)

// Format represents the log output format.
type Format string

const (
	// FormatJSON outputs logs as JSON objects (one per line).
	FormatJSON Format = "json"

	// FormatText outputs logs as logfmt key=value pairs.
	FormatText Format = "text"

	// FormatConsole outputs human-readable logs for terminals.
	FormatConsole Format = "console"
)

// Logger is a slog.Logger whose level can be changed at runtime.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// New creates a logger from cfg writing to w. A nil writer means stderr.
func New(cfg config.LoggingConfig, w io.Writer) (*Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	format, err := parseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	if w == nil {
		w = os.Stderr
	}

	lv := new(slog.LevelVar)
	lv.Set(level)

	opts := &slog.HandlerOptions{
		Level:     lv,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	case FormatText, FormatConsole:
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(&contextHandler{Handler: handler}),
		level:  lv,
	}, nil
}

// Install creates a logger with New and makes it the slog default.
func Install(cfg config.LoggingConfig, w io.Writer) (*Logger, error) {
	logger, err := New(cfg, w)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger.Logger)
	return logger, nil
}

// SetLevel changes the minimum level of the logger and everything derived
// from it.
func (l *Logger) SetLevel(level string) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}
	l.level.Set(lvl)
	return nil
}

// Level returns the current minimum level.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", level)
	}
}

// parseFormat converts a string format to Format.
func parseFormat(format string) (Format, error) {
	switch strings.ToLower(format) {
	case "json", "":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	case "console":
		return FormatConsole, nil
	default:
		return FormatJSON, fmt.Errorf("invalid log format %q (must be json, text, or console)", format)
	}
}

// contextHandler adds the context fields to every record.
type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if fields := extractContextFields(ctx); len(fields) > 0 {
			r.Add(fields...)
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}
