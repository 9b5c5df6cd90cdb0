package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const (
	// RunIDKey is the context key for the pruning run identifier.
	RunIDKey contextKey = "run_id"

	// ContentTypeKey is the context key for the content type being pruned.
	ContentTypeKey contextKey = "content_type"

	// RecordIDKey is the context key for a single record.
	RecordIDKey contextKey = "record_id"
)

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID retrieves the run ID from the context.
func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(RunIDKey).(string); ok {
		return id
	}
	return ""
}

// WithContentType adds a content type to the context.
func WithContentType(ctx context.Context, contentType string) context.Context {
	return context.WithValue(ctx, ContentTypeKey, contentType)
}

// GetContentType retrieves the content type from the context.
func GetContentType(ctx context.Context) string {
	if ct, ok := ctx.Value(ContentTypeKey).(string); ok {
		return ct
	}
	return ""
}

// WithRecordID adds a record ID to the context.
func WithRecordID(ctx context.Context, recordID int64) context.Context {
	return context.WithValue(ctx, RecordIDKey, recordID)
}

// GetRecordID retrieves the record ID from the context. The second result
// reports whether one was set.
func GetRecordID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(RecordIDKey).(int64)
	return id, ok
}

// FromContext returns the default logger with the context fields attached.
// Use it where records are logged without a context argument.
func FromContext(ctx context.Context) *slog.Logger {
	fields := extractContextFields(ctx)
	if len(fields) == 0 {
		return slog.Default()
	}
	return slog.Default().With(fields...)
}

// extractContextFields extracts common fields from context for logging.
func extractContextFields(ctx context.Context) []any {
	var fields []any

	if runID := GetRunID(ctx); runID != "" {
		fields = append(fields, "run_id", runID)
	}
	if ct := GetContentType(ctx); ct != "" {
		fields = append(fields, "content_type", ct)
	}
	if id, ok := GetRecordID(ctx); ok {
		fields = append(fields, "record_id", id)
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields, "trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
	}

	return fields
}
