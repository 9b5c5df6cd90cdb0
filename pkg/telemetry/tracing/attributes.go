package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys use the "revkeep.*" namespace.
const (
	AttrRunID       = "revkeep.run_id"
	AttrContentType = "revkeep.content_type"
	AttrDryRun      = "revkeep.dry_run"
	AttrTotal       = "revkeep.candidates.total"

	AttrChunkIndex   = "revkeep.chunk.index"
	AttrChunkSize    = "revkeep.chunk.size"
	AttrChunkDeleted = "revkeep.chunk.deleted"
	AttrChunkSkipped = "revkeep.chunk.skipped"

	AttrErrorType    = "revkeep.error.type"
	AttrErrorMessage = "error.message"
)

// SetRunAttributes sets the attributes of a deletion run span.
func SetRunAttributes(span trace.Span, runID, contentType string, dryRun bool, total int) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrRunID, runID),
		attribute.Bool(AttrDryRun, dryRun),
		attribute.Int(AttrTotal, total),
	}
	if contentType != "" {
		attrs = append(attrs, attribute.String(AttrContentType, contentType))
	}
	span.SetAttributes(attrs...)
}

// SetChunkAttributes sets the attributes of a chunk span.
func SetChunkAttributes(span trace.Span, index, size, deleted, skipped int) {
	span.SetAttributes(
		attribute.Int(AttrChunkIndex, index),
		attribute.Int(AttrChunkSize, size),
		attribute.Int(AttrChunkDeleted, deleted),
		attribute.Int(AttrChunkSkipped, skipped),
	)
}

// SetErrorAttributes records err on the span and marks it failed.
//
// Example:
//
//	SetErrorAttributes(span, err, "failed")
func SetErrorAttributes(span trace.Span, err error, errorType string) {
	if err == nil {
		return
	}

	span.SetAttributes(
		attribute.Bool("error", true),
		attribute.String(AttrErrorType, errorType),
		attribute.String(AttrErrorMessage, err.Error()),
	)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
