package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"mercator-hq/revkeep/pkg/config"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()

	if GetRunID(ctx) != "" || GetContentType(ctx) != "" {
		t.Error("empty context returned values")
	}
	if _, ok := GetRecordID(ctx); ok {
		t.Error("empty context returned a record ID")
	}

	ctx = WithRunID(ctx, "run-1")
	ctx = WithContentType(ctx, "article")
	ctx = WithRecordID(ctx, 42)

	if got := GetRunID(ctx); got != "run-1" {
		t.Errorf("GetRunID() = %q", got)
	}
	if got := GetContentType(ctx); got != "article" {
		t.Errorf("GetContentType() = %q", got)
	}
	if got, ok := GetRecordID(ctx); !ok || got != 42 {
		t.Errorf("GetRecordID() = %d, %v", got, ok)
	}
}

func TestContextHandler_AddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx := WithContentType(WithRunID(context.Background(), "run-7"), "page")
	logger.InfoContext(ctx, "chunk processed")

	out := buf.String()
	for _, want := range []string{"run_id=run-7", "content_type=page"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestContextHandler_TraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "run")
	defer span.End()

	logger.InfoContext(ctx, "traced")

	want := "trace_id=" + span.SpanContext().TraceID().String()
	if !strings.Contains(buf.String(), want) {
		t.Errorf("output %q missing %q", buf.String(), want)
	}
}

func TestFromContext(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))

	FromContext(WithRecordID(context.Background(), 9)).Info("deleted prior revisions")
	if !strings.Contains(buf.String(), "record_id=9") {
		t.Errorf("output %q missing record_id", buf.String())
	}

	buf.Reset()
	FromContext(context.Background()).Info("plain")
	if strings.Contains(buf.String(), "run_id") {
		t.Errorf("unexpected context fields: %q", buf.String())
	}
}
