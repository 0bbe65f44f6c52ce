package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestSetupNoneReturnsNoopTracer(t *testing.T) {
	t.Parallel()

	provider, err := Setup(Options{Exporter: ExporterNone})
	if err != nil {
		t.Fatalf("unexpected setup error: %v", err)
	}
	_, span := provider.Tracer().Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Fatalf("expected no-op span context")
	}
	span.End()
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
}

func TestSetupRejectsUnknownExporter(t *testing.T) {
	t.Parallel()

	if _, err := Setup(Options{Exporter: "zipkin"}); err == nil {
		t.Fatalf("expected unknown exporter to fail")
	}
}

func TestSetupStdoutWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	provider, err := Setup(Options{Exporter: ExporterStdout, Writer: &buf, ServiceName: "assistant-test"})
	if err != nil {
		t.Fatalf("unexpected setup error: %v", err)
	}
	_, span := provider.Tracer().Start(context.Background(), "provider.call")
	span.End()
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
	if !strings.Contains(buf.String(), "provider.call") {
		t.Fatalf("expected exported span in output, got %q", buf.String())
	}
}
