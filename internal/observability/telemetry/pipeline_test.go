package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type blockingSink struct {
	block <-chan struct{}
}

func (s blockingSink) Export(ctx context.Context, _ Event) error {
	select {
	case <-s.block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestPipelineEmitIsNonBlockingWhenQueueIsFull(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	pipeline := NewPipeline(blockingSink{block: block}, Config{
		QueueCapacity: 1,
		ExportTimeout: 5 * time.Millisecond,
	})
	defer func() {
		close(block)
		_ = pipeline.Close()
	}()

	start := time.Now()
	for i := 0; i < 2000; i++ {
		pipeline.EmitLog("queue-pressure", "debug", "message", nil, Correlation{
			SessionID:   "sess-1",
			RunID:       "run-1",
			TimestampMS: int64(i + 1),
		})
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("expected non-blocking emit under pressure, took %s", elapsed)
	}
	if stats := pipeline.Stats(); stats.Dropped == 0 {
		t.Fatalf("expected dropped events under queue pressure, got %+v", stats)
	}
}

func TestPipelineDebugLogSampling(t *testing.T) {
	t.Parallel()

	sink := NewMemorySink()
	pipeline := NewPipeline(sink, Config{QueueCapacity: 32, LogSampleRate: 3})
	for i := 0; i < 10; i++ {
		pipeline.EmitLog("sampled-debug", "debug", "message", map[string]string{"idx": "x"}, Correlation{
			SessionID:   "sess-sample",
			TimestampMS: int64(i + 1),
		})
	}
	if err := pipeline.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	if events := sink.Events(); len(events) != 4 {
		t.Fatalf("expected sampled count 4, got %d", len(events))
	}
	if stats := pipeline.Stats(); stats.Sampled != 6 {
		t.Fatalf("expected 6 sampled drops, got %+v", stats)
	}
}

func TestPipelineExportsMetricSpanAndLogEvents(t *testing.T) {
	t.Parallel()

	sink := NewMemorySink()
	pipeline := NewPipeline(sink, Config{QueueCapacity: 16})

	correlation := Correlation{SessionID: " sess-a ", RunID: "run-a", Stage: "stt", Provider: "local", TimestampMS: 100}
	pipeline.EmitMetric(MetricProviderRTTMS, 5, "ms", map[string]string{"outcome": "ok", " ": "x"}, correlation)
	pipeline.EmitSpan("provider_call", "client", 105, 100, nil, correlation)
	pipeline.EmitLog("provider_attempt", "INFO", "attempt finished", map[string]string{"outcome": "ok"}, correlation)

	if err := pipeline.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	events := sink.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 exported events, got %d", len(events))
	}
	if events[0].Metric == nil || events[0].Metric.Name != MetricProviderRTTMS || len(events[0].Metric.Attributes) != 1 {
		t.Fatalf("unexpected metric event: %+v", events[0])
	}
	if events[1].Span == nil || events[1].Span.EndMS != events[1].Span.StartMS {
		t.Fatalf("expected span end to be clamped to start: %+v", events[1].Span)
	}
	if events[2].Log == nil || events[2].Log.Severity != "info" {
		t.Fatalf("unexpected log event: %+v", events[2])
	}
	for _, event := range events {
		if event.Correlation.SessionID != "sess-a" || event.TimestampMS != 100 {
			t.Fatalf("unexpected correlation payload: %+v", event.Correlation)
		}
	}
}

type failingSink struct{}

func (failingSink) Export(context.Context, Event) error { return errors.New("down") }

func TestPipelineCountsFailuresAndDropsAfterClose(t *testing.T) {
	t.Parallel()

	pipeline := NewPipeline(failingSink{}, Config{QueueCapacity: 4})
	pipeline.EmitMetric(MetricFallbackTotal, 1, "", nil, Correlation{})
	pipeline.EmitMetric(MetricFallbackTotal, 1, "", nil, Correlation{})
	if err := pipeline.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	pipeline.EmitLog("late", "info", "after close", nil, Correlation{})
	if err := pipeline.Close(); err != nil {
		t.Fatalf("expected second close to be a no-op, got %v", err)
	}

	stats := pipeline.Stats()
	if stats.ExportFailures != 2 || stats.Dropped != 1 || stats.Sampled != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestMultiSinkJoinsErrorsAndKeepsExporting(t *testing.T) {
	t.Parallel()

	memory := NewMemorySink()
	multi := MultiSink{failingSink{}, nil, memory}
	err := multi.Export(context.Background(), Event{Kind: EventKindLog, Log: &LogEvent{Name: "x"}})
	if err == nil {
		t.Fatalf("expected joined sink error")
	}
	if len(memory.Events()) != 1 {
		t.Fatalf("expected remaining sinks to receive the event")
	}
}

func TestZapSinkWritesLogsWithCorrelation(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	sink := NewZapSink(zap.New(core).Sugar())

	_ = sink.Export(context.Background(), Event{
		Kind:        EventKindLog,
		Correlation: Correlation{SessionID: "sess-z", Stage: "translation"},
		Log:         &LogEvent{Name: "stage_failed", Severity: "error", Message: "all providers failed", Attributes: map[string]string{"attempts": "2"}},
	})
	_ = sink.Export(context.Background(), Event{Kind: EventKindMetric, Metric: &MetricEvent{Name: MetricFallbackTotal, Value: 1}})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one zap entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if entries[0].Message != "all providers failed" || fields["sessionID"] != "sess-z" || fields["attempts"] != "2" {
		t.Fatalf("unexpected zap entry: %+v %+v", entries[0].Entry, fields)
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := NewLogger("loud", false); err == nil {
		t.Fatalf("expected unknown level to fail")
	}
	logger, err := NewLogger("warn", false)
	if err != nil {
		t.Fatalf("unexpected logger error: %v", err)
	}
	if logger.Desugar().Core().Enabled(zap.InfoLevel) {
		t.Fatalf("expected info to be disabled at warn level")
	}
}
