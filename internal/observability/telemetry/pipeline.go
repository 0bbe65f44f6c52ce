package telemetry

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// MetricProviderRTTMS captures one provider call round trip.
	MetricProviderRTTMS = "provider_rtt_ms"
	// MetricStageLatencyMS captures one pipeline stage including fallbacks.
	MetricStageLatencyMS = "stage_latency_ms"
	// MetricFallbackTotal counts stages served by a non-primary provider.
	MetricFallbackTotal = "fallback_total"
	// MetricRunOutcome counts finished pipeline runs by status.
	MetricRunOutcome = "run_outcome_total"
	// MetricBackpressureDrops counts audio chunks rejected at ingress.
	MetricBackpressureDrops = "backpressure_drops_total"
	// MetricSessionsActive reports live websocket sessions.
	MetricSessionsActive = "sessions_active"
)

// EventKind defines telemetry payload kind.
type EventKind string

const (
	EventKindMetric EventKind = "metric"
	EventKindSpan   EventKind = "span"
	EventKindLog    EventKind = "log"
)

// Correlation ties an event to the session run that produced it.
type Correlation struct {
	SessionID   string `json:"session_id,omitempty"`
	RunID       string `json:"run_id,omitempty"`
	Stage       string `json:"stage,omitempty"`
	Provider    string `json:"provider,omitempty"`
	TimestampMS int64  `json:"timestamp_ms,omitempty"`
}

// MetricEvent captures a metric sample payload.
type MetricEvent struct {
	Name       string            `json:"name"`
	Value      float64           `json:"value"`
	Unit       string            `json:"unit,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// SpanEvent captures a finished timed section.
type SpanEvent struct {
	Name       string            `json:"name"`
	Kind       string            `json:"kind"`
	StartMS    int64             `json:"start_ms"`
	EndMS      int64             `json:"end_ms"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// LogEvent captures a telemetry log payload.
type LogEvent struct {
	Name       string            `json:"name"`
	Severity   string            `json:"severity"`
	Message    string            `json:"message"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Event is the normalized telemetry emission envelope.
type Event struct {
	Kind        EventKind    `json:"kind"`
	TimestampMS int64        `json:"timestamp_ms"`
	Correlation Correlation  `json:"correlation"`
	Metric      *MetricEvent `json:"metric,omitempty"`
	Span        *SpanEvent   `json:"span,omitempty"`
	Log         *LogEvent    `json:"log,omitempty"`
}

// Sink exports normalized telemetry events.
type Sink interface {
	Export(context.Context, Event) error
}

// Emitter defines a non-blocking telemetry emission handle.
type Emitter interface {
	EmitMetric(name string, value float64, unit string, attributes map[string]string, correlation Correlation)
	EmitSpan(name, kind string, startMS, endMS int64, attributes map[string]string, correlation Correlation)
	EmitLog(name, severity, message string, attributes map[string]string, correlation Correlation)
}

type noopEmitter struct{}

func (noopEmitter) EmitMetric(string, float64, string, map[string]string, Correlation) {}
func (noopEmitter) EmitSpan(string, string, int64, int64, map[string]string, Correlation) {
}
func (noopEmitter) EmitLog(string, string, string, map[string]string, Correlation) {}

// Noop returns an emitter that discards everything.
func Noop() Emitter {
	return noopEmitter{}
}

// OrNoop returns emitter, or a no-op emitter when it is nil.
func OrNoop(emitter Emitter) Emitter {
	if emitter == nil {
		return noopEmitter{}
	}
	return emitter
}

// Config controls bounded queue and export behavior.
type Config struct {
	QueueCapacity int
	ExportTimeout time.Duration
	// LogSampleRate keeps every Nth debug log event when >1.
	LogSampleRate int
}

func (c Config) withDefaults() Config {
	if c.QueueCapacity < 1 {
		c.QueueCapacity = 256
	}
	if c.ExportTimeout <= 0 {
		c.ExportTimeout = 200 * time.Millisecond
	}
	if c.LogSampleRate < 1 {
		c.LogSampleRate = 1
	}
	return c
}

// Stats counts events that never reached the sink.
type Stats struct {
	// Dropped events found the queue full or the pipeline closed.
	Dropped uint64
	// Sampled debug logs were skipped by LogSampleRate.
	Sampled uint64
	// ExportFailures were rejected by the sink.
	ExportFailures uint64
}

// Pipeline is a bounded non-blocking telemetry pipeline. Emit calls never
// wait on the sink; events that do not fit the queue are counted and dropped.
type Pipeline struct {
	sink Sink
	cfg  Config

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}

	dropped    atomic.Uint64
	sampled    atomic.Uint64
	failures   atomic.Uint64
	logCounter atomic.Uint64
}

type discardSink struct{}

func (discardSink) Export(context.Context, Event) error { return nil }

// NewPipeline constructs and starts a telemetry pipeline.
func NewPipeline(sink Sink, cfg Config) *Pipeline {
	if sink == nil {
		sink = discardSink{}
	}
	cfg = cfg.withDefaults()
	p := &Pipeline{
		sink:  sink,
		cfg:   cfg,
		queue: make(chan Event, cfg.QueueCapacity),
		done:  make(chan struct{}),
	}
	go p.exportLoop()
	return p
}

// Close stops accepting events and waits until the queued ones are exported.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	<-p.done
	return nil
}

// Stats returns the loss counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Dropped:        p.dropped.Load(),
		Sampled:        p.sampled.Load(),
		ExportFailures: p.failures.Load(),
	}
}

// EmitMetric enqueues a metric sample without blocking.
func (p *Pipeline) EmitMetric(name string, value float64, unit string, attributes map[string]string, correlation Correlation) {
	p.offer(Event{
		Kind:        EventKindMetric,
		TimestampMS: eventTimestampMS(correlation),
		Correlation: normalizeCorrelation(correlation),
		Metric: &MetricEvent{
			Name:       strings.TrimSpace(name),
			Value:      value,
			Unit:       strings.TrimSpace(unit),
			Attributes: cloneAttributes(attributes),
		},
	})
}

// EmitSpan enqueues a finished span. An end before start is clamped.
func (p *Pipeline) EmitSpan(name, kind string, startMS, endMS int64, attributes map[string]string, correlation Correlation) {
	startMS = nonNegative(startMS)
	endMS = max(nonNegative(endMS), startMS)
	p.offer(Event{
		Kind:        EventKindSpan,
		TimestampMS: eventTimestampMS(correlation),
		Correlation: normalizeCorrelation(correlation),
		Span: &SpanEvent{
			Name:       strings.TrimSpace(name),
			Kind:       strings.TrimSpace(kind),
			StartMS:    startMS,
			EndMS:      endMS,
			Attributes: cloneAttributes(attributes),
		},
	})
}

// EmitLog enqueues a log event. Debug logs are sampled per LogSampleRate.
func (p *Pipeline) EmitLog(name, severity, message string, attributes map[string]string, correlation Correlation) {
	severity = strings.ToLower(strings.TrimSpace(severity))
	if severity == "debug" && p.cfg.LogSampleRate > 1 {
		if (p.logCounter.Add(1)-1)%uint64(p.cfg.LogSampleRate) != 0 {
			p.sampled.Add(1)
			return
		}
	}
	p.offer(Event{
		Kind:        EventKindLog,
		TimestampMS: eventTimestampMS(correlation),
		Correlation: normalizeCorrelation(correlation),
		Log: &LogEvent{
			Name:       strings.TrimSpace(name),
			Severity:   severity,
			Message:    message,
			Attributes: cloneAttributes(attributes),
		},
	})
}

func (p *Pipeline) offer(event Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		return
	}
	select {
	case p.queue <- event:
	default:
		p.dropped.Add(1)
	}
}

func (p *Pipeline) exportLoop() {
	defer close(p.done)
	for event := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ExportTimeout)
		if err := p.sink.Export(ctx, event); err != nil {
			p.failures.Add(1)
		}
		cancel()
	}
}

func eventTimestampMS(correlation Correlation) int64 {
	if correlation.TimestampMS > 0 {
		return correlation.TimestampMS
	}
	return time.Now().UnixMilli()
}

func normalizeCorrelation(c Correlation) Correlation {
	c.TimestampMS = nonNegative(c.TimestampMS)
	c.SessionID = strings.TrimSpace(c.SessionID)
	c.RunID = strings.TrimSpace(c.RunID)
	c.Stage = strings.TrimSpace(c.Stage)
	c.Provider = strings.TrimSpace(c.Provider)
	return c
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func cloneAttributes(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		out[key] = strings.TrimSpace(v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
