package telemetry

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// MemorySink is a deterministic in-memory sink used by tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{events: make([]Event, 0, 64)}
}

// Export appends an event in memory.
func (s *MemorySink) Export(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of all exported events.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// MultiSink fans one event out to several sinks.
type MultiSink []Sink

// Export forwards to every sink and joins their errors.
func (m MultiSink) Export(ctx context.Context, event Event) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Export(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ZapSink writes log and span events to a zap logger. Metrics are skipped;
// they go to the prometheus sink.
type ZapSink struct {
	logger *zap.SugaredLogger
}

// NewZapSink wraps logger. A nil logger yields a no-op sink.
func NewZapSink(logger *zap.SugaredLogger) ZapSink {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return ZapSink{logger: logger}
}

// Export implements Sink.
func (s ZapSink) Export(_ context.Context, event Event) error {
	switch event.Kind {
	case EventKindLog:
		if event.Log == nil {
			return nil
		}
		fields := append(correlationFields(event.Correlation), "event", event.Log.Name)
		fields = append(fields, attributeFields(event.Log.Attributes)...)
		switch event.Log.Severity {
		case "debug":
			s.logger.Debugw(event.Log.Message, fields...)
		case "warn", "warning":
			s.logger.Warnw(event.Log.Message, fields...)
		case "error":
			s.logger.Errorw(event.Log.Message, fields...)
		default:
			s.logger.Infow(event.Log.Message, fields...)
		}
	case EventKindSpan:
		if event.Span == nil {
			return nil
		}
		fields := append(correlationFields(event.Correlation),
			"span", event.Span.Name,
			"kind", event.Span.Kind,
			"duration_ms", event.Span.EndMS-event.Span.StartMS,
		)
		fields = append(fields, attributeFields(event.Span.Attributes)...)
		s.logger.Debugw("span finished", fields...)
	}
	return nil
}

func correlationFields(c Correlation) []interface{} {
	fields := make([]interface{}, 0, 8)
	if c.SessionID != "" {
		fields = append(fields, "sessionID", c.SessionID)
	}
	if c.RunID != "" {
		fields = append(fields, "runID", c.RunID)
	}
	if c.Stage != "" {
		fields = append(fields, "stage", c.Stage)
	}
	if c.Provider != "" {
		fields = append(fields, "provider", c.Provider)
	}
	return fields
}

func attributeFields(attributes map[string]string) []interface{} {
	keys := make([]string, 0, len(attributes))
	for k := range attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]interface{}, 0, 2*len(keys))
	for _, k := range keys {
		fields = append(fields, k, attributes[k])
	}
	return fields
}
