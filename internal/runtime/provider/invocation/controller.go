package invocation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/semaphore"

	"github.com/tiger/interview-assistant/internal/observability/telemetry"
	"github.com/tiger/interview-assistant/internal/runtime/provider/contracts"
	"github.com/tiger/interview-assistant/internal/runtime/provider/registry"
)

const (
	defaultCallTimeout        = 10 * time.Second
	defaultConfidence         = 0.9
	defaultFallbackConfidence = 0.8
	defaultFallbackPenalty    = 0.05
	defaultMaxConcurrentCalls = 5
)

// Attempt outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Config controls per-call timeouts, confidence policy and concurrency.
type Config struct {
	CallTimeout time.Duration
	// DefaultConfidence is used when the primary provider reports none.
	DefaultConfidence float64
	// FallbackConfidence is used when a fallback provider reports none.
	FallbackConfidence float64
	// FallbackPenalty is subtracted from a fallback provider's reported confidence.
	FallbackPenalty float64
	// MaxConcurrentCalls bounds in-flight provider calls across all sessions.
	MaxConcurrentCalls int64
}

func (c Config) withDefaults() Config {
	if c.CallTimeout <= 0 {
		c.CallTimeout = defaultCallTimeout
	}
	if c.DefaultConfidence <= 0 || c.DefaultConfidence > 1 {
		c.DefaultConfidence = defaultConfidence
	}
	if c.FallbackConfidence <= 0 || c.FallbackConfidence > 1 {
		c.FallbackConfidence = defaultFallbackConfidence
	}
	if c.FallbackPenalty < 0 || c.FallbackPenalty > 1 {
		c.FallbackPenalty = defaultFallbackPenalty
	}
	if c.MaxConcurrentCalls < 1 {
		c.MaxConcurrentCalls = defaultMaxConcurrentCalls
	}
	return c
}

// Call identifies one stage invocation.
type Call struct {
	SessionID  string
	RunID      string
	Capability contracts.Capability
	Primary    string
}

// Attempt records one provider call.
type Attempt struct {
	Provider string
	Outcome  string
	Reason   string
	Err      error
	Elapsed  time.Duration
}

// StageResult is the successful outcome of one pipeline stage.
type StageResult[T any] struct {
	Value      T
	Confidence float64
	// Elapsed is wall time in seconds from stage start, failed attempts included.
	Elapsed  float64
	Provider string
	Fallback bool
	Attempts []Attempt
}

// AllProvidersFailedError reports that every candidate adapter failed.
type AllProvidersFailedError struct {
	Capability contracts.Capability
	Attempts   []Attempt
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", attempt.Provider, attempt.Err))
	}
	return fmt.Sprintf("all providers failed for capability %q (%s)", e.Capability, strings.Join(parts, "; "))
}

// Controller runs stage calls over the registry's candidate chain.
type Controller struct {
	catalog *registry.Catalog
	cfg     Config
	slots   *semaphore.Weighted
	emitter telemetry.Emitter
	tracer  trace.Tracer
	now     func() time.Time
}

// Option customizes a Controller.
type Option func(*Controller)

// WithEmitter routes attempt telemetry to emitter.
func WithEmitter(emitter telemetry.Emitter) Option {
	return func(c *Controller) { c.emitter = telemetry.OrNoop(emitter) }
}

// WithTracer records one span per provider attempt.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Controller) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController builds a controller over catalog.
func NewController(catalog *registry.Catalog, cfg Config, opts ...Option) *Controller {
	cfg = cfg.withDefaults()
	c := &Controller{
		catalog: catalog,
		cfg:     cfg,
		slots:   semaphore.NewWeighted(cfg.MaxConcurrentCalls),
		emitter: telemetry.Noop(),
		tracer:  noop.NewTracerProvider().Tracer("invocation"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// Catalog returns the registry the controller draws candidates from.
func (c *Controller) Catalog() *registry.Catalog {
	return c.catalog
}

// Transcribe runs the STT stage.
func (c *Controller) Transcribe(ctx context.Context, call Call, req contracts.TranscribeRequest) (StageResult[contracts.Transcription], error) {
	call.Capability = contracts.CapabilitySTT
	return Run(ctx, c, call, func(ctx context.Context, adapter contracts.Adapter) (contracts.Transcription, float64, bool, error) {
		transcriber, ok := adapter.(contracts.Transcriber)
		if !ok {
			return contracts.Transcription{}, 0, false, contracts.NewFatalError(adapter.ProviderID(), "capability_mismatch", nil)
		}
		out, err := transcriber.Transcribe(ctx, req)
		return out, out.Confidence, out.HasConfidence, err
	})
}

// Translate runs the translation stage.
func (c *Controller) Translate(ctx context.Context, call Call, req contracts.TranslateRequest) (StageResult[contracts.Translation], error) {
	call.Capability = contracts.CapabilityTranslation
	return Run(ctx, c, call, func(ctx context.Context, adapter contracts.Adapter) (contracts.Translation, float64, bool, error) {
		translator, ok := adapter.(contracts.Translator)
		if !ok {
			return contracts.Translation{}, 0, false, contracts.NewFatalError(adapter.ProviderID(), "capability_mismatch", nil)
		}
		out, err := translator.Translate(ctx, req)
		return out, out.Confidence, out.HasConfidence, err
	})
}

// Generate runs the answer generation stage.
func (c *Controller) Generate(ctx context.Context, call Call, req contracts.GenerateRequest) (StageResult[contracts.Generation], error) {
	call.Capability = contracts.CapabilityGeneration
	return Run(ctx, c, call, func(ctx context.Context, adapter contracts.Adapter) (contracts.Generation, float64, bool, error) {
		generator, ok := adapter.(contracts.Generator)
		if !ok {
			return contracts.Generation{}, 0, false, contracts.NewFatalError(adapter.ProviderID(), "capability_mismatch", nil)
		}
		out, err := generator.Generate(ctx, req)
		return out, out.Confidence, out.HasConfidence, err
	})
}

// InvokeFunc performs one adapter call and reports the value with its
// self-reported confidence, if any.
type InvokeFunc[T any] func(ctx context.Context, adapter contracts.Adapter) (value T, confidence float64, hasConfidence bool, err error)

// Run tries the primary adapter, then each fallback in order, until one
// succeeds. Each attempt gets its own deadline. Cancellation of ctx stops the
// loop and returns ctx.Err() without trying further adapters.
func Run[T any](ctx context.Context, c *Controller, call Call, invoke InvokeFunc[T]) (StageResult[T], error) {
	var zero StageResult[T]
	candidates, err := c.catalog.Candidates(call.Capability, call.Primary)
	if err != nil {
		return zero, err
	}

	start := c.now()
	attempts := make([]Attempt, 0, len(candidates))
	for index, adapter := range candidates {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		providerID := adapter.ProviderID()
		value, confidence, hasConfidence, attempt := attemptOnce(ctx, c, call, adapter, invoke)
		attempts = append(attempts, attempt)

		if attempt.Err == nil {
			c.catalog.RecordSuccess(call.Capability, providerID)
			fallback := index > 0
			elapsed := c.now().Sub(start)
			c.emitStage(call, providerID, elapsed, fallback)
			return StageResult[T]{
				Value:      value,
				Confidence: c.confidence(confidence, hasConfidence, fallback),
				Elapsed:    elapsed.Seconds(),
				Provider:   providerID,
				Fallback:   fallback,
				Attempts:   attempts,
			}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		c.catalog.RecordFailure(call.Capability, providerID, attempt.Err)
	}

	failure := &AllProvidersFailedError{Capability: call.Capability, Attempts: attempts}
	c.emitter.EmitLog(
		"stage_failed",
		"error",
		"all providers failed",
		map[string]string{"attempts": strconv.Itoa(len(attempts))},
		c.correlation(call, ""),
	)
	return zero, failure
}

func attemptOnce[T any](ctx context.Context, c *Controller, call Call, adapter contracts.Adapter, invoke InvokeFunc[T]) (T, float64, bool, Attempt) {
	var zero T
	providerID := adapter.ProviderID()

	// Waiting for a slot is not part of the provider's deadline.
	if err := c.slots.Acquire(ctx, 1); err != nil {
		perr := contracts.NormalizeError(providerID, err)
		return zero, 0, false, Attempt{Provider: providerID, Outcome: OutcomeError, Reason: perr.Reason, Err: perr}
	}
	defer c.slots.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	spanCtx, span := c.tracer.Start(callCtx, "provider."+string(call.Capability), trace.WithAttributes(
		attribute.String("provider", providerID),
		attribute.String("session_id", call.SessionID),
		attribute.String("run_id", call.RunID),
	))
	defer span.End()

	attemptStart := c.now()
	value, confidence, hasConfidence, err := invoke(spanCtx, adapter)
	elapsed := c.now().Sub(attemptStart)

	attempt := Attempt{Provider: providerID, Outcome: OutcomeOK, Elapsed: elapsed}
	if err != nil {
		perr := contracts.NormalizeError(providerID, err)
		attempt.Err = perr
		attempt.Reason = perr.Reason
		attempt.Outcome = OutcomeError
		if errors.Is(err, context.DeadlineExceeded) {
			attempt.Outcome = OutcomeTimeout
		}
		span.RecordError(perr)
		span.SetStatus(codes.Error, perr.Reason)
	}
	span.SetAttributes(attribute.String("outcome", attempt.Outcome))

	c.emitAttempt(call, attempt, attemptStart)
	if err != nil {
		return zero, 0, false, attempt
	}
	return value, confidence, hasConfidence, attempt
}

// confidence applies the reporting policy: a primary keeps what it reports,
// a fallback is capped at DefaultConfidence and penalized.
func (c *Controller) confidence(reported float64, hasReported bool, fallback bool) float64 {
	var out float64
	switch {
	case !fallback && hasReported:
		out = reported
	case !fallback:
		out = c.cfg.DefaultConfidence
	case hasReported:
		out = min(reported, c.cfg.DefaultConfidence) - c.cfg.FallbackPenalty
	default:
		out = c.cfg.FallbackConfidence
	}
	return max(0, min(1, out))
}

func (c *Controller) emitAttempt(call Call, attempt Attempt, startedAt time.Time) {
	correlation := c.correlation(call, attempt.Provider)
	attributes := map[string]string{"outcome": attempt.Outcome}
	if attempt.Reason != "" {
		attributes["reason"] = attempt.Reason
	}
	c.emitter.EmitMetric(telemetry.MetricProviderRTTMS, float64(attempt.Elapsed.Milliseconds()), "ms", attributes, correlation)
	startMS := startedAt.UnixMilli()
	c.emitter.EmitSpan("provider_attempt", "client", startMS, startMS+attempt.Elapsed.Milliseconds(), attributes, correlation)
	if attempt.Err != nil {
		c.emitter.EmitLog("provider_attempt_failed", "warn", attempt.Err.Error(), attributes, correlation)
		return
	}
	c.emitter.EmitLog("provider_attempt", "debug", "provider call succeeded", attributes, correlation)
}

func (c *Controller) emitStage(call Call, providerID string, elapsed time.Duration, fallback bool) {
	correlation := c.correlation(call, providerID)
	c.emitter.EmitMetric(telemetry.MetricStageLatencyMS, float64(elapsed.Milliseconds()), "ms", nil, correlation)
	if fallback {
		c.emitter.EmitMetric(telemetry.MetricFallbackTotal, 1, "count", nil, correlation)
	}
}

func (c *Controller) correlation(call Call, providerID string) telemetry.Correlation {
	return telemetry.Correlation{
		SessionID:   call.SessionID,
		RunID:       call.RunID,
		Stage:       string(call.Capability),
		Provider:    providerID,
		TimestampMS: c.now().UnixMilli(),
	}
}
