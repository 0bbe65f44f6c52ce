package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/tiger/interview-assistant/api/transport"
	"github.com/tiger/interview-assistant/internal/observability/telemetry"
	"github.com/tiger/interview-assistant/internal/runtime/answer"
	"github.com/tiger/interview-assistant/internal/runtime/audio"
	"github.com/tiger/interview-assistant/internal/runtime/provider/contracts"
	"github.com/tiger/interview-assistant/internal/runtime/provider/invocation"
	"github.com/tiger/interview-assistant/internal/runtime/provider/registry"
)

// Status is the final classification of a run.
type Status string

const (
	StatusCompleted      Status = "completed"
	StatusShortCircuited Status = "short_circuited"
	StatusFailed         Status = "failed"
	StatusCancelled      Status = "cancelled"
)

// Error kinds reported in error events.
const (
	ErrorAllProvidersFailed = "AllProvidersFailed"
	ErrorConfiguration      = "ConfigurationError"
	ErrorInternal           = "PipelineError"
)

// Providers names the primary adapter per capability. Empty means the first
// registered adapter.
type Providers struct {
	STT         string
	Translation string
	Generation  string
}

// Snapshot is the session configuration a run reads. It is copied at run
// start so config updates never affect a run in flight.
type Snapshot struct {
	SessionID      string
	SourceLanguage string
	TargetLanguage string
	Providers      Providers
	AnswerStyle    string
	MaxLength      int
	Context        string
}

// EventSink receives the run's outbound events in order.
type EventSink interface {
	Publish(msg transport.Outbound)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(msg transport.Outbound)

func (f EventSinkFunc) Publish(msg transport.Outbound) { f(msg) }

// Outcome summarizes one run.
type Outcome struct {
	RunID       string
	Status      Status
	FailedStage string
	Events      []transport.OutboundType
	Transitions []Transition
	Elapsed     time.Duration
}

// Runner executes transcribe -> maybe-translate -> generate for one chunk.
type Runner struct {
	controller *invocation.Controller
	prompts    *answer.Prompts
	logger     *zap.SugaredLogger
	emitter    telemetry.Emitter
	tracer     trace.Tracer
	now        func() time.Time
}

// Option customizes a Runner.
type Option func(*Runner)

func WithEmitter(emitter telemetry.Emitter) Option {
	return func(r *Runner) { r.emitter = telemetry.OrNoop(emitter) }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner builds a runner. Nil prompts use the embedded defaults and a nil
// logger discards output.
func NewRunner(controller *invocation.Controller, prompts *answer.Prompts, logger *zap.SugaredLogger, opts ...Option) *Runner {
	if prompts == nil {
		prompts = answer.DefaultPrompts()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	r := &Runner{
		controller: controller,
		prompts:    prompts,
		logger:     logger,
		emitter:    telemetry.Noop(),
		tracer:     noop.NewTracerProvider().Tracer("pipeline"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type run struct {
	*Runner
	ctx      context.Context
	snapshot Snapshot
	sink     EventSink
	call     invocation.Call
	state    State
	outcome  *Outcome
}

// Run processes one chunk and publishes its events to sink. It never panics;
// a panic inside the run is converted into one error event.
func (r *Runner) Run(ctx context.Context, snapshot Snapshot, chunk audio.Chunk, sink EventSink) (outcome Outcome) {
	start := r.now()
	outcome = Outcome{RunID: uuid.NewString()}
	ctx, span := r.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("session_id", snapshot.SessionID),
		attribute.String("run_id", outcome.RunID),
		attribute.Int("chunk_sequence", chunk.Sequence),
	))
	x := &run{
		Runner:   r,
		ctx:      ctx,
		snapshot: snapshot,
		sink:     sink,
		call:     invocation.Call{SessionID: snapshot.SessionID, RunID: outcome.RunID},
		state:    StateIdle,
		outcome:  &outcome,
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			stage := x.state.Stage()
			r.logger.Errorw("pipeline run panicked",
				"sessionID", snapshot.SessionID,
				"runID", outcome.RunID,
				"stage", stage,
				"panic", recovered,
				"stack", string(debug.Stack()),
			)
			x.fail(stage, ErrorInternal, fmt.Sprintf("internal error: %v", recovered))
		}
		outcome.Elapsed = r.now().Sub(start)
		span.SetAttributes(attribute.String("status", string(outcome.Status)))
		if outcome.Status == StatusFailed {
			span.SetStatus(codes.Error, outcome.FailedStage)
		}
		span.End()
		r.emitter.EmitMetric(telemetry.MetricRunOutcome, 1, "count", map[string]string{"status": string(outcome.Status)}, telemetry.Correlation{
			SessionID: snapshot.SessionID,
			RunID:     outcome.RunID,
			Stage:     outcome.FailedStage,
		})
	}()

	x.execute(chunk)
	return outcome
}

func (x *run) execute(chunk audio.Chunk) {
	x.transition(StateTranscribing)
	transcription, err := x.controller.Transcribe(x.ctx, x.withPrimary(contracts.CapabilitySTT, x.snapshot.Providers.STT), contracts.TranscribeRequest{
		Audio:        chunk.Data,
		LanguageHint: x.snapshot.SourceLanguage,
		SampleRate:   chunk.SampleRate,
	})
	if err != nil {
		x.stageFailed(err)
		return
	}

	text := transcription.Value.Text
	detected := strings.TrimSpace(transcription.Value.DetectedLanguage)
	if detected == "" {
		detected = x.snapshot.SourceLanguage
	}
	x.publish(transport.OutboundTranscription, transport.TranscriptionData{
		Text:           text,
		Confidence:     transcription.Confidence,
		Language:       detected,
		ProcessingTime: transcription.Elapsed,
		Provider:       transcription.Provider,
		Fallback:       transcription.Fallback,
	})
	if strings.TrimSpace(text) == "" {
		x.transition(StateDone)
		x.outcome.Status = StatusShortCircuited
		return
	}

	question := text
	if SameLanguage(detected, x.snapshot.TargetLanguage) {
		x.transition(StateTranslationSkipped)
	} else {
		x.transition(StateTranslating)
		source := detected
		if source == "" {
			source = AutoLanguage
		}
		translation, err := x.controller.Translate(x.ctx, x.withPrimary(contracts.CapabilityTranslation, x.snapshot.Providers.Translation), contracts.TranslateRequest{
			Text:   text,
			Source: source,
			Target: x.snapshot.TargetLanguage,
		})
		if err != nil {
			x.stageFailed(err)
			return
		}
		sourceLanguage := source
		if translation.Value.DetectedSource != "" && BaseLanguage(source) == AutoLanguage {
			sourceLanguage = translation.Value.DetectedSource
		}
		x.publish(transport.OutboundTranslation, transport.TranslationData{
			OriginalText:   text,
			TranslatedText: translation.Value.Text,
			SourceLanguage: sourceLanguage,
			TargetLanguage: x.snapshot.TargetLanguage,
			Confidence:     translation.Confidence,
			ProcessingTime: translation.Elapsed,
			Provider:       translation.Provider,
			Fallback:       translation.Fallback,
		})
		question = translation.Value.Text
	}

	x.transition(StateGenerating)
	generation, err := x.controller.Generate(x.ctx, x.withPrimary(contracts.CapabilityGeneration, x.snapshot.Providers.Generation), contracts.GenerateRequest{
		Question:  question,
		Style:     x.snapshot.AnswerStyle,
		Context:   x.snapshot.Context,
		Language:  x.snapshot.TargetLanguage,
		MaxLength: x.snapshot.MaxLength,
		Prompt:    x.prompts.Render(x.snapshot.AnswerStyle, question, x.snapshot.Context),
	})
	if err != nil {
		x.stageFailed(err)
		return
	}
	processed := answer.PostProcess(generation.Value.Text, x.snapshot.MaxLength)
	x.publish(transport.OutboundAnswer, transport.AnswerData{
		Question:       question,
		Answer:         processed,
		Confidence:     generation.Confidence,
		ProcessingTime: generation.Elapsed,
		Style:          x.snapshot.AnswerStyle,
		Provider:       generation.Provider,
		Fallback:       generation.Fallback,
		QuestionType:   string(answer.ClassifyQuestion(question)),
		QualityScore:   answer.AssessQuality(processed, question).Score,
	})
	x.transition(StateDone)
	x.outcome.Status = StatusCompleted
}

// withPrimary resolves an empty primary to the first registered adapter.
func (x *run) withPrimary(capability contracts.Capability, primary string) invocation.Call {
	call := x.call
	call.Capability = capability
	call.Primary = strings.TrimSpace(primary)
	if call.Primary == "" {
		call.Primary = x.controller.Catalog().DefaultProvider(capability)
	}
	return call
}

func (x *run) transition(to State) {
	tr := Transition{From: x.state, To: to}
	if err := tr.Validate(); err != nil {
		panic(err)
	}
	x.outcome.Transitions = append(x.outcome.Transitions, tr)
	x.state = to
}

func (x *run) stageFailed(err error) {
	stage := x.state.Stage()
	if ctxErr := x.ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		x.logger.Debugw("pipeline run cancelled", "sessionID", x.snapshot.SessionID, "runID", x.outcome.RunID, "stage", stage)
		x.outcome.Transitions = append(x.outcome.Transitions, Transition{From: x.state, To: StateFailed})
		x.state = StateFailed
		x.outcome.Status = StatusCancelled
		x.outcome.FailedStage = stage
		return
	}

	kind := ErrorInternal
	var allFailed *invocation.AllProvidersFailedError
	var cfgErr *registry.ConfigurationError
	switch {
	case errors.As(err, &allFailed):
		kind = ErrorAllProvidersFailed
	case errors.As(err, &cfgErr):
		kind = ErrorConfiguration
	}
	x.logger.Warnw("pipeline stage failed", "sessionID", x.snapshot.SessionID, "runID", x.outcome.RunID, "stage", stage, "error", err)
	x.fail(stage, kind, err.Error())
}

func (x *run) fail(stage, kind, message string) {
	if !x.state.Terminal() {
		x.outcome.Transitions = append(x.outcome.Transitions, Transition{From: x.state, To: StateFailed})
		x.state = StateFailed
	}
	x.outcome.Status = StatusFailed
	x.outcome.FailedStage = stage
	if x.ctx.Err() != nil {
		return
	}
	x.publish(transport.OutboundError, transport.ErrorData{Stage: stage, Error: kind, Message: message})
}

func (x *run) publish(eventType transport.OutboundType, data any) {
	x.outcome.Events = append(x.outcome.Events, eventType)
	if x.sink == nil {
		return
	}
	x.sink.Publish(transport.Outbound{
		Type:      eventType,
		SessionID: x.snapshot.SessionID,
		Timestamp: x.now(),
		Data:      data,
	})
}
