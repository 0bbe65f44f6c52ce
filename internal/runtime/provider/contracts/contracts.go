package contracts

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Capability defines provider families supported by runtime invocation.
type Capability string

const (
	CapabilitySTT         Capability = "stt"
	CapabilityTranslation Capability = "translation"
	CapabilityGeneration  Capability = "generation"
)

// Capabilities lists every capability in pipeline order.
var Capabilities = []Capability{CapabilitySTT, CapabilityTranslation, CapabilityGeneration}

// Validate enforces supported capability values.
func (c Capability) Validate() error {
	switch c {
	case CapabilitySTT, CapabilityTranslation, CapabilityGeneration:
		return nil
	default:
		return fmt.Errorf("unsupported capability: %q", c)
	}
}

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	ErrorTransient ErrorKind = "transient"
	ErrorFatal     ErrorKind = "fatal"
)

// ProviderError is the normalized failure returned by adapters.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Reason   string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s %s failure (%s): %v", e.Provider, e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("provider %s %s failure (%s)", e.Provider, e.Kind, e.Reason)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure is worth retrying elsewhere.
func (e *ProviderError) Transient() bool {
	return e.Kind == ErrorTransient
}

// NewTransientError builds a transient provider failure.
func NewTransientError(provider, reason string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: ErrorTransient, Reason: reason, Err: err}
}

// NewFatalError builds a fatal provider failure.
func NewFatalError(provider, reason string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: ErrorFatal, Reason: reason, Err: err}
}

// NormalizeError maps any adapter error to a ProviderError.
// Deadline expiry and network timeouts are transient like any other transport failure.
func NormalizeError(provider string, err error) *ProviderError {
	if err == nil {
		return nil
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		if perr.Provider == "" {
			perr.Provider = provider
		}
		return perr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTransientError(provider, "provider_timeout", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewTransientError(provider, "provider_cancelled", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTransientError(provider, "provider_timeout", err)
	}
	return NewTransientError(provider, "provider_error", err)
}

// Adapter is the common identity of every provider binding.
type Adapter interface {
	ProviderID() string
	Capability() Capability
}

// TranscribeRequest is one speech-to-text call.
type TranscribeRequest struct {
	Audio        []byte
	LanguageHint string
	SampleRate   int
}

// Transcription is the adapter-level speech-to-text result.
type Transcription struct {
	Text             string
	DetectedLanguage string
	Confidence       float64
	HasConfidence    bool
}

// Transcriber converts audio to text.
type Transcriber interface {
	Adapter
	Transcribe(ctx context.Context, req TranscribeRequest) (Transcription, error)
}

// TranslateRequest is one translation call.
type TranslateRequest struct {
	Text   string
	Source string
	Target string
}

// Translation is the adapter-level translation result.
type Translation struct {
	Text           string
	DetectedSource string
	Confidence     float64
	HasConfidence  bool
}

// Translator converts text between languages.
type Translator interface {
	Adapter
	Translate(ctx context.Context, req TranslateRequest) (Translation, error)
}

// Prompt is the rendered instruction pair sent to answer generators.
type Prompt struct {
	System string
	User   string
}

// GenerateRequest is one answer-generation call.
type GenerateRequest struct {
	Question  string
	Style     string
	Context   string
	Language  string
	MaxLength int
	Prompt    Prompt
}

const maxGenerationTokens = 300

// TokenBudget is the output token cap for a generation call: twice the word
// limit, capped at 300.
func (r GenerateRequest) TokenBudget() int {
	if r.MaxLength <= 0 || r.MaxLength*2 > maxGenerationTokens {
		return maxGenerationTokens
	}
	return r.MaxLength * 2
}

// UserPrompt returns the rendered user prompt, or the bare question when no
// prompt was rendered.
func (r GenerateRequest) UserPrompt() string {
	if strings.TrimSpace(r.Prompt.User) != "" {
		return r.Prompt.User
	}
	return r.Question
}

// Generation is the adapter-level answer result.
type Generation struct {
	Text          string
	Confidence    float64
	HasConfidence bool
}

// Generator produces interview answers.
type Generator interface {
	Adapter
	Generate(ctx context.Context, req GenerateRequest) (Generation, error)
}

// Implements reports whether adapter satisfies the interface for its capability.
func Implements(adapter Adapter) error {
	if adapter == nil {
		return fmt.Errorf("adapter cannot be nil")
	}
	if strings.TrimSpace(adapter.ProviderID()) == "" {
		return fmt.Errorf("provider_id is required")
	}
	capability := adapter.Capability()
	if err := capability.Validate(); err != nil {
		return err
	}
	ok := false
	switch capability {
	case CapabilitySTT:
		_, ok = adapter.(Transcriber)
	case CapabilityTranslation:
		_, ok = adapter.(Translator)
	case CapabilityGeneration:
		_, ok = adapter.(Generator)
	}
	if !ok {
		return fmt.Errorf("provider %q does not implement capability %q", adapter.ProviderID(), capability)
	}
	return nil
}
