package contracts

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCapabilityValidate(t *testing.T) {
	t.Parallel()

	for _, capability := range Capabilities {
		if err := capability.Validate(); err != nil {
			t.Fatalf("expected %s to be valid, got %v", capability, err)
		}
	}
	if err := Capability("tts").Validate(); err == nil {
		t.Fatalf("expected unsupported capability to fail validation")
	}
}

func TestNormalizeErrorClassifiesFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		kind   ErrorKind
		reason string
	}{
		{name: "deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), kind: ErrorTransient, reason: "provider_timeout"},
		{name: "cancelled", err: context.Canceled, kind: ErrorTransient, reason: "provider_cancelled"},
		{name: "plain", err: errors.New("boom"), kind: ErrorTransient, reason: "provider_error"},
		{name: "fatal passthrough", err: NewFatalError("", "provider_auth_or_policy_block", nil), kind: ErrorFatal, reason: "provider_auth_or_policy_block"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			perr := NormalizeError("stt-x", tt.err)
			if perr.Kind != tt.kind || perr.Reason != tt.reason {
				t.Fatalf("expected %s/%s, got %s/%s", tt.kind, tt.reason, perr.Kind, perr.Reason)
			}
			if perr.Provider != "stt-x" {
				t.Fatalf("expected provider to be filled, got %q", perr.Provider)
			}
		})
	}
	if NormalizeError("stt-x", nil) != nil {
		t.Fatalf("expected nil error to stay nil")
	}
}

func TestImplementsChecksCapabilityInterface(t *testing.T) {
	t.Parallel()

	if err := Implements(StaticTranscriber{ID: "stt-a"}); err != nil {
		t.Fatalf("expected transcriber to satisfy stt, got %v", err)
	}
	if err := Implements(StaticTranscriber{}); err == nil {
		t.Fatalf("expected empty provider id to fail")
	}
	if err := Implements(mismatched{}); err == nil {
		t.Fatalf("expected capability/interface mismatch to fail")
	}
	if err := Implements(nil); err == nil {
		t.Fatalf("expected nil adapter to fail")
	}
}

type mismatched struct{}

func (mismatched) ProviderID() string     { return "odd" }
func (mismatched) Capability() Capability { return CapabilityGeneration }

func TestGenerateRequestHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		maxLength int
		want      int
	}{
		{maxLength: 0, want: 300},
		{maxLength: 50, want: 100},
		{maxLength: 150, want: 300},
		{maxLength: 400, want: 300},
	}
	for _, tt := range tests {
		if got := (GenerateRequest{MaxLength: tt.maxLength}).TokenBudget(); got != tt.want {
			t.Fatalf("TokenBudget(%d) = %d, want %d", tt.maxLength, got, tt.want)
		}
	}

	if got := (GenerateRequest{Question: "q"}).UserPrompt(); got != "q" {
		t.Fatalf("expected question fallback, got %q", got)
	}
	if got := (GenerateRequest{Question: "q", Prompt: Prompt{User: "rendered"}}).UserPrompt(); got != "rendered" {
		t.Fatalf("expected rendered prompt, got %q", got)
	}
}
