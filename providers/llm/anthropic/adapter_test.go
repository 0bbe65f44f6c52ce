package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tiger/interview-assistant/internal/runtime/provider/contracts"
)

func TestGenerateUsesMessagesAPI(t *testing.T) {
	t.Parallel()

	var got messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "ak" || r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("unexpected headers: %v", r.Header)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = fmt.Fprint(w, `{"content":[{"type":"text","text":"I enjoy hard problems."}]}`)
	}))
	defer srv.Close()

	adapter, err := NewAdapter(Config{APIKey: "ak", Endpoint: srv.URL, Model: "claude-3-5-haiku-latest", Confidence: 0.9})
	if err != nil {
		t.Fatalf("unexpected adapter error: %v", err)
	}
	out, err := adapter.Generate(context.Background(), contracts.GenerateRequest{
		Question: "Why this role?",
		Prompt:   contracts.Prompt{System: "Be concise.", User: "Why this role?"},
	})
	if err != nil {
		t.Fatalf("unexpected generate error: %v", err)
	}
	if out.Text != "I enjoy hard problems." || out.Confidence != 0.9 {
		t.Fatalf("unexpected generation: %+v", out)
	}
	if got.System != "Be concise." || len(got.Messages) != 1 || got.MaxTokens != 300 {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestGenerateMapsOverload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(529)
	}))
	defer srv.Close()

	adapter, _ := NewAdapter(Config{APIKey: "ak", Endpoint: srv.URL})
	_, err := adapter.Generate(context.Background(), contracts.GenerateRequest{Question: "q"})
	var perr *contracts.ProviderError
	if !errors.As(err, &perr) || !perr.Transient() {
		t.Fatalf("expected transient error for overloaded status, got %v", err)
	}
}
