package gemini

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"github.com/tiger/interview-assistant/internal/runtime/provider/contracts"
)

type fakeModels struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: genai.NewContentFromText(text, genai.RoleModel),
	}}}
}

func TestGenerateRendersPromptIntoRequest(t *testing.T) {
	t.Parallel()

	models := &fakeModels{resp: textResponse("I build reliable systems.")}
	adapter, err := NewAdapterWithClient(Config{Model: "gemini-2.0-flash", Temperature: 0.7, Confidence: 0.9}, models)
	if err != nil {
		t.Fatalf("unexpected adapter error: %v", err)
	}
	out, err := adapter.Generate(context.Background(), contracts.GenerateRequest{
		Question:  "What do you do?",
		MaxLength: 40,
		Prompt:    contracts.Prompt{System: "Be brief.", User: "Q: What do you do?"},
	})
	if err != nil {
		t.Fatalf("unexpected generate error: %v", err)
	}
	if out.Text != "I build reliable systems." || out.Confidence != 0.9 {
		t.Fatalf("unexpected generation: %+v", out)
	}
	if models.model != "gemini-2.0-flash" || models.config.MaxOutputTokens != 80 || models.config.SystemInstruction == nil {
		t.Fatalf("unexpected request config: model=%s config=%+v", models.model, models.config)
	}
	if len(models.contents) != 1 || models.contents[0].Parts[0].Text != "Q: What do you do?" {
		t.Fatalf("unexpected contents: %+v", models.contents)
	}
}

func TestGenerateMapsAPIErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{name: "quota", err: genai.APIError{Code: 429, Message: "quota"}, transient: true},
		{name: "bad key", err: genai.APIError{Code: 403, Message: "denied"}, transient: false},
		{name: "unavailable", err: genai.APIError{Code: 503}, transient: true},
		{name: "deadline", err: context.DeadlineExceeded, transient: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			adapter, _ := NewAdapterWithClient(Config{}, &fakeModels{err: tt.err})
			_, err := adapter.Generate(context.Background(), contracts.GenerateRequest{Question: "q"})
			var perr *contracts.ProviderError
			if !errors.As(err, &perr) || perr.Transient() != tt.transient {
				t.Fatalf("unexpected mapping for %v: %v", tt.err, err)
			}
		})
	}
}

func TestEmptyResponseIsTransient(t *testing.T) {
	t.Parallel()

	adapter, _ := NewAdapterWithClient(Config{}, &fakeModels{resp: &genai.GenerateContentResponse{}})
	_, err := adapter.Generate(context.Background(), contracts.GenerateRequest{Question: "q"})
	var perr *contracts.ProviderError
	if !errors.As(err, &perr) || perr.Reason != "provider_empty_result" {
		t.Fatalf("expected empty result error, got %v", err)
	}
}

func TestNewAdapterRequiresKeyWithoutClient(t *testing.T) {
	t.Parallel()

	if _, err := NewAdapter(Config{}); err == nil {
		t.Fatalf("expected missing key to fail")
	}
}
