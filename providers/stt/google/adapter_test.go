package google

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tiger/interview-assistant/internal/runtime/audio"
	providerconfig "github.com/tiger/interview-assistant/internal/runtime/provider/config"
	"github.com/tiger/interview-assistant/internal/runtime/provider/contracts"
)

func TestConfigFromEnvSecretRefs(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"GOOGLE_SPEECH_API_KEY":            "literal-key",
		"GOOGLE_SPEECH_API_KEY_SECRET_REF": "env://TEST_GOOGLE_SPEECH_KEY",
		"TEST_GOOGLE_SPEECH_KEY":           "secret-key",
	}
	cfg, ok := ConfigFromEnv(providerconfig.WithLookup(func(name string) (string, bool) {
		v, found := env[name]
		return v, found
	}))
	if !ok || cfg.APIKey != "secret-key" {
		t.Fatalf("expected API key resolved from secret ref, got %q", cfg.APIKey)
	}
	if cfg.Endpoint != defaultEndpoint {
		t.Fatalf("expected default endpoint, got %q", cfg.Endpoint)
	}
}

func TestTranscribeJoinsResultsAndAveragesConfidence(t *testing.T) {
	t.Parallel()

	var request struct {
		Config map[string]any `json:"config"`
		Audio  struct {
			Content string `json:"content"`
		} `json:"audio"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("key"); got != "google-key" {
			t.Errorf("expected API key query param, got %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&request)
		_, _ = fmt.Fprint(w, `{"results":[
			{"alternatives":[{"transcript":"Tell me","confidence":0.9}],"languageCode":"en-US"},
			{"alternatives":[{"transcript":" about yourself","confidence":0.7}]}
		]}`)
	}))
	defer srv.Close()

	adapter, err := NewAdapter(Config{APIKey: "google-key", Endpoint: srv.URL, AlternativeLanguages: []string{"zh"}})
	if err != nil {
		t.Fatalf("unexpected adapter error: %v", err)
	}
	wav := audio.EncodeWAV([]byte{1, 0, 2, 0}, 8000)
	out, err := adapter.Transcribe(context.Background(), contracts.TranscribeRequest{Audio: wav, LanguageHint: "auto"})
	if err != nil {
		t.Fatalf("unexpected transcribe error: %v", err)
	}
	if out.Text != "Tell me about yourself" || out.DetectedLanguage != "en-us" {
		t.Fatalf("unexpected transcription: %+v", out)
	}
	if !out.HasConfidence || math.Abs(out.Confidence-0.8) > 1e-9 {
		t.Fatalf("expected averaged confidence 0.8, got %v", out.Confidence)
	}
	if request.Config["sampleRateHertz"] != float64(8000) || request.Config["languageCode"] != "en-US" {
		t.Fatalf("unexpected recognition config: %+v", request.Config)
	}
	if request.Audio.Content != "AQACAA==" {
		t.Fatalf("expected wav header to be stripped, got %q", request.Audio.Content)
	}
}

func TestTranscribeEmptyResults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	adapter, _ := NewAdapter(Config{APIKey: "k", Endpoint: srv.URL})
	out, err := adapter.Transcribe(context.Background(), contracts.TranscribeRequest{Audio: []byte{0, 0}, LanguageHint: "zh"})
	if err != nil || out.Text != "" || out.HasConfidence {
		t.Fatalf("expected empty transcription, got %+v (%v)", out, err)
	}
}
