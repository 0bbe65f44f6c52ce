package deepl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	providerconfig "github.com/tiger/interview-assistant/internal/runtime/provider/config"
	"github.com/tiger/interview-assistant/internal/runtime/provider/contracts"
)

func TestTranslateSendsDeepLCodes(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "DeepL-Auth-Key dk" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = fmt.Fprint(w, `{"translations":[{"detected_source_language":"DE","text":"Why this company?"}]}`)
	}))
	defer srv.Close()

	adapter, err := NewAdapter(Config{APIKey: "dk", Endpoint: srv.URL, Confidence: 0.92})
	if err != nil {
		t.Fatalf("unexpected adapter error: %v", err)
	}
	out, err := adapter.Translate(context.Background(), contracts.TranslateRequest{Text: "Warum diese Firma?", Source: "de-AT", Target: "en"})
	if err != nil {
		t.Fatalf("unexpected translate error: %v", err)
	}
	if out.Text != "Why this company?" || out.DetectedSource != "de" || out.Confidence != 0.92 {
		t.Fatalf("unexpected translation: %+v", out)
	}
	if body["target_lang"] != "EN-US" || body["source_lang"] != "DE" {
		t.Fatalf("unexpected deepl codes: %+v", body)
	}
}

func TestLanguageCodes(t *testing.T) {
	t.Parallel()

	targets := map[string]string{"en": "EN-US", "en_GB": "EN-GB", "pt": "PT-BR", "zh-CN": "ZH", "ja": "JA", "fr-CA": "FR"}
	for in, want := range targets {
		if got := TargetCode(in); got != want {
			t.Fatalf("TargetCode(%q) = %q, want %q", in, got, want)
		}
	}
	if got := SourceCode("zh_TW"); got != "ZH" {
		t.Fatalf("SourceCode(zh_TW) = %q", got)
	}
}

func TestConfigFromEnvPicksFreeEndpoint(t *testing.T) {
	t.Parallel()

	cfg, ok := ConfigFromEnv(providerconfig.WithLookup(func(name string) (string, bool) {
		return "abc:fx", name == "DEEPL_API_KEY"
	}))
	if !ok || cfg.Endpoint != freeEndpoint {
		t.Fatalf("expected free endpoint for :fx key, got %+v", cfg)
	}
}
