package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tiger/interview-assistant/internal/app"
	"github.com/tiger/interview-assistant/internal/runtime/provider/bootstrap"
	providerconfig "github.com/tiger/interview-assistant/internal/runtime/provider/config"
	"github.com/tiger/interview-assistant/internal/runtime/provider/contracts"
	"github.com/tiger/interview-assistant/internal/settings"
)

func staticFactory(adapter contracts.Adapter, capability contracts.Capability) bootstrap.Factory {
	return bootstrap.Factory{Capability: capability, ProviderID: adapter.ProviderID(), Build: func(providerconfig.Resolver) (contracts.Adapter, bool, error) {
		return adapter, true, nil
	}}
}

func newServer(t *testing.T, factories []bootstrap.Factory) (*Server, *app.App) {
	t.Helper()
	cfg, err := settings.FromEnv(providerconfig.WithLookup(nil))
	if err != nil {
		t.Fatalf("unexpected settings error: %v", err)
	}
	if factories == nil {
		factories = []bootstrap.Factory{}
	}
	a, err := app.New(app.Options{Settings: cfg, Resolver: providerconfig.WithLookup(nil), Version: "test", Factories: factories})
	if err != nil {
		t.Fatalf("unexpected app error: %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return NewServer(a), a
}

func do(t *testing.T, srv http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthReportsMockProviders(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, nil)
	rec := do(t, srv, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	body := decode(t, rec)
	if body["status"] != "healthy" || body["version"] != "test" {
		t.Fatalf("unexpected health %+v", body)
	}
	services := body["services"].(map[string]any)
	for _, name := range []string{"speech_to_text", "translation", "ai_generation"} {
		if services[name] != "healthy" {
			t.Fatalf("expected %s healthy, got %+v", name, services)
		}
	}
	providers := body["providers"].(map[string]any)
	if got := providers["generation"].([]any); len(got) != 1 || got[0] != "mock" {
		t.Fatalf("expected mock generation provider, got %+v", providers)
	}
}

func TestConfigCurrentAndUpdate(t *testing.T) {
	t.Parallel()

	srv, a := newServer(t, nil)
	rec := do(t, srv, http.MethodPost, "/config/update", map[string]any{"target_language": "zh", "answer_style": "casual"})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected update status %d: %s", rec.Code, rec.Body.String())
	}
	if got := a.Store.Get(); got.TargetLanguage != "zh" || got.AnswerStyle != "casual" {
		t.Fatalf("store not updated: %+v", got)
	}

	current := decode(t, do(t, srv, http.MethodGet, "/config/current", nil))
	if current["target_language"] != "zh" || current["answer_max_length"].(float64) != 150 {
		t.Fatalf("unexpected current config %+v", current)
	}

	if rec := do(t, srv, http.MethodPost, "/config/update", map[string]any{"answer_style": "pirate"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown style, got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/config/update", map[string]any{"unknown": true}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestOneShotEndpointsUseMocks(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, nil)

	rec := do(t, srv, http.MethodPost, "/transcribe", map[string]any{"audio_data": base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4})})
	body := decode(t, rec)
	if rec.Code != http.StatusOK || body["provider"] != "mock" || body["language"] != "en" {
		t.Fatalf("unexpected transcribe response %d %+v", rec.Code, body)
	}

	rec = do(t, srv, http.MethodPost, "/translate", map[string]any{"text": "hello", "target_language": "zh"})
	body = decode(t, rec)
	if rec.Code != http.StatusOK || !strings.HasPrefix(body["translated_text"].(string), "[中文翻译]") {
		t.Fatalf("unexpected translate response %d %+v", rec.Code, body)
	}

	rec = do(t, srv, http.MethodPost, "/generate-answer", map[string]any{"question": "Tell me about yourself", "max_length": 20})
	body = decode(t, rec)
	if rec.Code != http.StatusOK || body["style"] != "professional" || body["question_type"] != "introduction" {
		t.Fatalf("unexpected generate response %d %+v", rec.Code, body)
	}
	if words := strings.Fields(body["answer"].(string)); len(words) > 20 {
		t.Fatalf("expected answer truncated to 20 words, got %d", len(words))
	}
}

func TestOneShotErrorStatuses(t *testing.T) {
	t.Parallel()

	failing := contracts.StaticGenerator{ID: "openai", GenerateFn: func(context.Context, contracts.GenerateRequest) (contracts.Generation, error) {
		return contracts.Generation{}, errors.New("upstream down")
	}}
	srv, _ := newServer(t, []bootstrap.Factory{staticFactory(failing, contracts.CapabilityGeneration)})

	tests := []struct {
		name   string
		path   string
		body   map[string]any
		status int
	}{
		{name: "all providers failed", path: "/generate-answer", body: map[string]any{"question": "q"}, status: http.StatusInternalServerError},
		{name: "unknown provider", path: "/translate", body: map[string]any{"text": "x", "provider": "nope"}, status: http.StatusServiceUnavailable},
		{name: "bad audio", path: "/transcribe", body: map[string]any{"audio_data": "%%%"}, status: http.StatusBadRequest},
		{name: "empty question", path: "/generate-answer", body: map[string]any{"question": " "}, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := do(t, srv, http.MethodPost, tt.path, tt.body)
		if rec.Code != tt.status {
			t.Fatalf("%s: expected %d, got %d (%s)", tt.name, tt.status, rec.Code, rec.Body.String())
		}
		if _, ok := decode(t, rec)["detail"]; !ok {
			t.Fatalf("%s: expected detail field", tt.name)
		}
	}
}

func TestOneShotUsesConfiguredProvider(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, []bootstrap.Factory{
		staticFactory(contracts.StaticTranslator{ID: "google_free"}, contracts.CapabilityTranslation),
		staticFactory(contracts.StaticTranslator{ID: "deepl"}, contracts.CapabilityTranslation),
	})

	if rec := do(t, srv, http.MethodPost, "/translate", map[string]any{"text": "hi", "target_language": "es"}); decode(t, rec)["provider"] != "google_free" {
		t.Fatalf("expected first registered provider before any config, got %s", rec.Body.String())
	}
	if rec := do(t, srv, http.MethodPost, "/config/update", map[string]any{"translation_provider": "deepl"}); rec.Code != http.StatusOK {
		t.Fatalf("unexpected config update status %d: %s", rec.Code, rec.Body.String())
	}

	rec := do(t, srv, http.MethodPost, "/translate", map[string]any{"text": "hi", "target_language": "es"})
	body := decode(t, rec)
	if rec.Code != http.StatusOK || body["provider"] != "deepl" || body["fallback"] != false {
		t.Fatalf("expected configured provider deepl, got %d %v", rec.Code, body)
	}
	if body := decode(t, do(t, srv, http.MethodPost, "/translate", map[string]any{"text": "hi", "provider": "google_free"})); body["provider"] != "google_free" {
		t.Fatalf("expected request provider to win, got %v", body)
	}
}

func TestAudioTestReportsLevel(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, nil)
	pcm := make([]byte, 0, 64)
	for i := 0; i < 32; i++ {
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(int16(16000)))
	}
	body := decode(t, do(t, srv, http.MethodPost, "/audio/test", map[string]any{"audio_data": base64.StdEncoding.EncodeToString(pcm)}))
	if body["status"] != "good" || body["level"].(float64) <= 0.1 {
		t.Fatalf("unexpected audio test response %+v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv, a := newServer(t, nil)
	a.Metrics.RunsTotal.WithLabelValues("completed").Inc()
	rec := do(t, srv, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "assistant_pipeline_runs_total") {
		t.Fatalf("unexpected metrics response %d", rec.Code)
	}
}

func TestWebsocketRoute(t *testing.T) {
	t.Parallel()

	srv, a := newServer(t, nil)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		a.Hub.CloseAll()
		ts.Close()
	})

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/abc", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer ws.Close()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var status struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
	}
	if err := ws.ReadJSON(&status); err != nil {
		t.Fatalf("read status: %v", err)
	}
	if status.Type != "status" || status.SessionID != "abc" {
		t.Fatalf("unexpected status frame %+v", status)
	}
}
