package openai

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/tiger/interview-assistant/internal/runtime/audio"
	providerconfig "github.com/tiger/interview-assistant/internal/runtime/provider/config"
	"github.com/tiger/interview-assistant/internal/runtime/provider/contracts"
	"github.com/tiger/interview-assistant/providers/common/httpadapter"
)

const ProviderID = "openai"

const defaultEndpoint = "https://api.openai.com/v1/audio/transcriptions"

// Config configures a Whisper-compatible transcription endpoint.
type Config struct {
	ProviderID string
	APIKey     string
	Endpoint   string
	Model      string
	// RequireKey is false for self-hosted endpoints that accept anonymous calls.
	RequireKey bool
	Timeout    time.Duration
	// Confidence is reported with every result; Whisper returns no score.
	Confidence float64
}

// ConfigFromEnv reads OPENAI_API_KEY. ok is false when no key is configured.
func ConfigFromEnv(r providerconfig.Resolver) (Config, bool) {
	cfg := Config{
		ProviderID: ProviderID,
		APIKey:     r.Value("OPENAI_API_KEY", ""),
		Endpoint:   r.Value("OPENAI_STT_ENDPOINT", defaultEndpoint),
		Model:      r.Value("OPENAI_STT_MODEL", "whisper-1"),
		RequireKey: true,
		Confidence: 0.9,
	}
	return cfg, cfg.APIKey != ""
}

// Adapter transcribes audio through an OpenAI-compatible /audio/transcriptions API.
type Adapter struct {
	cfg    Config
	client *httpadapter.Client
}

func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.ProviderID == "" {
		cfg.ProviderID = ProviderID
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.RequireKey && strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api_key is required for provider %q", cfg.ProviderID)
	}
	client, err := httpadapter.New(httpadapter.Config{
		ProviderID:   cfg.ProviderID,
		Endpoint:     cfg.Endpoint,
		APIKey:       cfg.APIKey,
		APIKeyHeader: "Authorization",
		APIKeyPrefix: "Bearer ",
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, client: client}, nil
}

func (a *Adapter) ProviderID() string                { return a.cfg.ProviderID }
func (a *Adapter) Capability() contracts.Capability { return contracts.CapabilitySTT }

type transcriptionResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func (a *Adapter) Transcribe(ctx context.Context, req contracts.TranscribeRequest) (contracts.Transcription, error) {
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	_ = form.WriteField("model", a.cfg.Model)
	_ = form.WriteField("response_format", "verbose_json")
	if language := languageField(req.LanguageHint); language != "" {
		_ = form.WriteField("language", language)
	}
	file, err := form.CreateFormFile("file", "audio.wav")
	if err != nil {
		return contracts.Transcription{}, contracts.NewFatalError(a.cfg.ProviderID, "provider_request_encode", err)
	}
	if _, err := file.Write(audio.AsWAV(req.Audio, req.SampleRate)); err != nil {
		return contracts.Transcription{}, contracts.NewFatalError(a.cfg.ProviderID, "provider_request_encode", err)
	}
	if err := form.Close(); err != nil {
		return contracts.Transcription{}, contracts.NewFatalError(a.cfg.ProviderID, "provider_request_encode", err)
	}

	var out transcriptionResponse
	if err := a.client.Do(ctx, httpadapter.Request{RawBody: &body, ContentType: form.FormDataContentType()}, &out); err != nil {
		return contracts.Transcription{}, err
	}
	detected := NormalizeLanguage(out.Language)
	if detected == "" {
		detected = languageField(req.LanguageHint)
	}
	return contracts.Transcription{
		Text:             strings.TrimSpace(out.Text),
		DetectedLanguage: detected,
		Confidence:       a.cfg.Confidence,
		HasConfidence:    a.cfg.Confidence > 0,
	}, nil
}

func languageField(hint string) string {
	hint = strings.TrimSpace(hint)
	if hint == "" || strings.EqualFold(hint, "auto") {
		return ""
	}
	return hint
}

var whisperLanguageNames = map[string]string{
	"english":    "en",
	"chinese":    "zh",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"japanese":   "ja",
	"korean":     "ko",
	"portuguese": "pt",
	"russian":    "ru",
	"italian":    "it",
	"arabic":     "ar",
	"hindi":      "hi",
}

// NormalizeLanguage maps Whisper's verbose language names to ISO codes.
func NormalizeLanguage(language string) string {
	lowered := strings.ToLower(strings.TrimSpace(language))
	if code, ok := whisperLanguageNames[lowered]; ok {
		return code
	}
	return lowered
}
