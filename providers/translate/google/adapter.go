package google

import (
	"context"
	"html"
	"strings"

	providerconfig "github.com/tiger/interview-assistant/internal/runtime/provider/config"
	"github.com/tiger/interview-assistant/internal/runtime/provider/contracts"
	"github.com/tiger/interview-assistant/providers/common/httpadapter"
)

const ProviderID = "google"

const defaultEndpoint = "https://translation.googleapis.com/language/translate/v2"

type Config struct {
	APIKey     string
	Endpoint   string
	Confidence float64
}

func ConfigFromEnv(r providerconfig.Resolver) (Config, bool) {
	cfg := Config{
		APIKey:     r.Value("GOOGLE_TRANSLATE_API_KEY", ""),
		Endpoint:   r.Value("GOOGLE_TRANSLATE_ENDPOINT", defaultEndpoint),
		Confidence: 0.95,
	}
	return cfg, cfg.APIKey != ""
}

// Adapter calls Cloud Translation v2.
type Adapter struct {
	cfg    Config
	client *httpadapter.Client
}

func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	client, err := httpadapter.New(httpadapter.Config{
		ProviderID:       ProviderID,
		Endpoint:         cfg.Endpoint,
		APIKey:           cfg.APIKey,
		QueryAPIKeyParam: "key",
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, client: client}, nil
}

func (a *Adapter) ProviderID() string                { return ProviderID }
func (a *Adapter) Capability() contracts.Capability { return contracts.CapabilityTranslation }

type translateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText         string `json:"translatedText"`
			DetectedSourceLanguage string `json:"detectedSourceLanguage"`
		} `json:"translations"`
	} `json:"data"`
}

func (a *Adapter) Translate(ctx context.Context, req contracts.TranslateRequest) (contracts.Translation, error) {
	body := map[string]any{
		"q":      req.Text,
		"target": req.Target,
		"format": "text",
	}
	source := strings.TrimSpace(req.Source)
	if source != "" && !strings.EqualFold(source, "auto") {
		body["source"] = source
	}

	var out translateResponse
	if err := a.client.Do(ctx, httpadapter.Request{Body: body}, &out); err != nil {
		return contracts.Translation{}, err
	}
	if len(out.Data.Translations) == 0 {
		return contracts.Translation{}, contracts.NewTransientError(ProviderID, "provider_empty_result", nil)
	}
	first := out.Data.Translations[0]
	detected := strings.ToLower(first.DetectedSourceLanguage)
	if detected == "" {
		detected = strings.ToLower(source)
	}
	return contracts.Translation{
		Text:           html.UnescapeString(first.TranslatedText),
		DetectedSource: detected,
		Confidence:     a.cfg.Confidence,
		HasConfidence:  a.cfg.Confidence > 0,
	}, nil
}
