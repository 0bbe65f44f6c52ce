package google

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/tiger/interview-assistant/internal/runtime/audio"
	providerconfig "github.com/tiger/interview-assistant/internal/runtime/provider/config"
	"github.com/tiger/interview-assistant/internal/runtime/provider/contracts"
	"github.com/tiger/interview-assistant/providers/common/httpadapter"
)

const ProviderID = "google"

const defaultEndpoint = "https://speech.googleapis.com/v1/speech:recognize"

type Config struct {
	APIKey     string
	Endpoint   string
	Model      string
	EnablePunc bool
	// DefaultLanguage is sent when the session source language is auto.
	DefaultLanguage string
	// AlternativeLanguages let the service pick among likely interview languages.
	AlternativeLanguages []string
}

func ConfigFromEnv(r providerconfig.Resolver) (Config, bool) {
	cfg := Config{
		APIKey:               r.Value("GOOGLE_SPEECH_API_KEY", ""),
		Endpoint:             r.Value("GOOGLE_SPEECH_ENDPOINT", defaultEndpoint),
		Model:                r.Value("GOOGLE_SPEECH_MODEL", "latest_long"),
		EnablePunc:           true,
		DefaultLanguage:      "en-US",
		AlternativeLanguages: []string{"zh", "es", "fr", "de", "ja"},
	}
	return cfg, cfg.APIKey != ""
}

type Adapter struct {
	cfg    Config
	client *httpadapter.Client
}

func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en-US"
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
func (a *Adapter) Capability() contracts.Capability { return contracts.CapabilitySTT }

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
		LanguageCode string `json:"languageCode"`
	} `json:"results"`
}

func (a *Adapter) Transcribe(ctx context.Context, req contracts.TranscribeRequest) (contracts.Transcription, error) {
	sampleRate := req.SampleRate
	pcm := req.Audio
	if audio.IsWAV(pcm) {
		if format, samples, err := audio.ParseWAV(pcm); err == nil {
			sampleRate = format.SampleRate
			pcm = samples
		}
	}
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}

	language := strings.TrimSpace(req.LanguageHint)
	speechConfig := map[string]any{
		"encoding":                   "LINEAR16",
		"sampleRateHertz":            sampleRate,
		"model":                      a.cfg.Model,
		"enableAutomaticPunctuation": a.cfg.EnablePunc,
	}
	if language == "" || strings.EqualFold(language, "auto") {
		speechConfig["languageCode"] = a.cfg.DefaultLanguage
		if len(a.cfg.AlternativeLanguages) > 0 {
			speechConfig["alternativeLanguageCodes"] = a.cfg.AlternativeLanguages
		}
	} else {
		speechConfig["languageCode"] = language
	}

	var out recognizeResponse
	err := a.client.Do(ctx, httpadapter.Request{Body: map[string]any{
		"config": speechConfig,
		"audio":  map[string]any{"content": base64.StdEncoding.EncodeToString(pcm)},
	}}, &out)
	if err != nil {
		return contracts.Transcription{}, err
	}

	var (
		parts      []string
		confidence float64
		scored     int
		detected   string
	)
	for _, result := range out.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		best := result.Alternatives[0]
		parts = append(parts, strings.TrimSpace(best.Transcript))
		if best.Confidence > 0 {
			confidence += best.Confidence
			scored++
		}
		if detected == "" && result.LanguageCode != "" {
			detected = strings.ToLower(result.LanguageCode)
		}
	}
	transcription := contracts.Transcription{
		Text:             strings.TrimSpace(strings.Join(parts, " ")),
		DetectedLanguage: detected,
	}
	if scored > 0 {
		transcription.Confidence = confidence / float64(scored)
		transcription.HasConfidence = true
	}
	return transcription, nil
}
