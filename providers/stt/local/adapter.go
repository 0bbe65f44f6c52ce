package local

import (
	"time"

	providerconfig "github.com/tiger/interview-assistant/internal/runtime/provider/config"
	"github.com/tiger/interview-assistant/providers/stt/openai"
)

const ProviderID = "local"

// ConfigFromEnv targets a self-hosted Whisper server exposing the
// OpenAI-compatible transcription route. ok is false without an endpoint.
func ConfigFromEnv(r providerconfig.Resolver) (openai.Config, bool) {
	endpoint := r.Value("LOCAL_WHISPER_ENDPOINT", "")
	return openai.Config{
		ProviderID: ProviderID,
		Endpoint:   endpoint,
		APIKey:     r.Value("LOCAL_WHISPER_API_KEY", ""),
		Model:      r.Value("LOCAL_WHISPER_MODEL", "base"),
		Timeout:    30 * time.Second,
		Confidence: 0.85,
	}, endpoint != ""
}

// NewAdapter builds the local transcriber.
func NewAdapter(cfg openai.Config) (*openai.Adapter, error) {
	cfg.ProviderID = ProviderID
	cfg.RequireKey = false
	return openai.NewAdapter(cfg)
}
