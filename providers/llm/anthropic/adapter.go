package anthropic

import (
	"context"
	"strings"

	providerconfig "github.com/tiger/interview-assistant/internal/runtime/provider/config"
	"github.com/tiger/interview-assistant/internal/runtime/provider/contracts"
	"github.com/tiger/interview-assistant/providers/common/httpadapter"
)

const ProviderID = "anthropic"

const defaultEndpoint = "https://api.anthropic.com/v1/messages"

type Config struct {
	APIKey      string
	Endpoint    string
	Model       string
	Version     string
	Temperature float64
	Confidence  float64
}

func ConfigFromEnv(r providerconfig.Resolver) (Config, bool) {
	cfg := Config{
		APIKey:      r.Value("ANTHROPIC_API_KEY", ""),
		Endpoint:    r.Value("ANTHROPIC_ENDPOINT", defaultEndpoint),
		Model:       r.Value("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		Version:     r.Value("ANTHROPIC_VERSION", "2023-06-01"),
		Temperature: 0.7,
		Confidence:  0.9,
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
	if cfg.Version == "" {
		cfg.Version = "2023-06-01"
	}
	client, err := httpadapter.New(httpadapter.Config{
		ProviderID:    ProviderID,
		Endpoint:      cfg.Endpoint,
		APIKey:        cfg.APIKey,
		APIKeyHeader:  "x-api-key",
		StaticHeaders: map[string]string{"anthropic-version": cfg.Version},
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, client: client}, nil
}

func (a *Adapter) ProviderID() string                { return ProviderID }
func (a *Adapter) Capability() contracts.Capability { return contracts.CapabilityGeneration }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (a *Adapter) Generate(ctx context.Context, req contracts.GenerateRequest) (contracts.Generation, error) {
	var out messagesResponse
	err := a.client.Do(ctx, httpadapter.Request{Body: messagesRequest{
		Model:       a.cfg.Model,
		MaxTokens:   req.TokenBudget(),
		Temperature: a.cfg.Temperature,
		System:      strings.TrimSpace(req.Prompt.System),
		Messages:    []message{{Role: "user", Content: req.UserPrompt()}},
	}}, &out)
	if err != nil {
		return contracts.Generation{}, err
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" || block.Type == "" {
			text.WriteString(block.Text)
		}
	}
	answer := strings.TrimSpace(text.String())
	if answer == "" {
		return contracts.Generation{}, contracts.NewTransientError(ProviderID, "provider_empty_result", nil)
	}
	return contracts.Generation{
		Text:          answer,
		Confidence:    a.cfg.Confidence,
		HasConfidence: a.cfg.Confidence > 0,
	}, nil
}
