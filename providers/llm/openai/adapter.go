package openai

import (
	"context"
	"strings"

	providerconfig "github.com/tiger/interview-assistant/internal/runtime/provider/config"
	"github.com/tiger/interview-assistant/internal/runtime/provider/contracts"
	"github.com/tiger/interview-assistant/providers/common/httpadapter"
)

const ProviderID = "openai"

const defaultEndpoint = "https://api.openai.com/v1/chat/completions"

type Config struct {
	APIKey      string
	Endpoint    string
	Model       string
	Temperature float64
	Confidence  float64
}

func ConfigFromEnv(r providerconfig.Resolver) (Config, bool) {
	cfg := Config{
		APIKey:      r.Value("OPENAI_API_KEY", ""),
		Endpoint:    r.Value("OPENAI_CHAT_ENDPOINT", defaultEndpoint),
		Model:       r.Value("OPENAI_MODEL", "gpt-4o-mini"),
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
	client, err := httpadapter.New(httpadapter.Config{
		ProviderID:   ProviderID,
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

func (a *Adapter) ProviderID() string                { return ProviderID }
func (a *Adapter) Capability() contracts.Capability { return contracts.CapabilityGeneration }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	MaxTokens        int           `json:"max_tokens"`
	Temperature      float64       `json:"temperature"`
	TopP             float64       `json:"top_p"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	PresencePenalty  float64       `json:"presence_penalty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (a *Adapter) Generate(ctx context.Context, req contracts.GenerateRequest) (contracts.Generation, error) {
	messages := make([]chatMessage, 0, 2)
	if system := strings.TrimSpace(req.Prompt.System); system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserPrompt()})

	var out chatResponse
	err := a.client.Do(ctx, httpadapter.Request{Body: chatRequest{
		Model:            a.cfg.Model,
		Messages:         messages,
		MaxTokens:        req.TokenBudget(),
		Temperature:      a.cfg.Temperature,
		TopP:             0.9,
		FrequencyPenalty: 0.1,
		PresencePenalty:  0.1,
	}}, &out)
	if err != nil {
		return contracts.Generation{}, err
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return contracts.Generation{}, contracts.NewTransientError(ProviderID, "provider_empty_result", nil)
	}
	return contracts.Generation{
		Text:          strings.TrimSpace(out.Choices[0].Message.Content),
		Confidence:    a.cfg.Confidence,
		HasConfidence: a.cfg.Confidence > 0,
	}, nil
}
