package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"

	providerconfig "github.com/tiger/interview-assistant/internal/runtime/provider/config"
	"github.com/tiger/interview-assistant/internal/runtime/provider/contracts"
	"github.com/tiger/interview-assistant/providers/common/httpadapter"
)

const ProviderID = "gemini"

// contentGenerator is the slice of *genai.Models the adapter needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	Confidence  float64
}

func ConfigFromEnv(r providerconfig.Resolver) (Config, bool) {
	cfg := Config{
		APIKey:      r.Value("GEMINI_API_KEY", ""),
		Model:       r.Value("GEMINI_MODEL", "gemini-2.0-flash"),
		Temperature: 0.7,
		Confidence:  0.9,
	}
	return cfg, cfg.APIKey != ""
}

type Adapter struct {
	cfg Config

	mu     sync.Mutex
	models contentGenerator
}

func NewAdapter(cfg Config) (*Adapter, error) {
	return NewAdapterWithClient(cfg, nil)
}

// NewAdapterWithClient injects the models client; a nil client is built lazily
// from the API key on first use.
func NewAdapterWithClient(cfg Config, models contentGenerator) (*Adapter, error) {
	if models == nil && strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api_key is required for provider %q", ProviderID)
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	return &Adapter{cfg: cfg, models: models}, nil
}

func (a *Adapter) ProviderID() string                { return ProviderID }
func (a *Adapter) Capability() contracts.Capability { return contracts.CapabilityGeneration }

func (a *Adapter) Generate(ctx context.Context, req contracts.GenerateRequest) (contracts.Generation, error) {
	models, err := a.resolveClient(ctx)
	if err != nil {
		return contracts.Generation{}, contracts.NewFatalError(ProviderID, "provider_config_error", err)
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.TokenBudget()),
		Temperature:     genai.Ptr(a.cfg.Temperature),
	}
	if system := strings.TrimSpace(req.Prompt.System); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	resp, err := models.GenerateContent(ctx, a.cfg.Model, genai.Text(req.UserPrompt()), config)
	if err != nil {
		return contracts.Generation{}, normalizeGenAIError(err)
	}
	answer := ""
	if resp != nil {
		answer = strings.TrimSpace(resp.Text())
	}
	if answer == "" {
		return contracts.Generation{}, contracts.NewTransientError(ProviderID, "provider_empty_result", nil)
	}
	return contracts.Generation{
		Text:          answer,
		Confidence:    a.cfg.Confidence,
		HasConfidence: a.cfg.Confidence > 0,
	}, nil
}

// normalizeGenAIError maps API status codes the same way the HTTP adapters do.
func normalizeGenAIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return wrapStatus(apiErr.Code, apiErr.Message, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return wrapStatus(apiErrPtr.Code, apiErrPtr.Message, err)
	}
	return httpadapter.NormalizeNetworkError(ProviderID, err)
}

func wrapStatus(code int, message string, err error) error {
	if code == 0 {
		code = http.StatusInternalServerError
	}
	mapped := httpadapter.NormalizeStatus(ProviderID, code, []byte(message))
	if mapped == nil {
		return contracts.NewTransientError(ProviderID, "provider_error", err)
	}
	return mapped
}

func (a *Adapter) resolveClient(ctx context.Context) (contentGenerator, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.models != nil {
		return a.models, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  a.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	a.models = client.Models
	return a.models, nil
}
