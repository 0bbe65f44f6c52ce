package deepl

import (
	"context"
	"strings"

	providerconfig "github.com/tiger/interview-assistant/internal/runtime/provider/config"
	"github.com/tiger/interview-assistant/internal/runtime/provider/contracts"
	"github.com/tiger/interview-assistant/providers/common/httpadapter"
)

const ProviderID = "deepl"

const (
	freeEndpoint = "https://api-free.deepl.com/v2/translate"
	proEndpoint  = "https://api.deepl.com/v2/translate"
)

type Config struct {
	APIKey     string
	Endpoint   string
	Confidence float64
}

// ConfigFromEnv picks the free endpoint for ":fx" keys.
func ConfigFromEnv(r providerconfig.Resolver) (Config, bool) {
	key := r.Value("DEEPL_API_KEY", "")
	endpoint := proEndpoint
	if strings.HasSuffix(key, ":fx") {
		endpoint = freeEndpoint
	}
	return Config{
		APIKey:     key,
		Endpoint:   r.Value("DEEPL_ENDPOINT", endpoint),
		Confidence: 0.92,
	}, key != ""
}

type Adapter struct {
	cfg    Config
	client *httpadapter.Client
}

func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = proEndpoint
	}
	client, err := httpadapter.New(httpadapter.Config{
		ProviderID:   ProviderID,
		Endpoint:     cfg.Endpoint,
		APIKey:       cfg.APIKey,
		APIKeyHeader: "Authorization",
		APIKeyPrefix: "DeepL-Auth-Key ",
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, client: client}, nil
}

func (a *Adapter) ProviderID() string                { return ProviderID }
func (a *Adapter) Capability() contracts.Capability { return contracts.CapabilityTranslation }

type translateResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

func (a *Adapter) Translate(ctx context.Context, req contracts.TranslateRequest) (contracts.Translation, error) {
	body := map[string]any{
		"text":        []string{req.Text},
		"target_lang": TargetCode(req.Target),
	}
	if source := strings.TrimSpace(req.Source); source != "" && !strings.EqualFold(source, "auto") {
		body["source_lang"] = SourceCode(source)
	}

	var out translateResponse
	if err := a.client.Do(ctx, httpadapter.Request{Body: body}, &out); err != nil {
		return contracts.Translation{}, err
	}
	if len(out.Translations) == 0 {
		return contracts.Translation{}, contracts.NewTransientError(ProviderID, "provider_empty_result", nil)
	}
	first := out.Translations[0]
	return contracts.Translation{
		Text:           first.Text,
		DetectedSource: strings.ToLower(first.DetectedSourceLanguage),
		Confidence:     a.cfg.Confidence,
		HasConfidence:  a.cfg.Confidence > 0,
	}, nil
}

// SourceCode maps a language tag to a DeepL source code; DeepL sources carry no region.
func SourceCode(language string) string {
	base, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(language)), "-")
	base, _, _ = strings.Cut(base, "_")
	return strings.ToUpper(base)
}

// TargetCode maps a language tag to a DeepL target code. English and
// Portuguese targets need a regional variant.
func TargetCode(language string) string {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(language)), "_", "-")
	switch normalized {
	case "en", "en-us":
		return "EN-US"
	case "en-gb":
		return "EN-GB"
	case "pt", "pt-br":
		return "PT-BR"
	case "pt-pt":
		return "PT-PT"
	case "zh-cn", "zh-tw", "zh-hans", "zh-hant":
		return "ZH"
	}
	return SourceCode(normalized)
}
