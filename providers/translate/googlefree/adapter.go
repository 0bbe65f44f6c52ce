package googlefree

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	providerconfig "github.com/tiger/interview-assistant/internal/runtime/provider/config"
	"github.com/tiger/interview-assistant/internal/runtime/provider/contracts"
	"github.com/tiger/interview-assistant/providers/common/httpadapter"
)

const ProviderID = "google_free"

const defaultEndpoint = "https://translate.googleapis.com/translate_a/single"

var errUnexpectedShape = errors.New("unexpected translate response shape")

type Config struct {
	Endpoint   string
	Confidence float64
}

// ConfigFromEnv enables the keyless endpoint only when GOOGLE_FREE_TRANSLATE is true.
func ConfigFromEnv(r providerconfig.Resolver) (Config, bool) {
	return Config{
		Endpoint:   r.Value("GOOGLE_FREE_TRANSLATE_ENDPOINT", defaultEndpoint),
		Confidence: 0.85,
	}, r.Enabled("GOOGLE_FREE_TRANSLATE", false)
}

// Adapter calls the public web-client translate endpoint. It needs no key
// and has no SLA, which is why it only backs the free tier.
type Adapter struct {
	cfg    Config
	client *httpadapter.Client
}

func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	client, err := httpadapter.New(httpadapter.Config{
		ProviderID: ProviderID,
		Endpoint:   cfg.Endpoint,
		Method:     http.MethodGet,
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, client: client}, nil
}

func (a *Adapter) ProviderID() string                { return ProviderID }
func (a *Adapter) Capability() contracts.Capability { return contracts.CapabilityTranslation }

func (a *Adapter) Translate(ctx context.Context, req contracts.TranslateRequest) (contracts.Translation, error) {
	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = "auto"
	}
	query := url.Values{
		"client": {"gtx"},
		"sl":     {source},
		"tl":     {req.Target},
		"dt":     {"t"},
		"q":      {req.Text},
	}

	var raw []json.RawMessage
	if err := a.client.Do(ctx, httpadapter.Request{Query: query}, &raw); err != nil {
		return contracts.Translation{}, err
	}
	text, detected, err := parseResponse(raw)
	if err != nil {
		return contracts.Translation{}, contracts.NewTransientError(ProviderID, "provider_bad_response", err)
	}
	if detected == "" && source != "auto" {
		detected = source
	}
	return contracts.Translation{
		Text:           text,
		DetectedSource: detected,
		Confidence:     a.cfg.Confidence,
		HasConfidence:  a.cfg.Confidence > 0,
	}, nil
}

// parseResponse reads [[["translated","original",...],...],null,"detected",...].
func parseResponse(raw []json.RawMessage) (string, string, error) {
	if len(raw) == 0 {
		return "", "", errUnexpectedShape
	}
	var segments [][]any
	if err := json.Unmarshal(raw[0], &segments); err != nil {
		return "", "", err
	}
	var b strings.Builder
	for _, segment := range segments {
		if len(segment) == 0 {
			continue
		}
		if piece, ok := segment[0].(string); ok {
			b.WriteString(piece)
		}
	}
	var detected string
	if len(raw) > 2 {
		_ = json.Unmarshal(raw[2], &detected)
	}
	return b.String(), strings.ToLower(detected), nil
}
