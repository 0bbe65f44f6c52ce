package awstranslate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/translate"
	"github.com/aws/smithy-go"

	providerconfig "github.com/tiger/interview-assistant/internal/runtime/provider/config"
	"github.com/tiger/interview-assistant/internal/runtime/provider/contracts"
)

const ProviderID = "aws"

type translateClient interface {
	TranslateText(ctx context.Context, params *translate.TranslateTextInput, optFns ...func(*translate.Options)) (*translate.TranslateTextOutput, error)
}

type Config struct {
	Region string
}

// ConfigFromEnv enables Amazon Translate when AWS_TRANSLATE_REGION is set.
// Credentials come from the default AWS chain.
func ConfigFromEnv(r providerconfig.Resolver) (Config, bool) {
	region := r.Value("AWS_TRANSLATE_REGION", "")
	return Config{Region: region}, region != ""
}

type Adapter struct {
	cfg Config

	mu     sync.Mutex
	client translateClient
}

func NewAdapter(cfg Config) (*Adapter, error) {
	return NewAdapterWithClient(cfg, nil)
}

// NewAdapterWithClient injects the SDK client; a nil client is resolved lazily.
func NewAdapterWithClient(cfg Config, client translateClient) (*Adapter, error) {
	if strings.TrimSpace(cfg.Region) == "" {
		return nil, fmt.Errorf("aws translate region is required")
	}
	return &Adapter{cfg: cfg, client: client}, nil
}

func (a *Adapter) ProviderID() string                { return ProviderID }
func (a *Adapter) Capability() contracts.Capability { return contracts.CapabilityTranslation }

func (a *Adapter) Translate(ctx context.Context, req contracts.TranslateRequest) (contracts.Translation, error) {
	client, err := a.resolveClient(ctx)
	if err != nil {
		return contracts.Translation{}, contracts.NewFatalError(ProviderID, "provider_config_error", err)
	}
	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = "auto"
	}
	out, err := client.TranslateText(ctx, &translate.TranslateTextInput{
		Text:               aws.String(req.Text),
		SourceLanguageCode: aws.String(source),
		TargetLanguageCode: aws.String(req.Target),
	})
	if err != nil {
		return contracts.Translation{}, normalizeTranslateError(err)
	}
	return contracts.Translation{
		Text:           aws.ToString(out.TranslatedText),
		DetectedSource: strings.ToLower(aws.ToString(out.SourceLanguageCode)),
	}, nil
}

func normalizeTranslateError(err error) error {
	if errors.Is(err, context.Canceled) {
		return contracts.NewTransientError(ProviderID, "provider_cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return contracts.NewTransientError(ProviderID, "provider_timeout", err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "TooManyRequestsException", "ThrottlingException", "LimitExceededException":
			return contracts.NewTransientError(ProviderID, "provider_overload", err)
		case "UnsupportedLanguagePairException", "DetectedLanguageLowConfidenceException", "TextSizeLimitExceededException", "InvalidRequestException":
			return contracts.NewFatalError(ProviderID, "provider_client_error", err)
		}
		if apiErr.ErrorFault() == smithy.FaultClient {
			return contracts.NewFatalError(ProviderID, "provider_client_error", err)
		}
		return contracts.NewTransientError(ProviderID, "provider_server_error", err)
	}
	return contracts.NewTransientError(ProviderID, "provider_transport_error", err)
}

func (a *Adapter) resolveClient(ctx context.Context) (translateClient, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	a.client = translate.NewFromConfig(awsCfg)
	return a.client, nil
}
