package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/tiger/interview-assistant/internal/runtime/pipeline"
	"github.com/tiger/interview-assistant/internal/runtime/provider/config"
	"github.com/tiger/interview-assistant/internal/runtime/provider/invocation"
)

const (
	EnvHost                  = "HOST"
	EnvPort                  = "PORT"
	EnvLogLevel              = "LOG_LEVEL"
	EnvDebug                 = "DEBUG"
	EnvSourceLanguage        = "DEFAULT_SOURCE_LANGUAGE"
	EnvTargetLanguage        = "DEFAULT_TARGET_LANGUAGE"
	EnvSTTProvider           = "STT_PROVIDER"
	EnvTranslationProvider   = "TRANSLATION_PROVIDER"
	EnvAnswerProvider        = "ANSWER_PROVIDER"
	EnvAnswerStyle           = "ANSWER_STYLE"
	EnvAnswerMaxLength       = "ANSWER_MAX_LENGTH"
	EnvRequestTimeout        = "REQUEST_TIMEOUT"
	EnvMaxConcurrentRequests = "MAX_CONCURRENT_REQUESTS"
	EnvFallbackConfidence    = "FALLBACK_CONFIDENCE"
	EnvFallbackPenalty       = "FALLBACK_CONFIDENCE_PENALTY"
	EnvSessionQueue          = "ASSISTANT_SESSION_QUEUE"
	EnvTracing               = "ASSISTANT_TRACING"
	EnvPromptsFile           = "ASSISTANT_PROMPTS_FILE"
)

// DefaultEnvFiles are loaded by LoadDotEnv when no paths are given.
var DefaultEnvFiles = []string{".env", "../.env"}

// Defaults is the configuration new sessions start with.
type Defaults struct {
	SourceLanguage      string `json:"source_language"`
	TargetLanguage      string `json:"target_language"`
	STTProvider         string `json:"stt_provider"`
	TranslationProvider string `json:"translation_provider"`
	AnswerProvider      string `json:"answer_provider"`
	AnswerStyle         string `json:"answer_style"`
	AnswerMaxLength     int    `json:"answer_max_length"`
}

// Validate checks fields that every session relies on.
func (d Defaults) Validate() error {
	if strings.TrimSpace(d.SourceLanguage) == "" {
		return fmt.Errorf("source_language is required")
	}
	if strings.TrimSpace(d.TargetLanguage) == "" {
		return fmt.Errorf("target_language is required")
	}
	if strings.EqualFold(strings.TrimSpace(d.TargetLanguage), pipeline.AutoLanguage) {
		return fmt.Errorf("target_language cannot be %q", pipeline.AutoLanguage)
	}
	if strings.TrimSpace(d.AnswerStyle) == "" {
		return fmt.Errorf("answer_style is required")
	}
	if d.AnswerMaxLength < 1 {
		return fmt.Errorf("answer_max_length must be >=1")
	}
	return nil
}

// Snapshot converts the defaults into a session snapshot without an id.
func (d Defaults) Snapshot() pipeline.Snapshot {
	return pipeline.Snapshot{
		SourceLanguage: d.SourceLanguage,
		TargetLanguage: d.TargetLanguage,
		Providers: pipeline.Providers{
			STT:         d.STTProvider,
			Translation: d.TranslationProvider,
			Generation:  d.AnswerProvider,
		},
		AnswerStyle: d.AnswerStyle,
		MaxLength:   d.AnswerMaxLength,
	}
}

// Settings is the process configuration read once at startup.
type Settings struct {
	Host     string
	Port     int
	LogLevel string
	Debug    bool

	Defaults Defaults

	RequestTimeout        time.Duration
	MaxConcurrentRequests int
	FallbackConfidence    float64
	FallbackPenalty       float64
	SessionQueue          int
	Tracing               string
	PromptsFile           string
}

// Addr is the listen address.
func (s Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ControllerConfig maps the settings onto the stage runner config.
func (s Settings) ControllerConfig() invocation.Config {
	return invocation.Config{
		CallTimeout:        s.RequestTimeout,
		FallbackConfidence: s.FallbackConfidence,
		FallbackPenalty:    s.FallbackPenalty,
		MaxConcurrentCalls: int64(s.MaxConcurrentRequests),
	}
}

// LoadDotEnv loads env files that exist. Variables already set in the
// process environment are never overridden.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = DefaultEnvFiles
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// FromEnv reads settings through r.
func FromEnv(r config.Resolver) (Settings, error) {
	s := Settings{
		Host:     r.Value(EnvHost, "0.0.0.0"),
		LogLevel: r.Value(EnvLogLevel, "info"),
		Debug:    r.Enabled(EnvDebug, false),
		Defaults: Defaults{
			SourceLanguage:      r.Value(EnvSourceLanguage, pipeline.AutoLanguage),
			TargetLanguage:      r.Value(EnvTargetLanguage, "en"),
			STTProvider:         r.Value(EnvSTTProvider, ""),
			TranslationProvider: r.Value(EnvTranslationProvider, ""),
			AnswerProvider:      r.Value(EnvAnswerProvider, ""),
			AnswerStyle:         r.Value(EnvAnswerStyle, "professional"),
		},
		Tracing:     strings.ToLower(r.Value(EnvTracing, "none")),
		PromptsFile: r.Value(EnvPromptsFile, ""),
	}

	var timeoutSeconds float64
	for _, field := range []struct {
		name     string
		dst      *int
		fallback int
	}{
		{name: EnvPort, dst: &s.Port, fallback: 8000},
		{name: EnvAnswerMaxLength, dst: &s.Defaults.AnswerMaxLength, fallback: 150},
		{name: EnvMaxConcurrentRequests, dst: &s.MaxConcurrentRequests, fallback: 5},
		{name: EnvSessionQueue, dst: &s.SessionQueue, fallback: 16},
	} {
		v, err := intValue(r, field.name, field.fallback)
		if err != nil {
			return Settings{}, err
		}
		*field.dst = v
	}
	for _, field := range []struct {
		name     string
		dst      *float64
		fallback float64
		limit    float64
	}{
		{name: EnvRequestTimeout, dst: &timeoutSeconds, fallback: 10, limit: 600},
		{name: EnvFallbackConfidence, dst: &s.FallbackConfidence, fallback: 0.8, limit: 1},
		{name: EnvFallbackPenalty, dst: &s.FallbackPenalty, fallback: 0.05, limit: 1},
	} {
		v, err := floatValue(r, field.name, field.fallback, field.limit)
		if err != nil {
			return Settings{}, err
		}
		*field.dst = v
	}
	s.RequestTimeout = time.Duration(timeoutSeconds * float64(time.Second))

	if s.Tracing != "stdout" && s.Tracing != "none" {
		return Settings{}, fmt.Errorf("%s must be stdout or none", EnvTracing)
	}
	if err := s.Defaults.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func intValue(r config.Resolver, name string, fallback int) (int, error) {
	raw := r.Value(name, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be integer >=1", name)
	}
	return v, nil
}

func floatValue(r config.Resolver, name string, fallback, limit float64) (float64, error) {
	raw := r.Value(name, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > limit {
		return 0, fmt.Errorf("%s must be a number in [0,%g]", name, limit)
	}
	return v, nil
}
