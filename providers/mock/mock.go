package mock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tiger/interview-assistant/internal/runtime/provider/contracts"
)

// ProviderID is the id every mock adapter registers under.
const ProviderID = "mock"

// MockTranscription is the fixed STT output.
const MockTranscription = "This is a mock transcription for testing purposes."

const (
	transcriptionConfidence = 0.95
	translationConfidence   = 0.90
	generationConfidence    = 0.85
)

// Adapters returns one mock adapter per capability.
func Adapters() []contracts.Adapter {
	return []contracts.Adapter{Transcriber{}, Translator{}, Generator{}}
}

// For returns the mock adapter of a capability.
func For(capability contracts.Capability) (contracts.Adapter, bool) {
	switch capability {
	case contracts.CapabilitySTT:
		return Transcriber{}, true
	case contracts.CapabilityTranslation:
		return Translator{}, true
	case contracts.CapabilityGeneration:
		return Generator{}, true
	default:
		return nil, false
	}
}

// Transcriber returns canned text for any audio.
type Transcriber struct {
	// Delay simulates provider latency.
	Delay time.Duration
}

func (Transcriber) ProviderID() string                { return ProviderID }
func (Transcriber) Capability() contracts.Capability { return contracts.CapabilitySTT }

func (t Transcriber) Transcribe(ctx context.Context, req contracts.TranscribeRequest) (contracts.Transcription, error) {
	if err := wait(ctx, t.Delay); err != nil {
		return contracts.Transcription{}, err
	}
	language := strings.TrimSpace(req.LanguageHint)
	if language == "" || strings.EqualFold(language, "auto") {
		language = "en"
	}
	return contracts.Transcription{
		Text:             MockTranscription,
		DetectedLanguage: language,
		Confidence:       transcriptionConfidence,
		HasConfidence:    true,
	}, nil
}

// Translator prefixes the input with a target-language tag.
type Translator struct {
	Delay time.Duration
}

func (Translator) ProviderID() string                { return ProviderID }
func (Translator) Capability() contracts.Capability { return contracts.CapabilityTranslation }

func (t Translator) Translate(ctx context.Context, req contracts.TranslateRequest) (contracts.Translation, error) {
	if err := wait(ctx, t.Delay); err != nil {
		return contracts.Translation{}, err
	}
	var prefix string
	switch strings.ToLower(req.Target) {
	case "zh":
		prefix = "[中文翻译]"
	case "en":
		prefix = "[English Translation]"
	default:
		prefix = fmt.Sprintf("[%s Translation]", strings.ToUpper(req.Target))
	}
	return contracts.Translation{
		Text:           prefix + " " + req.Text,
		DetectedSource: req.Source,
		Confidence:     translationConfidence,
		HasConfidence:  true,
	}, nil
}

// Generator picks a canned answer by keyword.
type Generator struct {
	Delay time.Duration
}

func (Generator) ProviderID() string                { return ProviderID }
func (Generator) Capability() contracts.Capability { return contracts.CapabilityGeneration }

var cannedAnswers = []struct {
	keywords []string
	answer   string
}{
	{
		keywords: []string{"tell me about yourself", "introduce yourself"},
		answer:   "I am a dedicated professional with strong communication skills and a passion for continuous learning. I believe my experience and enthusiasm make me a great fit for this role.",
	},
	{
		keywords: []string{"why do you want"},
		answer:   "I am excited about this opportunity because it aligns perfectly with my career goals and allows me to contribute my skills while growing professionally.",
	},
	{
		keywords: []string{"strength"},
		answer:   "One of my key strengths is my ability to work collaboratively while maintaining attention to detail. I consistently deliver high-quality results under pressure.",
	},
	{
		keywords: []string{"weakness"},
		answer:   "I sometimes focus too much on perfecting details, but I've learned to balance thoroughness with meeting deadlines effectively.",
	},
	{
		keywords: []string{"experience"},
		answer:   "In my previous roles, I have successfully managed projects and collaborated with diverse teams to achieve challenging goals and deliver excellent results.",
	},
}

// DefaultAnswer is returned when no keyword matches.
const DefaultAnswer = "That's an excellent question. Based on my experience and understanding of the role, I believe the key is to approach challenges systematically while maintaining clear communication with stakeholders."

func (g Generator) Generate(ctx context.Context, req contracts.GenerateRequest) (contracts.Generation, error) {
	if err := wait(ctx, g.Delay); err != nil {
		return contracts.Generation{}, err
	}
	return contracts.Generation{
		Text:          CannedAnswer(req.Question),
		Confidence:    generationConfidence,
		HasConfidence: true,
	}, nil
}

// CannedAnswer returns the mock answer for question.
func CannedAnswer(question string) string {
	lowered := strings.ToLower(question)
	for _, candidate := range cannedAnswers {
		for _, keyword := range candidate.keywords {
			if strings.Contains(lowered, keyword) {
				return candidate.answer
			}
		}
	}
	return DefaultAnswer
}

func wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
