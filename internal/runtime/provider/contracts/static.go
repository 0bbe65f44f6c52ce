package contracts

import "context"

// StaticTranscriber is a small utility adapter for tests and static catalogs.
type StaticTranscriber struct {
	ID           string
	TranscribeFn func(context.Context, TranscribeRequest) (Transcription, error)
}

func (a StaticTranscriber) ProviderID() string     { return a.ID }
func (a StaticTranscriber) Capability() Capability { return CapabilitySTT }

func (a StaticTranscriber) Transcribe(ctx context.Context, req TranscribeRequest) (Transcription, error) {
	if a.TranscribeFn != nil {
		return a.TranscribeFn(ctx, req)
	}
	return Transcription{Text: "static transcription", DetectedLanguage: req.LanguageHint}, nil
}

// StaticTranslator is a small utility adapter for tests and static catalogs.
type StaticTranslator struct {
	ID          string
	TranslateFn func(context.Context, TranslateRequest) (Translation, error)
}

func (a StaticTranslator) ProviderID() string     { return a.ID }
func (a StaticTranslator) Capability() Capability { return CapabilityTranslation }

func (a StaticTranslator) Translate(ctx context.Context, req TranslateRequest) (Translation, error) {
	if a.TranslateFn != nil {
		return a.TranslateFn(ctx, req)
	}
	return Translation{Text: req.Text, DetectedSource: req.Source}, nil
}

// StaticGenerator is a small utility adapter for tests and static catalogs.
type StaticGenerator struct {
	ID         string
	GenerateFn func(context.Context, GenerateRequest) (Generation, error)
}

func (a StaticGenerator) ProviderID() string     { return a.ID }
func (a StaticGenerator) Capability() Capability { return CapabilityGeneration }

func (a StaticGenerator) Generate(ctx context.Context, req GenerateRequest) (Generation, error) {
	if a.GenerateFn != nil {
		return a.GenerateFn(ctx, req)
	}
	return Generation{Text: "static answer."}, nil
}
