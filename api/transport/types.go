package transport

import (
	"fmt"
	"time"
)

// InboundType is a client-to-server frame type.
type InboundType string

const (
	InboundAudioChunk   InboundType = "audio_chunk"
	InboundConfigUpdate InboundType = "config_update"
	InboundPing         InboundType = "ping"
)

// Known reports whether t is handled by the server.
func (t InboundType) Known() bool {
	switch t {
	case InboundAudioChunk, InboundConfigUpdate, InboundPing:
		return true
	default:
		return false
	}
}

// OutboundType is a server-to-client frame type.
type OutboundType string

const (
	OutboundStatus        OutboundType = "status"
	OutboundTranscription OutboundType = "transcription"
	OutboundTranslation   OutboundType = "translation"
	OutboundAnswer        OutboundType = "answer"
	OutboundError         OutboundType = "error"
	OutboundPong          OutboundType = "pong"
	OutboundConfigUpdated OutboundType = "config_updated"
)

// Validate rejects frame types the client does not understand.
func (t OutboundType) Validate() error {
	switch t {
	case OutboundStatus, OutboundTranscription, OutboundTranslation, OutboundAnswer, OutboundError, OutboundPong, OutboundConfigUpdated:
		return nil
	default:
		return fmt.Errorf("invalid outbound type: %q", t)
	}
}

// Capabilities announced in the connect status frame.
var Capabilities = []string{"transcription", "translation", "answer_generation"}

// AudioChunk is a decoded audio_chunk payload.
type AudioChunk struct {
	Audio      []byte
	SampleRate int
	Duration   float64
}

// ConfigUpdate carries optional per-session language overrides.
type ConfigUpdate struct {
	SourceLanguage *string `json:"source_language,omitempty"`
	TargetLanguage *string `json:"target_language,omitempty"`
}

// Inbound is one decoded client frame. Exactly one payload field is set for
// known types; unknown types carry only Type.
type Inbound struct {
	Type         InboundType
	AudioChunk   *AudioChunk
	ConfigUpdate *ConfigUpdate
}

// Outbound is one server frame before encoding.
type Outbound struct {
	Type      OutboundType
	SessionID string
	Timestamp time.Time
	Data      any
}

type StatusData struct {
	Message      string   `json:"message"`
	SessionID    string   `json:"session_id"`
	Capabilities []string `json:"capabilities"`
}

type TranscriptionData struct {
	Text           string  `json:"text"`
	Confidence     float64 `json:"confidence"`
	Language       string  `json:"language"`
	ProcessingTime float64 `json:"processing_time"`
	Provider       string  `json:"provider"`
	Fallback       bool    `json:"fallback"`
}

type TranslationData struct {
	OriginalText   string  `json:"original_text"`
	TranslatedText string  `json:"translated_text"`
	SourceLanguage string  `json:"source_language"`
	TargetLanguage string  `json:"target_language"`
	Confidence     float64 `json:"confidence"`
	ProcessingTime float64 `json:"processing_time"`
	Provider       string  `json:"provider"`
	Fallback       bool    `json:"fallback"`
}

type AnswerData struct {
	Question       string  `json:"question"`
	Answer         string  `json:"answer"`
	Confidence     float64 `json:"confidence"`
	ProcessingTime float64 `json:"processing_time"`
	Style          string  `json:"style"`
	Provider       string  `json:"provider"`
	Fallback       bool    `json:"fallback"`
	QuestionType   string  `json:"question_type,omitempty"`
	QualityScore   float64 `json:"quality_score"`
}

// ErrorData reports a failed stage. Stage is "ingress" for frames rejected
// before a run starts.
type ErrorData struct {
	Stage   string `json:"stage"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type PongData struct {
	Timestamp string `json:"timestamp"`
}

type ConfigUpdatedData struct {
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}
