package httpapi

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tiger/interview-assistant/api/transport"
	"github.com/tiger/interview-assistant/internal/runtime/answer"
	"github.com/tiger/interview-assistant/internal/runtime/audio"
	"github.com/tiger/interview-assistant/internal/runtime/pipeline"
	"github.com/tiger/interview-assistant/internal/runtime/provider/contracts"
	"github.com/tiger/interview-assistant/internal/runtime/provider/invocation"
	"github.com/tiger/interview-assistant/internal/runtime/provider/registry"
	"github.com/tiger/interview-assistant/internal/settings"
)

var serviceNames = map[contracts.Capability]string{
	contracts.CapabilitySTT:         "speech_to_text",
	contracts.CapabilityTranslation: "translation",
	contracts.CapabilityGeneration:  "ai_generation",
}

type healthResponse struct {
	Status    string                                             `json:"status"`
	Timestamp string                                             `json:"timestamp"`
	Version   string                                             `json:"version"`
	Services  map[string]string                                  `json:"services"`
	Providers map[contracts.Capability][]string                  `json:"providers"`
	Detail    map[contracts.Capability][]registry.ProviderHealth `json:"provider_health"`
	Sessions  int                                                `json:"sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	catalog := s.app.Catalog
	resp := healthResponse{
		Status:    "healthy",
		Timestamp: s.app.Now().UTC().Format(time.RFC3339Nano),
		Version:   s.app.Version,
		Services:  map[string]string{},
		Providers: map[contracts.Capability][]string{},
		Detail:    map[contracts.Capability][]registry.ProviderHealth{},
		Sessions:  s.app.Hub.Count(),
	}
	for _, capability := range contracts.Capabilities {
		status := "healthy"
		if !catalog.Healthy(capability) {
			status = "unhealthy"
			resp.Status = "degraded"
		}
		resp.Services[serviceNames[capability]] = status
		resp.Providers[capability] = catalog.Providers(capability)
		resp.Detail[capability] = catalog.Health(capability)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConfigCurrent(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Store.Get())
}

func (s *Server) handleConfigUpdate(w http.ResponseWriter, r *http.Request) {
	var patch settings.Patch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := s.app.Store.Update(patch)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger().Infow("session defaults updated", "defaults", updated)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Configuration updated",
		"config":  updated,
	})
}

type transcribeRequest struct {
	AudioData  string `json:"audio_data"`
	Language   string `json:"language"`
	Provider   string `json:"provider"`
	SampleRate int    `json:"sample_rate"`
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	var req transcribeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(req.AudioData))
	if err != nil || len(data) == 0 {
		writeError(w, http.StatusBadRequest, "audio_data must be non-empty base64")
		return
	}
	language := defaultString(req.Language, pipeline.AutoLanguage)
	sampleRate := req.SampleRate
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}

	call, ok := s.call(w, contracts.CapabilitySTT, req.Provider)
	if !ok {
		return
	}
	result, err := s.app.Controller.Transcribe(r.Context(), call, contracts.TranscribeRequest{Audio: data, LanguageHint: language, SampleRate: sampleRate})
	if err != nil {
		s.stageFailed(w, call, err)
		return
	}
	detected := defaultString(result.Value.DetectedLanguage, language)
	writeJSON(w, http.StatusOK, transport.TranscriptionData{
		Text:           result.Value.Text,
		Confidence:     result.Confidence,
		Language:       detected,
		ProcessingTime: result.Elapsed,
		Provider:       result.Provider,
		Fallback:       result.Fallback,
	})
}

type translateRequest struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	Provider       string `json:"provider"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	source := defaultString(req.SourceLanguage, pipeline.AutoLanguage)
	target := defaultString(req.TargetLanguage, "en")

	call, ok := s.call(w, contracts.CapabilityTranslation, req.Provider)
	if !ok {
		return
	}
	result, err := s.app.Controller.Translate(r.Context(), call, contracts.TranslateRequest{Text: req.Text, Source: source, Target: target})
	if err != nil {
		s.stageFailed(w, call, err)
		return
	}
	if result.Value.DetectedSource != "" && pipeline.BaseLanguage(source) == pipeline.AutoLanguage {
		source = result.Value.DetectedSource
	}
	writeJSON(w, http.StatusOK, transport.TranslationData{
		OriginalText:   req.Text,
		TranslatedText: result.Value.Text,
		SourceLanguage: source,
		TargetLanguage: target,
		Confidence:     result.Confidence,
		ProcessingTime: result.Elapsed,
		Provider:       result.Provider,
		Fallback:       result.Fallback,
	})
}

type generateRequest struct {
	Question  string `json:"question"`
	Context   string `json:"context"`
	Style     string `json:"style"`
	MaxLength int    `json:"max_length"`
	Language  string `json:"language"`
	Provider  string `json:"provider"`
}

func (s *Server) handleGenerateAnswer(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	style := defaultString(req.Style, s.app.Prompts.DefaultStyle)
	maxLength := req.MaxLength
	if maxLength <= 0 {
		maxLength = 150
	}

	call, ok := s.call(w, contracts.CapabilityGeneration, req.Provider)
	if !ok {
		return
	}
	result, err := s.app.Controller.Generate(r.Context(), call, contracts.GenerateRequest{
		Question:  req.Question,
		Style:     style,
		Context:   req.Context,
		Language:  defaultString(req.Language, "en"),
		MaxLength: maxLength,
		Prompt:    s.app.Prompts.Render(style, req.Question, req.Context),
	})
	if err != nil {
		s.stageFailed(w, call, err)
		return
	}
	processed := answer.PostProcess(result.Value.Text, maxLength)
	writeJSON(w, http.StatusOK, transport.AnswerData{
		Question:       req.Question,
		Answer:         processed,
		Confidence:     result.Confidence,
		ProcessingTime: result.Elapsed,
		Style:          style,
		Provider:       result.Provider,
		Fallback:       result.Fallback,
		QuestionType:   string(answer.ClassifyQuestion(req.Question)),
		QualityScore:   answer.AssessQuality(processed, req.Question).Score,
	})
}

type audioTestRequest struct {
	AudioData string `json:"audio_data"`
}

// handleAudioTest reports the RMS level of a PCM16 or WAV sample.
func (s *Server) handleAudioTest(w http.ResponseWriter, r *http.Request) {
	var req audioTestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(req.AudioData))
	if err != nil || len(data) == 0 {
		writeError(w, http.StatusBadRequest, "audio_data must be non-empty base64")
		return
	}
	if audio.IsWAV(data) {
		_, pcm, err := audio.ParseWAV(data)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		data = pcm
	}
	level := audio.RMSLevel(data)
	status := "low"
	if level > 0.1 {
		status = "good"
	}
	writeJSON(w, http.StatusOK, map[string]any{"level": level, "status": status})
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	s.app.Hub.ServeSession(w, r, r.PathValue("session_id"))
}

// call builds a one-shot stage call. The primary is the request's provider,
// then the configured default, then the first registered adapter. It writes
// 503 and returns false when the capability has no adapters.
func (s *Server) call(w http.ResponseWriter, capability contracts.Capability, provider string) (invocation.Call, bool) {
	catalog := s.app.Catalog
	if !catalog.Healthy(capability) {
		writeError(w, http.StatusServiceUnavailable, serviceNames[capability]+" service not available")
		return invocation.Call{}, false
	}
	primary := strings.TrimSpace(provider)
	if primary == "" {
		primary = configuredProvider(s.app.Store.Get(), capability)
	}
	if primary == "" {
		primary = catalog.DefaultProvider(capability)
	}
	id := uuid.NewString()
	return invocation.Call{SessionID: "http-" + id, RunID: id, Capability: capability, Primary: primary}, true
}

func configuredProvider(d settings.Defaults, capability contracts.Capability) string {
	switch capability {
	case contracts.CapabilitySTT:
		return strings.TrimSpace(d.STTProvider)
	case contracts.CapabilityTranslation:
		return strings.TrimSpace(d.TranslationProvider)
	case contracts.CapabilityGeneration:
		return strings.TrimSpace(d.AnswerProvider)
	default:
		return ""
	}
}

func (s *Server) stageFailed(w http.ResponseWriter, call invocation.Call, err error) {
	status := stageStatus(err)
	var allFailed *invocation.AllProvidersFailedError
	if errors.As(err, &allFailed) {
		s.logger().Warnw("one-shot stage failed", "capability", call.Capability, "primary", call.Primary, "error", err)
	} else {
		s.logger().Infow("one-shot stage rejected", "capability", call.Capability, "primary", call.Primary, "error", err)
	}
	writeError(w, status, err.Error())
}

func defaultString(v, fallback string) string {
	if trimmed := strings.TrimSpace(v); trimmed != "" {
		return trimmed
	}
	return fallback
}
