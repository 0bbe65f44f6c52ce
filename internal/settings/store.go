package settings

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Patch is a partial update of Defaults. Nil fields are left unchanged.
type Patch struct {
	SourceLanguage      *string `json:"source_language,omitempty"`
	TargetLanguage      *string `json:"target_language,omitempty"`
	STTProvider         *string `json:"stt_provider,omitempty"`
	TranslationProvider *string `json:"translation_provider,omitempty"`
	AnswerProvider      *string `json:"answer_provider,omitempty"`
	AnswerStyle         *string `json:"answer_style,omitempty"`
	AnswerMaxLength     *int    `json:"answer_max_length,omitempty"`
}

// Store holds the mutable session defaults. Updates affect sessions created
// afterwards only.
type Store struct {
	mu       sync.RWMutex
	defaults Defaults
	styles   []string
}

// NewStore validates defaults against the known answer styles. An empty
// styles list accepts any style.
func NewStore(defaults Defaults, styles []string) (*Store, error) {
	s := &Store{styles: append([]string(nil), styles...)}
	if err := s.validate(defaults); err != nil {
		return nil, err
	}
	s.defaults = defaults
	return s, nil
}

// Get returns the current defaults.
func (s *Store) Get() Defaults {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults
}

// Update applies patch atomically. An invalid patch leaves the store unchanged.
func (s *Store) Update(patch Patch) (Defaults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.defaults
	apply := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	apply(&next.SourceLanguage, patch.SourceLanguage)
	apply(&next.TargetLanguage, patch.TargetLanguage)
	apply(&next.STTProvider, patch.STTProvider)
	apply(&next.TranslationProvider, patch.TranslationProvider)
	apply(&next.AnswerProvider, patch.AnswerProvider)
	apply(&next.AnswerStyle, patch.AnswerStyle)
	if patch.AnswerMaxLength != nil {
		next.AnswerMaxLength = *patch.AnswerMaxLength
	}
	if err := s.validate(next); err != nil {
		return s.defaults, err
	}
	s.defaults = next
	return next, nil
}

func (s *Store) validate(d Defaults) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if len(s.styles) > 0 && !slices.Contains(s.styles, d.AnswerStyle) {
		return fmt.Errorf("unknown answer_style %q", d.AnswerStyle)
	}
	return nil
}
