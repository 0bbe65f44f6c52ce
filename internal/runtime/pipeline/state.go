package pipeline

import "fmt"

// State is a pipeline run state.
type State string

const (
	StateIdle               State = "idle"
	StateTranscribing       State = "transcribing"
	StateTranslating        State = "translating"
	StateTranslationSkipped State = "translation_skipped"
	StateGenerating         State = "generating"
	StateDone               State = "done"
	StateFailed             State = "failed"
)

var allowedTransitions = map[State][]State{
	StateIdle:               {StateTranscribing, StateFailed},
	StateTranscribing:       {StateDone, StateTranslating, StateTranslationSkipped, StateFailed},
	StateTranslating:        {StateGenerating, StateFailed},
	StateTranslationSkipped: {StateGenerating, StateFailed},
	StateGenerating:         {StateDone, StateFailed},
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Stage is the label reported in error events for a failure in state s.
func (s State) Stage() string {
	switch s {
	case StateTranscribing:
		return "transcription"
	case StateTranslating:
		return "translation"
	case StateGenerating:
		return "answer_generation"
	default:
		return string(s)
	}
}

// Transition is one recorded state change.
type Transition struct {
	From State `json:"from"`
	To   State `json:"to"`
}

// Validate rejects transitions outside the run state machine.
func (t Transition) Validate() error {
	for _, to := range allowedTransitions[t.From] {
		if to == t.To {
			return nil
		}
	}
	return fmt.Errorf("invalid pipeline transition %s -> %s", t.From, t.To)
}
