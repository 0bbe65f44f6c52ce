package answer

import "strings"

// QuestionType is a coarse interview question category.
type QuestionType string

const (
	QuestionIntroduction   QuestionType = "introduction"
	QuestionMotivation     QuestionType = "motivation"
	QuestionSelfAssessment QuestionType = "self_assessment"
	QuestionExperience     QuestionType = "experience"
	QuestionProblemSolving QuestionType = "problem_solving"
	QuestionFutureGoals    QuestionType = "future_goals"
	QuestionGeneral        QuestionType = "general"
)

var questionKeywords = []struct {
	kind    QuestionType
	phrases []string
}{
	{QuestionIntroduction, []string{"tell me about yourself", "introduce yourself"}},
	{QuestionMotivation, []string{"why do you want", "why are you interested"}},
	{QuestionSelfAssessment, []string{"strength", "weakness"}},
	{QuestionExperience, []string{"experience", "project", "worked on"}},
	{QuestionProblemSolving, []string{"challenge", "difficult", "problem"}},
	{QuestionFutureGoals, []string{"future", "goal", "plan"}},
}

// ClassifyQuestion returns the first category whose phrase appears in question.
func ClassifyQuestion(question string) QuestionType {
	lower := strings.ToLower(question)
	for _, entry := range questionKeywords {
		for _, phrase := range entry.phrases {
			if strings.Contains(lower, phrase) {
				return entry.kind
			}
		}
	}
	return QuestionGeneral
}

// Quality is a heuristic score for a generated answer.
type Quality struct {
	Score             float64 `json:"score"`
	LengthOK          bool    `json:"length_appropriate"`
	HasPunctuation    bool    `json:"has_punctuation"`
	NotRepetitive     bool    `json:"not_too_repetitive"`
	AddressesQuestion bool    `json:"addresses_question"`
	Acceptable        bool    `json:"is_acceptable"`
}

// AssessQuality scores answer against four checks; 0.75 or more is acceptable.
func AssessQuality(answer, question string) Quality {
	words := strings.Fields(answer)
	q := Quality{
		LengthOK:       len(words) >= 20 && len(words) <= 150,
		HasPunctuation: endsSentence(answer),
	}
	if len(words) > 0 {
		unique := map[string]struct{}{}
		for _, w := range words {
			unique[w] = struct{}{}
		}
		q.NotRepetitive = float64(len(unique))/float64(len(words)) > 0.7
	}

	questionWords := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(question)) {
		questionWords[w] = struct{}{}
	}
	for _, w := range strings.Fields(strings.ToLower(answer)) {
		if _, ok := questionWords[w]; ok {
			q.AddressesQuestion = true
			break
		}
	}

	passed := 0
	for _, ok := range []bool{q.LengthOK, q.HasPunctuation, q.NotRepetitive, q.AddressesQuestion} {
		if ok {
			passed++
		}
	}
	q.Score = float64(passed) / 4
	q.Acceptable = q.Score >= 0.75
	return q
}
