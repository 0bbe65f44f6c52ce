package answer

import "strings"

// sentenceCutRatio is the fraction of the truncated text a '.' must lie
// beyond before truncation prefers it over the hard word cut.
const sentenceCutRatio = 0.7

// PostProcess normalizes a generated answer: whitespace runs collapse to one
// space, the text is cut to maxWords words (preferring a sentence end in the
// final 30%), and a terminal '.' is appended when the text does not end in
// '.', '!' or '?'. maxWords <= 0 disables truncation.
func PostProcess(text string, maxWords int) string {
	words := strings.Fields(text)
	truncated := maxWords > 0 && len(words) > maxWords
	if truncated {
		words = words[:maxWords]
	}
	out := strings.Join(words, " ")

	if truncated && !strings.HasSuffix(out, ".") {
		runes := []rune(out)
		for i := len(runes) - 1; i >= 0; i-- {
			if runes[i] != '.' {
				continue
			}
			if float64(i) > float64(len(runes))*sentenceCutRatio {
				out = string(runes[:i+1])
			}
			break
		}
	}

	if !endsSentence(out) {
		out += "."
	}
	return out
}

func endsSentence(s string) bool {
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?")
}
