package pipeline

import "strings"

// AutoLanguage asks providers to detect the language.
const AutoLanguage = "auto"

// BaseLanguage returns the lowercased primary subtag of tag ("zh-CN" -> "zh").
func BaseLanguage(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	return tag
}

// SameLanguage compares primary subtags only; scripts and regions are
// ignored. "auto" and empty tags never match anything.
func SameLanguage(a, b string) bool {
	baseA, baseB := BaseLanguage(a), BaseLanguage(b)
	if baseA == "" || baseA == AutoLanguage || baseB == "" || baseB == AutoLanguage {
		return false
	}
	return baseA == baseB
}
