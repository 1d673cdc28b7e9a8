package util

import (
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "to": {}, "of": {}, "in": {}, "on": {},
	"for": {}, "is": {}, "are": {}, "was": {}, "were": {}, "what": {}, "how": {}, "why": {},
	"which": {}, "that": {}, "this": {}, "these": {}, "those": {}, "with": {}, "from": {},
	"does": {}, "paper": {}, "main": {},
}

// Truncate collapses whitespace and cuts s to maxRunes runes, appending
// "..." when something was cut.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = 200
	}
	s = strings.Join(strings.Fields(SanitizeText(s)), " ")
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + "..."
}

// SourceSnippet picks the chunk sentence that shares the most terms with the
// question and returns the text from there, truncated to maxRunes. Without
// any shared term the snippet starts at the beginning of the chunk.
func SourceSnippet(chunkText, question string, maxRunes int) string {
	clean := strings.Join(strings.Fields(SanitizeText(chunkText)), " ")
	if clean == "" {
		return ""
	}
	terms := queryTerms(question)
	if len(terms) == 0 {
		return Truncate(clean, maxRunes)
	}
	bestStart, bestScore := 0, 0
	for _, s := range sentenceStarts(clean) {
		end := nextSentenceEnd(clean, s)
		low := strings.ToLower(clean[s:end])
		score := 0
		for _, term := range terms {
			if strings.Contains(low, term) {
				score++
			}
		}
		if score > bestScore {
			bestStart, bestScore = s, score
		}
	}
	return Truncate(clean[bestStart:], maxRunes)
}

func sentenceStarts(s string) []int {
	out := []int{0}
	for i := 0; i < len(s)-1; i++ {
		switch s[i] {
		case '.', '!', '?':
			if s[i+1] == ' ' && i+2 < len(s) {
				out = append(out, i+2)
			}
		}
	}
	return out
}

func nextSentenceEnd(s string, start int) int {
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '.', '!', '?':
			return i + 1
		}
	}
	return len(s)
}

func queryTerms(q string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 8)
	for _, f := range strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len([]rune(f)) < 3 {
			continue
		}
		if _, ok := stopWords[f]; ok {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
