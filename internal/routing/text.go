package routing

import (
	"strings"
	"unicode"
)

// token is a lowercased word with its character span in the original text.
type token struct {
	Text  string
	Start int
	End   int
}

// tokenize splits text into lowercase alphanumeric tokens, preserving spans.
func tokenize(text string) []token {
	var tokens []token
	start := -1
	var b strings.Builder
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if start >= 0 {
			tokens = append(tokens, token{Text: b.String(), Start: start, End: i})
			b.Reset()
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, token{Text: b.String(), Start: start, End: len(text)})
	}
	return tokens
}

func tokenTexts(tokens []token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Text
	}
	return out
}

func hasAlphabetic(tokens []token) bool {
	for _, t := range tokens {
		for _, r := range t.Text {
			if unicode.IsLetter(r) {
				return true
			}
		}
	}
	return false
}

// containsPhrase reports whether phrase occurs as a contiguous token run.
func containsPhrase(tokens []string, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return false
	}
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		match := true
		for j, p := range phrase {
			if tokens[i+j] != p {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// containsScattered reports whether every phrase token appears somewhere in
// the query, contiguous or not.
func containsScattered(set map[string]struct{}, phrase []string) bool {
	if len(phrase) == 0 {
		return false
	}
	for _, p := range phrase {
		if _, ok := set[p]; !ok {
			return false
		}
	}
	return true
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
