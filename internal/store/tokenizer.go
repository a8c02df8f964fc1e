package store

import (
	"regexp"
	"strings"
)

// clausePattern keeps dotted clause references such as "701.411.3.3"
// together as a single token instead of splitting on the dots. It is used
// both by the Bleve analyzer and by TokenizeRegulation.
const clausePattern = `[0-9]+(?:\.[0-9]+)+|[0-9a-zA-Z]+`

var tokenRegex = regexp.MustCompile(clausePattern)

// TokenizeRegulation splits regulation text into lowercase tokens,
// preserving dotted clause numbers and dropping single-character tokens.
func TokenizeRegulation(text string) []string {
	words := tokenRegex.FindAllString(text, -1)
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		lower := strings.ToLower(word)
		if len(lower) >= 2 {
			tokens = append(tokens, lower)
		}
	}
	return tokens
}

// BuildStopWordMap converts a slice of stop words to a lookup map.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}

// FilterStopWords removes stop words from a token list.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := stopWords[strings.ToLower(token)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
