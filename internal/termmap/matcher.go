package termmap

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Match filters the term map to only terms that appear in the given texts
// as whole words. Matching is case-sensitive so acronyms and proper nouns
// do not collide with ordinary words.
func Match(tm TermMap, texts []string) MatchResult {
	matched := make(TermMap)

	for source, target := range tm {
		for _, text := range texts {
			if containsWord(text, source) {
				matched[source] = target
				break
			}
		}
	}

	return MatchResult{Matched: matched}
}

// Terms returns the matched source terms in a stable order.
func (r MatchResult) Terms() []string {
	terms := make([]string, 0, len(r.Matched))
	for source := range r.Matched {
		terms = append(terms, source)
	}
	sort.Strings(terms)
	return terms
}

func containsWord(text, word string) bool {
	if word == "" {
		return false
	}
	offset := 0
	for {
		i := strings.Index(text[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(word)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
