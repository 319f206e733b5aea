// Package text provides the content predicates used to filter chat messages.
package text

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var linkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)https?://`),
	regexp.MustCompile(`(?i)t\.me/`),
	regexp.MustCompile(`@[a-zA-Z0-9_]{5,}`),
}

// HasLink reports whether text contains an http(s) URL, a t.me reference or an @handle
// of at least five characters.
func HasLink(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	for _, re := range linkPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// HasStopword reports whether any stopword occurs in text as a case-insensitive substring.
// Matching is by substring, not whole word.
func HasStopword(text string, stopwords []string) bool {
	if strings.TrimSpace(text) == "" || len(stopwords) == 0 {
		return false
	}

	haystack := fold(text)
	for _, word := range stopwords {
		needle := fold(strings.TrimSpace(word))
		if needle != "" && strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

// NormalizeWord trims a stopword and puts it in NFC form for storage
func NormalizeWord(word string) string {
	return norm.NFC.String(strings.TrimSpace(word))
}

// fold maps compatibility variants (full-width letters, ligatures) onto their plain form
// and lowercases the result
func fold(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}
