package store

import (
	"errors"
	"strings"

	"chatguard/pkg/text"
)

// ErrEmptyWord is returned when a stopword is blank after normalization.
var ErrEmptyWord = errors.New("stopword is empty")

// wordKey normalizes a stopword and derives the case-insensitive key it is deduplicated by.
func wordKey(word string) (normalized, key string, err error) {
	normalized = text.NormalizeWord(word)
	if normalized == "" {
		return "", "", ErrEmptyWord
	}
	return normalized, strings.ToLower(normalized), nil
}
