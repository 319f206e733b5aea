// Package i18n provides internationalization support for user-facing messages
package i18n

import (
	"fmt"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
)

const (
	// DefaultLanguage is the fallback language when no translation is available
	DefaultLanguage = "en"
	// RussianMessages selects the Russian catalog
	RussianMessages = "ru"
)

// pluralSuffixes names the catalog key suffix for each CLDR plural form.
// Other has no suffix: the bare key carries it.
var pluralSuffixes = map[plural.Form]string{
	plural.Zero: ".zero",
	plural.One:  ".one",
	plural.Two:  ".two",
	plural.Few:  ".few",
	plural.Many: ".many",
}

// Localizer provides translation functionality
type Localizer struct {
	language string
	tag      language.Tag
	messages map[string]string
}

// NewLocalizer creates a new localizer for the specified language
func NewLocalizer(lang string) *Localizer {
	tag := language.English
	if lang == RussianMessages {
		tag = language.Russian
	}
	return &Localizer{
		language: lang,
		tag:      tag,
		messages: getMessages(lang),
	}
}

// T translates a message key, with optional parameters for formatting
func (l *Localizer) T(key string, args ...interface{}) string {
	message, ok := l.lookup(key)
	if !ok {
		// Ultimate fallback: return the key itself
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(message, args...)
	}
	return message
}

// TN translates key in the plural form the language uses for count n.
// A form missing from the catalog falls back to the bare key.
func (l *Localizer) TN(key string, n int, args ...interface{}) string {
	if suffix, ok := pluralSuffixes[l.pluralForm(n)]; ok {
		if message, exists := l.messages[key+suffix]; exists {
			return fmt.Sprintf(message, args...)
		}
	}
	return l.T(key, args...)
}

func (l *Localizer) pluralForm(n int) plural.Form {
	if n < 0 {
		n = -n
	}
	return plural.Cardinal.MatchPlural(l.tag, n, 0, 0, 0, 0)
}

// lookup finds key in the current language, then in English
func (l *Localizer) lookup(key string) (string, bool) {
	if message, exists := l.messages[key]; exists {
		return message, true
	}
	if l.language != DefaultLanguage {
		if message, exists := getMessages(DefaultLanguage)[key]; exists {
			return message, true
		}
	}
	return "", false
}

// GetSupportedLanguages returns list of supported language codes
func GetSupportedLanguages() []string {
	return []string{DefaultLanguage, RussianMessages}
}

// getMessages returns the message map for a given language
func getMessages(language string) map[string]string {
	switch language {
	case DefaultLanguage:
		return englishMessages
	case RussianMessages:
		return russianMessages
	default:
		return englishMessages // Default to English
	}
}
