// Package i18n provides the catalog of user-facing reply messages.
package i18n

import (
	"fmt"
)

// DefaultLanguage is the fallback language when no translation is available.
const DefaultLanguage = "en"

// Localizer provides translation functionality.
type Localizer struct {
	language string
	messages map[string]string
}

// NewLocalizer creates a new localizer for the specified language.
func NewLocalizer(language string) *Localizer {
	return &Localizer{
		language: language,
		messages: getMessages(language),
	}
}

// T translates a message key, with optional parameters for formatting.
func (l *Localizer) T(key string, args ...interface{}) string {
	if message, exists := l.messages[key]; exists {
		if len(args) > 0 {
			return fmt.Sprintf(message, args...)
		}
		return message
	}

	if l.language != DefaultLanguage {
		if fallback, exists := getMessages(DefaultLanguage)[key]; exists {
			if len(args) > 0 {
				return fmt.Sprintf(fallback, args...)
			}
			return fallback
		}
	}

	// Ultimate fallback: return the key itself.
	return key
}

func getMessages(language string) map[string]string {
	switch language {
	case DefaultLanguage:
		return englishMessages
	default:
		return englishMessages
	}
}
