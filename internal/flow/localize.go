// Package flow interprets the greeting buttons and scripted flows configured
// for a widget. Flow output is UI-local and never reaches the API.
package flow

import (
	"sort"

	"github.com/companin/widget/internal/model"
)

// FallbackLanguage is tried after the requested locale and the configured
// default language.
const FallbackLanguage = "en"

// Localize picks a translation from text: locale, then defaultLang, then
// English, then the first available language in sorted order.
func Localize(text model.LocalizedText, locale, defaultLang string) string {
	if len(text) == 0 {
		return ""
	}
	for _, lang := range []string{locale, defaultLang, FallbackLanguage} {
		if lang == "" {
			continue
		}
		if s, ok := text[lang]; ok && s != "" {
			return s
		}
	}

	keys := make([]string, 0, len(text))
	for k, v := range text {
		if v != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return text[keys[0]]
}
