package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"overdub/internal/services"
)

// wordForms maps full language names to their codes for user convenience.
var wordForms = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"polish":     "pl",
	"turkish":    "tr",
}

// Normalize resolves any recognized language input to its canonical
// base-language code ("en", "es", ...). Region subtags are stripped.
func Normalize(code string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(code))
	if trimmed == "" {
		return "", services.Wrap(services.ErrValidation, "", "normalize language", "language code is empty", nil)
	}
	if mapped, ok := wordForms[trimmed]; ok {
		trimmed = mapped
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "", "normalize language",
			fmt.Sprintf("unrecognized language %q", code), err)
	}
	base, _ := tag.Base()
	return base.String(), nil
}

// Equal reports whether two language inputs resolve to the same base
// language. Unparseable inputs fall back to a case-insensitive string
// comparison so that a detected code from an external service never breaks
// the skip-translation decision.
func Equal(a, b string) bool {
	na, errA := Normalize(a)
	nb, errB := Normalize(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
	}
	return na == nb
}

// DisplayName renders a human-readable English name for a language code,
// falling back to the raw input when unrecognized.
func DisplayName(code string) string {
	normalized, err := Normalize(code)
	if err != nil {
		return code
	}
	tag, err := language.Parse(normalized)
	if err != nil {
		return code
	}
	name := display.English.Tags().Name(tag)
	if name == "" {
		return code
	}
	return name
}
