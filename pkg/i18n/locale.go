package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// DefaultLanguage is used when no locale is set on the context.
const DefaultLanguage = "en"

// Canonicalize parses a BCP 47 or POSIX-style locale ("pt_BR", "en-us") and
// returns its canonical BCP 47 form ("pt-BR", "en-US").
func Canonicalize(locale string) (string, bool) {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return "", false
	}
	if i := strings.IndexAny(locale, ".@"); i > 0 {
		// Drop POSIX codeset and modifier: "de_DE.UTF-8@euro".
		locale = locale[:i]
	}
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return "", false
	}
	return tag.String(), true
}

// Base returns the base language of a locale ("pt-BR" -> "pt").
func Base(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return locale
	}
	base, _ := tag.Base()
	return base.String()
}
