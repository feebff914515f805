package i18n

import (
	"log/slog"
)

// Option configures a Translator.
type Option func(*Translator)

// WithDefaultLanguage sets the language used when the requested locale and
// its base language have no translation.
func WithDefaultLanguage(lang string) Option {
	return func(t *Translator) {
		if canonical, ok := Canonicalize(lang); ok {
			t.defaultLang = canonical
		}
	}
}

// WithFallbackToKey controls whether T returns the key when no translation
// exists. Default is true.
func WithFallbackToKey(fallback bool) Option {
	return func(t *Translator) {
		t.fallbackToKey = fallback
	}
}

// WithLogger sets the translator logger. A discard logger is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Translator) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithMissingTranslationsLogging logs a warning for every missing key.
func WithMissingTranslationsLogging(log bool) Option {
	return func(t *Translator) {
		t.missingLogMode = log
	}
}
