package i18n

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Translator resolves translation keys for a locale. Lookups fall back from
// the full locale to its base language and then to the default language.
type Translator struct {
	translations   map[string]map[string]any
	defaultLang    string
	fallbackToKey  bool
	missingLogMode bool
	logger         *slog.Logger
	mu             sync.RWMutex
}

// NewTranslator loads translations from adapter and applies options.
func NewTranslator(ctx context.Context, adapter TranslationAdapter, options ...Option) (*Translator, error) {
	if adapter == nil {
		return nil, ErrNilAdapter
	}

	t := &Translator{
		defaultLang:   DefaultLanguage,
		fallbackToKey: true,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(t)
	}

	translations, err := adapter.Load(ctx)
	if err != nil {
		return nil, err
	}

	normalized := make(map[string]map[string]any, len(translations))
	for lang, entries := range translations {
		if lang == "" {
			return nil, ErrEmptyLanguageCode
		}
		if canonical, ok := Canonicalize(lang); ok {
			lang = canonical
		}
		if entries == nil {
			entries = map[string]any{}
		}
		normalized[lang] = entries
	}

	t.translations = normalized
	t.logger.InfoContext(ctx, "translations loaded", slog.Any("languages", t.supportedLanguages()))
	return t, nil
}

func (t *Translator) supportedLanguages() []string {
	langs := make([]string, 0, len(t.translations))
	for lang := range t.translations {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// SupportedLanguages returns the loaded language codes in sorted order.
func (t *Translator) SupportedLanguages() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.supportedLanguages()
}

// HasTranslation reports whether key resolves for lang, including fallbacks.
func (t *Translator) HasTranslation(lang, key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.lookup(lang, key)
	return ok
}

// T translates key for lang. Args are name/value pairs substituted into
// %{name} placeholders.
//
//	// "welcome": "Hello, %{name}!"
//	tr.T("en", "welcome", "name", "John") // "Hello, John!"
func (t *Translator) T(lang, key string, args ...string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tmpl, ok := t.lookup(lang, key)
	if !ok {
		if t.missingLogMode {
			t.logger.Warn("translation not found", slog.String("lang", lang), slog.String("key", key))
		}
		if t.fallbackToKey {
			return substitute(key, args)
		}
		return ""
	}
	return substitute(tmpl, args)
}

// Tc translates key using the locale carried by ctx.
func (t *Translator) Tc(ctx context.Context, key string, args ...string) string {
	return t.T(GetLocale(ctx), key, args...)
}

// Td translates key for lang and returns fallback when no translation exists.
func (t *Translator) Td(lang, key, fallback string, args ...string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tmpl, ok := t.lookup(lang, key)
	if !ok {
		return substitute(fallback, args)
	}
	return substitute(tmpl, args)
}

func (t *Translator) lookup(lang, key string) (string, bool) {
	candidates := []string{lang}
	if canonical, ok := Canonicalize(lang); ok && canonical != lang {
		candidates = append(candidates, canonical)
	}
	if base := Base(lang); base != lang {
		candidates = append(candidates, base)
	}
	candidates = append(candidates, t.defaultLang)

	for _, candidate := range candidates {
		entries, ok := t.translations[candidate]
		if !ok {
			continue
		}
		if val, ok := lookupKey(entries, key); ok {
			return val, true
		}
	}
	return "", false
}

// lookupKey walks dot-separated keys through nested maps.
func lookupKey(m map[string]any, key string) (string, bool) {
	parts := strings.Split(key, ".")
	var current any = m
	for _, part := range parts {
		switch node := current.(type) {
		case map[string]any:
			current = node[part]
		case map[any]any:
			current = node[part]
		default:
			return "", false
		}
		if current == nil {
			return "", false
		}
	}

	switch v := current.(type) {
	case string:
		return v, true
	case fmt.Stringer:
		return v.String(), true
	case int, int64, float64, bool:
		return fmt.Sprint(v), true
	default:
		return "", false
	}
}

var paramRegex = regexp.MustCompile(`%\{([^}]+)\}`)

// substitute replaces %{name} placeholders. Unknown names are left intact and
// an odd trailing argument is ignored.
func substitute(tmpl string, args []string) string {
	if len(args) < 2 || !strings.Contains(tmpl, "%{") {
		return tmpl
	}
	params := make(map[string]string, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		params[args[i]] = args[i+1]
	}
	return paramRegex.ReplaceAllStringFunc(tmpl, func(match string) string {
		if val, ok := params[match[2:len(match)-1]]; ok {
			return val
		}
		return match
	})
}
