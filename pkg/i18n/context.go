package i18n

import (
	"context"
	"log/slog"
)

type localeContextKey struct{}

// SetLocale returns a child context carrying locale in canonical form.
// An empty or unparsable locale leaves ctx unchanged.
func SetLocale(ctx context.Context, locale string) context.Context {
	canonical, ok := Canonicalize(locale)
	if !ok {
		return ctx
	}
	return context.WithValue(ctx, localeContextKey{}, canonical)
}

// LocaleFromContext returns the locale stored in ctx, if any.
func LocaleFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	locale, ok := ctx.Value(localeContextKey{}).(string)
	return locale, ok && locale != ""
}

// GetLocale returns the locale from ctx or DefaultLanguage when none is set.
func GetLocale(ctx context.Context) string {
	if locale, ok := LocaleFromContext(ctx); ok {
		return locale
	}
	return DefaultLanguage
}

// LogExtractor adds the active locale to log records. It matches the
// logger.ContextExtractor signature.
func LogExtractor(ctx context.Context) (slog.Attr, bool) {
	locale, ok := LocaleFromContext(ctx)
	if !ok {
		return slog.Attr{}, false
	}
	return slog.String("locale", locale), true
}
