package i18n_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifykit/pkg/i18n"
)

func TestLocaleContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, ok := i18n.LocaleFromContext(ctx)
	assert.False(t, ok)
	assert.Equal(t, i18n.DefaultLanguage, i18n.GetLocale(ctx))

	child := i18n.SetLocale(ctx, "en_gb")
	locale, ok := i18n.LocaleFromContext(child)
	assert.True(t, ok)
	assert.Equal(t, "en-GB", locale)

	// Parent context keeps its own locale.
	_, ok = i18n.LocaleFromContext(ctx)
	assert.False(t, ok)

	assert.Equal(t, child, i18n.SetLocale(child, ""))
	assert.Equal(t, child, i18n.SetLocale(child, "!!"))

	attr, ok := i18n.LogExtractor(child)
	assert.True(t, ok)
	assert.Equal(t, "en-GB", attr.Value.String())
	_, ok = i18n.LogExtractor(ctx)
	assert.False(t, ok)
}

func TestCanonicalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"en", "en", true},
		{"EN-us", "en-US", true},
		{"pt_BR", "pt-BR", true},
		{"de_DE.UTF-8", "de-DE", true},
		{"  fr ", "fr", true},
		{"", "", false},
		{"!!", "", false},
	}
	for _, tt := range tests {
		got, ok := i18n.Canonicalize(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	assert.Equal(t, "pt", i18n.Base("pt-BR"))
	assert.Equal(t, "en", i18n.Base("en"))
}
