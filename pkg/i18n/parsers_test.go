package i18n_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/i18n"
)

func TestParsers(t *testing.T) {
	t.Parallel()

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		got, err := i18n.NewJSONParser().Parse(context.Background(), `{"en":{"a":"b"},"skip":1}`)
		require.NoError(t, err)
		assert.Equal(t, map[string]map[string]any{"en": {"a": "b"}}, got)
	})

	t.Run("invalid json", func(t *testing.T) {
		t.Parallel()
		_, err := i18n.NewJSONParser().Parse(context.Background(), `{`)
		assert.ErrorIs(t, err, i18n.ErrFailedToParseJSON)
	})

	t.Run("yaml", func(t *testing.T) {
		t.Parallel()
		got, err := i18n.NewYAMLParser().Parse(context.Background(), "en:\n  a: b\n")
		require.NoError(t, err)
		assert.Equal(t, "b", got["en"]["a"])
	})

	t.Run("yaml root scalar", func(t *testing.T) {
		t.Parallel()
		_, err := i18n.NewYAMLParser().Parse(context.Background(), "en: hello\n")
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := i18n.NewYAMLParser().Parse(ctx, "en:\n  a: b\n")
		assert.ErrorIs(t, err, i18n.ErrYAMLParsingCancelled)
	})

	t.Run("parser for file", func(t *testing.T) {
		t.Parallel()
		assert.IsType(t, &i18n.JSONParser{}, i18n.NewParserForFile("en.JSON"))
		assert.IsType(t, &i18n.YAMLParser{}, i18n.NewParserForFile("en.yml"))
		assert.Nil(t, i18n.NewParserForFile("en.toml"))
	})
}
