package validator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/validator"
)

type level string

func TestChoiceRules(t *testing.T) {
	levels := []level{"info", "success", "warning", "error"}

	t.Run("enum accepts members", func(t *testing.T) {
		for _, l := range levels {
			assert.NoError(t, validator.Apply(validator.ValidEnum("level", l, levels)))
		}
	})

	t.Run("enum rejects others", func(t *testing.T) {
		err := validator.Apply(validator.ValidEnum("level", level("fatal"), levels))
		errs := validator.ExtractValidationErrors(err)
		require.Len(t, errs, 1)
		assert.Equal(t, "validation.in_list", errs[0].TranslationKey)
		assert.Equal(t, "must be one of: info, success, warning, error", errs[0].Message)
		assert.Equal(t, []string{"info", "success", "warning", "error"}, errs[0].TranslationValues["allowed_values"])
	})

	t.Run("generic list", func(t *testing.T) {
		assert.NoError(t, validator.Apply(validator.InList("retries", 3, []int{1, 3, 5})))
		assert.Error(t, validator.Apply(validator.InList("retries", 4, []int{1, 3, 5})))
	})

	t.Run("string list", func(t *testing.T) {
		assert.NoError(t, validator.Apply(validator.InListString("channel", "mail", []string{"mail", "webhook"})))
		assert.Error(t, validator.Apply(validator.InListString("channel", "Mail", []string{"mail", "webhook"})))
	})
}

func TestStringRules(t *testing.T) {
	assert.NoError(t, validator.Apply(validator.Required("title", "Hi")))
	assert.Error(t, validator.Apply(validator.Required("title", " \t")))

	assert.NoError(t, validator.Apply(validator.MaxLen("title", "Grüße", 5)))
	assert.Error(t, validator.Apply(validator.MaxLen("title", "Grüße!", 5)))
}

func TestCollectionRules(t *testing.T) {
	assert.NoError(t, validator.Apply(validator.RequiredSlice("channels", []string{"mail"})))
	assert.Error(t, validator.Apply(validator.RequiredSlice("channels", []string{})))

	assert.NoError(t, validator.Apply(validator.MaxLenSlice("recipients", []int{1, 2}, 2)))
	assert.Error(t, validator.Apply(validator.MaxLenSlice("recipients", []int{1, 2, 3}, 2)))
}

func TestFormatRules(t *testing.T) {
	web := []string{"http", "https"}

	tests := []struct {
		name   string
		value  string
		valid  bool
		scheme bool
	}{
		{name: "https", value: "https://example.com/hooks/1", valid: true, scheme: true},
		{name: "upper case scheme", value: "HTTP://example.com", valid: true, scheme: true},
		{name: "other scheme", value: "ftp://files.example.com", valid: true, scheme: false},
		{name: "relative", value: "/releases/1.4", valid: false, scheme: false},
		{name: "no host", value: "https://", valid: false, scheme: false},
		{name: "empty", value: "", valid: false, scheme: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, validator.Apply(validator.ValidURL("url", tt.value)) == nil)
			assert.Equal(t, tt.scheme, validator.Apply(validator.ValidURLWithScheme("url", tt.value, web)) == nil)
		})
	}

	errs := validator.ExtractValidationErrors(validator.Apply(validator.ValidURLWithScheme("webhook", "ftp://x", web)))
	require.Len(t, errs, 1)
	assert.Equal(t, "validation.url_scheme", errs[0].TranslationKey)
	assert.Equal(t, "must be a valid URL with scheme: http, https", errs[0].Message)
}
