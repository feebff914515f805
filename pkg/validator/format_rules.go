package validator

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidURL validates an absolute URL with a scheme and a host.
func ValidURL(field, value string) Rule {
	return Rule{
		Check: func() bool {
			u, ok := parseAbsolute(value)
			return ok && u.Scheme != ""
		},
		Error: ValidationError{
			Field:          field,
			Message:        "must be a valid URL",
			TranslationKey: "validation.url",
			TranslationValues: map[string]any{
				"field": field,
			},
		},
	}
}

// ValidURLWithScheme validates an absolute URL whose scheme is one of
// schemes, such as webhook endpoints limited to http and https.
func ValidURLWithScheme(field, value string, schemes []string) Rule {
	return Rule{
		Check: func() bool {
			u, ok := parseAbsolute(value)
			return ok && slices.Contains(schemes, strings.ToLower(u.Scheme))
		},
		Error: ValidationError{
			Field:          field,
			Message:        fmt.Sprintf("must be a valid URL with scheme: %s", strings.Join(schemes, ", ")),
			TranslationKey: "validation.url_scheme",
			TranslationValues: map[string]any{
				"field":   field,
				"schemes": schemes,
			},
		},
	}
}

func parseAbsolute(value string) (*url.URL, bool) {
	if strings.TrimSpace(value) == "" {
		return nil, false
	}
	u, err := url.ParseRequestURI(value)
	if err != nil || u.Host == "" {
		return nil, false
	}
	return u, true
}
