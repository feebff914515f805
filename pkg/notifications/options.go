package notifications

import (
	"fmt"
	"strconv"
	"time"
)

// ChannelOptions holds driver specific settings, typically decoded from YAML.
type ChannelOptions map[string]any

// String returns the string option key or def.
func (o ChannelOptions) String(key, def string) string {
	switch v := o[key].(type) {
	case string:
		if v != "" {
			return v
		}
	case fmt.Stringer:
		return v.String()
	}
	return def
}

// Int returns the integer option key or def. Numeric strings are accepted.
func (o ChannelOptions) Int(key string, def int) (int, error) {
	switch v := o[key].(type) {
	case nil:
		return def, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrInvalidOption, key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %s is %T", ErrInvalidOption, key, v)
	}
}

// Bool returns the boolean option key or def.
func (o ChannelOptions) Bool(key string, def bool) (bool, error) {
	switch v := o[key].(type) {
	case nil:
		return def, nil
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("%w: %s: %w", ErrInvalidOption, key, err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%w: %s is %T", ErrInvalidOption, key, v)
	}
}

// Duration returns the duration option key or def. Strings use
// time.ParseDuration syntax; bare numbers are seconds.
func (o ChannelOptions) Duration(key string, def time.Duration) (time.Duration, error) {
	switch v := o[key].(type) {
	case nil:
		return def, nil
	case time.Duration:
		return v, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrInvalidOption, key, err)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("%w: %s is %T", ErrInvalidOption, key, v)
	}
}

// StringMap returns a map option such as HTTP headers.
func (o ChannelOptions) StringMap(key string) (map[string]string, error) {
	switch v := o[key].(type) {
	case nil:
		return nil, nil
	case map[string]string:
		return v, nil
	case map[string]any:
		return stringMap(key, v)
	case ChannelOptions:
		// yaml decodes nested mappings with the parent's map type.
		return stringMap(key, v)
	default:
		return nil, fmt.Errorf("%w: %s is %T", ErrInvalidOption, key, v)
	}
}

func stringMap(key string, m map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(m))
	for k, val := range m {
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s is %T", ErrInvalidOption, key, k, val)
		}
		out[k] = s
	}
	return out, nil
}
