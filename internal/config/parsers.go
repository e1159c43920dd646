// Package config provides configuration loading and parsing for crankstep.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// lookupSetting returns the value of the first candidate key present in
// settings, trying each key as written and lowercased.
func lookupSetting(settings map[string]any, candidates ...string) (any, bool) {
	for _, key := range candidates {
		for _, k := range [2]string{key, strings.ToLower(key)} {
			if val, ok := settings[k]; ok {
				return val, true
			}
		}
	}
	return nil, false
}

// blank reports whether value is nil or a whitespace-only string. The
// coercions below read both as the zero value.
func blank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	}
	return false
}

func trimmed(value any) any {
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return value
}

func asString(value any) (string, error) {
	return cast.ToStringE(value)
}

func asInt(value any) (int, error) {
	if blank(value) {
		return 0, nil
	}
	return cast.ToIntE(trimmed(value))
}

func asFloat64(value any) (float64, error) {
	if blank(value) {
		return 0, nil
	}
	return cast.ToFloat64E(trimmed(value))
}

func asBool(value any) (bool, error) {
	if blank(value) {
		return false, nil
	}
	return cast.ToBoolE(trimmed(value))
}

// asDuration accepts Go duration strings and bare numbers of seconds,
// fractions included, so think-time can be written as "2.5".
func asDuration(value any) (time.Duration, error) {
	if blank(value) {
		return 0, nil
	}
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case string:
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d, nil
		}
	}
	secs, err := cast.ToFloat64E(trimmed(value))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %v", value)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func asStringMap(value any) (map[string]string, error) {
	if value == nil {
		return nil, nil
	}
	return cast.ToStringMapStringE(value)
}

// asStringSlice keeps a single string whole, where cast would split it on
// whitespace; threshold expressions contain spaces.
func asStringSlice(value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	}
	return cast.ToStringSliceE(value)
}

func toInterfaceSlice(value any) ([]any, error) {
	if value == nil {
		return nil, nil
	}
	items, err := cast.ToSliceE(value)
	if err != nil {
		return nil, fmt.Errorf("expected list, got %T", value)
	}
	return items, nil
}

// toStringKeyMap normalizes the map shapes produced by the JSON and YAML
// decoders. Keys keep their case; lookupSetting handles case-insensitive access.
func toStringKeyMap(value any) (map[string]any, error) {
	switch v := value.(type) {
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out, nil
	case string:
		return nil, fmt.Errorf("expected map, got %T", value)
	}
	m, err := cast.ToStringMapE(value)
	if err != nil {
		return nil, fmt.Errorf("expected map, got %T", value)
	}
	return m, nil
}
