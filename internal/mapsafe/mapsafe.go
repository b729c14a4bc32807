// Package mapsafe reads typed options out of loosely typed parameter maps.
package mapsafe

import (
	"encoding/json"
	"time"
)

// Get returns m[key] converted to T, or def when the key is missing or the
// value cannot be converted. Numbers decoded from JSON or YAML (float64,
// json.Number, int) are accepted for numeric T.
func Get[T any](m map[string]any, key string, def T) T {
	val, ok := m[key]
	if !ok || val == nil {
		return def
	}

	if v, ok := val.(T); ok {
		return v
	}

	var out any
	switch any(def).(type) {
	case int:
		n, ok := toFloat(val)
		if !ok {
			return def
		}
		out = int(n)
	case float64:
		n, ok := toFloat(val)
		if !ok {
			return def
		}
		out = n
	case time.Duration:
		switch x := val.(type) {
		case string:
			d, err := time.ParseDuration(x)
			if err != nil {
				return def
			}
			out = d
		default:
			n, ok := toFloat(val)
			if !ok {
				return def
			}
			out = time.Duration(n * float64(time.Second))
		}
	default:
		return def
	}

	return out.(T)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}
