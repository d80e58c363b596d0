package types

import "sort"

// Detail is the detector-specific payload of a finding.
// The core never interprets it beyond a few well-known keys
// (dimension, holistic, loc_weight).
type Detail map[string]any

// Clone returns a deep copy. Nested maps and slices are copied, not shared.
func (d Detail) Clone() Detail {
	if d == nil {
		return nil
	}
	out := make(Detail, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, inner := range val {
			m[k] = cloneValue(inner)
		}
		return m
	case Detail:
		return val.Clone()
	case []any:
		s := make([]any, len(val))
		for i, inner := range val {
			s[i] = cloneValue(inner)
		}
		return s
	case []string:
		return append([]string(nil), val...)
	case []int:
		return append([]int(nil), val...)
	case []float64:
		return append([]float64(nil), val...)
	default:
		return v
	}
}

// String returns the value at key if it is a string.
func (d Detail) String(key string) string {
	if s, ok := d[key].(string); ok {
		return s
	}
	return ""
}

// Bool returns the value at key if it is a bool.
func (d Detail) Bool(key string) bool {
	b, _ := d[key].(bool)
	return b
}

// Float returns the numeric value at key. JSON numbers decode as float64,
// but ints are accepted for in-process callers.
func (d Detail) Float(key string) (float64, bool) {
	switch v := d[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Keys returns the keys in sorted order.
func (d Detail) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
