// Package docpath navigates dot-separated paths through decoded JSON-like
// documents (nested maps and slices). Resolution never fails: a missing key,
// an out-of-range index, or a type mismatch yields nil with a warning, so
// callers can treat absent values uniformly.
package docpath

import (
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Resolver walks dot-separated paths against nested documents.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver creates a resolver that logs misses through the given logger.
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger}
}

// Resolve extracts the value at path from data. An empty path returns data
// unchanged. Each segment indexes a map by key or a slice by numeric index;
// any miss returns nil.
func (r *Resolver) Resolve(data interface{}, path string) interface{} {
	if path == "" {
		return data
	}

	current := data
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]interface{}:
			value, ok := node[part]
			if !ok {
				r.logger.Warn("path segment not found in document",
					zap.String("segment", part),
					zap.String("path", path))
				return nil
			}
			current = value
		case []interface{}:
			index, err := strconv.Atoi(part)
			if err != nil {
				r.logger.Warn("non-numeric segment applied to a list",
					zap.String("segment", part),
					zap.String("path", path))
				return nil
			}
			if index < 0 || index >= len(node) {
				r.logger.Warn("index out of range",
					zap.Int("index", index),
					zap.Int("length", len(node)),
					zap.String("path", path))
				return nil
			}
			current = node[index]
		default:
			r.logger.Warn("cannot descend into scalar value",
				zap.String("segment", part),
				zap.String("path", path))
			return nil
		}
	}

	return current
}

// Truthy reports whether a decoded value is "present": nil, false, empty
// strings, zero numbers, and empty containers are all falsy.
func Truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	default:
		return true
	}
}

// BoolFromFlag coerces an explicit continuation flag: strings are parsed
// case-insensitively ("true" continues, anything else stops), other values
// coerce through Truthy.
func BoolFromFlag(v interface{}) bool {
	if s, ok := v.(string); ok {
		return strings.EqualFold(s, "true")
	}
	return Truthy(v)
}

// Records shapes a resolved value into a flat record list: a list yields its
// mapping elements (scalars wrapped under "value"), a single mapping yields
// one record, nil yields none.
func Records(v interface{}) []map[string]interface{} {
	switch t := v.(type) {
	case []interface{}:
		records := make([]map[string]interface{}, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]interface{}); ok {
				records = append(records, m)
			} else {
				records = append(records, map[string]interface{}{"value": item})
			}
		}
		return records
	case map[string]interface{}:
		return []map[string]interface{}{t}
	case nil:
		return nil
	default:
		return []map[string]interface{}{{"value": t}}
	}
}

// RawLength mirrors the original framework's length measure over a decoded
// response body: element count for slices, key count for maps, byte length
// for strings, 0 for nil and 1 for any other scalar.
func RawLength(v interface{}) int {
	switch t := v.(type) {
	case nil:
		return 0
	case []interface{}:
		return len(t)
	case map[string]interface{}:
		return len(t)
	case string:
		return len(t)
	default:
		return 1
	}
}
