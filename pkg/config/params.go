package config

// Params holds the free-form settings of one component. YAML decodes scalars
// loosely (ints as int, floats as float64), so the getters normalize types and
// fall back to a default when a key is absent or the wrong shape.
type Params map[string]interface{}

// GetString returns the string at key or def.
func (p Params) GetString(key, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

// GetInt returns the integer at key or def. YAML may deliver the value as
// int, int64, or float64 depending on how it was written.
func (p Params) GetInt(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// GetFloat returns the float at key or def.
func (p Params) GetFloat(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// GetBool returns the boolean at key or def.
func (p Params) GetBool(key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

// GetStringMap returns the nested mapping at key with all scalar values
// rendered as strings, or an empty map.
func (p Params) GetStringMap(key string) map[string]string {
	out := make(map[string]string)
	nested, ok := p[key].(map[string]interface{})
	if !ok {
		return out
	}
	for k, v := range nested {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// GetMap returns the nested mapping at key, or an empty map.
func (p Params) GetMap(key string) map[string]interface{} {
	if nested, ok := p[key].(map[string]interface{}); ok {
		return nested
	}
	return map[string]interface{}{}
}

// GetStringSlice returns the list of strings at key, or nil.
func (p Params) GetStringSlice(key string) []string {
	items, ok := p[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}
