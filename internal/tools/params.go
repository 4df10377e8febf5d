package tools

import "fmt"

// Parameter accessors for the map[string]any params decoded from
// tool_call JSON. JSON numbers arrive as float64; these helpers coerce.

// StringParam returns a string parameter, or fallback when absent.
func StringParam(params map[string]any, key, fallback string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return fallback
}

// RequiredString returns a string parameter or an error when absent or
// empty.
func RequiredString(params map[string]any, key string) (string, error) {
	v, ok := params[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("parameter %q must be a non-empty string", key)
	}
	return v, nil
}

// IntParam returns an integer parameter, accepting JSON float64 and
// native ints, or fallback when absent.
func IntParam(params map[string]any, key string, fallback int) int {
	switch v := params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

// BoolParam returns a boolean parameter, or fallback when absent.
func BoolParam(params map[string]any, key string, fallback bool) bool {
	if v, ok := params[key].(bool); ok {
		return v
	}
	return fallback
}

// StringSliceParam returns a string-array parameter, or nil when absent.
func StringSliceParam(params map[string]any, key string) []string {
	raw, ok := params[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
