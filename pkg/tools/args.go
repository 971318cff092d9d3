package tools

// stringArg extracts a string argument, falling back to def when the
// key is absent or not a string.
func stringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return def
}

// boolArg extracts a boolean argument with a default.
func boolArg(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

// stringSliceArg extracts a string array argument with a default. JSON
// decoding delivers arrays as []any, so both forms are accepted.
func stringSliceArg(args map[string]any, key string, def []string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
