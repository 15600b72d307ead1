package config

import (
	"os"
	"regexp"
)

// placeholderPattern matches ${NAME} and $NAME references.
var placeholderPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandMap returns a copy of settings with environment placeholders substituted in all
// string values. Values that are nothing but an unresolved placeholder are dropped, so the
// key falls back to its default.
func expandMap(settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings))
	for key, value := range settings {
		if expanded, ok := expandValue(value); ok {
			out[key] = expanded
		}
	}
	return out
}

func expandValue(value any) (any, bool) {
	switch v := value.(type) {
	case string:
		return expandString(v)
	case map[string]any:
		return expandMap(v), true
	case []any:
		items := make([]any, 0, len(v))
		for _, item := range v {
			if expanded, ok := expandValue(item); ok {
				items = append(items, expanded)
			}
		}
		return items, true
	default:
		return value, true
	}
}

// expandString substitutes every resolvable placeholder in s. The boolean result is false
// when s is a single placeholder whose variable is not set.
func expandString(s string) (string, bool) {
	unresolved := 0
	out := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		name := groups[1]
		if name == "" {
			name = groups[2]
		}
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		unresolved++
		return match
	})
	if unresolved == 1 && out == s {
		if loc := placeholderPattern.FindStringIndex(s); loc[0] == 0 && loc[1] == len(s) {
			return "", false
		}
	}
	return out, true
}
