package config

import (
	"os"
	"slices"
	"strings"
)

// EnvSource environment variables under a prefix.
// Nesting uses a double underscore so keys may keep single ones:
// APP_RATELIMIT__STORAGE__KEY_PREFIX -> ratelimit.storage.key_prefix
type EnvSource struct {
	layer
	prefix string
}

func NewEnvSource(prefix string, priority int) *EnvSource {
	prefix = strings.TrimSuffix(prefix, "_")
	return &EnvSource{layer: layer{name: "env:" + prefix, priority: priority}, prefix: prefix}
}

// Load scans os.Environ for prefixed variables
func (s *EnvSource) Load() (map[string]interface{}, error) {
	result := make(map[string]interface{})
	if s.prefix == "" {
		return result, nil
	}

	prefix := s.prefix + "_"
	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}

		path := strings.Split(strings.ToLower(strings.TrimPrefix(key, prefix)), "__")
		if slices.Contains(path, "") {
			continue // APP_A____B and friends
		}
		setPath(result, path, value)
	}
	return result, nil
}
