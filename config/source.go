package config

// ConfigSource one layer of configuration
type ConfigSource interface {
	// Data source name (for logs and debugging)
	Name() string

	// Priority higher values override lower ones.
	// Suggested: config.yaml 10, <env>.yaml 20, environment 50, flags 100
	Priority() int

	// Load returns a nested map, e.g. {"ratelimit": {"storage": {"type": "redis"}}}
	Load() (map[string]interface{}, error)
}

// setPath assigns value at the nested path, creating maps on the way
func setPath(m map[string]interface{}, path []string, value interface{}) {
	if len(path) == 0 {
		return
	}
	current := m
	for _, k := range path[:len(path)-1] {
		next, ok := current[k].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			current[k] = next
		}
		current = next
	}
	current[path[len(path)-1]] = value
}
