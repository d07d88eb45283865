package config

import (
	"fmt"
	"sort"

	"github.com/spf13/viper"
)

// Loader merges prioritised sources into one viper instance
type Loader struct {
	sources     []ConfigSource
	v           *viper.Viper
	loadedFiles []string
}

// NewLoader creates an empty loader
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
	}
}

// AddSource add configuration data source
func (l *Loader) AddSource(source ConfigSource) {
	l.sources = append(l.sources, source)
}

// Load merges all sources, lowest priority first
func (l *Loader) Load() error {
	sort.SliceStable(l.sources, func(i, j int) bool {
		return l.sources[i].Priority() < l.sources[j].Priority()
	})

	merged := make(map[string]interface{})
	l.loadedFiles = l.loadedFiles[:0]
	for _, source := range l.sources {
		data, err := source.Load()
		if err != nil {
			return fmt.Errorf("load source %s: %w", source.Name(), err)
		}
		if len(data) == 0 {
			continue
		}

		if fileSource, ok := source.(*FileSource); ok {
			l.loadedFiles = append(l.loadedFiles, fileSource.path)
		}
		deepMerge(merged, data)
	}

	v := viper.New()
	if err := v.MergeConfigMap(merged); err != nil {
		return fmt.Errorf("merge config: %w", err)
	}
	l.v = v
	return nil
}

// deepMerge copies src into dst; nested maps merge, anything else replaces
func deepMerge(dst, src map[string]interface{}) {
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]interface{})
		dstMap, dstIsMap := dst[key].(map[string]interface{})
		if srcIsMap && dstIsMap {
			deepMerge(dstMap, srcMap)
			continue
		}
		if srcIsMap {
			copied := make(map[string]interface{}, len(srcMap))
			deepMerge(copied, srcMap)
			dst[key] = copied
			continue
		}
		dst[key] = value
	}
}

// Unmarshal decodes the whole configuration into v
func (l *Loader) Unmarshal(v interface{}) error {
	return l.v.Unmarshal(v)
}

// UnmarshalKey decodes one section into v
func (l *Loader) UnmarshalKey(key string, v interface{}) error {
	return l.v.UnmarshalKey(key, v)
}

// Get configuration value
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// GetString Get string configuration
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// GetInt Get integer configuration
func (l *Loader) GetInt(key string) int {
	return l.v.GetInt(key)
}

// GetBool Get boolean configuration
func (l *Loader) GetBool(key string) bool {
	return l.v.GetBool(key)
}

// IsSet Check if the configuration item exists
func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}

// AllSettings merged configuration
func (l *Loader) AllSettings() map[string]interface{} {
	return l.v.AllSettings()
}

// GetLoadedFiles files that contributed settings
func (l *Loader) GetLoadedFiles() []string {
	return l.loadedFiles
}

// GetViper underlying viper instance
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}
