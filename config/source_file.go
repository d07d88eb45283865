package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/viper"
)

// layer name and priority shared by every source
type layer struct {
	name     string
	priority int
}

func (l layer) Name() string  { return l.name }
func (l layer) Priority() int { return l.priority }

// FileSource one configuration file; the format follows the extension
type FileSource struct {
	layer
	path string
}

func NewFileSource(path string, priority int) *FileSource {
	return &FileSource{layer: layer{name: "file:" + path, priority: priority}, path: path}
}

// Load a missing file is an empty layer, an unreadable or malformed one an error
func (s *FileSource) Load() (map[string]interface{}, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return map[string]interface{}{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("config file %s: %w", s.path, err)
	}

	v := viper.New()
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", s.path, err)
	}
	return v.AllSettings(), nil
}
