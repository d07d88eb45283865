package config

import (
	"strings"

	"github.com/spf13/pflag"
)

// FlagSource command line flags mapped onto config keys.
// Only flags the user actually set are applied.
type FlagSource struct {
	layer
	flags    *pflag.FlagSet
	bindings map[string]string // config key -> flag name
}

func NewFlagSource(flags *pflag.FlagSet, bindings map[string]string, priority int) *FlagSource {
	return &FlagSource{layer: layer{name: "flags", priority: priority}, flags: flags, bindings: bindings}
}

// Load values arrive as strings; decoding into typed fields converts them
func (s *FlagSource) Load() (map[string]interface{}, error) {
	result := make(map[string]interface{})
	if s.flags == nil {
		return result, nil
	}
	for key, name := range s.bindings {
		if f := s.flags.Lookup(name); f != nil && f.Changed {
			setPath(result, strings.Split(key, "."), f.Value.String())
		}
	}
	return result, nil
}
