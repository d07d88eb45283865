package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
)

// Layer priorities. Higher wins.
const (
	priorityBaseFile = 10
	priorityEnvFile  = 20
	priorityEnvVars  = 50
	priorityFlags    = 100
)

// LoaderBuilder assembles the usual layer stack:
// config.yaml < <env>.yaml < environment variables < changed flags.
type LoaderBuilder struct {
	dir          string
	envPrefix    string
	flags        *pflag.FlagSet
	flagBindings map[string]string
}

func NewLoaderBuilder() *LoaderBuilder {
	return &LoaderBuilder{}
}

// WithConfigPath directory holding config.yaml and the per-environment file
func (b *LoaderBuilder) WithConfigPath(dir string) *LoaderBuilder {
	b.dir = dir
	return b
}

// WithEnvPrefix enables PREFIX_SECTION_KEY variables
func (b *LoaderBuilder) WithEnvPrefix(prefix string) *LoaderBuilder {
	b.envPrefix = prefix
	return b
}

// WithFlags bindings map config key to flag name
func (b *LoaderBuilder) WithFlags(flags *pflag.FlagSet, bindings map[string]string) *LoaderBuilder {
	b.flags = flags
	b.flagBindings = bindings
	return b
}

func (b *LoaderBuilder) sources() []ConfigSource {
	var out []ConfigSource
	if b.dir != "" {
		out = append(out,
			NewFileSource(filepath.Join(b.dir, "config.yaml"), priorityBaseFile),
			NewFileSource(filepath.Join(b.dir, GetEnv()+".yaml"), priorityEnvFile),
		)
	}
	if b.envPrefix != "" {
		out = append(out, NewEnvSource(b.envPrefix, priorityEnvVars))
	}
	if b.flags != nil {
		out = append(out, NewFlagSource(b.flags, b.flagBindings, priorityFlags))
	}
	return out
}

// Build loads every layer into a new Loader
func (b *LoaderBuilder) Build() (*Loader, error) {
	loader := NewLoader()
	for _, src := range b.sources() {
		loader.AddSource(src)
	}
	if err := loader.Load(); err != nil {
		return nil, err
	}
	return loader, nil
}

// GetEnv first of APP_ENV and ENV that is set, "dev" otherwise
func GetEnv() string {
	for _, name := range []string{"APP_ENV", "ENV"} {
		if env := os.Getenv(name); env != "" {
			return env
		}
	}
	return "dev"
}
