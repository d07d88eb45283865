package config

import (
	"fmt"

	"github.com/samber/do/v2"
	"github.com/spf13/pflag"
)

// ProvideLoaderOptions mirrors the LoaderBuilder settings
type ProvideLoaderOptions struct {
	ConfigPath   string
	EnvPrefix    string
	Flags        *pflag.FlagSet
	FlagBindings map[string]string
}

// ProvideLoader do provider that builds and loads a Loader on first use
func ProvideLoader(opts ProvideLoaderOptions) func(do.Injector) (*Loader, error) {
	builder := NewLoaderBuilder().
		WithConfigPath(opts.ConfigPath).
		WithEnvPrefix(opts.EnvPrefix).
		WithFlags(opts.Flags, opts.FlagBindings)

	return func(do.Injector) (*Loader, error) {
		loader, err := builder.Build()
		if err != nil {
			return nil, fmt.Errorf("config: build loader: %w", err)
		}
		return loader, nil
	}
}

// ProvideLoaderValue provider for a Loader the caller already built
func ProvideLoaderValue(loader *Loader) func(do.Injector) (*Loader, error) {
	return func(do.Injector) (*Loader, error) { return loader, nil }
}
