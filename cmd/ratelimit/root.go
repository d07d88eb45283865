package main

import (
	"context"
	"fmt"
	"io"

	"github.com/KOMKZ/go-yogan-ratelimit/config"
	"github.com/KOMKZ/go-yogan-ratelimit/errcode"
	"github.com/KOMKZ/go-yogan-ratelimit/limiter"
	"github.com/KOMKZ/go-yogan-ratelimit/logger"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// flagBindings config key -> persistent flag; flags beat env and files
var flagBindings = map[string]string{
	"ratelimit.storage.type":            "storage",
	"ratelimit.storage.options.host":    "redis-host",
	"ratelimit.storage.options.port":    "redis-port",
	"ratelimit.algorithm":               "algorithm",
	"ratelimit.default_limits.rate":     "rate",
	"ratelimit.default_limits.interval": "interval",
	"ratelimit.client_identifier":       "identify-by",
	"logger.level":                      "log-level",
}

// app per-invocation container built by the root PersistentPreRunE
type app struct {
	configDir string
	envPrefix string

	loader   *config.Loader
	injector do.Injector

	// extra providers registered before the limiter, used by tests
	providers []func(do.Injector)
}

// execute runs one invocation; the container is torn down even when the command fails
func execute(ctx context.Context, args []string, stdout io.Writer, a *app) error {
	root := newRootCmdWithApp(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	defer a.shutdown(ctx)
	return root.ExecuteContext(ctx)
}

func newRootCmdWithApp(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "ratelimit",
		Short:         "Token bucket and sliding window rate limiting",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configDir, "config-dir", "c", "configs/ratelimit", "directory holding config.yaml and <env>.yaml")
	pf.StringVar(&a.envPrefix, "env-prefix", "APP", "environment variable prefix, nested keys joined by __")
	pf.String("storage", "", "storage backend: memory or redis")
	pf.String("redis-host", "", "redis host")
	pf.Int("redis-port", 0, "redis port")
	pf.String("algorithm", "", "default algorithm: token_bucket or sliding_window")
	pf.Int64("rate", 0, "default requests per interval")
	pf.String("interval", "", "default interval: second, minute, hour, day, week or month")
	pf.String("identify-by", "", "client identifier: ip or user_id")
	pf.String("log-level", "", "log level")

	root.AddCommand(
		newServeCmd(a),
		newCheckCmd(a),
		newResetCmd(a),
		newInspectCmd(a),
		newBenchCmd(a),
		newTokenCmd(a),
	)
	return root
}

// setup loads configuration, starts logging and registers the providers
func (a *app) setup(cmd *cobra.Command) error {
	loader, err := config.NewLoaderBuilder().
		WithConfigPath(a.configDir).
		WithEnvPrefix(a.envPrefix).
		WithFlags(cmd.Flags(), flagBindings).
		Build()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.loader = loader

	logCfg := logger.ManagerConfig{Level: "info", Encoding: "console", EnableConsole: true}
	if loader.IsSet("logger") {
		if err := loader.UnmarshalKey("logger", &logCfg); err != nil {
			return fmt.Errorf("read logger config: %w", err)
		}
	}
	logCfg.ApplyDefaults()
	if err := config.ValidateAll(config.Section("logger", logCfg)); err != nil {
		return err
	}
	logger.InitManager(logCfg)

	a.injector = do.New()
	do.Provide(a.injector, config.ProvideLoaderValue(loader))
	for _, provide := range a.providers {
		provide(a.injector)
	}
	do.Provide(a.injector, limiter.ProvideConfig)
	do.Provide(a.injector, limiter.ProvideLimiter)

	errcode.LockGlobalRegistry()
	return nil
}

func (a *app) shutdown(ctx context.Context) {
	if a.injector != nil {
		if err := a.injector.Shutdown(); err != nil {
			logger.GetLogger("yogan").ErrorCtx(ctx, "container shutdown failed", zap.Error(err))
		}
		a.injector = nil
	}
	logger.CloseAll()
}

func (a *app) limiter() (*limiter.Limiter, error) {
	return do.Invoke[*limiter.Limiter](a.injector)
}
