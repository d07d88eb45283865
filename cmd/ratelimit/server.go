package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/KOMKZ/go-yogan-ratelimit/health"
	"github.com/KOMKZ/go-yogan-ratelimit/httpx"
	"github.com/KOMKZ/go-yogan-ratelimit/jwt"
	"github.com/KOMKZ/go-yogan-ratelimit/limiter"
	"github.com/KOMKZ/go-yogan-ratelimit/logger"
	"github.com/KOMKZ/go-yogan-ratelimit/middleware"
	rediscomp "github.com/KOMKZ/go-yogan-ratelimit/redis"
	"github.com/KOMKZ/go-yogan-ratelimit/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/samber/do/v2"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// serverConfig the "server" section
type serverConfig struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// FailOpen admit requests when the store is unreachable (default true)
	FailOpen *bool `mapstructure:"fail_open"`

	// SkipPaths API paths exempt from limiting
	SkipPaths []string `mapstructure:"skip_paths"`

	APIKeyHeader string                   `mapstructure:"api_key_header"`
	ErrorLogging httpx.ErrorLoggingConfig `mapstructure:"error_logging"`
	StoreWait    storeWaitConfig          `mapstructure:"store_wait"`
}

func (c *serverConfig) applyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Mode == "" {
		c.Mode = gin.ReleaseMode
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.FailOpen == nil {
		open := true
		c.FailOpen = &open
	}
	c.StoreWait.applyDefaults()
}

// routerDeps everything newRouter wires together
type routerDeps struct {
	server      serverConfig
	limiter     *limiter.Limiter
	health      *health.Aggregator
	tokens      jwt.TokenManager        // nil when JWT is disabled
	httpMetrics *middleware.HTTPMetrics // nil when HTTP metrics are off
	serviceName string                  // otelgin span name; "" skips tracing
}

// newRouter middleware order: tracing, trace id, logging, recovery; the
// limiter only guards /api so probes and admin routes are never throttled.
func newRouter(d routerDeps) *gin.Engine {
	gin.DefaultWriter = logger.NewGinLogWriter("gin")
	gin.DefaultErrorWriter = logger.NewGinLogWriter("gin")

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	if d.serviceName != "" {
		engine.Use(otelgin.Middleware(d.serviceName))
	}
	engine.Use(middleware.TraceID(middleware.DefaultTraceConfig()))
	engine.Use(middleware.RequestLogWithConfig(middleware.RequestLogConfig{
		SkipPaths: []string{"/healthz", "/healthz/live", "/healthz/ready"},
	}))
	if d.server.ErrorLogging.Enable {
		engine.Use(httpx.ErrorLoggingMiddleware(d.server.ErrorLogging))
	}
	engine.Use(middleware.Recovery())
	if d.httpMetrics != nil {
		engine.Use(d.httpMetrics.Handler())
	}

	engine.NoRoute(httpx.NoRouteHandler())
	engine.NoMethod(httpx.NoMethodHandler())

	probes := middleware.NewHealthCheckHandler(d.health)
	engine.GET("/healthz", probes.Handle())
	engine.GET("/healthz/live", probes.HandleLiveness())
	engine.GET("/healthz/ready", probes.HandleReadiness())

	engine.GET("/metrics/limiter", func(c *gin.Context) {
		httpx.OkJson(c, d.limiter.GetMetrics())
	})

	admin := &adminHandler{limiter: d.limiter}
	adminGroup := engine.Group("/admin")
	adminGroup.POST("/reset", httpx.Wrap(admin.Reset))
	adminGroup.GET("/usage", httpx.Wrap(admin.Usage))

	api := engine.Group("/api")
	if d.tokens != nil {
		api.Use(middleware.JWTIdentity(d.tokens, middleware.DefaultJWTConfig()))
	}
	rl := middleware.DefaultRateLimiterConfig(d.limiter)
	rl.FailOpen = *d.server.FailOpen
	rl.SkipPaths = d.server.SkipPaths
	rl.APIKeyHeader = d.server.APIKeyHeader
	api.Use(middleware.RateLimiterWithConfig(rl))

	api.GET("/ping", func(c *gin.Context) {
		httpx.OkJson(c, gin.H{"pong": true})
	})
	api.GET("/items/:id", func(c *gin.Context) {
		decision, _ := middleware.GetDecision(c)
		httpx.OkJson(c, gin.H{"id": c.Param("id"), "remaining": decision.Remaining})
	})

	return engine
}

// server demo HTTP server and the telemetry it owns
type server struct {
	cfg       serverConfig
	http      *http.Server
	telemetry *telemetry.Manager
	log       *logger.CtxZapLogger
}

// newServer reads server, telemetry, jwt and health sections, registers
// metric groups in the container, then builds the limiter and the router.
func (a *app) newServer(ctx context.Context, addr string) (*server, error) {
	log := logger.GetLogger("yogan")

	var cfg serverConfig
	if err := a.loader.UnmarshalKey("server", &cfg); err != nil {
		return nil, fmt.Errorf("read server config: %w", err)
	}
	if addr != "" {
		cfg.Addr = addr
	}
	cfg.applyDefaults()
	gin.SetMode(cfg.Mode)

	telCfg := telemetry.DefaultConfig()
	if err := a.loader.UnmarshalKey("telemetry", &telCfg); err != nil {
		return nil, fmt.Errorf("read telemetry config: %w", err)
	}
	tm := telemetry.NewManager(telCfg, log)
	if err := tm.Start(ctx); err != nil {
		return nil, err
	}

	deps := routerDeps{server: cfg}
	if tm.IsEnabled() {
		deps.serviceName = telCfg.ServiceName
	}
	if tm.MetricsEnabled() {
		if err := a.registerMetrics(tm, telCfg.Metrics, &deps); err != nil {
			_ = tm.Shutdown(ctx)
			return nil, err
		}
	}

	l, err := a.limiter()
	if err != nil {
		_ = tm.Shutdown(ctx)
		return nil, fmt.Errorf("build limiter: %w", err)
	}
	deps.limiter = l

	var jwtCfg jwt.Config
	if err := a.loader.UnmarshalKey("jwt", &jwtCfg); err != nil {
		_ = tm.Shutdown(ctx)
		return nil, fmt.Errorf("read jwt config: %w", err)
	}
	if jwtCfg.Enabled {
		tokens, err := jwt.NewTokenManager(jwtCfg, logger.GetLogger("jwt"))
		if err != nil {
			_ = tm.Shutdown(ctx)
			return nil, err
		}
		deps.tokens = tokens
	}

	healthCfg := health.DefaultConfig()
	if err := a.loader.UnmarshalKey("health", &healthCfg); err != nil {
		_ = tm.Shutdown(ctx)
		return nil, fmt.Errorf("read health config: %w", err)
	}
	checker := limiter.NewHealthChecker(l.Store())
	if err := waitForStore(ctx, checker, cfg.StoreWait, log); err != nil {
		_ = tm.Shutdown(ctx)
		return nil, err
	}

	deps.health = health.NewAggregator(healthCfg.Timeout)
	deps.health.Register(checker)
	deps.health.SetMetadata("storage", string(l.Config().Storage.Type))
	deps.health.SetMetadata("algorithm", string(l.Config().Algorithm))

	return &server{
		cfg:       cfg,
		http:      &http.Server{Addr: cfg.Addr, Handler: newRouter(deps)},
		telemetry: tm,
		log:       log,
	}, nil
}

// registerMetrics instrument groups go into the container before the limiter is built
func (a *app) registerMetrics(tm *telemetry.Manager, cfg telemetry.MetricsConfig, deps *routerDeps) error {
	registry := tm.Registry()
	if cfg.Limiter.Enabled {
		m := limiter.NewOTelMetrics()
		if err := registry.Register(m); err != nil {
			return err
		}
		do.ProvideValue(a.injector, m)
	}
	if cfg.Redis.Enabled {
		m := rediscomp.NewMetrics()
		if err := registry.Register(m); err != nil {
			return err
		}
		do.ProvideValue(a.injector, m)
	}
	if cfg.HTTP.Enabled {
		m, err := middleware.NewHTTPMetrics(registry.GetMeter("http"), cfg.HTTP.RecordResponseSize)
		if err != nil {
			return err
		}
		deps.httpMetrics = m
	}
	return nil
}

// run serves until ctx is done, then drains within ShutdownTimeout
func (s *server) run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		_ = s.telemetry.Shutdown(context.Background())
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.log.InfoCtx(ctx, "http server listening", zap.String("addr", ln.Addr().String()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.log.InfoCtx(shutdownCtx, "http server shutting down")
		err := s.http.Shutdown(shutdownCtx)
		if terr := s.telemetry.Shutdown(shutdownCtx); terr != nil {
			s.log.WarnCtx(shutdownCtx, "telemetry shutdown failed", zap.Error(terr))
		}
		return err
	})
	return g.Wait()
}
