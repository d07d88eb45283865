package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Manager per-module loggers sharing one configuration
type Manager struct {
	baseConfig ManagerConfig
	loggers    map[string]*CtxZapLogger
	writers    map[string][]*lumberjack.Logger // kept for closing
	mu         sync.RWMutex
}

var (
	globalManager *Manager
	globalMu      sync.RWMutex
)

// NewManager creates a standalone Manager; zero fields take defaults
func NewManager(cfg ManagerConfig) *Manager {
	cfg.ApplyDefaults()
	return &Manager{
		baseConfig: cfg,
		loggers:    make(map[string]*CtxZapLogger),
		writers:    make(map[string][]*lumberjack.Logger),
	}
}

// InitManager replaces the global manager, closing the previous one
func InitManager(cfg ManagerConfig) {
	globalMu.Lock()
	old := globalManager
	globalManager = NewManager(cfg)
	globalMu.Unlock()

	if old != nil {
		old.CloseAll()
	}
}

// GetLogger returns the module logger, creating it on first use.
// The returned logger already carries the module field.
func (m *Manager) GetLogger(module string) *CtxZapLogger {
	m.mu.RLock()
	if l, ok := m.loggers[module]; ok {
		m.mu.RUnlock()
		return l
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.loggers[module]; ok {
		return l
	}

	base := m.createLogger(module).
		With(zap.String("module", module)).
		WithOptions(zap.AddCallerSkip(1))

	l := &CtxZapLogger{
		base:   base,
		module: module,
		config: &m.baseConfig,
	}
	m.loggers[module] = l
	return l
}

func (m *Manager) createLogger(module string) *zap.Logger {
	cfg := m.baseConfig
	encoder := createEncoder(cfg)
	level := ParseLevel(cfg.Level)

	var cores []zapcore.Core
	if cfg.EnableConsole {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}

	if cfg.EnableFile && cfg.BaseLogDir != "" {
		infoWriter := m.newFileWriter(cfg, module, "info")
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(infoWriter),
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= level && lvl < zapcore.ErrorLevel
			})))

		errorWriter := m.newFileWriter(cfg, module, "error")
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(errorWriter),
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= zapcore.ErrorLevel && lvl >= level
			})))
	}

	if len(cores) == 0 {
		return zap.NewNop()
	}

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(zapcore.NewTee(cores...), opts...)
}

// newFileWriter lumberjack creates the directory on first write. Caller holds m.mu.
func (m *Manager) newFileWriter(cfg ManagerConfig, module, kind string) *lumberjack.Logger {
	w := &lumberjack.Logger{
		Filename:   cfg.filePath(module, kind),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}
	m.writers[module] = append(m.writers[module], w)
	return w
}

func createEncoder(cfg ManagerConfig) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	if cfg.Encoding == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	return zapcore.NewJSONEncoder(encoderConfig)
}

// CloseAll flushes and closes every logger; later GetLogger calls start fresh
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.loggers {
		_ = l.base.Sync()
	}
	for _, writers := range m.writers {
		for _, w := range writers {
			_ = w.Close()
		}
	}
	m.loggers = make(map[string]*CtxZapLogger)
	m.writers = make(map[string][]*lumberjack.Logger)
}

// GetLogger module logger from the global manager (default config if not initialised)
func GetLogger(module string) *CtxZapLogger {
	globalMu.RLock()
	m := globalManager
	globalMu.RUnlock()

	if m == nil {
		globalMu.Lock()
		if globalManager == nil {
			globalManager = NewManager(DefaultManagerConfig())
		}
		m = globalManager
		globalMu.Unlock()
	}
	return m.GetLogger(module)
}

// CloseAll closes the global manager's loggers (call on exit)
func CloseAll() {
	globalMu.RLock()
	m := globalManager
	globalMu.RUnlock()

	if m != nil {
		m.CloseAll()
	}
}
