// Package logging provides context-scoped module loggers for snapvault,
// modeled on kopia's repo/logging package: callers ask for a logger bound to
// a module name, then pull the active one back out of a context.Context.
package logging

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the narrow logging surface used throughout snapvault. It is
// satisfied by a *zap.SugaredLogger but kept as an interface so tests can
// substitute a recording logger without pulling in zap.
type Logger interface {
	Debugf(msg string, args ...interface{})
	Infof(msg string, args ...interface{})
	Warnf(msg string, args ...interface{})
	Errorf(msg string, args ...interface{})
}

type loggerKey struct{}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = nopLogger{}
)

// SetDefault installs l as the logger returned by Module() for contexts that
// carry no logger of their own. Called once per invocation by app.Run.
func SetDefault(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	defaultLogger = l
}

// WithLogger returns a child of ctx carrying l as its active logger.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// Module returns a function that, given a context, resolves the logger
// attached to it (via WithLogger) or falls back to the process default.
// name is reserved for future per-module verbosity control and is currently
// unused beyond documentation value, matching kopia's logging.Module shape.
func Module(name string) func(ctx context.Context) Logger {
	return func(ctx context.Context) Logger {
		if l, ok := ctx.Value(loggerKey{}).(Logger); ok && l != nil {
			return l
		}

		defaultMu.RLock()
		defer defaultMu.RUnlock()

		return defaultLogger
	}
}

// NewZap builds a Logger backed by zap, at the given level ("debug", "info",
// "warn", "error"). Unknown levels fall back to "info".
func NewZap(level string) (Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = "t"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		cfg.Level.SetLevel(zapcore.InfoLevel)
	}

	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return zl.Sugar(), nil
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
