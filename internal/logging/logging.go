// Package logging is the process-wide logger. Call sites use the package-level
// helpers; components that want structured fields take Named(...).
package logging

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu       sync.RWMutex
	base     = newLogger("info", true)
	disabled atomic.Bool
)

func newLogger(level string, dev bool) *zap.Logger {
	var cfg zap.Config
	if dev {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// Configure replaces the global logger. Unknown levels fall back to info.
func Configure(level string, dev bool) {
	l := newLogger(level, dev)
	mu.Lock()
	old := base
	base = l
	mu.Unlock()
	_ = old.Sync()
}

// SetLogger installs an existing logger (tests use zaptest/observer loggers).
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	base = l
	mu.Unlock()
}

// L returns the current global logger.
func L() *zap.Logger {
	if disabled.Load() {
		return zap.NewNop()
	}
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Named returns a child logger for a component.
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// Sync flushes buffered entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

// Disable turns off all logging
func Disable() {
	disabled.Store(true)
}

// Enable turns logging back on
func Enable() {
	disabled.Store(false)
}

func sugar() *zap.SugaredLogger {
	return L().Sugar()
}

// Info logs an info message
func Info(v ...any) {
	sugar().Info(fmt.Sprint(v...))
}

// Infof logs a formatted info message
func Infof(format string, v ...any) {
	sugar().Infof(format, v...)
}

// Error logs an error message
func Error(v ...any) {
	sugar().Error(fmt.Sprint(v...))
}

// Errorf logs a formatted error message
func Errorf(format string, v ...any) {
	sugar().Errorf(format, v...)
}

// Warn logs a warning message
func Warn(v ...any) {
	sugar().Warn(fmt.Sprint(v...))
}

// Warnf logs a formatted warning message
func Warnf(format string, v ...any) {
	sugar().Warnf(format, v...)
}

// Debug logs a debug message
func Debug(v ...any) {
	sugar().Debug(fmt.Sprint(v...))
}

// Debugf logs a formatted debug message
func Debugf(format string, v ...any) {
	sugar().Debugf(format, v...)
}
