package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap with a keyvalue-style API used across the service
type Logger struct {
	sugar *zap.SugaredLogger
	base  *zap.Logger
}

// New creates a logger configured for the given level and environment.
// Production gets JSON output, everything else gets console output.
func New(level, environment string) *Logger {
	var cfg zap.Config
	if environment == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if parsed, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(parsed)
	}

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// logging is not optional; fall back to a bare production logger
		base = zap.NewNop()
	}

	return &Logger{sugar: base.Sugar(), base: base}
}

// Zap exposes the underlying *zap.Logger for components that take it directly
func (l *Logger) Zap() *zap.Logger {
	return l.base
}

// ForRequest returns a child logger scoped to a single HTTP request
func (l *Logger) ForRequest(requestID, method, path string) *zap.SugaredLogger {
	return l.sugar.With(
		"request_id", requestID,
		"method", method,
		"path", path,
	)
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// Fatal logs and exits with status 1
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.sugar.Fatalw(msg, keysAndValues...)
	os.Exit(1)
}

// Sync flushes buffered log entries
func (l *Logger) Sync() error {
	return l.base.Sync()
}
