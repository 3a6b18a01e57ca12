package plotforge

import (
	"go.uber.org/zap"
)

// Logger defines the interface for engine logging.
// The engine uses structured logging with key-value pairs so that callers
// can plug in slog, zap, or any compatible structured logger.
//
// The Logger interface uses variadic arguments in key-value pairs:
//
//	logger.Info("message", "key1", "value1", "key2", "value2")
type Logger interface {
	// Info logs an informational message with optional key-value pairs.
	// Used for normal engine events like module registration or pipeline setup.
	Info(msg string, args ...any)

	// Error logs an error message with optional key-value pairs.
	// Used for failures that are reported but do not abort the caller.
	Error(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, args ...any)

	// Debug logs a debug message with optional key-value pairs.
	// Used for detailed diagnostics like dependency resolution steps.
	Debug(msg string, args ...any)
}

// ZapLogger adapts a zap.SugaredLogger to the Logger interface.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps the given zap logger for use with the engine.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: l.Sugar()}
}

// NewDevelopmentLogger returns a Logger backed by zap's development config.
// Intended for examples and local runs; production callers should construct
// their own zap.Logger and wrap it with NewZapLogger.
func NewDevelopmentLogger() *ZapLogger {
	l, err := zap.NewDevelopment()
	if err != nil {
		l = zap.NewNop()
	}
	return NewZapLogger(l)
}

func (z *ZapLogger) Info(msg string, args ...any)  { z.sugar.Infow(msg, args...) }
func (z *ZapLogger) Error(msg string, args ...any) { z.sugar.Errorw(msg, args...) }
func (z *ZapLogger) Warn(msg string, args ...any)  { z.sugar.Warnw(msg, args...) }
func (z *ZapLogger) Debug(msg string, args ...any) { z.sugar.Debugw(msg, args...) }
