// Package logs provides structured logging for oicb, grounded on
// pithecene-io-quarry/quarry/log/logger.go's two-tier Logger/SugaredLogger
// wrapper around zap. In place of that package's run-id context field,
// every logger carries a random session_id; verbosity is driven by the
// CLI's repeatable -d flag instead of a fixed debug level.
package logs

import (
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger for structured, field-based logging on paths
// where performance matters (the event loop's hot path).
type Logger struct {
	zap *zap.Logger
}

// SugaredLogger wraps zap.SugaredLogger for printf-style logging on
// CLI/debug surfaces (bootstrap, CLI parse errors).
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// New builds a Logger writing JSON to w. verbosity mirrors the CLI's -d
// count: 0 is InfoLevel, 1 is DebugLevel, 2+ additionally adds caller
// information. Every logger carries a random session correlation id
// (mirroring quarry's RunMeta.RunID field) so that concurrent runs'
// debug logs, e.g. tailed from several terminals at once, can be told
// apart.
func New(w io.Writer, verbosity int) *Logger {
	level := zapcore.InfoLevel
	if verbosity >= 1 {
		level = zapcore.DebugLevel
	}
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)
	zapLogger := zap.New(core).With(zap.String("session_id", uuid.NewString()))
	if verbosity >= 2 {
		zapLogger = zapLogger.WithOptions(zap.AddCaller())
	}
	return &Logger{zap: zapLogger}
}

// Debug logs a debug message with structured fields.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message with structured fields.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message with structured fields.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message with structured fields.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error { return l.zap.Sync() }

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}
