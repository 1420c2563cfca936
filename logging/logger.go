// Package logging provides structured logging for audiostream: a zap logger
// teed to the console and a rotating JSON file, with sensitive values
// redacted before they reach any sink.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures NewLogger.
type Options struct {
	// Development selects colored console output and a debug default level.
	Development bool

	// FilePath is the JSON log file. Empty disables file output.
	FilePath string

	// Level overrides the mode default when non-empty ("debug", "info", ...).
	Level string

	// File controls rotation of FilePath. Zero values use the defaults.
	File FileWriterConfig
}

// Logger wraps zap.Logger with automatic sensitive data redaction.
//
// Example:
//
//	logger, err := logging.NewLogger(logging.Options{Development: true, FilePath: "audiostream.log"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("stream complete", zap.Int64("bytes_sent", n))
type Logger struct {
	zap   *zap.Logger
	level zapcore.Level
}

// NewLogger creates a Logger writing to stdout and, when opts.FilePath is
// set, to a lumberjack-rotated file.
func NewLogger(opts Options) (*Logger, error) {
	defaultLevel := zapcore.InfoLevel
	if opts.Development {
		defaultLevel = zapcore.DebugLevel
	}
	level := ParseLevel(opts.Level, defaultLevel)

	var fileWriter zapcore.WriteSyncer
	if opts.FilePath != "" {
		w, err := NewFileWriter(opts.FilePath, opts.File)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file writer: %w", err)
		}
		fileWriter = w
	}

	core := NewMultiCore(level, zapcore.Lock(os.Stdout), fileWriter, opts.Development)
	return newLogger(core, level), nil
}

// NewWithCore builds a Logger around an existing core. Tests use it with
// zaptest/observer to inspect emitted entries.
func NewWithCore(core zapcore.Core) *Logger {
	return newLogger(core, zapcore.DebugLevel)
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop(), level: zapcore.FatalLevel}
}

func newLogger(core zapcore.Core, level zapcore.Level) *Logger {
	return &Logger{
		zap:   zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)),
		level: level,
	}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	if l == nil || l.zap == nil {
		return nil
	}
	return l.zap.Sync()
}

// Debug logs a message at DebugLevel.
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.zap.Debug(msg, redactFields(fields)...)
}

// Info logs a message at InfoLevel.
func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.zap.Info(msg, redactFields(fields)...)
}

// Warn logs a message at WarnLevel.
func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.zap.Warn(msg, redactFields(fields)...)
}

// Error logs a message at ErrorLevel.
func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.zap.Error(msg, redactFields(fields)...)
}

// Fatal logs a message at FatalLevel then calls os.Exit(1).
func (l *Logger) Fatal(msg string, fields ...zap.Field) {
	l.zap.Fatal(msg, redactFields(fields)...)
}

// Infof logs a formatted message at InfoLevel.
func (l *Logger) Infof(template string, args ...interface{}) {
	l.zap.Sugar().Infof(template, args...)
}

// With creates a child logger that adds fields to every entry.
//
// Example:
//
//	reqLogger := logger.With(zap.String("request_id", id))
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zap: l.zap.With(redactFields(fields)...), level: l.level}
}

// Named adds a sub-logger name such as "stream" or "db".
func (l *Logger) Named(name string) *Logger {
	return &Logger{zap: l.zap.Named(name), level: l.level}
}

// Zap returns the underlying zap.Logger for packages that take one directly.
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// Level returns the minimum enabled level.
func (l *Logger) Level() zapcore.Level {
	return l.level
}

// redactFields is applied before every log call so that credentials never
// reach a sink.
func redactFields(fields []zap.Field) []zap.Field {
	if len(fields) == 0 {
		return fields
	}

	result := make([]zap.Field, len(fields))
	for i, field := range fields {
		result[i] = redactField(field)
	}
	return result
}

func redactField(field zap.Field) zap.Field {
	if IsSensitiveField(field.Key) {
		return zap.String(field.Key, RedactedPlaceholder)
	}
	if field.Type == zapcore.StringType {
		if redacted := RedactSensitiveData(field.String); redacted != field.String {
			return zap.String(field.Key, redacted)
		}
	}
	return field
}
