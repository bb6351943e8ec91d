// Package logging provides the structured logger used across coresim.
// The call shape (Logger.Info(msg, fields...)) follows the teacher's
// hand-rolled logger; the implementation underneath is zap.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level mirrors the teacher's LogLevel enum.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel
	}
}

// Field is a typed key/value pair attached to a log line.
type Field = zap.Field

func String(k, v string) Field          { return zap.String(k, v) }
func Int(k string, v int) Field         { return zap.Int(k, v) }
func Int64(k string, v int64) Field     { return zap.Int64(k, v) }
func Uint64(k string, v uint64) Field   { return zap.Uint64(k, v) }
func Uint32(k string, v uint32) Field   { return zap.Uint32(k, v) }
func Float64(k string, v float64) Field { return zap.Float64(k, v) }
func Bool(k string, v bool) Field       { return zap.Bool(k, v) }
func Err(err error) Field               { return zap.Error(err) }
func Any(k string, v any) Field         { return zap.Any(k, v) }

// Logger wraps a zap.Logger with a component tag, matching the teacher's
// component-scoped With()/Info()/Warn()/Error()/Fatal() call shape.
type Logger struct {
	z *zap.Logger
}

// Config controls the global logger construction.
type Config struct {
	Level      Level
	Component  string
	Production bool // JSON output suitable for log aggregation
}

// New builds a Logger. Development mode (the default) emits colorized,
// human-readable console lines; Production emits JSON.
func New(cfg Config) *Logger {
	var zc zap.Config
	if cfg.Production {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(cfg.Level.zapLevel())
	zc.OutputPaths = []string{"stderr"}

	z, err := zc.Build()
	if err != nil {
		// Logger construction failing means the process cannot report
		// anything useful; fail loudly to stderr directly.
		panic(err)
	}
	if cfg.Component != "" {
		z = z.With(zap.String("component", cfg.Component))
	}
	return &Logger{z: z}
}

// Nop returns a Logger that discards everything, for tests.
func Nop() *Logger { return &Logger{z: zap.NewNop()} }

// With returns a child logger with additional fields attached to every
// subsequent line.
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{z: l.z.With(fields...)}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }

// Fatal logs at error level, flushes, and terminates the process (os.Exit(1)),
// matching the spec's error-handling policy that invariant violations
// and unrecoverable conditions end the simulation immediately.
func (l *Logger) Fatal(msg string, fields ...Field) {
	l.z.Error(msg, fields...)
	l.z.Sync()
	os.Exit(1)
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error { return l.z.Sync() }

var global = Nop()

// SetGlobal installs l as the package-level logger used by the
// package-level Debug/Info/Warn/Error/Fatal helpers.
func SetGlobal(l *Logger) { global = l }

func Debug(msg string, fields ...Field) { global.Debug(msg, fields...) }
func Info(msg string, fields ...Field)  { global.Info(msg, fields...) }
func Warn(msg string, fields ...Field)  { global.Warn(msg, fields...) }
func Error(msg string, fields ...Field) { global.Error(msg, fields...) }
func Fatal(msg string, fields ...Field) { global.Fatal(msg, fields...) }
