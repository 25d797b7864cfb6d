// Package logging provides the structured logger injected into every
// engine and multiplexer component. Generalized from the teacher's
// services/common.StructuredLogger: same zap backend and field-pair
// calling convention, but handed to components by constructor injection
// instead of looked up from a process-global.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the capability every component depends on. Never a global.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})

	With(fields ...interface{}) Logger
}

// zapLogger is the production Logger backed by go.uber.org/zap.
type zapLogger struct {
	core   *zap.Logger
	fields []zap.Field
}

// New builds a Logger at the given level ("debug", "info", "warn", "error").
func New(component string, level string) Logger {
	cfg := zap.NewProductionConfig()
	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Encoding = "json"
	cfg.EncoderConfig = zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	cfg.InitialFields = map[string]interface{}{
		"component": component,
		"pid":       os.Getpid(),
	}

	core, err := cfg.Build()
	if err != nil {
		core = zap.NewNop()
	}
	return &zapLogger{core: core}
}

// NewNop returns a Logger that discards everything, for tests.
func NewNop() Logger {
	return &zapLogger{core: zap.NewNop()}
}

func (l *zapLogger) Debug(msg string, fields ...interface{}) {
	l.core.Debug(msg, l.convert(fields...)...)
}

func (l *zapLogger) Info(msg string, fields ...interface{}) {
	l.core.Info(msg, l.convert(fields...)...)
}

func (l *zapLogger) Warn(msg string, fields ...interface{}) {
	l.core.Warn(msg, l.convert(fields...)...)
}

func (l *zapLogger) Error(msg string, fields ...interface{}) {
	l.core.Error(msg, l.convert(fields...)...)
}

func (l *zapLogger) With(fields ...interface{}) Logger {
	return &zapLogger{core: l.core, fields: append(append([]zap.Field{}, l.fields...), l.convert(fields...)...)}
}

func (l *zapLogger) convert(fields ...interface{}) []zap.Field {
	if len(fields)%2 != 0 {
		fields = append(fields, "")
	}
	out := make([]zap.Field, 0, len(fields)/2+len(l.fields))
	out = append(out, l.fields...)
	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			key = "field"
		}
		out = append(out, zap.Any(key, fields[i+1]))
	}
	return out
}
