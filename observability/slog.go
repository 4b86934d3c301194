package observability

import (
	"context"
	"log/slog"
)

// slogLogger adapts *slog.Logger to Logger.
type slogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps a *slog.Logger. Lazy field values are resolved through
// slog.LogValuer, so they are skipped for records below the handler's level.
//
//nolint:ireturn // Factory function must return interface for dependency injection pattern
func NewSlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		return NoopLogger()
	}
	return &slogLogger{logger: logger}
}

func (l *slogLogger) Debug(msg string, fields ...Field) {
	l.log(slog.LevelDebug, msg, fields)
}

func (l *slogLogger) Info(msg string, fields ...Field) {
	l.log(slog.LevelInfo, msg, fields)
}

func (l *slogLogger) Warn(msg string, fields ...Field) {
	l.log(slog.LevelWarn, msg, fields)
}

func (l *slogLogger) Error(msg string, fields ...Field) {
	l.log(slog.LevelError, msg, fields)
}

//nolint:ireturn // Method must return interface to satisfy Logger interface
func (l *slogLogger) With(fields ...Field) Logger {
	return &slogLogger{logger: l.logger.With(convertFields(fields)...)}
}

func (l *slogLogger) log(level slog.Level, msg string, fields []Field) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	l.logger.Log(ctx, level, msg, convertFields(fields)...)
}

func convertFields(fields []Field) []any {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		if lazy, ok := f.Value.(Lazy); ok {
			args = append(args, slog.Any(f.Key, lazyValuer(lazy)))
			continue
		}
		args = append(args, slog.Any(f.Key, f.Value))
	}
	return args
}

type lazyValuer Lazy

func (v lazyValuer) LogValue() slog.Value {
	return slog.AnyValue(v())
}
