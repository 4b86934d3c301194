package observability

// Field represents a structured logging field (key-value pair).
type Field struct {
	Key   string
	Value any
}

// Lazy is a field value computed only when a logger actually emits the record.
// Use it for values that are expensive to render, such as response bodies.
type Lazy func() any

// Logger receives the client's structured log records: request and response
// lines at debug, non-200 responses at warn, failed attempts at error and the
// device-not-ready notice at info. NewSlogLogger adapts log/slog.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	Debug(msg string, fields ...Field)

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...Field)

	// Warn logs a warning-level message with optional structured fields.
	Warn(msg string, fields ...Field)

	// Error logs an error-level message with optional structured fields.
	Error(msg string, fields ...Field)

	// With returns a logger that adds fields to every later record.
	// The client uses it to attach the device host once.
	With(fields ...Field) Logger
}

// noopLogger is a no-operation logger that discards all log messages.
type noopLogger struct{}

// NoopLogger returns a logger that does nothing. Lazy values are never evaluated.
// This is the default logger used when none is provided.
//
//nolint:ireturn // Factory function must return interface for dependency injection pattern
func NoopLogger() Logger {
	return &noopLogger{}
}

func (l *noopLogger) Debug(string, ...Field) {}
func (l *noopLogger) Info(string, ...Field)  {}
func (l *noopLogger) Warn(string, ...Field)  {}
func (l *noopLogger) Error(string, ...Field) {}

//nolint:ireturn // Method must return interface to satisfy Logger interface
func (l *noopLogger) With(...Field) Logger { return l }
