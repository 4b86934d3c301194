package observability

import "time"

// MetricsRecorder receives the client's measurements. Paths and endpoints are
// normalized (object names become :name, long numeric and UUID identifiers
// become :id) so they are safe to use as metric labels.
// NewPrometheusRecorder is the bundled implementation.
type MetricsRecorder interface {
	// RecordHTTPRequest is called once per HTTP exchange that got a response.
	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration)

	// RecordRetry is called before each retry; attempt is the one that failed.
	RecordRetry(attempt int, endpoint string)

	// RecordRateLimit is called when the client-side limiter delays a request.
	RecordRateLimit(endpoint string, wait time.Duration)

	// RecordError is called with operation "request", "dispatch" or "http_request" and an
	// error type such as APIError, DecodeError, TransportError or EmptyRoute.
	RecordError(operation, errorType string)
}

type noopMetricsRecorder struct{}

// NoopMetricsRecorder returns a metrics recorder that does nothing.
// This is the default recorder used when none is provided.
//
//nolint:ireturn // Factory function must return interface for dependency injection pattern
func NoopMetricsRecorder() MetricsRecorder {
	return &noopMetricsRecorder{}
}

func (m *noopMetricsRecorder) RecordHTTPRequest(string, string, int, time.Duration) {}
func (m *noopMetricsRecorder) RecordRetry(int, string)                              {}
func (m *noopMetricsRecorder) RecordRateLimit(string, time.Duration)                {}
func (m *noopMetricsRecorder) RecordError(string, string)                           {}
