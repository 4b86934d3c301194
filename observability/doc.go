// Package observability provides interfaces for logging and metrics collection
// in the go-icontrol library.
//
// # Logger Interface
//
// The Logger interface supports structured logging with key-value pairs:
//
//	client, err := icontrol.NewWithConfig(&icontrol.ClientConfig{
//		Host:     "10.0.0.245",
//		Username: "admin",
//		Password: password,
//		Logger:   observability.NewSlogLogger(slog.Default()),
//	})
//
// Values wrapped in Lazy are computed only when a record is actually written,
// which keeps response bodies out of the hot path when debug logging is off.
//
// # MetricsRecorder Interface
//
// The MetricsRecorder interface tracks client metrics. NewPrometheusRecorder
// provides an implementation backed by Prometheus collectors:
//
//	metrics := observability.NewPrometheusRecorder(prometheus.DefaultRegisterer)
//
// Tracked metrics include:
//   - HTTP request count, status codes, and duration
//   - Retry attempts for failed requests
//   - Rate limiting events and wait times
//   - Error occurrences by type
//
// # Default Behavior
//
// If no logger or metrics recorder is provided, the client uses no-op
// implementations that discard all events.
package observability
