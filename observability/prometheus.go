package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder is a MetricsRecorder backed by Prometheus collectors.
// It is safe for concurrent use.
type PrometheusRecorder struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	rateLimitWait   *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
}

var _ MetricsRecorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder registers the icontrol_* collectors on registerer.
// A nil registerer uses prometheus.DefaultRegisterer.
func NewPrometheusRecorder(registerer prometheus.Registerer) *PrometheusRecorder {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusRecorder{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "icontrol_requests_total",
				Help: "Total number of iControl REST requests",
			},
			[]string{"method", "path", "status_code"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "icontrol_request_duration_seconds",
				Help:    "Duration of iControl REST requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "icontrol_retries_total",
				Help: "Total number of retried request attempts",
			},
			[]string{"endpoint", "attempt"},
		),
		rateLimitWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "icontrol_rate_limit_wait_seconds",
				Help:    "Time spent waiting on the client-side rate limiter",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "icontrol_errors_total",
				Help: "Total number of errors by operation and type",
			},
			[]string{"operation", "type"},
		),
	}
}

// RecordHTTPRequest implements MetricsRecorder.
func (r *PrometheusRecorder) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	r.requestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	r.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRetry implements MetricsRecorder.
func (r *PrometheusRecorder) RecordRetry(attempt int, endpoint string) {
	r.retriesTotal.WithLabelValues(endpoint, strconv.Itoa(attempt)).Inc()
}

// RecordRateLimit implements MetricsRecorder.
func (r *PrometheusRecorder) RecordRateLimit(endpoint string, wait time.Duration) {
	r.rateLimitWait.WithLabelValues(endpoint).Observe(wait.Seconds())
}

// RecordError implements MetricsRecorder.
func (r *PrometheusRecorder) RecordError(operation, errorType string) {
	r.errorsTotal.WithLabelValues(operation, errorType).Inc()
}
