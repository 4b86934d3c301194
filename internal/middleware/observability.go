package middleware

import (
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/lexfrei/go-icontrol/observability"
)

// Observability returns a middleware that logs and records metrics for HTTP exchanges.
func Observability(logger observability.Logger, metrics observability.MetricsRecorder) func(http.RoundTripper) http.RoundTripper {
	if logger == nil {
		logger = observability.NoopLogger()
	}
	if metrics == nil {
		metrics = observability.NoopMetricsRecorder()
	}

	return func(next http.RoundTripper) http.RoundTripper {
		return &observabilityTransport{
			next:    next,
			logger:  logger,
			metrics: metrics,
		}
	}
}

type observabilityTransport struct {
	next    http.RoundTripper
	logger  observability.Logger
	metrics observability.MetricsRecorder
}

func (t *observabilityTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	path := normalizePath(req.URL.Path)

	t.logger.Debug("http request started",
		observability.Field{Key: "method", Value: req.Method},
		observability.Field{Key: "path", Value: req.URL.Path},
	)

	resp, err := t.next.RoundTrip(req)

	duration := time.Since(start)

	if err != nil {
		t.logger.Debug("http request failed",
			observability.Field{Key: "method", Value: req.Method},
			observability.Field{Key: "path", Value: req.URL.Path},
			observability.Field{Key: "duration", Value: duration},
			observability.Field{Key: "error", Value: err.Error()},
		)

		t.metrics.RecordError("http_request", "TransportError")

		//nolint:wrapcheck // Observability middleware logs error but passes it through unchanged
		return nil, err
	}

	fields := []observability.Field{
		{Key: "method", Value: req.Method},
		{Key: "path", Value: req.URL.Path},
		{Key: "status", Value: resp.StatusCode},
		{Key: "duration", Value: duration},
	}

	if resp.StatusCode != http.StatusOK {
		t.logger.Warn("http request completed with error", fields...)
	} else {
		t.logger.Debug("http request completed", fields...)
	}

	t.metrics.RecordHTTPRequest(req.Method, path, resp.StatusCode, duration)

	return resp, nil
}

var (
	// objectNamePattern matches partition-qualified object names: /~Common~web_pool.
	objectNamePattern = regexp.MustCompile(`/~[^/]+`)
	// numericIDPattern matches numeric identifiers of five or more digits.
	numericIDPattern = regexp.MustCompile(`/\d{5,}(/|$)`)
	// uuidPattern matches transaction and task UUIDs.
	uuidPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

	normalizedPathCache sync.Map
)

// NormalizePath is the path form used in metric labels and log fields.
func NormalizePath(path string) string {
	return normalizePath(path)
}

// normalizePath replaces object names and identifiers with placeholders so
// metrics labels keep a bounded cardinality.
//
// Examples:
//   - /mgmt/tm/ltm/pool/~Common~web/members/~Common~10.0.0.1:80 → /mgmt/tm/ltm/pool/:name/members/:name
//   - /mgmt/tm/transaction/1589215163432 → /mgmt/tm/transaction/:id
func normalizePath(path string) string {
	if cached, ok := normalizedPathCache.Load(path); ok {
		//nolint:forcetypeassert // Cache only stores strings
		return cached.(string)
	}

	normalized := objectNamePattern.ReplaceAllString(path, "/:name")
	normalized = uuidPattern.ReplaceAllString(normalized, ":id")
	normalized = numericIDPattern.ReplaceAllString(normalized, "/:id$1")

	normalizedPathCache.Store(path, normalized)

	return normalized
}
