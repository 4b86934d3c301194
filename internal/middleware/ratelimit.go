package middleware

import (
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/lexfrei/go-icontrol/observability"
)

// RateLimitConfig configures the rate limit middleware.
type RateLimitConfig struct {
	Limiter *rate.Limiter
	Logger  observability.Logger
	Metrics observability.MetricsRecorder
}

// RateLimit returns a middleware that waits on cfg.Limiter before every request.
// A nil limiter disables rate limiting.
func RateLimit(cfg RateLimitConfig) func(http.RoundTripper) http.RoundTripper {
	if cfg.Logger == nil {
		cfg.Logger = observability.NoopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetricsRecorder()
	}

	return func(next http.RoundTripper) http.RoundTripper {
		if cfg.Limiter == nil {
			return next
		}

		return &rateLimitTransport{
			next:    next,
			limiter: cfg.Limiter,
			logger:  cfg.Logger,
			metrics: cfg.Metrics,
		}
	}
}

type rateLimitTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
	logger  observability.Logger
	metrics observability.MetricsRecorder
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	reservation := t.limiter.Reserve()
	if !reservation.OK() {
		return nil, errors.New("rate limit reservation failed")
	}

	if delay := reservation.Delay(); delay > 0 {
		path := normalizePath(req.URL.Path)

		t.logger.Debug("rate limit delay",
			observability.Field{Key: "delay", Value: delay},
			observability.Field{Key: "path", Value: req.URL.Path},
		)

		t.metrics.RecordRateLimit(path, delay)

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			reservation.Cancel()
			return nil, errors.Wrap(ctx.Err(), "context canceled during rate limit wait")
		}
	}

	//nolint:wrapcheck // Middleware passes through errors from next handler in chain
	return t.next.RoundTrip(req)
}
