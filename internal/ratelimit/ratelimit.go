// Package ratelimit builds the optional client-side limiter for iControl requests.
package ratelimit

import "golang.org/x/time/rate"

// NewRateLimiter creates a token bucket allowing requestsPerMinute requests,
// replenished continuously at requestsPerMinute/60 per second with a burst of
// requestsPerMinute. It returns nil when requestsPerMinute is not positive,
// which disables rate limiting.
func NewRateLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), requestsPerMinute)
}
