package httpclient

import (
	"net/http"
	"time"
)

// Option is a functional option for configuring the HTTP client.
type Option func(*Client)

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.base.Timeout = timeout
	}
}

// WithTransport sets the base HTTP transport. A nil transport keeps http.DefaultTransport.
// Note: If middleware is also configured, the transport will be wrapped.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) {
		c.base.Transport = transport
	}
}

// WithMiddleware appends middleware; the first one listed is the outermost.
// The iControl client installs:
//
//	WithMiddleware(Observability, RateLimit, BasicAuth, TLSConfig)
//
// so a request is logged and timed including any rate-limit wait, then
// gets its Authorization header, and finally reaches a transport whose TLS
// settings honour certificate verification.
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}
