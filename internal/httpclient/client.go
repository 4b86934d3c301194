// Package httpclient builds the *http.Client behind an iControl client from a
// stack of RoundTripper middleware.
package httpclient

import (
	"net/http"
	"time"
)

// DefaultTimeout matches the iControl REST client default of 100 seconds;
// configuration saves on a busy BIG-IP can take well over a minute.
const DefaultTimeout = 100 * time.Second

// Client owns one *http.Client whose transport is the assembled middleware
// stack. It is built once per device and shared by all requests.
type Client struct {
	base       *http.Client
	middleware []Middleware
}

// Middleware wraps an http.RoundTripper. The first middleware given to
// WithMiddleware sees the request first and the response last.
type Middleware func(http.RoundTripper) http.RoundTripper

// New creates a client with a 100s timeout unless WithTimeout overrides it.
// Without middleware the base transport is left unset, so net/http uses
// http.DefaultTransport.
func New(opts ...Option) *Client {
	c := &Client{
		base: &http.Client{
			Timeout: DefaultTimeout,
		},
		middleware: []Middleware{},
	}

	for _, opt := range opts {
		opt(c)
	}

	if len(c.middleware) > 0 {
		transport := c.base.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}

		// Apply middleware in reverse order so first middleware is outermost
		for i := len(c.middleware) - 1; i >= 0; i-- {
			transport = c.middleware[i](transport)
		}

		c.base.Transport = transport
	}

	return c
}

// Do executes an HTTP request using the configured middleware chain.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	//nolint:wrapcheck // Callers wrap transport errors with request context
	return c.base.Do(req)
}

// HTTPClient returns the underlying http.Client.
func (c *Client) HTTPClient() *http.Client {
	return c.base
}
