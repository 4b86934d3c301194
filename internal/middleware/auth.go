// Package middleware provides the http.RoundTripper layers of the iControl client.
package middleware

import (
	"maps"
	"net/http"
)

// BasicAuth returns a middleware that sets HTTP Basic credentials on every request.
// It runs at the transport level, so per-call headers can never replace the
// configured credentials.
func BasicAuth(username, password string) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return &basicAuthTransport{
			next:     next,
			username: username,
			password: password,
		}
	}
}

type basicAuthTransport struct {
	next     http.RoundTripper
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = cloneRequest(req)
	req.SetBasicAuth(t.username, t.password)

	//nolint:wrapcheck // Middleware passes through errors from next handler in chain
	return t.next.RoundTrip(req)
}

// cloneRequest creates a shallow copy of the request with a cloned header map.
func cloneRequest(req *http.Request) *http.Request {
	r := new(http.Request)
	*r = *req
	r.Header = make(http.Header, len(req.Header))
	maps.Copy(r.Header, req.Header)
	return r
}
