package icontrol

import (
	"net/http"
	"net/url"
)

// RequestOption customizes a single request.
type RequestOption func(*request)

type request struct {
	header http.Header
	query  url.Values
	body   any
}

func buildRequest(opts []RequestOption) *request {
	req := &request{
		header: http.Header{},
		query:  url.Values{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(req)
		}
	}
	return req
}

// WithHeader sets a header for this request, overriding the client default.
// Authorization cannot be overridden; credentials are applied by the transport.
func WithHeader(key, value string) RequestOption {
	return func(r *request) {
		r.header.Set(key, value)
	}
}

// WithHeaders sets several headers for this request.
func WithHeaders(headers map[string]string) RequestOption {
	return func(r *request) {
		for key, value := range headers {
			r.header.Set(key, value)
		}
	}
}

// WithQuery adds a query parameter, e.g. WithQuery("expandSubcollections", "true").
func WithQuery(key, value string) RequestOption {
	return func(r *request) {
		r.query.Add(key, value)
	}
}

// WithBody sets the JSON body. It replaces any previous body as a whole.
// GET and DELETE requests never carry a body.
func WithBody(body any) RequestOption {
	return func(r *request) {
		r.body = body
	}
}

// withBody appends the explicit body argument so it wins over options.
func withBody(opts []RequestOption, body any) []RequestOption {
	merged := make([]RequestOption, 0, len(opts)+1)
	merged = append(merged, opts...)
	return append(merged, WithBody(body))
}
