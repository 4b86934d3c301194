// Package testutil provides mock BIG-IP servers for tests.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Credentials accepted by the mock servers.
const (
	Username = "admin"
	Password = "admin-pass"
)

// MockResponse is one canned reply of a mock server.
type MockResponse struct {
	Body       string
	StatusCode int
}

// Sequence is a TLS test server that replies with responses in order and
// counts the requests it received. Once responses run out, the last one repeats.
type Sequence struct {
	*httptest.Server

	mu        sync.Mutex
	responses []MockResponse
	requests  []*RecordedRequest
}

// RecordedRequest captures what the server received.
type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   string
}

// NewMockServer creates a TLS server that validates basic auth and the request
// path, then returns the given response.
func NewMockServer(t *testing.T, expectedPath, responseBody string, statusCode int) *Sequence {
	t.Helper()

	seq := NewMockServerSequence(t, []MockResponse{{Body: responseBody, StatusCode: statusCode}})
	t.Cleanup(func() {
		for _, req := range seq.Requests() {
			assert.Equal(t, expectedPath, req.Path, "Request path should match expected")
		}
	})

	return seq
}

// NewMockServerSequence creates a TLS server that returns responses in sequence.
// Useful for testing retry logic.
func NewMockServerSequence(t *testing.T, responses []MockResponse) *Sequence {
	t.Helper()
	require.NotEmpty(t, responses, "at least one response is required")

	seq := &Sequence{responses: responses}
	seq.Server = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok, "basic auth should be set")
		assert.Equal(t, Username, user)
		assert.Equal(t, Password, pass)

		resp := seq.record(r)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		_, err := w.Write([]byte(resp.Body))
		assert.NoError(t, err, "Failed to write response body")
	}))
	t.Cleanup(seq.Close)

	return seq
}

func (s *Sequence) record(r *http.Request) MockResponse {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, &RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   string(body),
	})

	idx := min(len(s.requests)-1, len(s.responses)-1)
	return s.responses[idx]
}

// Host returns the server address in host:port form, as a BIG-IP host would be configured.
func (s *Sequence) Host() string {
	return strings.TrimPrefix(s.URL, "https://")
}

// Requests returns the requests received so far.
func (s *Sequence) Requests() []*RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*RecordedRequest(nil), s.requests...)
}

// Count returns the number of requests received so far.
func (s *Sequence) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
