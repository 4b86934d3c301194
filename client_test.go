package icontrol_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	icontrol "github.com/lexfrei/go-icontrol"
	"github.com/lexfrei/go-icontrol/internal/testutil"
)

const dnsResponse = `{"kind":"tm:sys:dns:dnsstate","nameServers":["1.2.3.72"]}`

var dnsBody = map[string]any{
	"kind":        "tm:sys:dns:dnsstate",
	"nameServers": []any{"1.2.3.72"},
}

func newTestClient(t *testing.T, server *testutil.Sequence, mutate ...func(*icontrol.ClientConfig)) *icontrol.Client {
	t.Helper()

	cfg := &icontrol.ClientConfig{
		Host:               server.Host(),
		Username:           testutil.Username,
		Password:           testutil.Password,
		InsecureSkipVerify: true,
		Timeout:            5 * time.Second,
		NotReadyWait:       time.Millisecond,
		RetryWaitTime:      time.Millisecond,
	}
	for _, m := range mutate {
		m(cfg)
	}

	client, err := icontrol.NewWithConfig(cfg)
	require.NoError(t, err)

	return client
}

func TestGet(t *testing.T) {
	t.Parallel()

	server := testutil.NewMockServer(t, "/mgmt/tm/sys/dns", dnsResponse, http.StatusOK)
	client := newTestClient(t, server)

	got, err := client.Get(context.Background(), "/mgmt/tm/sys/dns")
	require.NoError(t, err)
	assert.Equal(t, any(dnsBody), got)

	requests := server.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, http.MethodGet, requests[0].Method)
	assert.Equal(t, "application/json", requests[0].Header.Get("Content-Type"))
	assert.Empty(t, requests[0].Body)
}

func TestCall(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"get_sys_dns", "getSysDns"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			server := testutil.NewMockServer(t, "/mgmt/tm/sys/dns", dnsResponse, http.StatusOK)
			client := newTestClient(t, server)

			require.True(t, client.RespondsTo(name))

			got, err := client.Call(context.Background(), name)
			require.NoError(t, err)
			assert.Equal(t, any(dnsBody), got)
			assert.Equal(t, 1, server.Count())
		})
	}
}

func TestCallBodyPerVerb(t *testing.T) {
	t.Parallel()

	server := testutil.NewMockServerSequence(t, []testutil.MockResponse{{Body: `{}`, StatusCode: http.StatusOK}})
	client := newTestClient(t, server)
	ctx := context.Background()

	_, err := client.Call(ctx, "post_ltm_pool", icontrol.WithBody(map[string]any{"name": "web"}))
	require.NoError(t, err)

	_, err = client.Call(ctx, "delete_ltm_pool_~Common~web", icontrol.WithBody(map[string]any{"ignored": true}))
	require.NoError(t, err)

	requests := server.Requests()
	require.Len(t, requests, 2)

	assert.Equal(t, http.MethodPost, requests[0].Method)
	assert.Equal(t, "/mgmt/tm/ltm/pool", requests[0].Path)
	assert.JSONEq(t, `{"name":"web"}`, requests[0].Body)

	assert.Equal(t, http.MethodDelete, requests[1].Method)
	assert.Equal(t, "/mgmt/tm/ltm/pool/~Common~web", requests[1].Path)
	assert.Empty(t, requests[1].Body, "DELETE never carries a body")
}

func TestCallEmptyRoute(t *testing.T) {
	t.Parallel()

	server := testutil.NewMockServer(t, "/unused", `{}`, http.StatusOK)
	client := newTestClient(t, server)

	for _, name := range []string{"get", "get_", "post"} {
		_, err := client.Call(context.Background(), name)
		require.Error(t, err)
		assert.True(t, errors.Is(err, icontrol.ErrEmptyRoute), "name %q: %v", name, err)
	}

	assert.Zero(t, server.Count(), "no network call for an empty route")
}

func TestCallUnsupportedOperation(t *testing.T) {
	t.Parallel()

	server := testutil.NewMockServer(t, "/unused", `{}`, http.StatusOK)
	client := newTestClient(t, server)

	assert.False(t, client.RespondsTo("fetch_sys_dns"))

	_, err := client.Call(context.Background(), "fetch_sys_dns")
	require.Error(t, err)
	assert.True(t, errors.Is(err, icontrol.ErrUnsupportedOperation))
	assert.Zero(t, server.Count())
}

func TestPostApplicationFailure(t *testing.T) {
	t.Parallel()

	server := testutil.NewMockServer(t, "/mgmt/tm/sys/dns", `{"code":500,"message":"err"}`, http.StatusInternalServerError)
	client := newTestClient(t, server, func(cfg *icontrol.ClientConfig) {
		cfg.MaxAttempts = 3
	})

	_, err := client.Post(context.Background(), "/mgmt/tm/sys/dns", map[string]any{"key": "thing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "err")

	apiErr, ok := icontrol.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "500", apiErr.Code)
	assert.Equal(t, "err", apiErr.Message)

	assert.Equal(t, 1, server.Count(), "application failures are never retried")
	assert.JSONEq(t, `{"key":"thing"}`, server.Requests()[0].Body)
}

func TestApplicationFailureWithoutBody(t *testing.T) {
	t.Parallel()

	server := testutil.NewMockServer(t, "/mgmt/tm/sys/dns", "", http.StatusUnauthorized)
	client := newTestClient(t, server)

	_, err := client.Get(context.Background(), "/mgmt/tm/sys/dns")
	require.Error(t, err)

	apiErr, ok := icontrol.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Empty(t, apiErr.Code)
	assert.Empty(t, apiErr.Message)
}

func TestRetryExhausted(t *testing.T) {
	t.Parallel()

	transportErr := errors.New("connection refused")

	for _, attempts := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("%d attempts", attempts), func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			client, err := icontrol.NewWithConfig(&icontrol.ClientConfig{
				Host:          "10.0.0.245",
				Username:      "admin",
				MaxAttempts:   attempts,
				RetryWaitTime: time.Millisecond,
				Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
					calls.Add(1)
					return nil, transportErr
				}),
			})
			require.NoError(t, err)

			_, err = client.Get(context.Background(), "/mgmt/tm/sys/dns")
			require.Error(t, err)
			assert.ErrorIs(t, err, transportErr)
			assert.Equal(t, int32(attempts), calls.Load())
		})
	}
}

func TestRetryNotReadyThenSuccess(t *testing.T) {
	t.Parallel()

	server := testutil.NewMockServerSequence(t, []testutil.MockResponse{
		{Body: `{"kind":"tm:sys:dns`, StatusCode: http.StatusOK},
		{Body: `<html>starting</html>`, StatusCode: http.StatusServiceUnavailable},
		{Body: dnsResponse, StatusCode: http.StatusOK},
	})
	client := newTestClient(t, server, func(cfg *icontrol.ClientConfig) {
		cfg.MaxAttempts = 3
		cfg.NotReadyWait = 20 * time.Millisecond
	})

	start := time.Now()
	got, err := client.Get(context.Background(), "/mgmt/tm/sys/dns")
	require.NoError(t, err)

	assert.Equal(t, any(dnsBody), got)
	assert.Equal(t, 3, server.Count())
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond, "not-ready wait applies before each retry")
}

func TestRetryNotReadyExhausted(t *testing.T) {
	t.Parallel()

	server := testutil.NewMockServer(t, "/mgmt/tm/sys/dns", `{"kind":`, http.StatusOK)
	client := newTestClient(t, server, func(cfg *icontrol.ClientConfig) {
		cfg.MaxAttempts = 2
	})

	_, err := client.Get(context.Background(), "/mgmt/tm/sys/dns")
	require.Error(t, err)
	assert.True(t, icontrol.IsNotReady(err))
	assert.Equal(t, 2, server.Count())
}

func TestPostRequestDelay(t *testing.T) {
	t.Parallel()

	const delay = 100 * time.Millisecond

	t.Run("after success", func(t *testing.T) {
		t.Parallel()

		server := testutil.NewMockServer(t, "/mgmt/tm/sys/dns", dnsResponse, http.StatusOK)
		client := newTestClient(t, server, func(cfg *icontrol.ClientConfig) {
			cfg.PostRequestDelay = delay
		})

		start := time.Now()
		_, err := client.Get(context.Background(), "/mgmt/tm/sys/dns")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), delay)
	})

	t.Run("after failure", func(t *testing.T) {
		t.Parallel()

		server := testutil.NewMockServer(t, "/mgmt/tm/sys/dns", `{"code":404,"message":"not found"}`, http.StatusNotFound)
		client := newTestClient(t, server, func(cfg *icontrol.ClientConfig) {
			cfg.PostRequestDelay = delay
		})

		start := time.Now()
		_, err := client.Get(context.Background(), "/mgmt/tm/sys/dns")
		require.Error(t, err)
		assert.GreaterOrEqual(t, time.Since(start), delay)
	})

	t.Run("canceled context stops the delay", func(t *testing.T) {
		t.Parallel()

		server := testutil.NewMockServer(t, "/mgmt/tm/sys/dns", dnsResponse, http.StatusOK)
		client := newTestClient(t, server, func(cfg *icontrol.ClientConfig) {
			cfg.PostRequestDelay = time.Hour
			cfg.MaxAttempts = 3
		})

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := client.Get(ctx, "/mgmt/tm/sys/dns")
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, server.Count())
	})
}

func TestHeaderMerging(t *testing.T) {
	t.Parallel()

	server := testutil.NewMockServer(t, "/mgmt/tm/sys/dns", dnsResponse, http.StatusOK)
	client := newTestClient(t, server, func(cfg *icontrol.ClientConfig) {
		cfg.Headers = map[string]string{
			"X-Client-Default": "client",
			"X-Overridden":     "client",
		}
	})

	_, err := client.Get(context.Background(), "/mgmt/tm/sys/dns",
		icontrol.WithHeader("X-Overridden", "call"),
		icontrol.WithHeaders(map[string]string{"X-Per-Call": "yes"}),
		icontrol.WithHeader("Authorization", "Bearer not-allowed"),
	)
	require.NoError(t, err)

	header := server.Requests()[0].Header
	assert.Equal(t, "client", header.Get("X-Client-Default"))
	assert.Equal(t, "call", header.Get("X-Overridden"))
	assert.Equal(t, "yes", header.Get("X-Per-Call"))
	assert.Equal(t, "application/json", header.Get("Content-Type"))

	user, _, ok := (&http.Request{Header: header}).BasicAuth()
	assert.True(t, ok, "basic auth is always applied")
	assert.Equal(t, testutil.Username, user)
}

func TestVerbs(t *testing.T) {
	t.Parallel()

	server := testutil.NewMockServerSequence(t, []testutil.MockResponse{{Body: `{"kind":"tm:sys:ntp:ntpstate"}`, StatusCode: http.StatusOK}})
	client := newTestClient(t, server)
	ctx := context.Background()
	path := icontrol.ResourcePath("sys", "ntp")

	_, err := client.Put(ctx, path, map[string]any{"servers": []string{"pool.ntp.org"}})
	require.NoError(t, err)
	_, err = client.Patch(ctx, path, map[string]any{"timezone": "UTC"})
	require.NoError(t, err)
	_, err = client.Delete(ctx, path)
	require.NoError(t, err)
	_, err = client.Post(ctx, path, nil)
	require.NoError(t, err)

	requests := server.Requests()
	require.Len(t, requests, 4)

	assert.Equal(t, http.MethodPut, requests[0].Method)
	assert.JSONEq(t, `{"servers":["pool.ntp.org"]}`, requests[0].Body)
	assert.Equal(t, http.MethodPatch, requests[1].Method)
	assert.JSONEq(t, `{"timezone":"UTC"}`, requests[1].Body)
	assert.Equal(t, http.MethodDelete, requests[2].Method)
	assert.Equal(t, http.MethodPost, requests[3].Method)
	assert.Empty(t, requests[3].Body, "nil body is omitted")

	for _, req := range requests {
		assert.Equal(t, "/mgmt/tm/sys/ntp", req.Path)
	}
}

func TestDoAndFetch(t *testing.T) {
	t.Parallel()

	server := testutil.NewMockServer(t, "/mgmt/tm/sys/dns", dnsResponse, http.StatusOK)
	client := newTestClient(t, server)
	ctx := context.Background()

	resp, err := client.Do(ctx, http.MethodGet, "mgmt/tm/sys/dns", icontrol.WithQuery("expandSubcollections", "true"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, any(dnsBody), resp.Body)

	type dns struct {
		Kind        string   `json:"kind"`
		NameServers []string `json:"nameServers"`
	}

	got, err := icontrol.Fetch[dns](ctx, client, "/mgmt/tm/sys/dns")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.2.3.72"}, got.NameServers)
}

func TestFetchError(t *testing.T) {
	t.Parallel()

	server := testutil.NewMockServer(t, "/mgmt/tm/ltm/pool/~Common~missing", `{"code":404,"message":"not found"}`, http.StatusNotFound)
	client := newTestClient(t, server)

	_, err := icontrol.Fetch[map[string]any](context.Background(), client, "/mgmt/tm/ltm/pool/~Common~missing")
	require.Error(t, err)

	apiErr, ok := icontrol.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "404", apiErr.Code)
}

func TestCertificateVerification(t *testing.T) {
	t.Parallel()

	server := testutil.NewMockServer(t, "/mgmt/tm/sys/dns", dnsResponse, http.StatusOK)
	client := newTestClient(t, server, func(cfg *icontrol.ClientConfig) {
		cfg.InsecureSkipVerify = false
	})

	_, err := client.Get(context.Background(), "/mgmt/tm/sys/dns")
	require.Error(t, err, "self-signed certificate must be rejected when verification is on")
	assert.Zero(t, server.Count())
}

func TestNewWithConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  *icontrol.ClientConfig
	}{
		{"nil config", nil},
		{"missing host", &icontrol.ClientConfig{Username: "admin"}},
		{"missing username", &icontrol.ClientConfig{Host: "10.0.0.245"}},
		{"negative attempts", &icontrol.ClientConfig{Host: "10.0.0.245", Username: "admin", MaxAttempts: -1}},
		{"negative delay", &icontrol.ClientConfig{Host: "10.0.0.245", Username: "admin", PostRequestDelay: -time.Second}},
		{"negative max retry wait", &icontrol.ClientConfig{Host: "10.0.0.245", Username: "admin", MaxRetryWait: -time.Second}},
		{"negative rate limit", &icontrol.ClientConfig{Host: "10.0.0.245", Username: "admin", RateLimitPerMinute: -5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := icontrol.NewWithConfig(tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, icontrol.ErrInvalidConfig))
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	client, err := icontrol.New("10.0.0.245", "admin", "secret")
	require.NoError(t, err)
	require.NotNil(t, client)
}

// roundTripperFunc is an adapter to use functions as http.RoundTripper
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestRetryBackoffCapped(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client, err := icontrol.NewWithConfig(&icontrol.ClientConfig{
		Host:          "10.0.0.245",
		Username:      "admin",
		MaxAttempts:   4,
		RetryWaitTime: time.Hour,
		MaxRetryWait:  5 * time.Millisecond,
		Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
			calls.Add(1)
			return nil, errors.New("connection refused")
		}),
	})
	require.NoError(t, err)

	start := time.Now()
	_, err = client.Get(context.Background(), "/mgmt/tm/sys/dns")
	require.Error(t, err)

	assert.Equal(t, int32(4), calls.Load())
	assert.Less(t, time.Since(start), 5*time.Second, "backoff never exceeds MaxRetryWait")
}

type retryMetrics struct {
	mu        sync.Mutex
	endpoints []string
}

func (m *retryMetrics) RecordHTTPRequest(string, string, int, time.Duration) {}
func (m *retryMetrics) RecordRateLimit(string, time.Duration)               {}
func (m *retryMetrics) RecordError(string, string)                          {}

func (m *retryMetrics) RecordRetry(_ int, endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endpoints = append(m.endpoints, endpoint)
}

func TestRetryMetricUsesNormalizedPath(t *testing.T) {
	t.Parallel()

	metrics := &retryMetrics{}
	client, err := icontrol.NewWithConfig(&icontrol.ClientConfig{
		Host:          "10.0.0.245",
		Username:      "admin",
		MaxAttempts:   3,
		RetryWaitTime: time.Millisecond,
		Metrics:       metrics,
		Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		}),
	})
	require.NoError(t, err)

	_, err = client.Get(context.Background(), icontrol.ResourcePath("ltm", "pool", "~Common~web"))
	require.Error(t, err)

	assert.Equal(t, []string{"/mgmt/tm/ltm/pool/:name", "/mgmt/tm/ltm/pool/:name"}, metrics.endpoints)
}
