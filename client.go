package icontrol

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/lexfrei/go-icontrol/internal/codec"
	"github.com/lexfrei/go-icontrol/internal/httpclient"
	"github.com/lexfrei/go-icontrol/internal/middleware"
	"github.com/lexfrei/go-icontrol/internal/ratelimit"
	"github.com/lexfrei/go-icontrol/internal/response"
	"github.com/lexfrei/go-icontrol/internal/retry"
	"github.com/lexfrei/go-icontrol/observability"
)

const (
	// DefaultTimeout is the default per-request deadline.
	DefaultTimeout = httpclient.DefaultTimeout
	// DefaultMaxAttempts is the default number of attempts (no retry).
	DefaultMaxAttempts = 1
	// DefaultNotReadyWait is the extra wait before retrying after a malformed
	// JSON response, which BIG-IP returns while its configuration utility starts.
	DefaultNotReadyWait = 30 * time.Second
	// DefaultRetryWaitTime is the backoff base between transient retries.
	DefaultRetryWaitTime = 500 * time.Millisecond
	// DefaultMaxRetryWait caps the exponential backoff between retries.
	DefaultMaxRetryWait = retry.DefaultMaxWait
)

// Client is an iControl REST client for a single BIG-IP device.
// It is safe for concurrent use; its configuration never changes after construction.
type Client struct {
	baseURL          string
	httpClient       *httpclient.Client
	headers          http.Header
	policy           retry.Policy
	postRequestDelay time.Duration
	logger           observability.Logger
	metrics          observability.MetricsRecorder
}

// Compile-time check to ensure Client implements the API interface.
var _ API = (*Client)(nil)

// ClientConfig holds configuration for the iControl REST client.
type ClientConfig struct {
	// Host is the device address, without scheme (e.g. "10.0.0.245" or "bigip.example.com:8443")
	Host string

	// Username and Password are sent with HTTP Basic authentication on every request
	Username string
	Password string

	// InsecureSkipVerify disables TLS certificate verification (defaults to verifying)
	InsecureSkipVerify bool

	// Timeout sets the per-request deadline (defaults to 100s)
	Timeout time.Duration

	// PostRequestDelay is a pause after every completed request, successful or not,
	// to let the device settle between calls (defaults to none)
	PostRequestDelay time.Duration

	// MaxAttempts is the total number of attempts for transient failures (defaults to 1)
	MaxAttempts int

	// NotReadyWait is the extra wait before retrying a malformed JSON response (defaults to 30s)
	NotReadyWait time.Duration

	// RetryWaitTime is the exponential backoff base between retries (defaults to 500ms)
	RetryWaitTime time.Duration

	// MaxRetryWait caps the exponential backoff between retries (defaults to 60s)
	MaxRetryWait time.Duration

	// RateLimitPerMinute caps the request rate (defaults to unlimited)
	RateLimitPerMinute int

	// Headers are sent with every request; per-call headers take precedence
	Headers map[string]string

	// BaseURL overrides "https://" + Host (optional)
	BaseURL string

	// Transport is the base round tripper (optional, defaults to http.DefaultTransport)
	Transport http.RoundTripper

	// Logger for observability (optional, uses noop logger if nil)
	Logger observability.Logger

	// Metrics recorder for observability (optional, uses noop recorder if nil)
	Metrics observability.MetricsRecorder
}

// New creates a client for host with default settings: certificate
// verification on, 100s timeout, a single attempt per request.
//
// Example:
//
//	client, err := icontrol.New("10.0.0.245", "admin", "secret")
func New(host, username, password string) (*Client, error) {
	return NewWithConfig(&ClientConfig{
		Host:     host,
		Username: username,
		Password: password,
	})
}

// NewWithConfig creates a client with custom configuration. The config is
// copied; later changes to it do not affect the client.
//
// Example:
//
//	client, err := icontrol.NewWithConfig(&icontrol.ClientConfig{
//	    Host:               "10.0.0.245",
//	    Username:           "admin",
//	    Password:           password,
//	    InsecureSkipVerify: true,
//	    MaxAttempts:        5,
//	    PostRequestDelay:   2 * time.Second,
//	})
func NewWithConfig(config *ClientConfig) (*Client, error) {
	if config == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "config is required")
	}
	cfg := *config

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://" + cfg.Host
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.NotReadyWait == 0 {
		cfg.NotReadyWait = DefaultNotReadyWait
	}
	if cfg.RetryWaitTime == 0 {
		cfg.RetryWaitTime = DefaultRetryWaitTime
	}
	if cfg.MaxRetryWait == 0 {
		cfg.MaxRetryWait = DefaultMaxRetryWait
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NoopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetricsRecorder()
	}

	logger := cfg.Logger.With(observability.Field{Key: "host", Value: hostOf(cfg.BaseURL)})

	// Order from outside to inside: Observability -> RateLimit -> BasicAuth -> TLS
	httpClient := httpclient.New(
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithTransport(cfg.Transport),
		httpclient.WithMiddleware(
			middleware.Observability(logger, cfg.Metrics),
			middleware.RateLimit(middleware.RateLimitConfig{
				Limiter: ratelimit.NewRateLimiter(cfg.RateLimitPerMinute),
				Logger:  logger,
				Metrics: cfg.Metrics,
			}),
			middleware.BasicAuth(cfg.Username, cfg.Password),
			middleware.TLSConfig(middleware.VerifyCertificate(!cfg.InsecureSkipVerify)),
		),
	)

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")
	for key, value := range cfg.Headers {
		headers.Set(key, value)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		headers:    headers,
		policy: retry.Policy{
			MaxAttempts: cfg.MaxAttempts,
			InitialWait: cfg.RetryWaitTime,
			MaxWait:     cfg.MaxRetryWait,
			Rules: []retry.Rule{{
				Match:   codec.ErrMalformedJSON,
				Wait:    cfg.NotReadyWait,
				Message: "BIG-IP configuration utility not ready to proceed, waiting before next attempt",
			}},
			Logger:  logger,
			Metrics: cfg.Metrics,
		},
		postRequestDelay: cfg.PostRequestDelay,
		logger:           logger,
		metrics:          cfg.Metrics,
	}, nil
}

func validate(cfg *ClientConfig) error {
	switch {
	case cfg.Host == "" && cfg.BaseURL == "":
		return errors.Wrap(ErrInvalidConfig, "host is required")
	case cfg.Username == "":
		return errors.Wrap(ErrInvalidConfig, "username is required")
	case cfg.MaxAttempts < 0:
		return errors.Wrapf(ErrInvalidConfig, "max attempts must not be negative, got %d", cfg.MaxAttempts)
	case cfg.Timeout < 0, cfg.PostRequestDelay < 0, cfg.NotReadyWait < 0, cfg.RetryWaitTime < 0, cfg.MaxRetryWait < 0:
		return errors.Wrap(ErrInvalidConfig, "durations must not be negative")
	case cfg.RateLimitPerMinute < 0:
		return errors.Wrapf(ErrInvalidConfig, "rate limit must not be negative, got %d", cfg.RateLimitPerMinute)
	}

	if cfg.BaseURL != "" {
		if _, err := url.Parse(cfg.BaseURL); err != nil {
			return errors.Mark(errors.Wrap(err, "invalid base URL"), ErrInvalidConfig)
		}
	}

	return nil
}

func hostOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}
	return u.Host
}

// Response is a successful (status 200) iControl REST response.
type Response struct {
	// Header holds the response headers.
	Header http.Header
	// Body is the decoded JSON payload: map[string]any for objects, nil for an empty body.
	Body any

	status int
	raw    []byte
}

// StatusCode returns the HTTP status code.
func (r *Response) StatusCode() int {
	if r == nil {
		return 0
	}
	return r.status
}

// Decode unmarshals the raw JSON payload into v.
func (r *Response) Decode(v any) error {
	//nolint:wrapcheck // codec wraps decode errors
	return codec.DecodeInto(r.raw, v)
}

// Get performs GET on path and returns the decoded body.
//
// Example:
//
//	dns, err := client.Get(ctx, "/mgmt/tm/sys/dns")
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (any, error) {
	return bodyOf(c.execute(ctx, http.MethodGet, path, opts))
}

// Delete performs DELETE on path and returns the decoded body.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (any, error) {
	return bodyOf(c.execute(ctx, http.MethodDelete, path, opts))
}

// Post sends body as JSON with POST and returns the decoded response body.
func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (any, error) {
	return bodyOf(c.execute(ctx, http.MethodPost, path, withBody(opts, body)))
}

// Put sends body as JSON with PUT and returns the decoded response body.
func (c *Client) Put(ctx context.Context, path string, body any, opts ...RequestOption) (any, error) {
	return bodyOf(c.execute(ctx, http.MethodPut, path, withBody(opts, body)))
}

// Patch sends body as JSON with PATCH and returns the decoded response body.
func (c *Client) Patch(ctx context.Context, path string, body any, opts ...RequestOption) (any, error) {
	return bodyOf(c.execute(ctx, http.MethodPatch, path, withBody(opts, body)))
}

// Do performs one logical request with retries and returns the full response.
// A non-200 status yields an *APIError and is never retried.
func (c *Client) Do(ctx context.Context, method, path string, opts ...RequestOption) (*Response, error) {
	return c.execute(ctx, method, path, opts)
}

// Fetch performs GET on path and decodes the body into a new T.
//
// Example:
//
//	type DNS struct {
//	    NameServers []string `json:"nameServers"`
//	}
//	dns, err := icontrol.Fetch[DNS](ctx, client, icontrol.ResourcePath("sys", "dns"))
func Fetch[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) (*T, error) {
	resp, err := c.Do(ctx, http.MethodGet, path, opts...)

	var data *T
	if err == nil {
		data = new(T)
		err = resp.Decode(data)
	}

	//nolint:wrapcheck // response.Handle wraps errors internally
	return response.Handle(resp, data, err, "failed to get "+path)
}

func (c *Client) execute(ctx context.Context, method, path string, opts []RequestOption) (*Response, error) {
	req := buildRequest(opts)
	if method == http.MethodGet || method == http.MethodDelete {
		req.body = nil
	}

	var payload []byte
	if req.body != nil {
		var err error
		payload, err = codec.Encode(req.body)
		if err != nil {
			return nil, errors.Wrapf(err, "%s %s", method, path)
		}
	}

	target := c.endpoint(path, req.query)
	header := c.mergeHeaders(req.header)

	var result *Response
	err := c.policy.Do(ctx, middleware.NormalizePath(path), func(ctx context.Context, _ int) error {
		resp, err := c.attempt(ctx, method, target, header, payload)
		if err != nil {
			return err
		}
		result = resp
		return nil
	})
	if err != nil {
		c.metrics.RecordError("request", errorType(err))
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}

	return result, nil
}

// attempt performs a single HTTP exchange. Transport and decode failures are
// returned as is so the policy can retry them; everything else is permanent.
func (c *Client) attempt(ctx context.Context, method, target string, header http.Header, payload []byte) (*Response, error) {
	body := io.Reader(http.NoBody)
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, retry.Permanent(errors.Wrap(err, "failed to build request"))
	}
	req.Header = header.Clone()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, retry.Permanent(errors.Wrap(err, "request canceled"))
		}
		return nil, errors.Wrap(err, "request failed")
	}

	raw, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()

	if err := retry.Sleep(ctx, c.postRequestDelay); err != nil {
		return nil, retry.Permanent(errors.Wrap(err, "context canceled during post-request delay"))
	}

	if readErr != nil {
		return nil, errors.Wrap(readErr, "failed to read response body")
	}

	decoded, err := codec.Decode(raw)
	if err != nil {
		c.logger.Debug("undecodable response body",
			observability.Field{Key: "status", Value: resp.StatusCode},
			observability.Field{Key: "body", Value: observability.Lazy(func() any { return string(raw) })},
		)
		//nolint:wrapcheck // codec marks the error with ErrMalformedJSON
		return nil, err
	}

	if err := response.Classify(resp.StatusCode, decoded); err != nil {
		return nil, retry.Permanent(err)
	}

	return &Response{
		Header: resp.Header,
		Body:   decoded,
		status: resp.StatusCode,
		raw:    raw,
	}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

// mergeHeaders overlays per-call headers on the client defaults key by key.
func (c *Client) mergeHeaders(perCall http.Header) http.Header {
	merged := c.headers.Clone()
	for key, values := range perCall {
		merged[key] = values
	}
	return merged
}

func bodyOf(resp *Response, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func errorType(err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return "APIError"
	case errors.Is(err, ErrMalformedJSON):
		return "DecodeError"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Canceled"
	default:
		return "TransportError"
	}
}
