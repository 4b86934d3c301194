// Package retry implements the attempt loop used by the iControl client.
//
// Only transient failures are retried: transport errors and payloads that
// fail to decode. Errors wrapped with Permanent, such as non-200 API
// responses, abort the loop immediately.
package retry

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/lexfrei/go-icontrol/observability"
)

// DefaultMaxWait caps the exponential backoff between attempts.
const DefaultMaxWait = 60 * time.Second

// Rule adds an extra wait before the next attempt when a failure matches.
type Rule struct {
	// Match is compared against the failure with errors.Is.
	Match error
	// Wait is how long to pause before the next attempt.
	Wait time.Duration
	// Message is logged at info level on every matching failure, including
	// the last one. Wait only applies when another attempt follows.
	Message string
}

// Policy configures the attempt loop.
type Policy struct {
	// MaxAttempts is the total number of attempts. Values below 1 mean 1.
	MaxAttempts int
	// InitialWait is the backoff base between attempts: InitialWait * 2^(attempt-1).
	InitialWait time.Duration
	// MaxWait caps the backoff. Zero means DefaultMaxWait.
	MaxWait time.Duration
	// Rules are evaluated in order; the first match wins.
	Rules   []Rule
	Logger  observability.Logger
	Metrics observability.MetricsRecorder
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var perm *permanentError
	return errors.As(err, &perm)
}

// Do calls op until it succeeds, returns a permanent error, or the attempts
// run out. The attempt number passed to op starts at 1. When attempts are
// exhausted the last error is returned as is.
func (p Policy) Do(ctx context.Context, endpoint string, op func(ctx context.Context, attempt int) error) error {
	logger := p.Logger
	if logger == nil {
		logger = observability.NoopLogger()
	}
	metrics := p.Metrics
	if metrics == nil {
		metrics = observability.NoopMetricsRecorder()
	}

	maxAttempts := max(p.MaxAttempts, 1)

	for attempt := 1; ; attempt++ {
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		logger.Error("request attempt failed",
			observability.Field{Key: "endpoint", Value: endpoint},
			observability.Field{Key: "attempt", Value: attempt},
			observability.Field{Key: "max_attempts", Value: maxAttempts},
			observability.Field{Key: "error", Value: err.Error()},
		)

		rule, matched := p.match(err)
		if matched {
			logger.Info(rule.Message,
				observability.Field{Key: "endpoint", Value: endpoint},
				observability.Field{Key: "attempt", Value: attempt},
			)
		}

		if attempt >= maxAttempts {
			return err
		}

		wait := Backoff(p.InitialWait, p.maxWait(), attempt)
		if matched {
			wait += rule.Wait
		}

		metrics.RecordRetry(attempt, endpoint)

		if err := Sleep(ctx, wait); err != nil {
			return errors.Wrap(err, "context canceled during retry wait")
		}
	}
}

func (p Policy) match(err error) (Rule, bool) {
	for _, rule := range p.Rules {
		if rule.Match != nil && errors.Is(err, rule.Match) {
			return rule, true
		}
	}
	return Rule{}, false
}

func (p Policy) maxWait() time.Duration {
	if p.MaxWait <= 0 {
		return DefaultMaxWait
	}
	return p.MaxWait
}

// Backoff returns initialWait * 2^(attempt-1) for attempt >= 1, capped at
// maxWait. A non-positive maxWait means DefaultMaxWait.
func Backoff(initialWait, maxWait time.Duration, attempt int) time.Duration {
	if initialWait <= 0 || attempt < 1 {
		return 0
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	wait := initialWait
	for range attempt - 1 {
		if wait >= maxWait/2 {
			return maxWait
		}
		wait *= 2
	}

	return min(wait, maxWait)
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
