// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages: a typed
// retry policy with exponential backoff and a 429-aware request wrapper.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "paper_fetcher_retries_total",
	Help: "Retry attempts by operation",
}, []string{"operation"})

// RetryBaseDelay controls the base duration for exponential backoff on
// HTTP 429 responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 10 * time.Second

const defaultMaxRetries = 5

// ErrRetryExhausted is wrapped by Retry when every attempt failed.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// RetryPolicy describes a bounded exponential backoff schedule.
type RetryPolicy struct {
	// MaxAttempts includes the first attempt (default 3).
	MaxAttempts int

	// InitialBackoff is the wait after the first failure (default 1s).
	InitialBackoff time.Duration

	// MaxBackoff caps the wait (default 30s).
	MaxBackoff time.Duration

	// Multiplier grows the wait per attempt (default 2).
	Multiplier float64

	// Retryable decides whether an error is worth another attempt.
	// Nil means IsRetryable.
	Retryable func(error) bool
}

// DefaultRetryPolicy returns 3 attempts with 1s, 2s backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialBackoff < 0 {
		p.InitialBackoff = 0
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	if p.Retryable == nil {
		p.Retryable = IsRetryable
	}
	return p
}

// Backoff returns the wait before attempt n+1 after attempt n failed (n >= 1).
func (p RetryPolicy) Backoff(n int) time.Duration {
	p = p.withDefaults()
	d := float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(n-1))
	if d > float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	return time.Duration(d)
}

// IsRetryable is the default allow-list. Transport errors, request
// timeouts, 429 and 5xx are retried. Other HTTP statuses and context
// cancellation are not. An http.Client.Timeout expiry wraps
// context.DeadlineExceeded, so the net.Error check must come first.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return true
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// policy's attempts are used up. Only the caller's ctx ends the loop early;
// a per-request timeout inside fn is just another failed attempt. The
// operation name labels logs and metrics.
func Retry(ctx context.Context, log zerolog.Logger, operation string, policy RetryPolicy, fn func(ctx context.Context) error) error {
	policy = policy.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info().Str("operation", operation).Int("attempt", attempt).Msg("succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(err, ctxErr) {
				return err
			}
			return ctxErr
		}
		if !policy.Retryable(err) {
			return err
		}
		if attempt == policy.MaxAttempts {
			break
		}

		wait := policy.Backoff(attempt)
		retriesTotal.WithLabelValues(operation).Inc()
		log.Warn().Err(err).
			Str("operation", operation).
			Int("attempt", attempt).
			Int("max_attempts", policy.MaxAttempts).
			Dur("backoff", wait).
			Msg("attempt failed, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, policy.MaxAttempts, lastErr)
}

// DoWithRetry executes an HTTP request and retries on HTTP 429 (Too Many
// Requests) with exponential backoff. The delay starts at RetryBaseDelay
// (10 s) and doubles each attempt: 10 s, 20 s, 40 s, 80 s, 160 s.
//
// When maxRetries is 0 the default (5) is used. On each 429 the response
// body is drained and closed before sleeping. If the context is cancelled
// during a backoff wait the function returns ctx.Err(). After exhausting
// retries the last 429 response is returned so the caller can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		if attempt >= maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		retriesTotal.WithLabelValues("http_429").Inc()

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}
