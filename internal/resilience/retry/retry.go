// Package retry wraps item-level network calls in bounded exponential backoff with jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Config holds the configuration for retry logic.
type Config struct {
	MaxAttempts    int // includes the first call
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64 // 0.0 to 1.0
}

// DetailPageConfig returns the policy for a single detail page fetch.
func DetailPageConfig(maxRetries int) Config {
	return Config{
		MaxAttempts:    max(maxRetries, 0) + 1,
		InitialDelay:   1 * time.Second,
		MaxDelay:       8 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}
}

// SearchAPIConfig returns the policy for one search API page request.
func SearchAPIConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// WithBackoff calls fn until it succeeds or fails with an error that is not
// retryable, at most cfg.MaxAttempts times. A non-retryable error is
// returned as is.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	attempts := max(cfg.MaxAttempts, 1)
	b := backoff{cfg: cfg, next: cfg.InitialDelay}

	for attempt := 1; ; attempt++ {
		err := fn()
		switch {
		case err == nil:
			if attempt > 1 {
				slog.Debug("succeeded after retry", "attempt", attempt)
			}
			return nil
		case !IsRetryable(err):
			return err
		case attempt == attempts:
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", attempts, err)
		}

		wait := b.step()
		slog.Debug("retrying", "attempt", attempt, "of", attempts, "wait", wait, "error", err)
		if err := sleep(ctx, wait); err != nil {
			return fmt.Errorf("retry aborted: %w", err)
		}
	}
}

type backoff struct {
	cfg  Config
	next time.Duration
}

// step returns the current delay with jitter and grows the next one.
func (b *backoff) step() time.Duration {
	d := b.next
	grown := time.Duration(float64(b.next) * b.cfg.Multiplier)
	if b.cfg.MaxDelay > 0 {
		grown = min(grown, b.cfg.MaxDelay)
	}
	b.next = grown

	if f := min(b.cfg.JitterFraction, 1.0); f > 0 {
		// #nosec G404 -- jitter does not need cryptographic randomness.
		d += time.Duration(rand.Float64() * float64(d) * f)
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable marks err as transient. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports marked errors, network timeouts, refused or reset
// connections, and 5xx/408/429 responses. Cancellation is never retried
// unless marked.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if marked := (*retryableError)(nil); errors.As(err, &marked) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	for _, errno := range []syscall.Errno{syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT, syscall.ENETUNREACH} {
		if errors.Is(err, errno) {
			return true
		}
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		code := httpErr.StatusCode
		return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
	}
	return false
}

// HTTPError is a non-200 response.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}
