// Package circuitbreaker stops hammering a source that keeps failing.
// It wraps github.com/sony/gobreaker.
package circuitbreaker

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpenState is returned while the circuit is open.
var ErrOpenState = gobreaker.ErrOpenState

// Config holds the configuration for a circuit breaker.
type Config struct {
	Name string

	// MaxRequests is the number of requests allowed in half-open state.
	MaxRequests uint32

	// Interval clears counts in closed state; zero never clears.
	Interval time.Duration

	// Timeout is how long the circuit stays open before half-open.
	Timeout time.Duration

	// FailureThreshold is the failure ratio that trips the circuit.
	FailureThreshold float64

	// MinRequests is the sample size needed before the ratio is evaluated.
	MinRequests uint32

	// IsSuccessful decides which errors leave the counts untouched as
	// successes. Nil counts every error as a failure.
	IsSuccessful func(err error) bool
}

// DetailPagesConfig is tuned for third-party detail pages. Callers sample
// once per link and should pass IsSuccessful so that only site-wide
// failures count.
func DetailPagesConfig() Config {
	return Config{
		Name:             "detail-pages",
		MaxRequests:      2,
		Interval:         0,
		Timeout:          2 * time.Minute,
		FailureThreshold: 0.8,
		MinRequests:      20,
	}
}

// SearchAPIConfig is tuned for the paginated search API.
func SearchAPIConfig() Config {
	return Config{
		Name:             "search-api",
		MaxRequests:      1,
		Interval:         0,
		Timeout:          time.Minute,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// CircuitBreaker wraps gobreaker.CircuitBreaker.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New creates a circuit breaker with the given configuration.
func New(cfg Config) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		IsSuccessful: cfg.IsSuccessful,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    cfg.Name,
	}
}

// Do runs fn through the breaker. While open it returns ErrOpenState without calling fn.
func (cb *CircuitBreaker) Do(fn func() error) error {
	_, err := cb.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// State returns the current state name.
func (cb *CircuitBreaker) State() string {
	return cb.breaker.State().String()
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}
