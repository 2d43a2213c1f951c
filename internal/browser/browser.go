// Package browser abstracts page automation (load, scroll, wait, snapshot)
// behind Browser and Page so connectors can run against a real headless
// Chrome or a static HTML fetcher.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNavigation is returned when a page cannot be loaded.
	ErrNavigation = errors.New("navigation failed")
	// ErrWaitTimeout is returned when an awaited element never appears.
	ErrWaitTimeout = errors.New("timed out waiting for element")
	// ErrNotLoaded is returned by page operations called before Navigate.
	ErrNotLoaded = errors.New("no page loaded")
)

// Driver names accepted by New.
const (
	DriverChrome = "chrome"
	DriverStatic = "static"
)

// Config holds page automation configuration.
type Config struct {
	Driver    string
	Headless  bool
	UserAgent string
	Timeout   time.Duration // per navigation
}

// Browser is a session that hands out pages. Close releases the session
// and every page still open on it.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single tab. A Page is not safe for concurrent use.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Count(ctx context.Context, selector string) (int, error)
	ScrollToBottom(ctx context.Context) error
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	HTML(ctx context.Context) (string, error)
	URL() string
	Close() error
}

// New starts a browser session for the configured driver.
func New(ctx context.Context, config Config) (Browser, error) {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	switch config.Driver {
	case DriverChrome, "":
		return NewChrome(ctx, config)
	case DriverStatic:
		return NewStatic(config), nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", config.Driver)
	}
}
