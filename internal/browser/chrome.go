package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/pubhub-IN/pubhub-sub000/internal/resilience/retry"
)

// Chrome drives a headless Chrome through chromedp.
type Chrome struct {
	config        Config
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
}

// NewChrome launches the browser process. The caller must Close it.
func NewChrome(ctx context.Context, config Config) (*Chrome, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(config.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// An empty Run starts the browser so launch failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to launch chrome: %w", err)
	}

	slog.Debug("chrome started", "headless", config.Headless)

	return &Chrome{
		config:        config,
		browserCtx:    browserCtx,
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
	}, nil
}

// NewPage opens a new tab.
func (c *Chrome) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(c.browserCtx)
	// The first Run on a tab context allocates the target; it must not be
	// a derived context or the tab closes when that context ends.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	return &chromePage{tabCtx: tabCtx, cancel: cancel, navTimeout: c.config.Timeout}, nil
}

// Close shuts down the browser and all its tabs.
func (c *Chrome) Close() error {
	c.cancelBrowser()
	c.cancelAlloc()
	slog.Debug("chrome stopped")
	return nil
}

type chromePage struct {
	tabCtx     context.Context
	cancel     context.CancelFunc
	navTimeout time.Duration
	url        string
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tabCtx)
	defer cancel()
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, p.navTimeout, chromedp.Navigate(url)); err != nil {
		if ctx.Err() != nil {
			return err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return retry.Retryable(fmt.Errorf("%w: %s: %v", ErrNavigation, url, err))
		}
		return fmt.Errorf("%w: %s: %v", ErrNavigation, url, err)
	}
	p.url = url
	return nil
}

func (p *chromePage) Count(ctx context.Context, selector string) (int, error) {
	if p.url == "" {
		return 0, ErrNotLoaded
	}
	quoted, err := json.Marshal(selector)
	if err != nil {
		return 0, err
	}
	var n int
	expr := fmt.Sprintf("document.querySelectorAll(%s).length", quoted)
	if err := p.run(ctx, 0, chromedp.Evaluate(expr, &n)); err != nil {
		return 0, fmt.Errorf("failed to count %q: %w", selector, err)
	}
	return n, nil
}

func (p *chromePage) ScrollToBottom(ctx context.Context) error {
	if p.url == "" {
		return ErrNotLoaded
	}
	return p.run(ctx, 0, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight);`, nil))
}

func (p *chromePage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if p.url == "" {
		return ErrNotLoaded
	}
	err := p.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return retry.Retryable(fmt.Errorf("%w: %s after %v", ErrWaitTimeout, selector, timeout))
	}
	return err
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	if p.url == "" {
		return "", ErrNotLoaded
	}
	var html string
	if err := p.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to snapshot page: %w", err)
	}
	return html, nil
}

func (p *chromePage) URL() string {
	return p.url
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}
