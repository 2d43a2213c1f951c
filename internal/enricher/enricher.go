// Package enricher revisits each listing link and extracts the richer field
// set found on its detail page.
package enricher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pubhub-IN/pubhub-sub000/internal/browser"
	"github.com/pubhub-IN/pubhub-sub000/internal/processor"
	"github.com/pubhub-IN/pubhub-sub000/internal/resilience/circuitbreaker"
	"github.com/pubhub-IN/pubhub-sub000/internal/resilience/retry"
	"github.com/pubhub-IN/pubhub-sub000/pkg/models"
)

// Fields lists, per extracted field, the selectors tried in order.
type Fields struct {
	Title        []string
	Subtitle     []string
	Date         []string
	Prize        []string
	StatsValue   []string
	Participants []string
	Image        []string
	Tags         []string
}

// Config holds enricher configuration.
type Config struct {
	HeadingSelector string
	WaitTimeout     time.Duration
	Delay           time.Duration // minimum gap between two requests of one worker
	Concurrency     int
	MaxRetries      int
	Fields          Fields

	// Retry overrides retry.DetailPageConfig(MaxRetries) when MaxAttempts is set.
	Retry retry.Config
}

// ItemError is a link that could not be enriched.
type ItemError struct {
	Link string
	Err  error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Link, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }

// Result holds the enriched records in input order and the links that failed.
type Result struct {
	Records  []models.SourceRecord
	Failures []ItemError
}

// Enricher fetches detail pages through a bounded pool of browser pages.
type Enricher struct {
	config    Config
	browser   browser.Browser
	breaker   *circuitbreaker.CircuitBreaker
	retry     retry.Config
	processor *processor.Processor
}

// New creates a new Enricher.
func New(b browser.Browser, config Config) *Enricher {
	if config.HeadingSelector == "" {
		config.HeadingSelector = "h1"
	}
	if config.WaitTimeout == 0 {
		config.WaitTimeout = 15 * time.Second
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	rc := config.Retry
	if rc.MaxAttempts == 0 {
		rc = retry.DetailPageConfig(config.MaxRetries)
	}
	bc := circuitbreaker.DetailPagesConfig()
	bc.IsSuccessful = pageLocal
	return &Enricher{
		config:    config,
		browser:   b,
		breaker:   circuitbreaker.New(bc),
		retry:     rc,
		processor: processor.New(),
	}
}

type outcome struct {
	record models.SourceRecord
	err    error
}

// Enrich visits every link and returns one record per link that succeeded.
// Failed links are reported in Result.Failures and never stop the others.
// The only error is failing to open any page, or ctx ending mid-run (in
// which case the partial Result is returned alongside).
func (e *Enricher) Enrich(ctx context.Context, links []string) (*Result, error) {
	res := &Result{}
	if len(links) == 0 {
		return res, nil
	}

	pages, err := e.openPages(ctx, min(e.config.Concurrency, len(links)))
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, p := range pages {
			_ = p.Close()
		}
	}()

	slog.Info("enriching detail pages", "links", len(links), "workers", len(pages))

	outcomes := make([]outcome, len(links))
	jobs := make(chan int)
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		defer close(jobs)
		for i := range links {
			select {
			case jobs <- i:
			case <-egCtx.Done():
				return egCtx.Err()
			}
		}
		return nil
	})

	for _, page := range pages {
		eg.Go(func() error {
			limiter := rate.NewLimiter(rate.Inf, 1)
			if e.config.Delay > 0 {
				limiter = rate.NewLimiter(rate.Every(e.config.Delay), 1)
			}
			for i := range jobs {
				if err := limiter.Wait(egCtx); err != nil {
					outcomes[i].err = err
					return err
				}
				rec, err := e.enrichOne(egCtx, page, links[i])
				outcomes[i] = outcome{record: rec, err: err}
				if err != nil && egCtx.Err() != nil {
					return egCtx.Err()
				}
			}
			return nil
		})
	}

	runErr := eg.Wait()

	for i, o := range outcomes {
		switch {
		case o.err != nil:
			slog.Warn("detail page failed", "link", links[i], "error", o.err)
			res.Failures = append(res.Failures, ItemError{Link: links[i], Err: o.err})
		case o.record.Link != "":
			res.Records = append(res.Records, o.record)
		}
	}

	if runErr != nil {
		return res, fmt.Errorf("enrichment interrupted: %w", runErr)
	}

	slog.Info("enrichment complete", "records", len(res.Records), "failures", len(res.Failures))
	return res, nil
}

func (e *Enricher) openPages(ctx context.Context, n int) ([]browser.Page, error) {
	var pages []browser.Page
	var errs []error
	for range n {
		p, err := e.browser.NewPage(ctx)
		if err != nil {
			slog.Warn("failed to open worker page", "error", err)
			errs = append(errs, err)
			continue
		}
		pages = append(pages, p)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("failed to open any page: %w", errors.Join(errs...))
	}
	return pages, nil
}

// enrichOne fetches a single link with bounded retry. The breaker sees one
// outcome per link, after retries are spent.
func (e *Enricher) enrichOne(ctx context.Context, page browser.Page, link string) (models.SourceRecord, error) {
	var rec models.SourceRecord
	err := e.breaker.Do(func() error {
		return retry.WithBackoff(ctx, e.retry, func() error {
			r, err := e.fetch(ctx, page, link)
			if err != nil {
				return err
			}
			rec = r
			return nil
		})
	})
	return rec, err
}

// pageLocal reports errors that say nothing about the site as a whole: a
// missing heading, a 4xx on one link, a cancelled run. Only navigation
// failures, 5xx and 429 count toward opening the breaker.
func pageLocal(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var httpErr *retry.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode < 500 && httpErr.StatusCode != http.StatusTooManyRequests
	}
	return !errors.Is(err, browser.ErrNavigation)
}

func (e *Enricher) fetch(ctx context.Context, page browser.Page, link string) (models.SourceRecord, error) {
	if err := page.Navigate(ctx, link); err != nil {
		return models.SourceRecord{}, err
	}
	if err := page.WaitFor(ctx, e.config.HeadingSelector, e.config.WaitTimeout); err != nil {
		return models.SourceRecord{}, err
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return models.SourceRecord{}, err
	}
	doc, err := browser.Parse(html)
	if err != nil {
		return models.SourceRecord{}, fmt.Errorf("failed to parse detail page: %w", err)
	}

	base := page.URL()
	if base == "" {
		base = link
	}
	return e.extract(doc.Selection, link, base), nil
}
