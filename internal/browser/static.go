package browser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/pubhub-IN/pubhub-sub000/internal/resilience/retry"
)

// Static loads pages with a plain HTTP fetch (colly) and queries them with
// goquery. It runs no JavaScript: scrolling is a no-op and waits only check
// that the element is already present.
type Static struct {
	config Config
}

// NewStatic creates a static page loader.
func NewStatic(config Config) *Static {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &Static{config: config}
}

// NewPage returns an empty page.
func (s *Static) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &staticPage{config: s.config}, nil
}

// Close is a no-op; static pages hold no process.
func (s *Static) Close() error {
	return nil
}

type staticPage struct {
	config Config
	doc    *goquery.Document
	url    string
}

func (p *staticPage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c := colly.NewCollector()
	if p.config.UserAgent != "" {
		c.UserAgent = p.config.UserAgent
	}
	c.SetRequestTimeout(p.config.Timeout)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			slog.Debug("navigation cancelled", "url", r.URL.String())
			r.Abort()
		}
	})

	var body []byte
	var finalURL string
	status := 0
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		finalURL = r.Request.URL.String()
		status = r.StatusCode
	})
	c.OnError(func(r *colly.Response, err error) {
		status = r.StatusCode
	})

	if err := c.Visit(url); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if status >= 500 || status == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %s: %w", ErrNavigation, url, &retry.HTTPError{StatusCode: status, Message: err.Error()})
		}
		return fmt.Errorf("%w: %s: %v", ErrNavigation, url, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if body == nil {
		return fmt.Errorf("%w: %s: empty response", ErrNavigation, url)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %s: parse HTML: %v", ErrNavigation, url, err)
	}

	p.doc = doc
	p.url = finalURL
	if p.url == "" {
		p.url = url
	}
	return nil
}

func (p *staticPage) Count(ctx context.Context, selector string) (int, error) {
	if p.doc == nil {
		return 0, ErrNotLoaded
	}
	return p.doc.Find(selector).Length(), nil
}

func (p *staticPage) ScrollToBottom(ctx context.Context) error {
	if p.doc == nil {
		return ErrNotLoaded
	}
	return nil
}

func (p *staticPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if p.doc == nil {
		return ErrNotLoaded
	}
	if p.doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s", ErrWaitTimeout, selector)
	}
	return nil
}

func (p *staticPage) HTML(ctx context.Context) (string, error) {
	if p.doc == nil {
		return "", ErrNotLoaded
	}
	return p.doc.Html()
}

func (p *staticPage) URL() string {
	return p.url
}

func (p *staticPage) Close() error {
	p.doc = nil
	return nil
}
