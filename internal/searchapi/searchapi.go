// Package searchapi walks a paginated hackathon search API and maps each hit
// into a SourceRecord.
package searchapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/pubhub-IN/pubhub-sub000/internal/resilience/circuitbreaker"
	"github.com/pubhub-IN/pubhub-sub000/internal/resilience/retry"
	"github.com/pubhub-IN/pubhub-sub000/pkg/models"
)

// DefaultPageSize is the number of hits requested per page.
const DefaultPageSize = 50

const maxBodySize = 10 << 20

// Config holds search API configuration.
type Config struct {
	Endpoint  string
	Method    string // POST sends a JSON body; GET sends from/size as query params
	PageSize  int
	Headers   map[string]string
	UserAgent string
	Timeout   time.Duration
	PageDelay time.Duration

	// Retry overrides retry.SearchAPIConfig when MaxAttempts is set.
	Retry retry.Config
}

// Result is the outcome of one pagination walk.
type Result struct {
	Records  []models.SourceRecord
	Requests int
	Pages    int

	// Failure is the request error that stopped pagination early, if any.
	Failure *PageError
}

// PageError records a failed page request.
type PageError struct {
	Offset int
	Err    error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page at offset %d: %v", e.Offset, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// Client is the API connector.
type Client struct {
	config     Config
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	retry      retry.Config
	requests   atomic.Int64
}

// New creates a new search API client.
func New(config Config) *Client {
	if config.Method == "" {
		config.Method = http.MethodPost
	}
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	rc := config.Retry
	if rc.MaxAttempts == 0 {
		rc = retry.SearchAPIConfig()
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		breaker:    circuitbreaker.New(circuitbreaker.SearchAPIConfig()),
		retry:      rc,
	}
}

// Requests returns the number of HTTP requests issued so far.
func (c *Client) Requests() int {
	return int(c.requests.Load())
}

// FetchAll walks every page of baseQuery and returns the mapped records.
// A failure on the first page is returned as an error; a later failure
// stops pagination and the records gathered so far are returned.
func (c *Client) FetchAll(ctx context.Context, baseQuery map[string]any) ([]models.SourceRecord, error) {
	res, err := c.Fetch(ctx, baseQuery)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// Fetch is FetchAll with request accounting and the early-stop cause.
func (c *Client) Fetch(ctx context.Context, baseQuery map[string]any) (*Result, error) {
	res := &Result{}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if c.config.PageDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(c.config.PageDelay), 1)
	}

	for offset := 0; ; offset += c.config.PageSize {
		if err := limiter.Wait(ctx); err != nil {
			return res, fmt.Errorf("search api cancelled at offset %d: %w", offset, err)
		}

		hits, requests, err := c.fetchPage(ctx, baseQuery, offset)
		res.Requests += requests
		if err != nil {
			if offset == 0 {
				slog.Error("search api unreachable", "endpoint", c.config.Endpoint, "error", err)
				return nil, fmt.Errorf("failed to fetch first page: %w", err)
			}
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			slog.Warn("search api page failed, stopping pagination",
				"offset", offset,
				"records", len(res.Records),
				"error", err)
			res.Failure = &PageError{Offset: offset, Err: err}
			return res, nil
		}

		if len(hits) == 0 {
			slog.Debug("search api exhausted", "offset", offset, "records", len(res.Records))
			return res, nil
		}

		res.Pages++
		for _, h := range hits {
			res.Records = append(res.Records, h.record())
		}
		slog.Debug("search api page", "offset", offset, "hits", len(hits))
	}
}

func (c *Client) fetchPage(ctx context.Context, baseQuery map[string]any, offset int) ([]hit, int, error) {
	var hits []hit
	requests := 0

	err := retry.WithBackoff(ctx, c.retry, func() error {
		return c.breaker.Do(func() error {
			requests++
			c.requests.Add(1)
			h, err := c.doRequest(ctx, baseQuery, offset)
			if err != nil {
				return err
			}
			hits = h
			return nil
		})
	})
	if errors.Is(err, circuitbreaker.ErrOpenState) {
		slog.Warn("search api circuit open, request rejected",
			"circuit", c.breaker.Name(),
			"offset", offset)
	}
	return hits, requests, err
}

func (c *Client) doRequest(ctx context.Context, baseQuery map[string]any, offset int) ([]hit, error) {
	req, err := c.newRequest(ctx, baseQuery, offset)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status: %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	hits := make([]hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, h.Source)
	}
	return hits, nil
}

func (c *Client) newRequest(ctx context.Context, baseQuery map[string]any, offset int) (*http.Request, error) {
	var req *http.Request
	var err error

	switch strings.ToUpper(c.config.Method) {
	case http.MethodGet:
		u, perr := url.Parse(c.config.Endpoint)
		if perr != nil {
			return nil, fmt.Errorf("parse endpoint: %w", perr)
		}
		q := u.Query()
		for k, v := range baseQuery {
			q.Set(k, fmt.Sprint(v))
		}
		q.Set("from", strconv.Itoa(offset))
		q.Set("size", strconv.Itoa(c.config.PageSize))
		u.RawQuery = q.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	default:
		body := make(map[string]any, len(baseQuery)+2)
		maps.Copy(body, baseQuery)
		body["from"] = offset
		body["size"] = c.config.PageSize
		data, merr := json.Marshal(body)
		if merr != nil {
			return nil, fmt.Errorf("encode query: %w", merr)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(data))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}
