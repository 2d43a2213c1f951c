package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pubhub-IN/pubhub-sub000/internal/browser"
	"github.com/pubhub-IN/pubhub-sub000/internal/config"
	"github.com/pubhub-IN/pubhub-sub000/internal/enricher"
	"github.com/pubhub-IN/pubhub-sub000/internal/events"
	"github.com/pubhub-IN/pubhub-sub000/internal/scraper"
	"github.com/pubhub-IN/pubhub-sub000/internal/searchapi"
	"github.com/pubhub-IN/pubhub-sub000/internal/storage"
	"github.com/pubhub-IN/pubhub-sub000/pkg/models"
)

// BrowserConfig maps application config to the page automation config.
func BrowserConfig(cfg config.Config) browser.Config {
	return browser.Config{
		Driver:    cfg.Browser.Driver,
		Headless:  cfg.Browser.Headless,
		UserAgent: cfg.Browser.UserAgent,
		Timeout:   cfg.Browser.Timeout,
	}
}

// ScraperConfig maps application config to the listing scraper config.
func ScraperConfig(cfg config.Config) scraper.Config {
	f := cfg.Listing.Fields
	return scraper.Config{
		TileSelector:   cfg.Listing.TileSelector,
		SettleInterval: cfg.Listing.SettleInterval,
		Fields: scraper.Fields{
			Title:        f.Title,
			Link:         f.Link,
			Image:        f.Image,
			Date:         f.Date,
			Prize:        f.Prize,
			Participants: f.Participants,
			Tags:         f.Tags,
		},
	}
}

// EnricherConfig maps application config to the detail enricher config.
func EnricherConfig(cfg config.Config) enricher.Config {
	f := cfg.Detail.Fields
	return enricher.Config{
		HeadingSelector: cfg.Detail.HeadingSelector,
		WaitTimeout:     cfg.Detail.WaitTimeout,
		Delay:           cfg.Detail.Delay,
		Concurrency:     cfg.Detail.Concurrency,
		MaxRetries:      cfg.Detail.MaxRetries,
		Fields: enricher.Fields{
			Title:        f.Title,
			Subtitle:     f.Subtitle,
			Date:         f.Date,
			Prize:        f.Prize,
			StatsValue:   f.StatsValue,
			Participants: f.Participants,
			Image:        f.Image,
			Tags:         f.Tags,
		},
	}
}

// SearchAPIConfig maps application config to the API connector config.
func SearchAPIConfig(cfg config.Config) searchapi.Config {
	return searchapi.Config{
		Endpoint:  cfg.API.Endpoint,
		Method:    cfg.API.Method,
		PageSize:  cfg.API.PageSize,
		Headers:   cfg.API.Headers,
		UserAgent: cfg.Browser.UserAgent,
		Timeout:   cfg.API.Timeout,
		PageDelay: cfg.API.PageDelay,
	}
}

// collectTiles scrapes the listing page and persists the tiles artifact
// locally and, when enabled, to object storage.
func collectTiles(ctx context.Context, s *session) ([]models.RawTile, error) {
	sc := scraper.New(s.browser, ScraperConfig(s.cfg))
	tiles, err := sc.FetchListings(ctx, s.cfg.Listing.URL, s.cfg.Listing.MaxScrollAttempts)
	if stats := sc.LastStats(); stats.Measurements > 0 {
		s.metrics.ScrollMeasurements.Observe(float64(stats.Measurements))
	}
	if err != nil {
		return nil, err
	}
	s.run.Tiles = len(tiles)

	if path := s.cfg.Listing.TilesFile; path != "" {
		if err := scraper.SaveTiles(path, tiles); err != nil {
			slog.Warn("failed to save tiles", "path", path, "error", err)
			s.warn(err)
		} else {
			slog.Info("tiles saved", "path", path, "count", len(tiles))
		}
	}
	if s.storage != nil {
		if err := s.storage.PutJSON(ctx, s.run.Prefix, storage.TilesObject, tiles); err != nil {
			slog.Warn("failed to upload tiles", "prefix", s.run.Prefix, "error", err)
			s.warn(err)
		}
	}
	return tiles, nil
}

// browserChain obtains tiles, then enriches every tile link. Detail records
// come first, followed by the tiles themselves as fallback for links whose
// detail page failed. The chain fails only when no tiles were obtained.
func browserChain(ctx context.Context, s *session, tiles tileSource) events.ConnectorCompleteEvent {
	start := time.Now()
	ev := events.ConnectorCompleteEvent{Connector: events.ConnectorBrowser}
	finish := func() events.ConnectorCompleteEvent {
		ev.Duration = time.Since(start)
		ev.Timestamp = time.Now()
		return ev
	}

	if s.browser == nil {
		ev.Err = s.browserErr
		return finish()
	}

	got, err := tiles(ctx, s)
	if err != nil {
		ev.Err = err
		return finish()
	}

	res, err := enricher.New(s.browser, EnricherConfig(s.cfg)).Enrich(ctx, scraper.Links(got))
	if err != nil {
		slog.Warn("detail enrichment incomplete", "error", err)
		ev.Failures = append(ev.Failures, fmt.Sprintf("enrichment: %v", err))
	}
	if res != nil {
		ev.Records = append(ev.Records, res.Records...)
		for _, f := range res.Failures {
			ev.Failures = append(ev.Failures, f.Error())
		}
		s.metrics.ItemFailures.WithLabelValues("detail").Add(float64(len(res.Failures)))
		s.metrics.ConnectorRecords.WithLabelValues(string(models.SourceBrowserDetail)).Add(float64(len(res.Records)))
	}

	for _, t := range got {
		ev.Records = append(ev.Records, t.Record())
	}
	s.metrics.ConnectorRecords.WithLabelValues(string(models.SourceBrowserTile)).Add(float64(len(got)))
	return finish()
}

// apiConnector walks the search API. A failure after the first page keeps
// the records gathered so far and is reported as an item failure.
func apiConnector(ctx context.Context, s *session) events.ConnectorCompleteEvent {
	start := time.Now()
	ev := events.ConnectorCompleteEvent{Connector: events.ConnectorAPI}

	client := searchapi.New(SearchAPIConfig(s.cfg))
	res, err := client.Fetch(ctx, s.cfg.API.Query)
	s.metrics.APIRequests.Add(float64(client.Requests()))
	ev.Err = err
	if res != nil {
		ev.Records = res.Records
		if res.Failure != nil {
			s.metrics.ItemFailures.WithLabelValues("api_page").Inc()
			ev.Failures = append(ev.Failures, res.Failure.Error())
		}
		s.metrics.ConnectorRecords.WithLabelValues(string(models.SourceAPI)).Add(float64(len(res.Records)))
	}

	ev.Duration = time.Since(start)
	ev.Timestamp = time.Now()
	return ev
}
