package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pubhub-IN/pubhub-sub000/internal/browser"
	"github.com/pubhub-IN/pubhub-sub000/pkg/models"
)

// ErrNoTiles is returned when the listing page loaded but held no tiles.
var ErrNoTiles = errors.New("no tiles found on listing page")

// DefaultMaxScrollAttempts bounds the scroll loop when the caller passes zero.
const DefaultMaxScrollAttempts = 12

// Fields are the per-field selectors inside a tile. "css@attr" reads an
// attribute; an empty css part targets the tile itself.
type Fields struct {
	Title        string
	Link         string
	Image        string
	Date         string
	Prize        string
	Participants string
	Tags         string
}

// Config holds scraper configuration.
type Config struct {
	TileSelector   string
	SettleInterval time.Duration
	Fields         Fields
}

// ScrollStats describes how the last scroll loop ended.
type ScrollStats struct {
	Measurements int
	Scrolls      int
	FinalCount   int
	Stabilized   bool
}

// Scraper loads a listing page, scrolls it until the tile count settles
// and extracts one RawTile per tile.
type Scraper struct {
	config  Config
	browser browser.Browser

	mu    sync.Mutex
	stats ScrollStats
}

// New creates a new Scraper that opens pages on b.
func New(b browser.Browser, config Config) *Scraper {
	if config.SettleInterval == 0 {
		config.SettleInterval = 2500 * time.Millisecond
	}
	return &Scraper{config: config, browser: b}
}

// LastStats returns the scroll statistics of the most recent FetchListings call.
func (s *Scraper) LastStats() ScrollStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// FetchListings loads targetURL, scrolls until two consecutive tile counts
// match or maxScrollAttempts measurements were taken, then extracts tiles.
// A page that fails to load yields an error and no tiles.
func (s *Scraper) FetchListings(ctx context.Context, targetURL string, maxScrollAttempts int) ([]models.RawTile, error) {
	if maxScrollAttempts <= 0 {
		maxScrollAttempts = DefaultMaxScrollAttempts
	}

	page, err := s.browser.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	slog.Debug("loading listing page", "url", targetURL)
	if err := page.Navigate(ctx, targetURL); err != nil {
		slog.Error("listing page failed to load", "url", targetURL, "error", err)
		return nil, fmt.Errorf("failed to load listing page: %w", err)
	}

	stats, err := s.scroll(ctx, page, maxScrollAttempts)
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	slog.Info("scroll finished",
		"url", targetURL,
		"measurements", stats.Measurements,
		"tiles", stats.FinalCount,
		"stabilized", stats.Stabilized)

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot listing page: %w", err)
	}
	doc, err := browser.Parse(html)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	base := page.URL()
	if base == "" {
		base = targetURL
	}
	tiles := s.extract(doc, base)
	if len(tiles) == 0 {
		return nil, ErrNoTiles
	}

	slog.Debug("tiles extracted", "url", targetURL, "count", len(tiles))
	return tiles, nil
}

// scroll runs the bounded polling loop. Each attempt measures the tile
// count; an unchanged count ends the loop, otherwise the page is scrolled
// and given the settle interval to render.
func (s *Scraper) scroll(ctx context.Context, page browser.Page, maxAttempts int) (ScrollStats, error) {
	var stats ScrollStats
	prev := -1

	for stats.Measurements < maxAttempts {
		count, err := page.Count(ctx, s.config.TileSelector)
		if err != nil {
			return stats, fmt.Errorf("failed to count tiles: %w", err)
		}
		stats.Measurements++
		stats.FinalCount = count

		if count == prev {
			stats.Stabilized = true
			return stats, nil
		}
		prev = count

		if stats.Measurements == maxAttempts {
			break
		}

		if err := page.ScrollToBottom(ctx); err != nil {
			return stats, fmt.Errorf("failed to scroll: %w", err)
		}
		stats.Scrolls++
		slog.Debug("scrolled", "attempt", stats.Measurements, "tiles", count)

		if err := sleep(ctx, s.config.SettleInterval); err != nil {
			return stats, err
		}
	}

	slog.Debug("scroll budget exhausted", "attempts", maxAttempts, "tiles", stats.FinalCount)
	return stats, nil
}

func (s *Scraper) extract(doc *goquery.Document, base string) []models.RawTile {
	f := s.config.Fields
	seen := make(map[string]bool)
	var tiles []models.RawTile

	doc.Find(s.config.TileSelector).Each(func(i int, tile *goquery.Selection) {
		href := browser.FirstText(tile, []string{f.Link, "@href"})
		if href == nil {
			slog.Debug("skipping tile without link", "index", i)
			return
		}
		link := browser.Resolve(base, *href)
		if link == "" {
			slog.Debug("skipping tile with unusable link", "index", i, "href", *href)
			return
		}
		if seen[link] {
			return
		}
		seen[link] = true

		var image *string
		if src := browser.Text(tile, f.Image); src != nil {
			image = models.String(browser.Resolve(base, *src))
		}

		tiles = append(tiles, models.RawTile{
			Title:            browser.Text(tile, f.Title),
			Link:             link,
			ImageURL:         image,
			DateText:         browser.Text(tile, f.Date),
			PrizeText:        browser.Text(tile, f.Prize),
			ParticipantsText: browser.Text(tile, f.Participants),
			Tags:             browser.Texts(tile, f.Tags),
		})
	})

	return tiles
}

// SaveTiles writes tiles to path as a JSON array, creating parent directories.
func SaveTiles(path string, tiles []models.RawTile) error {
	if tiles == nil {
		tiles = []models.RawTile{}
	}
	data, err := json.MarshalIndent(tiles, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tiles: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create tiles directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write tiles: %w", err)
	}
	return nil
}

// LoadTiles reads a tiles file written by SaveTiles.
func LoadTiles(path string) ([]models.RawTile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tiles: %w", err)
	}
	var tiles []models.RawTile
	if err := json.Unmarshal(data, &tiles); err != nil {
		return nil, fmt.Errorf("failed to parse tiles %s: %w", path, err)
	}
	return tiles, nil
}

// Links returns the link of every tile, in order.
func Links(tiles []models.RawTile) []string {
	links := make([]string, 0, len(tiles))
	for _, t := range tiles {
		links = append(links, t.Link)
	}
	return links
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
