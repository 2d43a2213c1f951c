package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/pubhub-IN/pubhub-sub000/internal/browser"
	"github.com/pubhub-IN/pubhub-sub000/pkg/models"
)

// fakePage replays a sequence of tile counts; the last value repeats.
type fakePage struct {
	counts      []int
	html        string
	navigateErr error

	measured int
	scrolled int
	closed   bool
}

func (p *fakePage) Navigate(ctx context.Context, url string) error { return p.navigateErr }

func (p *fakePage) Count(ctx context.Context, selector string) (int, error) {
	i := min(p.measured, len(p.counts)-1)
	p.measured++
	return p.counts[i], nil
}

func (p *fakePage) ScrollToBottom(ctx context.Context) error {
	p.scrolled++
	return nil
}

func (p *fakePage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}

func (p *fakePage) HTML(ctx context.Context) (string, error) { return p.html, nil }
func (p *fakePage) URL() string                               { return "https://listings.example.com/hackathons" }
func (p *fakePage) Close() error                              { p.closed = true; return nil }

type fakeBrowser struct{ page *fakePage }

func (b *fakeBrowser) NewPage(ctx context.Context) (browser.Page, error) { return b.page, nil }
func (b *fakeBrowser) Close() error                                     { return nil }

const listingHTML = `<html><body>
<div class="hackathon-tile">
  <a href="/events/alpha"><h3> Alpha  Hack </h3></a>
  <img src="//cdn.example.com/alpha.png">
  <div class="submission-period">Mar 01 - 03, 2025</div>
  <span class="prize-amount">$<span>10,000</span></span>
  <div class="participants"><strong>312</strong> participants</div>
  <span class="theme-label">AI</span><span class="theme-label">Web</span>
</div>
<div class="hackathon-tile"><a href="https://beta.example.com/"><h3>Beta</h3></a></div>
<div class="hackathon-tile"><h3>No link here</h3></div>
<div class="hackathon-tile"><a href="/events/alpha"><h3>Alpha again</h3></a></div>
</body></html>`

func testConfig() Config {
	return Config{
		TileSelector:   ".hackathon-tile",
		SettleInterval: time.Millisecond,
		Fields: Fields{
			Title:        "h3",
			Link:         "a@href",
			Image:        "img@src",
			Date:         ".submission-period",
			Prize:        ".prize-amount",
			Participants: ".participants strong",
			Tags:         ".theme-label",
		},
	}
}

func TestFetchListings_StopsOnFirstRepeat(t *testing.T) {
	page := &fakePage{counts: []int{5, 12, 20, 20, 20}, html: listingHTML}
	s := New(&fakeBrowser{page: page}, testConfig())

	tiles, err := s.FetchListings(t.Context(), "https://listings.example.com/hackathons", 12)
	if err != nil {
		t.Fatalf("FetchListings() error = %v", err)
	}

	if page.measured != 4 {
		t.Errorf("measurements = %d, want 4", page.measured)
	}
	if page.scrolled != 3 {
		t.Errorf("scrolls = %d, want 3", page.scrolled)
	}
	stats := s.LastStats()
	if !stats.Stabilized || stats.Measurements != 4 || stats.FinalCount != 20 {
		t.Errorf("LastStats() = %+v, want stabilized after 4 measurements at 20", stats)
	}
	if !page.closed {
		t.Error("page should be closed after FetchListings")
	}
	if len(tiles) != 2 {
		t.Fatalf("expected 2 tiles, got %d", len(tiles))
	}
}

func TestFetchListings_BudgetExhausted(t *testing.T) {
	page := &fakePage{counts: []int{1, 2, 3, 4, 5, 6}, html: listingHTML}
	s := New(&fakeBrowser{page: page}, testConfig())

	if _, err := s.FetchListings(t.Context(), "https://listings.example.com/hackathons", 3); err != nil {
		t.Fatalf("FetchListings() error = %v", err)
	}
	if page.measured != 3 {
		t.Errorf("measurements = %d, want 3", page.measured)
	}
	if page.scrolled != 2 {
		t.Errorf("scrolls = %d, want 2", page.scrolled)
	}
	if s.LastStats().Stabilized {
		t.Error("loop should not report stabilization when the budget ran out")
	}
}

func TestFetchListings_LoadFailure(t *testing.T) {
	page := &fakePage{counts: []int{1}, navigateErr: browser.ErrNavigation}
	s := New(&fakeBrowser{page: page}, testConfig())

	tiles, err := s.FetchListings(t.Context(), "https://listings.example.com/hackathons", 12)
	if !errors.Is(err, browser.ErrNavigation) {
		t.Fatalf("FetchListings() error = %v, want ErrNavigation", err)
	}
	if tiles != nil {
		t.Errorf("expected no tiles on load failure, got %d", len(tiles))
	}
	if page.measured != 0 {
		t.Errorf("no measurement should happen after a failed load, got %d", page.measured)
	}
	if !page.closed {
		t.Error("page should be closed on the failure path")
	}
}

func TestFetchListings_CancelledDuringSettle(t *testing.T) {
	page := &fakePage{counts: []int{1, 2, 3}, html: listingHTML}
	cfg := testConfig()
	cfg.SettleInterval = time.Hour
	s := New(&fakeBrowser{page: page}, cfg)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	if _, err := s.FetchListings(ctx, "https://listings.example.com/hackathons", 12); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("FetchListings() error = %v, want deadline exceeded", err)
	}
}

func TestFetchListings_NoTiles(t *testing.T) {
	page := &fakePage{counts: []int{0}, html: "<html><body><p>nothing</p></body></html>"}
	s := New(&fakeBrowser{page: page}, testConfig())

	if _, err := s.FetchListings(t.Context(), "https://listings.example.com/hackathons", 12); !errors.Is(err, ErrNoTiles) {
		t.Fatalf("FetchListings() error = %v, want ErrNoTiles", err)
	}
}

func TestFetchListings_StaticDriverExtraction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(listingHTML))
	}))
	defer server.Close()

	b := browser.NewStatic(browser.Config{Timeout: 5 * time.Second})
	defer b.Close()

	s := New(b, testConfig())
	tiles, err := s.FetchListings(t.Context(), server.URL+"/hackathons", 12)
	if err != nil {
		t.Fatalf("FetchListings() error = %v", err)
	}
	if len(tiles) != 2 {
		t.Fatalf("expected 2 tiles (linkless and duplicate dropped), got %d", len(tiles))
	}

	alpha := tiles[0]
	if alpha.Link != server.URL+"/events/alpha" {
		t.Errorf("Link = %q, want resolved against page URL", alpha.Link)
	}
	if alpha.Title == nil || *alpha.Title != "Alpha Hack" {
		t.Errorf("Title = %v, want %q", alpha.Title, "Alpha Hack")
	}
	if alpha.ImageURL == nil || *alpha.ImageURL != "http://cdn.example.com/alpha.png" {
		t.Errorf("ImageURL = %v", alpha.ImageURL)
	}
	if alpha.PrizeText == nil || *alpha.PrizeText != "$10,000" {
		t.Errorf("PrizeText = %v, want $10,000", alpha.PrizeText)
	}
	if alpha.ParticipantsText == nil || *alpha.ParticipantsText != "312" {
		t.Errorf("ParticipantsText = %v, want 312", alpha.ParticipantsText)
	}
	if len(alpha.Tags) != 2 || alpha.Tags[0] != "AI" || alpha.Tags[1] != "Web" {
		t.Errorf("Tags = %v, want [AI Web]", alpha.Tags)
	}

	beta := tiles[1]
	if beta.ImageURL != nil || beta.DateText != nil || beta.PrizeText != nil {
		t.Errorf("missing fields should be nil, got %+v", beta)
	}
	if beta.Tags != nil {
		t.Errorf("Tags = %v, want nil", beta.Tags)
	}
}

func TestSaveLoadTiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tiles.json")
	tiles := []models.RawTile{
		{Title: models.String("Alpha"), Link: "https://a.example.com/"},
		{Link: "https://b.example.com/", Tags: []string{"AI"}},
	}

	if err := SaveTiles(path, tiles); err != nil {
		t.Fatalf("SaveTiles() error = %v", err)
	}
	loaded, err := LoadTiles(path)
	if err != nil {
		t.Fatalf("LoadTiles() error = %v", err)
	}

	got := Links(loaded)
	if len(got) != 2 || got[0] != "https://a.example.com/" || got[1] != "https://b.example.com/" {
		t.Errorf("Links() = %v", got)
	}
	if loaded[0].Title == nil || *loaded[0].Title != "Alpha" {
		t.Errorf("Title = %v, want Alpha", loaded[0].Title)
	}
}

func TestLoadTiles_Missing(t *testing.T) {
	if _, err := LoadTiles(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("LoadTiles() should fail for a missing file")
	}
}
