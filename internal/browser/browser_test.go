package browser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const testPage = `<html><head>
<title>Listing</title>
<meta property="og:image" content="https://cdn.example.com/cover.png">
</head><body>
<h1>  Hack   the Planet </h1>
<div class="tile"><a href="/events/one">One</a><span class="tag">AI</span><span class="tag"> Web3 </span></div>
<div class="tile"><a href="https://other.example.com/two">Two</a></div>
</body></html>`

func TestStatic_NavigateAndQuery(t *testing.T) {
	var receivedUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(testPage))
	}))
	defer server.Close()

	b, err := New(context.Background(), Config{Driver: DriverStatic, UserAgent: "test-agent", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer b.Close()

	page, err := b.NewPage(t.Context())
	if err != nil {
		t.Fatalf("NewPage() error = %v", err)
	}
	defer page.Close()

	if err := page.Navigate(t.Context(), server.URL); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	if receivedUA != "test-agent" {
		t.Errorf("User-Agent = %q, want %q", receivedUA, "test-agent")
	}

	n, err := page.Count(t.Context(), ".tile")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Count(.tile) = %d, want 2", n)
	}

	if err := page.WaitFor(t.Context(), "h1", time.Second); err != nil {
		t.Errorf("WaitFor(h1) error = %v", err)
	}
	if err := page.WaitFor(t.Context(), "#missing", time.Second); !errors.Is(err, ErrWaitTimeout) {
		t.Errorf("WaitFor(#missing) error = %v, want ErrWaitTimeout", err)
	}

	html, err := page.HTML(t.Context())
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	if !strings.Contains(html, "Hack") {
		t.Error("HTML() should contain the page heading")
	}
}

func TestStatic_NavigateErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	page, _ := NewStatic(Config{}).NewPage(t.Context())
	err := page.Navigate(t.Context(), server.URL)
	if !errors.Is(err, ErrNavigation) {
		t.Fatalf("Navigate() error = %v, want ErrNavigation", err)
	}
	if _, err := page.Count(t.Context(), "a"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Count() before a successful load error = %v, want ErrNotLoaded", err)
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	if _, err := New(context.Background(), Config{Driver: "lynx"}); err == nil {
		t.Error("New() should reject unknown drivers")
	}
}

func TestDOMHelpers(t *testing.T) {
	doc, err := Parse(testPage)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	root := doc.Selection

	if got := Text(root, "h1"); got == nil || *got != "Hack the Planet" {
		t.Errorf("Text(h1) = %v, want squeezed heading", got)
	}
	if got := Text(root, "meta[property='og:image']@content"); got == nil || *got != "https://cdn.example.com/cover.png" {
		t.Errorf("Text(meta@content) = %v", got)
	}
	if got := Text(root, ".nope"); got != nil {
		t.Errorf("Text(.nope) = %q, want nil", *got)
	}

	got := FirstText(root, []string{"#challenge-title", "h2", "title"})
	if got == nil || *got != "Listing" {
		t.Errorf("FirstText() = %v, want fallback to <title>", got)
	}

	tags := FirstTexts(root, []string{".missing", ".tag"})
	if len(tags) != 2 || tags[0] != "AI" || tags[1] != "Web3" {
		t.Errorf("FirstTexts() = %v, want [AI Web3]", tags)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		base, href, want string
	}{
		{"https://devpost.com/hackathons", "/events/one", "https://devpost.com/events/one"},
		{"https://devpost.com/hackathons", "https://x.devpost.com/", "https://x.devpost.com/"},
		{"https://devpost.com/hackathons", "#top", ""},
		{"https://devpost.com/hackathons", "javascript:void(0)", ""},
		{"https://devpost.com/hackathons", "mailto:a@b.c", ""},
		{"https://devpost.com/hackathons", "  ", ""},
	}
	for _, tt := range tests {
		if got := Resolve(tt.base, tt.href); got != tt.want {
			t.Errorf("Resolve(%q, %q) = %q, want %q", tt.base, tt.href, got, tt.want)
		}
	}
}
