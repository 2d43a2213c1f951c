package normalizer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/pubhub-IN/pubhub-sub000/pkg/models"
)

func str(s string) *string { return &s }

func TestNormalize_PrizeFallbackOrder(t *testing.T) {
	tests := []struct {
		name string
		rec  models.SourceRecord
		want *string
	}{
		{
			name: "stats value when prize text is null",
			rec:  models.SourceRecord{Link: "https://a.example.com", StatsValue: str("$5,000")},
			want: str("$5,000"),
		},
		{
			name: "prize text wins",
			rec:  models.SourceRecord{Link: "https://a.example.com", PrizeText: str("$1"), PrizeAmount: str("$2"), StatsValue: str("$3")},
			want: str("$1"),
		},
		{
			name: "prize amount before stats value",
			rec:  models.SourceRecord{Link: "https://a.example.com", PrizeAmount: str("$2"), StatsValue: str("$3")},
			want: str("$2"),
		},
		{
			name: "blank values are skipped",
			rec:  models.SourceRecord{Link: "https://a.example.com", PrizeText: str("   "), StatsValue: str("$<span>5,000</span>")},
			want: str("$5,000"),
		},
		{
			name: "nothing yields null",
			rec:  models.SourceRecord{Link: "https://a.example.com"},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, ok := Normalize(tt.rec)
			if !ok {
				t.Fatal("Normalize() rejected a record with a link")
			}
			if diff := cmp.Diff(tt.want, l.Prize); diff != "" {
				t.Errorf("Prize mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalize_APIRecord(t *testing.T) {
	rec := models.SourceRecord{
		SourceID:         models.SourceAPI,
		Title:            str("ETHIndia"),
		Link:             "https://ETHIndia.devfolio.co/?utm_source=feed",
		StartsAt:         str("2025-12-05T00:00:00Z"),
		EndsAt:           str("2025-12-07T00:00:00Z"),
		ParticipantsText: str("1500"),
		Tags:             []string{"Blockchain", "blockchain", " ", "Online"},
	}

	l, ok := Normalize(rec)
	if !ok {
		t.Fatal("Normalize() returned false")
	}

	start := time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 7, 0, 0, 0, 0, time.UTC)
	want := models.Listing{
		Title:        "ETHIndia",
		Link:         "https://ethindia.devfolio.co",
		Date:         models.DateRange{Start: &start, End: &end},
		Participants: str("1500"),
		Tags:         []string{"Blockchain", "Online"},
		Source:       models.SourceAPI,
	}
	if diff := cmp.Diff(want, l); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
	if got := l.Date.Display(); got != "Dec 5, 2025 - Dec 7, 2025" {
		t.Errorf("Date.Display() = %q", got)
	}
}

func TestNormalize_DateTextPassesThrough(t *testing.T) {
	l, _ := Normalize(models.SourceRecord{
		Link:     "https://a.example.com",
		DateText: str("  Mar 01 - 03, 2025 "),
		StartsAt: str("2025-03-01T00:00:00Z"),
	})
	if diff := cmp.Diff(models.DateRange{Text: "Mar 01 - 03, 2025"}, l.Date); diff != "" {
		t.Errorf("Date mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_DropsRecordsWithoutLink(t *testing.T) {
	for _, link := range []string{"", "   ", "/relative/path", "mailto:team@example.com", "javascript:void(0)"} {
		if _, ok := Normalize(models.SourceRecord{Link: link, Title: str("x")}); ok {
			t.Errorf("Normalize(link=%q) should be rejected", link)
		}
	}

	got := NormalizeAll([]models.SourceRecord{
		{Link: "https://a.example.com"},
		{Title: str("no link")},
		{Link: "https://b.example.com"},
	})
	if len(got) != 2 {
		t.Fatalf("NormalizeAll() kept %d listings, want 2", len(got))
	}
}

func TestNormalize_NullsNotEmptyStrings(t *testing.T) {
	l, _ := Normalize(models.SourceRecord{Link: "https://a.example.com/x/"})

	data, err := json.Marshal(l)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	want := map[string]any{
		"title":        "https://a.example.com/x",
		"link":         "https://a.example.com/x",
		"date":         nil,
		"prize":        nil,
		"participants": nil,
		"image":        nil,
		"tags":         []any{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("JSON mismatch (-want +got):\n%s", diff)
	}
}

func TestCanonicalLink(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://devpost.com/hackathons/", "https://devpost.com/hackathons"},
		{"HTTPS://Alpha.DevPost.com/#prizes", "https://alpha.devpost.com"},
		{"https://x.example.com/e?ref=home&utm_medium=x&id=7", "https://x.example.com/e?id=7"},
		{"https://x.example.com/e?ref_feature=challenge&Ref=1", "https://x.example.com/e"},
		{"https://x.example.com/e?referrer=news&utm_source=tw", "https://x.example.com/e"},
		{"https://a.example.com/e?refid=1", "https://a.example.com/e?refid=1"},
		{"https://a.example.com/e?refid=2", "https://a.example.com/e?refid=2"},
		{"https://a.example.com/e?reference=abc&refresh=1", "https://a.example.com/e?reference=abc&refresh=1"},
		{"  https://x.example.com/Path  ", "https://x.example.com/Path"},
		{"ftp://x.example.com/file", ""},
		{"not a url", ""},
	}
	for _, tt := range tests {
		if got := CanonicalLink(tt.in); got != tt.want {
			t.Errorf("CanonicalLink(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalize_ImageQueryKeepsAmpersands(t *testing.T) {
	img := "https://cdn.example.com/cover.png?w=400&region=eu&section=top&copy=1"
	l, ok := Normalize(models.SourceRecord{
		SourceID:  models.SourceAPI,
		Link:      "https://a.example.com/e",
		Title:     str("Fish &amp; Chips"),
		ImageURL:  str("  " + img + "\n"),
		PrizeText: str("<b>$1,000</b> &amp; swag"),
	})
	if !ok {
		t.Fatal("Normalize() dropped a linked record")
	}
	if l.Image == nil || *l.Image != img {
		t.Errorf("image = %v, want %q", l.Image, img)
	}
	if l.Title != "Fish & Chips" {
		t.Errorf("title = %q, want entities decoded", l.Title)
	}
	if l.Prize == nil || *l.Prize != "$1,000 & swag" {
		t.Errorf("prize = %v, want tags stripped", l.Prize)
	}
}

func TestDate_StartOnlyAndUnparseable(t *testing.T) {
	d := Date(models.SourceRecord{StartsAt: str("2025-01-02"), EndsAt: str("soon")})
	if d.Start == nil || d.End != nil {
		t.Fatalf("Date() = %+v, want start only", d)
	}
	if got := d.Display(); got != "Jan 2, 2025" {
		t.Errorf("Display() = %q, want %q", got, "Jan 2, 2025")
	}

	if !Date(models.SourceRecord{}).IsZero() {
		t.Error("Date() of an empty record should be zero")
	}
}
