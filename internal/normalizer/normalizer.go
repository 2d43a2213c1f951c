// Package normalizer maps SourceRecords from every connector onto the
// canonical Listing schema.
package normalizer

import (
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/pubhub-IN/pubhub-sub000/internal/processor"
	"github.com/pubhub-IN/pubhub-sub000/pkg/models"
)

// Extractor reads one raw field of a record.
type Extractor func(models.SourceRecord) *string

// Field priority lists. The first extractor yielding a non-blank value wins.
var (
	TitleFields = []Extractor{
		func(r models.SourceRecord) *string { return r.Title },
	}
	PrizeFields = []Extractor{
		func(r models.SourceRecord) *string { return r.PrizeText },
		func(r models.SourceRecord) *string { return r.PrizeAmount },
		func(r models.SourceRecord) *string { return r.StatsValue },
	}
	ParticipantsFields = []Extractor{
		func(r models.SourceRecord) *string { return r.ParticipantsText },
	}
	ImageFields = []Extractor{
		func(r models.SourceRecord) *string { return r.ImageURL },
	}
)

var text = processor.New()

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Normalize builds a Listing from rec. It reports false when rec has no
// usable link; such records cannot be deduplicated or displayed.
func Normalize(rec models.SourceRecord) (models.Listing, bool) {
	link := CanonicalLink(rec.Link)
	if link == "" {
		return models.Listing{}, false
	}

	title := link
	if t := First(rec, TitleFields); t != nil {
		title = *t
	}

	return models.Listing{
		Title:        title,
		Link:         link,
		Date:         Date(rec),
		Prize:        First(rec, PrizeFields),
		Participants: First(rec, ParticipantsFields),
		Image:        FirstURL(rec, ImageFields),
		Tags:         Tags(rec.Tags),
		Source:       rec.SourceID,
	}, true
}

// NormalizeAll normalizes recs in order, dropping records without a link.
func NormalizeAll(recs []models.SourceRecord) []models.Listing {
	listings := make([]models.Listing, 0, len(recs))
	dropped := 0
	for _, r := range recs {
		l, ok := Normalize(r)
		if !ok {
			dropped++
			continue
		}
		listings = append(listings, l)
	}
	if dropped > 0 {
		slog.Debug("dropped records without a usable link", "count", dropped)
	}
	return listings
}

// First returns the cleaned value of the first extractor with a non-blank
// result, or nil.
func First(rec models.SourceRecord, extractors []Extractor) *string {
	for _, ex := range extractors {
		v := ex(rec)
		if v == nil {
			continue
		}
		if s := text.PlainText(*v); s != "" {
			return &s
		}
	}
	return nil
}

// FirstURL is First for URL-valued fields: values are only trimmed, since
// an entity decode would corrupt query strings like "&region=".
func FirstURL(rec models.SourceRecord, extractors []Extractor) *string {
	for _, ex := range extractors {
		v := ex(rec)
		if v == nil {
			continue
		}
		if s := strings.TrimSpace(*v); s != "" {
			return &s
		}
	}
	return nil
}

// Date passes a human-readable range through, or builds one from the ISO
// start and end timestamps.
func Date(rec models.SourceRecord) models.DateRange {
	if rec.DateText != nil {
		if s := text.PlainText(*rec.DateText); s != "" {
			return models.DateRange{Text: s}
		}
	}
	return models.DateRange{
		Start: parseISO(rec.StartsAt),
		End:   parseISO(rec.EndsAt),
	}
}

// Tags cleans tags and drops blanks and case-insensitive duplicates. The
// result is never nil.
func Tags(raw []string) []string {
	tags := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, t := range raw {
		t = text.PlainText(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, t)
	}
	return tags
}

// CanonicalLink normalizes raw into the identity key of a listing: lower-case
// scheme and host, no fragment, no tracking parameters, no trailing slash. Returns "" when raw is not an absolute http(s) URL.
func CanonicalLink(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ""
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if isTrackingParam(key) {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode()
	}

	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

var trackingParams = map[string]bool{
	"ref":      true,
	"referrer": true,
	"referer":  true,
	"ref_src":  true,
}

// isTrackingParam matches utm_*, ref_* and a few exact referral keys.
// Keys like refid or reference identify the listing and are kept.
func isTrackingParam(key string) bool {
	k := strings.ToLower(key)
	return trackingParams[k] || strings.HasPrefix(k, "utm_") || strings.HasPrefix(k, "ref_")
}

func parseISO(s *string) *time.Time {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	slog.Debug("unparseable timestamp", "value", v)
	return nil
}
