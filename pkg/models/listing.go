package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// SourceID identifies which connector produced a SourceRecord.
type SourceID string

const (
	SourceBrowserTile   SourceID = "browser-tile"
	SourceBrowserDetail SourceID = "browser-detail"
	SourceAPI           SourceID = "api"
)

// RawTile is a summary card scraped from a listing page.
// Every field except Link may be nil when its selector matched nothing.
type RawTile struct {
	Title            *string  `json:"title"`
	Link             string   `json:"link"`
	ImageURL         *string  `json:"imageUrl"`
	DateText         *string  `json:"dateText"`
	PrizeText        *string  `json:"prizeText"`
	ParticipantsText *string  `json:"participantsText"`
	Tags             []string `json:"tags"`
}

// SourceRecord is a record as extracted by a connector, before normalization.
// Prize can arrive under PrizeText (tiles, API), PrizeAmount (detail header)
// or StatsValue (detail sidebar), depending on the source and page layout.
type SourceRecord struct {
	SourceID         SourceID `json:"sourceId"`
	Title            *string  `json:"title"`
	Subtitle         *string  `json:"subtitle"`
	Link             string   `json:"link"`
	ImageURL         *string  `json:"imageUrl"`
	DateText         *string  `json:"dateText"`
	StartsAt         *string  `json:"startsAt"` // ISO 8601
	EndsAt           *string  `json:"endsAt"`   // ISO 8601
	PrizeText        *string  `json:"prizeText"`
	PrizeAmount      *string  `json:"prizeAmount"`
	StatsValue       *string  `json:"statsValue"`
	ParticipantsText *string  `json:"participantsText"`
	Tags             []string `json:"tags"`
}

// Record converts a tile into a SourceRecord tagged as browser-tile.
func (t RawTile) Record() SourceRecord {
	return SourceRecord{
		SourceID:         SourceBrowserTile,
		Title:            t.Title,
		Link:             t.Link,
		ImageURL:         t.ImageURL,
		DateText:         t.DateText,
		PrizeText:        t.PrizeText,
		ParticipantsText: t.ParticipantsText,
		Tags:             t.Tags,
	}
}

// DateRangeLayout is the display layout for each end of a date range.
const DateRangeLayout = "Jan 2, 2006"

// DateRange is either a parsed start/end pair or a human-readable text
// passed through from the source.
type DateRange struct {
	Start *time.Time
	End   *time.Time
	Text  string
}

// IsZero reports whether the range carries no date information.
func (d DateRange) IsZero() bool {
	return d.Start == nil && d.End == nil && strings.TrimSpace(d.Text) == ""
}

// Display renders the range as "StartDate - EndDate", or the raw text.
func (d DateRange) Display() string {
	if d.Text != "" {
		return d.Text
	}
	switch {
	case d.Start != nil && d.End != nil:
		return d.Start.Format(DateRangeLayout) + " - " + d.End.Format(DateRangeLayout)
	case d.Start != nil:
		return d.Start.Format(DateRangeLayout)
	case d.End != nil:
		return d.End.Format(DateRangeLayout)
	}
	return ""
}

// MarshalJSON encodes the display string, or null when the range is empty.
func (d DateRange) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Display())
}

// UnmarshalJSON reads a display string back as raw text.
func (d *DateRange) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*d = DateRange{}
	if s != nil {
		d.Text = *s
	}
	return nil
}

// Listing is the canonical, deduplicated output entity. Link is the identity key.
type Listing struct {
	Title        string    `json:"title"`
	Link         string    `json:"link"`
	Date         DateRange `json:"date"`
	Prize        *string   `json:"prize"`
	Participants *string   `json:"participants"`
	Image        *string   `json:"image"`
	Tags         []string  `json:"tags"`

	Source SourceID `json:"-"`
}

// MarshalJSON guarantees tags is always an array, never null.
func (l Listing) MarshalJSON() ([]byte, error) {
	type alias Listing
	out := alias(l)
	if out.Tags == nil {
		out.Tags = []string{}
	}
	return json.Marshal(out)
}

// GenerateListingID creates a deterministic ID from a canonical link.
// The ID is a SHA-256 hash (first 16 chars) of the link.
func GenerateListingID(link string) string {
	hash := sha256.Sum256([]byte(link))
	return hex.EncodeToString(hash[:])[:16]
}

// String returns a pointer to s, or nil when s is blank.
func String(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
