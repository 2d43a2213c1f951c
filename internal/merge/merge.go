// Package merge combines listings from every connector into one collection
// with at most one listing per canonical link.
package merge

import (
	"log/slog"

	"github.com/pubhub-IN/pubhub-sub000/pkg/models"
)

// Stats describes one merge.
type Stats struct {
	Input      int
	Output     int
	Duplicates int
	// Conflicts counts duplicates whose fields differ from the kept listing.
	Conflicts int
}

// MergeAndDedupe concatenates sources in argument order and keeps the first
// listing seen for each link. Argument order is therefore the precedence
// order; output order is first-seen order.
func MergeAndDedupe(sources ...[]models.Listing) []models.Listing {
	out, _ := MergeWithStats(sources...)
	return out
}

// MergeWithStats is MergeAndDedupe that also reports what was discarded.
func MergeWithStats(sources ...[]models.Listing) ([]models.Listing, Stats) {
	var stats Stats
	for _, src := range sources {
		stats.Input += len(src)
	}

	out := make([]models.Listing, 0, stats.Input)
	index := make(map[string]int, stats.Input)

	for _, src := range sources {
		for _, l := range src {
			if l.Link == "" {
				continue
			}
			i, dup := index[l.Link]
			if !dup {
				index[l.Link] = len(out)
				out = append(out, l)
				continue
			}

			stats.Duplicates++
			kept := out[i]
			if differs(kept, l) {
				stats.Conflicts++
				slog.Debug("conflicting duplicate dropped",
					"link", l.Link,
					"kept_source", kept.Source,
					"dropped_source", l.Source,
					"kept_title", kept.Title,
					"dropped_title", l.Title,
					"kept_prize", deref(kept.Prize),
					"dropped_prize", deref(l.Prize))
			}
		}
	}

	stats.Output = len(out)
	if stats.Duplicates > 0 {
		slog.Info("merged sources",
			"input", stats.Input,
			"output", stats.Output,
			"duplicates", stats.Duplicates,
			"conflicts", stats.Conflicts)
	}
	return out, stats
}

func differs(a, b models.Listing) bool {
	if a.Title != b.Title || a.Date.Display() != b.Date.Display() {
		return true
	}
	if !samePtr(a.Prize, b.Prize) || !samePtr(a.Participants, b.Participants) || !samePtr(a.Image, b.Image) {
		return true
	}
	if len(a.Tags) != len(b.Tags) {
		return true
	}
	for i := range a.Tags {
		if a.Tags[i] != b.Tags[i] {
			return true
		}
	}
	return false
}

func samePtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
