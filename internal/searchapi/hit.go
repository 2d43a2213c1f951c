package searchapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pubhub-IN/pubhub-sub000/pkg/models"
)

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source hit `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type theme struct {
	Theme struct {
		Name string `json:"name"`
	} `json:"theme"`
}

type hit struct {
	Name              string          `json:"name"`
	Slug              string          `json:"slug"`
	URL               string          `json:"url"`
	StartsAt          string          `json:"starts_at"`
	EndsAt            string          `json:"ends_at"`
	Themes            []theme         `json:"themes"`
	IsOnline          bool            `json:"is_online"`
	Location          string          `json:"location"`
	CoverImg          string          `json:"cover_img"`
	ParticipantsCount json.RawMessage `json:"participants_count"`
	PrizeAmount       json.RawMessage `json:"prize_amount"`
	HackathonSetting  struct {
		Logo string `json:"logo"`
	} `json:"hackathon_setting"`
}

func (h hit) link() string {
	if u := strings.TrimSpace(h.URL); u != "" {
		return u
	}
	if s := strings.TrimSpace(h.Slug); s != "" {
		return fmt.Sprintf("https://%s.devfolio.co/", s)
	}
	return ""
}

// siteLabel is the venue tag: "Online" for remote events, else the location.
func (h hit) siteLabel() string {
	if h.IsOnline {
		return "Online"
	}
	return strings.TrimSpace(h.Location)
}

// tags is the union of the theme names and the site label, first occurrence kept.
func (h hit) tags() []string {
	seen := make(map[string]bool)
	var tags []string
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			return
		}
		seen[strings.ToLower(t)] = true
		tags = append(tags, t)
	}
	for _, th := range h.Themes {
		add(th.Theme.Name)
	}
	add(h.siteLabel())
	return tags
}

func (h hit) record() models.SourceRecord {
	image := models.String(h.CoverImg)
	if image == nil {
		image = models.String(h.HackathonSetting.Logo)
	}
	return models.SourceRecord{
		SourceID:         models.SourceAPI,
		Title:            models.String(h.Name),
		Link:             h.link(),
		ImageURL:         image,
		StartsAt:         models.String(h.StartsAt),
		EndsAt:           models.String(h.EndsAt),
		PrizeText:        rawText(h.PrizeAmount),
		ParticipantsText: rawText(h.ParticipantsCount),
		Tags:             h.tags(),
	}
}

// rawText renders a JSON scalar that may arrive as a string or a number.
func rawText(raw json.RawMessage) *string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return models.String(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return models.String(n.String())
	}
	return nil
}
