package enricher

import (
	"log/slog"

	"github.com/PuerkitoBio/goquery"

	"github.com/pubhub-IN/pubhub-sub000/internal/browser"
	"github.com/pubhub-IN/pubhub-sub000/pkg/models"
)

// extract reads every field with its cascading selector list. The record
// keeps the requested link as its identity even if the page redirected.
func (e *Enricher) extract(root *goquery.Selection, link, base string) models.SourceRecord {
	f := e.config.Fields

	var image *string
	if src := browser.FirstText(root, f.Image); src != nil {
		image = models.String(browser.Resolve(base, *src))
	}

	var subtitle *string
	if fragment := browser.FirstHTML(root, f.Subtitle); fragment != nil {
		md, err := e.processor.Markdown(*fragment)
		if err != nil {
			slog.Debug("subtitle conversion failed", "link", link, "error", err)
			md = e.processor.PlainText(*fragment)
		}
		subtitle = models.String(md)
	}

	return models.SourceRecord{
		SourceID:         models.SourceBrowserDetail,
		Title:            browser.FirstText(root, f.Title),
		Subtitle:         subtitle,
		Link:             link,
		ImageURL:         image,
		DateText:         browser.FirstText(root, f.Date),
		PrizeAmount:      browser.FirstText(root, f.Prize),
		StatsValue:       browser.FirstText(root, f.StatsValue),
		ParticipantsText: browser.FirstText(root, f.Participants),
		Tags:             browser.FirstTexts(root, f.Tags),
	}
}
