package browser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Parse turns a page snapshot into a goquery document.
func Parse(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// Text returns the squeezed text of the first match of selector inside sel.
// A selector of the form "css@attr" reads the attribute instead of the text.
// Returns nil when nothing matched or the value is blank.
func Text(sel *goquery.Selection, selector string) *string {
	if selector == "" {
		return nil
	}
	css, attr, hasAttr := strings.Cut(selector, "@")

	target := sel
	if css != "" {
		target = sel.Find(css).First()
	}
	if target.Length() == 0 {
		return nil
	}

	var value string
	if hasAttr {
		v, ok := target.Attr(attr)
		if !ok {
			return nil
		}
		value = v
	} else {
		value = target.Text()
	}

	value = squeeze(value)
	if value == "" {
		return nil
	}
	return &value
}

// FirstText tries each selector in order and returns the first non-empty value.
func FirstText(sel *goquery.Selection, selectors []string) *string {
	for _, s := range selectors {
		if v := Text(sel, s); v != nil {
			return v
		}
	}
	return nil
}

// FirstHTML is FirstText returning the inner HTML of the first match.
// Attribute selectors return the attribute value.
func FirstHTML(sel *goquery.Selection, selectors []string) *string {
	for _, s := range selectors {
		css, _, hasAttr := strings.Cut(s, "@")
		if hasAttr || s == "" {
			if v := Text(sel, s); v != nil {
				return v
			}
			continue
		}
		target := sel.Find(css).First()
		if target.Length() == 0 {
			continue
		}
		h, err := target.Html()
		if err != nil || strings.TrimSpace(h) == "" {
			continue
		}
		h = strings.TrimSpace(h)
		return &h
	}
	return nil
}

// Texts returns the non-empty texts of every match of selector, in document order.
func Texts(sel *goquery.Selection, selector string) []string {
	if selector == "" {
		return nil
	}
	var out []string
	sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if v := squeeze(s.Text()); v != "" {
			out = append(out, v)
		}
	})
	return out
}

// FirstTexts tries each selector in order and returns the first non-empty list.
func FirstTexts(sel *goquery.Selection, selectors []string) []string {
	for _, s := range selectors {
		if v := Texts(sel, s); len(v) > 0 {
			return v
		}
	}
	return nil
}

// Resolve makes href absolute against base. Returns "" when href is not a
// usable http(s) reference.
func Resolve(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if !ref.IsAbs() {
		b, err := url.Parse(base)
		if err != nil {
			return ""
		}
		ref = b.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}

func squeeze(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
