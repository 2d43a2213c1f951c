// Package processor turns scraped HTML fragments into display text.
package processor

import (
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var blockElements = map[atom.Atom]bool{
	atom.Br: true, atom.P: true, atom.Div: true, atom.Li: true,
	atom.Tr: true, atom.Td: true, atom.Th: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
}

// Processor converts HTML fragments to Markdown or plain text.
type Processor struct{}

// New creates a new fragment processor.
func New() *Processor {
	return &Processor{}
}

// Markdown converts an HTML fragment (a tagline, a prize blurb) to Markdown,
// keeping links and emphasis.
func (p *Processor) Markdown(fragment string) (string, error) {
	if strings.TrimSpace(fragment) == "" {
		return "", nil
	}

	markdown, err := htmltomarkdown.ConvertString(fragment)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(markdown), nil
}

// PlainText strips tags from fragment, unescapes entities and collapses
// whitespace. "$<span>5,000</span>" becomes "$5,000".
func (p *Processor) PlainText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return squeeze(fragment)
	}

	parent := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		return squeeze(html.UnescapeString(fragment))
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style):
			return
		}
		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte(' ')
		}
	}
	for _, n := range nodes {
		walk(n)
	}

	return squeeze(b.String())
}

func squeeze(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
