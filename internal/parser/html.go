package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/treerule/internal/rules"
	"golang.org/x/net/html"
)

// HTMLParser handles saved notebook or report pages that show the export
// inside a <pre> or <code> element.
type HTMLParser struct {
	DOT DOTParser
}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*rules.Table, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	src := findDigraph(doc)
	if src == "" {
		return nil, ErrNoTreeSource
	}
	return p.DOT.parseString(src, filename)
}

func findDigraph(n *html.Node) string {
	if n.Type == html.ElementNode && (n.Data == "pre" || n.Data == "code") {
		if t := textContent(n); strings.HasPrefix(strings.TrimSpace(t), "digraph") {
			return t
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if s := findDigraph(c); s != "" {
			return s
		}
	}
	return ""
}

// textContent keeps whitespace as-is: statement separators are significant.
func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}
