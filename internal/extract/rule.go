// Package extract holds the declarative rules that tell the scrape loops
// where a result lives inside a parsed page. The selectors are data, not
// code, so a target changing its markup only touches the rule value.
package extract

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Rule locates a single result link inside a parsed HTML document:
// a container element first, then an anchor within it.
type Rule struct {
	// Container is a CSS selector for the results container. Empty means
	// the whole document.
	Container string
	// Link is a CSS selector for the result anchor inside the container.
	Link string
}

// Parse builds a goquery document from raw HTML.
func Parse(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

// FindLink applies the rule to doc and returns the first matching href,
// resolved against base. A present container with no matching anchor inside
// is a miss, same as a missing container.
func (r Rule) FindLink(doc *goquery.Document, base *url.URL) (string, bool) {
	scope := doc.Selection
	if r.Container != "" {
		container := doc.Find(r.Container).First()
		if container.Length() == 0 {
			return "", false
		}
		scope = container
	}

	anchor := scope.Find(r.Link).First()
	if anchor.Length() == 0 {
		return "", false
	}

	href, exists := anchor.Attr("href")
	if !exists || href == "" {
		return "", false
	}

	return ResolveHref(base, href), true
}

// NextByText returns the href of the first anchor whose text contains marker,
// resolved against base. Used for "next page" indicators matched by a glyph
// or fixed link text.
func NextByText(doc *goquery.Document, marker string, base *url.URL) (string, bool) {
	var next string
	doc.Find("a").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if strings.Contains(s.Text(), marker) {
			if href, ok := s.Attr("href"); ok && href != "" {
				next = ResolveHref(base, href)
				return false
			}
		}
		return true
	})
	return next, next != ""
}

// ResolveHref resolves href against base, mirroring what a browser would
// load. A nil base or unparsable href returns the href unchanged.
func ResolveHref(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(u).String()
}
