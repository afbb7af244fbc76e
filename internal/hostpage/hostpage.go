// Package hostpage reads the state the check-out pipeline needs from the
// cockpit page: the selected period label and the locale segment of its URL.
package hostpage

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const defaultLocale = "en"

// Static is page state supplied directly, e.g. from a request or flags.
type Static struct {
	Label string
	URL   string
}

func (s Static) PeriodLabel() (string, bool) {
	label := strings.TrimSpace(s.Label)
	return label, label != ""
}

func (s Static) Locale() string { return LocaleFromURL(s.URL) }

// Selectors locate the period label and the trigger container.
type Selectors struct {
	Period  string
	Trigger string
}

// Document is a parsed snapshot of the cockpit page.
type Document struct {
	doc       *goquery.Document
	url       string
	selectors Selectors
}

// Parse reads an HTML snapshot. pageURL may be empty, in which case the
// snapshot's canonical link is used when present.
func Parse(r io.Reader, pageURL string, selectors Selectors) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	d := &Document{doc: doc, url: strings.TrimSpace(pageURL), selectors: selectors}
	if d.url == "" {
		if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
			d.url = strings.TrimSpace(href)
		}
	}
	return d, nil
}

func (d *Document) URL() string { return d.url }

// PeriodLabel returns the text of the first node matching the period selector.
// An <option> without text falls back to its value.
func (d *Document) PeriodLabel() (string, bool) {
	if d.selectors.Period == "" {
		return "", false
	}
	sel := d.doc.Find(d.selectors.Period).First()
	if sel.Length() == 0 {
		return "", false
	}
	label := strings.Join(strings.Fields(sel.Text()), " ")
	if label == "" {
		if value, ok := sel.Attr("value"); ok {
			label = strings.TrimSpace(value)
		}
	}
	return label, label != ""
}

func (d *Document) Locale() string { return LocaleFromURL(d.url) }

// HasTrigger reports whether the region the trigger control goes into exists.
func (d *Document) HasTrigger() bool {
	if d.selectors.Trigger == "" {
		return false
	}
	return d.doc.Find(d.selectors.Trigger).Length() > 0
}

// LocaleFromURL returns the first path segment when it looks like a language
// tag ("es", "pt-br"), otherwise "en".
func LocaleFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultLocale
	}
	u, err := url.Parse(raw)
	if err != nil {
		return defaultLocale
	}
	segment := strings.Trim(u.Path, "/")
	if i := strings.Index(segment, "/"); i >= 0 {
		segment = segment[:i]
	}
	if !isLocaleSegment(segment) {
		return defaultLocale
	}
	return strings.ToLower(segment)
}

func isLocaleSegment(s string) bool {
	lang, region, hasRegion := strings.Cut(s, "-")
	if !hasRegion {
		lang, region, hasRegion = strings.Cut(s, "_")
	}
	if len(lang) != 2 || !isLetters(lang) {
		return false
	}
	if hasRegion && (len(region) != 2 || !isLetters(region)) {
		return false
	}
	return true
}

func isLetters(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
