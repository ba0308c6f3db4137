package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kakmul/ufcserver/internal/domain"
	"github.com/kakmul/ufcserver/internal/ports"
)

const (
	listingItemSelector = "li.item-movie a"
	frameSelector       = "iframe"
	ogTitleSelector     = `meta[property="og:title"]`
	ogImageSelector     = `meta[property="og:image"]`
	thumbnailSelector   = ".thumb-bv"
	extrasSelector      = "#extras"
	descriptionSelector = "article.infobv p"
)

// Extractor turns listing and detail markup of one site into domain records.
type Extractor struct {
	origin *url.URL
}

var _ ports.MarkupExtractor = (*Extractor)(nil)

// NewExtractor binds the extractor to the site origin used for joining relative links.
func NewExtractor(origin string) (*Extractor, error) {
	parsed, err := url.Parse(strings.TrimSpace(origin))
	if err != nil {
		return nil, fmt.Errorf("parse origin %s: %w", origin, err)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return nil, fmt.Errorf("origin %q is not an absolute URL", origin)
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return &Extractor{origin: parsed}, nil
}

// Origin returns the site origin without a trailing slash.
func (e *Extractor) Origin() string {
	return e.origin.String()
}

// SameOrigin reports whether raw is an absolute URL on the site's scheme and host.
func (e *Extractor) SameOrigin(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil || !parsed.IsAbs() {
		return false
	}
	return strings.EqualFold(parsed.Scheme, e.origin.Scheme) &&
		strings.EqualFold(parsed.Host, e.origin.Host)
}

// Listing extracts summary items in document order. Entries without a title,
// without an href or pointing off-site are dropped.
func (e *Extractor) Listing(markup []byte) ([]domain.SummaryItem, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	items := make([]domain.SummaryItem, 0)
	doc.Find(listingItemSelector).Each(func(_ int, link *goquery.Selection) {
		if item, ok := e.listingItem(link); ok {
			items = append(items, item)
		}
	})
	return items, nil
}

func (e *Extractor) listingItem(link *goquery.Selection) (domain.SummaryItem, bool) {
	title := strings.TrimSpace(link.AttrOr("title", ""))
	if title == "" {
		title = strings.TrimSpace(link.Find("h3").First().Text())
	}
	href := strings.TrimSpace(link.AttrOr("href", ""))
	if title == "" || href == "" {
		return domain.SummaryItem{}, false
	}

	target := e.absolute(href)
	if target == "" || !e.SameOrigin(target) {
		return domain.SummaryItem{}, false
	}

	return domain.SummaryItem{
		Title:     title,
		URL:       target,
		Thumbnail: e.absolute(link.Find("img").First().AttrOr("src", "")),
	}, true
}

// Detail extracts a record from a detail page. Only a missing embed frame is
// an error (domain.ErrNotFound); other absent fields come back empty.
func (e *Extractor) Detail(pageURL string, markup []byte) (domain.DetailRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return domain.DetailRecord{}, fmt.Errorf("parse detail %s: %w", pageURL, err)
	}

	frame := strings.TrimSpace(doc.Find(frameSelector).First().AttrOr("src", ""))
	if frame == "" {
		return domain.DetailRecord{}, fmt.Errorf("%w: no media frame on %s", domain.ErrNotFound, pageURL)
	}

	title := strings.TrimSpace(doc.Find(ogTitleSelector).First().AttrOr("content", ""))
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	thumbnail := strings.TrimSpace(doc.Find(ogImageSelector).First().AttrOr("content", ""))
	if thumbnail == "" {
		thumbnail = doc.Find(thumbnailSelector).First().AttrOr("src", "")
	}

	sections := ScanSections(doc.Find(extrasSelector).First().Children())

	return domain.DetailRecord{
		URL:            pageURL,
		Title:          title,
		Thumbnail:      e.absolute(thumbnail),
		EmbedReference: frame,
		Categories:     sections.Categories,
		Fighters:       sections.Fighters,
		Description:    description(doc.Find(descriptionSelector)),
	}, nil
}

func description(paragraphs *goquery.Selection) string {
	parts := make([]string, 0, 2)
	paragraphs.EachWithBreak(func(_ int, p *goquery.Selection) bool {
		parts = append(parts, strings.TrimSpace(p.Text()))
		return len(parts) < 2
	})
	return strings.Join(parts, " ")
}

func (e *Extractor) absolute(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return e.origin.ResolveReference(parsed).String()
}
