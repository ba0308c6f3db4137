package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Section identifies a heading-delimited run of links.
type Section int

const (
	SectionNone Section = iota
	SectionCategories
	SectionFighters
)

const (
	headingSelector     = "h1, h2, h3, h4, h5, h6"
	sectionLinkSelector = `a[rel="category tag"]`
)

var sectionMarkers = []struct {
	marker  string
	section Section
}{
	{marker: "Categories:", section: SectionCategories},
	{marker: "Fighters:", section: SectionFighters},
}

// Sections holds the link texts collected per section, in document order.
type Sections struct {
	Categories []string
	Fighters   []string
}

// sectionScanner is a two-state machine: outside any section (SectionNone)
// or inside exactly one. Headings drive transitions, links emit values.
type sectionScanner struct {
	state Section
	out   Sections
}

func (s *sectionScanner) heading(text string) {
	s.state = SectionNone
	for _, m := range sectionMarkers {
		if strings.Contains(text, m.marker) {
			s.state = m.section
			return
		}
	}
}

func (s *sectionScanner) link(text string) {
	text = strings.TrimSpace(text)
	switch s.state {
	case SectionCategories:
		s.out.Categories = append(s.out.Categories, text)
	case SectionFighters:
		s.out.Fighters = append(s.out.Fighters, text)
	}
}

// ScanSections walks the given siblings once. Membership comes from the most
// recent heading, since the markup has no container per section.
func ScanSections(children *goquery.Selection) Sections {
	scanner := sectionScanner{out: Sections{Categories: []string{}, Fighters: []string{}}}
	children.Each(func(_ int, child *goquery.Selection) {
		switch {
		case child.Is(headingSelector):
			scanner.heading(child.Text())
		case child.Is(sectionLinkSelector):
			scanner.link(child.Text())
		}
	})
	return scanner.out
}
