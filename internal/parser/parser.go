// Package parser extracts structured records from fetched UAC pages.
//
// Extraction is layout-driven: a page must match one of a closed set of
// known layouts, detected from structural markers, before any field is
// read. A page matching no layout is a ParseError(UnknownLayout) — the
// parser never guesses, because a wrong guess extracts wrong fields
// silently. Parsing is a pure function of the page bytes.
package parser

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/powderlab/avalanche-obs-ingest/internal/domain"
)

// Layout names for the closed strategy set.
const (
	LayoutFieldList   = "field_list"
	LayoutLegacyTable = "legacy_table"
	LayoutForecast    = "forecast"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Parser turns RawPages into ParsedRecords and listing pages into
// record references.
type Parser struct{}

func New() *Parser { return &Parser{} }

// Parse extracts a ParsedRecord from a record page, selecting the
// extraction strategy by detected layout.
func (p *Parser) Parse(page domain.RawPage) (domain.ParsedRecord, error) {
	doc, err := newDocument(page.Body)
	if err != nil {
		return domain.ParsedRecord{}, &domain.ParseError{
			Reason:  domain.ParseUnknownLayout,
			Snippet: snippet(page.Body),
		}
	}

	switch detectLayout(doc) {
	case LayoutFieldList:
		return parseFieldList(page, doc)
	case LayoutLegacyTable:
		return parseLegacyTable(page, doc)
	case LayoutForecast:
		return parseForecast(page, doc)
	default:
		return domain.ParsedRecord{}, &domain.ParseError{
			Reason:  domain.ParseUnknownLayout,
			Snippet: snippet(page.Body),
		}
	}
}

// detectLayout inspects structural markers and names the layout, or
// returns "" when the page matches none.
func detectLayout(doc *goquery.Document) string {
	switch {
	case doc.Find("div.forecast-advisory").Length() > 0:
		return LayoutForecast
	case doc.Find(".page-title").Length() > 0 && doc.Find(".field-label").Length() > 0:
		return LayoutFieldList
	case doc.Find("table.obs-detail").Length() > 0:
		return LayoutLegacyTable
	default:
		return ""
	}
}

// newDocument decodes the page to UTF-8 and parses it. Old archive
// pages are not reliably UTF-8, so encoding is sniffed first.
func newDocument(body []byte) (*goquery.Document, error) {
	enc, _, _ := charset.DetermineEncoding(body, "text/html")
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		if !utf8.Valid(body) {
			return nil, err
		}
		decoded = body
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(decoded))
}

// recordTypeFromTitle reads the record kind off the title prefix the
// site uses ("Avalanche: X", "Forecast: X", otherwise an observation).
func recordTypeFromTitle(title string) domain.RecordType {
	switch strings.SplitN(title, ":", 2)[0] {
	case "Avalanche":
		return domain.TypeAvalanche
	case "Forecast":
		return domain.TypeForecast
	default:
		return domain.TypeObservation
	}
}

// titleRemainder strips the record-kind prefix off a page title:
// "Avalanche: Cardiff Fork" → "Cardiff Fork".
func titleRemainder(title string) string {
	parts := strings.SplitN(title, ":", 2)
	return strings.TrimSpace(parts[len(parts)-1])
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// snippet returns a bounded, whitespace-collapsed excerpt of raw page
// bytes for rejection-log context.
func snippet(body []byte) string {
	s := collapse(string(body))
	const max = 160
	if len(s) > max {
		return s[:max]
	}
	return s
}

func missingField(field string, body []byte) error {
	return &domain.ParseError{
		Reason:  domain.ParseMissingField,
		Field:   field,
		Snippet: snippet(body),
	}
}
