package parser

import (
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/powderlab/avalanche-obs-ingest/internal/domain"
)

// ParseListing extracts record references from a listing page's index
// table: one row per record with date, region, linked title, and
// observer columns. An empty row set is not an error — it is how the
// site signals the end of pagination. A page without the index table
// at all is an unknown layout.
func (p *Parser) ParseListing(page domain.RawPage) ([]domain.RecordRef, error) {
	doc, err := newDocument(page.Body)
	if err != nil {
		return nil, &domain.ParseError{Reason: domain.ParseUnknownLayout, Snippet: snippet(page.Body)}
	}

	tbl := doc.Find("table").First()
	if tbl.Length() == 0 {
		return nil, &domain.ParseError{Reason: domain.ParseUnknownLayout, Snippet: snippet(page.Body)}
	}

	base, err := url.Parse(page.URL)
	if err != nil {
		base = nil
	}

	var refs []domain.RecordRef
	tbl.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 4 {
			return // header or spacer row
		}
		link := cells.Eq(2).Find("a").First()
		href, ok := link.Attr("href")
		if !ok || href == "" {
			return
		}
		title := collapse(link.Text())
		refs = append(refs, domain.RecordRef{
			URL:      resolveHref(base, href),
			Type:     recordTypeFromTitle(title),
			DateText: collapse(cells.Eq(0).Text()),
			Region:   collapse(cells.Eq(1).Text()),
			Title:    titleRemainder(title),
			Observer: collapse(cells.Eq(3).Text()),
		})
	})
	return refs, nil
}

func resolveHref(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
