package parser

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/powderlab/avalanche-obs-ingest/internal/domain"
)

// Field labels used by the current site markup. Date and region are
// required; a record without them cannot be normalized and rejects at
// parse time with the missing label named.
const (
	flDate     = "Observation Date"
	flRegion   = "Region"
	flDanger   = "Danger Rating"
	flObserver = "Observer Name"
	flComments = "Comments"
)

// parseFieldList handles the current markup: a .page-title heading and
// .field blocks pairing a .field-label with a .field-value.
func parseFieldList(page domain.RawPage, doc *goquery.Document) (domain.ParsedRecord, error) {
	title := collapse(doc.Find(".page-title").First().Text())
	if title == "" {
		return domain.ParsedRecord{}, missingField("title", page.Body)
	}

	fields := map[string]string{}
	doc.Find(".field").Each(func(_ int, s *goquery.Selection) {
		label := collapse(s.Find(".field-label").First().Text())
		value := collapse(s.Find(".field-value").First().Text())
		if label == "" || value == "" {
			return
		}
		// First occurrence wins; repeated blocks happen on multi-entry
		// fields and the later ones land in Extras below.
		if _, ok := fields[label]; !ok {
			fields[label] = value
		}
	})

	dateText, ok := fields[flDate]
	if !ok {
		return domain.ParsedRecord{}, missingField(flDate, page.Body)
	}
	regionText, ok := fields[flRegion]
	if !ok {
		return domain.ParsedRecord{}, missingField(flRegion, page.Body)
	}

	rec := domain.ParsedRecord{
		Type:       recordTypeFromTitle(title),
		SourceURL:  page.URL,
		FetchedAt:  page.FetchedAt,
		Layout:     LayoutFieldList,
		DateText:   dateText,
		RegionText: regionText,
		DangerText: fields[flDanger],
		Title:      titleRemainder(title),
		Observer:   fields[flObserver],
		Body:       fields[flComments],
	}

	for _, consumed := range []string{flDate, flRegion, flDanger, flObserver, flComments} {
		delete(fields, consumed)
	}
	if len(fields) > 0 {
		rec.Extras = fields
	}
	return rec, nil
}
