package parser

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/powderlab/avalanche-obs-ingest/internal/domain"
)

// Field labels used by the pre-redesign markup. The old site used
// shorter labels than the current one, so the two layouts map labels
// independently rather than sharing a table.
const (
	ltDate     = "Date"
	ltRegion   = "Location"
	ltDanger   = "Hazard Rating"
	ltObserver = "Observer"
	ltNotes    = "Notes"
)

// parseLegacyTable handles the historic markup: an h1 title and a
// table.obs-detail of th-label / td-value rows.
func parseLegacyTable(page domain.RawPage, doc *goquery.Document) (domain.ParsedRecord, error) {
	title := collapse(doc.Find("h1").First().Text())
	if title == "" {
		return domain.ParsedRecord{}, missingField("title", page.Body)
	}

	fields := map[string]string{}
	doc.Find("table.obs-detail tr").Each(func(_ int, row *goquery.Selection) {
		label := collapse(row.Find("th").First().Text())
		value := collapse(row.Find("td").First().Text())
		if label == "" || value == "" {
			return
		}
		if _, ok := fields[label]; !ok {
			fields[label] = value
		}
	})

	dateText, ok := fields[ltDate]
	if !ok {
		return domain.ParsedRecord{}, missingField(ltDate, page.Body)
	}
	regionText, ok := fields[ltRegion]
	if !ok {
		return domain.ParsedRecord{}, missingField(ltRegion, page.Body)
	}

	rec := domain.ParsedRecord{
		Type:       recordTypeFromTitle(title),
		SourceURL:  page.URL,
		FetchedAt:  page.FetchedAt,
		Layout:     LayoutLegacyTable,
		DateText:   dateText,
		RegionText: regionText,
		DangerText: fields[ltDanger],
		Title:      titleRemainder(title),
		Observer:   fields[ltObserver],
		Body:       fields[ltNotes],
	}

	for _, consumed := range []string{ltDate, ltRegion, ltDanger, ltObserver, ltNotes} {
		delete(fields, consumed)
	}
	if len(fields) > 0 {
		rec.Extras = fields
	}
	return rec, nil
}
