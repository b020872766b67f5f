package parser

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/powderlab/avalanche-obs-ingest/internal/domain"
)

// parseForecast handles forecast archive pages: a div.forecast-advisory
// wrapper with dedicated region, date, and rating elements plus the
// bottom-line summary text retained as the record body.
func parseForecast(page domain.RawPage, doc *goquery.Document) (domain.ParsedRecord, error) {
	adv := doc.Find("div.forecast-advisory").First()

	dateText := collapse(adv.Find(".forecast-date").First().Text())
	if dateText == "" {
		return domain.ParsedRecord{}, missingField("forecast-date", page.Body)
	}
	regionText := collapse(adv.Find(".forecast-region").First().Text())
	if regionText == "" {
		return domain.ParsedRecord{}, missingField("forecast-region", page.Body)
	}

	var body string
	adv.Find(".bottom-line p, .bottom-line li").Each(func(_ int, s *goquery.Selection) {
		if t := collapse(s.Text()); t != "" {
			if body != "" {
				body += " "
			}
			body += t
		}
	})
	if body == "" {
		body = collapse(adv.Find(".bottom-line").First().Text())
	}

	return domain.ParsedRecord{
		Type:       domain.TypeForecast,
		SourceURL:  page.URL,
		FetchedAt:  page.FetchedAt,
		Layout:     LayoutForecast,
		DateText:   dateText,
		RegionText: regionText,
		DangerText: collapse(adv.Find(".danger-rating").First().Text()),
		Title:      titleRemainder(collapse(doc.Find(".page-title").First().Text())),
		Body:       body,
	}, nil
}
