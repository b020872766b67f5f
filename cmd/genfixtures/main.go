// Command genfixtures writes mock source pages for every known record
// layout, plus the normalized observations the pipeline is expected to
// produce from them. It uses the actual parser and normalizer with a
// frozen clock, so the expected output matches real pipeline behavior
// and stays in sync with the domain code.
//
// Usage:
//
//	go run ./cmd/genfixtures -out data/fixtures
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/powderlab/avalanche-obs-ingest/internal/domain"
	"github.com/powderlab/avalanche-obs-ingest/internal/parser"
)

var fetchedAt = time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)

type fixture struct {
	file string
	url  string
	html string
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for fixture pages and expected JSON")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	// Freeze the clock for reproducible processed_at timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	pagesDir := filepath.Join(*out, "pages")
	if err := os.MkdirAll(pagesDir, 0o755); err != nil {
		return err
	}

	fixtures := buildFixtures()
	normalizer := domain.NewNormalizer(fixtureTables())
	p := parser.New()

	var expected []domain.Observation
	for _, f := range fixtures {
		if err := os.WriteFile(filepath.Join(pagesDir, f.file), []byte(f.html), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", f.file, err)
		}

		page := domain.RawPage{URL: f.url, FetchedAt: fetchedAt, StatusCode: 200, Body: []byte(f.html)}
		rec, err := p.Parse(page)
		if err != nil {
			return fmt.Errorf("fixture %s does not parse: %w", f.file, err)
		}
		obs, err := normalizer.Normalize(rec)
		if err != nil {
			return fmt.Errorf("fixture %s does not normalize: %w", f.file, err)
		}
		expected = append(expected, obs)
		log.Printf("%s: %s (%s)", f.file, obs.ID, rec.Layout)
	}

	if err := writeJSON(filepath.Join(*out, "expected_observations.json"), expected); err != nil {
		return fmt.Errorf("writing expected JSON: %w", err)
	}

	listing := listingHTML(fixtures)
	if err := os.WriteFile(filepath.Join(*out, "listing.html"), []byte(listing), 0o644); err != nil {
		return err
	}

	log.Printf("wrote %d pages + listing + expected JSON to %s", len(fixtures), *out)
	return nil
}

func buildFixtures() []fixture {
	return []fixture{
		{
			file: "obs_field_list.html",
			url:  "https://utahavalanchecenter.org/observation/101",
			html: fieldListPage("Observation: Logan Peak", map[string]string{
				"Observation Date": "02/14/2026",
				"Region":           "Logan Peak",
				"Danger Rating":    "Considerable",
				"Observer Name":    "M. Hansen",
				"Comments":         "Widespread collapsing on north aspects above treeline.",
			}),
		},
		{
			file: "avy_field_list.html",
			url:  "https://utahavalanchecenter.org/avalanche/102",
			html: fieldListPage("Avalanche: Cardiff Fork", map[string]string{
				"Observation Date": "02/15/2026",
				"Region":           "Salt Lake",
				"Observer Name":    "UAC Staff",
				"Comments":         "Soft slab, skier triggered, ran 300 vertical feet.",
				"Elevation":        "9,800'",
				"Aspect":           "NE",
				"Trigger":          "Skier",
			}),
		},
		{
			file: "obs_legacy_table.html",
			url:  "https://utahavalanchecenter.org/archive/obs/103",
			html: legacyTablePage("Observation: Ben Lomond", map[string]string{
				"Date":          "2026-02-10",
				"Location":      "Ogden",
				"Hazard Rating": "Moderate",
				"Observer":      "J. Rich",
				"Notes":         "Wind drifting along the ridgeline, shooting cracks.",
			}),
		},
		{
			file: "forecast.html",
			url:  "https://utahavalanchecenter.org/forecast/moab/104",
			html: forecastPage("Forecast: La Sals", "Monday, February 16, 2026 - 6:30am",
				"La Sal Mountains", "High",
				"Dangerous avalanche conditions. Travel in avalanche terrain not recommended."),
		},
	}
}

// fixtureTables mirrors the shipped configs/ tables closely enough for
// fixture generation without reading files.
func fixtureTables() domain.Tables {
	return domain.Tables{
		ZoneAliases: map[string]domain.Zone{
			"logan peak":       domain.ZoneLogan,
			"salt lake":        domain.ZoneSaltLake,
			"ogden":            domain.ZoneOgden,
			"la sal mountains": domain.ZoneMoab,
		},
		ZoneVersion: "fixtures",
		DangerScale: map[string]int{
			"low": 1, "moderate": 2, "considerable": 3, "high": 4, "extreme": 5,
		},
		ScaleVersion: "fixtures",
		DateLayouts: []string{
			"01/02/2006", "2006-01-02", "Monday, January 2, 2006 - 3:04pm",
		},
		Location: time.UTC,
	}
}

func fieldListPage(title string, fields map[string]string) string {
	body := fmt.Sprintf(`<html><head><title>%s</title></head><body>
<h1 class="page-title">%s</h1>
<div class="content">`, title, title)
	for _, label := range []string{"Observation Date", "Region", "Danger Rating", "Observer Name", "Elevation", "Aspect", "Trigger", "Comments"} {
		value, ok := fields[label]
		if !ok {
			continue
		}
		body += fmt.Sprintf(`
<div class="field"><div class="field-label">%s</div><div class="field-value">%s</div></div>`, label, value)
	}
	return body + `
</div></body></html>`
}

func legacyTablePage(title string, fields map[string]string) string {
	body := fmt.Sprintf(`<html><head><title>%s</title></head><body>
<h1>%s</h1>
<table class="obs-detail">`, title, title)
	for _, label := range []string{"Date", "Location", "Hazard Rating", "Observer", "Notes"} {
		value, ok := fields[label]
		if !ok {
			continue
		}
		body += fmt.Sprintf(`
<tr><th>%s</th><td>%s</td></tr>`, label, value)
	}
	return body + `
</table></body></html>`
}

func forecastPage(title, date, region, rating, bottomLine string) string {
	return fmt.Sprintf(`<html><head><title>%s</title></head><body>
<h1 class="page-title">%s</h1>
<div class="forecast-advisory">
<div class="forecast-region">%s</div>
<div class="forecast-date">%s</div>
<div class="danger-rating">%s</div>
<div class="bottom-line"><p>%s</p></div>
</div></body></html>`, title, title, region, date, rating, bottomLine)
}

func listingHTML(fixtures []fixture) string {
	rows := ""
	for _, f := range fixtures {
		rows += fmt.Sprintf(`
<tr><td>02/14/2026</td><td>Salt Lake</td><td><a href="%s">Observation: fixture</a></td><td>UAC Staff</td></tr>`, f.url)
	}
	return fmt.Sprintf(`<html><body><table>
<tr><th>Date</th><th>Region</th><th>Observation</th><th>Observer</th></tr>%s
</table></body></html>`, rows)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
