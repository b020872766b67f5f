package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powderlab/avalanche-obs-ingest/internal/domain"
)

const fieldListHTML = `<html><head><title>Observation: Logan Peak</title></head><body>
<h1 class="page-title">Observation: Logan Peak</h1>
<div class="content">
<div class="field"><div class="field-label">Observation Date</div><div class="field-value">02/14/2023</div></div>
<div class="field"><div class="field-label">Region</div><div class="field-value">Logan Peak</div></div>
<div class="field"><div class="field-label">Danger Rating</div><div class="field-value">Considerable</div></div>
<div class="field"><div class="field-label">Observer Name</div><div class="field-value">M. Hansen</div></div>
<div class="field"><div class="field-label">Elevation</div><div class="field-value">9,200'</div></div>
<div class="field"><div class="field-label">Aspect</div><div class="field-value">NE</div></div>
<div class="field"><div class="field-label">Comments</div><div class="field-value">Widespread   collapsing on
north aspects.</div></div>
</div></body></html>`

const legacyTableHTML = `<html><body>
<h1>Avalanche: Cardiff Fork</h1>
<table class="obs-detail">
<tr><th>Date</th><td>2023-02-10</td></tr>
<tr><th>Location</th><td>Salt Lake</td></tr>
<tr><th>Hazard Rating</th><td>Moderate</td></tr>
<tr><th>Observer</th><td>J. Rich</td></tr>
<tr><th>Trigger</th><td>Skier</td></tr>
<tr><th>Notes</th><td>Soft slab, ran 300 vertical feet.</td></tr>
</table></body></html>`

const forecastHTML = `<html><body>
<h1 class="page-title">Forecast: La Sals</h1>
<div class="forecast-advisory">
<div class="forecast-region">La Sal Mountains</div>
<div class="forecast-date">Monday, February 16, 2023 - 6:30am</div>
<div class="danger-rating">High</div>
<div class="bottom-line">
<p>Dangerous avalanche conditions.</p>
<li>Travel in avalanche terrain not recommended.</li>
</div>
</div></body></html>`

func testPage(body string) domain.RawPage {
	return domain.RawPage{
		URL:        "https://utahavalanchecenter.org/observation/12345",
		FetchedAt:  time.Date(2023, 2, 14, 18, 0, 0, 0, time.UTC),
		StatusCode: 200,
		Body:       []byte(body),
	}
}

func TestParseFieldList(t *testing.T) {
	p := New()

	t.Run("full record", func(t *testing.T) {
		rec, err := p.Parse(testPage(fieldListHTML))

		require.NoError(t, err)
		assert.Equal(t, LayoutFieldList, rec.Layout)
		assert.Equal(t, domain.TypeObservation, rec.Type)
		assert.Equal(t, "Logan Peak", rec.Title)
		assert.Equal(t, "02/14/2023", rec.DateText)
		assert.Equal(t, "Logan Peak", rec.RegionText)
		assert.Equal(t, "Considerable", rec.DangerText)
		assert.Equal(t, "M. Hansen", rec.Observer)
		assert.Equal(t, "Widespread collapsing on north aspects.", rec.Body)
		assert.Equal(t, map[string]string{"Elevation": "9,200'", "Aspect": "NE"}, rec.Extras)
		assert.Equal(t, "https://utahavalanchecenter.org/observation/12345", rec.SourceURL)
	})

	t.Run("avalanche title prefix", func(t *testing.T) {
		html := `<html><body><h1 class="page-title">Avalanche: Cardiff Fork</h1>
<div class="field"><div class="field-label">Observation Date</div><div class="field-value">02/14/2023</div></div>
<div class="field"><div class="field-label">Region</div><div class="field-value">Salt Lake</div></div>
</body></html>`
		rec, err := p.Parse(testPage(html))

		require.NoError(t, err)
		assert.Equal(t, domain.TypeAvalanche, rec.Type)
		assert.Equal(t, "Cardiff Fork", rec.Title)
		assert.Empty(t, rec.DangerText)
		assert.Nil(t, rec.Extras)
	})

	t.Run("missing date rejects", func(t *testing.T) {
		html := `<html><body><h1 class="page-title">Observation: X</h1>
<div class="field"><div class="field-label">Region</div><div class="field-value">Provo</div></div>
</body></html>`
		_, err := p.Parse(testPage(html))

		var pe *domain.ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, domain.ParseMissingField, pe.Reason)
		assert.Equal(t, "Observation Date", pe.Field)
	})

	t.Run("repeated field first wins", func(t *testing.T) {
		html := `<html><body><h1 class="page-title">Observation: X</h1>
<div class="field"><div class="field-label">Observation Date</div><div class="field-value">02/14/2023</div></div>
<div class="field"><div class="field-label">Observation Date</div><div class="field-value">01/01/1999</div></div>
<div class="field"><div class="field-label">Region</div><div class="field-value">Provo</div></div>
</body></html>`
		rec, err := p.Parse(testPage(html))

		require.NoError(t, err)
		assert.Equal(t, "02/14/2023", rec.DateText)
	})
}

func TestParseLegacyTable(t *testing.T) {
	p := New()

	rec, err := p.Parse(testPage(legacyTableHTML))

	require.NoError(t, err)
	assert.Equal(t, LayoutLegacyTable, rec.Layout)
	assert.Equal(t, domain.TypeAvalanche, rec.Type)
	assert.Equal(t, "Cardiff Fork", rec.Title)
	assert.Equal(t, "2023-02-10", rec.DateText)
	assert.Equal(t, "Salt Lake", rec.RegionText)
	assert.Equal(t, "Moderate", rec.DangerText)
	assert.Equal(t, "J. Rich", rec.Observer)
	assert.Equal(t, "Soft slab, ran 300 vertical feet.", rec.Body)
	assert.Equal(t, map[string]string{"Trigger": "Skier"}, rec.Extras)
}

func TestParseLegacyTableMissingLocation(t *testing.T) {
	p := New()
	html := `<html><body><h1>Observation: X</h1>
<table class="obs-detail"><tr><th>Date</th><td>2023-02-10</td></tr></table>
</body></html>`

	_, err := p.Parse(testPage(html))

	var pe *domain.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domain.ParseMissingField, pe.Reason)
	assert.Equal(t, "Location", pe.Field)
}

func TestParseForecast(t *testing.T) {
	p := New()

	t.Run("full advisory", func(t *testing.T) {
		rec, err := p.Parse(testPage(forecastHTML))

		require.NoError(t, err)
		assert.Equal(t, LayoutForecast, rec.Layout)
		assert.Equal(t, domain.TypeForecast, rec.Type)
		assert.Equal(t, "La Sals", rec.Title)
		assert.Equal(t, "Monday, February 16, 2023 - 6:30am", rec.DateText)
		assert.Equal(t, "La Sal Mountains", rec.RegionText)
		assert.Equal(t, "High", rec.DangerText)
		assert.Equal(t, "Dangerous avalanche conditions. Travel in avalanche terrain not recommended.", rec.Body)
	})

	t.Run("missing region rejects", func(t *testing.T) {
		html := `<html><body><div class="forecast-advisory">
<div class="forecast-date">Monday, February 16, 2023 - 6:30am</div>
</div></body></html>`
		_, err := p.Parse(testPage(html))

		var pe *domain.ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, domain.ParseMissingField, pe.Reason)
		assert.Equal(t, "forecast-region", pe.Field)
	})
}

func TestParseUnknownLayout(t *testing.T) {
	p := New()

	tests := []struct {
		name string
		body string
	}{
		{"plain page", `<html><body><p>Nothing to see here.</p></body></html>`},
		{"title without fields", `<html><body><h1 class="page-title">Observation: X</h1></body></html>`},
		{"plain table", `<html><body><table><tr><td>x</td></tr></table></body></html>`},
		{"empty body", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(testPage(tt.body))

			var pe *domain.ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, domain.ParseUnknownLayout, pe.Reason)
		})
	}
}

// Parsing twice must produce identical records; extraction reads only
// the page bytes.
func TestParseDeterministic(t *testing.T) {
	p := New()
	page := testPage(fieldListHTML)

	rec1, err := p.Parse(page)
	require.NoError(t, err)
	rec2, err := p.Parse(page)
	require.NoError(t, err)

	assert.Equal(t, rec1, rec2)
}

func TestRecordTypeFromTitle(t *testing.T) {
	tests := []struct {
		title    string
		expected domain.RecordType
	}{
		{"Observation: Logan Peak", domain.TypeObservation},
		{"Avalanche: Cardiff Fork", domain.TypeAvalanche},
		{"Forecast: La Sals", domain.TypeForecast},
		{"Random page title", domain.TypeObservation},
		{"", domain.TypeObservation},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, recordTypeFromTitle(tt.title), "title %q", tt.title)
	}
}

func TestSnippet(t *testing.T) {
	t.Run("bounded", func(t *testing.T) {
		long := make([]byte, 4096)
		for i := range long {
			long[i] = 'a'
		}
		assert.Len(t, snippet(long), 160)
	})

	t.Run("whitespace collapsed", func(t *testing.T) {
		assert.Equal(t, "a b c", snippet([]byte("a\n\n  b\t c ")))
	})
}
