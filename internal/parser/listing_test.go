package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powderlab/avalanche-obs-ingest/internal/domain"
)

const listingHTML = `<html><body><table>
<tr><th>Date</th><th>Region</th><th>Observation</th><th>Observer</th></tr>
<tr><td>02/14/2023</td><td>Logan</td><td><a href="/observation/12345">Observation: Logan Peak</a></td><td>M. Hansen</td></tr>
<tr><td>02/13/2023</td><td>Salt Lake</td><td><a href="https://utahavalanchecenter.org/avalanche/12344">Avalanche: Cardiff Fork</a></td><td>UAC Staff</td></tr>
<tr><td colspan="4">advertisement</td></tr>
<tr><td>02/12/2023</td><td>Moab</td><td><a href="/forecast/moab/12343">Forecast: La Sals</a></td><td></td></tr>
</table></body></html>`

func listingPage(body string) domain.RawPage {
	return domain.RawPage{
		URL:  "https://utahavalanchecenter.org/observations?page=2",
		Body: []byte(body),
	}
}

func TestParseListing(t *testing.T) {
	p := New()

	t.Run("extracts rows and resolves links", func(t *testing.T) {
		refs, err := p.ParseListing(listingPage(listingHTML))

		require.NoError(t, err)
		require.Len(t, refs, 3)

		assert.Equal(t, domain.RecordRef{
			URL:      "https://utahavalanchecenter.org/observation/12345",
			Type:     domain.TypeObservation,
			DateText: "02/14/2023",
			Region:   "Logan",
			Title:    "Logan Peak",
			Observer: "M. Hansen",
		}, refs[0])

		assert.Equal(t, "https://utahavalanchecenter.org/avalanche/12344", refs[1].URL)
		assert.Equal(t, domain.TypeAvalanche, refs[1].Type)

		assert.Equal(t, domain.TypeForecast, refs[2].Type)
		assert.Empty(t, refs[2].Observer)
	})

	t.Run("empty table signals end of pagination", func(t *testing.T) {
		html := `<html><body><table>
<tr><th>Date</th><th>Region</th><th>Observation</th><th>Observer</th></tr>
</table></body></html>`
		refs, err := p.ParseListing(listingPage(html))

		require.NoError(t, err)
		assert.Empty(t, refs)
	})

	t.Run("rows without links are skipped", func(t *testing.T) {
		html := `<html><body><table>
<tr><td>02/14/2023</td><td>Logan</td><td>no link here</td><td>X</td></tr>
</table></body></html>`
		refs, err := p.ParseListing(listingPage(html))

		require.NoError(t, err)
		assert.Empty(t, refs)
	})

	t.Run("page without table is unknown layout", func(t *testing.T) {
		_, err := p.ParseListing(listingPage(`<html><body><p>maintenance</p></body></html>`))

		var pe *domain.ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, domain.ParseUnknownLayout, pe.Reason)
	})
}
