package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/powderlab/avalanche-obs-ingest/internal/domain"
)

func TestArgsMatchStatementOrder(t *testing.T) {
	obs := domain.Observation{
		ID:          "observation-deadbeef01234567",
		Type:        domain.TypeObservation,
		Date:        time.Date(2023, 2, 14, 0, 0, 0, 0, time.UTC),
		Zone:        domain.ZoneLogan,
		Danger:      3,
		DangerText:  "Considerable",
		Title:       "Logan Peak",
		Observer:    "M. Hansen",
		Body:        "Collapsing on north aspects.",
		SourceURL:   "https://utahavalanchecenter.org/observation/12345",
		FetchedAt:   time.Date(2023, 2, 14, 18, 0, 0, 0, time.UTC),
		ContentHash: "abc123",
		Version:     2,
	}

	t.Run("current view row", func(t *testing.T) {
		args := currentArgs(obs)

		assert.Len(t, args, 13)
		assert.Equal(t, obs.ID, args[0])
		assert.Equal(t, "observation", args[1])
		assert.Equal(t, obs.Date, args[2])
		assert.Equal(t, "logan", args[3])
		assert.Equal(t, 3, args[4])
		assert.Equal(t, obs.ContentHash, args[11])
		assert.Equal(t, 2, args[12])
	})

	t.Run("audit row leads with key and version", func(t *testing.T) {
		args := auditArgs(obs)

		assert.Len(t, args, 13)
		assert.Equal(t, obs.ID, args[0])
		assert.Equal(t, 2, args[1])
		assert.Equal(t, "observation", args[2])
		assert.Equal(t, obs.ContentHash, args[12])
	})
}
