package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powderlab/avalanche-obs-ingest/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	obs := domain.Observation{
		ID:          "observation-deadbeef01234567",
		Type:        domain.TypeObservation,
		Date:        time.Date(2023, 2, 14, 0, 0, 0, 0, time.UTC),
		Zone:        domain.ZoneLogan,
		Danger:      3,
		DangerText:  "Considerable",
		Title:       "Logan Peak",
		SourceURL:   "https://utahavalanchecenter.org/observation/12345",
		ContentHash: "abc123",
		ProcessedAt: time.Date(2023, 2, 14, 19, 0, 0, 0, time.UTC),
		Version:     2,
	}

	msg, err := serializeToMessage(obs)

	require.NoError(t, err)
	assert.Equal(t, []byte(obs.ID), msg.Key)

	var decoded domain.Observation
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, obs.ID, decoded.ID)
	assert.Equal(t, domain.ZoneLogan, decoded.Zone)
	assert.Equal(t, 3, decoded.Danger)
	assert.Equal(t, 2, decoded.Version)
	assert.True(t, decoded.Date.Equal(obs.Date))

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "observation", headers["record_type"])
	assert.Equal(t, "2023-02-14T19:00:00Z", headers["processed_at"])
}

func TestSerializeToMessageEmptyKey(t *testing.T) {
	msg, err := serializeToMessage(domain.Observation{Type: domain.TypeForecast})

	require.NoError(t, err)
	assert.Empty(t, msg.Key)
}
