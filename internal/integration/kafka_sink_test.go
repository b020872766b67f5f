//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	kafkaadapter "github.com/powderlab/avalanche-obs-ingest/internal/adapter/kafka"
	"github.com/powderlab/avalanche-obs-ingest/internal/dedup"
	"github.com/powderlab/avalanche-obs-ingest/internal/domain"
	"github.com/powderlab/avalanche-obs-ingest/internal/observability"
	"github.com/powderlab/avalanche-obs-ingest/internal/parser"
	"github.com/powderlab/avalanche-obs-ingest/internal/pipeline"
)

const testTopic = "test-avalanche-observations"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 4}))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

// startKafka runs a single-node Kafka container and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "resolve brokers")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func recordPage(title, date, region, danger string) string {
	return fmt.Sprintf(`<html><body><h1 class="page-title">%s</h1>
<div class="field"><div class="field-label">Observation Date</div><div class="field-value">%s</div></div>
<div class="field"><div class="field-label">Region</div><div class="field-value">%s</div></div>
<div class="field"><div class="field-label">Danger Rating</div><div class="field-value">%s</div></div>
</body></html>`, title, date, region, danger)
}

// startSource serves a two-record listing plus its record pages.
func startSource(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/observations", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "" {
			// Past the first page: empty listing ends the walk.
			w.Write([]byte(`<html><body><table><tr><th>a</th></tr></table></body></html>`))
			return
		}
		w.Write([]byte(`<html><body><table>
<tr><th>Date</th><th>Region</th><th>Observation</th><th>Observer</th></tr>
<tr><td>02/14/2023</td><td>Logan</td><td><a href="/observation/1">Observation: Logan Peak</a></td><td>M. Hansen</td></tr>
<tr><td>02/13/2023</td><td>Salt Lake</td><td><a href="/avalanche/2">Avalanche: Cardiff Fork</a></td><td>UAC Staff</td></tr>
</table></body></html>`))
	})
	mux.HandleFunc("/observation/1", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(recordPage("Observation: Logan Peak", "02/14/2023", "Logan", "Considerable")))
	})
	mux.HandleFunc("/avalanche/2", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(recordPage("Avalanche: Cardiff Fork", "02/13/2023", "Salt Lake", "High")))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type httpFetcher struct{ client *http.Client }

func (f *httpFetcher) Fetch(ctx context.Context, url string) (domain.RawPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.RawPage{}, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return domain.RawPage{}, &domain.FetchError{URL: url, Reason: domain.FetchTimeout, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.RawPage{}, &domain.FetchError{URL: url, Reason: domain.FetchHTTPStatus, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.RawPage{}, &domain.FetchError{URL: url, Reason: domain.FetchTimeout, Err: err}
	}
	return domain.RawPage{URL: url, FetchedAt: time.Now().UTC(), StatusCode: resp.StatusCode, Body: body}, nil
}

func testNormalizer() *domain.Normalizer {
	return domain.NewNormalizer(domain.Tables{
		ZoneAliases: map[string]domain.Zone{
			"logan":     domain.ZoneLogan,
			"salt lake": domain.ZoneSaltLake,
		},
		DangerScale: map[string]int{
			"low": 1, "moderate": 2, "considerable": 3, "high": 4, "extreme": 5,
		},
		DateLayouts: []string{"01/02/2006"},
		Location:    time.UTC,
	})
}

// TestKafkaSinkEndToEnd runs a full pipeline pass against a local HTTP
// source with a real Kafka broker as the only sink and verifies that
// every audit-trail version is published keyed by identity key.
func TestKafkaSinkEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	source := startSource(t)

	writer := kafkaadapter.NewWriter([]string{broker}, testTopic, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(
		&httpFetcher{client: source.Client()},
		parser.New(),
		testNormalizer(),
		dedup.NewStore(),
		[]pipeline.DatasetWriter{writer},
		discardLogger(),
		observability.NewMetricsForTesting(),
		pipeline.Config{
			BaseURL:     source.URL,
			SeasonStart: time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC),
			SeasonEnd:   time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC),
			PageCap:     5,
			Workers:     2,
		},
	)
	require.NoError(t, p.Run(ctx))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	received := map[string]domain.Observation{}
	for len(received) < 2 {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read from sink topic")

		var obs domain.Observation
		require.NoError(t, json.Unmarshal(msg.Value, &obs))
		assert.Equal(t, obs.ID, string(msg.Key), "message keyed by identity key")

		headers := map[string]string{}
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, string(obs.Type), headers["record_type"])
		_, err = time.Parse(time.RFC3339, headers["processed_at"])
		assert.NoError(t, err, "processed_at header is RFC3339")

		received[obs.ID] = obs
	}

	var logan, cardiff *domain.Observation
	for id := range received {
		obs := received[id]
		switch obs.Zone {
		case domain.ZoneLogan:
			logan = &obs
		case domain.ZoneSaltLake:
			cardiff = &obs
		}
	}

	require.NotNil(t, logan, "expected the Logan observation on the topic")
	assert.Equal(t, domain.TypeObservation, logan.Type)
	assert.Equal(t, 3, logan.Danger)
	assert.Equal(t, 1, logan.Version)
	assert.Equal(t, time.Date(2023, 2, 14, 0, 0, 0, 0, time.UTC), logan.Date.UTC())

	require.NotNil(t, cardiff, "expected the Cardiff avalanche on the topic")
	assert.Equal(t, domain.TypeAvalanche, cardiff.Type)
	assert.Equal(t, 4, cardiff.Danger)
}
