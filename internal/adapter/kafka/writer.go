// Package kafka publishes normalized observation versions for
// downstream consumers. It is a streaming complement to the table
// sinks: every audit-trail version is published, keyed by identity key,
// so consumers can materialize either the current view or the full
// history.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/powderlab/avalanche-obs-ingest/internal/domain"
)

// Writer produces observation messages to a Kafka topic.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// WriteCurrent is a no-op: the stream carries versions, and consumers
// derive the current view by compacting on the message key.
func (w *Writer) WriteCurrent(_ context.Context, _ []domain.Observation) error {
	return nil
}

// AppendVersions serializes and publishes audit-trail versions in a
// single WriteMessages call.
func (w *Writer) AppendVersions(ctx context.Context, versions []domain.Observation) error {
	if len(versions) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(versions))
	for i := range versions {
		msg, err := serializeToMessage(versions[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

// AppendRejections is a no-op; the rejection log is a triage artifact
// for operators, not a consumer-facing stream.
func (w *Writer) AppendRejections(_ context.Context, _ []domain.Rejection) error {
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Observation into a Kafka message keyed
// by identity key.
func serializeToMessage(obs domain.Observation) (kafkago.Message, error) {
	data, err := json.Marshal(obs)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize observation: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(obs.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "record_type", Value: []byte(obs.Type)},
			{Key: "processed_at", Value: []byte(obs.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
