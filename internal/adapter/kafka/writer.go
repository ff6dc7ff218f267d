package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/aurora-forecast-etl/internal/config"
	"github.com/couchcryptid/aurora-forecast-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

const eventTypePublished = "forecast_published"

// Writer produces "forecast published" events to a Kafka topic.
// It implements pipeline.EventNotifier.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// NotifyPublished writes one event keyed by the artifact path, so every
// version of an artifact lands on the same partition in publish order.
func (w *Writer) NotifyPublished(ctx context.Context, event domain.PublishedEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write published event: %w", err)
	}
	w.logger.Debug("published event sent", "topic", w.writer.Topic, "run_id", event.RunID)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a PublishedEvent into a Kafka message.
func serializeToMessage(event domain.PublishedEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize published event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Path),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(eventTypePublished)},
			{Key: "published_at", Value: []byte(event.PublishedAt.Format(time.RFC3339))},
		},
	}, nil
}
