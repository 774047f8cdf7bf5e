package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/sst-heatwave-service/internal/config"
	"github.com/couchcryptid/sst-heatwave-service/internal/domain"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces heatwave notices to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured events topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaEventsTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes and writes notices in a single WriteMessages call. Notices
// are keyed by site so one site's updates stay ordered on one partition.
func (w *Writer) Publish(ctx context.Context, notices []domain.HeatwaveNotice) error {
	if len(notices) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(notices))
	for i := range notices {
		msg, err := serializeToMessage(notices[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write heatwave notices: %w", err)
	}
	w.logger.Debug("heatwave notices published", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a HeatwaveNotice into a Kafka message. event_id is
// stable across updates of one event; message_id is unique per delivery.
func serializeToMessage(notice domain.HeatwaveNotice) (kafkago.Message, error) {
	data, err := json.Marshal(notice)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize heatwave notice: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(notice.Location),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_id", Value: []byte(notice.ID)},
			{Key: "status", Value: []byte(notice.Status)},
			{Key: "detected_at", Value: []byte(notice.DetectedAt.Format(time.RFC3339))},
			{Key: "message_id", Value: []byte(uuid.NewString())},
		},
	}, nil
}
