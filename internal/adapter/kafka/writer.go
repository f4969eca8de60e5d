package kafka

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/YuminosukeSato/tsunamiml/internal/config"
	"github.com/YuminosukeSato/tsunamiml/internal/stream"
	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
	"github.com/YuminosukeSato/tsunamiml/pkg/log"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces scored events to the sink topic.
// It implements stream.BatchLoader.
type Writer struct {
	writer messageWriter
	logger log.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger log.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch publishes the scored events in a single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, events []stream.ScoredEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return errors.Wrapf(err, "write %d scored events", len(msgs))
	}
	w.logger.Debug("scored events published", log.BatchSizeKey, len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeToMessage(event stream.ScoredEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, errors.Wrap(err, "serialize scored event")
	}
	return kafkago.Message{
		Key:   []byte(event.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "label", Value: []byte(event.Result.Label)},
			{Key: "scored_at", Value: []byte(event.ScoredAt.Format(time.RFC3339))},
		},
	}, nil
}
