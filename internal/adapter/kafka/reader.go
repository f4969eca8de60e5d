// Package kafka adapts segmentio/kafka-go to the scoring stream.
package kafka

import (
	"context"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/YuminosukeSato/tsunamiml/internal/config"
	"github.com/YuminosukeSato/tsunamiml/internal/stream"
	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
	"github.com/YuminosukeSato/tsunamiml/pkg/log"
)

type messageFetcher interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Reader consumes earthquake events from the source topic.
// It implements stream.BatchExtractor.
type Reader struct {
	fetcher       messageFetcher
	flushInterval time.Duration
	logger        log.Logger
}

// NewReader creates a consumer-group reader for the configured source topic.
func NewReader(cfg *config.Config, logger log.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaGroupID,
		Topic:    cfg.KafkaSourceTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newReader(r, cfg.BatchFlushInterval, logger)
}

func newReader(f messageFetcher, flushInterval time.Duration, logger log.Logger) *Reader {
	return &Reader{fetcher: f, flushInterval: flushInterval, logger: logger}
}

// ExtractBatch blocks until one message is available, then keeps reading
// until batchSize messages are collected or the flush interval elapses.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]stream.RawEvent, error) {
	first, err := r.fetcher.FetchMessage(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch message")
	}
	events := make([]stream.RawEvent, 0, batchSize)
	events = append(events, r.toRawEvent(first))

	flushCtx, cancel := context.WithTimeout(ctx, r.flushInterval)
	defer cancel()
	for len(events) < batchSize {
		msg, err := r.fetcher.FetchMessage(flushCtx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, context.DeadlineExceeded) {
				r.logger.Warn("fetch interrupted, flushing partial batch", "error", err, log.BatchSizeKey, len(events))
			}
			break
		}
		events = append(events, r.toRawEvent(msg))
	}
	return events, nil
}

// Close closes the underlying reader.
func (r *Reader) Close() error {
	return r.fetcher.Close()
}

func (r *Reader) toRawEvent(msg kafkago.Message) stream.RawEvent {
	raw := mapMessageToRawEvent(msg)
	raw.Commit = func(ctx context.Context) error {
		return r.fetcher.CommitMessages(ctx, msg)
	}
	return raw
}

func mapMessageToRawEvent(msg kafkago.Message) stream.RawEvent {
	return stream.RawEvent{
		Key:       msg.Key,
		Value:     msg.Value,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
	}
}
