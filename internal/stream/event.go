package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/YuminosukeSato/tsunamiml/internal/inference"
	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
)

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// QuakeEvent is the JSON payload of a source message.
type QuakeEvent struct {
	ID string `json:"id"`
	inference.Input
}

// ScoredEvent is published to the sink topic for every scored quake.
type ScoredEvent struct {
	ID       string           `json:"id"`
	Input    inference.Input  `json:"input"`
	Result   inference.Result `json:"result"`
	ScoredAt time.Time        `json:"scored_at"`
}

// ParseRawEvent decodes a source message. A message without
// an id falls back to its Kafka key.
func ParseRawEvent(raw RawEvent) (QuakeEvent, error) {
	var ev QuakeEvent
	if err := json.Unmarshal(raw.Value, &ev); err != nil {
		return QuakeEvent{}, errors.Wrap(err, "decode quake event")
	}
	if ev.ID == "" {
		ev.ID = string(raw.Key)
	}
	return ev, nil
}
