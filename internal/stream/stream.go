// Package stream scores earthquake events read from a message source and
// publishes the predictions to a sink.
package stream

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/YuminosukeSato/tsunamiml/internal/inference"
	"github.com/YuminosukeSato/tsunamiml/internal/observability"
	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
	"github.com/YuminosukeSato/tsunamiml/pkg/log"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]RawEvent, error)
}

// BatchLoader writes scored events to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []ScoredEvent) error
}

// Scorer predicts a batch of inputs.
type Scorer interface {
	PredictBatch(ctx context.Context, inputs []inference.Input) ([]inference.Result, error)
}

// Option configures a Stream.
type Option func(*Stream)

// WithClock sets the time source for scored-at timestamps and backoff sleeps.
func WithClock(c clockwork.Clock) Option {
	return func(s *Stream) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(s *Stream) { s.logger = l }
}

// Stream orchestrates the extract-score-load loop.
type Stream struct {
	extractor BatchExtractor
	scorer    Scorer
	loader    BatchLoader
	metrics   *observability.Metrics
	clock     clockwork.Clock
	logger    log.Logger
	batchSize int
	ready     atomic.Bool
}

// New creates a Stream. batchSize below 1 is treated as 1.
func New(e BatchExtractor, s Scorer, l BatchLoader, metrics *observability.Metrics, batchSize int, opts ...Option) *Stream {
	st := &Stream{
		extractor: e,
		scorer:    s,
		loader:    l,
		metrics:   metrics,
		clock:     clockwork.NewRealClock(),
		logger:    log.GetLoggerWithName("stream"),
		batchSize: max(batchSize, 1),
	}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

// Ready reports whether at least one batch has been published.
func (s *Stream) Ready() bool { return s.ready.Load() }

// CheckReadiness returns nil once a scored batch has been published.
func (s *Stream) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("stream has not published any predictions yet")
	}
	return nil
}

// Run executes the scoring loop until the context is cancelled.
func (s *Stream) Run(ctx context.Context) error {
	s.logger.Info("stream started", log.BatchSizeKey, s.batchSize)
	s.metrics.StreamRunning.Set(1)
	defer s.metrics.StreamRunning.Set(0)

	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stream stopping", "reason", ctx.Err().Error())
			return nil
		default:
		}

		if !s.processBatch(ctx, &backoff) {
			return nil
		}
	}
}

// processBatch runs one extract-score-load cycle. Returns false if the stream should stop.
func (s *Stream) processBatch(ctx context.Context, backoff *time.Duration) bool {
	rawBatch, err := s.extractor.ExtractBatch(ctx, s.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		s.logger.Error("extract batch failed", err)
		return s.backoffOrStop(ctx, backoff)
	}
	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	s.metrics.EventsConsumed.Add(float64(len(rawBatch)))
	s.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = initialBackoff

	events, raws := s.decode(ctx, rawBatch)
	if len(events) == 0 {
		return true
	}
	scored, scoredRaws := s.score(ctx, events, raws)
	if len(scored) == 0 {
		return true
	}

	if err := s.loader.LoadBatch(ctx, scored); err != nil {
		s.metrics.EventErrors.WithLabelValues("publish").Inc()
		s.logger.Error("load batch failed", err, log.BatchSizeKey, len(scored))
		return s.backoffOrStop(ctx, backoff)
	}
	s.metrics.EventsProduced.Add(float64(len(scored)))
	for _, raw := range scoredRaws {
		s.commitOffset(ctx, raw)
	}
	s.ready.Store(true)
	return true
}

// decode parses and validates the batch. Rejected messages are committed and skipped.
func (s *Stream) decode(ctx context.Context, rawBatch []RawEvent) ([]QuakeEvent, []RawEvent) {
	events := make([]QuakeEvent, 0, len(rawBatch))
	raws := make([]RawEvent, 0, len(rawBatch))
	for _, raw := range rawBatch {
		ev, err := ParseRawEvent(raw)
		stage := "decode"
		if err == nil {
			stage = "validate"
			err = ev.Validate()
		}
		if err != nil {
			s.skip(ctx, raw, stage, err)
			continue
		}
		events = append(events, ev)
		raws = append(raws, raw)
	}
	return events, raws
}

// score predicts the batch in one call. When that fails each event is scored
// alone so one bad event does not block the rest.
func (s *Stream) score(ctx context.Context, events []QuakeEvent, raws []RawEvent) ([]ScoredEvent, []RawEvent) {
	inputs := make([]inference.Input, len(events))
	for i, ev := range events {
		inputs[i] = ev.Input
	}

	results, err := s.scorer.PredictBatch(ctx, inputs)
	if err == nil {
		now := s.clock.Now().UTC()
		out := make([]ScoredEvent, len(events))
		for i, ev := range events {
			out[i] = ScoredEvent{ID: ev.ID, Input: ev.Input, Result: results[i], ScoredAt: now}
		}
		return out, raws
	}

	out := make([]ScoredEvent, 0, len(events))
	kept := make([]RawEvent, 0, len(events))
	for i, ev := range events {
		res, err := s.scorer.PredictBatch(ctx, inputs[i:i+1])
		if err != nil {
			s.skip(ctx, raws[i], "predict", err)
			continue
		}
		out = append(out, ScoredEvent{ID: ev.ID, Input: ev.Input, Result: res[0], ScoredAt: s.clock.Now().UTC()})
		kept = append(kept, raws[i])
	}
	return out, kept
}

func (s *Stream) skip(ctx context.Context, raw RawEvent, stage string, err error) {
	s.logger.Warn("event rejected, skipping message",
		"error", err,
		"stage", stage,
		log.KafkaTopicKey, raw.Topic,
		log.KafkaOffsetKey, raw.Offset,
	)
	s.metrics.EventErrors.WithLabelValues(stage).Inc()
	s.commitOffset(ctx, raw)
}

// backoffOrStop sleeps with the current backoff and advances it. Returns
// false if the stream should stop.
func (s *Stream) backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !s.sleep(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff)
	return true
}

func (s *Stream) commitOffset(ctx context.Context, raw RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		s.logger.Warn("commit offset failed", "error", err,
			log.KafkaTopicKey, raw.Topic, log.KafkaOffsetKey, raw.Offset)
	}
}

func nextBackoff(current time.Duration) time.Duration {
	return min(current*2, maxBackoff)
}

func (s *Stream) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := s.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
