// Package inference runs a fitted tsunami pipeline on earthquake parameters.
package inference

import (
	"context"
	"io"
	"math"
	"time"

	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
	"github.com/YuminosukeSato/tsunamiml/pkg/log"
	"github.com/YuminosukeSato/tsunamiml/sklearn/pipeline"

	// step types stored in pipeline artifacts
	_ "github.com/YuminosukeSato/tsunamiml/preprocessing"
	_ "github.com/YuminosukeSato/tsunamiml/sklearn/linear_model"
)

// Labels reported for a prediction.
const (
	LabelLikely   = "Tsunami likely"
	LabelUnlikely = "Tsunami unlikely"
)

// Result is the outcome of one prediction.
type Result struct {
	Tsunami bool   `json:"tsunami"`
	Label   string `json:"label"`
	// Probability of the tsunami class, nil when the model gives none or it
	// is not finite.
	Probability *float64 `json:"probability,omitempty"`
	// Imputed is true when the intensity was filled by the model.
	Imputed bool `json:"imputed_intensity"`
}

// Observer is notified after every prediction.
type Observer interface {
	ObservePrediction(label string, imputed bool, elapsed time.Duration)
	ObservePredictionError()
}

type nopObserver struct{}

func (nopObserver) ObservePrediction(string, bool, time.Duration) {}
func (nopObserver) ObservePredictionError()                      {}

// Option configures a Predictor.
type Option func(*Predictor)

// WithObserver sets the prediction observer.
func WithObserver(o Observer) Option {
	return func(p *Predictor) { p.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(p *Predictor) { p.logger = l }
}

// Predictor predicts tsunami likelihood with a fitted pipeline. It is safe
// for concurrent use.
type Predictor struct {
	pipeline *pipeline.Pipeline
	positive int
	observer Observer
	logger   log.Logger
}

// New wraps a fitted binary pipeline. The positive class is label 1.
func New(p *pipeline.Pipeline, opts ...Option) (*Predictor, error) {
	if p == nil || !p.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "inference.New")
	}
	positive := -1
	for i, c := range p.Classes() {
		if c == 1 {
			positive = i
		}
	}
	if positive < 0 {
		return nil, errors.NewValidationError("classes", "pipeline has no tsunami class 1", p.Classes())
	}

	pr := &Predictor{
		pipeline: p,
		positive: positive,
		observer: nopObserver{},
		logger:   log.GetLoggerWithName("inference"),
	}
	for _, opt := range opts {
		opt(pr)
	}
	return pr, nil
}

// Load reads a pipeline artifact from path. A missing file yields an error
// satisfying errors.Is(err, os.ErrNotExist).
func Load(path string, opts ...Option) (*Predictor, error) {
	p, err := pipeline.LoadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "load model")
	}
	return New(p, opts...)
}

// LoadReader reads a pipeline artifact from r.
func LoadReader(r io.Reader, opts ...Option) (*Predictor, error) {
	p, err := pipeline.Load(r)
	if err != nil {
		return nil, errors.Wrap(err, "load model")
	}
	return New(p, opts...)
}

// Pipeline returns the wrapped pipeline.
func (p *Predictor) Pipeline() *pipeline.Pipeline { return p.pipeline }

// Predict validates in and returns the predicted label.
func (p *Predictor) Predict(ctx context.Context, in Input) (Result, error) {
	results, err := p.PredictBatch(ctx, []Input{in})
	if err != nil {
		return Result{}, err
	}
	return results[0], nil
}

// PredictBatch predicts all inputs with one pipeline pass. An invalid input
// fails the whole batch.
func (p *Predictor) PredictBatch(ctx context.Context, inputs []Input) ([]Result, error) {
	if len(inputs) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "predict")
	}
	for i, in := range inputs {
		if err := in.Validate(); err != nil {
			p.observer.ObservePredictionError()
			return nil, errors.Wrapf(err, "input %d", i)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	X := Frame(inputs...)
	labels, err := p.pipeline.Predict(X)
	if err != nil {
		p.observer.ObservePredictionError()
		p.logger.Error("Prediction failed", err, log.SamplesKey, len(inputs))
		return nil, errors.Wrap(err, "predict")
	}
	probas, err := p.pipeline.PredictProba(X)
	if err != nil {
		// a final step without probabilities still yields labels
		probas = nil
	}

	elapsed := time.Since(start)
	results := make([]Result, len(inputs))
	for i, in := range inputs {
		r := Result{
			Tsunami: int(labels.At(i, 0)) == 1,
			Imputed: in.Intensity == nil,
		}
		r.Label = LabelUnlikely
		if r.Tsunami {
			r.Label = LabelLikely
		}
		if probas != nil {
			if v := probas.At(i, p.positive); !math.IsNaN(v) && !math.IsInf(v, 0) {
				r.Probability = &v
			}
		}
		results[i] = r
		p.observer.ObservePrediction(r.Label, r.Imputed, elapsed/time.Duration(len(inputs)))
	}

	p.logger.Debug("Prediction completed",
		log.OperationKey, log.OperationPredict,
		log.SamplesKey, len(inputs),
		log.DurationMsKey, elapsed.Milliseconds(),
	)
	return results, nil
}
