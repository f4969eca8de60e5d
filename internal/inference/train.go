package inference

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tsunamiml/core/frame"
	"github.com/YuminosukeSato/tsunamiml/internal/catalog"
	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
	"github.com/YuminosukeSato/tsunamiml/pkg/log"
	"github.com/YuminosukeSato/tsunamiml/preprocessing"
	"github.com/YuminosukeSato/tsunamiml/sklearn/linear_model"
	"github.com/YuminosukeSato/tsunamiml/sklearn/pipeline"
)

// TrainOptions tunes the exported pipeline.
type TrainOptions struct {
	C        float64
	MaxIter  int
	Seed     int64
	Fallback *float64 // constant used when no intensity median is defined
}

// DefaultTrainOptions returns the settings used by the fit command.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{C: 1.0, MaxIter: 500, Seed: 42}
}

var numericFeatures = []string{
	catalog.ColMagnitude,
	catalog.ColDepth,
	catalog.ColLatitude,
	catalog.ColLongitude,
	catalog.ColYear,
	catalog.ColRegion,
}

// NewInferencePipeline assembles the unfitted pipeline expected by Predictor:
// intensity imputation, median fill of the other numeric inputs, one-hot
// country, standardization and a logistic classifier.
func NewInferencePipeline(opts TrainOptions) *pipeline.Pipeline {
	var imputerOpts []preprocessing.ImputerOption
	if opts.Fallback != nil {
		imputerOpts = append(imputerOpts, preprocessing.WithUndefinedFallback(*opts.Fallback))
	}

	scaled := append(append([]string(nil), numericFeatures...), catalog.ColIntensity)
	return pipeline.New(
		pipeline.Step{Name: "intensity", Estimator: preprocessing.NewIntensityImputer(imputerOpts...)},
		pipeline.Step{Name: "median", Estimator: preprocessing.NewMedianImputer(numericFeatures...)},
		pipeline.Step{Name: "country", Estimator: preprocessing.NewOneHotEncoder(catalog.ColCountry)},
		pipeline.Step{Name: "scaler", Estimator: preprocessing.NewStandardScalerDefault(scaled...)},
		pipeline.Step{Name: "classifier", Estimator: linear_model.NewLogisticRegression(
			linear_model.WithLRC(opts.C),
			linear_model.WithLRMaxIter(opts.MaxIter),
			linear_model.WithLRRandomState(opts.Seed),
		)},
	)
}

// TrainingSet extracts the inference feature columns and the tsunami target
// from a catalog. Every feature column must be present.
func TrainingSet(c *catalog.Catalog) (*frame.Frame, *mat.Dense, error) {
	if err := c.Frame.Require("inference.TrainingSet", FeatureColumns...); err != nil {
		return nil, nil, err
	}
	if c.Len() == 0 {
		return nil, nil, errors.Wrap(errors.ErrEmptyData, "training set")
	}

	cols := make([]*frame.Series, 0, len(FeatureColumns))
	for _, name := range FeatureColumns {
		s, _ := c.Frame.Column(name)
		if name == catalog.ColCountry {
			s = s.AsString()
		} else {
			s = s.AsFloat()
		}
		cols = append(cols, s)
	}
	X, err := frame.New(cols...)
	if err != nil {
		return nil, nil, err
	}

	ts, _ := c.Frame.Column(catalog.ColTsunami)
	y := mat.NewDense(c.Len(), 1, nil)
	for i := 0; i < c.Len(); i++ {
		y.Set(i, 0, ts.Float(i))
	}
	return X, y, nil
}

// Train fits a fresh inference pipeline on the catalog and evaluates it on
// the training rows.
func Train(c *catalog.Catalog, opts TrainOptions) (*pipeline.Pipeline, Report, error) {
	X, y, err := TrainingSet(c)
	if err != nil {
		return nil, Report{}, err
	}
	start := time.Now()
	p := NewInferencePipeline(opts)
	if err := p.Fit(X, y); err != nil {
		return nil, Report{}, errors.Wrap(err, "train")
	}
	report, err := Evaluate(p, X, y)
	if err != nil {
		return nil, Report{}, err
	}

	log.GetLoggerWithName("inference").Info("Pipeline trained",
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, c.Len(),
		log.FeaturesKey, len(p.FeatureNames),
		log.AccuracyKey, report.Accuracy,
		"auc", report.AUC,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return p, report, nil
}
