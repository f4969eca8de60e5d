package inference

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tsunamiml/core/frame"
	"github.com/YuminosukeSato/tsunamiml/metrics"
	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
	"github.com/YuminosukeSato/tsunamiml/sklearn/pipeline"
)

// Report summarizes binary classification quality on a labelled set.
type Report struct {
	Samples   int     `json:"samples"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	AUC       float64 `json:"auc"`
	LogLoss   float64 `json:"log_loss"`
}

// Evaluate scores a fitted pipeline against labels y (n×1, values 0/1).
func Evaluate(p *pipeline.Pipeline, X *frame.Frame, y mat.Matrix) (Report, error) {
	positive := -1
	for i, c := range p.Classes() {
		if c == 1 {
			positive = i
		}
	}
	if positive < 0 {
		return Report{}, errors.NewValidationError("classes", "pipeline has no tsunami class 1", p.Classes())
	}

	pred, err := p.Predict(X)
	if err != nil {
		return Report{}, err
	}
	proba, err := p.PredictProba(X)
	if err != nil {
		return Report{}, err
	}

	n, _ := pred.Dims()
	if rows, _ := y.Dims(); rows != n {
		return Report{}, errors.NewDimensionError("Evaluate", n, rows, 0)
	}
	yTrue := mat.NewVecDense(n, nil)
	yPred := mat.NewVecDense(n, nil)
	score := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		yTrue.SetVec(i, y.At(i, 0))
		yPred.SetVec(i, pred.At(i, 0))
		score.SetVec(i, proba.At(i, positive))
	}

	r := Report{Samples: n}
	steps := []struct {
		dst *float64
		fn  func(a, b *mat.VecDense) (float64, error)
		in  *mat.VecDense
	}{
		{&r.Accuracy, metrics.Accuracy, yPred},
		{&r.Precision, metrics.Precision, yPred},
		{&r.Recall, metrics.Recall, yPred},
		{&r.F1, metrics.F1Score, yPred},
		{&r.AUC, metrics.AUC, score},
		{&r.LogLoss, metrics.BinaryLogLoss, score},
	}
	for _, s := range steps {
		if *s.dst, err = s.fn(yTrue, s.in); err != nil {
			return Report{}, errors.Wrap(err, "evaluate")
		}
	}
	return r, nil
}
