package pipeline

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tsunamiml/core/frame"
	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
	"github.com/YuminosukeSato/tsunamiml/preprocessing"
	"github.com/YuminosukeSato/tsunamiml/sklearn/linear_model"
)

var nan = math.NaN()

func trainingData() (*frame.Frame, *mat.Dense) {
	X := frame.MustNew(
		frame.NewFloat("magnitude_Mw", []float64{6.0, 6.2, 6.5, 6.8, 7.0, 8.0, 8.2, 8.5, 8.8, 9.0}),
		frame.NewFloat("intensity", []float64{3, nan, 4, 4, 5, 8, nan, 9, 9, 10}),
	)
	y := mat.NewDense(10, 1, []float64{0, 0, 0, 0, 0, 1, 1, 1, 1, 1})
	return X, y
}

func newTestPipeline() *Pipeline {
	return New(
		Step{Name: "imputer", Estimator: preprocessing.NewIntensityImputer()},
		Step{Name: "scaler", Estimator: preprocessing.NewStandardScalerDefault("magnitude_Mw", "intensity")},
		Step{Name: "classifier", Estimator: linear_model.NewLogisticRegression(
			linear_model.WithLRMaxIter(1000), linear_model.WithLRRandomState(42))},
	)
}

func TestPipeline_FitPredict(t *testing.T) {
	X, y := trainingData()
	p := newTestPipeline()

	require.NoError(t, p.Fit(X, y))
	assert.True(t, p.IsFitted())
	assert.Equal(t, []string{"magnitude_Mw", "intensity"}, p.FeatureNames)
	assert.Equal(t, []int{0, 1}, p.Classes())

	score, err := p.Score(X, y)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.9)

	query := frame.MustNew(
		frame.NewFloat("magnitude_Mw", []float64{6.1, 8.9}),
		frame.NewFloat("intensity", []float64{nan, nan}),
	)
	pred, err := p.Predict(query)
	require.NoError(t, err)
	assert.Equal(t, 0.0, pred.At(0, 0))
	assert.Equal(t, 1.0, pred.At(1, 0))

	proba, err := p.PredictProba(query)
	require.NoError(t, err)
	rows, cols := proba.Dims()
	require.Equal(t, 2, rows)
	require.Equal(t, 2, cols)
	assert.Greater(t, proba.At(1, 1), 0.5)
	assert.InDelta(t, 1.0, proba.At(0, 0)+proba.At(0, 1), 1e-9)
}

func TestPipeline_Make(t *testing.T) {
	p := Make(preprocessing.NewIntensityImputer(), linear_model.NewLogisticRegression())
	steps := p.Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, "step1", steps[0].Name)
	assert.Equal(t, "step2", steps[1].Name)
	assert.Contains(t, p.NamedSteps(), "step2")
}

func TestPipeline_Validate(t *testing.T) {
	tests := []struct {
		name  string
		steps []Step
	}{
		{"empty", nil},
		{"unnamed", []Step{{Name: "", Estimator: linear_model.NewLogisticRegression()}}},
		{"duplicate", []Step{
			{Name: "a", Estimator: preprocessing.NewIntensityImputer()},
			{Name: "a", Estimator: linear_model.NewLogisticRegression()},
		}},
		{"intermediate estimator", []Step{
			{Name: "lr", Estimator: linear_model.NewLogisticRegression()},
			{Name: "final", Estimator: linear_model.NewLogisticRegression()},
		}},
	}
	X, y := trainingData()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.steps...)
			err := p.Fit(X, y)
			var verr *errors.ValidationError
			assert.True(t, errors.As(err, &verr), "got %v", err)
		})
	}
}

func TestPipeline_RejectsUnpreparedFeatures(t *testing.T) {
	_, y := trainingData()
	lr := linear_model.NewLogisticRegression()

	t.Run("missing values", func(t *testing.T) {
		X, _ := trainingData()
		p := New(Step{Name: "classifier", Estimator: lr})
		err := p.Fit(X, y)
		require.Error(t, err)
		var verr *errors.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "intensity", verr.ParamName)
		assert.False(t, p.IsFitted())
	})

	t.Run("text column", func(t *testing.T) {
		X, _ := trainingData()
		require.NoError(t, X.Set(frame.NewString("country", make([]string, 10))))
		p := New(
			Step{Name: "imputer", Estimator: preprocessing.NewIntensityImputer()},
			Step{Name: "classifier", Estimator: lr},
		)
		err := p.Fit(X, y)
		var verr *errors.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "country", verr.ParamName)
	})
}

func TestPipeline_NotFitted(t *testing.T) {
	X, y := trainingData()
	p := newTestPipeline()

	_, err := p.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	_, err = p.PredictProba(X)
	assert.True(t, errors.As(err, &nf))

	_, err = p.Score(X, y)
	assert.True(t, errors.As(err, &nf))

	_, err = p.Transform(X)
	assert.True(t, errors.As(err, &nf))
}

func TestPipeline_MissingColumnAtPredict(t *testing.T) {
	X, y := trainingData()
	p := newTestPipeline()
	require.NoError(t, p.Fit(X, y))

	_, err := p.Predict(X.Drop("magnitude_Mw"))
	var mc *errors.MissingColumnError
	require.True(t, errors.As(err, &mc))
	assert.Contains(t, mc.Columns, "magnitude_Mw")
}

func TestPipeline_FitTransform(t *testing.T) {
	X, _ := trainingData()
	p := New(
		Step{Name: "imputer", Estimator: preprocessing.NewIntensityImputer()},
		Step{Name: "scaler", Estimator: preprocessing.NewStandardScalerDefault("magnitude_Mw")},
	)

	out, err := p.FitTransform(X)
	require.NoError(t, err)
	c, err := out.Column("intensity")
	require.NoError(t, err)
	assert.Equal(t, frame.Int, c.Kind)
	assert.Equal(t, 0, c.CountMissing())

	again, err := p.Transform(X)
	require.NoError(t, err)
	assert.Equal(t, out.String(), again.String())

	features, err := p.TransformFeatures(X)
	require.NoError(t, err)
	ic, _ := features.Column("intensity")
	assert.Equal(t, frame.Int, ic.Kind)
}

func TestPipeline_FitTransformRequiresTransformers(t *testing.T) {
	X, _ := trainingData()
	p := newTestPipeline()
	_, err := p.FitTransform(X)
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestPipeline_Params(t *testing.T) {
	p := newTestPipeline()
	params := p.GetParams()
	assert.Equal(t, "fail", params["imputer__policy"])
	assert.Equal(t, 1000, params["classifier__max_iter"])
	assert.Equal(t, []string{"imputer", "scaler", "classifier"}, params["steps"])

	require.NoError(t, p.SetParams(map[string]interface{}{
		"verbose":              true,
		"imputer__policy":      "constant",
		"classifier__max_iter": 50,
	}))
	assert.True(t, p.Verbose)
	im := p.NamedSteps()["imputer"].(*preprocessing.IntensityImputer)
	assert.Equal(t, preprocessing.FallbackConstant, im.Policy)

	assert.Error(t, p.SetParams(map[string]interface{}{"nope__x": 1}))
	assert.Error(t, p.SetParams(map[string]interface{}{"unknown": 1}))
	assert.Error(t, p.SetParams(map[string]interface{}{"scaler__with_mean": false}))
}

func TestPipeline_SaveLoad(t *testing.T) {
	X, y := trainingData()
	p := newTestPipeline()
	require.NoError(t, p.Fit(X, y))
	want, err := p.PredictProba(X)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.Save(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	assert.True(t, loaded.IsFitted())
	assert.Equal(t, p.FeatureNames, loaded.FeatureNames)

	got, err := loaded.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, got, 1e-12))

	im := loaded.NamedSteps()["imputer"].(*preprocessing.IntensityImputer)
	assert.Len(t, im.MedianByMagnitude, 8)
}

func TestPipeline_SaveLoadFile(t *testing.T) {
	X, y := trainingData()
	p := newTestPipeline()
	require.NoError(t, p.Fit(X, y))

	path := filepath.Join(t.TempDir(), "pipeline.gob")
	require.NoError(t, p.SaveFile(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, loaded.Classes())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.gob"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
