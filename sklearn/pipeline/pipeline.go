// Package pipeline implements a scikit-learn compatible Pipeline that chains
// frame transformers and a final matrix estimator.
//
// Intermediate steps receive and return *frame.Frame. Before the final step
// the frame is converted to a matrix; the numeric columns that reach the
// estimator at fit time are recorded and selected in the same order at
// prediction time.
package pipeline

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tsunamiml/core/frame"
	"github.com/YuminosukeSato/tsunamiml/core/model"
	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
	"github.com/YuminosukeSato/tsunamiml/pkg/log"
)

// Step represents a single step in the pipeline.
// Each step is a tuple of (name, transformer/estimator).
type Step struct {
	Name      string      // Name of this step (for identification)
	Estimator interface{} // model.Transformer, or a model.Estimator for the final step
}

// Pipeline chains multiple transforms and optionally a final estimator.
//
// Fields are exported for gob encoding. Every step type must be registered
// with model.Register before a pipeline holding it is saved or loaded.
type Pipeline struct {
	model.BaseEstimator

	Stages []Step

	// FeatureNames are the columns passed to the final estimator, in order.
	FeatureNames []string

	Verbose bool

	logger log.Logger
}

// New creates a new Pipeline with the given steps.
// This is equivalent to sklearn.pipeline.Pipeline(steps)
func New(steps ...Step) *Pipeline {
	return &Pipeline{
		Stages: append([]Step(nil), steps...),
		logger: log.GetLoggerWithName("pipeline"),
	}
}

// Make is a convenience function similar to sklearn.pipeline.make_pipeline
// It automatically generates names for the steps.
func Make(estimators ...interface{}) *Pipeline {
	steps := make([]Step, len(estimators))
	for i, estimator := range estimators {
		steps[i] = Step{Name: fmt.Sprintf("step%d", i+1), Estimator: estimator}
	}
	return New(steps...)
}

func (p *Pipeline) getLogger() log.Logger {
	if p.logger != nil {
		return p.logger
	}
	return log.GetLoggerWithName("pipeline")
}

// Validate checks step names and step types.
func (p *Pipeline) Validate() error {
	if len(p.Stages) == 0 {
		return errors.NewValidationError("steps", "pipeline has no steps", 0)
	}
	seen := make(map[string]struct{}, len(p.Stages))
	for i, step := range p.Stages {
		if step.Name == "" {
			return errors.NewValidationError("pipeline step", "step name must not be empty", i)
		}
		if _, dup := seen[step.Name]; dup {
			return errors.NewValidationError("pipeline step", "duplicate step name", step.Name)
		}
		seen[step.Name] = struct{}{}

		if i < len(p.Stages)-1 {
			if _, ok := step.Estimator.(model.Transformer); !ok {
				return errors.NewValidationError("pipeline step",
					"all intermediate steps must be transformers", step.Name)
			}
		}
	}
	return nil
}

func (p *Pipeline) final() Step {
	return p.Stages[len(p.Stages)-1]
}

func (p *Pipeline) intermediates() []Step {
	return p.Stages[:len(p.Stages)-1]
}

// Fit fits every transformer in turn on the output of the previous one and
// then fits the final estimator on the resulting numeric columns.
func (p *Pipeline) Fit(X *frame.Frame, y mat.Matrix) error {
	if err := p.Validate(); err != nil {
		return err
	}
	estimator, ok := p.final().Estimator.(model.Fitter)
	if !ok {
		return errors.NewValidationError("pipeline final step",
			"final step must have Fit(X, y mat.Matrix) method", p.final().Name)
	}

	start := time.Now()
	Xt, err := p.fitTransformers(X, p.intermediates())
	if err != nil {
		return err
	}

	names := Xt.Names()
	M, err := featureMatrix(Xt, names)
	if err != nil {
		return errors.Wrapf(err, "failed to build features for final step '%s'", p.final().Name)
	}
	if err := estimator.Fit(M, y); err != nil {
		return errors.Wrapf(err, "failed to fit final step '%s'", p.final().Name)
	}

	p.FeatureNames = names
	p.SetFitted()
	p.getLogger().Info("Fit completed",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, X.NRows(),
		log.FeaturesKey, len(names),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (p *Pipeline) fitTransformers(X *frame.Frame, steps []Step) (*frame.Frame, error) {
	Xt := X
	for _, step := range steps {
		transformer := step.Estimator.(model.Transformer)
		stepStart := time.Now()

		var err error
		Xt, err = transformer.FitTransform(Xt)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fit step '%s'", step.Name)
		}
		if p.Verbose {
			p.getLogger().Info("Step fitted",
				log.StepKey, step.Name,
				log.DurationMsKey, time.Since(stepStart).Milliseconds(),
			)
		}
	}
	return Xt, nil
}

// TransformFeatures applies every step except the final one.
func (p *Pipeline) TransformFeatures(X *frame.Frame) (*frame.Frame, error) {
	if !p.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "TransformFeatures")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return transformAll(X, p.intermediates())
}

func transformAll(X *frame.Frame, steps []Step) (*frame.Frame, error) {
	Xt := X
	for _, step := range steps {
		transformer, ok := step.Estimator.(model.Transformer)
		if !ok {
			return nil, errors.NewValidationError("pipeline step",
				"intermediate steps must be transformers", step.Name)
		}
		var err error
		Xt, err = transformer.Transform(Xt)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to transform at step '%s'", step.Name)
		}
	}
	return Xt, nil
}

func (p *Pipeline) features(X *frame.Frame) (*mat.Dense, error) {
	Xt, err := p.TransformFeatures(X)
	if err != nil {
		return nil, err
	}
	return featureMatrix(Xt, p.FeatureNames)
}

// featureMatrix selects names from X, rejecting text and missing values.
func featureMatrix(X *frame.Frame, names []string) (*mat.Dense, error) {
	if err := X.Require("Pipeline.features", names...); err != nil {
		return nil, err
	}
	for _, name := range names {
		c, _ := X.Column(name)
		if !c.IsNumeric() {
			return nil, errors.NewValidationError(name,
				"feature column is not numeric; add an encoder step", c.Kind.String())
		}
		for i := 0; i < c.Len(); i++ {
			if math.IsNaN(c.Float(i)) {
				return nil, errors.NewValidationError(name,
					"feature column has missing values; add an imputer step", i)
			}
		}
	}
	return X.Matrix(names...)
}

// Predict applies transforms to the data, and predict with the final estimator.
func (p *Pipeline) Predict(X *frame.Frame) (mat.Matrix, error) {
	if !p.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "Predict")
	}
	predictor, ok := p.final().Estimator.(model.Predictor)
	if !ok {
		return nil, errors.NewValidationError("pipeline final step",
			"final step must have Predict method for prediction", p.final().Name)
	}
	M, err := p.features(X)
	if err != nil {
		return nil, err
	}
	return predictor.Predict(M)
}

// PredictProba applies transforms to the data, and predict_proba with the final estimator.
func (p *Pipeline) PredictProba(X *frame.Frame) (mat.Matrix, error) {
	if !p.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "PredictProba")
	}
	predictor, ok := p.final().Estimator.(interface {
		PredictProba(mat.Matrix) (mat.Matrix, error)
	})
	if !ok {
		return nil, errors.NewValidationError("pipeline final step",
			"final step must have PredictProba method", p.final().Name)
	}
	M, err := p.features(X)
	if err != nil {
		return nil, err
	}
	return predictor.PredictProba(M)
}

// Score returns the score of the final estimator.
func (p *Pipeline) Score(X *frame.Frame, y mat.Matrix) (float64, error) {
	if !p.IsFitted() {
		return 0, errors.NewNotFittedError("Pipeline", "Score")
	}
	scorer, ok := p.final().Estimator.(interface {
		Score(mat.Matrix, mat.Matrix) (float64, error)
	})
	if !ok {
		return 0, errors.NewValidationError("pipeline final step",
			"final step must have Score method", p.final().Name)
	}
	M, err := p.features(X)
	if err != nil {
		return 0, err
	}
	return scorer.Score(M, y)
}

// Classes returns the class labels of a classifier final step.
func (p *Pipeline) Classes() []int {
	if len(p.Stages) == 0 {
		return nil
	}
	if c, ok := p.final().Estimator.(interface{ Classes() []int }); ok {
		return c.Classes()
	}
	return nil
}

// Transform applies every step. Only valid when all steps are transformers.
func (p *Pipeline) Transform(X *frame.Frame) (*frame.Frame, error) {
	if !p.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "Transform")
	}
	return transformAll(X, p.Stages)
}

// FitTransform fits a transformer-only pipeline and returns the transformed data.
func (p *Pipeline) FitTransform(X *frame.Frame) (*frame.Frame, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if _, ok := p.final().Estimator.(model.Transformer); !ok {
		return nil, errors.NewValidationError("pipeline step",
			"all steps must be transformers for FitTransform", p.final().Name)
	}
	Xt, err := p.fitTransformers(X, p.Stages)
	if err != nil {
		return nil, err
	}
	p.FeatureNames = Xt.Names()
	p.SetFitted()
	return Xt, nil
}

// GetParams returns the parameters of the pipeline, including the parameters
// of each step prefixed with "<step>__".
func (p *Pipeline) GetParams() map[string]interface{} {
	params := map[string]interface{}{
		"verbose": p.Verbose,
	}
	names := make([]string, len(p.Stages))
	for i, step := range p.Stages {
		names[i] = step.Name
		if getter, ok := step.Estimator.(model.ParamsGetter); ok {
			for key, value := range getter.GetParams() {
				params[step.Name+"__"+key] = value
			}
		}
	}
	params["steps"] = names
	return params
}

// SetParams sets "verbose" and nested "<step>__<param>" parameters.
func (p *Pipeline) SetParams(params map[string]interface{}) error {
	nested := make(map[string]map[string]interface{})
	for key, value := range params {
		if key == "verbose" {
			v, ok := value.(bool)
			if !ok {
				return errors.NewValidationError(key, "must be a bool", value)
			}
			p.Verbose = v
			continue
		}
		stepName, param, found := cutParam(key)
		if !found {
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if nested[stepName] == nil {
			nested[stepName] = make(map[string]interface{})
		}
		nested[stepName][param] = value
	}
	for stepName, stepParams := range nested {
		est, ok := p.NamedSteps()[stepName]
		if !ok {
			return errors.NewValidationError(stepName, "no such step", stepParams)
		}
		setter, ok := est.(model.ParamsSetter)
		if !ok {
			return errors.NewValidationError(stepName, "step does not accept parameters", stepParams)
		}
		if err := setter.SetParams(stepParams); err != nil {
			return errors.Wrapf(err, "set params of step '%s'", stepName)
		}
	}
	return nil
}

func cutParam(key string) (step, param string, ok bool) {
	step, param, ok = strings.Cut(key, "__")
	return step, param, ok && step != "" && param != ""
}

// NamedSteps returns the steps as a map for easy access by name.
func (p *Pipeline) NamedSteps() map[string]interface{} {
	named := make(map[string]interface{}, len(p.Stages))
	for _, step := range p.Stages {
		named[step.Name] = step.Estimator
	}
	return named
}

// Steps returns the list of steps.
func (p *Pipeline) Steps() []Step {
	return append([]Step(nil), p.Stages...)
}

// Save writes the pipeline with gob.
func (p *Pipeline) Save(w io.Writer) error {
	return model.SaveModelToWriter(p, w)
}

// SaveFile writes the pipeline to path.
func (p *Pipeline) SaveFile(path string) error {
	return model.SaveModel(p, path)
}

// Load reads a pipeline written by Save.
func Load(r io.Reader) (*Pipeline, error) {
	p := &Pipeline{}
	if err := model.LoadModelFromReader(p, r); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(err, "loaded pipeline is invalid")
	}
	return p, nil
}

// LoadFile reads a pipeline from path. A missing file yields an error
// satisfying errors.Is(err, os.ErrNotExist).
func LoadFile(path string) (*Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open pipeline artifact %s", path)
	}
	defer f.Close()
	return Load(f)
}

func init() {
	model.Register(&Pipeline{})
}
