package linear_model

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tsunamiml/core/model"
	"github.com/YuminosukeSato/tsunamiml/core/parallel"
	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
	"github.com/YuminosukeSato/tsunamiml/pkg/log"
)

const logisticVersion = "1.0.0"

// LogisticRegression implements logistic regression for classification.
// Two classes are fitted as a single binary model, more classes one-vs-rest.
// Compatible with scikit-learn's LogisticRegression.
//
// Fields are exported so a fitted model can be stored with gob as part of a
// pipeline artifact.
type LogisticRegression struct {
	model.BaseEstimator

	// Hyperparameters
	Penalty      string  // Regularization: "l2" or "none"
	C            float64 // Inverse regularization strength (1/alpha)
	FitIntercept bool
	MaxIter      int
	Tol          float64 // Stop when every gradient component is below Tol
	LearningRate float64 // Base step, decayed as LearningRate/(1+0.1*iter)
	RandomState  int64   // Seed for the weight initialization, negative for random

	// Model parameters
	Coef        [][]float64 // n_models x n_features, one row for binary problems
	Intercept   []float64
	ClassLabels []int // Sorted unique class labels
	NFeatures   int
	NIter       []int // Iterations used per model

	rand *rand.Rand
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		Penalty:      "l2",
		C:            1.0,
		FitIntercept: true,
		MaxIter:      100,
		Tol:          1e-4,
		LearningRate: 1.0,
		RandomState:  -1,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.Penalty = penalty }
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.C = c }
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.FitIntercept = fit }
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.MaxIter = maxIter }
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.Tol = tol }
}

// WithLRLearningRate sets the base gradient step
func WithLRLearningRate(eta float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.LearningRate = eta }
}

// WithLRRandomState sets the random seed
func WithLRRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.RandomState = seed }
}

func (lr *LogisticRegression) validateParams() error {
	if lr.Penalty != "l2" && lr.Penalty != "none" {
		return errors.NewValidationError("penalty", "must be 'l2' or 'none'", lr.Penalty)
	}
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	if lr.MaxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", lr.MaxIter)
	}
	if lr.LearningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be positive", lr.LearningRate)
	}
	return nil
}

// Fit trains the logistic regression model. y must be a column vector of
// integer class labels.
func (lr *LogisticRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LogisticRegression.Fit")

	if err := lr.validateParams(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("LogisticRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LogisticRegression.Fit", 1, yCols, 1)
	}
	if err := errors.CheckMatrix("LogisticRegression.Fit", X, nSamples, nFeatures, 0); err != nil {
		return err
	}

	classes := extractClasses(y)
	if len(classes) < 2 {
		return errors.NewValueError("LogisticRegression.Fit",
			"the number of classes has to be greater than one; got 1 class")
	}

	Xd := mat.DenseCopyOf(X)
	lr.ClassLabels = classes
	lr.NFeatures = nFeatures
	lr.initializeWeights(nFeatures)

	targets := make([]float64, nSamples)
	if len(classes) == 2 {
		for i := 0; i < nSamples; i++ {
			targets[i] = indicator(int(y.At(i, 0)) == classes[1])
		}
		if err := lr.fitBinary(Xd, targets, 0); err != nil {
			return err
		}
	} else {
		for k, class := range classes {
			for i := 0; i < nSamples; i++ {
				targets[i] = indicator(int(y.At(i, 0)) == class)
			}
			if err := lr.fitBinary(Xd, targets, k); err != nil {
				return errors.Wrapf(err, "failed to fit class %d", class)
			}
		}
	}

	lr.SetFitted()
	log.GetLoggerWithName("linear_model").Debug("Fit completed",
		log.ModelNameKey, "LogisticRegression",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.IterationKey, lr.NIter[0],
	)
	return nil
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// extractClasses identifies unique class labels in ascending order
func extractClasses(y mat.Matrix) []int {
	rows, _ := y.Dims()
	seen := make(map[int]struct{})
	for i := 0; i < rows; i++ {
		seen[int(y.At(i, 0))] = struct{}{}
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes
}

// initializeWeights initializes model weights with small random values
func (lr *LogisticRegression) initializeWeights(nFeatures int) {
	if lr.rand == nil {
		seed := lr.RandomState
		if seed < 0 {
			seed = rand.Int63()
		}
		lr.rand = rand.New(rand.NewSource(seed))
	}

	nModels := 1
	if len(lr.ClassLabels) > 2 {
		nModels = len(lr.ClassLabels)
	}
	lr.Coef = make([][]float64, nModels)
	for k := range lr.Coef {
		lr.Coef[k] = make([]float64, nFeatures)
		for j := range lr.Coef[k] {
			lr.Coef[k][j] = lr.rand.NormFloat64() * 0.01
		}
	}
	lr.Intercept = make([]float64, nModels)
	lr.NIter = make([]int, nModels)
}

// fitBinary fits row k of Coef against 0/1 targets by gradient descent
func (lr *LogisticRegression) fitBinary(X *mat.Dense, targets []float64, k int) error {
	nSamples, nFeatures := X.Dims()
	w := mat.NewVecDense(nFeatures, lr.Coef[k])
	y := mat.NewVecDense(nSamples, targets)
	z := mat.NewVecDense(nSamples, nil)
	residual := mat.NewVecDense(nSamples, nil)
	grad := mat.NewVecDense(nFeatures, nil)
	shrink := 0.0
	if lr.Penalty == "l2" {
		shrink = 1.0 / (lr.C * float64(nSamples))
	}

	converged := false
	for iter := 0; iter < lr.MaxIter; iter++ {
		z.MulVec(X, w)
		for i := 0; i < nSamples; i++ {
			residual.SetVec(i, sigmoid(z.AtVec(i)+lr.Intercept[k]))
		}
		residual.SubVec(residual, y)

		grad.MulVec(X.T(), residual)
		grad.ScaleVec(1/float64(nSamples), grad)
		gradIntercept := mat.Sum(residual) / float64(nSamples)

		maxGrad := 0.0
		if lr.FitIntercept {
			maxGrad = math.Abs(gradIntercept)
		}
		for j := 0; j < nFeatures; j++ {
			maxGrad = math.Max(maxGrad, math.Abs(grad.AtVec(j)+shrink*w.AtVec(j)))
		}

		// L2 as a proximal step
		eta := lr.LearningRate / (1.0 + 0.1*float64(iter))
		w.AddScaledVec(w, -eta, grad)
		if shrink > 0 {
			w.ScaleVec(1/(1+eta*shrink), w)
		}
		if lr.FitIntercept {
			lr.Intercept[k] -= eta * gradIntercept
		}
		lr.NIter[k] = iter + 1

		if err := errors.CheckScalar("LogisticRegression.Fit", lr.Intercept[k], iter); err != nil {
			return err
		}
		if maxGrad < lr.Tol {
			converged = true
			break
		}
	}

	if !converged {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.MaxIter,
			"gradient descent did not reach tol; increase max_iter or scale the features"))
	}
	return errors.CheckNumericalStability("LogisticRegression.Fit", lr.Coef[k], lr.NIter[k])
}

func (lr *LogisticRegression) checkPredictInput(op string, X mat.Matrix) (int, error) {
	if !lr.IsFitted() {
		return 0, errors.NewNotFittedError("LogisticRegression", op)
	}
	nSamples, nFeatures := X.Dims()
	if nFeatures != lr.NFeatures {
		return 0, errors.NewDimensionError("LogisticRegression."+op, lr.NFeatures, nFeatures, 1)
	}
	return nSamples, nil
}

// DecisionFunction returns the linear scores, one column per model.
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	nSamples, err := lr.checkPredictInput("DecisionFunction", X)
	if err != nil {
		return nil, err
	}
	scores := mat.NewDense(nSamples, len(lr.Coef), nil)
	parallel.ParallelizeWithThreshold(nSamples, parallel.DefaultThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for k, coef := range lr.Coef {
				s := lr.Intercept[k]
				for j, c := range coef {
					s += X.At(i, j) * c
				}
				scores.Set(i, k, s)
			}
		}
	})
	return scores, nil
}

// PredictProba returns probability estimates, one column per class in the
// order of Classes().
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := scores.Dims()
	nClasses := len(lr.ClassLabels)
	probas := mat.NewDense(nSamples, nClasses, nil)

	for i := 0; i < nSamples; i++ {
		if nClasses == 2 {
			p1 := sigmoid(scores.At(i, 0))
			probas.Set(i, 0, 1.0-p1)
			probas.Set(i, 1, p1)
			continue
		}
		// one-vs-rest scores normalized with a softmax
		maxScore := math.Inf(-1)
		for k := 0; k < nClasses; k++ {
			maxScore = math.Max(maxScore, scores.At(i, k))
		}
		sum := 0.0
		for k := 0; k < nClasses; k++ {
			e := errors.StabilizeExp(scores.At(i, k) - maxScore)
			probas.Set(i, k, e)
			sum += e
		}
		for k := 0; k < nClasses; k++ {
			probas.Set(i, k, errors.SafeDivide(probas.At(i, k), sum))
		}
	}
	return probas, nil
}

// Predict returns the most probable class label per row as a column vector.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	nSamples, nClasses := probas.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best := 0
		for k := 1; k < nClasses; k++ {
			if probas.At(i, k) > probas.At(i, best) {
				best = k
			}
		}
		predictions.Set(i, 0, float64(lr.ClassLabels[best]))
	}
	return predictions, nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	nSamples, _ := X.Dims()
	if yRows, _ := y.Dims(); yRows != nSamples {
		return 0, errors.NewDimensionError("LogisticRegression.Score", nSamples, yRows, 0)
	}
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples), nil
}

// Classes returns the class labels seen during Fit.
func (lr *LogisticRegression) Classes() []int {
	return append([]int(nil), lr.ClassLabels...)
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.Penalty,
		"C":             lr.C,
		"fit_intercept": lr.FitIntercept,
		"max_iter":      lr.MaxIter,
		"tol":           lr.Tol,
		"learning_rate": lr.LearningRate,
		"random_state":  lr.RandomState,
	}
}

// SetParams sets the model hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "penalty":
			lr.Penalty, ok = value.(string)
		case "C":
			lr.C, ok = value.(float64)
		case "fit_intercept":
			lr.FitIntercept, ok = value.(bool)
		case "max_iter":
			lr.MaxIter, ok = value.(int)
		case "tol":
			lr.Tol, ok = value.(float64)
		case "learning_rate":
			lr.LearningRate, ok = value.(float64)
		case "random_state":
			lr.RandomState, ok = value.(int64)
			lr.rand = nil
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, "unexpected type", value)
		}
	}
	return nil
}

// ExportWeights returns the fitted coefficients in the shared JSON envelope.
func (lr *LogisticRegression) ExportWeights() (*model.ModelWeights, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LogisticRegression", "ExportWeights")
	}
	coefs := make([]float64, 0, len(lr.Coef)*lr.NFeatures)
	for _, row := range lr.Coef {
		coefs = append(coefs, row...)
	}
	return &model.ModelWeights{
		ModelType:       "LogisticRegression",
		Version:         logisticVersion,
		Coefficients:    coefs,
		Intercepts:      append([]float64(nil), lr.Intercept...),
		Classes:         lr.Classes(),
		Hyperparameters: lr.GetParams(),
		Metadata:        map[string]interface{}{"n_features": lr.NFeatures},
		IsFitted:        true,
	}, nil
}

// ImportWeights restores a model exported with ExportWeights.
func (lr *LogisticRegression) ImportWeights(w *model.ModelWeights) error {
	if w == nil {
		return errors.NewValueError("LogisticRegression.ImportWeights", "weights are nil")
	}
	if w.ModelType != "LogisticRegression" {
		return errors.NewValidationError("model_type", "expected LogisticRegression", w.ModelType)
	}
	if err := w.Validate(); err != nil {
		return err
	}
	if len(w.Classes) < 2 || len(w.Intercepts) == 0 {
		return errors.NewValidationError("classes", "at least two classes and one intercept are required", len(w.Classes))
	}
	nModels := len(w.Intercepts)
	if (len(w.Classes) == 2 && nModels != 1) || (len(w.Classes) > 2 && nModels != len(w.Classes)) {
		return errors.NewDimensionError("LogisticRegression.ImportWeights", len(w.Classes), nModels, 1)
	}

	nFeatures := len(w.Coefficients) / nModels
	lr.Coef = make([][]float64, nModels)
	for k := range lr.Coef {
		lr.Coef[k] = append([]float64(nil), w.Coefficients[k*nFeatures:(k+1)*nFeatures]...)
	}
	lr.Intercept = append([]float64(nil), w.Intercepts...)
	lr.ClassLabels = append([]int(nil), w.Classes...)
	lr.NFeatures = nFeatures
	lr.NIter = make([]int, nModels)
	lr.SetFitted()
	return nil
}

// sigmoid computes the logistic function without overflowing exp
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + errors.StabilizeExp(-z))
	}
	e := errors.StabilizeExp(z)
	return e / (1.0 + e)
}

func init() {
	model.Register(&LogisticRegression{})
}
