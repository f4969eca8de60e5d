package preprocessing

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/YuminosukeSato/tsunamiml/core/frame"
	"github.com/YuminosukeSato/tsunamiml/core/model"
	"github.com/YuminosukeSato/tsunamiml/core/parallel"
	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
	"github.com/YuminosukeSato/tsunamiml/pkg/log"
)

const (
	// DefaultMagnitudeColumn is the grouping column used by IntensityImputer.
	DefaultMagnitudeColumn = "magnitude_Mw"
	// DefaultIntensityColumn is the column IntensityImputer fills.
	DefaultIntensityColumn = "intensity"

	intensityImputerVersion = "1.0.0"
)

// UndefinedPolicy decides what Transform does for a row that needs the global
// median when no global median could be learned.
type UndefinedPolicy int

const (
	// FailOnUndefined makes Transform return an ImputationError.
	FailOnUndefined UndefinedPolicy = iota
	// FallbackConstant fills the row with FillValue and emits an ImputationWarning.
	FallbackConstant
)

func (p UndefinedPolicy) String() string {
	if p == FallbackConstant {
		return "constant"
	}
	return "fail"
}

func parsePolicy(s string) (UndefinedPolicy, error) {
	switch s {
	case "fail", "":
		return FailOnUndefined, nil
	case "constant":
		return FallbackConstant, nil
	default:
		return FailOnUndefined, errors.NewValidationError("policy", "must be 'fail' or 'constant'", s)
	}
}

// IntensityImputer fills missing seismic intensity values with the median
// intensity of earthquakes sharing the exact same magnitude, falling back to
// the median over all earthquakes for magnitudes not seen at fit time.
// Filled values are rounded half to even and the output column is integer.
//
// The learned state is read-only after Fit, so one fitted instance may serve
// concurrent Transform calls. Fit must not run concurrently with Transform.
type IntensityImputer struct {
	model.BaseEstimator

	MagnitudeCol string
	IntensityCol string
	Policy       UndefinedPolicy
	FillValue    float64

	// MedianByMagnitude holds one entry per magnitude with at least one
	// observed intensity.
	MedianByMagnitude map[float64]float64
	// GlobalMedian is NaN when every intensity was missing at fit time.
	GlobalMedian float64
	NSamples     int

	logger log.Logger
}

// ImputerOption configures an IntensityImputer.
type ImputerOption func(*IntensityImputer)

// WithMagnitudeColumn sets the grouping column.
func WithMagnitudeColumn(name string) ImputerOption {
	return func(im *IntensityImputer) { im.MagnitudeCol = name }
}

// WithIntensityColumn sets the column to fill.
func WithIntensityColumn(name string) ImputerOption {
	return func(im *IntensityImputer) { im.IntensityCol = name }
}

// WithUndefinedFallback fills rows that have no defined median with v instead
// of failing.
func WithUndefinedFallback(v float64) ImputerOption {
	return func(im *IntensityImputer) {
		im.Policy = FallbackConstant
		im.FillValue = v
	}
}

// NewIntensityImputer は未学習のIntensityImputerを作成する
//
// 使用例:
//
//	imp := preprocessing.NewIntensityImputer()
//	if err := imp.Fit(train); err != nil {
//	    return err
//	}
//	filled, err := imp.Transform(query)
func NewIntensityImputer(opts ...ImputerOption) *IntensityImputer {
	im := &IntensityImputer{
		MagnitudeCol: DefaultMagnitudeColumn,
		IntensityCol: DefaultIntensityColumn,
		GlobalMedian: math.NaN(),
		logger: log.GetLoggerWithName("preprocessing").With(
			log.ModelNameKey, "IntensityImputer",
		),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

func (im *IntensityImputer) getLogger() log.Logger {
	if im.logger != nil {
		return im.logger
	}
	return log.GetLoggerWithName("preprocessing").With(log.ModelNameKey, "IntensityImputer")
}

func (im *IntensityImputer) numericColumns(op string, X *frame.Frame) (mag, inten *frame.Series, err error) {
	if X == nil {
		return nil, nil, errors.NewValueError(op, "input frame is nil")
	}
	if err := X.Require(op, im.MagnitudeCol, im.IntensityCol); err != nil {
		return nil, nil, err
	}
	mag, _ = X.Column(im.MagnitudeCol)
	inten, _ = X.Column(im.IntensityCol)
	for _, c := range []*frame.Series{mag, inten} {
		if !c.IsNumeric() {
			return nil, nil, errors.NewValidationError(c.Name, "column must be numeric", c.Kind.String())
		}
	}
	return mag, inten, nil
}

// Fit learns the per-magnitude and global median intensity. A re-fit replaces
// the previous state entirely.
func (im *IntensityImputer) Fit(X *frame.Frame) (err error) {
	defer errors.Recover(&err, "IntensityImputer.Fit")

	mag, inten, err := im.numericColumns("IntensityImputer.Fit", X)
	if err != nil {
		return err
	}
	if X.NRows() == 0 {
		return errors.NewModelError("IntensityImputer.Fit", "empty data", errors.ErrEmptyData)
	}

	groups := make(map[float64][]float64)
	all := make([]float64, 0, X.NRows())
	for i := 0; i < X.NRows(); i++ {
		v := inten.Float(i)
		if math.IsNaN(v) {
			continue
		}
		if math.IsInf(v, 0) {
			return errors.NewValueError("IntensityImputer.Fit",
				fmt.Sprintf("row %d: intensity %v is not finite", i, v))
		}
		all = append(all, v)
		m := mag.Float(i)
		if math.IsNaN(m) {
			continue
		}
		groups[m] = append(groups[m], v)
	}

	medians := make(map[float64]float64, len(groups))
	for m, vs := range groups {
		medians[m] = sortedMedian(vs)
	}

	im.MedianByMagnitude = medians
	im.GlobalMedian = sortedMedian(all)
	im.NSamples = X.NRows()
	im.SetFitted()

	logger := im.getLogger()
	logger.Info("Fit completed",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, im.NSamples,
		log.ImputerGroupsKey, len(medians),
		log.ImputerGlobalMedianKey, im.GlobalMedian,
	)
	if math.IsNaN(im.GlobalMedian) {
		logger.Warn("All intensity values are missing; global median is undefined",
			log.ColumnKey, im.IntensityCol,
			log.ErrorCodeKey, log.ErrorImputation,
		)
	}
	return nil
}

// maxInt64Float is 2^63. int64 holds [-2^63, 2^63).
const maxInt64Float = float64(1 << 63)

// lookup returns the fill value for a row with missing intensity.
func (im *IntensityImputer) lookup(magnitude float64) (float64, bool) {
	if v, ok := im.MedianByMagnitude[magnitude]; ok {
		return v, true
	}
	return im.GlobalMedian, !math.IsNaN(im.GlobalMedian)
}

// Transform returns a copy of X whose intensity column is an integer column
// without missing values. X and the learned state are not modified.
func (im *IntensityImputer) Transform(X *frame.Frame) (*frame.Frame, error) {
	if !im.IsFitted() {
		return nil, errors.NewNotFittedError("IntensityImputer", "Transform")
	}
	mag, inten, err := im.numericColumns("IntensityImputer.Transform", X)
	if err != nil {
		return nil, err
	}

	n := X.NRows()
	out := make([]int64, n)
	var imputed, fallback int64
	err = parallel.RunWithThreshold(n, parallel.DefaultThreshold, func(start, end int) error {
		var nImputed, nFallback int64
		for i := start; i < end; i++ {
			v := inten.Float(i)
			if math.IsNaN(v) {
				nImputed++
				m := mag.Float(i)
				fill, ok := im.lookup(m)
				if !ok {
					if im.Policy != FallbackConstant {
						return errors.NewImputationError(im.IntensityCol, i, m,
							"global median is undefined because every intensity was missing at fit time")
					}
					fill = im.FillValue
					nFallback++
				}
				v = fill
			}
			r := math.RoundToEven(v)
			if r >= maxInt64Float || r < -maxInt64Float {
				return errors.NewValueError("IntensityImputer.Transform",
					fmt.Sprintf("row %d: intensity %v cannot be converted to an integer", i, v))
			}
			out[i] = int64(r)
		}
		atomic.AddInt64(&imputed, nImputed)
		atomic.AddInt64(&fallback, nFallback)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if fallback > 0 {
		errors.Warn(errors.NewImputationWarning(im.IntensityCol, int(fallback), im.FillValue,
			"global median is undefined"))
	}

	result := X.Clone()
	if err := result.Set(frame.NewInt(im.IntensityCol, out)); err != nil {
		return nil, err
	}

	im.getLogger().Debug("Transform completed",
		log.OperationKey, log.OperationTransform,
		log.SamplesKey, n,
		log.ImputerImputedKey, int(imputed),
		log.ImputerFallbackKey, int(fallback),
	)
	return result, nil
}

// FitTransform fits on X and returns the transformed X.
func (im *IntensityImputer) FitTransform(X *frame.Frame) (*frame.Frame, error) {
	if err := im.Fit(X); err != nil {
		return nil, err
	}
	return im.Transform(X)
}

// GetParams returns the imputer's hyperparameters.
func (im *IntensityImputer) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"magnitude_col": im.MagnitudeCol,
		"intensity_col": im.IntensityCol,
		"policy":        im.Policy.String(),
		"fill_value":    im.FillValue,
	}
}

// SetParams updates hyperparameters. Learned state is kept until the next Fit.
func (im *IntensityImputer) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		switch k {
		case "magnitude_col", "intensity_col":
			s, ok := v.(string)
			if !ok || s == "" {
				return errors.NewValidationError(k, "must be a non-empty string", v)
			}
			if k == "magnitude_col" {
				im.MagnitudeCol = s
			} else {
				im.IntensityCol = s
			}
		case "policy":
			s, _ := v.(string)
			p, err := parsePolicy(s)
			if err != nil {
				return err
			}
			im.Policy = p
		case "fill_value":
			f, ok := v.(float64)
			if !ok {
				return errors.NewValidationError(k, "must be a float64", v)
			}
			im.FillValue = f
		default:
			return errors.NewValidationError(k, "unknown parameter", v)
		}
	}
	return nil
}

type magnitudeMedian struct {
	Magnitude float64 `json:"magnitude"`
	Median    float64 `json:"median"`
}

type intensityImputerJSON struct {
	ModelType         string            `json:"model_type"`
	Version           string            `json:"version"`
	MagnitudeCol      string            `json:"magnitude_col"`
	IntensityCol      string            `json:"intensity_col"`
	Policy            string            `json:"policy"`
	FillValue         float64           `json:"fill_value"`
	Fitted            bool              `json:"fitted"`
	NSamples          int               `json:"n_samples"`
	MedianByMagnitude []magnitudeMedian `json:"median_by_magnitude"`
	GlobalMedian      *float64          `json:"global_median"`
}

// MarshalJSON encodes the parameters and learned medians. Magnitudes are
// listed in ascending order and an undefined global median is null.
func (im *IntensityImputer) MarshalJSON() ([]byte, error) {
	out := intensityImputerJSON{
		ModelType:         "IntensityImputer",
		Version:           intensityImputerVersion,
		MagnitudeCol:      im.MagnitudeCol,
		IntensityCol:      im.IntensityCol,
		Policy:            im.Policy.String(),
		FillValue:         im.FillValue,
		Fitted:            im.IsFitted(),
		NSamples:          im.NSamples,
		MedianByMagnitude: make([]magnitudeMedian, 0, len(im.MedianByMagnitude)),
	}
	for m, v := range im.MedianByMagnitude {
		out.MedianByMagnitude = append(out.MedianByMagnitude, magnitudeMedian{Magnitude: m, Median: v})
	}
	sort.Slice(out.MedianByMagnitude, func(i, j int) bool {
		return out.MedianByMagnitude[i].Magnitude < out.MedianByMagnitude[j].Magnitude
	})
	if !math.IsNaN(im.GlobalMedian) {
		g := im.GlobalMedian
		out.GlobalMedian = &g
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores an imputer written by MarshalJSON.
func (im *IntensityImputer) UnmarshalJSON(data []byte) error {
	var in intensityImputerJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return errors.Wrap(err, "decode IntensityImputer")
	}
	if in.ModelType != "" && in.ModelType != "IntensityImputer" {
		return errors.NewValidationError("model_type", "expected IntensityImputer", in.ModelType)
	}
	policy, err := parsePolicy(in.Policy)
	if err != nil {
		return err
	}

	medians := make(map[float64]float64, len(in.MedianByMagnitude))
	for _, mm := range in.MedianByMagnitude {
		medians[mm.Magnitude] = mm.Median
	}

	im.MagnitudeCol = in.MagnitudeCol
	im.IntensityCol = in.IntensityCol
	if im.MagnitudeCol == "" {
		im.MagnitudeCol = DefaultMagnitudeColumn
	}
	if im.IntensityCol == "" {
		im.IntensityCol = DefaultIntensityColumn
	}
	im.Policy = policy
	im.FillValue = in.FillValue
	im.NSamples = in.NSamples
	im.MedianByMagnitude = medians
	im.GlobalMedian = math.NaN()
	if in.GlobalMedian != nil {
		im.GlobalMedian = *in.GlobalMedian
	}
	im.Reset()
	if in.Fitted {
		im.SetFitted()
	}
	return nil
}

func init() {
	model.Register(&IntensityImputer{})
}
