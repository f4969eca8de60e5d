package preprocessing

import (
	"math"

	"github.com/YuminosukeSato/tsunamiml/core/frame"
	"github.com/YuminosukeSato/tsunamiml/core/model"
	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
	"github.com/YuminosukeSato/tsunamiml/pkg/log"
)

// MedianImputer は数値列の欠損値を学習時の列中央値で埋める
//
// 学習時に全ての値が欠損していた列は FillValue で埋められ、
// Fit 時に ImputationWarning が発行されます。Int列はそのまま通過します。
type MedianImputer struct {
	model.BaseEstimator

	// Columns は対象の列名
	Columns []string

	// Medians は列ごとの学習済み中央値
	Medians map[string]float64

	// FillValue は中央値が定義できない列に使う値
	FillValue float64
}

// NewMedianImputer は指定した列を対象とするMedianImputerを作成する
func NewMedianImputer(columns ...string) *MedianImputer {
	return &MedianImputer{Columns: append([]string(nil), columns...)}
}

func (m *MedianImputer) checkColumns(op string, X *frame.Frame) error {
	if X == nil {
		return errors.NewValueError(op, "input frame is nil")
	}
	if err := X.Require(op, m.Columns...); err != nil {
		return err
	}
	for _, name := range m.Columns {
		c, _ := X.Column(name)
		if !c.IsNumeric() {
			return errors.NewValidationError(name, "column must be numeric", c.Kind.String())
		}
	}
	return nil
}

// Fit は各列の中央値を計算する
func (m *MedianImputer) Fit(X *frame.Frame) error {
	if err := m.checkColumns("MedianImputer.Fit", X); err != nil {
		return err
	}
	if X.NRows() == 0 {
		return errors.NewModelError("MedianImputer.Fit", "empty data", errors.ErrEmptyData)
	}

	medians := make(map[string]float64, len(m.Columns))
	for _, name := range m.Columns {
		c, _ := X.Column(name)
		med := nanMedian(c.AsFloat().Floats)
		if math.IsNaN(med) {
			errors.Warn(errors.NewImputationWarning(name, X.NRows(), m.FillValue, "column has no observed values"))
			med = m.FillValue
		}
		medians[name] = med
	}
	m.Medians = medians
	m.SetFitted()

	log.GetLoggerWithName("preprocessing").Debug("Fit completed",
		log.ModelNameKey, "MedianImputer",
		log.OperationKey, log.OperationFit,
		log.FeaturesKey, len(m.Columns),
	)
	return nil
}

// Transform は欠損値を埋めた新しいFrameを返す
func (m *MedianImputer) Transform(X *frame.Frame) (*frame.Frame, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("MedianImputer", "Transform")
	}
	if err := m.checkColumns("MedianImputer.Transform", X); err != nil {
		return nil, err
	}

	out := X.Clone()
	for _, name := range m.Columns {
		c, _ := out.Column(name)
		if c.Kind != frame.Float {
			continue
		}
		med := m.Medians[name]
		for i, v := range c.Floats {
			if math.IsNaN(v) {
				c.Floats[i] = med
			}
		}
	}
	return out, nil
}

// FitTransform はFitとTransformを同時に実行する
func (m *MedianImputer) FitTransform(X *frame.Frame) (*frame.Frame, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// GetParams はパラメータを返す
func (m *MedianImputer) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"columns":    append([]string(nil), m.Columns...),
		"fill_value": m.FillValue,
	}
}

func init() {
	model.Register(&MedianImputer{})
}
