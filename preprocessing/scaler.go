package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/tsunamiml/core/frame"
	"github.com/YuminosukeSato/tsunamiml/core/model"
	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
)

// StandardScaler はscikit-learn互換の標準化スケーラー
// 指定した数値列を平均0、標準偏差1に変換する
//
// 統計量は欠損値（NaN）を除いて計算され、欠損値は変換後も NaN のままです。
type StandardScaler struct {
	model.BaseEstimator

	// Columns は対象の列名
	Columns []string

	// Mean は各列の平均値
	Mean []float64

	// Scale は各列の標準偏差
	Scale []float64

	// WithMean は平均を引くかどうか (デフォルト: true)
	WithMean bool

	// WithStd は標準偏差で割るかどうか (デフォルト: true)
	WithStd bool
}

// NewStandardScaler は新しいStandardScalerを作成する
//
// パラメータ:
//   - withMean: 平均を引くかどうか
//   - withStd: 標準偏差で割るかどうか
//   - columns: 対象の列名
//
// 使用例:
//
//	scaler := preprocessing.NewStandardScaler(true, true, "magnitude_Mw", "eqDepth")
//	err := scaler.Fit(df)
//	scaled, err := scaler.Transform(df)
func NewStandardScaler(withMean, withStd bool, columns ...string) *StandardScaler {
	return &StandardScaler{
		Columns:  append([]string(nil), columns...),
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault(columns ...string) *StandardScaler {
	return NewStandardScaler(true, true, columns...)
}

func (s *StandardScaler) checkColumns(op string, X *frame.Frame) error {
	if X == nil {
		return errors.NewValueError(op, "input frame is nil")
	}
	if err := X.Require(op, s.Columns...); err != nil {
		return err
	}
	for _, name := range s.Columns {
		c, _ := X.Column(name)
		if !c.IsNumeric() {
			return errors.NewValidationError(name, "column must be numeric", c.Kind.String())
		}
	}
	return nil
}

// Fit は訓練データから統計情報（平均、標準偏差）を計算する
func (s *StandardScaler) Fit(X *frame.Frame) error {
	if err := s.checkColumns("StandardScaler.Fit", X); err != nil {
		return err
	}
	if X.NRows() == 0 || len(s.Columns) == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	c := len(s.Columns)
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)

	for j, name := range s.Columns {
		col, _ := X.Column(name)
		observed := make([]float64, 0, col.Len())
		for i := 0; i < col.Len(); i++ {
			if v := col.Float(i); !math.IsNaN(v) {
				observed = append(observed, v)
			}
		}
		if len(observed) == 0 {
			return errors.NewValidationError(name, "column has no observed values", 0)
		}

		mean, std := stat.PopMeanStdDev(observed, nil)
		if s.WithMean {
			s.Mean[j] = mean
		}

		s.Scale[j] = 1.0
		// 標準偏差が0に近い場合は1に設定（ゼロ除算を避ける）
		if s.WithStd && std >= 1e-8 {
			s.Scale[j] = std
		}
	}

	s.SetFitted()
	return nil
}

// Transform は学習済みの統計情報を使ってデータを標準化する
// 対象列は Float 列として出力されます。
func (s *StandardScaler) Transform(X *frame.Frame) (*frame.Frame, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("StandardScaler", "Transform")
	}
	if err := s.checkColumns("StandardScaler.Transform", X); err != nil {
		return nil, err
	}
	if len(s.Mean) != len(s.Columns) {
		return nil, errors.NewDimensionError("StandardScaler.Transform", len(s.Columns), len(s.Mean), 1)
	}

	out := X.Clone()
	for j, name := range s.Columns {
		col, _ := X.Column(name)
		values := make([]float64, col.Len())
		for i := range values {
			values[i] = (col.Float(i) - s.Mean[j]) / s.Scale[j]
		}
		if err := out.Set(frame.NewFloat(name, values)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *StandardScaler) FitTransform(X *frame.Frame) (*frame.Frame, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X *frame.Frame) (*frame.Frame, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("StandardScaler", "InverseTransform")
	}
	if err := s.checkColumns("StandardScaler.InverseTransform", X); err != nil {
		return nil, err
	}

	out := X.Clone()
	for j, name := range s.Columns {
		col, _ := X.Column(name)
		values := make([]float64, col.Len())
		for i := range values {
			values[i] = col.Float(i)*s.Scale[j] + s.Mean[j]
		}
		if err := out.Set(frame.NewFloat(name, values)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetParams はスケーラーのパラメータを取得する
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"columns":   append([]string(nil), s.Columns...),
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
	}
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_columns=%d)",
		s.WithMean, s.WithStd, len(s.Columns))
}

func init() {
	model.Register(&StandardScaler{})
}
