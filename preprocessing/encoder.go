package preprocessing

import (
	"sort"

	"github.com/YuminosukeSato/tsunamiml/core/frame"
	"github.com/YuminosukeSato/tsunamiml/core/model"
	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
)

// OneHotEncoder replaces string columns with one 0/1 float column per
// category seen at fit time, named "<column>_<category>". Missing values and
// categories not seen at fit time encode as all zeros.
type OneHotEncoder struct {
	model.BaseEstimator

	Columns []string
	// Categories holds the sorted categories of each column.
	Categories map[string][]string
}

// NewOneHotEncoder creates an encoder for the given string columns.
func NewOneHotEncoder(columns ...string) *OneHotEncoder {
	return &OneHotEncoder{Columns: append([]string(nil), columns...)}
}

// Fit records the distinct non-missing values of every column.
func (e *OneHotEncoder) Fit(X *frame.Frame) error {
	if X == nil {
		return errors.NewValueError("OneHotEncoder.Fit", "input frame is nil")
	}
	if err := X.Require("OneHotEncoder.Fit", e.Columns...); err != nil {
		return err
	}
	if X.NRows() == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}

	cats := make(map[string][]string, len(e.Columns))
	for _, name := range e.Columns {
		c, _ := X.Column(name)
		seen := make(map[string]struct{})
		for i := 0; i < c.Len(); i++ {
			if !c.IsMissing(i) {
				seen[c.Str(i)] = struct{}{}
			}
		}
		values := make([]string, 0, len(seen))
		for v := range seen {
			values = append(values, v)
		}
		sort.Strings(values)
		cats[name] = values
	}
	e.Categories = cats
	e.SetFitted()
	return nil
}

// FeatureNames returns the indicator column names in output order.
func (e *OneHotEncoder) FeatureNames() []string {
	var names []string
	for _, col := range e.Columns {
		for _, cat := range e.Categories[col] {
			names = append(names, col+"_"+cat)
		}
	}
	return names
}

// Transform drops the encoded columns and appends their indicator columns.
func (e *OneHotEncoder) Transform(X *frame.Frame) (*frame.Frame, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("OneHotEncoder", "Transform")
	}
	if X == nil {
		return nil, errors.NewValueError("OneHotEncoder.Transform", "input frame is nil")
	}
	if err := X.Require("OneHotEncoder.Transform", e.Columns...); err != nil {
		return nil, err
	}

	out := X.Drop(e.Columns...).Clone()
	n := X.NRows()
	for _, col := range e.Columns {
		src, _ := X.Column(col)
		cats := e.Categories[col]
		index := make(map[string]int, len(cats))
		indicators := make([][]float64, len(cats))
		for k, cat := range cats {
			index[cat] = k
			indicators[k] = make([]float64, n)
		}
		for i := 0; i < n; i++ {
			if src.IsMissing(i) {
				continue
			}
			if k, ok := index[src.Str(i)]; ok {
				indicators[k][i] = 1
			}
		}
		for k, cat := range cats {
			if err := out.Set(frame.NewFloat(col+"_"+cat, indicators[k])); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// FitTransform fits on X and returns the encoded X.
func (e *OneHotEncoder) FitTransform(X *frame.Frame) (*frame.Frame, error) {
	if err := e.Fit(X); err != nil {
		return nil, err
	}
	return e.Transform(X)
}

func init() {
	model.Register(&OneHotEncoder{})
}
