package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tsunamiml/core/frame"
	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
)

func TestNanMedian(t *testing.T) {
	assert.Equal(t, 3.0, nanMedian([]float64{5, nan, 1, 3}))
	assert.Equal(t, 2.5, nanMedian([]float64{4, 1, 2, 3}))
	assert.True(t, math.IsNaN(nanMedian([]float64{nan, nan})))
	assert.True(t, math.IsNaN(nanMedian(nil)))

	in := []float64{3, 1, 2}
	nanMedian(in)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestMedianImputer(t *testing.T) {
	df := frame.MustNew(
		frame.NewFloat("year", []float64{2000, nan, 2010, 2004}),
		frame.NewFloat("eqDepth", []float64{nan, 10, 30, nan}),
		frame.NewInt("regionCode_eq", []int64{1, 2, 3, 4}),
	)
	m := NewMedianImputer("year", "eqDepth", "regionCode_eq")

	out, err := m.FitTransform(df)
	require.NoError(t, err)
	assert.Equal(t, 2004.0, m.Medians["year"])
	assert.Equal(t, 20.0, m.Medians["eqDepth"])

	year, _ := out.Column("year")
	assert.Equal(t, []float64{2000, 2004, 2010, 2004}, year.Floats)
	depth, _ := out.Column("eqDepth")
	assert.Equal(t, []float64{20, 10, 30, 20}, depth.Floats)

	orig, _ := df.Column("year")
	assert.True(t, math.IsNaN(orig.Floats[1]))
}

func TestMedianImputer_AllMissingUsesFillValue(t *testing.T) {
	var warned []error
	errors.SetZerologWarnFunc(func(w error) { warned = append(warned, w) })
	defer errors.SetZerologWarnFunc(nil)

	m := NewMedianImputer("year")
	m.FillValue = -1
	out, err := m.FitTransform(frame.MustNew(frame.NewFloat("year", []float64{nan, nan})))
	require.NoError(t, err)

	year, _ := out.Column("year")
	assert.Equal(t, []float64{-1, -1}, year.Floats)
	require.Len(t, warned, 1)
}

func TestMedianImputer_Errors(t *testing.T) {
	m := NewMedianImputer("year")
	_, err := m.Transform(frame.MustNew(frame.NewFloat("year", []float64{1})))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = m.Fit(frame.MustNew(frame.NewString("year", []string{"x"})))
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	err = m.Fit(frame.MustNew(frame.NewFloat("eqDepth", []float64{1})))
	var mc *errors.MissingColumnError
	assert.True(t, errors.As(err, &mc))
}

func TestOneHotEncoder(t *testing.T) {
	train := frame.MustNew(
		frame.NewFloat("magnitude_Mw", []float64{7, 8, 9}),
		frame.NewString("country", []string{"JAPAN", "CHILE", "JAPAN"}),
	)
	enc := NewOneHotEncoder("country")
	require.NoError(t, enc.Fit(train))
	assert.Equal(t, []string{"CHILE", "JAPAN"}, enc.Categories["country"])
	assert.Equal(t, []string{"country_CHILE", "country_JAPAN"}, enc.FeatureNames())

	query := frame.MustNew(
		frame.NewFloat("magnitude_Mw", []float64{7, 6, 5}),
		frame.NewString("country", []string{"CHILE", "PERU", ""}),
	)
	out, err := enc.Transform(query)
	require.NoError(t, err)
	assert.Equal(t, []string{"magnitude_Mw", "country_CHILE", "country_JAPAN"}, out.Names())

	chile, _ := out.Column("country_CHILE")
	japan, _ := out.Column("country_JAPAN")
	assert.Equal(t, []float64{1, 0, 0}, chile.Floats)
	assert.Equal(t, []float64{0, 0, 0}, japan.Floats)
}

func TestOneHotEncoder_Errors(t *testing.T) {
	enc := NewOneHotEncoder("country")
	_, err := enc.Transform(frame.MustNew(frame.NewString("country", []string{"JAPAN"})))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = enc.Fit(frame.MustNew(frame.NewFloat("year", []float64{1})))
	var mc *errors.MissingColumnError
	assert.True(t, errors.As(err, &mc))
}

func TestStandardScaler(t *testing.T) {
	df := frame.MustNew(
		frame.NewFloat("magnitude_Mw", []float64{6, 8, nan}),
		frame.NewInt("year", []int64{2000, 2000, 2000}),
		frame.NewString("country", []string{"A", "B", "C"}),
	)
	s := NewStandardScalerDefault("magnitude_Mw", "year")

	out, err := s.FitTransform(df)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 2000}, s.Mean)
	assert.Equal(t, []float64{1, 1}, s.Scale)

	mag, _ := out.Column("magnitude_Mw")
	assert.Equal(t, -1.0, mag.Floats[0])
	assert.Equal(t, 1.0, mag.Floats[1])
	assert.True(t, math.IsNaN(mag.Floats[2]))

	year, _ := out.Column("year")
	assert.Equal(t, frame.Float, year.Kind)
	assert.Equal(t, []float64{0, 0, 0}, year.Floats)

	back, err := s.InverseTransform(out)
	require.NoError(t, err)
	mag, _ = back.Column("magnitude_Mw")
	assert.InDelta(t, 6.0, mag.Floats[0], 1e-12)

	assert.Contains(t, s.String(), "n_columns=2")
}

func TestStandardScaler_Errors(t *testing.T) {
	s := NewStandardScalerDefault("country")
	err := s.Fit(frame.MustNew(frame.NewString("country", []string{"A"})))
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	s = NewStandardScalerDefault("magnitude_Mw")
	_, err = s.Transform(frame.MustNew(frame.NewFloat("magnitude_Mw", []float64{1})))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = s.Fit(frame.MustNew(frame.NewFloat("magnitude_Mw", []float64{nan})))
	assert.True(t, errors.As(err, &ve))
}
