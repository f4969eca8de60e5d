package preprocessing_test

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/tsunamiml/core/frame"
	"github.com/YuminosukeSato/tsunamiml/preprocessing"
)

func ExampleIntensityImputer() {
	train := frame.MustNew(
		frame.NewFloat("magnitude_Mw", []float64{7.0, 7.0, 8.1}),
		frame.NewFloat("intensity", []float64{5, 7, 9}),
	)
	imp := preprocessing.NewIntensityImputer()
	if err := imp.Fit(train); err != nil {
		fmt.Println(err)
		return
	}

	query := frame.MustNew(
		frame.NewFloat("magnitude_Mw", []float64{7.0, 6.2}),
		frame.NewFloat("intensity", []float64{math.NaN(), math.NaN()}),
	)
	out, err := imp.Transform(query)
	if err != nil {
		fmt.Println(err)
		return
	}
	col, _ := out.Column("intensity")
	fmt.Println(col.Ints)
	// Output: [6 7]
}
