package preprocessing

import (
	"math"
	"sort"
)

// nanMedian returns the median of the non-NaN values, averaging the two middle
// values for even counts. It returns NaN when no value is present. values is
// not modified.
func nanMedian(values []float64) float64 {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	return sortedMedian(present)
}

// sortedMedian sorts vs in place and returns its median.
func sortedMedian(vs []float64) float64 {
	n := len(vs)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(vs)
	if n%2 == 1 {
		return vs[n/2]
	}
	return (vs[n/2-1] + vs[n/2]) / 2
}
