package inference

import (
	"math"

	"github.com/YuminosukeSato/tsunamiml/core/frame"
	"github.com/YuminosukeSato/tsunamiml/internal/catalog"
	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
)

// UnknownCountry is used when an input carries no country.
const UnknownCountry = "UNKNOWN"

// FeatureColumns is the column layout of an inference frame.
var FeatureColumns = []string{
	catalog.ColMagnitude,
	catalog.ColDepth,
	catalog.ColLatitude,
	catalog.ColLongitude,
	catalog.ColIntensity,
	catalog.ColYear,
	catalog.ColCountry,
	catalog.ColRegion,
}

// Input holds user-entered earthquake parameters. Intensity and Year are
// optional; a nil Intensity is filled by the pipeline's intensity imputer.
type Input struct {
	Magnitude  float64  `json:"magnitude"`
	Depth      float64  `json:"depth_km"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Intensity  *float64 `json:"intensity,omitempty"`
	Year       *int     `json:"year,omitempty"`
	Country    string   `json:"country,omitempty"`
	RegionCode int      `json:"region_code"`
}

type bound struct {
	name   string
	value  float64
	lo, hi float64
}

// Validate checks every field against its accepted range.
func (in Input) Validate() error {
	bounds := []bound{
		{"magnitude", in.Magnitude, 0, 10},
		{"depth_km", in.Depth, 0, 700},
		{"latitude", in.Latitude, -90, 90},
		{"longitude", in.Longitude, -180, 180},
		{"region_code", float64(in.RegionCode), -9999, 9999},
	}
	for _, b := range bounds {
		if math.IsNaN(b.value) || b.value < b.lo || b.value > b.hi {
			return errors.NewValidationError(b.name, "out of range", b.value)
		}
	}
	if in.Intensity != nil {
		v := *in.Intensity
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.NewValidationError("intensity", "must be a finite number or omitted", v)
		}
		if v < 0 || v > 12 {
			return errors.NewValidationError("intensity", "out of range", v)
		}
	}
	return nil
}

func (in Input) country() string {
	if in.Country == "" {
		return UnknownCountry
	}
	return in.Country
}

// Frame builds the inference frame for inputs, one row per input, with the
// columns of FeatureColumns.
func Frame(inputs ...Input) *frame.Frame {
	n := len(inputs)
	mag := make([]float64, n)
	depth := make([]float64, n)
	lat := make([]float64, n)
	lon := make([]float64, n)
	intensity := make([]float64, n)
	year := make([]float64, n)
	country := make([]string, n)
	region := make([]float64, n)

	for i, in := range inputs {
		mag[i] = in.Magnitude
		depth[i] = in.Depth
		lat[i] = in.Latitude
		lon[i] = in.Longitude
		intensity[i] = math.NaN()
		if in.Intensity != nil {
			intensity[i] = *in.Intensity
		}
		year[i] = math.NaN()
		if in.Year != nil {
			year[i] = float64(*in.Year)
		}
		country[i] = in.country()
		region[i] = float64(in.RegionCode)
	}

	return frame.MustNew(
		frame.NewFloat(catalog.ColMagnitude, mag),
		frame.NewFloat(catalog.ColDepth, depth),
		frame.NewFloat(catalog.ColLatitude, lat),
		frame.NewFloat(catalog.ColLongitude, lon),
		frame.NewFloat(catalog.ColIntensity, intensity),
		frame.NewFloat(catalog.ColYear, year),
		frame.NewString(catalog.ColCountry, country),
		frame.NewFloat(catalog.ColRegion, region),
	)
}
