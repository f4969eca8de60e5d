// Package catalog loads historical earthquake records and selects the rows
// shown on the epicenter map.
package catalog

import (
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/YuminosukeSato/tsunamiml/core/frame"
	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
	"github.com/YuminosukeSato/tsunamiml/pkg/log"
)

// Column names of a processed earthquake catalog.
const (
	ColLatitude  = "latitude_eq"
	ColLongitude = "longitude_eq"
	ColTsunami   = "oceanicTsunami"
	ColMagnitude = "magnitude_Mw"
	ColYear      = "year"
	ColLocation  = "locationName"
	ColCountry   = "country"
	ColDepth     = "eqDepth"
	ColIntensity = "intensity"
	ColRegion    = "regionCode_eq"

	// DefaultLocationName fills a missing locationName column.
	DefaultLocationName = "Unnamed"
)

// RequiredColumns must be present in every catalog.
var RequiredColumns = []string{ColLatitude, ColLongitude, ColTsunami, ColMagnitude}

// ErrEmptySelection is returned when a filter leaves no rows.
var ErrEmptySelection = errors.New("no records match the selected filters")

// Catalog is a validated earthquake table. Coordinates, magnitude and year
// are float columns; oceanicTsunami is an integer 0/1 column.
type Catalog struct {
	Frame *frame.Frame
	// Created lists optional columns that were missing and added with defaults.
	Created []string
}

// Load parses a CSV catalog.
func Load(r io.Reader) (*Catalog, error) {
	f, err := frame.ReadCSV(r,
		frame.WithStringColumns(ColLocation, ColCountry),
	)
	if err != nil {
		return nil, errors.Wrap(err, "read catalog csv")
	}
	return Prepare(f)
}

// LoadFile parses the CSV catalog at path.
func LoadFile(path string) (*Catalog, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open catalog %s", path)
	}
	defer fh.Close()
	return Load(fh)
}

// Prepare validates f and normalizes its column types. f is not modified.
func Prepare(f *frame.Frame) (*Catalog, error) {
	if err := f.Require("catalog.Prepare", RequiredColumns...); err != nil {
		return nil, err
	}

	out := f.Clone()
	var created []string
	if !out.Has(ColYear) {
		years := make([]float64, out.NRows())
		for i := range years {
			years[i] = math.NaN()
		}
		_ = out.Set(frame.NewFloat(ColYear, years))
		created = append(created, ColYear)
	}
	if !out.Has(ColLocation) {
		names := make([]string, out.NRows())
		for i := range names {
			names[i] = DefaultLocationName
		}
		_ = out.Set(frame.NewString(ColLocation, names))
		created = append(created, ColLocation)
	}

	for _, name := range []string{ColLatitude, ColLongitude, ColMagnitude, ColYear} {
		c, _ := out.Column(name)
		_ = out.Set(c.AsFloat())
	}

	ts, _ := out.Column(ColTsunami)
	flags := make([]int64, ts.Len())
	for i := range flags {
		v := ts.Float(i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		flags[i] = int64(v)
	}
	_ = out.Set(frame.NewInt(ColTsunami, flags))

	if len(created) > 0 {
		log.GetLoggerWithName("catalog").Warn("Optional columns were missing and created with defaults",
			"created", strings.Join(created, ","),
		)
	}
	return &Catalog{Frame: out, Created: created}, nil
}

// Len returns the number of records.
func (c *Catalog) Len() int { return c.Frame.NRows() }

// YearBounds returns the smallest and largest known year.
// ok is false when no record has a year.
func (c *Catalog) YearBounds() (lo, hi int, ok bool) {
	years, _ := c.Frame.Column(ColYear)
	for i := 0; i < years.Len(); i++ {
		v := years.Float(i)
		if math.IsNaN(v) {
			continue
		}
		y := int(v)
		if !ok {
			lo, hi, ok = y, y, true
			continue
		}
		lo = min(lo, y)
		hi = max(hi, y)
	}
	return lo, hi, ok
}

// Countries returns the distinct non-blank country names in ascending order.
func (c *Catalog) Countries() []string {
	col, err := c.Frame.Column(ColCountry)
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{})
	for i := 0; i < col.Len(); i++ {
		s := strings.TrimSpace(col.Str(i))
		if s == "" {
			continue
		}
		seen[s] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Select applies the filter and drops rows without coordinates.
func (c *Catalog) Select(filter Filter) *Selection {
	ts, _ := c.Frame.Column(ColTsunami)
	years, _ := c.Frame.Column(ColYear)
	lat, _ := c.Frame.Column(ColLatitude)
	lon, _ := c.Frame.Column(ColLongitude)

	sel := c.Frame.Filter(func(i int) bool {
		switch filter.View {
		case ViewTsunami:
			if ts.Ints[i] != 1 {
				return false
			}
		case ViewNoTsunami:
			if ts.Ints[i] != 0 {
				return false
			}
		}
		if filter.Years != nil && !filter.Years.Contains(years.Float(i)) {
			return false
		}
		return !math.IsNaN(lat.Float(i)) && !math.IsNaN(lon.Float(i))
	})
	return &Selection{Frame: sel}
}

// Point is one epicenter of a selection.
type Point struct {
	Latitude  float64
	Longitude float64
	Magnitude float64
	Year      float64
	Location  string
	Tsunami   bool
}

// Selection is the filtered subset of a catalog.
type Selection struct {
	Frame *frame.Frame
}

// Len returns the number of selected records.
func (s *Selection) Len() int { return s.Frame.NRows() }

// Points returns the selected epicenters in catalog order.
func (s *Selection) Points() []Point {
	lat, _ := s.Frame.Column(ColLatitude)
	lon, _ := s.Frame.Column(ColLongitude)
	mag, _ := s.Frame.Column(ColMagnitude)
	year, _ := s.Frame.Column(ColYear)
	loc, _ := s.Frame.Column(ColLocation)
	ts, _ := s.Frame.Column(ColTsunami)

	points := make([]Point, s.Len())
	for i := range points {
		points[i] = Point{
			Latitude:  lat.Float(i),
			Longitude: lon.Float(i),
			Magnitude: mag.Float(i),
			Year:      year.Float(i),
			Location:  loc.Str(i),
			Tsunami:   ts.Ints[i] == 1,
		}
	}
	return points
}

// Center returns the mean latitude and longitude of the selection.
func (s *Selection) Center() (lat, lon float64, err error) {
	if s.Len() == 0 {
		return 0, 0, ErrEmptySelection
	}
	for _, p := range s.Points() {
		lat += p.Latitude
		lon += p.Longitude
	}
	n := float64(s.Len())
	return lat / n, lon / n, nil
}
