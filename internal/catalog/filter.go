package catalog

import (
	"math"
	"strconv"

	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
)

// View selects records by tsunami outcome.
type View int

const (
	ViewAll View = iota
	ViewTsunami
	ViewNoTsunami
)

func (v View) String() string {
	switch v {
	case ViewTsunami:
		return "tsunami"
	case ViewNoTsunami:
		return "no-tsunami"
	default:
		return "all"
	}
}

// ParseView parses "all", "tsunami" or "no-tsunami". Empty means all.
func ParseView(s string) (View, error) {
	switch s {
	case "", "all":
		return ViewAll, nil
	case "tsunami":
		return ViewTsunami, nil
	case "no-tsunami":
		return ViewNoTsunami, nil
	default:
		return ViewAll, errors.NewValidationError("view", "must be all, tsunami or no-tsunami", s)
	}
}

// YearRange is an inclusive year interval.
type YearRange struct {
	From, To int
}

// NewYearRange orders the bounds.
func NewYearRange(from, to int) *YearRange {
	if from > to {
		from, to = to, from
	}
	return &YearRange{From: from, To: to}
}

// Contains reports whether year lies in the range. A missing year never does.
func (r *YearRange) Contains(year float64) bool {
	if math.IsNaN(year) {
		return false
	}
	return year >= float64(r.From) && year <= float64(r.To)
}

// Filter describes a catalog selection. A nil Years keeps every year,
// including records without one.
type Filter struct {
	View  View
	Years *YearRange
}

// ParseFilter builds a Filter from textual view and year bounds. When only
// one bound is given the other defaults to the catalog's year bounds.
func (c *Catalog) ParseFilter(view, from, to string) (Filter, error) {
	v, err := ParseView(view)
	if err != nil {
		return Filter{}, err
	}
	f := Filter{View: v}
	if from == "" && to == "" {
		return f, nil
	}

	lo, hi, _ := c.YearBounds()
	if from != "" {
		if lo, err = strconv.Atoi(from); err != nil {
			return Filter{}, errors.NewValidationError("from", "must be an integer year", from)
		}
	}
	if to != "" {
		if hi, err = strconv.Atoi(to); err != nil {
			return Filter{}, errors.NewValidationError("to", "must be an integer year", to)
		}
	}
	f.Years = NewYearRange(lo, hi)
	return f, nil
}
