package frame

import (
	"encoding/csv"
	"io"
	"math"
	"strings"

	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
)

type csvOptions struct {
	floatCols  map[string]struct{}
	stringCols map[string]struct{}
	comma      rune
}

// CSVOption configures ReadCSV.
type CSVOption func(*csvOptions)

// WithFloatColumns forces the named columns to Float. Values that do not
// parse become NaN.
func WithFloatColumns(names ...string) CSVOption {
	return func(o *csvOptions) {
		for _, n := range names {
			o.floatCols[n] = struct{}{}
		}
	}
}

// WithStringColumns keeps the named columns as String even when every value
// is numeric.
func WithStringColumns(names ...string) CSVOption {
	return func(o *csvOptions) {
		for _, n := range names {
			o.stringCols[n] = struct{}{}
		}
	}
}

// WithComma sets the field delimiter.
func WithComma(r rune) CSVOption {
	return func(o *csvOptions) { o.comma = r }
}

// ReadCSV reads a table with a header row. A column becomes Float when every
// non-missing value parses as a number, otherwise String. Short records are
// padded with missing values.
func ReadCSV(r io.Reader, opts ...CSVOption) (*Frame, error) {
	o := &csvOptions{
		floatCols:  map[string]struct{}{},
		stringCols: map[string]struct{}{},
		comma:      ',',
	}
	for _, opt := range opts {
		opt(o)
	}

	cr := csv.NewReader(r)
	cr.Comma = o.comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.Wrap(errors.ErrEmptyData, "read csv header")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	raw := make([][]string, len(header))
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read csv line %d", line)
		}
		for j := range header {
			v := ""
			if j < len(rec) {
				v = rec[j]
			}
			raw[j] = append(raw[j], v)
		}
	}

	cols := make([]*Series, len(header))
	for j, name := range header {
		cols[j] = inferSeries(name, raw[j], o)
	}
	f, err := New(cols...)
	if err != nil {
		return nil, errors.Wrap(err, "read csv")
	}
	return f, nil
}

func inferSeries(name string, values []string, o *csvOptions) *Series {
	if values == nil {
		values = []string{}
	}
	if _, ok := o.stringCols[name]; ok {
		return NewString(name, normalizeStrings(values))
	}
	_, forced := o.floatCols[name]

	floats := make([]float64, len(values))
	numeric := true
	for i, v := range values {
		floats[i] = parseFloat(v)
		if math.IsNaN(floats[i]) && !isMissingToken(v) {
			numeric = false
		}
	}
	if numeric || forced {
		return NewFloat(name, floats)
	}
	return NewString(name, normalizeStrings(values))
}

func normalizeStrings(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if isMissingToken(v) {
			continue
		}
		out[i] = strings.TrimSpace(v)
	}
	return out
}
