// Package frame provides a small column-oriented table used as the input and
// output of preprocessing stages.
//
// A Frame keeps its columns in insertion order. Float columns mark missing
// values with NaN, String columns with "". Int columns are always complete,
// which is what imputation stages produce.
package frame

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
)

// Frame is an ordered set of equally long columns.
type Frame struct {
	names []string
	cols  map[string]*Series
	nrows int
}

// New builds a frame from columns. Names must be unique and all columns must
// have the same length.
func New(cols ...*Series) (*Frame, error) {
	f := &Frame{cols: make(map[string]*Series, len(cols))}
	for _, c := range cols {
		if c == nil || c.Name == "" {
			return nil, errors.NewValidationError("column", "column name must not be empty", nil)
		}
		if _, dup := f.cols[c.Name]; dup {
			return nil, errors.NewValidationError("column", "duplicate column name", c.Name)
		}
		if len(f.names) > 0 && c.Len() != f.nrows {
			return nil, errors.NewDimensionError("frame.New", f.nrows, c.Len(), 0)
		}
		f.nrows = c.Len()
		f.names = append(f.names, c.Name)
		f.cols[c.Name] = c
	}
	return f, nil
}

// MustNew is New that panics on error. Intended for tests and literals.
func MustNew(cols ...*Series) *Frame {
	f, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return f
}

// NRows returns the number of rows.
func (f *Frame) NRows() int { return f.nrows }

// NCols returns the number of columns.
func (f *Frame) NCols() int { return len(f.names) }

// Names returns the column names in order.
func (f *Frame) Names() []string {
	return append([]string(nil), f.names...)
}

// Has reports whether the frame contains the named column.
func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Column returns the named column, or a MissingColumnError.
func (f *Frame) Column(name string) (*Series, error) {
	c, ok := f.cols[name]
	if !ok {
		return nil, errors.NewMissingColumnError("Column", name)
	}
	return c, nil
}

// Require checks that every named column exists. The returned error lists all
// missing columns at once.
func (f *Frame) Require(op string, names ...string) error {
	var missing []string
	for _, n := range names {
		if !f.Has(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return errors.NewMissingColumnError(op, missing...)
	}
	return nil
}

// Set adds the column or replaces the column with the same name in place.
func (f *Frame) Set(s *Series) error {
	if s == nil || s.Name == "" {
		return errors.NewValidationError("column", "column name must not be empty", nil)
	}
	if len(f.names) > 0 && s.Len() != f.nrows {
		return errors.NewDimensionError("frame.Set", f.nrows, s.Len(), 0)
	}
	if f.cols == nil {
		f.cols = make(map[string]*Series)
	}
	if _, ok := f.cols[s.Name]; !ok {
		f.names = append(f.names, s.Name)
	}
	f.cols[s.Name] = s
	f.nrows = s.Len()
	return nil
}

// Drop returns a frame without the named columns. Unknown names are ignored.
// Remaining columns are shared with f.
func (f *Frame) Drop(names ...string) *Frame {
	skip := make(map[string]struct{}, len(names))
	for _, n := range names {
		skip[n] = struct{}{}
	}
	out := &Frame{cols: make(map[string]*Series, len(f.names)), nrows: f.nrows}
	for _, n := range f.names {
		if _, ok := skip[n]; ok {
			continue
		}
		out.names = append(out.names, n)
		out.cols[n] = f.cols[n]
	}
	return out
}

// Select returns a frame with only the named columns, in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	if err := f.Require("Select", names...); err != nil {
		return nil, err
	}
	out := &Frame{cols: make(map[string]*Series, len(names)), nrows: f.nrows}
	for _, n := range names {
		out.names = append(out.names, n)
		out.cols[n] = f.cols[n]
	}
	return out, nil
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := &Frame{
		names: append([]string(nil), f.names...),
		cols:  make(map[string]*Series, len(f.names)),
		nrows: f.nrows,
	}
	for _, n := range f.names {
		out.cols[n] = f.cols[n].Clone()
	}
	return out
}

// Take returns a new frame holding the given rows in order.
func (f *Frame) Take(idx []int) (*Frame, error) {
	for _, i := range idx {
		if i < 0 || i >= f.nrows {
			return nil, errors.NewValueError("frame.Take", fmt.Sprintf("row index %d out of range [0, %d)", i, f.nrows))
		}
	}
	out := &Frame{
		names: append([]string(nil), f.names...),
		cols:  make(map[string]*Series, len(f.names)),
		nrows: len(idx),
	}
	for _, n := range f.names {
		out.cols[n] = f.cols[n].take(idx)
	}
	return out, nil
}

// Filter returns the rows for which keep returns true.
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	idx := make([]int, 0, f.nrows)
	for i := 0; i < f.nrows; i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	out, _ := f.Take(idx)
	return out
}

// Matrix copies the named numeric columns into a rows x len(names) matrix.
// With no names, every column is used.
func (f *Frame) Matrix(names ...string) (*mat.Dense, error) {
	if len(names) == 0 {
		names = f.names
	}
	if f.nrows == 0 || len(names) == 0 {
		return nil, errors.ErrEmptyData
	}
	if err := f.Require("Matrix", names...); err != nil {
		return nil, err
	}
	m := mat.NewDense(f.nrows, len(names), nil)
	for j, n := range names {
		c := f.cols[n]
		if !c.IsNumeric() {
			return nil, errors.NewValidationError(n, "column is not numeric", c.Kind.String())
		}
		for i := 0; i < f.nrows; i++ {
			m.Set(i, j, c.Float(i))
		}
	}
	return m, nil
}

// String renders a short description, e.g. "Frame[3x2](magnitude_Mw float64, intensity int64)".
func (f *Frame) String() string {
	s := fmt.Sprintf("Frame[%dx%d](", f.nrows, len(f.names))
	for i, n := range f.names {
		if i > 0 {
			s += ", "
		}
		s += n + " " + f.cols[n].Kind.String()
	}
	return s + ")"
}
