package frame

import (
	"math"
	"strconv"
	"strings"
)

// Kind is the storage type of a Series.
type Kind int

const (
	// Float columns mark missing values with NaN.
	Float Kind = iota
	// Int columns never hold missing values.
	Int
	// String columns mark missing values with "".
	String
)

func (k Kind) String() string {
	switch k {
	case Float:
		return "float64"
	case Int:
		return "int64"
	case String:
		return "string"
	default:
		return "unknown"
	}
}

// Series is a single named column. Only the slice matching Kind is populated.
// Fields are exported for gob encoding.
type Series struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Ints    []int64
	Strings []string
}

// NewFloat creates a float column. The slice is not copied.
func NewFloat(name string, values []float64) *Series {
	return &Series{Name: name, Kind: Float, Floats: values}
}

// NewInt creates an integer column. The slice is not copied.
func NewInt(name string, values []int64) *Series {
	return &Series{Name: name, Kind: Int, Ints: values}
}

// NewString creates a string column. The slice is not copied.
func NewString(name string, values []string) *Series {
	return &Series{Name: name, Kind: String, Strings: values}
}

// Len returns the number of rows.
func (s *Series) Len() int {
	switch s.Kind {
	case Float:
		return len(s.Floats)
	case Int:
		return len(s.Ints)
	default:
		return len(s.Strings)
	}
}

// IsNumeric reports whether the column is Float or Int.
func (s *Series) IsNumeric() bool {
	return s.Kind == Float || s.Kind == Int
}

// IsMissing reports whether row i holds a missing value.
func (s *Series) IsMissing(i int) bool {
	switch s.Kind {
	case Float:
		return math.IsNaN(s.Floats[i])
	case Int:
		return false
	default:
		return s.Strings[i] == ""
	}
}

// CountMissing returns the number of missing rows.
func (s *Series) CountMissing() int {
	n := 0
	for i := 0; i < s.Len(); i++ {
		if s.IsMissing(i) {
			n++
		}
	}
	return n
}

// Float returns row i as a float64. String values are parsed, unparsable
// values yield NaN.
func (s *Series) Float(i int) float64 {
	switch s.Kind {
	case Float:
		return s.Floats[i]
	case Int:
		return float64(s.Ints[i])
	default:
		return parseFloat(s.Strings[i])
	}
}

// Str returns row i formatted as a string. Missing floats yield "".
func (s *Series) Str(i int) string {
	switch s.Kind {
	case Float:
		if math.IsNaN(s.Floats[i]) {
			return ""
		}
		return strconv.FormatFloat(s.Floats[i], 'g', -1, 64)
	case Int:
		return strconv.FormatInt(s.Ints[i], 10)
	default:
		return s.Strings[i]
	}
}

// AsFloat returns a new float column with the same name. Strings are coerced,
// invalid entries become NaN.
func (s *Series) AsFloat() *Series {
	out := make([]float64, s.Len())
	for i := range out {
		out[i] = s.Float(i)
	}
	return NewFloat(s.Name, out)
}

// AsString returns a new string column with the same name.
func (s *Series) AsString() *Series {
	out := make([]string, s.Len())
	for i := range out {
		out[i] = s.Str(i)
	}
	return NewString(s.Name, out)
}

// Rename returns a shallow copy of s under a new name.
func (s *Series) Rename(name string) *Series {
	c := *s
	c.Name = name
	return &c
}

// Clone returns a deep copy.
func (s *Series) Clone() *Series {
	c := &Series{Name: s.Name, Kind: s.Kind}
	switch s.Kind {
	case Float:
		c.Floats = append([]float64(nil), s.Floats...)
	case Int:
		c.Ints = append([]int64(nil), s.Ints...)
	default:
		c.Strings = append([]string(nil), s.Strings...)
	}
	return c
}

func (s *Series) take(idx []int) *Series {
	c := &Series{Name: s.Name, Kind: s.Kind}
	switch s.Kind {
	case Float:
		c.Floats = make([]float64, len(idx))
		for j, i := range idx {
			c.Floats[j] = s.Floats[i]
		}
	case Int:
		c.Ints = make([]int64, len(idx))
		for j, i := range idx {
			c.Ints[j] = s.Ints[i]
		}
	default:
		c.Strings = make([]string, len(idx))
		for j, i := range idx {
			c.Strings[j] = s.Strings[i]
		}
	}
	return c
}

var missingTokens = map[string]struct{}{
	"": {}, "na": {}, "nan": {}, "null": {}, "none": {}, "n/a": {},
}

func isMissingToken(v string) bool {
	_, ok := missingTokens[strings.ToLower(strings.TrimSpace(v))]
	return ok
}

func parseFloat(v string) float64 {
	if isMissingToken(v) {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
