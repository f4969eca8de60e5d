package frame

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
)

const catalogCSV = `year,locationName,latitude_eq,longitude_eq,magnitude_Mw,oceanicTsunami,country
2011,"HONSHU, JAPAN",38.3,142.4,9.1,1,JAPAN
2010,MAULE,-36.1,-72.9,8.8,1,CHILE
2015,,,,7.8,0,NEPAL
2012,SOMEWHERE,10.0,bad,6.1,NaN,
`

func TestReadCSV_Inference(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(catalogCSV))
	require.NoError(t, err)
	assert.Equal(t, 4, f.NRows())
	assert.Equal(t, 7, f.NCols())

	year, _ := f.Column("year")
	assert.Equal(t, Float, year.Kind)

	loc, _ := f.Column("locationName")
	assert.Equal(t, String, loc.Kind)
	assert.Equal(t, "HONSHU, JAPAN", loc.Strings[0])
	assert.True(t, loc.IsMissing(2))

	lat, _ := f.Column("latitude_eq")
	assert.Equal(t, Float, lat.Kind)
	assert.True(t, math.IsNaN(lat.Floats[2]))

	// one unparsable value keeps the column as text
	lon, _ := f.Column("longitude_eq")
	assert.Equal(t, String, lon.Kind)

	tsu, _ := f.Column("oceanicTsunami")
	assert.Equal(t, Float, tsu.Kind)
	assert.True(t, math.IsNaN(tsu.Floats[3]))
}

func TestReadCSV_ForcedKinds(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(catalogCSV),
		WithFloatColumns("longitude_eq"),
		WithStringColumns("year"),
	)
	require.NoError(t, err)

	lon, _ := f.Column("longitude_eq")
	assert.Equal(t, Float, lon.Kind)
	assert.InDelta(t, 142.4, lon.Floats[0], 1e-9)
	assert.True(t, math.IsNaN(lon.Floats[3]))

	year, _ := f.Column("year")
	assert.Equal(t, String, year.Kind)
	assert.Equal(t, "2011", year.Strings[0])
}

func TestReadCSV_ShortRowsAndDelimiter(t *testing.T) {
	f, err := ReadCSV(strings.NewReader("a;b\n1;2\n3\n"), WithComma(';'))
	require.NoError(t, err)
	b, _ := f.Column("b")
	assert.Equal(t, 2.0, b.Floats[0])
	assert.True(t, math.IsNaN(b.Floats[1]))
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	f, err := ReadCSV(strings.NewReader("a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, f.NRows())
	assert.Equal(t, 2, f.NCols())
}
