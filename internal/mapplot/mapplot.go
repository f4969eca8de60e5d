// Package mapplot renders earthquake epicenters as longitude/latitude
// scatter plots.
package mapplot

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/tsunamiml/internal/catalog"
	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
)

// Marker colors.
var (
	ColorNoTsunami = color.RGBA{G: 128, A: 255}
	ColorTsunami   = color.RGBA{R: 220, A: 255}
)

// Legend entries.
const (
	LegendNoTsunami = "Earthquake without tsunami"
	LegendTsunami   = "Earthquake with tsunami"
)

// Options sets the image size and title.
type Options struct {
	Width  vg.Length
	Height vg.Length
	Title  string
}

// DefaultOptions returns a 10x6 inch world map.
func DefaultOptions() Options {
	return Options{Width: 10 * vg.Inch, Height: 6 * vg.Inch, Title: "Historical earthquakes"}
}

func newPlot(title string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"
	p.Add(plotter.NewGrid())
	p.Legend.Top = false
	p.Legend.Left = true
	return p
}

func scatter(pts plotter.XYs, c color.Color, radius vg.Length) (*plotter.Scatter, error) {
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, errors.Wrap(err, "create scatter")
	}
	s.GlyphStyle.Color = c
	s.GlyphStyle.Radius = radius
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	return s, nil
}

// Epicenters plots points, green without tsunami and red with tsunami.
// An empty selection returns catalog.ErrEmptySelection.
func Epicenters(points []catalog.Point, opts Options) (*plot.Plot, error) {
	if len(points) == 0 {
		return nil, catalog.ErrEmptySelection
	}

	var calm, wave plotter.XYs
	for _, pt := range points {
		xy := plotter.XY{X: pt.Longitude, Y: pt.Latitude}
		if pt.Tsunami {
			wave = append(wave, xy)
		} else {
			calm = append(calm, xy)
		}
	}

	p := newPlot(opts.Title)
	p.X.Min, p.X.Max = -180, 180
	p.Y.Min, p.Y.Max = -90, 90

	for _, layer := range []struct {
		pts    plotter.XYs
		color  color.Color
		legend string
	}{
		{calm, ColorNoTsunami, LegendNoTsunami},
		{wave, ColorTsunami, LegendTsunami},
	} {
		if len(layer.pts) == 0 {
			continue
		}
		s, err := scatter(layer.pts, layer.color, vg.Points(2))
		if err != nil {
			return nil, err
		}
		p.Add(s)
		p.Legend.Add(layer.legend, s)
	}
	return p, nil
}

// Prediction plots a single queried epicenter colored by label, framed by a
// window of span degrees around it.
func Prediction(lat, lon float64, tsunami bool, span float64) (*plot.Plot, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return nil, errors.NewValidationError("coordinates", "must not be NaN", fmt.Sprintf("%v,%v", lat, lon))
	}
	c, legend := ColorNoTsunami, LegendNoTsunami
	if tsunami {
		c, legend = ColorTsunami, LegendTsunami
	}

	p := newPlot(fmt.Sprintf("Queried epicenter (%.2f, %.2f)", lat, lon))
	s, err := scatter(plotter.XYs{{X: lon, Y: lat}}, c, vg.Points(6))
	if err != nil {
		return nil, err
	}
	p.Add(s)
	p.Legend.Add(legend, s)

	p.X.Min, p.X.Max = math.Max(lon-span, -180), math.Min(lon+span, 180)
	p.Y.Min, p.Y.Max = math.Max(lat-span, -90), math.Min(lat+span, 90)
	return p, nil
}

// WritePNG encodes p as PNG.
func WritePNG(w io.Writer, p *plot.Plot, opts Options) error {
	wt, err := p.WriterTo(opts.Width, opts.Height, "png")
	if err != nil {
		return errors.Wrap(err, "render png")
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "write png")
	}
	return nil
}
