// Command tsunami trains, queries and plots the tsunami classifier offline.
//
//	tsunami fit -catalog quakes.csv -out model.gob
//	tsunami predict -model model.gob -magnitude 8.1 -depth 25 -lat 38.3 -lon 142.4
//	tsunami map -catalog quakes.csv -view tsunami -from 1990 -out map.png
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"gonum.org/v1/plot"

	"github.com/YuminosukeSato/tsunamiml/internal/catalog"
	"github.com/YuminosukeSato/tsunamiml/internal/inference"
	"github.com/YuminosukeSato/tsunamiml/internal/mapplot"
	"github.com/YuminosukeSato/tsunamiml/internal/observability"
	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
)

const usage = `usage: tsunami <command> [flags]

commands:
  fit      train a pipeline on a catalog CSV and save it
  predict  score a single earthquake with a saved pipeline
  map      render the epicenter map of a catalog as PNG
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "tsunami:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errors.New("missing command")
	}
	switch args[0] {
	case "fit":
		return runFit(args[1:], stdout, stderr)
	case "predict":
		return runPredict(args[1:], stdout, stderr)
	case "map":
		return runMap(args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return errors.Newf("unknown command %q", args[0])
	}
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	level := fs.String("log-level", "warn", "log level (debug, info, warn, error)")
	return fs, level
}

func runFit(args []string, stdout, stderr io.Writer) error {
	fs, level := newFlagSet("fit", stderr)
	catalogPath := fs.String("catalog", "", "catalog CSV with the training columns")
	out := fs.String("out", "model.gob", "output path for the pipeline artifact")
	c := fs.Float64("c", 1.0, "inverse regularization strength")
	maxIter := fs.Int("max-iter", 500, "maximum solver iterations")
	seed := fs.Int64("seed", 42, "random seed")
	fallback := fs.String("fallback", "", "intensity used when a magnitude group has no median (default: fail)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *catalogPath == "" {
		return errors.New("fit: -catalog is required")
	}
	if _, err := observability.NewLoggerWithWriter(stderr, *level); err != nil {
		return err
	}

	opts := inference.DefaultTrainOptions()
	opts.C, opts.MaxIter, opts.Seed = *c, *maxIter, *seed
	if *fallback != "" {
		v, err := strconv.ParseFloat(*fallback, 64)
		if err != nil {
			return errors.Wrapf(err, "fit: invalid -fallback %q", *fallback)
		}
		opts.Fallback = &v
	}

	cat, err := catalog.LoadFile(*catalogPath)
	if err != nil {
		return err
	}
	p, report, err := inference.Train(cat, opts)
	if err != nil {
		return err
	}
	if err := p.SaveFile(*out); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "trained on %d records, training accuracy %.3f, AUC %.3f, saved %s\n",
		report.Samples, report.Accuracy, report.AUC, *out)
	return nil
}

func runPredict(args []string, stdout, stderr io.Writer) error {
	fs, level := newFlagSet("predict", stderr)
	modelPath := fs.String("model", "model.gob", "pipeline artifact written by fit")
	var in inference.Input
	fs.Float64Var(&in.Magnitude, "magnitude", 0, "moment magnitude")
	fs.Float64Var(&in.Depth, "depth", 0, "focal depth in km")
	fs.Float64Var(&in.Latitude, "lat", 0, "epicenter latitude")
	fs.Float64Var(&in.Longitude, "lon", 0, "epicenter longitude")
	fs.StringVar(&in.Country, "country", "", "country name")
	fs.IntVar(&in.RegionCode, "region", 0, "region code")
	intensity := fs.String("intensity", "", "observed intensity (imputed from magnitude if empty)")
	year := fs.String("year", "", "event year")
	png := fs.String("png", "", "optional path for a map of the queried epicenter")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := observability.NewLoggerWithWriter(stderr, *level); err != nil {
		return err
	}
	if *intensity != "" {
		v, err := strconv.ParseFloat(*intensity, 64)
		if err != nil {
			return errors.Wrapf(err, "predict: invalid -intensity %q", *intensity)
		}
		in.Intensity = &v
	}
	if *year != "" {
		v, err := strconv.Atoi(*year)
		if err != nil {
			return errors.Wrapf(err, "predict: invalid -year %q", *year)
		}
		in.Year = &v
	}

	pred, err := inference.Load(*modelPath)
	if err != nil {
		return err
	}
	res, err := pred.Predict(context.Background(), in)
	if err != nil {
		return err
	}

	if *png != "" {
		p, err := mapplot.Prediction(in.Latitude, in.Longitude, res.Tsunami, 20)
		if err != nil {
			return err
		}
		if err := writePNGFile(*png, p, mapplot.DefaultOptions()); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func runMap(args []string, stdout, stderr io.Writer) error {
	fs, level := newFlagSet("map", stderr)
	catalogPath := fs.String("catalog", "", "catalog CSV")
	view := fs.String("view", "all", "all, tsunami or no-tsunami")
	from := fs.String("from", "", "first year (default: earliest in catalog)")
	to := fs.String("to", "", "last year (default: latest in catalog)")
	out := fs.String("out", "epicenters.png", "output PNG path")
	title := fs.String("title", "Earthquake epicenters", "plot title")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *catalogPath == "" {
		return errors.New("map: -catalog is required")
	}
	if _, err := observability.NewLoggerWithWriter(stderr, *level); err != nil {
		return err
	}

	cat, err := catalog.LoadFile(*catalogPath)
	if err != nil {
		return err
	}
	filter, err := cat.ParseFilter(*view, *from, *to)
	if err != nil {
		return err
	}
	sel := cat.Select(filter)
	opts := mapplot.DefaultOptions()
	opts.Title = *title
	p, err := mapplot.Epicenters(sel.Points(), opts)
	if err != nil {
		return err
	}
	if err := writePNGFile(*out, p, opts); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "plotted %d epicenters to %s\n", sel.Len(), *out)
	return nil
}

func writePNGFile(path string, p *plot.Plot, opts mapplot.Options) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create png")
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "close png")
		}
	}()
	return mapplot.WritePNG(f, p, opts)
}
