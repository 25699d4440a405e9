package pix2pix

import (
	"image/color"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gorgonia.org/tensor"
)

// NormRandDense Return reference to tensor.Dense filled with normally distributed float64 values
//
// rng - Source of randomness. Global one is used when nil
// shape - Shape of resulting dense
//
func NormRandDense(rng *rand.Rand, shape ...int) *tensor.Dense {
	data := make([]float64, tensor.Shape(shape).TotalSize())
	for i := range data {
		if rng != nil {
			data[i] = rng.NormFloat64()
		} else {
			data[i] = rand.NormFloat64()
		}
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

// UniformRandDense Return reference to tensor.Dense filled with pseudo-random float64 values in range [low, high)
//
// rng - Source of randomness. Global one is used when nil
// low, high - Bounds of values
// shape - Shape of resulting dense
//
func UniformRandDense(rng *rand.Rand, low, high float64, shape ...int) *tensor.Dense {
	data := make([]float64, tensor.Shape(shape).TotalSize())
	for i := range data {
		f := 0.0
		if rng != nil {
			f = rng.Float64()
		} else {
			f = rand.Float64()
		}
		data[i] = low + f*(high-low)
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

var curveColors = []color.RGBA{
	{R: 255, B: 128, A: 255},
	{G: 128, B: 255, A: 255},
	{R: 32, G: 160, B: 32, A: 255},
	{R: 200, G: 120, A: 255},
}

// PlotLossCurve Plot chart of loss values per iteration
//
// iters - Iteration numbers (X axis)
// series - Loss name to values, each of len(iters) elements
// fname - Output file, format is picked by extension
//
func PlotLossCurve(iters []int, series map[string][]float64, fname string) error {
	if len(iters) == 0 {
		return errors.New("Nothing to plot")
	}
	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)
	p := plot.New()
	p.Title.Text = "Losses"
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Loss"
	p.Add(plotter.NewGrid())
	for i, name := range names {
		values := series[name]
		if len(values) != len(iters) {
			return errors.Errorf("Loss '%s' has %d values, but there are %d iterations", name, len(values), len(iters))
		}
		xys := make(plotter.XYs, len(values))
		for j := range values {
			xys[j].X = float64(iters[j])
			xys[j].Y = values[j]
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrapf(err, "Can't init line for '%s'", name)
		}
		line.Color = curveColors[i%len(curveColors)]
		p.Add(line)
		p.Legend.Add(name, line)
	}
	// Save the plot to a file.
	if err := p.Save(6*vg.Inch, 4*vg.Inch, fname); err != nil {
		return errors.Wrap(err, "Can't save plot")
	}
	return nil
}
