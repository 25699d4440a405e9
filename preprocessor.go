package pix2pix

import (
	"github.com/LdDl/pix2pix-go/registry"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// DataPreprocessor Maps images from [0, 255] to network range and back.
//
// Mean, Std - per channel values. Single value is applied to every channel
//
type DataPreprocessor struct {
	Mean []float64
	Std  []float64
}

// NewDataPreprocessor Validates mean/std pair
func NewDataPreprocessor(mean, std []float64) (*DataPreprocessor, error) {
	if len(mean) == 0 || len(mean) != len(std) {
		return nil, errors.Errorf("mean and std must be non-empty and of equal length, got %d and %d", len(mean), len(std))
	}
	for i := range std {
		if std[i] == 0 {
			return nil, errors.Errorf("std[%d] is zero", i)
		}
	}
	return &DataPreprocessor{Mean: append([]float64(nil), mean...), Std: append([]float64(nil), std...)}, nil
}

func newDataPreprocessor(rec registry.Record) (*DataPreprocessor, error) {
	if rec == nil {
		return NewDataPreprocessor([]float64{127.5}, []float64{127.5})
	}
	if typ, err := rec.String("type", "DataPreprocessor"); err != nil {
		return nil, err
	} else if typ != "DataPreprocessor" {
		return nil, errors.Wrapf(registry.ErrUnknownType, "data preprocessor '%s'", typ)
	}
	mean, err := rec.Floats("mean")
	if err != nil {
		return nil, err
	}
	std, err := rec.Floats("std")
	if err != nil {
		return nil, err
	}
	if mean == nil {
		mean = []float64{127.5}
	}
	if std == nil {
		std = []float64{127.5}
	}
	return NewDataPreprocessor(mean, std)
}

// Normalize (x - mean) / std for (N,C,H,W) or (C,H,W) float64 tensor. Input is not modified.
func (p *DataPreprocessor) Normalize(t *tensor.Dense) (*tensor.Dense, error) {
	return p.apply(t, func(v, mean, std float64) float64 { return (v - mean) / std })
}

// Destruct x * std + mean, clipped to [0, 255]
func (p *DataPreprocessor) Destruct(t *tensor.Dense) (*tensor.Dense, error) {
	return p.apply(t, func(v, mean, std float64) float64 {
		out := v*std + mean
		switch {
		case out < 0:
			return 0
		case out > 255:
			return 255
		}
		return out
	})
}

func (p *DataPreprocessor) apply(t *tensor.Dense, fn func(v, mean, std float64) float64) (*tensor.Dense, error) {
	shape := t.Shape()
	if len(shape) != 3 && len(shape) != 4 {
		return nil, errors.Errorf("expected (C,H,W) or (N,C,H,W) tensor, got %v", []int(shape))
	}
	data, ok := t.Data().([]float64)
	if !ok {
		return nil, errors.Errorf("expected float64 tensor, got %v", t.Dtype())
	}
	channels := shape[len(shape)-3]
	if len(p.Mean) != 1 && len(p.Mean) != channels {
		return nil, errors.Errorf("preprocessor has %d channel values, tensor has %d channels", len(p.Mean), channels)
	}
	plane := shape[len(shape)-2] * shape[len(shape)-1]
	out := make([]float64, len(data))
	for i, v := range data {
		c := 0
		if len(p.Mean) > 1 {
			c = (i / plane) % channels
		}
		out[i] = fn(v, p.Mean[c], p.Std[c])
	}
	return tensor.New(tensor.WithShape(shape.Clone()...), tensor.WithBacking(out)), nil
}
