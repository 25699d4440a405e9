package pix2pix

import (
	"testing"

	"github.com/LdDl/pix2pix-go/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestDataPreprocessor(t *testing.T) {
	p, err := newDataPreprocessor(nil)
	require.NoError(t, err)
	img := tensor.New(tensor.WithShape(1, 1, 2), tensor.WithBacking([]float64{0, 255}))
	norm, err := p.Normalize(img)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 1}, norm.Data())
	// input is untouched
	assert.Equal(t, []float64{0, 255}, img.Data())

	back, err := p.Destruct(tensor.New(tensor.WithShape(1, 1, 1, 3), tensor.WithBacking([]float64{-2, 0, 1})))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 127.5, 255}, back.Data())
}

func TestDataPreprocessorPerChannel(t *testing.T) {
	p, err := newDataPreprocessor(registry.Record{"type": "DataPreprocessor", "mean": []interface{}{0, 10}, "std": []interface{}{1, 2}})
	require.NoError(t, err)
	img := tensor.New(tensor.WithShape(2, 1, 2), tensor.WithBacking([]float64{1, 2, 10, 14}))
	norm, err := p.Normalize(img)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 0, 2}, norm.Data())

	_, err = p.Normalize(tensor.New(tensor.WithShape(3, 1, 1), tensor.WithBacking([]float64{1, 2, 3})))
	assert.Error(t, err)
}

func TestDataPreprocessorErrors(t *testing.T) {
	_, err := NewDataPreprocessor([]float64{1}, []float64{0})
	assert.Error(t, err)
	_, err = NewDataPreprocessor([]float64{1, 2}, []float64{1})
	assert.Error(t, err)
	_, err = newDataPreprocessor(registry.Record{"type": "EditDataPreprocessor"})
	assert.ErrorIs(t, err, registry.ErrUnknownType)
	p, _ := newDataPreprocessor(nil)
	_, err = p.Normalize(tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]float64{1, 2, 3, 4})))
	assert.Error(t, err)
}
