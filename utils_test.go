package pix2pix

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandDense(t *testing.T) {
	u := UniformRandDense(rand.New(rand.NewSource(7)), 10, 20, 2, 3)
	assert.Equal(t, []int{2, 3}, []int(u.Shape()))
	for _, v := range u.Data().([]float64) {
		assert.True(t, v >= 10 && v < 20)
	}
	a := NormRandDense(rand.New(rand.NewSource(7)), 4)
	b := NormRandDense(rand.New(rand.NewSource(7)), 4)
	assert.Equal(t, a.Data(), b.Data())
}

func TestPlotLossCurve(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "loss.png")
	require.NoError(t, PlotLossCurve([]int{1, 2, 3}, map[string][]float64{"loss_gen": {3, 2, 1}, "loss_disc": {0.7, 0.6, 0.7}}, fname))
	assert.FileExists(t, fname)
	assert.Error(t, PlotLossCurve(nil, nil, fname))
	assert.Error(t, PlotLossCurve([]int{1}, map[string][]float64{"loss_gen": {1, 2}}, fname))
}
