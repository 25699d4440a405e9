package pix2pix

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/LdDl/pix2pix-go/dataset"
	"github.com/LdDl/pix2pix-go/registry"
	"github.com/LdDl/pix2pix-go/structures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func tinyModelRecord() registry.Record {
	return registry.Record{
		"type":              "Pix2Pix",
		"default_domain":    "photo",
		"reachable_domains": []interface{}{"photo"},
		"related_domains":   []interface{}{"photo", "edges"},
		"generator": map[string]interface{}{
			"type":          "SequentialGenerator",
			"base_channels": 4,
			"num_blocks":    1,
			"init_cfg":      map[string]interface{}{"type": "normal", "gain": 0.02},
		},
		"discriminator": map[string]interface{}{
			"type":          "PatchDiscriminator",
			"base_channels": 4,
			"num_conv":      2,
		},
		"loss_config": map[string]interface{}{"pixel_loss_weight": 10},
	}
}

func tinyModel(t *testing.T) *Pix2Pix {
	t.Helper()
	m, err := Models.Build(tinyModelRecord())
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m.(*Pix2Pix)
}

func tinyBatch(seed int64, n int) *dataset.Batch {
	rng := rand.New(rand.NewSource(seed))
	samples := make([]*structures.DataSample, n)
	for i := range samples {
		samples[i] = structures.NewDataSample(structures.Metainfo{"sample_idx": i})
	}
	return &dataset.Batch{
		Inputs: map[string]*tensor.Dense{
			"img_photo": UniformRandDense(rng, 0, 255, n, 3, 8, 8),
			"img_edges": UniformRandDense(rng, 0, 255, n, 3, 8, 8),
		},
		DataSamples: samples,
		Indices:     []int{0, 1}[:n],
	}
}

func tinySolvers() map[string]gorgonia.Solver {
	return map[string]gorgonia.Solver{
		PartGenerators:     gorgonia.NewAdamSolver(gorgonia.WithLearnRate(2e-4), gorgonia.WithBeta1(0.5), gorgonia.WithBeta2(0.999)),
		PartDiscriminators: gorgonia.NewAdamSolver(gorgonia.WithLearnRate(2e-4), gorgonia.WithBeta1(0.5), gorgonia.WithBeta2(0.999)),
	}
}

func TestPix2PixDomains(t *testing.T) {
	m := tinyModel(t)
	assert.Equal(t, "edges", m.SourceDomain())
	assert.Equal(t, "img_edges", m.SourceKey())
	assert.Equal(t, "img_photo", m.TargetKey())
	assert.Equal(t, "fake_photo", m.FakeKey())
	assert.Equal(t, 10.0, m.PixelLossWeight)

	rec := tinyModelRecord()
	rec["related_domains"] = []interface{}{"photo"}
	_, err := Models.Build(rec)
	assert.Error(t, err)

	rec = tinyModelRecord()
	rec["default_domain"] = "sketch"
	_, err = Models.Build(rec)
	assert.Error(t, err)

	rec = tinyModelRecord()
	rec["discriminator"] = map[string]interface{}{"type": "PatchDiscriminator", "in_channels": 4}
	_, err = Models.Build(rec)
	assert.Error(t, err)
}

func TestNewPix2PixDefaults(t *testing.T) {
	m, err := NewPix2Pix(Pix2PixOptions{
		DefaultDomain:  "photo",
		RelatedDomains: []string{"edges", "photo"},
		Generator:      &SequentialGenerator{In: 3, Out: 3, Base: 2, Activation: Rectify},
		Discriminator:  &PatchDiscriminator{In: 6, Base: 2, NumConv: 1, Activation: LeakyReLU(0.2)},
	})
	require.NoError(t, err)
	defer m.Close()
	require.NotNil(t, m.Preprocessor)
	assert.Equal(t, []float64{127.5}, m.Preprocessor.Mean)
	assert.Equal(t, []float64{127.5}, m.Preprocessor.Std)
	assert.Equal(t, []string{"photo"}, m.ReachableDomains)
	assert.Equal(t, "edges", m.SourceDomain())
}

func TestPix2PixTrainStep(t *testing.T) {
	m := tinyModel(t)
	ctx := context.Background()
	solvers := tinySolvers()
	before, err := m.State()
	require.NoError(t, err)

	batch := tinyBatch(1, 2)
	for i := 0; i < 2; i++ {
		losses, err := m.TrainStep(ctx, batch, solvers)
		require.NoError(t, err)
		assert.Equal(t, []string{"loss_disc", "loss_gen", "loss_gen_gan", "loss_gen_pixel"}, losses.Keys())
		for name, v := range losses {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), name)
			assert.True(t, v >= 0, name)
		}
		assert.InDelta(t, losses["loss_gen_gan"]+10*losses["loss_gen_pixel"], losses["loss_gen"], 1e-6)
	}

	after, err := m.State()
	require.NoError(t, err)
	assert.NotEqual(t, before.Parts[PartGenerators][0].Data, after.Parts[PartGenerators][0].Data)
	assert.NotEqual(t, before.Parts[PartDiscriminators][0].Data, after.Parts[PartDiscriminators][0].Data)

	// training graphs are bound to the first batch shape
	_, err = m.TrainStep(ctx, tinyBatch(2, 1), solvers)
	assert.ErrorIs(t, err, ErrBatchShape)

	_, err = m.TrainStep(ctx, batch, map[string]gorgonia.Solver{PartGenerators: solvers[PartGenerators]})
	assert.ErrorIs(t, err, ErrMissingSolver)

	delete(batch.Inputs, "img_photo")
	_, err = m.TrainStep(ctx, batch, solvers)
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestPix2PixValStep(t *testing.T) {
	m := tinyModel(t)
	batch := tinyBatch(3, 2)
	samples, err := m.ValStep(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	for i, s := range samples {
		assert.Equal(t, i, s.GetOr("sample_idx", -1))
		assert.Equal(t, "orig", s.SampleModel())
		fake, ok := s.Pixel("fake_photo")
		require.True(t, ok)
		assert.Equal(t, []int{3, 8, 8}, []int(fake.Shape()))
		for _, v := range fake.Data.Data().([]float64) {
			assert.True(t, v >= 0 && v <= 255)
		}
		assert.Same(t, fake, s.FakeImg())
		assert.True(t, s.Has("img_photo"))
		assert.True(t, s.Has("img_edges"))
	}

	// samples of the test split may miss target images
	delete(batch.Inputs, "img_photo")
	samples, err = m.TestStep(context.Background(), batch)
	require.NoError(t, err)
	assert.False(t, samples[0].Has("img_photo"))
}

func TestPix2PixSeededInit(t *testing.T) {
	build := func(seed int) *State {
		rec := tinyModelRecord()
		rec["seed"] = seed
		m, err := Models.Build(rec)
		require.NoError(t, err)
		defer m.Close()
		st, err := m.State()
		require.NoError(t, err)
		return st
	}
	first, second, other := build(2022), build(2022), build(7)
	for _, part := range first.PartNames() {
		for i := range first.Parts[part] {
			assert.Equal(t, first.Parts[part][i].Data, second.Parts[part][i].Data, part)
		}
	}
	assert.NotEqual(t, first.Parts[PartDiscriminators][0].Data, other.Parts[PartDiscriminators][0].Data)
}

func TestPix2PixStateRoundTrip(t *testing.T) {
	m := tinyModel(t)
	ctx := context.Background()
	_, err := m.TrainStep(ctx, tinyBatch(4, 2), tinySolvers())
	require.NoError(t, err)
	state, err := m.State()
	require.NoError(t, err)
	assert.Equal(t, []string{PartDiscriminators, PartGenerators}, state.PartNames())

	restored := tinyModel(t)
	require.NoError(t, restored.LoadState(state))

	src := tinyBatch(5, 1).Inputs["img_edges"]
	want, err := m.Translate(ctx, src)
	require.NoError(t, err)
	got, err := restored.Translate(ctx, src)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want.Data(), got.Data(), 1e-9)

	state.Parts[PartGenerators] = state.Parts[PartGenerators][1:]
	assert.ErrorIs(t, restored.LoadState(state), ErrStateMismatch)
}

func TestBatchItem(t *testing.T) {
	batch := tensor.New(tensor.WithShape(2, 1, 1, 2), tensor.WithBacking([]float64{1, 2, 3, 4}))
	item, err := BatchItem(batch, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 2}, []int(item.Shape()))
	assert.Equal(t, []float64{3, 4}, item.Data())
	_, err = BatchItem(batch, 2)
	assert.Error(t, err)
}
