package evaluation

import (
	"context"
	"sync"
	"testing"

	"github.com/LdDl/pix2pix-go/config"
	"github.com/LdDl/pix2pix-go/registry"
	"github.com/LdDl/pix2pix-go/structures"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

type stubBackend struct {
	real, fake int
	style      string
}

func (b *stubBackend) FID(ctx context.Context, real, fake []*tensor.Dense, style string) (float64, error) {
	b.real, b.fake, b.style = len(real), len(fake), style
	return 12.5, nil
}

func (b *stubBackend) IS(ctx context.Context, fake []*tensor.Dense, style string) (float64, float64, error) {
	b.fake, b.style = len(fake), style
	return 3, 0.5, nil
}

func pixel(v ...float64) *structures.PixelData {
	return structures.MustPixelData(tensor.New(tensor.WithShape(1, 1, len(v)), tensor.WithBacking(v)), nil)
}

func translated(t *testing.T, n int) []*structures.DataSample {
	t.Helper()
	out := make([]*structures.DataSample, n)
	for i := range out {
		s := structures.NewDataSample(nil)
		require.NoError(t, s.Set("fake_photo", pixel(1, 2)))
		require.NoError(t, s.Set("img_photo", pixel(2, 2)))
		require.NoError(t, s.SetSampleModel("orig"))
		out[i] = s
	}
	return out
}

func TestEvaluatorWithBackend(t *testing.T) {
	ctx := context.Background()
	backend := &stubBackend{}
	ev, err := NewEvaluator(config.EvaluatorConfig{Metrics: []registry.Record{
		{"type": "TransFID", "prefix": "FID-Full", "fake_nums": 3, "fake_key": "fake_photo", "real_key": "img_photo", "inception_style": "PyTorch"},
		{"type": "TransIS", "fake_nums": 10, "fake_key": "fake_photo"},
	}}, backend)
	require.NoError(t, err)
	require.NoError(t, ev.Prepare(ctx))
	require.NoError(t, ev.Process(ctx, translated(t, 2)))
	require.NoError(t, ev.Process(ctx, translated(t, 2)))

	scores, err := ev.Evaluate(ctx)
	require.NoError(t, err)
	want := map[string]float64{"FID-Full/fid": 12.5, "IS-Full/is": 3, "IS-Full/is_std": 0.5}
	if diff := cmp.Diff(want, scores); diff != "" {
		t.Errorf("scores mismatch (-want +got):\n%s", diff)
	}
	// IS ran last and saw every sample, FID stopped at fake_nums
	assert.Equal(t, 4, backend.fake)
	assert.Equal(t, "StyleGAN", backend.style)

	fid := ev.Metrics()[0].(*TransFID)
	assert.Len(t, fid.samples.fake, 3)
	assert.Len(t, fid.samples.real, 3)
	require.NoError(t, ev.Prepare(ctx))
	assert.Empty(t, fid.samples.fake)
}

func TestEvaluatorWithoutBackend(t *testing.T) {
	ctx := context.Background()
	ev, err := NewEvaluator(config.EvaluatorConfig{Metrics: []registry.Record{
		{"type": "TransFID", "fake_key": "fake_photo", "real_key": "img_photo"},
		{"type": "MAE", "gt_key": "img_photo", "pred_key": "fake_photo"},
	}}, nil)
	require.NoError(t, err)
	require.NoError(t, ev.Process(ctx, translated(t, 2)))
	scores, err := ev.Evaluate(ctx)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.InDelta(t, 0.5/255, scores["MAE"], 1e-12)

	_, err = ev.Metrics()[0].Evaluate(ctx)
	assert.ErrorIs(t, err, ErrNoInceptionBackend)
}

func TestSelectSample(t *testing.T) {
	outer := structures.NewDataSample(nil)
	ema := structures.NewDataSample(nil)
	require.NoError(t, ema.Set("fake_photo", pixel(9)))
	require.NoError(t, outer.SetEma(ema))
	assert.Same(t, ema, selectSample(outer, "ema"))
	assert.Same(t, outer, selectSample(outer, "orig"))
}

func TestMetricErrors(t *testing.T) {
	ctx := context.Background()
	_, err := Metrics.Build(registry.Record{"type": "TransFID", "inception_style": "Keras"})
	assert.Error(t, err)
	_, err = Metrics.Build(registry.Record{"type": "TransIS", "sample_model": "best"})
	assert.Error(t, err)
	_, err = Metrics.Build(registry.Record{"type": "KID"})
	assert.ErrorIs(t, err, registry.ErrUnknownType)
	_, err = NewEvaluator(config.EvaluatorConfig{Type: "MultiEvaluator"}, nil)
	assert.Error(t, err)

	mae, err := NewMAE(registry.Record{})
	require.NoError(t, err)
	_, err = mae.Evaluate(ctx)
	assert.ErrorIs(t, err, ErrNoSamples)
	assert.ErrorIs(t, mae.Process(ctx, translated(t, 1)), ErrMissingField)

	is, err := NewTransIS(registry.Record{"fake_key": "fake_photo"})
	require.NoError(t, err)
	is.SetBackend(&stubBackend{})
	_, err = is.Evaluate(ctx)
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestProcessKeepsBatchesWhole(t *testing.T) {
	ctx := context.Background()
	fid, err := NewTransFID(registry.Record{"fake_key": "fake_photo", "real_key": "img_photo"})
	require.NoError(t, err)
	mae, err := NewMAE(registry.Record{"gt_key": "img_photo", "pred_key": "fake_photo"})
	require.NoError(t, err)

	broken := translated(t, 3)
	require.True(t, broken[2].Delete("img_photo"))
	assert.ErrorIs(t, fid.Process(ctx, broken), ErrMissingField)
	assert.ErrorIs(t, mae.Process(ctx, broken), ErrMissingField)
	real, fake := fid.samples.snapshot()
	assert.Empty(t, real)
	assert.Empty(t, fake)
	_, err = mae.Evaluate(ctx)
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestProcessWhileEvaluating(t *testing.T) {
	ctx := context.Background()
	fid, err := NewTransFID(registry.Record{"fake_key": "fake_photo", "real_key": "img_photo"})
	require.NoError(t, err)
	fid.SetBackend(&stubBackend{})
	mae, err := NewMAE(registry.Record{"gt_key": "img_photo", "pred_key": "fake_photo"})
	require.NoError(t, err)
	require.NoError(t, fid.Process(ctx, translated(t, 1)))
	require.NoError(t, mae.Process(ctx, translated(t, 1)))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		batch := translated(t, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, fid.Process(ctx, batch))
			assert.NoError(t, mae.Process(ctx, batch))
		}()
		go func() {
			defer wg.Done()
			_, err := mae.Evaluate(ctx)
			assert.NoError(t, err)
			real, fake := fid.samples.snapshot()
			assert.Equal(t, len(real), len(fake))
		}()
	}
	wg.Wait()
	_, fake := fid.samples.snapshot()
	assert.Len(t, fake, 9)
}
