package dataset

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/LdDl/pix2pix-go/config"
	"github.com/LdDl/pix2pix-go/registry"
	"github.com/LdDl/pix2pix-go/structures"
	"github.com/LdDl/pix2pix-go/transforms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

// makeSplit Writes n paired 8x4 PNGs into root/split. Pixel intensity of pair #i is 10*i.
func makeSplit(t *testing.T, root, split string, n int) {
	t.Helper()
	dir := filepath.Join(root, split)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for i := 0; i < n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 8, 4))
		c := color.RGBA{R: uint8(10 * i), G: uint8(10 * i), B: uint8(10 * i), A: 255}
		for y := 0; y < 4; y++ {
			for x := 0; x < 8; x++ {
				img.SetRGBA(x, y, c)
			}
		}
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("%03d.png", i)))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644))
}

func pipelineRecords() []interface{} {
	return []interface{}{
		map[string]interface{}{"type": "LoadPairedImageFromFile"},
		map[string]interface{}{"type": "PackEditInputs", "keys": []interface{}{"img_A", "img_B"}},
	}
}

func datasetRecord(root string, testMode bool) registry.Record {
	return registry.Record{
		"type":      "PairedImageDataset",
		"data_root": root,
		"test_dir":  "val",
		"test_mode": testMode,
		"pipeline":  pipelineRecords(),
	}
}

func TestPairedImageDataset(t *testing.T) {
	root := t.TempDir()
	makeSplit(t, root, "train", 3)
	makeSplit(t, root, "val", 2)

	train, err := Datasets.Build(datasetRecord(root, false))
	require.NoError(t, err)
	assert.Equal(t, 3, train.Len())
	val, err := Datasets.Build(datasetRecord(root, true))
	require.NoError(t, err)
	assert.Equal(t, 2, val.Len())

	res, err := train.Get(context.Background(), 2)
	require.NoError(t, err)
	inputs := res[transforms.InputsKey].(map[string]*tensor.Dense)
	assert.Equal(t, tensor.Shape{3, 4, 4}, inputs["img_A"].Shape())
	v, err := inputs["img_B"].At(1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 20.0, v)
	sample := res[transforms.DataSamplesKey].(*structures.DataSample)
	assert.Equal(t, 2, sample.Metainfo()["sample_idx"])

	_, err = train.Get(context.Background(), 3)
	assert.Error(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = train.Get(ctx, 0)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPairedImageDatasetErrors(t *testing.T) {
	root := t.TempDir()
	_, err := Datasets.Build(datasetRecord(root, false))
	assert.Error(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "train"), 0o755))
	_, err = Datasets.Build(datasetRecord(root, false))
	assert.True(t, errors.Is(err, ErrEmptyDataset))

	_, err = Datasets.Build(registry.Record{"type": "PairedImageDataset"})
	assert.Error(t, err)
}

func TestSamplers(t *testing.T) {
	s, err := Samplers.Build(registry.Record{"type": "DefaultSampler", "shuffle": false})
	require.NoError(t, err)
	assert.False(t, s.Infinite())
	assert.Equal(t, []int{0, 1, 2, 3}, s.Epoch(4, 0))

	inf, err := Samplers.Build(registry.Record{"type": "InfiniteSampler", "seed": 7})
	require.NoError(t, err)
	assert.True(t, inf.Infinite())
	first := inf.Epoch(10, 0)
	assert.Equal(t, first, inf.Epoch(10, 0), "same seed and epoch give same order")
	sorted := append([]int(nil), first...)
	sort.Ints(sorted)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, sorted)
}

func TestDataLoaderFinite(t *testing.T) {
	root := t.TempDir()
	makeSplit(t, root, "val", 5)
	loader, err := Build(config.DataloaderConfig{
		BatchSize:  2,
		NumWorkers: 3,
		Sampler:    registry.Record{"type": "DefaultSampler", "shuffle": false},
		Dataset:    datasetRecord(root, true),
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, loader.Len())

	ctx := context.Background()
	var sizes []int
	var order []int
	for {
		batch, err := loader.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		sizes = append(sizes, batch.Len())
		order = append(order, batch.Indices...)
		assert.Equal(t, batch.Len(), batch.Inputs["img_A"].Shape()[0])
		for i, idx := range batch.Indices {
			v, err := batch.Inputs["img_A"].At(i, 0, 0, 0)
			require.NoError(t, err)
			assert.Equal(t, float64(10*idx), v, "batch keeps sampler order")
		}
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	_, err = loader.Next(ctx)
	assert.Equal(t, io.EOF, err)

	loader.Reset()
	batch, err := loader.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, batch.Indices)
	assert.Equal(t, 2, loader.Epoch())
}

func TestDataLoaderDropLastAndInfinite(t *testing.T) {
	root := t.TempDir()
	makeSplit(t, root, "train", 3)
	ds, err := Datasets.Build(datasetRecord(root, false))
	require.NoError(t, err)
	ctx := context.Background()

	drop := NewDataLoader(ds, &DefaultSampler{seededOrder{}}, Options{BatchSize: 2, DropLast: true})
	assert.Equal(t, 1, drop.Len())
	_, err = drop.Next(ctx)
	require.NoError(t, err)
	_, err = drop.Next(ctx)
	assert.Equal(t, io.EOF, err)

	inf := NewDataLoader(ds, &InfiniteSampler{seededOrder{Shuffle: true, Seed: 1}}, Options{BatchSize: 2, NumWorkers: 2})
	seen := map[int]int{}
	for i := 0; i < 6; i++ {
		batch, err := inf.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, batch.Len())
		for _, idx := range batch.Indices {
			seen[idx]++
		}
	}
	assert.Equal(t, map[int]int{0: 4, 1: 4, 2: 4}, seen)
	assert.Equal(t, 4, inf.Epoch())
}

type brokenDataset struct{}

func (brokenDataset) Len() int { return 2 }
func (brokenDataset) Get(_ context.Context, idx int) (transforms.Results, error) {
	if idx == 1 {
		return nil, errors.New("corrupted file")
	}
	s := structures.NewDataSample(nil)
	return transforms.Results{
		transforms.InputsKey:      map[string]*tensor.Dense{"img": tensor.New(tensor.WithShape(1, 1, 1), tensor.WithBacking([]float64{1}))},
		transforms.DataSamplesKey: s,
	}, nil
}

func TestDataLoaderPropagatesErrors(t *testing.T) {
	loader := NewDataLoader(brokenDataset{}, nil, Options{BatchSize: 2, NumWorkers: 2})
	_, err := loader.Next(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupted file")
}

func TestCollateShapeMismatch(t *testing.T) {
	mk := func(h int) transforms.Results {
		return transforms.Results{
			transforms.InputsKey:      map[string]*tensor.Dense{"img": tensor.New(tensor.WithShape(1, h, 1), tensor.WithBacking(make([]float64, h)))},
			transforms.DataSamplesKey: structures.NewDataSample(nil),
		}
	}
	_, err := Collate([]transforms.Results{mk(1), mk(2)})
	assert.True(t, errors.Is(err, ErrCollate))

	batch, err := Collate([]transforms.Results{mk(2), mk(2)})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 1, 2, 1}, batch.Inputs["img"].Shape())

	_, err = Collate([]transforms.Results{{"inputs": 1}})
	assert.True(t, errors.Is(err, ErrCollate))
}
