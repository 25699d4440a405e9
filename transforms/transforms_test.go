package transforms

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/LdDl/pix2pix-go/configs"
	"github.com/LdDl/pix2pix-go/registry"
	"github.com/LdDl/pix2pix-go/structures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

// writePair Writes w x h PNG: left half red, right half blue
func writePair(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.SetRGBA(x, y, red)
			} else {
				img.SetRGBA(x, y, blue)
			}
		}
	}
	p := filepath.Join(dir, "pair.png")
	f, err := os.Create(p)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return p
}

func TestLoadPairedImageFromFile(t *testing.T) {
	p := writePair(t, t.TempDir(), 8, 4)
	tr, err := Build(registry.Record{"type": "LoadPairedImageFromFile", "domain_a": "photo", "domain_b": "edges"})
	require.NoError(t, err)

	out, err := tr.Transform(Results{"pair_path": p})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 8, 3}, out["pair_ori_shape"])
	assert.Equal(t, []int{4, 4, 3}, out["img_photo_ori_shape"])
	assert.Equal(t, []int{4, 4, 3}, out["img_edges_ori_shape"])
	assert.Equal(t, p, out["img_photo_path"])

	photo := out["img_photo"].(image.Image)
	edges := out["img_edges"].(image.Image)
	assert.Equal(t, image.Rect(0, 0, 4, 4), photo.Bounds())
	assert.Equal(t, color.RGBAModel.Convert(red), color.RGBAModel.Convert(photo.At(0, 0)))
	assert.Equal(t, color.RGBAModel.Convert(blue), color.RGBAModel.Convert(edges.At(3, 3)))
}

func TestLoadPairedImageErrors(t *testing.T) {
	tr, err := Build(registry.Record{"type": "LoadPairedImageFromFile"})
	require.NoError(t, err)
	_, err = tr.Transform(Results{})
	assert.True(t, errors.Is(err, ErrMissingKey))

	_, err = tr.Transform(Results{"pair_path": filepath.Join(t.TempDir(), "nope.png")})
	assert.Error(t, err)

	_, err = Build(registry.Record{"type": "LoadPairedImageFromFile", "color_type": "sepia"})
	assert.Error(t, err)
	_, err = Build(registry.Record{"type": "LoadPairedImageFromFile", "domain_a": "x", "domain_b": "x"})
	assert.Error(t, err)
}

func TestResize(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 2))
	gray := image.NewGray(image.Rect(0, 0, 4, 2))
	tr, err := Build(registry.Record{"type": "Resize", "keys": []interface{}{"a", "b"}, "scale": []interface{}{8, 6}, "interpolation": "nearest"})
	require.NoError(t, err)
	out, err := tr.Transform(Results{"a": src, "b": gray})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), out["a"].(image.Image).Bounds())
	assert.IsType(t, &image.Gray{}, out["b"])
	assert.Equal(t, []int{6, 8, 3}, out["a_shape"])
	assert.Equal(t, []int{6, 8, 1}, out["b_shape"])

	keep, err := Build(registry.Record{"type": "Resize", "keys": "a", "scale": 8, "keep_ratio": true})
	require.NoError(t, err)
	out, err = keep.Transform(Results{"a": src})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 4), out["a"].(image.Image).Bounds())

	_, err = tr.Transform(Results{"a": src})
	assert.True(t, errors.Is(err, ErrMissingKey))

	_, err = Build(registry.Record{"type": "Resize", "keys": "a", "scale": 8, "interpolation": "lanczos9"})
	assert.Error(t, err)
}

func TestFlip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, red)
	img.SetRGBA(1, 0, blue)
	img.SetRGBA(0, 1, blue)
	img.SetRGBA(1, 1, blue)

	always, err := Build(registry.Record{"type": "Flip", "keys": "img", "flip_ratio": 1.0})
	require.NoError(t, err)
	out, err := always.Transform(Results{"img": img})
	require.NoError(t, err)
	flipped := out["img"].(*image.RGBA)
	assert.Equal(t, red, flipped.RGBAAt(1, 0))
	assert.Equal(t, blue, flipped.RGBAAt(0, 0))
	assert.Equal(t, red, img.RGBAAt(0, 0), "source image must stay untouched")
	assert.Equal(t, true, out["flip"])

	vertical, err := Build(registry.Record{"type": "Flip", "keys": "img", "flip_ratio": 1, "direction": "vertical"})
	require.NoError(t, err)
	out, err = vertical.Transform(Results{"img": img})
	require.NoError(t, err)
	assert.Equal(t, red, out["img"].(*image.RGBA).RGBAAt(0, 1))

	never, err := Build(registry.Record{"type": "Flip", "keys": "img", "flip_ratio": 0})
	require.NoError(t, err)
	out, err = never.Transform(Results{"img": img})
	require.NoError(t, err)
	assert.Same(t, img, out["img"])
	assert.Equal(t, false, out["flip"])

	_, err = Build(registry.Record{"type": "Flip", "keys": "img", "direction": "diagonal"})
	assert.Error(t, err)
}

func TestKeyMapper(t *testing.T) {
	a := image.NewRGBA(image.Rect(0, 0, 2, 2))
	tr, err := Build(registry.Record{
		"type":    "KeyMapper",
		"mapping": map[string]interface{}{"img_photo": "img_A"},
	})
	require.NoError(t, err)
	out, err := tr.Transform(Results{"img_A": a, "other": 1})
	require.NoError(t, err)
	assert.Same(t, a, out["img_A"], "auto remap writes inner output back to outer key")
	assert.NotContains(t, out, "img_photo")
	assert.Equal(t, 1, out["other"])

	explicit, err := Build(registry.Record{
		"type":      "KeyMapper",
		"mapping":   map[string]interface{}{"img": "img_A"},
		"remapping": map[string]interface{}{"img": "img_photo"},
		"transforms": []interface{}{
			map[string]interface{}{"type": "Resize", "keys": "img", "scale": 4},
		},
	})
	require.NoError(t, err)
	out, err = explicit.Transform(Results{"img_A": a})
	require.NoError(t, err)
	assert.Same(t, a, out["img_A"])
	assert.Equal(t, image.Rect(0, 0, 4, 4), out["img_photo"].(image.Image).Bounds())
	assert.NotContains(t, out, "img")
	assert.Equal(t, []int{4, 4, 3}, out["img_shape"])

	_, err = explicit.Transform(Results{})
	assert.True(t, errors.Is(err, ErrMissingKey))
}

func TestPackEditInputs(t *testing.T) {
	photo := image.NewRGBA(image.Rect(0, 0, 3, 2))
	photo.SetRGBA(2, 1, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	mask := image.NewGray(image.Rect(0, 0, 3, 2))
	tr, err := Build(registry.Record{"type": "PackEditInputs", "keys": []interface{}{"img_photo"}})
	require.NoError(t, err)

	out, err := tr.Transform(Results{
		"img_photo":      photo,
		"mask":           mask,
		"gt_label":       2,
		"img_photo_path": "/x.png",
		"flip":           false,
	})
	require.NoError(t, err)
	inputs := out[InputsKey].(map[string]*tensor.Dense)
	sample := out[DataSamplesKey].(*structures.DataSample)

	dense := inputs["img_photo"]
	require.Equal(t, tensor.Shape{3, 2, 3}, dense.Shape())
	v, err := dense.At(0, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)
	v, err = dense.At(2, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 30.0, v)

	pixel, ok := sample.Pixel("img_photo")
	require.True(t, ok)
	assert.Same(t, dense, pixel.Data)
	require.NotNil(t, sample.Mask())
	assert.Equal(t, tensor.Shape{1, 2, 3}, sample.Mask().Shape())
	labels, err := sample.GtLabel().Values()
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, labels)
	assert.Equal(t, "/x.png", sample.Metainfo()["img_photo_path"])
	assert.Equal(t, false, sample.Metainfo()["flip"])

	_, err = tr.Transform(Results{"mask": mask})
	assert.True(t, errors.Is(err, ErrMissingKey))
}

func TestToImageRoundTrip(t *testing.T) {
	d := tensor.New(tensor.WithShape(3, 1, 2), tensor.WithBacking([]float64{0, 300, 10, -5, 128, 255}))
	img, err := ToImage(d)
	require.NoError(t, err)
	rgba := img.(*image.RGBA)
	assert.Equal(t, color.RGBA{R: 0, G: 10, B: 128, A: 255}, rgba.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 255, G: 0, B: 255, A: 255}, rgba.RGBAAt(1, 0))

	back, err := ToTensor(img)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 255, 10, 0, 128, 255}, back.Data())
}

func TestPresetPipeline(t *testing.T) {
	cfg, err := configs.Load(configs.Edges2Shoes, "train_dataloader.dataset.pipeline.1.scale=[8,8]")
	require.NoError(t, err)
	recs, err := cfg.TrainDataloader.Dataset.Records("pipeline")
	require.NoError(t, err)
	pipe, err := Compose(recs)
	require.NoError(t, err)
	assert.Equal(t, 4, pipe.Len())

	p := writePair(t, t.TempDir(), 8, 4)
	out, err := pipe.Transform(Results{"pair_path": p})
	require.NoError(t, err)
	inputs := out[InputsKey].(map[string]*tensor.Dense)
	assert.Equal(t, tensor.Shape{3, 8, 8}, inputs["img_photo"].Shape())
	assert.Equal(t, tensor.Shape{3, 8, 8}, inputs["img_edges"].Shape())
	photoRed, err := inputs["img_photo"].At(0, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 255.0, photoRed, 1)
	edgesRed, err := inputs["img_edges"].At(0, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, edgesRed, 1)

	_, err = Compose([]registry.Record{{"type": "NoSuchTransform"}})
	assert.True(t, errors.Is(err, registry.ErrUnknownType))
}
