package structures

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func randImage(c, h, w int) *tensor.Dense {
	backing := make([]float64, c*h*w)
	for i := range backing {
		backing[i] = float64(i % 255)
	}
	return tensor.New(tensor.WithShape(c, h, w), tensor.WithBacking(backing))
}

func TestPixelFieldsRoundTrip(t *testing.T) {
	sample := NewDataSample(nil)
	for _, field := range Fields() {
		kind, ok := FieldKind(field)
		require.True(t, ok)
		if kind != KindPixel {
			continue
		}
		img := MustPixelData(randImage(3, 4, 5), Metainfo{"img_shape": []int{4, 5, 3}})
		require.NoError(t, sample.Set(field, img), field)

		got, ok := sample.Get(field)
		require.True(t, ok, field)
		assert.Same(t, img, got, field)
	}

	gt := MustPixelData(randImage(3, 8, 8), nil)
	require.NoError(t, sample.SetGtImg(gt))
	assert.Same(t, gt, sample.GtImg())
	assert.Equal(t, tensor.Shape{3, 8, 8}, sample.GtImg().Shape())
}

func TestSetRejectsMismatchedType(t *testing.T) {
	sample := NewDataSample(nil)

	cases := []struct {
		field string
		value interface{}
	}{
		{FieldGtImg, randImage(3, 2, 2)},
		{FieldMask, "mask.png"},
		{FieldTrimap, (*PixelData)(nil)},
		{FieldNoise, MustPixelData(randImage(1, 2, 2), nil)},
		{FieldSampleModel, 1},
		{FieldEma, sample.New().GtImg()},
		{FieldGtLabel, []int{1}},
		{FieldGtAlpha, nil},
	}
	for _, tc := range cases {
		err := sample.Set(tc.field, tc.value)
		assert.True(t, errors.Is(err, ErrFieldType), "%s <- %T: %v", tc.field, tc.value, err)
		assert.False(t, sample.Has(tc.field), tc.field)
	}

	assert.True(t, errors.Is(sample.SetPredAlpha(nil), ErrFieldType))
	assert.True(t, errors.Is(sample.SetOrig(nil), ErrFieldType))
}

func TestTypedFields(t *testing.T) {
	sample := NewDataSample(nil)

	noise := randImage(1, 1, 16)
	require.NoError(t, sample.SetNoise(noise))
	assert.Same(t, noise, sample.Noise())

	require.NoError(t, sample.SetSampleModel("ema/orig"))
	assert.Equal(t, "ema/orig", sample.SampleModel())

	ema := NewDataSample(nil)
	orig := NewDataSample(nil)
	require.NoError(t, sample.SetEma(ema))
	require.NoError(t, sample.SetOrig(orig))
	require.NoError(t, sample.SetGtSamples(NewDataSample(nil)))
	assert.Same(t, ema, sample.Ema())
	assert.Same(t, orig, sample.Orig())
	assert.NotNil(t, sample.GtSamples())

	assert.Nil(t, sample.Trimap())
	assert.Nil(t, sample.GtLabel())
}

func TestDeleteField(t *testing.T) {
	sample := NewDataSample(nil)
	require.NoError(t, sample.SetMask(MustPixelData(randImage(1, 4, 4), nil)))
	require.True(t, sample.Has(FieldMask))

	assert.True(t, sample.Delete(FieldMask))
	assert.False(t, sample.Has(FieldMask))
	assert.Nil(t, sample.Mask())
	assert.False(t, sample.Delete(FieldMask))
}

func TestFreeFormFieldsAndMetainfo(t *testing.T) {
	sample := NewDataSample(Metainfo{"pair_path": "a.jpg"})
	require.NoError(t, sample.Set("img_photo", MustPixelData(randImage(3, 2, 2), nil)))
	require.NoError(t, sample.Set("num_classes", 10))

	assert.Equal(t, []string{"img_photo", "num_classes"}, sample.Keys())
	assert.Equal(t, []string{"pair_path"}, sample.MetainfoKeys())
	assert.Equal(t, "a.jpg", sample.GetOr("pair_path", ""))
	assert.Equal(t, "fallback", sample.GetOr("missing", "fallback"))

	err := sample.Set("pair_path", "b.jpg")
	assert.True(t, errors.Is(err, ErrFieldConflict))
	err = sample.SetMetainfo(Metainfo{"img_photo": 1})
	assert.True(t, errors.Is(err, ErrFieldConflict))
	assert.True(t, errors.Is(sample.Set("fake_photo", nil), ErrFieldType))

	cp := sample.Clone()
	cp.Delete("img_photo")
	assert.True(t, sample.Has("img_photo"))

	fresh := sample.New()
	assert.Equal(t, 0, fresh.Len())
	assert.Equal(t, "a.jpg", fresh.GetOr("pair_path", ""))
	assert.Contains(t, sample.String(), "img_photo: PixelData[3 2 2]")
}

func TestPixelDataPromotes2D(t *testing.T) {
	gray := tensor.New(tensor.WithShape(4, 6), tensor.WithBacking(make([]float64, 24)))
	p, err := NewPixelData(gray, Metainfo{"img_shape": []int{4, 6}})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 4, 6}, p.Shape())
	assert.Equal(t, tensor.Shape{4, 6}, gray.Shape())
	assert.Equal(t, []string{"img_shape"}, p.MetainfoKeys())

	_, err = NewPixelData(tensor.New(tensor.WithShape(4), tensor.WithBacking(make([]float64, 4))), nil)
	assert.True(t, errors.Is(err, ErrPixelShape))
}

func TestSetGtLabel(t *testing.T) {
	sample := NewDataSample(Metainfo{NumClassesKey: 5})
	require.NoError(t, sample.SetGtLabel(3))
	values, err := sample.GtLabel().Values()
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, values)
	n, ok := sample.GtLabel().NumClasses()
	require.True(t, ok)
	assert.Equal(t, 5, n)

	first := sample.GtLabel()
	require.NoError(t, sample.SetGtLabel([]int{1, 2}))
	assert.Same(t, first, sample.GtLabel())
	values, err = sample.GtLabel().Values()
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, values)

	// labels decoded from annotation records
	require.NoError(t, sample.SetGtLabel([]interface{}{0, 4}))
	values, err = sample.GtLabel().Values()
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 4}, values)

	err = sample.SetGtLabel(7)
	assert.True(t, errors.Is(err, ErrLabelRange))
	err = sample.SetGtLabel("cat")
	assert.True(t, errors.Is(err, ErrLabelType))
}
