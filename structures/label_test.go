package structures

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestFormatLabelSupportedTypes(t *testing.T) {
	cases := []struct {
		name  string
		value interface{}
		want  []int64
	}{
		{"int", 3, []int64{3}},
		{"int32", int32(4), []int64{4}},
		{"int64", int64(5), []int64{5}},
		{"int slice", []int{1, 2, 3}, []int64{1, 2, 3}},
		{"int32 slice", []int32{0, 7}, []int64{0, 7}},
		{"int64 slice", []int64{9}, []int64{9}},
		{"float slice", []float64{1, 2}, []int64{1, 2}},
		{"uint8", uint8(2), []int64{2}},
		{"int16", int16(3), []int64{3}},
		{"uint64", uint64(11), []int64{11}},
		{"uint8 slice", []uint8{1, 2}, []int64{1, 2}},
		{"int16 array", [2]int16{4, 5}, []int64{4, 5}},
		{"decoded sequence", []interface{}{1, 2}, []int64{1, 2}},
		{"decoded mixed sequence", []interface{}{int64(1), uint16(2), 3.0}, []int64{1, 2, 3}},
		{"scalar tensor", tensor.New(tensor.FromScalar(int64(6))), []int64{6}},
		{"vector tensor", tensor.New(tensor.WithShape(2), tensor.WithBacking([]int32{2, 8})), []int64{2, 8}},
		{"matrix tensor", tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]int64{1, 2, 3, 4})), []int64{1, 2, 3, 4}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			label, err := FormatLabel(tc.value, UnknownNumClasses)
			require.NoError(t, err)
			assert.Equal(t, 1, label.Label.Dims())
			values, err := label.Values()
			require.NoError(t, err)
			assert.Equal(t, tc.want, values)
			_, ok := label.NumClasses()
			assert.False(t, ok)
		})
	}
}

func TestFormatLabelKeepsDtype(t *testing.T) {
	label, err := FormatLabel(7, UnknownNumClasses)
	require.NoError(t, err)
	assert.Equal(t, tensor.Int64, label.Label.Dtype())

	label, err = FormatLabel([]float32{0.5, 1}, UnknownNumClasses)
	require.NoError(t, err)
	assert.Equal(t, tensor.Float64, label.Label.Dtype())

	src := tensor.New(tensor.WithShape(2), tensor.WithBacking([]int32{1, 0}))
	label, err = FormatLabel(src, UnknownNumClasses)
	require.NoError(t, err)
	assert.Equal(t, tensor.Int32, label.Label.Dtype())
}

func TestFormatLabelRejectsUnsupported(t *testing.T) {
	for _, v := range []interface{}{"3", 1.5, true, nil, map[string]int{"a": 1}, []string{"a"}, []interface{}{1, "2"}, [][]int{{1}}, (*tensor.Dense)(nil)} {
		_, err := FormatLabel(v, UnknownNumClasses)
		assert.True(t, errors.Is(err, ErrLabelType), "%T: %v", v, err)
	}
}

func TestFormatLabelNumClasses(t *testing.T) {
	label, err := FormatLabel([]int{0, 4}, 5)
	require.NoError(t, err)
	n, ok := label.NumClasses()
	require.True(t, ok)
	assert.Equal(t, 5, n)

	_, err = FormatLabel(5, 5)
	assert.True(t, errors.Is(err, ErrLabelRange))
	_, err = FormatLabel([]int{1, 9}, 5)
	assert.True(t, errors.Is(err, ErrLabelRange))
	_, err = FormatLabel(tensor.New(tensor.FromScalar(int64(10))), 3)
	assert.True(t, errors.Is(err, ErrLabelRange))

	// zero classes leave no valid label
	_, err = FormatLabel(0, 0)
	assert.True(t, errors.Is(err, ErrLabelRange))
	_, err = FormatLabel([]int{}, 3)
	assert.True(t, errors.Is(err, ErrLabelRange))
}

func TestFormatLabelEmptySequence(t *testing.T) {
	label, err := FormatLabel([]int{}, UnknownNumClasses)
	require.NoError(t, err)
	assert.Equal(t, 0, label.Label.Shape().TotalSize())
	_, ok := label.NumClasses()
	assert.False(t, ok)
}

func TestOneHot(t *testing.T) {
	label, err := FormatLabel([]int{1, 3}, 4)
	require.NoError(t, err)
	onehot, err := label.OneHot(0)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0, 1}, onehot.Data())

	back, err := LabelFromOneHot(onehot)
	require.NoError(t, err)
	values, err := back.Values()
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, values)

	_, err = label.OneHot(2)
	assert.True(t, errors.Is(err, ErrLabelRange))
}
