package structures

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

var (
	// ErrLabelType Value can't be converted into label
	ErrLabelType = errors.New("not an available label type")
	// ErrLabelRange Label index exceeds number of classes
	ErrLabelRange = errors.New("label exceeds num_classes")
)

const (
	// NumClassesKey Metainfo key holding number of classes
	NumClassesKey = "num_classes"
	// UnknownNumClasses Leaves label values unbounded in FormatLabel
	UnknownNumClasses = -1
)

// LabelData Label of single sample: 1-dim tensor of class indices plus meta information.
type LabelData struct {
	Label *tensor.Dense
	meta  Metainfo
}

// NewLabelData Wraps label tensor
func NewLabelData(label *tensor.Dense, meta Metainfo) *LabelData {
	if meta == nil {
		meta = Metainfo{}
	}
	return &LabelData{Label: label, meta: meta.Clone()}
}

// Metainfo Returns copy of meta information
func (l *LabelData) Metainfo() Metainfo {
	return l.meta.Clone()
}

// NumClasses Returns number of classes when it is known
func (l *LabelData) NumClasses() (int, bool) {
	n, ok := l.meta[NumClassesKey].(int)
	return n, ok
}

// Values Returns label indices. Float labels are truncated.
func (l *LabelData) Values() ([]int64, error) {
	return denseToInt64(l.Label)
}

// OneHot Returns (numClasses) float64 tensor with ones at label indices
func (l *LabelData) OneHot(numClasses int) (*tensor.Dense, error) {
	if numClasses <= 0 {
		n, ok := l.NumClasses()
		if !ok {
			return nil, errors.New("number of classes is unknown")
		}
		numClasses = n
	}
	values, err := l.Values()
	if err != nil {
		return nil, err
	}
	backing := make([]float64, numClasses)
	for _, v := range values {
		if v < 0 || v >= int64(numClasses) {
			return nil, errors.Wrapf(ErrLabelRange, "label %d, num_classes %d", v, numClasses)
		}
		backing[v] = 1
	}
	return tensor.New(tensor.WithShape(numClasses), tensor.WithBacking(backing)), nil
}

// LabelFromOneHot Converts one-hot (or multi-hot) vector back to label data
func LabelFromOneHot(onehot *tensor.Dense) (*LabelData, error) {
	if onehot == nil || onehot.Dims() != 1 {
		return nil, errors.Wrap(ErrLabelType, "one-hot label must be 1-dim tensor")
	}
	values, err := denseToFloat64(onehot)
	if err != nil {
		return nil, err
	}
	idx := []int64{}
	for i, v := range values {
		if v != 0 {
			idx = append(idx, int64(i))
		}
	}
	if len(idx) == 0 {
		return nil, errors.Wrap(ErrLabelType, "one-hot label has no positive entries")
	}
	return NewLabelData(
		tensor.New(tensor.WithShape(len(idx)), tensor.WithBacking(idx)),
		Metainfo{NumClassesKey: len(values)},
	), nil
}

// FormatLabel Converts label of various Go types to LabelData.
//
// Supported types: any signed or unsigned integer, slices and arrays of numbers (including
// []interface{} decoded from YAML or JSON), *tensor.Dense. Zero-dimensional tensors are treated as single number.
// Integer input gives int64 labels, input with floating point numbers gives float64 labels.
// numClasses < 0 (UnknownNumClasses) leaves labels unbounded. Otherwise numClasses is stored into
// metainfo and every label value must be less than it, so 0 rejects any label.
//
func FormatLabel(value interface{}, numClasses int) (*LabelData, error) {
	var label *tensor.Dense
	switch v := value.(type) {
	case nil:
		return nil, errors.Wrap(ErrLabelType, "nil value")
	case *tensor.Dense:
		if v == nil {
			return nil, errors.Wrap(ErrLabelType, "nil tensor")
		}
		if v.IsScalar() || v.Dims() == 0 {
			n, ok := scalarToInt64(v.ScalarValue())
			if !ok {
				return nil, errors.Wrapf(ErrLabelType, "scalar tensor of %v", v.Dtype())
			}
			label = int64Label(n)
		} else {
			label = v.Clone().(*tensor.Dense)
			if label.Dims() != 1 {
				if err := label.Reshape(label.Shape().TotalSize()); err != nil {
					return nil, errors.Wrap(err, "Can't flatten label tensor")
				}
			}
		}
	default:
		rv := reflect.ValueOf(value)
		switch {
		case isIntKind(rv.Kind()):
			label = int64Label(intOf(rv))
		case rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array:
			seq, err := sequenceLabel(rv)
			if err != nil {
				return nil, errors.Wrapf(err, "type %T", value)
			}
			label = seq
		default:
			return nil, errors.Wrapf(ErrLabelType, "type %T", value)
		}
	}

	meta := Metainfo{}
	if numClasses >= 0 {
		meta[NumClassesKey] = numClasses
		values, err := denseToFloat64(label)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			return nil, errors.Wrapf(ErrLabelRange, "empty label can't be checked against num_classes (%d)", numClasses)
		}
		for _, x := range values {
			if x >= float64(numClasses) {
				return nil, errors.Wrapf(ErrLabelRange, "the label data (%v) should not exceed num_classes (%d)", values, numClasses)
			}
		}
	}
	return NewLabelData(label, meta), nil
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

// intOf Integer value of v, which must be of integer kind
func intOf(v reflect.Value) int64 {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return int64(v.Uint())
	default:
		return v.Int()
	}
}

// sequenceLabel Flat sequence of numbers into 1-dim tensor
func sequenceLabel(rv reflect.Value) (*tensor.Dense, error) {
	n := rv.Len()
	ints := make([]int64, n)
	floats := make([]float64, n)
	integral := true
	for i := 0; i < n; i++ {
		elem := rv.Index(i)
		for elem.Kind() == reflect.Interface && !elem.IsNil() {
			elem = elem.Elem()
		}
		switch {
		case isIntKind(elem.Kind()):
			ints[i] = intOf(elem)
			floats[i] = float64(ints[i])
		case elem.Kind() == reflect.Float32 || elem.Kind() == reflect.Float64:
			floats[i] = elem.Float()
			integral = false
		default:
			return nil, errors.Wrapf(ErrLabelType, "element #%d is %v", i, elem.Kind())
		}
	}
	if integral {
		return tensor.New(tensor.WithShape(n), tensor.WithBacking(ints)), nil
	}
	return tensor.New(tensor.WithShape(n), tensor.WithBacking(floats)), nil
}

func int64Label(v int64) *tensor.Dense {
	return tensor.New(tensor.WithShape(1), tensor.WithBacking([]int64{v}))
}

func scalarToInt64(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		return int64(t), true
	case float32:
		return int64(t), true
	case float64:
		return int64(t), true
	default:
		return 0, false
	}
}

func denseToFloat64(d *tensor.Dense) ([]float64, error) {
	switch data := d.Data().(type) {
	case []float64:
		return data, nil
	case []float32:
		out := make([]float64, len(data))
		for i := range data {
			out[i] = float64(data[i])
		}
		return out, nil
	case []int:
		out := make([]float64, len(data))
		for i := range data {
			out[i] = float64(data[i])
		}
		return out, nil
	case []int32:
		out := make([]float64, len(data))
		for i := range data {
			out[i] = float64(data[i])
		}
		return out, nil
	case []int64:
		out := make([]float64, len(data))
		for i := range data {
			out[i] = float64(data[i])
		}
		return out, nil
	case []uint8:
		out := make([]float64, len(data))
		for i := range data {
			out[i] = float64(data[i])
		}
		return out, nil
	default:
		if n, ok := scalarToInt64(data); ok {
			return []float64{float64(n)}, nil
		}
		return nil, errors.Wrap(ErrLabelType, fmt.Sprintf("tensor of %v", d.Dtype()))
	}
}

func denseToInt64(d *tensor.Dense) ([]int64, error) {
	if d == nil {
		return nil, errors.Wrap(ErrLabelType, "nil tensor")
	}
	if data, ok := d.Data().([]int64); ok {
		return append([]int64(nil), data...), nil
	}
	values, err := denseToFloat64(d)
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(values))
	for i := range values {
		out[i] = int64(values[i])
	}
	return out, nil
}
