package transforms

import (
	"image"
	"image/color"
	"sort"
	"strings"

	"github.com/LdDl/pix2pix-go/registry"
	"github.com/LdDl/pix2pix-go/structures"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

const (
	// InputsKey Results key holding map[string]*tensor.Dense after packing
	InputsKey = "inputs"
	// DataSamplesKey Results key holding *structures.DataSample after packing
	DataSamplesKey = "data_samples"
)

// wellKnownKeys Result keys which PackEditInputs routes into vocabulary fields of the data sample
var wellKnownKeys = map[string]string{
	"gt":         structures.FieldGtImg,
	"mask":       structures.FieldMask,
	"trimap":     structures.FieldTrimap,
	"alpha":      structures.FieldGtAlpha,
	"fg":         structures.FieldGtFg,
	"bg":         structures.FieldGtBg,
	"merged":     structures.FieldGtMerged,
	"img_lq":     structures.FieldImgLQ,
	"ref":        structures.FieldRefImg,
	"ref_lq":     structures.FieldRefLQ,
	"gt_unsharp": structures.FieldGtUnsharp,
}

// PackEditInputs Final pipeline stage: turns images into CHW float64 tensors and builds the data sample.
//
// Keys are packed into both "inputs" and the data sample. Well-known keys (gt, mask, trimap, ...)
// go to their vocabulary fields, "gt_label" is formatted as label. MetaKeys go to metainfo;
// when MetaKeys is empty every scalar, string or []int value left in results is treated as meta.
type PackEditInputs struct {
	Keys     []string
	MetaKeys []string
}

func newPackEditInputs(rec registry.Record) (*PackEditInputs, error) {
	keys, err := rec.Strings("keys")
	if err != nil {
		return nil, err
	}
	metaKeys, err := rec.Strings("meta_keys")
	if err != nil {
		return nil, err
	}
	return &PackEditInputs{Keys: keys, MetaKeys: metaKeys}, nil
}

// Transform Packs results. Output contains only "inputs" and "data_samples".
func (t *PackEditInputs) Transform(r Results) (Results, error) {
	inputs := make(map[string]*tensor.Dense, len(t.Keys))
	consumed := make(map[string]bool, len(r))
	sample := structures.NewDataSample(nil)

	for _, key := range t.Keys {
		v, ok := r[key]
		if !ok {
			return nil, errors.Wrapf(ErrMissingKey, "'%s' (have: %s)", key, describeKeys(r))
		}
		dense, err := ToTensor(v)
		if err != nil {
			return nil, errors.Wrapf(err, "key '%s'", key)
		}
		pixel, err := structures.NewPixelData(dense, structures.Metainfo{"img_shape": []int(dense.Shape().Clone())})
		if err != nil {
			return nil, errors.Wrapf(err, "key '%s'", key)
		}
		inputs[key] = pixel.Data
		field := key
		if routed, ok := wellKnownKeys[key]; ok {
			field = routed
		}
		if err := sample.Set(field, pixel); err != nil {
			return nil, errors.Wrapf(err, "key '%s'", key)
		}
		consumed[key] = true
	}
	if _, ok := r["img"]; ok && !consumed["img"] {
		dense, err := ToTensor(r["img"])
		if err != nil {
			return nil, errors.Wrap(err, "key 'img'")
		}
		inputs["img"] = dense
		consumed["img"] = true
	}
	for key, field := range wellKnownKeys {
		v, ok := r[key]
		if !ok || consumed[key] {
			continue
		}
		dense, err := ToTensor(v)
		if err != nil {
			return nil, errors.Wrapf(err, "key '%s'", key)
		}
		pixel, err := structures.NewPixelData(dense, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "key '%s'", key)
		}
		if err := sample.Set(field, pixel); err != nil {
			return nil, errors.Wrapf(err, "key '%s'", key)
		}
		consumed[key] = true
	}
	if v, ok := r[structures.FieldGtLabel]; ok {
		if err := sample.SetGtLabel(v); err != nil {
			return nil, errors.Wrap(err, "key 'gt_label'")
		}
		consumed[structures.FieldGtLabel] = true
	}

	meta := structures.Metainfo{}
	if len(t.MetaKeys) > 0 {
		for _, key := range t.MetaKeys {
			if v, ok := r[key]; ok {
				meta[key] = v
			}
		}
	} else {
		for key, v := range r {
			if consumed[key] || !isMetaValue(v) {
				continue
			}
			meta[key] = v
		}
	}
	if err := sample.SetMetainfo(meta); err != nil {
		return nil, err
	}
	return Results{InputsKey: inputs, DataSamplesKey: sample}, nil
}

func isMetaValue(v interface{}) bool {
	switch v.(type) {
	case string, bool, int, int64, float64, []int, []string, []float64:
		return true
	}
	return false
}

// ToTensor Converts image.Image into (C,H,W) float64 tensor with values in [0, 255].
// Gray images give one channel, any other color model gives RGB.
// *tensor.Dense values are returned as float64 clones, (H,W) promoted to (1,H,W).
func ToTensor(v interface{}) (*tensor.Dense, error) {
	switch t := v.(type) {
	case *tensor.Dense:
		return denseToCHW(t)
	case *image.Gray:
		b := t.Bounds()
		w, h := b.Dx(), b.Dy()
		backing := make([]float64, h*w)
		for y := 0; y < h; y++ {
			row := t.Pix[y*t.Stride : y*t.Stride+w]
			for x := 0; x < w; x++ {
				backing[y*w+x] = float64(row[x])
			}
		}
		return tensor.New(tensor.WithShape(1, h, w), tensor.WithBacking(backing)), nil
	case image.Image:
		rgba := toRGBA(t)
		b := rgba.Bounds()
		w, h := b.Dx(), b.Dy()
		plane := h * w
		backing := make([]float64, 3*plane)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				off := y*rgba.Stride + x*4
				idx := y*w + x
				backing[idx] = float64(rgba.Pix[off])
				backing[plane+idx] = float64(rgba.Pix[off+1])
				backing[2*plane+idx] = float64(rgba.Pix[off+2])
			}
		}
		return tensor.New(tensor.WithShape(3, h, w), tensor.WithBacking(backing)), nil
	case nil:
		return nil, errors.New("nil value can't be packed")
	default:
		return nil, errors.Errorf("can't pack value of type %T", v)
	}
}

func denseToCHW(d *tensor.Dense) (*tensor.Dense, error) {
	shape := d.Shape()
	if len(shape) != 2 && len(shape) != 3 {
		return nil, errors.Wrapf(structures.ErrPixelShape, "got %v", []int(shape))
	}
	var backing []float64
	switch data := d.Data().(type) {
	case []float64:
		backing = append([]float64(nil), data...)
	case []float32:
		backing = make([]float64, len(data))
		for i := range data {
			backing[i] = float64(data[i])
		}
	case []uint8:
		backing = make([]float64, len(data))
		for i := range data {
			backing[i] = float64(data[i])
		}
	default:
		return nil, errors.Errorf("unsupported tensor dtype %v", d.Dtype())
	}
	if len(shape) == 2 {
		return tensor.New(tensor.WithShape(1, shape[0], shape[1]), tensor.WithBacking(backing)), nil
	}
	return tensor.New(tensor.WithShape(shape.Clone()...), tensor.WithBacking(backing)), nil
}

// ToImage Converts (C,H,W) or (H,W) tensor with values in [0, 255] back to image.
// Values are clipped. One channel gives *image.Gray, three channels *image.RGBA.
func ToImage(d *tensor.Dense) (image.Image, error) {
	chw, err := denseToCHW(d)
	if err != nil {
		return nil, err
	}
	shape := chw.Shape()
	c, h, w := shape[0], shape[1], shape[2]
	data := chw.Data().([]float64)
	plane := h * w
	switch c {
	case 1:
		img := image.NewGray(image.Rect(0, 0, w, h))
		for i := 0; i < plane; i++ {
			img.Pix[i] = clip8(data[i])
		}
		return img, nil
	case 3:
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				idx := y*w + x
				img.SetRGBA(x, y, color.RGBA{R: clip8(data[idx]), G: clip8(data[plane+idx]), B: clip8(data[2*plane+idx]), A: 255})
			}
		}
		return img, nil
	default:
		return nil, errors.Errorf("can't convert %d channels to image", c)
	}
}

func clip8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}

// describeKeys Sorted comma separated keys, used in error messages
func describeKeys(r Results) string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
