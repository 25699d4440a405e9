package structures

import (
	"sort"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ErrPixelShape PixelData got tensor which is not (H,W) or (C,H,W)
var ErrPixelShape = errors.New("pixel data must be 2 or 3 dimensional")

// Metainfo Free-form meta information: image shapes, file paths, domain names, etc.
type Metainfo map[string]interface{}

// Clone Returns shallow copy
func (m Metainfo) Clone() Metainfo {
	out := make(Metainfo, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Keys Returns sorted keys
func (m Metainfo) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PixelData Pixel-level data of single image: ground truth, prediction, mask, trimap and etc.
//
// Data - (C,H,W) tensor
// meta - meta information
//
type PixelData struct {
	Data *tensor.Dense
	meta Metainfo
}

// NewPixelData Wraps (C,H,W) or (H,W) tensor. The last one is reshaped to (1,H,W).
func NewPixelData(data *tensor.Dense, meta Metainfo) (*PixelData, error) {
	if data == nil {
		return nil, errors.New("pixel data tensor is nil")
	}
	switch data.Dims() {
	case 3:
	case 2:
		shp := data.Shape().Clone()
		data = data.Clone().(*tensor.Dense)
		if err := data.Reshape(1, shp[0], shp[1]); err != nil {
			return nil, errors.Wrap(err, "Can't promote (H,W) pixel data to (1,H,W)")
		}
	default:
		return nil, errors.Wrapf(ErrPixelShape, "got shape %v", data.Shape())
	}
	if meta == nil {
		meta = Metainfo{}
	}
	return &PixelData{Data: data, meta: meta.Clone()}, nil
}

// MustPixelData Same as NewPixelData but panics. Useful for literals in tests and examples.
func MustPixelData(data *tensor.Dense, meta Metainfo) *PixelData {
	p, err := NewPixelData(data, meta)
	if err != nil {
		panic(err)
	}
	return p
}

// Shape Returns (C,H,W)
func (p *PixelData) Shape() tensor.Shape {
	return p.Data.Shape()
}

// Metainfo Returns copy of meta information
func (p *PixelData) Metainfo() Metainfo {
	return p.meta.Clone()
}

// MetainfoKeys Returns sorted meta keys
func (p *PixelData) MetainfoKeys() []string {
	return p.meta.Keys()
}

// SetMetainfo Sets single meta value
func (p *PixelData) SetMetainfo(key string, value interface{}) {
	if p.meta == nil {
		p.meta = Metainfo{}
	}
	p.meta[key] = value
}
