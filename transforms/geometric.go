package transforms

import (
	"image"
	"math/rand"
	"sync"
	"time"

	"github.com/LdDl/pix2pix-go/registry"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// Resize Rescales images stored under Keys to Scale (width, height)
type Resize struct {
	Keys   []string
	Width  int
	Height int
	// KeepRatio Fits image into Width x Height preserving aspect ratio
	KeepRatio bool
	scaler    draw.Scaler
}

var interpolations = map[string]draw.Scaler{
	"nearest":  draw.NearestNeighbor,
	"bilinear": draw.BiLinear,
	"bicubic":  draw.CatmullRom,
	"area":     draw.ApproxBiLinear,
}

func newResize(rec registry.Record) (*Resize, error) {
	keys, err := rec.Strings("keys")
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, errors.New("Resize needs at least one key")
	}
	scale, err := rec.Ints("scale")
	if err != nil {
		return nil, err
	}
	if len(scale) == 1 {
		scale = append(scale, scale[0])
	}
	if len(scale) != 2 || scale[0] <= 0 || scale[1] <= 0 {
		return nil, errors.Errorf("Resize scale must be two positive ints, got %v", scale)
	}
	keepRatio, err := rec.Bool("keep_ratio", false)
	if err != nil {
		return nil, err
	}
	interp, err := rec.String("interpolation", "bilinear")
	if err != nil {
		return nil, err
	}
	scaler, ok := interpolations[interp]
	if !ok {
		return nil, errors.Errorf("unknown interpolation '%s'", interp)
	}
	return &Resize{Keys: keys, Width: scale[0], Height: scale[1], KeepRatio: keepRatio, scaler: scaler}, nil
}

// Transform Resizes every key and records "<key>_shape" as [H, W, C]
func (t *Resize) Transform(r Results) (Results, error) {
	out := r.Clone()
	for _, key := range t.Keys {
		img, err := imageAt(r, key)
		if err != nil {
			return nil, err
		}
		b := img.Bounds()
		w, h := t.Width, t.Height
		if t.KeepRatio {
			w, h = fitRatio(b.Dx(), b.Dy(), t.Width, t.Height)
		}
		var dst draw.Image
		channels := 3
		if _, gray := img.(*image.Gray); gray {
			dst = image.NewGray(image.Rect(0, 0, w, h))
			channels = 1
		} else {
			dst = image.NewRGBA(image.Rect(0, 0, w, h))
		}
		t.scaler.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		out[key] = dst
		out[key+"_shape"] = []int{h, w, channels}
	}
	return out, nil
}

func fitRatio(srcW, srcH, maxW, maxH int) (int, int) {
	scale := float64(maxW) / float64(srcW)
	if s := float64(maxH) / float64(srcH); s < scale {
		scale = s
	}
	w := int(float64(srcW)*scale + 0.5)
	h := int(float64(srcH)*scale + 0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// Flip Randomly mirrors images stored under Keys. All keys are flipped together.
type Flip struct {
	Keys      []string
	FlipRatio float64
	// Direction "horizontal" or "vertical"
	Direction string
	mu        sync.Mutex
	rng       *rand.Rand
}

func newFlip(rec registry.Record) (*Flip, error) {
	keys, err := rec.Strings("keys")
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, errors.New("Flip needs at least one key")
	}
	ratio, err := rec.Float("flip_ratio", 0.5)
	if err != nil {
		return nil, err
	}
	if ratio < 0 || ratio > 1 {
		return nil, errors.Errorf("flip_ratio must be in [0, 1], got %v", ratio)
	}
	direction, err := rec.String("direction", "horizontal")
	if err != nil {
		return nil, err
	}
	if direction != "horizontal" && direction != "vertical" {
		return nil, errors.Errorf("unknown flip direction '%s'", direction)
	}
	seed, err := rec.Int("seed", int(time.Now().UnixNano()))
	if err != nil {
		return nil, err
	}
	return &Flip{Keys: keys, FlipRatio: ratio, Direction: direction, rng: rand.New(rand.NewSource(int64(seed)))}, nil
}

// Transform Flips with probability FlipRatio and stores "flip" and "flip_direction"
func (t *Flip) Transform(r Results) (Results, error) {
	t.mu.Lock()
	doFlip := t.rng.Float64() < t.FlipRatio
	t.mu.Unlock()
	out := r.Clone()
	out["flip"] = doFlip
	out["flip_direction"] = t.Direction
	if !doFlip {
		return out, nil
	}
	for _, key := range t.Keys {
		img, err := imageAt(r, key)
		if err != nil {
			return nil, err
		}
		out[key] = flipImage(img, t.Direction == "horizontal")
	}
	return out, nil
}

func flipImage(img image.Image, horizontal bool) image.Image {
	var (
		pix    []byte
		stride int
		bpp    int
		res    image.Image
	)
	if g, ok := img.(*image.Gray); ok {
		c := toGray(cloneGray(g))
		pix, stride, bpp, res = c.Pix, c.Stride, 1, c
	} else {
		src := toRGBA(img)
		c := image.NewRGBA(src.Rect)
		copy(c.Pix, src.Pix)
		pix, stride, bpp, res = c.Pix, c.Stride, 4, c
	}
	b := res.Bounds()
	w, h := b.Dx(), b.Dy()
	if horizontal {
		for y := 0; y < h; y++ {
			row := pix[y*stride : y*stride+w*bpp]
			for l, r := 0, w-1; l < r; l, r = l+1, r-1 {
				for k := 0; k < bpp; k++ {
					row[l*bpp+k], row[r*bpp+k] = row[r*bpp+k], row[l*bpp+k]
				}
			}
		}
		return res
	}
	tmp := make([]byte, w*bpp)
	for top, bottom := 0, h-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := pix[top*stride : top*stride+w*bpp]
		z := pix[bottom*stride : bottom*stride+w*bpp]
		copy(tmp, a)
		copy(a, z)
		copy(z, tmp)
	}
	return res
}

func cloneGray(g *image.Gray) *image.Gray {
	c := image.NewGray(g.Rect)
	copy(c.Pix, g.Pix)
	return c
}

func imageAt(r Results, key string) (image.Image, error) {
	v, ok := r[key]
	if !ok {
		return nil, errors.Wrapf(ErrMissingKey, "'%s'", key)
	}
	img, ok := v.(image.Image)
	if !ok {
		return nil, errors.Errorf("value of '%s' is %T, expected image", key, v)
	}
	return img, nil
}
