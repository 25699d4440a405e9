package transforms

import (
	"bytes"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/LdDl/pix2pix-go/registry"
	"github.com/pkg/errors"
)

// LoadPairedImageFromFile Loads image holding two domains side by side (A|B) and splits it in halves.
//
// Reads "<key>_path" and writes "<key>", "<key>_ori_shape", "img_<domain_a>", "img_<domain_b>"
// with their "_ori_shape" and "_path" entries. Shapes are [H, W, C].
type LoadPairedImageFromFile struct {
	Key       string
	DomainA   string
	DomainB   string
	Grayscale bool
}

func newLoadPairedImage(rec registry.Record) (*LoadPairedImageFromFile, error) {
	t := &LoadPairedImageFromFile{}
	var err error
	if t.Key, err = rec.String("key", "pair"); err != nil {
		return nil, err
	}
	if t.DomainA, err = rec.String("domain_a", "A"); err != nil {
		return nil, err
	}
	if t.DomainB, err = rec.String("domain_b", "B"); err != nil {
		return nil, err
	}
	colorType, err := rec.String("color_type", "color")
	if err != nil {
		return nil, err
	}
	switch colorType {
	case "color":
	case "grayscale":
		t.Grayscale = true
	default:
		return nil, errors.Errorf("color_type must be 'color' or 'grayscale', got '%s'", colorType)
	}
	if t.DomainA == t.DomainB {
		return nil, errors.Errorf("domains must differ, got '%s' twice", t.DomainA)
	}
	return t, nil
}

// Transform Loads and splits the image
func (t *LoadPairedImageFromFile) Transform(r Results) (Results, error) {
	pathKey := t.Key + "_path"
	p, ok := r[pathKey].(string)
	if !ok {
		return nil, errors.Wrapf(ErrMissingKey, "'%s'", pathKey)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, errors.Wrap(err, "Can't read paired image")
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "Can't decode paired image '%s'", p)
	}
	var full image.Image
	channels := 3
	if t.Grayscale {
		full = toGray(img)
		channels = 1
	} else {
		full = toRGBA(img)
	}
	b := full.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 2 {
		return nil, errors.Errorf("paired image '%s' is too narrow to split: width %d", p, w)
	}
	half := w / 2
	left := crop(full, image.Rect(b.Min.X, b.Min.Y, b.Min.X+half, b.Max.Y))
	right := crop(full, image.Rect(b.Min.X+half, b.Min.Y, b.Min.X+2*half, b.Max.Y))

	out := r.Clone()
	keyA := "img_" + t.DomainA
	keyB := "img_" + t.DomainB
	out[t.Key] = full
	out[t.Key+"_ori_shape"] = []int{h, w, channels}
	out[t.Key+"_format"] = format
	out[keyA] = left
	out[keyA+"_ori_shape"] = []int{h, half, channels}
	out[keyA+"_path"] = p
	out[keyB] = right
	out[keyB+"_ori_shape"] = []int{h, half, channels}
	out[keyB+"_path"] = p
	return out, nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// crop Copies rectangle of img into new zero-origin image of the same color model
func crop(img image.Image, rect image.Rectangle) image.Image {
	if g, ok := img.(*image.Gray); ok {
		dst := image.NewGray(image.Rect(0, 0, rect.Dx(), rect.Dy()))
		draw.Draw(dst, dst.Bounds(), g, rect.Min, draw.Src)
		return dst
	}
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}
