package engine

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/LdDl/pix2pix-go/dataset"
	"github.com/LdDl/pix2pix-go/registry"
	"github.com/LdDl/pix2pix-go/structures"
	"github.com/LdDl/pix2pix-go/transforms"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	pix2pix "github.com/LdDl/pix2pix-go"
)

// translator Model which names its source/fake/target fields
type translator interface {
	SourceKey() string
	TargetKey() string
	FakeKey() string
}

// VisKwargs Single visualization target: Translation (train split) or TranslationVal (val split)
type VisKwargs struct {
	Type string
	Name string
}

// GenVisualizationHook Saves grids of source | fake | target rows every Interval iterations.
//
// FixedInput - reuse the same first NSamples items of the split every time
// NSamples - rows in grid
//
type GenVisualizationHook struct {
	BaseHook
	Interval   int
	FixedInput bool
	NSamples   int
	VisKwargs  []VisKwargs

	fixed map[string]*dataset.Batch
	rng   *rand.Rand
}

// NewGenVisualizationHook Builds hook from record
func NewGenVisualizationHook(rec registry.Record) (*GenVisualizationHook, error) {
	p, err := hookPriority(rec, PriorityLow)
	if err != nil {
		return nil, err
	}
	h := &GenVisualizationHook{BaseHook: BaseHook{HookName: "GenVisualizationHook", HookPriority: p}, fixed: map[string]*dataset.Batch{}}
	if h.Interval, err = rec.Int("interval", 1000); err != nil {
		return nil, err
	}
	if h.Interval <= 0 {
		return nil, errors.Errorf("GenVisualizationHook interval must be positive, got %d", h.Interval)
	}
	if h.FixedInput, err = rec.Bool("fixed_input", true); err != nil {
		return nil, err
	}
	if h.NSamples, err = rec.Int("n_samples", 4); err != nil {
		return nil, err
	}
	if h.NSamples <= 0 {
		return nil, errors.Errorf("n_samples must be positive, got %d", h.NSamples)
	}
	kwargs, err := rec.Records("vis_kwargs_list")
	if err != nil {
		return nil, err
	}
	if len(kwargs) == 0 {
		kwargs = []registry.Record{{"type": "Translation", "name": "trans"}}
	}
	for i, kw := range kwargs {
		typ, err := kw.Type()
		if err != nil {
			return nil, errors.Wrapf(err, "vis_kwargs_list[%d]", i)
		}
		if typ != "Translation" && typ != "TranslationVal" {
			return nil, errors.Wrapf(registry.ErrUnknownType, "vis_kwargs_list[%d]: '%s'", i, typ)
		}
		name, err := kw.String("name", "trans")
		if err != nil {
			return nil, err
		}
		h.VisKwargs = append(h.VisKwargs, VisKwargs{Type: typ, Name: name})
	}
	return h, nil
}

// BeforeRun Seeds sampling of non-fixed inputs
func (h *GenVisualizationHook) BeforeRun(ctx context.Context, r *Runner) error {
	h.rng = rand.New(rand.NewSource(r.Config().Randomness.Seed))
	return nil
}

// AfterTrainIter Renders grids on interval
func (h *GenVisualizationHook) AfterTrainIter(ctx context.Context, r *Runner, iter int, losses pix2pix.LossLog) error {
	if iter%h.Interval != 0 {
		return nil
	}
	for _, kw := range h.VisKwargs {
		path, err := h.Visualize(ctx, r, kw, iter)
		if err != nil {
			return errors.Wrapf(err, "Can't visualize '%s'", kw.Name)
		}
		r.Logger().Debug().Str("path", path).Msg("Visualization is saved")
	}
	return nil
}

// Visualize Translates samples of the split and saves the grid. Returns path of written file.
func (h *GenVisualizationHook) Visualize(ctx context.Context, r *Runner, kw VisKwargs, iter int) (string, error) {
	tr, ok := r.Model().(translator)
	if !ok {
		return "", errors.Errorf("model %T does not translate between domains", r.Model())
	}
	batch, err := h.inputs(ctx, r, kw)
	if err != nil {
		return "", err
	}
	samples, err := r.Model().ValStep(ctx, batch)
	if err != nil {
		return "", err
	}
	grid, err := composeGrid(samples, []string{tr.SourceKey(), tr.FakeKey(), tr.TargetKey()})
	if err != nil {
		return "", err
	}
	dir := filepath.Join(r.WorkDir(), "vis_data")
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "Can't create visualization directory")
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_iter_%d.png", kw.Name, iter))
	bounds := grid.Bounds()
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s, iteration %d", kw.Name, iter)
	p.HideAxes()
	p.Add(plotter.NewImage(grid, 0, 0, float64(bounds.Dx()), float64(bounds.Dy())))
	// Two points per pixel, plus room for title
	width := vg.Length(2 * bounds.Dx())
	height := vg.Length(2*bounds.Dy()) + vg.Points(24)
	if err = p.Save(width, height, path); err != nil {
		return "", errors.Wrap(err, "Can't save plot")
	}
	return path, nil
}

func (h *GenVisualizationHook) inputs(ctx context.Context, r *Runner, kw VisKwargs) (*dataset.Batch, error) {
	if batch, ok := h.fixed[kw.Name]; ok && h.FixedInput {
		return batch, nil
	}
	loader := r.TrainLoader()
	if kw.Type == "TranslationVal" && r.ValLoader() != nil {
		loader = r.ValLoader()
	}
	ds := loader.Dataset()
	n := h.NSamples
	if n > ds.Len() {
		n = ds.Len()
	}
	if n == 0 {
		return nil, dataset.ErrEmptyDataset
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if !h.FixedInput {
		if h.rng == nil {
			h.rng = rand.New(rand.NewSource(r.Config().Randomness.Seed))
		}
		indices = h.rng.Perm(ds.Len())[:n]
	}
	items := make([]transforms.Results, n)
	for i, idx := range indices {
		item, err := ds.Get(ctx, idx)
		if err != nil {
			return nil, err
		}
		items[i] = item
	}
	batch, err := dataset.Collate(items)
	if err != nil {
		return nil, err
	}
	batch.Indices = indices
	if h.FixedInput {
		h.fixed[kw.Name] = batch
	}
	return batch, nil
}

// composeGrid One row per sample, one column per present key. Cells are (C,H,W) images in [0, 255].
func composeGrid(samples []*structures.DataSample, keys []string) (*image.RGBA, error) {
	if len(samples) == 0 {
		return nil, errors.New("nothing to visualize")
	}
	rows := make([][]image.Image, len(samples))
	cellW, cellH, cols := 0, 0, 0
	for i, s := range samples {
		for _, key := range keys {
			px, ok := s.Pixel(key)
			if !ok {
				continue
			}
			img, err := transforms.ToImage(px.Data)
			if err != nil {
				return nil, errors.Wrapf(err, "'%s' of sample #%d", key, i)
			}
			b := img.Bounds()
			if b.Dx() > cellW {
				cellW = b.Dx()
			}
			if b.Dy() > cellH {
				cellH = b.Dy()
			}
			rows[i] = append(rows[i], img)
		}
		if len(rows[i]) > cols {
			cols = len(rows[i])
		}
	}
	if cols == 0 {
		return nil, errors.Errorf("samples have none of %v", keys)
	}
	grid := image.NewRGBA(image.Rect(0, 0, cols*cellW, len(rows)*cellH))
	for i, row := range rows {
		for j, img := range row {
			cell := image.Rect(j*cellW, i*cellH, j*cellW+img.Bounds().Dx(), i*cellH+img.Bounds().Dy())
			draw.Draw(grid, cell, img, img.Bounds().Min, draw.Src)
		}
	}
	return grid, nil
}
