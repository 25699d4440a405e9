package dataset

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/LdDl/pix2pix-go/config"
	"github.com/LdDl/pix2pix-go/logging"
	"github.com/LdDl/pix2pix-go/registry"
	"github.com/LdDl/pix2pix-go/structures"
	"github.com/LdDl/pix2pix-go/transforms"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorgonia.org/tensor"
)

// ErrCollate Samples of one batch can't be stacked together
var ErrCollate = errors.New("can't collate batch")

// Batch Collated samples
//
// Inputs - packed inputs stacked along new first axis: (N,C,H,W)
// DataSamples - per sample data containers, same order as Inputs
// Indices - dataset indices of samples
//
type Batch struct {
	Inputs      map[string]*tensor.Dense
	DataSamples []*structures.DataSample
	Indices     []int
}

// Len Batch size
func (b *Batch) Len() int {
	return len(b.DataSamples)
}

// Options Dataloader settings
type Options struct {
	BatchSize  int
	NumWorkers int
	DropLast   bool
}

// DataLoader Turns dataset and sampler into stream of batches.
// Samples of a batch are loaded by at most NumWorkers goroutines, order is preserved.
type DataLoader struct {
	dataset Dataset
	sampler Sampler
	opts    Options
	logger  zerolog.Logger

	mu       sync.Mutex
	epoch    int
	queue    []int
	finished bool
}

// NewDataLoader Creates dataloader. Non-positive BatchSize and NumWorkers are treated as 1.
func NewDataLoader(ds Dataset, sampler Sampler, opts Options) *DataLoader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	if sampler == nil {
		sampler = &DefaultSampler{seededOrder{}}
	}
	return &DataLoader{
		dataset: ds,
		sampler: sampler,
		opts:    opts,
		logger:  logging.WithComponent("dataloader"),
	}
}

// Build Creates dataloader from config. Seed is used by the sampler when its record has none.
func Build(cfg config.DataloaderConfig, seed int64) (*DataLoader, error) {
	if cfg.Empty() {
		return nil, errors.New("dataloader has no dataset")
	}
	ds, err := Datasets.Build(cfg.Dataset)
	if err != nil {
		return nil, err
	}
	samplerRec := cfg.Sampler
	if len(samplerRec) == 0 {
		samplerRec = registry.Record{"type": "DefaultSampler", "shuffle": false}
	}
	samplerRec = samplerRec.Clone()
	if !samplerRec.Has("seed") {
		samplerRec["seed"] = seed
	}
	sampler, err := Samplers.Build(samplerRec)
	if err != nil {
		return nil, err
	}
	return NewDataLoader(ds, sampler, Options{
		BatchSize:  cfg.BatchSize,
		NumWorkers: cfg.NumWorkers,
		DropLast:   cfg.DropLast,
	}), nil
}

// Dataset Underlying dataset
func (l *DataLoader) Dataset() Dataset {
	return l.dataset
}

// BatchSize Configured batch size
func (l *DataLoader) BatchSize() int {
	return l.opts.BatchSize
}

// Len Number of batches in one epoch
func (l *DataLoader) Len() int {
	n := l.dataset.Len()
	if l.opts.DropLast {
		return n / l.opts.BatchSize
	}
	return (n + l.opts.BatchSize - 1) / l.opts.BatchSize
}

// Epoch Number of started epochs
func (l *DataLoader) Epoch() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.epoch
}

// Reset Starts over: next call of Next begins new epoch
func (l *DataLoader) Reset() {
	l.mu.Lock()
	l.queue = nil
	l.finished = false
	l.mu.Unlock()
}

// Next Loads next batch. Returns io.EOF when a finite sampler has exhausted the epoch.
func (l *DataLoader) Next(ctx context.Context) (*Batch, error) {
	indices, err := l.take()
	if err != nil {
		return nil, err
	}
	items := make([]transforms.Results, len(indices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.NumWorkers)
	for i, idx := range indices {
		i, idx := i, idx
		g.Go(func() error {
			res, err := l.dataset.Get(gctx, idx)
			if err != nil {
				return errors.Wrapf(err, "sample #%d", idx)
			}
			items[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	batch, err := Collate(items)
	if err != nil {
		return nil, err
	}
	batch.Indices = indices
	return batch, nil
}

func (l *DataLoader) take() ([]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := l.dataset.Len()
	if n == 0 {
		return nil, ErrEmptyDataset
	}
	batch := make([]int, 0, l.opts.BatchSize)
	for len(batch) < l.opts.BatchSize {
		if len(l.queue) == 0 {
			if !l.sampler.Infinite() && (l.finished || len(batch) > 0) {
				break
			}
			l.queue = l.sampler.Epoch(n, l.epoch)
			l.epoch++
			l.finished = false
			l.logger.Debug().Int("epoch", l.epoch).Int("samples", n).Msg("Epoch started")
		}
		take := l.opts.BatchSize - len(batch)
		if take > len(l.queue) {
			take = len(l.queue)
		}
		batch = append(batch, l.queue[:take]...)
		l.queue = l.queue[take:]
		if len(l.queue) == 0 && !l.sampler.Infinite() {
			l.finished = true
			break
		}
	}
	if len(batch) == 0 || (l.opts.DropLast && len(batch) < l.opts.BatchSize) {
		l.finished = true
		return nil, io.EOF
	}
	return batch, nil
}

// Collate Stacks packed samples into a batch. All samples must have the same input keys and shapes.
func Collate(items []transforms.Results) (*Batch, error) {
	if len(items) == 0 {
		return nil, errors.Wrap(ErrCollate, "no samples")
	}
	batch := &Batch{
		Inputs:      map[string]*tensor.Dense{},
		DataSamples: make([]*structures.DataSample, len(items)),
	}
	perKey := map[string][]*tensor.Dense{}
	var keys []string
	for i, item := range items {
		sample, ok := item[transforms.DataSamplesKey].(*structures.DataSample)
		if !ok {
			return nil, errors.Wrapf(ErrCollate, "sample #%d has no packed data sample", i)
		}
		batch.DataSamples[i] = sample
		inputs, ok := item[transforms.InputsKey].(map[string]*tensor.Dense)
		if !ok {
			return nil, errors.Wrapf(ErrCollate, "sample #%d has no packed inputs", i)
		}
		if i == 0 {
			for k := range inputs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
		} else if len(inputs) != len(keys) {
			return nil, errors.Wrapf(ErrCollate, "sample #%d has %d inputs, expected %d", i, len(inputs), len(keys))
		}
		for _, k := range keys {
			t, ok := inputs[k]
			if !ok {
				return nil, errors.Wrapf(ErrCollate, "sample #%d misses input '%s'", i, k)
			}
			perKey[k] = append(perKey[k], t)
		}
	}
	for _, k := range keys {
		stacked, err := Stack(perKey[k])
		if err != nil {
			return nil, errors.Wrapf(err, "input '%s'", k)
		}
		batch.Inputs[k] = stacked
	}
	return batch, nil
}

// Stack Joins float64 tensors of equal shape along new first axis
func Stack(ts []*tensor.Dense) (*tensor.Dense, error) {
	if len(ts) == 0 {
		return nil, errors.Wrap(ErrCollate, "nothing to stack")
	}
	shape := ts[0].Shape().Clone()
	size := shape.TotalSize()
	backing := make([]float64, 0, size*len(ts))
	for i, t := range ts {
		if !t.Shape().Eq(shape) {
			return nil, errors.Wrapf(ErrCollate, "shape %v of item #%d differs from %v", []int(t.Shape()), i, []int(shape))
		}
		data, ok := t.Data().([]float64)
		if !ok {
			return nil, errors.Wrapf(ErrCollate, "item #%d has dtype %v, expected float64", i, t.Dtype())
		}
		backing = append(backing, data...)
	}
	return tensor.New(tensor.WithShape(append([]int{len(ts)}, shape...)...), tensor.WithBacking(backing)), nil
}
