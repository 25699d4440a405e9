package evaluation

import (
	"context"
	"math"
	"sync"

	"github.com/LdDl/pix2pix-go/registry"
	"github.com/LdDl/pix2pix-go/structures"
	"github.com/pkg/errors"
)

// MAE Mean absolute error between two pixel fields, computed on [0, 1] scale
type MAE struct {
	prefix  string
	gtKey   string
	predKey string
	scale   float64

	mu    sync.Mutex
	sum   float64
	count int
}

// NewMAE Builds metric from record: gt_key, pred_key, scale (default 255), prefix
func NewMAE(rec registry.Record) (*MAE, error) {
	m := &MAE{}
	var err error
	if m.prefix, err = rec.String("prefix", ""); err != nil {
		return nil, err
	}
	if m.gtKey, err = rec.String("gt_key", structures.FieldGtImg); err != nil {
		return nil, err
	}
	if m.predKey, err = rec.String("pred_key", structures.FieldPredImg); err != nil {
		return nil, err
	}
	if m.scale, err = rec.Float("scale", 255); err != nil {
		return nil, err
	}
	if m.scale <= 0 {
		return nil, errors.Errorf("MAE scale must be positive, got %v", m.scale)
	}
	return m, nil
}

// Name Metric name
func (m *MAE) Name() string { return "MAE" }

// Prefix Prefix of result keys
func (m *MAE) Prefix() string { return m.prefix }

// Prepare Resets accumulated error
func (m *MAE) Prepare(ctx context.Context) error {
	m.mu.Lock()
	m.sum, m.count = 0, 0
	m.mu.Unlock()
	return nil
}

// Process Adds per-sample MAE
func (m *MAE) Process(ctx context.Context, samples []*structures.DataSample) error {
	sum := 0.0
	for _, s := range samples {
		gt, ok := s.Pixel(m.gtKey)
		if !ok {
			return errors.Wrapf(ErrMissingField, "'%s'", m.gtKey)
		}
		pred, ok := s.Pixel(m.predKey)
		if !ok {
			return errors.Wrapf(ErrMissingField, "'%s'", m.predKey)
		}
		if !gt.Shape().Eq(pred.Shape()) {
			return errors.Errorf("MAE: '%s' has shape %v, '%s' has %v", m.gtKey, []int(gt.Shape()), m.predKey, []int(pred.Shape()))
		}
		a, ok := gt.Data.Data().([]float64)
		if !ok {
			return errors.Errorf("MAE: '%s' is not float64", m.gtKey)
		}
		b, ok := pred.Data.Data().([]float64)
		if !ok {
			return errors.Errorf("MAE: '%s' is not float64", m.predKey)
		}
		diff := 0.0
		for i := range a {
			diff += math.Abs(a[i]-b[i]) / m.scale
		}
		sum += diff / float64(len(a))
	}
	m.mu.Lock()
	m.sum += sum
	m.count += len(samples)
	m.mu.Unlock()
	return nil
}

// Evaluate Returns {"MAE": mean over samples}
func (m *MAE) Evaluate(ctx context.Context) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count == 0 {
		return nil, ErrNoSamples
	}
	return map[string]float64{"MAE": m.sum / float64(m.count)}, nil
}
