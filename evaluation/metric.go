package evaluation

import (
	"context"

	"github.com/LdDl/pix2pix-go/registry"
	"github.com/LdDl/pix2pix-go/structures"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

var (
	// ErrNoInceptionBackend Inception-based metric has no feature extractor to work with
	ErrNoInceptionBackend = errors.New("no inception backend")
	// ErrNoSamples Metric has nothing to evaluate
	ErrNoSamples = errors.New("no samples processed")
	// ErrMissingField Sample lacks field required by metric
	ErrMissingField = errors.New("missing sample field")
)

// Metric Accumulates outputs of val/test steps and reduces them into named scores.
//
// Prepare resets state before an evaluation round.
// Process consumes one batch of output samples.
// Evaluate returns scores keyed by metric-local names ("fid", "is", "MAE", ...).
//
type Metric interface {
	Name() string
	Prefix() string
	Prepare(ctx context.Context) error
	Process(ctx context.Context, samples []*structures.DataSample) error
	Evaluate(ctx context.Context) (map[string]float64, error)
}

// InceptionBackend Feature extractor behind FID/IS. Images are (C,H,W) in [0, 255].
type InceptionBackend interface {
	FID(ctx context.Context, real, fake []*tensor.Dense, style string) (float64, error)
	IS(ctx context.Context, fake []*tensor.Dense, style string) (mean, std float64, err error)
}

// backendUser Metric which needs InceptionBackend
type backendUser interface {
	SetBackend(b InceptionBackend)
}

// Metrics Registry of metric types
var Metrics = registry.New[Metric]("metric")

func init() {
	Metrics.MustRegister("TransFID", func(rec registry.Record) (Metric, error) { return NewTransFID(rec) })
	Metrics.MustRegister("TransIS", func(rec registry.Record) (Metric, error) { return NewTransIS(rec) })
	Metrics.MustRegister("MAE", func(rec registry.Record) (Metric, error) { return NewMAE(rec) })
}
