package evaluation

import (
	"context"

	"github.com/LdDl/pix2pix-go/config"
	"github.com/LdDl/pix2pix-go/logging"
	"github.com/LdDl/pix2pix-go/structures"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Evaluator Fans output samples out to metrics and merges their scores under "<prefix>/<name>" keys
type Evaluator struct {
	metrics []Metric
	logger  zerolog.Logger
}

// NewEvaluator Builds metrics of evaluator config. Backend may be nil: inception metrics are skipped then.
func NewEvaluator(cfg config.EvaluatorConfig, backend InceptionBackend) (*Evaluator, error) {
	if cfg.Type != "" && cfg.Type != "Evaluator" {
		return nil, errors.Errorf("unknown evaluator type '%s'", cfg.Type)
	}
	metrics, err := Metrics.BuildAll(cfg.Metrics)
	if err != nil {
		return nil, err
	}
	return NewEvaluatorFromMetrics(backend, metrics...), nil
}

// NewEvaluatorFromMetrics Wraps ready metrics
func NewEvaluatorFromMetrics(backend InceptionBackend, metrics ...Metric) *Evaluator {
	for _, m := range metrics {
		if bu, ok := m.(backendUser); ok && backend != nil {
			bu.SetBackend(backend)
		}
	}
	return &Evaluator{metrics: metrics, logger: logging.WithComponent("evaluator")}
}

// Metrics Returns wrapped metrics
func (e *Evaluator) Metrics() []Metric {
	return e.metrics
}

// Empty Reports whether evaluator has no metrics
func (e *Evaluator) Empty() bool {
	return len(e.metrics) == 0
}

// Prepare Resets every metric
func (e *Evaluator) Prepare(ctx context.Context) error {
	for _, m := range e.metrics {
		if err := m.Prepare(ctx); err != nil {
			return errors.Wrapf(err, "Can't prepare %s", m.Name())
		}
	}
	return nil
}

// Process Feeds batch outputs to every metric
func (e *Evaluator) Process(ctx context.Context, samples []*structures.DataSample) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, m := range e.metrics {
		if err := m.Process(ctx, samples); err != nil {
			return errors.Wrapf(err, "Can't process samples by %s", m.Name())
		}
	}
	return nil
}

// Evaluate Merges metric scores. Metrics lacking inception backend are skipped with a warning.
func (e *Evaluator) Evaluate(ctx context.Context) (map[string]float64, error) {
	out := map[string]float64{}
	for _, m := range e.metrics {
		scores, err := m.Evaluate(ctx)
		if errors.Is(err, ErrNoInceptionBackend) {
			e.logger.Warn().Str("metric", m.Name()).Msg("Skipping metric: no inception backend")
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "Can't evaluate %s", m.Name())
		}
		for k, v := range scores {
			key := k
			if m.Prefix() != "" {
				key = m.Prefix() + "/" + k
			}
			out[key] = v
		}
	}
	return out, nil
}
