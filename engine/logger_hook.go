package engine

import (
	"context"
	"path/filepath"
	"time"

	"github.com/LdDl/pix2pix-go/registry"
	"github.com/pkg/errors"

	pix2pix "github.com/LdDl/pix2pix-go"
)

// LoggerHook Logs averaged losses every Interval iterations and plots loss curve at the end of run.
//
// Interval - logging period in iterations
// PlotCurve - write loss_curve.png into work_dir after run
//
type LoggerHook struct {
	BaseHook
	Interval  int
	PlotCurve bool

	window map[string][]float64
	iters  []int
	curve  map[string][]float64
}

// NewLoggerHook Builds hook from record
func NewLoggerHook(rec registry.Record) (*LoggerHook, error) {
	p, err := hookPriority(rec, PriorityBelowNormal)
	if err != nil {
		return nil, err
	}
	h := &LoggerHook{BaseHook: BaseHook{HookName: "LoggerHook", HookPriority: p}}
	if h.Interval, err = rec.Int("interval", 10); err != nil {
		return nil, err
	}
	if h.Interval <= 0 {
		return nil, errors.Errorf("LoggerHook interval must be positive, got %d", h.Interval)
	}
	if h.PlotCurve, err = rec.Bool("plot_curve", true); err != nil {
		return nil, err
	}
	h.reset()
	return h, nil
}

func (h *LoggerHook) reset() {
	h.window = map[string][]float64{}
	h.iters = nil
	h.curve = map[string][]float64{}
}

// BeforeRun Drops history of previous run
func (h *LoggerHook) BeforeRun(ctx context.Context, r *Runner) error {
	h.reset()
	return nil
}

// AfterTrainIter Accumulates losses and logs their means every Interval iterations
func (h *LoggerHook) AfterTrainIter(ctx context.Context, r *Runner, iter int, losses pix2pix.LossLog) error {
	for name, v := range losses {
		h.window[name] = append(h.window[name], v)
	}
	if iter%h.Interval != 0 && iter != r.MaxIters() {
		return nil
	}
	means := h.flush()
	if len(means) == 0 {
		return nil
	}
	h.iters = append(h.iters, iter)
	evt := r.Logger().Info().Int("iter", iter).Int("max_iters", r.MaxIters())
	for _, name := range means.Keys() {
		evt = evt.Float64(name, means[name])
		h.curve[name] = append(h.curve[name], means[name])
	}
	if t, ok := r.Scalar("time"); ok {
		evt = evt.Float64("time", t)
	}
	if eta, ok := r.Scalar("eta"); ok {
		evt = evt.Str("eta", time.Duration(eta*float64(time.Second)).Round(time.Second).String())
	}
	evt.Msg("Train")
	return nil
}

// flush Returns per-loss means of the window and clears it. Losses missing in some iterations are averaged over what is present.
func (h *LoggerHook) flush() pix2pix.LossLog {
	means := pix2pix.LossLog{}
	for name, values := range h.window {
		if len(values) == 0 {
			continue
		}
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		means[name] = sum / float64(len(values))
	}
	h.window = map[string][]float64{}
	return means
}

// AfterValEpoch Logs metrics
func (h *LoggerHook) AfterValEpoch(ctx context.Context, r *Runner, metrics map[string]float64) error {
	evt := r.Logger().Info().Int("iter", r.Iter())
	for k, v := range metrics {
		evt = evt.Float64(k, v)
	}
	evt.Msg("Val")
	return nil
}

// AfterRun Writes loss curve
func (h *LoggerHook) AfterRun(ctx context.Context, r *Runner) error {
	if !h.PlotCurve || len(h.iters) == 0 {
		return nil
	}
	// Losses must cover every logged iteration to be drawn
	series := map[string][]float64{}
	for name, values := range h.curve {
		if len(values) == len(h.iters) {
			series[name] = values
		}
	}
	fname := filepath.Join(r.WorkDir(), "loss_curve.png")
	if err := pix2pix.PlotLossCurve(h.iters, series, fname); err != nil {
		return err
	}
	r.Logger().Info().Str("path", fname).Msg("Loss curve is saved")
	return nil
}
