package engine

import (
	"context"
	"time"

	"github.com/LdDl/pix2pix-go/registry"

	pix2pix "github.com/LdDl/pix2pix-go"
)

// IterTimerHook Measures iteration time and publishes "time" (last iteration, seconds) and "eta" (seconds)
type IterTimerHook struct {
	BaseHook
	start   time.Time
	started int
	total   time.Duration
	now     func() time.Time
}

// NewIterTimerHook Builds hook from record
func NewIterTimerHook(rec registry.Record) (*IterTimerHook, error) {
	p, err := hookPriority(rec, PriorityNormal)
	if err != nil {
		return nil, err
	}
	return &IterTimerHook{BaseHook: BaseHook{HookName: "IterTimerHook", HookPriority: p}, now: time.Now}, nil
}

// BeforeRun Remembers starting iteration so ETA works for resumed runs
func (h *IterTimerHook) BeforeRun(ctx context.Context, r *Runner) error {
	h.started = r.Iter()
	h.total = 0
	return nil
}

// BeforeTrainIter Starts stopwatch
func (h *IterTimerHook) BeforeTrainIter(ctx context.Context, r *Runner, iter int) error {
	h.start = h.now()
	return nil
}

// AfterTrainIter Publishes timings
func (h *IterTimerHook) AfterTrainIter(ctx context.Context, r *Runner, iter int, losses pix2pix.LossLog) error {
	elapsed := h.now().Sub(h.start)
	h.total += elapsed
	r.SetScalar("time", elapsed.Seconds())
	done := iter - h.started
	if done > 0 {
		avg := h.total.Seconds() / float64(done)
		r.SetScalar("eta", avg*float64(r.MaxIters()-iter))
	}
	return nil
}
