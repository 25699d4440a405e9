package engine

import (
	"context"
	"sort"

	"github.com/LdDl/pix2pix-go/registry"
	"github.com/pkg/errors"

	pix2pix "github.com/LdDl/pix2pix-go"
)

// Priority Order of hook invocation, lower runs first
type Priority int

const (
	PriorityVeryHigh    = Priority(10)
	PriorityHigh        = Priority(30)
	PriorityAboveNormal = Priority(40)
	PriorityNormal      = Priority(50)
	PriorityBelowNormal = Priority(60)
	PriorityLow         = Priority(70)
	PriorityVeryLow     = Priority(90)
)

// Hook Callback attached to runner stages
type Hook interface {
	Name() string
	Priority() Priority
	BeforeRun(ctx context.Context, r *Runner) error
	BeforeTrainIter(ctx context.Context, r *Runner, iter int) error
	// AfterTrainIter iter is 1-based number of finished iterations
	AfterTrainIter(ctx context.Context, r *Runner, iter int, losses pix2pix.LossLog) error
	AfterValEpoch(ctx context.Context, r *Runner, metrics map[string]float64) error
	AfterRun(ctx context.Context, r *Runner) error
}

// BaseHook No-op Hook, meant to be embedded
type BaseHook struct {
	HookName     string
	HookPriority Priority
}

// Name Hook name used in logs
func (h *BaseHook) Name() string {
	return h.HookName
}

// Priority Defaults to PriorityNormal
func (h *BaseHook) Priority() Priority {
	if h.HookPriority == 0 {
		return PriorityNormal
	}
	return h.HookPriority
}

func (h *BaseHook) BeforeRun(ctx context.Context, r *Runner) error {
	return nil
}

func (h *BaseHook) BeforeTrainIter(ctx context.Context, r *Runner, iter int) error {
	return nil
}

func (h *BaseHook) AfterTrainIter(ctx context.Context, r *Runner, iter int, losses pix2pix.LossLog) error {
	return nil
}

func (h *BaseHook) AfterValEpoch(ctx context.Context, r *Runner, metrics map[string]float64) error {
	return nil
}

func (h *BaseHook) AfterRun(ctx context.Context, r *Runner) error {
	return nil
}

// Hooks Registry of hook types
var Hooks = registry.New[Hook]("hook")

func init() {
	Hooks.MustRegister("IterTimerHook", func(rec registry.Record) (Hook, error) { return NewIterTimerHook(rec) })
	Hooks.MustRegister("LoggerHook", func(rec registry.Record) (Hook, error) { return NewLoggerHook(rec) })
	Hooks.MustRegister("CheckpointHook", func(rec registry.Record) (Hook, error) { return NewCheckpointHook(rec) })
	Hooks.MustRegister("GenVisualizationHook", func(rec registry.Record) (Hook, error) { return NewGenVisualizationHook(rec) })
}

// hookPriority Reads optional "priority" which may be a number or a level name
func hookPriority(rec registry.Record, fallback Priority) (Priority, error) {
	v, ok := rec["priority"]
	if !ok {
		return fallback, nil
	}
	if name, ok := v.(string); ok {
		p, known := map[string]Priority{
			"VERY_HIGH":    PriorityVeryHigh,
			"HIGH":         PriorityHigh,
			"ABOVE_NORMAL": PriorityAboveNormal,
			"NORMAL":       PriorityNormal,
			"BELOW_NORMAL": PriorityBelowNormal,
			"LOW":          PriorityLow,
			"VERY_LOW":     PriorityVeryLow,
		}[name]
		if !known {
			return 0, errors.Errorf("unknown hook priority '%s'", name)
		}
		return p, nil
	}
	n, err := rec.Int("priority", int(fallback))
	if err != nil {
		return 0, err
	}
	return Priority(n), nil
}

// sortHooks Stable ordering by priority
func sortHooks(hooks []Hook) {
	sort.SliceStable(hooks, func(i, j int) bool {
		return hooks[i].Priority() < hooks[j].Priority()
	})
}

// buildHooks Builds default hooks (by sorted name; nil records disable a hook) followed by custom ones
func buildHooks(defaults map[string]registry.Record, custom []registry.Record) ([]Hook, error) {
	names := make([]string, 0, len(defaults))
	for name := range defaults {
		names = append(names, name)
	}
	sort.Strings(names)
	hooks := make([]Hook, 0, len(names)+len(custom))
	for _, name := range names {
		rec := defaults[name]
		if rec == nil {
			continue
		}
		h, err := Hooks.Build(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "default_hooks.%s", name)
		}
		hooks = append(hooks, h)
	}
	for i, rec := range custom {
		h, err := Hooks.Build(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "custom_hooks[%d]", i)
		}
		hooks = append(hooks, h)
	}
	sortHooks(hooks)
	return hooks, nil
}
