package engine

import (
	"sort"

	"github.com/LdDl/pix2pix-go/config"
	"github.com/LdDl/pix2pix-go/registry"
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// Optimizers Registry of gorgonia solvers built from optimizer records
var Optimizers = registry.New[gorgonia.Solver]("optimizer")

func init() {
	Optimizers.MustRegister("Adam", newAdam)
	Optimizers.MustRegister("RMSProp", newRMSProp)
	Optimizers.MustRegister("SGD", newSGD)
}

// commonSolverOpts Reads lr and weight_decay (as L2 regularization)
func commonSolverOpts(rec registry.Record, defaultLR float64) ([]gorgonia.SolverOpt, error) {
	lr, err := rec.Float("lr", defaultLR)
	if err != nil {
		return nil, err
	}
	if lr <= 0 {
		return nil, errors.Errorf("lr must be positive, got %v", lr)
	}
	opts := []gorgonia.SolverOpt{gorgonia.WithLearnRate(lr)}
	decay, err := rec.Float("weight_decay", 0)
	if err != nil {
		return nil, err
	}
	if decay < 0 {
		return nil, errors.Errorf("weight_decay must not be negative, got %v", decay)
	}
	if decay > 0 {
		opts = append(opts, gorgonia.WithL2Reg(decay))
	}
	clip, err := rec.Float("grad_clip", 0)
	if err != nil {
		return nil, err
	}
	if clip > 0 {
		opts = append(opts, gorgonia.WithClip(clip))
	}
	return opts, nil
}

func newAdam(rec registry.Record) (gorgonia.Solver, error) {
	opts, err := commonSolverOpts(rec, 1e-3)
	if err != nil {
		return nil, err
	}
	betas, err := rec.Floats("betas")
	if err != nil {
		return nil, err
	}
	switch len(betas) {
	case 0:
		betas = []float64{0.9, 0.999}
	case 2:
	default:
		return nil, errors.Errorf("betas must hold two values, got %v", betas)
	}
	eps, err := rec.Float("eps", 1e-8)
	if err != nil {
		return nil, err
	}
	opts = append(opts, gorgonia.WithBeta1(betas[0]), gorgonia.WithBeta2(betas[1]), gorgonia.WithEps(eps))
	return gorgonia.NewAdamSolver(opts...), nil
}

func newRMSProp(rec registry.Record) (gorgonia.Solver, error) {
	opts, err := commonSolverOpts(rec, 1e-2)
	if err != nil {
		return nil, err
	}
	eps, err := rec.Float("eps", 1e-8)
	if err != nil {
		return nil, err
	}
	alpha, err := rec.Float("alpha", 0.99)
	if err != nil {
		return nil, err
	}
	opts = append(opts, gorgonia.WithEps(eps), gorgonia.WithRho(alpha))
	return gorgonia.NewRMSPropSolver(opts...), nil
}

func newSGD(rec registry.Record) (gorgonia.Solver, error) {
	opts, err := commonSolverOpts(rec, 1e-2)
	if err != nil {
		return nil, err
	}
	momentum, err := rec.Float("momentum", 0)
	if err != nil {
		return nil, err
	}
	if momentum > 0 {
		opts = append(opts, gorgonia.WithMomentum(momentum))
		return gorgonia.NewMomentum(opts...), nil
	}
	return gorgonia.NewVanillaSolver(opts...), nil
}

// BuildOptimWrappers Builds solver per model part ("generators", "discriminators")
func BuildOptimWrappers(cfg map[string]config.OptimWrapperConfig) (map[string]gorgonia.Solver, error) {
	names := make([]string, 0, len(cfg))
	for name := range cfg {
		names = append(names, name)
	}
	sort.Strings(names)
	solvers := make(map[string]gorgonia.Solver, len(cfg))
	for _, name := range names {
		ow := cfg[name]
		if ow.Type != "" && ow.Type != "OptimWrapper" {
			return nil, errors.Wrapf(registry.ErrUnknownType, "optim wrapper '%s' for %s", ow.Type, name)
		}
		solver, err := Optimizers.Build(ow.Optimizer)
		if err != nil {
			return nil, errors.Wrapf(err, "optim_wrapper.%s", name)
		}
		solvers[name] = solver
	}
	return solvers, nil
}
