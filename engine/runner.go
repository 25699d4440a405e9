package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/LdDl/pix2pix-go/config"
	"github.com/LdDl/pix2pix-go/dataset"
	"github.com/LdDl/pix2pix-go/evaluation"
	"github.com/LdDl/pix2pix-go/logging"
	"github.com/LdDl/pix2pix-go/structures"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorgonia.org/gorgonia"

	pix2pix "github.com/LdDl/pix2pix-go"
)

// ErrNoDataloader Stage has no dataloader configured
var ErrNoDataloader = errors.New("dataloader is not configured")

// Option Runner option
type Option func(r *Runner)

// WithInceptionBackend Injects feature extractor for TransFID/TransIS
func WithInceptionBackend(b evaluation.InceptionBackend) Option {
	return func(r *Runner) {
		r.backend = b
	}
}

// WithLogWriter Sends runner logs to w instead of stderr
func WithLogWriter(w io.Writer) Option {
	return func(r *Runner) {
		r.logWriter = w
	}
}

// Runner Builds every component of the experiment config and drives train/val/test loops.
//
// Components are resolved through registries: pix2pix.Models, dataset.Datasets, dataset.Samplers,
// Optimizers, Hooks and evaluation.Metrics.
//
type Runner struct {
	cfg   *config.Config
	runID string

	model   pix2pix.Model
	solvers map[string]gorgonia.Solver
	hooks   []Hook

	trainLoader *dataset.DataLoader
	valLoader   *dataset.DataLoader
	testLoader  *dataset.DataLoader

	valEvaluator  *evaluation.Evaluator
	testEvaluator *evaluation.Evaluator
	backend       evaluation.InceptionBackend

	logWriter io.Writer
	logger    zerolog.Logger

	iter int

	hubMu sync.RWMutex
	hub   map[string]float64
}

// NewRunner Applies defaults, validates config and builds the runner
func NewRunner(cfg *config.Config, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	r := &Runner{
		cfg:   cfg,
		runID: uuid.New().String(),
		hub:   map[string]float64{},
	}
	for _, opt := range opts {
		opt(r)
	}
	cfg.ApplyDefaults()
	logCfg := logging.Config{Level: cfg.LogLevel}
	if r.logWriter != nil {
		logCfg.Output = r.logWriter
	}
	logging.Reconfigure(logCfg)
	r.logger = logging.Derive(func(c *zerolog.Context) {
		*c = c.Str("component", "runner").Str("run_id", r.runID)
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var err error
	modelRec := cfg.Model.Clone()
	if !modelRec.Has("seed") {
		modelRec["seed"] = int(cfg.Randomness.Seed)
	}
	if r.model, err = pix2pix.Models.Build(modelRec); err != nil {
		return nil, errors.Wrap(err, "model")
	}
	seed := cfg.Randomness.Seed
	if r.trainLoader, err = dataset.Build(cfg.TrainDataloader, seed); err != nil {
		return nil, errors.Wrap(err, "train_dataloader")
	}
	if !cfg.ValDataloader.Empty() {
		if r.valLoader, err = dataset.Build(cfg.ValDataloader, seed); err != nil {
			return nil, errors.Wrap(err, "val_dataloader")
		}
	}
	if !cfg.TestDataloader.Empty() {
		if r.testLoader, err = dataset.Build(cfg.TestDataloader, seed); err != nil {
			return nil, errors.Wrap(err, "test_dataloader")
		}
	}
	if r.solvers, err = BuildOptimWrappers(cfg.OptimWrapper); err != nil {
		return nil, err
	}
	for _, part := range []string{pix2pix.PartGenerators, pix2pix.PartDiscriminators} {
		if _, ok := r.solvers[part]; !ok {
			return nil, errors.Errorf("optim_wrapper.%s is required", part)
		}
	}
	if r.hooks, err = buildHooks(cfg.DefaultHooks, cfg.CustomHooks); err != nil {
		return nil, err
	}
	if r.valEvaluator, err = evaluation.NewEvaluator(cfg.ValEvaluator, r.backend); err != nil {
		return nil, errors.Wrap(err, "val_evaluator")
	}
	if r.testEvaluator, err = evaluation.NewEvaluator(cfg.TestEvaluator, r.backend); err != nil {
		return nil, errors.Wrap(err, "test_evaluator")
	}
	if err = os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "Can't create work_dir")
	}
	if cfg.LoadFrom != "" {
		if err = r.LoadCheckpoint(cfg.LoadFrom, cfg.Resume); err != nil {
			return nil, err
		}
	}
	r.logger.Info().Str("work_dir", cfg.WorkDir).Int("hooks", len(r.hooks)).Msg("Runner is ready")
	return r, nil
}

// RunID Unique id of this run
func (r *Runner) RunID() string { return r.runID }

// Config Effective config
func (r *Runner) Config() *config.Config { return r.cfg }

// WorkDir Output directory
func (r *Runner) WorkDir() string { return r.cfg.WorkDir }

// Model Trained model
func (r *Runner) Model() pix2pix.Model { return r.model }

// Iter Number of finished training iterations
func (r *Runner) Iter() int { return r.iter }

// MaxIters Training length
func (r *Runner) MaxIters() int { return r.cfg.TrainCfg.MaxIters }

// Hooks Hooks in invocation order
func (r *Runner) Hooks() []Hook { return r.hooks }

// Logger Runner logger
func (r *Runner) Logger() *zerolog.Logger { return &r.logger }

// TrainLoader Training dataloader
func (r *Runner) TrainLoader() *dataset.DataLoader { return r.trainLoader }

// ValLoader Validation dataloader, may be nil
func (r *Runner) ValLoader() *dataset.DataLoader { return r.valLoader }

// SetScalar Publishes value for other hooks (e.g. iteration time)
func (r *Runner) SetScalar(key string, v float64) {
	r.hubMu.Lock()
	r.hub[key] = v
	r.hubMu.Unlock()
}

// Scalar Reads published value
func (r *Runner) Scalar(key string) (float64, bool) {
	r.hubMu.RLock()
	defer r.hubMu.RUnlock()
	v, ok := r.hub[key]
	return v, ok
}

func (r *Runner) callHooks(stage string, call func(h Hook) error) error {
	for _, h := range r.hooks {
		if err := call(h); err != nil {
			return errors.Wrapf(err, "[%s] %s", h.Name(), stage)
		}
	}
	return nil
}

// Train Runs iteration based training loop with periodic validation
func (r *Runner) Train(ctx context.Context) error {
	maxIters := r.cfg.TrainCfg.MaxIters
	r.logger.Info().Int("start_iter", r.iter).Int("max_iters", maxIters).Msg("Training starts")
	if err := r.callHooks("before_run", func(h Hook) error { return h.BeforeRun(ctx, r) }); err != nil {
		return err
	}
	for r.iter < maxIters {
		if err := ctx.Err(); err != nil {
			r.logger.Warn().Int("iter", r.iter).Msg("Training is interrupted")
			return err
		}
		if err := r.callHooks("before_train_iter", func(h Hook) error { return h.BeforeTrainIter(ctx, r, r.iter) }); err != nil {
			return err
		}
		batch, err := r.trainLoader.Next(ctx)
		if errors.Is(err, io.EOF) {
			r.trainLoader.Reset()
			batch, err = r.trainLoader.Next(ctx)
		}
		if err != nil {
			return errors.Wrapf(err, "Can't load batch for iteration %d", r.iter+1)
		}
		losses, err := r.model.TrainStep(ctx, batch, r.solvers)
		if err != nil {
			return errors.Wrapf(err, "Iteration %d failed", r.iter+1)
		}
		r.iter++
		if err := r.callHooks("after_train_iter", func(h Hook) error { return h.AfterTrainIter(ctx, r, r.iter, losses) }); err != nil {
			return err
		}
		if r.shouldValidate() {
			if _, err := r.Val(ctx); err != nil {
				return err
			}
		}
	}
	if err := r.callHooks("after_run", func(h Hook) error { return h.AfterRun(ctx, r) }); err != nil {
		return err
	}
	r.logger.Info().Int("iters", r.iter).Msg("Training is done")
	return nil
}

func (r *Runner) shouldValidate() bool {
	tc := r.cfg.TrainCfg
	if r.valLoader == nil || tc.ValInterval <= 0 || r.iter < tc.ValBegin {
		return false
	}
	return r.iter%tc.ValInterval == 0 || r.iter == tc.MaxIters
}

// Val Runs one pass over validation split and evaluates metrics
func (r *Runner) Val(ctx context.Context) (map[string]float64, error) {
	metrics, err := r.evaluate(ctx, r.valLoader, r.valEvaluator, r.model.ValStep)
	if err != nil {
		return nil, errors.Wrap(err, "validation")
	}
	r.logger.Info().Int("iter", r.iter).Fields(toFields(metrics)).Msg("Validation is done")
	if err := r.callHooks("after_val_epoch", func(h Hook) error { return h.AfterValEpoch(ctx, r, metrics) }); err != nil {
		return nil, err
	}
	return metrics, nil
}

// Test Runs one pass over test split and evaluates metrics
func (r *Runner) Test(ctx context.Context) (map[string]float64, error) {
	metrics, err := r.evaluate(ctx, r.testLoader, r.testEvaluator, r.model.TestStep)
	if err != nil {
		return nil, errors.Wrap(err, "test")
	}
	r.logger.Info().Fields(toFields(metrics)).Msg("Test is done")
	return metrics, nil
}

type predictFunc func(ctx context.Context, batch *dataset.Batch) ([]*structures.DataSample, error)

func (r *Runner) evaluate(ctx context.Context, loader *dataset.DataLoader, ev *evaluation.Evaluator, predict predictFunc) (map[string]float64, error) {
	if loader == nil {
		return nil, ErrNoDataloader
	}
	loader.Reset()
	if err := ev.Prepare(ctx); err != nil {
		return nil, err
	}
	for {
		batch, err := loader.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		samples, err := predict(ctx, batch)
		if err != nil {
			return nil, err
		}
		if err = ev.Process(ctx, samples); err != nil {
			return nil, err
		}
	}
	return ev.Evaluate(ctx)
}

func toFields(m map[string]float64) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// CheckpointPath Default checkpoint file for iteration
func (r *Runner) CheckpointPath(iter int) string {
	return filepath.Join(r.cfg.WorkDir, fmt.Sprintf("iter_%d.gob", iter))
}

// SaveCheckpoint Stores model state with current iteration
func (r *Runner) SaveCheckpoint(path string) error {
	state, err := r.model.State()
	if err != nil {
		return errors.Wrap(err, "Can't capture model state")
	}
	var dump bytes.Buffer
	if err = r.cfg.Dump(&dump); err != nil {
		return err
	}
	return SaveCheckpoint(path, &Checkpoint{RunID: r.runID, Iter: r.iter, Config: dump.String(), State: state})
}

// LoadCheckpoint Restores model state. With resume the iteration counter is restored too.
func (r *Runner) LoadCheckpoint(path string, resume bool) error {
	ckpt, err := LoadCheckpoint(path)
	if err != nil {
		return err
	}
	if err = r.model.LoadState(ckpt.State); err != nil {
		return errors.Wrapf(err, "Can't load state from '%s'", path)
	}
	if resume {
		r.iter = ckpt.Iter
	}
	r.logger.Info().Str("path", path).Int("iter", ckpt.Iter).Bool("resume", resume).Msg("Checkpoint is loaded")
	return nil
}

// Close Releases model resources
func (r *Runner) Close() error {
	return r.model.Close()
}
