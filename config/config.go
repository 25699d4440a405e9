package config

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/LdDl/pix2pix-go/registry"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalid Config failed validation
var ErrInvalid = errors.New("invalid config")

// Config Declarative experiment record. Every component is described by registry.Record
// whose "type" is resolved against the component registries when the runner is built.
type Config struct {
	Base []string `yaml:"_base_,omitempty"`
	// Vars holds free-form values (and YAML anchors) shared by the rest of the file
	Vars map[string]interface{} `yaml:"vars,omitempty"`

	Model registry.Record `yaml:"model"`

	TrainCfg LoopConfig `yaml:"train_cfg"`
	ValCfg   LoopConfig `yaml:"val_cfg,omitempty"`
	TestCfg  LoopConfig `yaml:"test_cfg,omitempty"`

	TrainDataloader DataloaderConfig `yaml:"train_dataloader"`
	ValDataloader   DataloaderConfig `yaml:"val_dataloader,omitempty"`
	TestDataloader  DataloaderConfig `yaml:"test_dataloader,omitempty"`

	OptimWrapper map[string]OptimWrapperConfig `yaml:"optim_wrapper"`

	DefaultHooks map[string]registry.Record `yaml:"default_hooks,omitempty"`
	CustomHooks  []registry.Record          `yaml:"custom_hooks,omitempty"`

	ValEvaluator  EvaluatorConfig `yaml:"val_evaluator,omitempty"`
	TestEvaluator EvaluatorConfig `yaml:"test_evaluator,omitempty"`

	WorkDir    string           `yaml:"work_dir,omitempty"`
	LogLevel   string           `yaml:"log_level,omitempty"`
	Randomness RandomnessConfig `yaml:"randomness,omitempty"`
	LoadFrom   string           `yaml:"load_from,omitempty"`
	Resume     bool             `yaml:"resume,omitempty"`

	// Name Config file name without extension
	Name string `yaml:"-"`
}

// LoopConfig Train/val/test loop settings
type LoopConfig struct {
	Type        string `yaml:"type,omitempty"`
	MaxIters    int    `yaml:"max_iters,omitempty"`
	ValInterval int    `yaml:"val_interval,omitempty"`
	ValBegin    int    `yaml:"val_begin,omitempty"`
}

// DataloaderConfig Dataloader settings
type DataloaderConfig struct {
	BatchSize         int             `yaml:"batch_size,omitempty"`
	NumWorkers        int             `yaml:"num_workers,omitempty"`
	PersistentWorkers bool            `yaml:"persistent_workers,omitempty"`
	DropLast          bool            `yaml:"drop_last,omitempty"`
	Sampler           registry.Record `yaml:"sampler,omitempty"`
	Dataset           registry.Record `yaml:"dataset,omitempty"`
}

// Empty Reports whether dataloader has no dataset
func (d DataloaderConfig) Empty() bool {
	return len(d.Dataset) == 0
}

// OptimWrapperConfig Optimizer for one part of the model ("generators", "discriminators")
type OptimWrapperConfig struct {
	Type      string          `yaml:"type,omitempty"`
	Optimizer registry.Record `yaml:"optimizer"`
}

// EvaluatorConfig Set of metric records
type EvaluatorConfig struct {
	Type    string            `yaml:"type,omitempty"`
	Metrics []registry.Record `yaml:"metrics,omitempty"`
}

// RandomnessConfig Seeding
type RandomnessConfig struct {
	Seed          int64 `yaml:"seed,omitempty"`
	Deterministic bool  `yaml:"deterministic,omitempty"`
}

const (
	defaultWorkRoot    = "./work_dirs"
	defaultValInterval = 10000
)

// ApplyDefaults Fills unset settings
func (c *Config) ApplyDefaults() {
	if c.TrainCfg.Type == "" {
		c.TrainCfg.Type = "IterBasedTrainLoop"
	}
	if c.TrainCfg.ValInterval == 0 {
		c.TrainCfg.ValInterval = defaultValInterval
	}
	if c.TrainCfg.ValBegin == 0 {
		c.TrainCfg.ValBegin = 1
	}
	if c.ValCfg.Type == "" {
		c.ValCfg.Type = "EditValLoop"
	}
	if c.TestCfg.Type == "" {
		c.TestCfg.Type = "EditTestLoop"
	}
	if c.TestDataloader.Empty() && !c.ValDataloader.Empty() {
		c.TestDataloader = c.ValDataloader
		c.TestDataloader.Dataset = c.ValDataloader.Dataset.Clone()
		c.TestDataloader.Sampler = c.ValDataloader.Sampler.Clone()
	}
	for _, dl := range []*DataloaderConfig{&c.TrainDataloader, &c.ValDataloader, &c.TestDataloader} {
		if dl.BatchSize == 0 {
			dl.BatchSize = 1
		}
	}
	if c.ValEvaluator.Type == "" {
		c.ValEvaluator.Type = "Evaluator"
	}
	if len(c.TestEvaluator.Metrics) == 0 && len(c.ValEvaluator.Metrics) > 0 {
		c.TestEvaluator.Metrics = make([]registry.Record, len(c.ValEvaluator.Metrics))
		for i := range c.ValEvaluator.Metrics {
			c.TestEvaluator.Metrics[i] = c.ValEvaluator.Metrics[i].Clone()
		}
	}
	if c.TestEvaluator.Type == "" {
		c.TestEvaluator.Type = "Evaluator"
	}
	for name, ow := range c.OptimWrapper {
		if ow.Type == "" {
			ow.Type = "OptimWrapper"
			c.OptimWrapper[name] = ow
		}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.WorkDir == "" {
		name := c.Name
		if name == "" {
			name = "default"
		}
		c.WorkDir = filepath.Join(defaultWorkRoot, name)
	}
}

// Validate Checks the whole config and reports every problem at once
func (c *Config) Validate() error {
	problems := []string{}
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if _, err := c.Model.Type(); err != nil {
		add("model: %v", err)
	}
	if c.TrainCfg.MaxIters <= 0 {
		add("train_cfg.max_iters must be positive, got %d", c.TrainCfg.MaxIters)
	}
	if c.TrainCfg.ValInterval < 0 {
		add("train_cfg.val_interval must not be negative")
	}
	dataloaders := []struct {
		name string
		dl   DataloaderConfig
		must bool
	}{
		{"train_dataloader", c.TrainDataloader, true},
		{"val_dataloader", c.ValDataloader, false},
		{"test_dataloader", c.TestDataloader, false},
	}
	for _, item := range dataloaders {
		if item.dl.Empty() {
			if item.must {
				add("%s.dataset is required", item.name)
			}
			continue
		}
		if _, err := item.dl.Dataset.Type(); err != nil {
			add("%s.dataset: %v", item.name, err)
		}
		if item.dl.BatchSize <= 0 {
			add("%s.batch_size must be positive, got %d", item.name, item.dl.BatchSize)
		}
		if item.dl.NumWorkers < 0 {
			add("%s.num_workers must not be negative", item.name)
		}
		if len(item.dl.Sampler) > 0 {
			if _, err := item.dl.Sampler.Type(); err != nil {
				add("%s.sampler: %v", item.name, err)
			}
		}
	}
	if len(c.OptimWrapper) == 0 {
		add("optim_wrapper is required")
	}
	names := make([]string, 0, len(c.OptimWrapper))
	for name := range c.OptimWrapper {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := c.OptimWrapper[name].Optimizer.Type(); err != nil {
			add("optim_wrapper.%s.optimizer: %v", name, err)
		}
	}
	hookNames := make([]string, 0, len(c.DefaultHooks))
	for name := range c.DefaultHooks {
		hookNames = append(hookNames, name)
	}
	sort.Strings(hookNames)
	for _, name := range hookNames {
		if c.DefaultHooks[name] == nil {
			continue
		}
		if _, err := c.DefaultHooks[name].Type(); err != nil {
			add("default_hooks.%s: %v", name, err)
		}
	}
	for i, h := range c.CustomHooks {
		if _, err := h.Type(); err != nil {
			add("custom_hooks[%d]: %v", i, err)
		}
	}
	for _, ev := range []struct {
		name string
		cfg  EvaluatorConfig
	}{{"val_evaluator", c.ValEvaluator}, {"test_evaluator", c.TestEvaluator}} {
		for i, m := range ev.cfg.Metrics {
			if _, err := m.Type(); err != nil {
				add("%s.metrics[%d]: %v", ev.name, i, err)
			}
		}
	}
	if len(problems) > 0 {
		return errors.Wrap(ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Dump Writes YAML representation of the config
func (c *Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return errors.Wrap(err, "Can't encode config")
	}
	return enc.Close()
}
