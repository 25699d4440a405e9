package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/LdDl/pix2pix-go/config"
	"github.com/LdDl/pix2pix-go/configs"
	"github.com/LdDl/pix2pix-go/engine"
	"github.com/LdDl/pix2pix-go/logging"
	"github.com/pkg/errors"
)

var (
	version = "v0.1.0"
)

func main() {
	var overrides config.Overrides
	showVersion := flag.Bool("version", false, "print version and exit")
	cfgName := flag.String("config", configs.Edges2Shoes, "config file (YAML) or name of embedded preset")
	workDir := flag.String("work-dir", "", "directory for checkpoints, logs and visualizations")
	resume := flag.String("resume", "", "checkpoint to resume training from")
	loadFrom := flag.String("load-from", "", "checkpoint to initialize weights from")
	runTest := flag.Bool("test", false, "evaluate on test split after training")
	testOnly := flag.Bool("test-only", false, "skip training and evaluate on test split")
	flag.Var(&overrides, "cfg-options", "override config entries, e.g. --cfg-options 'train_cfg.max_iters=100 model.loss_config.pixel_loss_weight=50'")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	logging.Configure(logging.Config{Level: "info"})
	logger := logging.WithComponent("train")

	if *workDir != "" {
		overrides = append(overrides, "work_dir="+*workDir)
	}
	switch {
	case *resume != "":
		overrides = append(overrides, "load_from="+*resume, "resume=true")
	case *loadFrom != "":
		overrides = append(overrides, "load_from="+*loadFrom)
	}

	cfg, err := configs.Resolve(*cfgName, overrides...)
	if err != nil {
		logger.Fatal().Err(err).Str("config", *cfgName).Msg("Can't load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := engine.NewRunner(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Can't build runner")
	}
	logger = *runner.Logger()

	runErr := run(ctx, runner, !*testOnly, *runTest || *testOnly)
	if err := runner.Close(); err != nil {
		logger.Warn().Err(err).Msg("Can't close runner")
	}
	if runErr != nil {
		logger.Error().Err(runErr).Msg("Run failed")
		stop()
		os.Exit(1)
	}
}

// run Trains and/or tests. Runner is closed by caller.
func run(ctx context.Context, runner *engine.Runner, train, test bool) error {
	if train {
		if err := runner.Train(ctx); err != nil {
			return errors.Wrap(err, "training failed")
		}
	}
	if !test {
		return nil
	}
	metrics, err := runner.Test(ctx)
	if err != nil {
		return errors.Wrap(err, "test failed")
	}
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s: %.4f\n", k, metrics[k])
	}
	return nil
}
