package configs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)
	assert.Equal(t, []string{Edges2Shoes}, names)
}

func TestEdges2Shoes(t *testing.T) {
	t.Setenv("PIX2PIX_WORK_DIR", "")
	t.Setenv("PIX2PIX_LOG_LEVEL", "")

	cfg, err := Load(Edges2Shoes)
	require.NoError(t, err)

	typ, err := cfg.Model.Type()
	require.NoError(t, err)
	assert.Equal(t, "Pix2Pix", typ)
	assert.Equal(t, "photo", cfg.Model["default_domain"])
	assert.Equal(t, []interface{}{"photo"}, cfg.Model["reachable_domains"])
	assert.Equal(t, []interface{}{"photo", "edges"}, cfg.Model["related_domains"])
	gen, err := cfg.Model.Record("generator")
	require.NoError(t, err)
	assert.Equal(t, "SequentialGenerator", gen["type"])

	assert.Equal(t, 190000, cfg.TrainCfg.MaxIters)
	assert.Equal(t, 10000, cfg.TrainCfg.ValInterval)

	train := cfg.TrainDataloader.Dataset
	assert.Equal(t, "./data/pix2pix/edges2shoes", train["data_root"])
	assert.Equal(t, "val", train["test_dir"])
	pipeline, err := train.Records("pipeline")
	require.NoError(t, err)
	types := []string{}
	for _, rec := range pipeline {
		types = append(types, rec["type"].(string))
	}
	assert.Equal(t, []string{"LoadPairedImageFromFile", "Resize", "KeyMapper", "PackEditInputs"}, types)

	mapping, err := pipeline[2].StringMap("mapping")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"img_photo": "img_A", "img_edges": "img_B"}, mapping)

	assert.Equal(t, true, cfg.ValDataloader.Dataset["test_mode"])
	valPipeline, err := cfg.ValDataloader.Dataset.Records("pipeline")
	require.NoError(t, err)
	assert.Len(t, valPipeline, 4)

	assert.Equal(t, cfg.ValDataloader.Dataset, cfg.TestDataloader.Dataset)

	for _, part := range []string{"generators", "discriminators"} {
		ow, ok := cfg.OptimWrapper[part]
		require.True(t, ok, part)
		assert.Equal(t, "OptimWrapper", ow.Type)
		assert.Equal(t, "Adam", ow.Optimizer["type"])
		assert.Equal(t, 0.0002, ow.Optimizer["lr"])
		betas, err := ow.Optimizer.Floats("betas")
		require.NoError(t, err)
		assert.Equal(t, []float64{0.5, 0.999}, betas)
	}

	require.Len(t, cfg.CustomHooks, 1)
	assert.Equal(t, "GenVisualizationHook", cfg.CustomHooks[0]["type"])
	assert.Equal(t, 5000, cfg.CustomHooks[0]["interval"])
	assert.Contains(t, cfg.DefaultHooks, "checkpoint")

	require.Len(t, cfg.ValEvaluator.Metrics, 2)
	require.Len(t, cfg.TestEvaluator.Metrics, 2)
	assert.Equal(t, "TransIS", cfg.ValEvaluator.Metrics[0]["type"])
	assert.Equal(t, 200, cfg.ValEvaluator.Metrics[0]["fake_nums"])
	assert.Equal(t, "img_photo", cfg.TestEvaluator.Metrics[1]["real_key"])

	assert.Equal(t, "work_dirs/pix2pix_vanilla-unet-bn_wo-jitter-flip-4xb1-190kiters_edges2shoes", cfg.WorkDir)
	assert.Equal(t, int64(2022), cfg.Randomness.Seed)

	var buf bytes.Buffer
	require.NoError(t, cfg.Dump(&buf))
	assert.Contains(t, buf.String(), "max_iters: 190000")
}

func TestEdges2ShoesOverrides(t *testing.T) {
	cfg, err := Load(Edges2Shoes, "train_cfg.max_iters=10", "custom_hooks.0.interval=2", "train_dataloader.batch_size=4")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.TrainCfg.MaxIters)
	assert.Equal(t, 2, cfg.CustomHooks[0]["interval"])
	assert.Equal(t, 4, cfg.TrainDataloader.BatchSize)
}

func TestResolve(t *testing.T) {
	t.Setenv("PIX2PIX_WORK_DIR", "")
	t.Setenv("PIX2PIX_LOG_LEVEL", "")

	cfg, err := Resolve(Edges2Shoes, "train_cfg.max_iters=10")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.TrainCfg.MaxIters)

	_, err = Resolve("pix2pix/missing.yaml")
	assert.Error(t, err)
}
