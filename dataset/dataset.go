// Package dataset Datasets, samplers and the concurrent dataloader feeding the model.
package dataset

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/LdDl/pix2pix-go/registry"
	"github.com/LdDl/pix2pix-go/transforms"
	"github.com/pkg/errors"
)

// ErrEmptyDataset Dataset directory contains no images
var ErrEmptyDataset = errors.New("dataset is empty")

// Dataset Indexed collection of samples. Get runs the data pipeline for one sample.
type Dataset interface {
	Len() int
	Get(ctx context.Context, idx int) (transforms.Results, error)
}

// Datasets Registry of dataset types
var Datasets = registry.New[Dataset]("dataset")

func init() {
	Datasets.MustRegister("PairedImageDataset", func(rec registry.Record) (Dataset, error) { return newPairedImageDataset(rec) })
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// PairedImageDataset Folder of A|B images.
// Train split lives in "<data_root>/train", test split in "<data_root>/<test_dir>".
type PairedImageDataset struct {
	DataRoot string
	TestDir  string
	TestMode bool
	files    []string
	pipeline *transforms.Pipeline
}

func newPairedImageDataset(rec registry.Record) (*PairedImageDataset, error) {
	root, err := rec.String("data_root", "")
	if err != nil {
		return nil, err
	}
	if root == "" {
		return nil, errors.New("PairedImageDataset needs data_root")
	}
	testDir, err := rec.String("test_dir", "test")
	if err != nil {
		return nil, err
	}
	testMode, err := rec.Bool("test_mode", false)
	if err != nil {
		return nil, err
	}
	stages, err := rec.Records("pipeline")
	if err != nil {
		return nil, err
	}
	pipeline, err := transforms.Compose(stages)
	if err != nil {
		return nil, errors.Wrap(err, "PairedImageDataset pipeline")
	}
	return NewPairedImageDataset(root, testDir, testMode, pipeline)
}

// NewPairedImageDataset Scans split directory for png/jpeg files
func NewPairedImageDataset(dataRoot, testDir string, testMode bool, pipeline *transforms.Pipeline) (*PairedImageDataset, error) {
	split := "train"
	if testMode {
		split = testDir
	}
	dir := filepath.Join(dataRoot, split)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't scan dataset directory '%s'", dir)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, errors.Wrapf(ErrEmptyDataset, "'%s'", dir)
	}
	sort.Strings(files)
	if pipeline == nil {
		pipeline = transforms.NewPipeline()
	}
	return &PairedImageDataset{
		DataRoot: dataRoot,
		TestDir:  testDir,
		TestMode: testMode,
		files:    files,
		pipeline: pipeline,
	}, nil
}

// Len Number of image pairs
func (d *PairedImageDataset) Len() int {
	return len(d.files)
}

// Files Sorted paths of image pairs
func (d *PairedImageDataset) Files() []string {
	return append([]string(nil), d.files...)
}

// Get Runs pipeline on pair #idx
func (d *PairedImageDataset) Get(ctx context.Context, idx int) (transforms.Results, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(d.files) {
		return nil, errors.Errorf("index %d out of range [0, %d)", idx, len(d.files))
	}
	return d.pipeline.Transform(transforms.Results{
		"pair_path":  d.files[idx],
		"sample_idx": idx,
	})
}
