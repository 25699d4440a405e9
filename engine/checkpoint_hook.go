package engine

import (
	"context"
	"os"
	"path/filepath"

	"github.com/LdDl/pix2pix-go/registry"
	"github.com/pkg/errors"

	pix2pix "github.com/LdDl/pix2pix-go"
)

// CheckpointHook Saves model state every Interval iterations, keeping at most MaxKeep files.
//
// OutDir - directory of checkpoints, work_dir when empty
// MaxKeep - number of newest checkpoints to keep, non-positive keeps everything
// SaveLast - save checkpoint after the last iteration even when it is not on interval
//
type CheckpointHook struct {
	BaseHook
	Interval int
	MaxKeep  int
	SaveLast bool
	OutDir   string

	saved []string
}

// NewCheckpointHook Builds hook from record
func NewCheckpointHook(rec registry.Record) (*CheckpointHook, error) {
	p, err := hookPriority(rec, PriorityVeryLow)
	if err != nil {
		return nil, err
	}
	h := &CheckpointHook{BaseHook: BaseHook{HookName: "CheckpointHook", HookPriority: p}}
	if h.Interval, err = rec.Int("interval", 1000); err != nil {
		return nil, err
	}
	if h.Interval <= 0 {
		return nil, errors.Errorf("CheckpointHook interval must be positive, got %d", h.Interval)
	}
	if h.MaxKeep, err = rec.Int("max_keep_ckpts", -1); err != nil {
		return nil, err
	}
	if h.SaveLast, err = rec.Bool("save_last", true); err != nil {
		return nil, err
	}
	if h.OutDir, err = rec.String("out_dir", ""); err != nil {
		return nil, err
	}
	return h, nil
}

// Saved Paths of kept checkpoints, oldest first
func (h *CheckpointHook) Saved() []string {
	return append([]string(nil), h.saved...)
}

// AfterTrainIter Saves checkpoint on interval
func (h *CheckpointHook) AfterTrainIter(ctx context.Context, r *Runner, iter int, losses pix2pix.LossLog) error {
	if iter%h.Interval == 0 || (h.SaveLast && iter == r.MaxIters()) {
		return h.save(r, iter)
	}
	return nil
}

func (h *CheckpointHook) save(r *Runner, iter int) error {
	path := r.CheckpointPath(iter)
	if h.OutDir != "" {
		path = filepath.Join(h.OutDir, filepath.Base(path))
	}
	if len(h.saved) > 0 && h.saved[len(h.saved)-1] == path {
		return nil
	}
	if err := r.SaveCheckpoint(path); err != nil {
		return errors.Wrapf(err, "Can't save checkpoint at iteration %d", iter)
	}
	h.saved = append(h.saved, path)
	r.Logger().Info().Str("path", path).Int("iter", iter).Msg("Checkpoint is saved")
	for h.MaxKeep > 0 && len(h.saved) > h.MaxKeep {
		stale := h.saved[0]
		h.saved = h.saved[1:]
		if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
			r.Logger().Warn().Err(err).Str("path", stale).Msg("Can't remove stale checkpoint")
		}
	}
	return nil
}
