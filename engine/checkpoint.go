package engine

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	pix2pix "github.com/LdDl/pix2pix-go"
)

// Checkpoint Gob-encoded training snapshot
type Checkpoint struct {
	RunID  string
	Iter   int
	Config string
	State  *pix2pix.State
}

// SaveCheckpoint Encode checkpoint in gob format and save it to file. File is replaced atomically.
func SaveCheckpoint(path string, ckpt *Checkpoint) error {
	if ckpt == nil || ckpt.State == nil {
		return errors.New("Can't save empty checkpoint")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "Can't create checkpoint directory")
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "Can't create checkpoint file")
	}
	if err = gob.NewEncoder(f).Encode(ckpt); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(err, "Can't encode checkpoint")
	}
	if err = f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "Can't close checkpoint file")
	}
	return errors.Wrap(os.Rename(tmp, path), "Can't move checkpoint into place")
}

// LoadCheckpoint Read back gob encoded checkpoint
func LoadCheckpoint(path string) (*Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "Can't open checkpoint")
	}
	defer f.Close()
	ckpt := &Checkpoint{}
	if err = gob.NewDecoder(f).Decode(ckpt); err != nil {
		return nil, errors.Wrapf(err, "Can't decode checkpoint '%s'", path)
	}
	if ckpt.State == nil {
		return nil, errors.Errorf("checkpoint '%s' has no state", path)
	}
	return ckpt, nil
}
