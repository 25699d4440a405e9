package dataset

import (
	"math/rand"

	"github.com/LdDl/pix2pix-go/registry"
)

// Sampler Produces order of dataset indices for every epoch
type Sampler interface {
	// Epoch Indices for epoch #epoch of dataset with n samples
	Epoch(n, epoch int) []int
	// Infinite Whether loader should wrap around instead of stopping after an epoch
	Infinite() bool
}

// Samplers Registry of sampler types
var Samplers = registry.New[Sampler]("sampler")

func init() {
	Samplers.MustRegister("DefaultSampler", func(rec registry.Record) (Sampler, error) {
		s, err := samplerFromRecord(rec)
		if err != nil {
			return nil, err
		}
		return &DefaultSampler{s}, nil
	})
	Samplers.MustRegister("InfiniteSampler", func(rec registry.Record) (Sampler, error) {
		s, err := samplerFromRecord(rec)
		if err != nil {
			return nil, err
		}
		return &InfiniteSampler{s}, nil
	})
}

type seededOrder struct {
	Shuffle bool
	Seed    int64
}

func samplerFromRecord(rec registry.Record) (seededOrder, error) {
	shuffle, err := rec.Bool("shuffle", true)
	if err != nil {
		return seededOrder{}, err
	}
	seed, err := rec.Int("seed", 0)
	if err != nil {
		return seededOrder{}, err
	}
	return seededOrder{Shuffle: shuffle, Seed: int64(seed)}, nil
}

// Epoch Same seed and epoch always give the same permutation
func (s seededOrder) Epoch(n, epoch int) []int {
	if !s.Shuffle {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	return rand.New(rand.NewSource(s.Seed + int64(epoch))).Perm(n)
}

// DefaultSampler One pass over the dataset per epoch
type DefaultSampler struct {
	seededOrder
}

// Infinite Always false
func (s *DefaultSampler) Infinite() bool { return false }

// InfiniteSampler Endless stream of epochs, used by iteration based training
type InfiniteSampler struct {
	seededOrder
}

// Infinite Always true
func (s *InfiniteSampler) Infinite() bool { return true }
