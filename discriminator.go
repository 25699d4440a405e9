package pix2pix

import (
	"fmt"
	"math/rand"

	"github.com/LdDl/pix2pix-go/registry"
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// PatchDiscriminator Strided 4x4 convolutions halving spatial size NumConv times,
// followed by 3x3 convolution into 1-channel sigmoid patch map.
// Channels double after every strided convolution, capped at 8*Base.
type PatchDiscriminator struct {
	In         int
	Base       int
	NumConv    int
	Activation ActivationFunc
	Init       WeightInit
}

func newPatchDiscriminator(rec registry.Record) (*PatchDiscriminator, error) {
	arch := &PatchDiscriminator{}
	var err error
	if arch.In, err = positive(rec, "in_channels", 6); err != nil {
		return nil, err
	}
	if arch.Base, err = positive(rec, "base_channels", 64); err != nil {
		return nil, err
	}
	if arch.NumConv, err = positive(rec, "num_conv", 3); err != nil {
		return nil, err
	}
	if rec.Has("norm_cfg") {
		return nil, errors.New("PatchDiscriminator does not support norm_cfg")
	}
	actCfg, err := rec.Record("act_cfg")
	if err != nil {
		return nil, err
	}
	if arch.Activation, err = ActivationFromRecord(actCfg, LeakyReLU(0.2)); err != nil {
		return nil, err
	}
	initCfg, err := rec.Record("init_cfg")
	if err != nil {
		return nil, err
	}
	if arch.Init, err = initFromRecord(initCfg); err != nil {
		return nil, err
	}
	return arch, nil
}

// InChannels Number of input channels (source + target channels for conditional discrimination)
func (arch *PatchDiscriminator) InChannels() int { return arch.In }

// OutChannels Always 1
func (arch *PatchDiscriminator) OutChannels() int { return 1 }

// Downsampling Factor between input and patch map sizes
func (arch *PatchDiscriminator) Downsampling() int { return 1 << uint(arch.NumConv) }

// Define Creates discriminator layers
func (arch *PatchDiscriminator) Define(g *gorgonia.ExprGraph, name string, rng *rand.Rand) (*Network, error) {
	if g == nil {
		return nil, fmt.Errorf("graph is nil")
	}
	rng = seededRand(rng)
	layers := make([]*Layer, 0, arch.NumConv+1)
	in, out := arch.In, arch.Base
	for i := 0; i < arch.NumConv; i++ {
		layers = append(layers, &Layer{
			WeightNode:   convWeight(g, fmt.Sprintf("%s_w%d", name, i), out, in, 4, arch.Init, rng),
			Activation:   arch.Activation,
			KernelHeight: 4,
			KernelWidth:  4,
			Padding:      []int{1, 1},
			Stride:       []int{2, 2},
			Dilation:     []int{1, 1},
		})
		in = out
		if out < 8*arch.Base {
			out *= 2
		}
	}
	layers = append(layers, &Layer{
		WeightNode:   convWeight(g, fmt.Sprintf("%s_w%d", name, arch.NumConv), 1, in, 3, arch.Init, rng),
		Activation:   Sigmoid,
		KernelHeight: 3,
		KernelWidth:  3,
		Padding:      []int{1, 1},
		Stride:       []int{1, 1},
		Dilation:     []int{1, 1},
	})
	return &Network{Name: name, Layers: layers}, nil
}
