package pix2pix

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/LdDl/pix2pix-go/registry"
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Architecture Network description which can be materialized on a graph.
// Graphs are built lazily once input shape is known, so registries build architectures instead of networks.
type Architecture interface {
	// Define Creates network with fresh weights drawn from rng on graph g
	Define(g *gorgonia.ExprGraph, name string, rng *rand.Rand) (*Network, error)
	InChannels() int
	OutChannels() int
}

var (
	// Generators Registry of generator architectures
	Generators = registry.New[Architecture]("generator")
	// Discriminators Registry of discriminator architectures
	Discriminators = registry.New[Architecture]("discriminator")
)

func init() {
	Generators.MustRegister("SequentialGenerator", func(rec registry.Record) (Architecture, error) { return newSequentialGenerator(rec) })
	Discriminators.MustRegister("PatchDiscriminator", func(rec registry.Record) (Architecture, error) { return newPatchDiscriminator(rec) })
}

// WeightInit Draws initial values of weight tensor with provided shape
type WeightInit func(rng *rand.Rand, shape ...int) []float64

// NormalInit N(0, std)
func NormalInit(std float64) WeightInit {
	return func(rng *rand.Rand, shape ...int) []float64 {
		out := make([]float64, tensor.Shape(shape).TotalSize())
		for i := range out {
			out[i] = rng.NormFloat64() * std
		}
		return out
	}
}

// XavierInit Glorot normal: N(0, gain*sqrt(2/(fanIn+fanOut))). Receptive field size is included in both fans.
func XavierInit(gain float64) WeightInit {
	return func(rng *rand.Rand, shape ...int) []float64 {
		fanOut, fanIn := 1, 1
		if len(shape) >= 2 {
			fanOut, fanIn = shape[0], shape[1]
			for _, s := range shape[2:] {
				fanOut *= s
				fanIn *= s
			}
		}
		return NormalInit(gain*math.Sqrt(2.0/float64(fanIn+fanOut)))(rng, shape...)
	}
}

// initFromRecord Resolves init_cfg: {type: normal, gain: std} gives N(0, std), {type: xavier, gain: g} gives Glorot normal
func initFromRecord(rec registry.Record) (WeightInit, error) {
	if rec == nil {
		return XavierInit(1.0), nil
	}
	typ, err := rec.String("type", "xavier")
	if err != nil {
		return nil, err
	}
	switch typ {
	case "normal":
		std, err := rec.Float("gain", 0.02)
		if err != nil {
			return nil, err
		}
		return NormalInit(std), nil
	case "xavier":
		gain, err := rec.Float("gain", 1.0)
		if err != nil {
			return nil, err
		}
		return XavierInit(gain), nil
	default:
		return nil, errors.Errorf("unknown init type '%s'", typ)
	}
}

func convWeight(g *gorgonia.ExprGraph, name string, out, in, kernel int, init WeightInit, rng *rand.Rand) *gorgonia.Node {
	if init == nil {
		init = XavierInit(1.0)
	}
	shape := []int{out, in, kernel, kernel}
	value := tensor.New(tensor.WithShape(shape...), tensor.WithBacking(init(rng, shape...)))
	return gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(shape...), gorgonia.WithName(name), gorgonia.WithValue(value))
}

// seededRand Falls back to a generator seeded from the global source
func seededRand(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return rand.New(rand.NewSource(rand.Int63()))
}

func positive(rec registry.Record, key string, fallback int) (int, error) {
	v, err := rec.Int(key, fallback)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, errors.Errorf("%s must be positive, got %d", key, v)
	}
	return v, nil
}

// SequentialGenerator Stack of same-size 3x3 convolutions: in -> base -> ... -> base -> out (tanh)
type SequentialGenerator struct {
	In         int
	Out        int
	Base       int
	NumBlocks  int
	Activation ActivationFunc
	Init       WeightInit
}

func newSequentialGenerator(rec registry.Record) (*SequentialGenerator, error) {
	arch := &SequentialGenerator{}
	var err error
	if arch.In, err = positive(rec, "in_channels", 3); err != nil {
		return nil, err
	}
	if arch.Out, err = positive(rec, "out_channels", 3); err != nil {
		return nil, err
	}
	if arch.Base, err = positive(rec, "base_channels", 64); err != nil {
		return nil, err
	}
	if arch.NumBlocks, err = rec.Int("num_blocks", 3); err != nil {
		return nil, err
	}
	if arch.NumBlocks < 0 {
		return nil, errors.Errorf("num_blocks must not be negative, got %d", arch.NumBlocks)
	}
	if rec.Has("norm_cfg") {
		return nil, errors.New("SequentialGenerator does not support norm_cfg")
	}
	actCfg, err := rec.Record("act_cfg")
	if err != nil {
		return nil, err
	}
	if arch.Activation, err = ActivationFromRecord(actCfg, Rectify); err != nil {
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

// InChannels Number of input channels
func (arch *SequentialGenerator) InChannels() int { return arch.In }

// OutChannels Number of output channels
func (arch *SequentialGenerator) OutChannels() int { return arch.Out }

// Define Creates generator layers
func (arch *SequentialGenerator) Define(g *gorgonia.ExprGraph, name string, rng *rand.Rand) (*Network, error) {
	if g == nil {
		return nil, fmt.Errorf("graph is nil")
	}
	rng = seededRand(rng)
	sameSize := func(w *gorgonia.Node, act ActivationFunc) *Layer {
		return &Layer{
			WeightNode:   w,
			Activation:   act,
			KernelHeight: 3,
			KernelWidth:  3,
			Padding:      []int{1, 1},
			Stride:       []int{1, 1},
			Dilation:     []int{1, 1},
		}
	}
	layers := make([]*Layer, 0, arch.NumBlocks+2)
	layers = append(layers, sameSize(convWeight(g, name+"_w0", arch.Base, arch.In, 3, arch.Init, rng), arch.Activation))
	for i := 0; i < arch.NumBlocks; i++ {
		layers = append(layers, sameSize(convWeight(g, fmt.Sprintf("%s_w%d", name, i+1), arch.Base, arch.Base, 3, arch.Init, rng), arch.Activation))
	}
	layers = append(layers, sameSize(convWeight(g, fmt.Sprintf("%s_w%d", name, arch.NumBlocks+1), arch.Out, arch.Base, 3, arch.Init, rng), Tanh))
	return &Network{Name: name, Layers: layers}, nil
}
