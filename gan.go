package pix2pix

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// GAN Generator followed by a frozen copy of Discriminator, used for generator updates.
//
// generatorPart - reference to Generator
// discriminatorPart - reference to Discriminator (trained on its own graph)
// modifiedDiscriminator - copy of Discriminator on generator's graph. Its nodes are never updated by solvers,
// values are copied from discriminatorPart by SyncDiscriminator
// condition - optional node concatenated with generator output along channel axis before discrimination
//
type GAN struct {
	generatorPart     *Network
	discriminatorPart *Network

	modifiedDiscriminator *Network
	condition             *gorgonia.Node

	out *gorgonia.Node
}

// NewGAN Creates GAN on graph g. Generator must be defined on g already.
func NewGAN(g *gorgonia.ExprGraph, definedGenerator, definedDiscriminator *Network) (*GAN, error) {
	if definedGenerator == nil || definedDiscriminator == nil {
		return nil, fmt.Errorf("GAN needs both generator and discriminator")
	}
	modified, err := definedDiscriminator.CloneTo(g, "gan_discriminator")
	if err != nil {
		return nil, errors.Wrap(err, "[GAN] Can't copy discriminator")
	}
	return &GAN{
		generatorPart:         definedGenerator,
		discriminatorPart:     definedDiscriminator,
		modifiedDiscriminator: modified,
	}, nil
}

// WithCondition Makes discriminator see concat(condition, generator output) along axis 1
func (net *GAN) WithCondition(condition *gorgonia.Node) *GAN {
	net.condition = condition
	return net
}

// Out Returns reference to output node
func (net *GAN) Out() *gorgonia.Node {
	return net.out
}

// GeneratorOut Returns reference to output node of generator part
func (net *GAN) GeneratorOut() *gorgonia.Node {
	return net.generatorPart.Out()
}

// GeneratorLearnables Returns learnables nodes of generator part
func (net *GAN) GeneratorLearnables() gorgonia.Nodes {
	return net.generatorPart.Learnables()
}

// SyncDiscriminator Copies current discriminator weights into the frozen copy
func (net *GAN) SyncDiscriminator() error {
	if err := SyncValues(net.modifiedDiscriminator.Learnables(), net.discriminatorPart.Learnables()); err != nil {
		return errors.Wrap(err, "[GAN] Can't sync discriminator")
	}
	return nil
}

// Fwd Initializates feedforward for disciminator part of GAN
//
// Note: input node is not needed since input for Discriminator is Generator's output
//
func (net *GAN) Fwd() error {
	if net.generatorPart.Out() == nil {
		return fmt.Errorf("GAN's generator has not been fed forward")
	}
	input := net.generatorPart.Out()
	if net.condition != nil {
		joined, err := gorgonia.Concat(1, net.condition, input)
		if err != nil {
			return errors.Wrap(err, "[GAN] Can't concat condition and generator output")
		}
		input = joined
	}
	if err := net.modifiedDiscriminator.Fwd(input); err != nil {
		return errors.Wrap(err, "[GAN, Discriminator part]")
	}
	net.out = net.modifiedDiscriminator.Out()
	return nil
}
