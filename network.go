package pix2pix

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Network Abstraction for neural network.
//
// Layers - simple sequence of layers
// out - alias to activated output of last layer
//
type Network struct {
	Name   string
	Layers []*Layer
	out    *gorgonia.Node
}

// Out Returns reference to output node
func (net *Network) Out() *gorgonia.Node {
	return net.out
}

// Learnables Returns learnables nodes
func (net *Network) Learnables() gorgonia.Nodes {
	learnables := make(gorgonia.Nodes, 0, len(net.Layers))
	for _, l := range net.Layers {
		if l != nil {
			if l.WeightNode != nil {
				learnables = append(learnables, l.WeightNode)
			}
		}
	}
	return learnables
}

// Fwd Initializates feedforward for provided input
//
// input - Input node of shape (N, C, H, W)
//
func (net *Network) Fwd(input *gorgonia.Node) error {
	networkName := "network"
	if net.Name != "" {
		networkName = net.Name
	}
	if len(net.Layers) == 0 {
		return fmt.Errorf("Network must have one layer atleast")
	}
	last := input
	for i, l := range net.Layers {
		if l == nil {
			return fmt.Errorf("Network's layer #%d is nil", i)
		}
		nonActivated, err := l.Fwd(last)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("[%s, Layer #%d] Can't feedforward input before activation", networkName, i))
		}
		gorgonia.WithName(fmt.Sprintf("%s_%d", networkName, i))(nonActivated)
		activation := l.Activation
		if activation == nil {
			activation = NoActivation
		}
		activated, err := activation(nonActivated)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("Can't apply activation function to non-activated output of %s's layer #%d", networkName, i))
		}
		if activated != nonActivated {
			gorgonia.WithName(fmt.Sprintf("%s_activated_%d", networkName, i))(activated)
		}
		last = activated
	}
	net.out = last
	return nil
}

// CloneTo Creates network with the same layers on graph g. Weights are copied, not shared.
func (net *Network) CloneTo(g *gorgonia.ExprGraph, name string) (*Network, error) {
	cp := &Network{
		Name:   name,
		Layers: make([]*Layer, len(net.Layers)),
	}
	for i, l := range net.Layers {
		if l == nil {
			return nil, fmt.Errorf("Network's layer #%d is nil", i)
		}
		layer, err := cloneLayer(g, l, "_"+name)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't copy layer #%d of %s", i, net.Name)
		}
		cp.Layers[i] = layer
	}
	return cp, nil
}

// SyncValues Copies values of src nodes into values of dst nodes. Shapes must match pairwise.
func SyncValues(dst, src gorgonia.Nodes) error {
	if len(dst) != len(src) {
		return fmt.Errorf("can't sync %d nodes from %d nodes", len(dst), len(src))
	}
	for i := range dst {
		dv, ok := dst[i].Value().(*tensor.Dense)
		if !ok {
			return fmt.Errorf("node '%s' has no dense value", dst[i].Name())
		}
		sv, ok := src[i].Value().(*tensor.Dense)
		if !ok {
			return fmt.Errorf("node '%s' has no dense value", src[i].Name())
		}
		if !dv.Shape().Eq(sv.Shape()) {
			return fmt.Errorf("shape mismatch for '%s': %v vs %v", dst[i].Name(), []int(dv.Shape()), []int(sv.Shape()))
		}
		dd, ok := dv.Data().([]float64)
		if !ok {
			return fmt.Errorf("node '%s' is not float64", dst[i].Name())
		}
		sd, ok := sv.Data().([]float64)
		if !ok {
			return fmt.Errorf("node '%s' is not float64", src[i].Name())
		}
		copy(dd, sd)
	}
	return nil
}
