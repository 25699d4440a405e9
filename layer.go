package pix2pix

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Layer Convolution weights plus activation function. Layers have no bias term.
type Layer struct {
	WeightNode *gorgonia.Node
	Activation ActivationFunc

	KernelHeight int
	KernelWidth  int
	Padding      []int
	Stride       []int
	Dilation     []int
}

// Fwd Convolves input by layer's kernel (without activation)
func (l *Layer) Fwd(input *gorgonia.Node) (*gorgonia.Node, error) {
	if l.WeightNode == nil {
		return nil, fmt.Errorf("conv2d layer has nil weight node")
	}
	out, err := gorgonia.Conv2d(input, l.WeightNode, tensor.Shape{l.KernelHeight, l.KernelWidth}, l.Padding, l.Stride, l.Dilation)
	if err != nil {
		return nil, errors.Wrap(err, "Can't convolve[2D] input by kernel")
	}
	return out, nil
}

// cloneLayer Copies layer settings and creates new weight nodes on graph g holding copies of current values
func cloneLayer(g *gorgonia.ExprGraph, l *Layer, suffix string) (*Layer, error) {
	cp := &Layer{
		Activation:   l.Activation,
		KernelHeight: l.KernelHeight,
		KernelWidth:  l.KernelWidth,
		Padding:      l.Padding,
		Stride:       l.Stride,
		Dilation:     l.Dilation,
	}
	var err error
	if l.WeightNode != nil {
		if cp.WeightNode, err = cloneNode(g, l.WeightNode, suffix); err != nil {
			return nil, err
		}
	}
	return cp, nil
}

func cloneNode(g *gorgonia.ExprGraph, n *gorgonia.Node, suffix string) (*gorgonia.Node, error) {
	dense, ok := n.Value().(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("node '%s' has no dense value to copy", n.Name())
	}
	return gorgonia.NewTensor(g, n.Dtype(), n.Dims(), gorgonia.WithShape(n.Shape()...), gorgonia.WithName(n.Name()+suffix), gorgonia.WithValue(dense.Clone().(*tensor.Dense))), nil
}
