package pix2pix

import (
	"github.com/LdDl/pix2pix-go/registry"
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// ActivationFunc Just an alias to Gorgonia'a api_gen.go - https://github.com/gorgonia/gorgonia/blob/master/api_gen.go#L1
type ActivationFunc func(a *gorgonia.Node) (*gorgonia.Node, error)

func NoActivation(a *gorgonia.Node) (*gorgonia.Node, error) { return a, nil }
func Abs(a *gorgonia.Node) (*gorgonia.Node, error)          { return gorgonia.Abs(a) }
func Exp(a *gorgonia.Node) (*gorgonia.Node, error)          { return gorgonia.Exp(a) }
func Log(a *gorgonia.Node) (*gorgonia.Node, error)          { return gorgonia.Log(a) }
func Neg(a *gorgonia.Node) (*gorgonia.Node, error)          { return gorgonia.Neg(a) }
func Square(a *gorgonia.Node) (*gorgonia.Node, error)       { return gorgonia.Square(a) }
func Sqrt(a *gorgonia.Node) (*gorgonia.Node, error)         { return gorgonia.Sqrt(a) }
func Tanh(a *gorgonia.Node) (*gorgonia.Node, error)         { return gorgonia.Tanh(a) }
func Sigmoid(a *gorgonia.Node) (*gorgonia.Node, error)      { return gorgonia.Sigmoid(a) }
func Softplus(a *gorgonia.Node) (*gorgonia.Node, error)     { return gorgonia.Softplus(a) }
func Rectify(a *gorgonia.Node) (*gorgonia.Node, error)      { return gorgonia.Rectify(a) }

// LeakyReLU Returns leaky rectifier with provided negative slope
func LeakyReLU(alpha float64) ActivationFunc {
	return func(a *gorgonia.Node) (*gorgonia.Node, error) {
		return gorgonia.LeakyRelu(a, alpha)
	}
}

var activations = map[string]ActivationFunc{
	"Identity": NoActivation,
	"Abs":      Abs,
	"Exp":      Exp,
	"Log":      Log,
	"Neg":      Neg,
	"Square":   Square,
	"Sqrt":     Sqrt,
	"Tanh":     Tanh,
	"Sigmoid":  Sigmoid,
	"Softplus": Softplus,
	"ReLU":     Rectify,
}

// ActivationFromRecord Resolves act_cfg-like record: {type: LeakyReLU, negative_slope: 0.2}, {type: ReLU}, ...
// Nil record gives fallback.
func ActivationFromRecord(rec registry.Record, fallback ActivationFunc) (ActivationFunc, error) {
	if rec == nil {
		return fallback, nil
	}
	typ, err := rec.Type()
	if err != nil {
		return nil, err
	}
	if typ == "LeakyReLU" {
		slope, err := rec.Float("negative_slope", 0.2)
		if err != nil {
			return nil, err
		}
		return LeakyReLU(slope), nil
	}
	fn, ok := activations[typ]
	if !ok {
		return nil, errors.Wrapf(registry.ErrUnknownType, "activation '%s'", typ)
	}
	return fn, nil
}
