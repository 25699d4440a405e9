package pix2pix

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// LossReduction How element-wise loss is reduced to scalar
type LossReduction uint16

const (
	LossReductionSum = LossReduction(iota)
	LossReductionMean
)

// bceEpsilon Keeps log() away from zero for saturated probabilities
const bceEpsilon = 1e-7

func reduce(x *gorgonia.Node, reduction []LossReduction) (*gorgonia.Node, error) {
	reductionDefault := LossReductionMean
	if len(reduction) != 0 {
		reductionDefault = reduction[0]
	}
	switch reductionDefault {
	case LossReductionSum:
		return gorgonia.Sum(x)
	case LossReductionMean:
		return gorgonia.Mean(x)
	default:
		return nil, fmt.Errorf("Reduction type %d is not supported", reductionDefault)
	}
}

// scalarLike Constant of a's dtype. Constants are keyed by value, so distinct values never share a node.
func scalarLike(a *gorgonia.Node, v float64) *gorgonia.Node {
	if a.Dtype() == gorgonia.Float32 {
		return gorgonia.NewConstant(float32(v))
	}
	return gorgonia.NewConstant(v)
}

// MSELoss See ref. https://en.wikipedia.org/wiki/Mean_squared_error
// Default reduction is 'mean'
func MSELoss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	sub, err := gorgonia.Sub(a, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A-B)")
	}
	sqr, err := gorgonia.Square(sub)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x^2)")
	}
	return reduce(sqr, reduction)
}

// CrossEntropyLoss See ref. https://en.wikipedia.org/wiki/Cross_entropy#Cross-entropy_loss_function_and_logistic_regression
// Default reduction is 'mean'
func CrossEntropyLoss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	shifted, err := gorgonia.Add(a, scalarLike(a, bceEpsilon))
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A+eps)")
	}
	log, err := gorgonia.Log(shifted)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(A)")
	}
	neg, err := gorgonia.Neg(log)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do -1*x")
	}
	hprod, err := gorgonia.HadamardProd(neg, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x.*B)")
	}
	return reduce(hprod, reduction)
}

// BinaryCrossEntropyLoss See ref. https://en.wikipedia.org/wiki/Cross_entropy#Cross-entropy_loss_function_and_logistic_regression
// -(B*log(A) + (1-B)*log(1-A)), where A holds probabilities (sigmoid output) and B holds targets in {0, 1}.
// Default reduction is 'mean'
func BinaryCrossEntropyLoss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	eps := scalarLike(a, bceEpsilon)
	one := scalarLike(a, 1.0)

	shiftedMain, err := gorgonia.Add(a, eps)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A+eps)")
	}
	logMain, err := gorgonia.Log(shiftedMain)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(A)")
	}
	hprodMain, err := gorgonia.HadamardProd(b, logMain)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (B.*x)")
	}

	invA, err := gorgonia.Sub(one, a)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (1-A)")
	}
	shiftedBin, err := gorgonia.Add(invA, eps)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (1-A+eps)")
	}
	logBin, err := gorgonia.Log(shiftedBin)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(1-A)")
	}
	invB, err := gorgonia.Sub(one, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (1-B)")
	}
	hprodBin, err := gorgonia.HadamardProd(invB, logBin)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x.*y)")
	}
	sum, err := gorgonia.Add(hprodMain, hprodBin)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x+y)")
	}
	neg, err := gorgonia.Neg(sum)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do -1*x")
	}
	return reduce(neg, reduction)
}

// L1Loss See ref. https://en.wikipedia.org/wiki/Least_absolute_deviations
// Default reduction is 'mean'
func L1Loss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	sub, err := gorgonia.Sub(a, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A-B)")
	}
	abs, err := gorgonia.Abs(sub)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do |x|")
	}
	return reduce(abs, reduction)
}

// HuberLoss See ref. https://en.wikipedia.org/wiki/Huber_loss
// This is actually Pseudo Huber Loss - see ref. https://en.wikipedia.org/wiki/Huber_loss#Pseudo-Huber_loss_function
// delta^2 * (sqrt(1 + ((A-B)/delta)^2) - 1)
// Default reduction is 'mean'
func HuberLoss(a, b *gorgonia.Node, delta float64, reduction ...LossReduction) (*gorgonia.Node, error) {
	deltaScalar := scalarLike(a, delta)
	sqrDelta := scalarLike(a, delta*delta)
	oneScalar := scalarLike(a, 1.0)

	sub, err := gorgonia.Sub(a, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A-B)")
	}
	div, err := gorgonia.Div(sub, deltaScalar)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (X/delta)")
	}
	sqr, err := gorgonia.Square(div)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x^2)")
	}
	addOneScalar, err := gorgonia.Add(oneScalar, sqr)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (1.+X)")
	}
	sqrt, err := gorgonia.Sqrt(addOneScalar)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do sqrt(x)")
	}
	subOneScalar, err := gorgonia.Sub(sqrt, oneScalar)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (X.-1)")
	}
	scaled, err := gorgonia.Mul(sqrDelta, subOneScalar)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (delta^2*x)")
	}
	return reduce(scaled, reduction)
}
