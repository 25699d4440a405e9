package pix2pix

import (
	"sort"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ErrStateMismatch Stored state does not fit model layout
var ErrStateMismatch = errors.New("state does not match model")

// TensorState Serializable value of a single learnable node
type TensorState struct {
	Name  string
	Shape []int
	Data  []float64
}

// State Learnable values grouped by model part ("generators", "discriminators")
type State struct {
	Parts map[string][]TensorState
}

// PartNames Sorted names of stored parts
func (s *State) PartNames() []string {
	names := make([]string, 0, len(s.Parts))
	for k := range s.Parts {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func captureNodes(nodes gorgonia.Nodes) ([]TensorState, error) {
	out := make([]TensorState, len(nodes))
	for i, n := range nodes {
		dense, ok := n.Value().(*tensor.Dense)
		if !ok {
			return nil, errors.Errorf("node '%s' has no dense value", n.Name())
		}
		data, ok := dense.Data().([]float64)
		if !ok {
			return nil, errors.Errorf("node '%s' is not float64", n.Name())
		}
		out[i] = TensorState{
			Name:  n.Name(),
			Shape: append([]int(nil), dense.Shape()...),
			Data:  append([]float64(nil), data...),
		}
	}
	return out, nil
}

// restoreNodes Writes stored values into nodes. Nodes are matched by position, shapes must agree.
func restoreNodes(nodes gorgonia.Nodes, stored []TensorState) error {
	if len(nodes) != len(stored) {
		return errors.Wrapf(ErrStateMismatch, "have %d nodes, state has %d", len(nodes), len(stored))
	}
	for i, n := range nodes {
		dense, ok := n.Value().(*tensor.Dense)
		if !ok {
			return errors.Errorf("node '%s' has no dense value", n.Name())
		}
		if !dense.Shape().Eq(tensor.Shape(stored[i].Shape)) {
			return errors.Wrapf(ErrStateMismatch, "node '%s' has shape %v, state '%s' has %v", n.Name(), []int(dense.Shape()), stored[i].Name, stored[i].Shape)
		}
		data, ok := dense.Data().([]float64)
		if !ok || len(data) != len(stored[i].Data) {
			return errors.Wrapf(ErrStateMismatch, "node '%s' size differs from state", n.Name())
		}
		copy(data, stored[i].Data)
	}
	return nil
}
