package nn

import (
	"fmt"
	"maps"
	"slices"

	"github.com/born-ml/evalnet/internal/tensor"
)

// StateDict returns a copy of every parameter, keyed "<layer>.<name>".
//
// For layer i:
//   - "i.weight": [size_i, size_{i+1}], absent on the last layer
//   - "i.bias": [size_i]
//   - batch-norm layers add "i.gamma", "i.beta", "i.running_mean" and "i.running_var", each [size_i]
func (n *Network) StateDict() map[string]*tensor.Tensor {
	state := make(map[string]*tensor.Tensor)
	for i, l := range n.layers {
		d := l.dense()
		if d.next != nil {
			state[stateKey(i, "weight")] = mustFromSlice(d.weightMatrixData(), d.Size(), d.next.Size())
		}
		state[stateKey(i, "bias")] = mustFromSlice(d.Biases(), d.Size())

		if bn, ok := l.(*BatchNormLayer); ok {
			for name, v := range bn.buffers() {
				state[stateKey(i, name)] = mustFromSlice(slices.Clone(v), d.Size())
			}
		}
	}
	return state
}

// LoadStateDict replaces every parameter with the tensors in state.
//
// Every expected key must be present with the expected shape; nothing is
// modified otherwise. Extra keys are ignored.
func (n *Network) LoadStateDict(state map[string]*tensor.Tensor) error {
	if err := checkState(n.StateDict(), state); err != nil {
		return err
	}

	for i, l := range n.layers {
		d := l.dense()
		if d.next != nil {
			d.setWeightMatrix(state[stateKey(i, "weight")])
		}
		for j, b := range state[stateKey(i, "bias")].Data() {
			d.nodes[j].Bias = b
		}
		if bn, ok := l.(*BatchNormLayer); ok {
			for name, v := range bn.buffers() {
				copy(v, state[stateKey(i, name)].Data())
			}
		}
	}
	return nil
}

// buffers names the per-unit vectors a batch-norm layer persists.
func (l *BatchNormLayer) buffers() map[string][]float64 {
	return map[string][]float64{
		"gamma":        l.Gamma,
		"beta":         l.Beta,
		"running_mean": l.RunningMean,
		"running_var":  l.RunningVar,
	}
}

// StateDict returns a copy of every parameter and batch-norm buffer, keyed
// "<layer>.<name>" (e.g. "0.kernel", "0.bias", "3.weight", "1.running_mean").
// Layers without parameters contribute nothing.
func (n *TensorNetwork) StateDict() map[string]*tensor.Tensor {
	live := n.stateTensors()
	state := make(map[string]*tensor.Tensor, len(live))
	for k, t := range live {
		state[k] = t.Clone()
	}
	return state
}

// LoadStateDict copies the tensors in state into the network.
//
// Every expected key must be present with the expected shape; nothing is
// modified otherwise. Extra keys are ignored.
func (n *TensorNetwork) LoadStateDict(state map[string]*tensor.Tensor) error {
	live := n.stateTensors()
	if err := checkState(live, state); err != nil {
		return err
	}
	for k, t := range live {
		if err := t.CopyFrom(state[k]); err != nil {
			return fmt.Errorf("load %q: %w", k, err)
		}
	}
	return nil
}

// stateTensors maps state keys to the live tensors they name.
func (n *TensorNetwork) stateTensors() map[string]*tensor.Tensor {
	live := make(map[string]*tensor.Tensor)
	for i, l := range n.layers {
		for _, p := range l.Parameters() {
			live[stateKey(i, p.Name())] = p.Tensor()
		}
		if bn, ok := l.(*BatchNorm2D); ok {
			live[stateKey(i, "running_mean")] = bn.runningMean
			live[stateKey(i, "running_var")] = bn.runningVar
		}
	}
	return live
}

// checkState verifies that state holds every key of expected with a matching shape.
func checkState(expected, state map[string]*tensor.Tensor) error {
	for _, k := range slices.Sorted(maps.Keys(expected)) {
		t, ok := state[k]
		if !ok || t == nil {
			return fmt.Errorf("%w: %q", ErrMissingStateTensor, k)
		}
		if !t.Shape().Equal(expected[k].Shape()) {
			return fmt.Errorf("%w: %q has shape %v, expected %v", tensor.ErrShapeMismatch, k, t.Shape(), expected[k].Shape())
		}
	}
	return nil
}

func stateKey(layer int, name string) string {
	return fmt.Sprintf("%d.%s", layer, name)
}

// mustFromSlice wraps data whose length is known to match shape.
func mustFromSlice(data []float64, shape ...int) *tensor.Tensor {
	t, err := tensor.FromSlice(data, shape...)
	if err != nil {
		panic(err)
	}
	return t
}
