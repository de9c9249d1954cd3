package nn

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/evalnet/internal/tensor"
)

// TensorNetwork chains tensor layers so that each layer's output becomes
// the next layer's input.
//
// Consecutive layers must agree on shapes: the output shape of layer i equals
// the input shape of layer i+1. The layer list is fixed after construction.
// A TensorNetwork is not safe for concurrent use.
//
// Example:
//
//	conv, _ := nn.NewConv2D(nn.ConvConfig{InputShape: tensor.Shape{1, 3, 8, 8}, Filters: 8, KernelH: 3, KernelW: 3, Padding: true}, rng)
//	pool, _ := nn.NewPooling(nn.PoolMax, conv.OutputShape(), tensor.PoolParams{PoolH: 2, PoolW: 2})
//	flat, _ := nn.NewFlatten(pool.OutputShape())
//	fc, _ := nn.NewFullyConnected(flat.OutputShape()[0], 1, nn.Tanh(), false, rng)
//
//	net, _ := nn.NewTensorNetwork(nn.Config{LearningRate: 0.01}, conv, pool, flat, fc)
//	score, _ := net.Score(board)
type TensorNetwork struct {
	layers       []TensorLayer
	learningRate float64
}

// NewTensorNetwork checks that consecutive layer shapes match and builds the
// network. A network with no layers can be built, but Forward and Train
// report ErrNotInitialized.
func NewTensorNetwork(cfg Config, layers ...TensorLayer) (*TensorNetwork, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	for i, l := range layers {
		if l == nil {
			return nil, fmt.Errorf("%w: layer %d is nil", ErrInvalidConfig, i)
		}
		if i == 0 {
			continue
		}
		if out, in := layers[i-1].OutputShape(), l.InputShape(); !out.Equal(in) {
			return nil, fmt.Errorf("%w: layer %d outputs %v but layer %d expects %v",
				ErrInvalidArchitecture, i-1, out, i, in)
		}
	}
	return &TensorNetwork{
		layers:       layers,
		learningRate: cfg.LearningRate,
	}, nil
}

// LearningRate returns the gradient descent step passed to every Backward.
func (n *TensorNetwork) LearningRate() float64 { return n.learningRate }

// NumLayers returns the number of layers.
func (n *TensorNetwork) NumLayers() int { return len(n.layers) }

// Layer returns the layer at the given index.
//
// Panics if index is out of bounds.
func (n *TensorNetwork) Layer(i int) TensorLayer {
	if i < 0 || i >= len(n.layers) {
		panic("TensorNetwork.Layer: index out of bounds")
	}
	return n.layers[i]
}

// Layers returns a copy of the layer list.
func (n *TensorNetwork) Layers() []TensorLayer {
	return append([]TensorLayer(nil), n.layers...)
}

// InputShape returns the shape Forward accepts, or nil for an empty network.
func (n *TensorNetwork) InputShape() tensor.Shape {
	if len(n.layers) == 0 {
		return nil
	}
	return n.layers[0].InputShape()
}

// OutputShape returns the shape Forward produces, or nil for an empty network.
func (n *TensorNetwork) OutputShape() tensor.Shape {
	if len(n.layers) == 0 {
		return nil
	}
	return n.layers[len(n.layers)-1].OutputShape()
}

// Parameters returns all trainable parameters from all layers in order.
func (n *TensorNetwork) Parameters() []*Parameter {
	var params []*Parameter
	for _, l := range n.layers {
		params = append(params, l.Parameters()...)
	}
	return params
}

// Forward runs every layer in inference mode.
func (n *TensorNetwork) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	n.setTraining(false)
	return n.forward(input)
}

// Score returns the first output element as a scalar board evaluation.
func (n *TensorNetwork) Score(board *tensor.Tensor) (float64, error) {
	out, err := n.Forward(board)
	if err != nil {
		return 0, err
	}
	return out.Data()[0], nil
}

// Train runs one forward pass in training mode, then backward through the
// layers in reverse order starting from the gradient output - target.
//
// Returns the loss before the update: cross-entropy when the last layer is
// a softmax FullyConnected layer, MSE otherwise.
func (n *TensorNetwork) Train(input, target *tensor.Tensor) (float64, error) {
	if len(n.layers) == 0 {
		return 0, ErrNotInitialized
	}
	if target == nil {
		return 0, fmt.Errorf("%w: nil target", ErrInputSize)
	}
	if !target.Shape().Equal(n.OutputShape()) {
		return 0, fmt.Errorf("%w: %w: network outputs %v, got target %v",
			ErrInputSize, tensor.ErrShapeMismatch, n.OutputShape(), target.Shape())
	}

	n.setTraining(true)
	defer n.setTraining(false)

	out, err := n.forward(input)
	if err != nil {
		return 0, err
	}
	loss, err := n.loss(out, target)
	if err != nil {
		return 0, err
	}

	grad := out.Clone()
	gd, td := grad.Data(), target.Data()
	for i := range gd {
		gd[i] -= td[i]
	}
	for i := len(n.layers) - 1; i >= 0; i-- {
		grad, err = n.layers[i].Backward(grad, n.learningRate)
		if err != nil {
			return 0, fmt.Errorf("layer %d: %w", i, err)
		}
	}
	return loss, nil
}

// TrainBatch trains on every (input, target) pair for the given number of
// epochs and returns the average loss of the final epoch.
//
// Batch-norm running statistics are refreshed before each epoch. onEpoch,
// if not nil, is called after every epoch.
func (n *TensorNetwork) TrainBatch(inputs, targets []*tensor.Tensor, epochs int, onEpoch EpochFunc) (float64, error) {
	if err := n.checkBatch(inputs, targets, epochs); err != nil {
		return 0, err
	}

	losses := make([]float64, len(inputs))
	var avg float64
	for epoch := 0; epoch < epochs; epoch++ {
		if err := n.calibrate(inputs); err != nil {
			return 0, err
		}
		for i := range inputs {
			loss, err := n.Train(inputs[i], targets[i])
			if err != nil {
				return 0, fmt.Errorf("epoch %d, sample %d: %w", epoch, i, err)
			}
			losses[i] = loss
		}
		avg = stat.Mean(losses, nil)
		if onEpoch != nil {
			onEpoch(epoch, avg)
		}
	}
	return avg, nil
}

// Loss returns the average inference-mode loss over the samples without training.
func (n *TensorNetwork) Loss(inputs, targets []*tensor.Tensor) (float64, error) {
	if err := n.checkBatch(inputs, targets, 1); err != nil {
		return 0, err
	}
	losses := make([]float64, len(inputs))
	for i := range inputs {
		out, err := n.Forward(inputs[i])
		if err != nil {
			return 0, err
		}
		if losses[i], err = n.loss(out, targets[i]); err != nil {
			return 0, err
		}
	}
	return stat.Mean(losses, nil), nil
}

func (n *TensorNetwork) forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(n.layers) == 0 {
		return nil, ErrNotInitialized
	}
	if input == nil {
		return nil, fmt.Errorf("%w: nil input", ErrInputSize)
	}
	if !input.Shape().Equal(n.InputShape()) {
		return nil, fmt.Errorf("%w: %w: network expects %v, got %v",
			ErrInputSize, tensor.ErrShapeMismatch, n.InputShape(), input.Shape())
	}

	out := input
	for i, l := range n.layers {
		var err error
		if out, err = l.Forward(out); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
	}
	return out, nil
}

// setTraining switches every Dropout layer.
func (n *TensorNetwork) setTraining(training bool) {
	for _, l := range n.layers {
		if d, ok := l.(*Dropout); ok {
			d.SetTraining(training)
		}
	}
}

// checkBatch validates a training set before anything is mutated.
func (n *TensorNetwork) checkBatch(inputs, targets []*tensor.Tensor, epochs int) error {
	if len(n.layers) == 0 {
		return ErrNotInitialized
	}
	if len(inputs) != len(targets) {
		return fmt.Errorf("%w: %d inputs, %d targets", ErrBatchLengthMismatch, len(inputs), len(targets))
	}
	if len(inputs) == 0 {
		return fmt.Errorf("%w: empty training set", ErrInvalidConfig)
	}
	if epochs <= 0 {
		return fmt.Errorf("%w: epochs must be positive, got %d", ErrInvalidConfig, epochs)
	}
	in, out := n.InputShape(), n.OutputShape()
	for i := range inputs {
		if inputs[i] == nil || !inputs[i].Shape().Equal(in) {
			return fmt.Errorf("%w: sample %d input does not have shape %v", ErrInputSize, i, in)
		}
		if targets[i] == nil || !targets[i].Shape().Equal(out) {
			return fmt.Errorf("%w: sample %d target does not have shape %v", ErrInputSize, i, out)
		}
	}
	return nil
}

// calibrate refreshes the running statistics of every BatchNorm2D layer from
// the inputs it sees over one inference pass of inputs.
func (n *TensorNetwork) calibrate(inputs []*tensor.Tensor) error {
	var norms []int
	for i, l := range n.layers {
		if _, ok := l.(*BatchNorm2D); ok {
			norms = append(norms, i)
		}
	}
	if len(norms) == 0 {
		return nil
	}

	samples := make([][]*tensor.Tensor, len(norms))
	for _, in := range inputs {
		if _, err := n.Forward(in); err != nil {
			return err
		}
		for k, i := range norms {
			samples[k] = append(samples[k], n.layers[i].(*BatchNorm2D).PreNormalization())
		}
	}
	for k, i := range norms {
		if err := n.layers[i].(*BatchNorm2D).UpdateStatistics(samples[k]); err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
	}
	return nil
}

// loss picks cross-entropy for a softmax output layer and MSE otherwise.
func (n *TensorNetwork) loss(out, target *tensor.Tensor) (float64, error) {
	if fc, ok := n.layers[len(n.layers)-1].(*FullyConnected); ok && fc.UseSoftmax() {
		return CrossEntropy(out.Data(), target.Data())
	}
	return MSE(out.Data(), target.Data())
}
