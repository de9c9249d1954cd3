package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// EpochFunc receives the average loss of each completed epoch.
type EpochFunc func(epoch int, loss float64)

// Network is an ordered sequence of dense layers.
//
// Consecutive layers are fully connected at construction; the layer list
// is fixed afterwards. A Network is not safe for concurrent use.
//
// Example:
//
//	rng := rand.New(rand.NewSource(7))
//	in, _ := nn.NewInputLayer(2, rng)
//	hidden, _ := nn.NewStandardLayer(4, nn.Sigmoid(), rng)
//	out, _ := nn.NewOutputLayer(1, nn.Sigmoid(), false, rng)
//
//	net, _ := nn.NewNetwork(nn.Config{LearningRate: 0.5, Rand: rng}, in, hidden, out)
//	loss, _ := net.Train([]float64{0, 1}, []float64{1})
type Network struct {
	layers       []Layer
	learningRate float64
}

// NewNetwork connects the layers in order and initializes every edge with
// Xavier weights drawn from the configured random source.
//
// An InputLayer may only appear first, and a layer may belong to one
// network only. A network with no layers can be built, but Forward and Train
// report ErrNotInitialized.
func NewNetwork(cfg Config, layers ...Layer) (*Network, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	seen := make(map[*denseLayer]bool, len(layers))
	for i, l := range layers {
		if l == nil {
			return nil, fmt.Errorf("%w: layer %d is nil", ErrInvalidConfig, i)
		}
		d := l.dense()
		if d.attached || seen[d] {
			return nil, fmt.Errorf("%w: layer %d already belongs to a network", ErrInvalidArchitecture, i)
		}
		if i > 0 && l.Kind() == InputKind {
			return nil, fmt.Errorf("%w: input layer at position %d", ErrInvalidArchitecture, i)
		}
		seen[d] = true
	}

	for i := 0; i+1 < len(layers); i++ {
		connect(layers[i].dense(), layers[i+1].dense(), cfg.Rand)
	}
	for _, l := range layers {
		l.dense().attached = true
	}

	return &Network{
		layers:       layers,
		learningRate: cfg.LearningRate,
	}, nil
}

// LearningRate returns the gradient descent step passed to every layer.
func (n *Network) LearningRate() float64 { return n.learningRate }

// NumLayers returns the number of layers.
func (n *Network) NumLayers() int { return len(n.layers) }

// Layer returns the layer at index i.
//
// Panics if index is out of bounds.
func (n *Network) Layer(i int) Layer {
	if i < 0 || i >= len(n.layers) {
		panic("Network.Layer: index out of bounds")
	}
	return n.layers[i]
}

// Layers returns the layers in order.
func (n *Network) Layers() []Layer {
	out := make([]Layer, len(n.layers))
	copy(out, n.layers)
	return out
}

// LayerSizes returns the node count of every layer.
func (n *Network) LayerSizes() []int {
	sizes := make([]int, len(n.layers))
	for i, l := range n.layers {
		sizes[i] = l.Size()
	}
	return sizes
}

// InputSize returns the size of the first layer, or 0 for an empty network.
func (n *Network) InputSize() int {
	if len(n.layers) == 0 {
		return 0
	}
	return n.layers[0].Size()
}

// OutputSize returns the size of the last layer, or 0 for an empty network.
func (n *Network) OutputSize() int {
	if len(n.layers) == 0 {
		return 0
	}
	return n.layers[len(n.layers)-1].Size()
}

// Forward runs input through every layer and returns the output values.
//
// The first layer receives input; every later layer pulls from its
// predecessor.
func (n *Network) Forward(input []float64) ([]float64, error) {
	if len(n.layers) == 0 {
		return nil, ErrNotInitialized
	}
	if len(input) != n.layers[0].Size() {
		return nil, fmt.Errorf("%w: network expects %d inputs, got %d", ErrInputSize, n.layers[0].Size(), len(input))
	}

	if err := n.layers[0].Forward(input); err != nil {
		return nil, fmt.Errorf("layer 0: %w", err)
	}
	for i := 1; i < len(n.layers); i++ {
		if err := n.layers[i].Forward(nil); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
	}
	return n.layers[len(n.layers)-1].Values(), nil
}

// Score returns the first output for board as a scalar evaluation.
func (n *Network) Score(board []float64) (float64, error) {
	out, err := n.Forward(board)
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// Train runs one forward and backward pass and applies gradient descent.
//
// Layers run backward in reverse order, each receiving the gradient vector
// returned by its successor. An OutputLayer receives target itself; any
// other last layer receives the squared-error gradient output - target.
//
// Returns the loss before the update: cross-entropy for a softmax output
// layer, MSE otherwise.
func (n *Network) Train(input, target []float64) (float64, error) {
	if len(n.layers) == 0 {
		return 0, ErrNotInitialized
	}
	if len(target) != n.OutputSize() {
		return 0, fmt.Errorf("%w: network has %d outputs, got %d targets", ErrInputSize, n.OutputSize(), len(target))
	}

	out, err := n.Forward(input)
	if err != nil {
		return 0, err
	}
	loss, err := n.loss(out, target)
	if err != nil {
		return 0, err
	}

	last := n.layers[len(n.layers)-1]
	grad := target
	if last.Kind() != OutputKind {
		grad = make([]float64, len(out))
		for i := range out {
			grad[i] = out[i] - target[i]
		}
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
func (n *Network) TrainBatch(inputs, targets [][]float64, epochs int, onEpoch EpochFunc) (float64, error) {
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

// Loss returns the average loss over the samples without training.
func (n *Network) Loss(inputs, targets [][]float64) (float64, error) {
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

// WeightMatrix returns the weights from layer i to layer i+1 as a
// [size_i x size_{i+1}] matrix.
func (n *Network) WeightMatrix(i int) (*mat.Dense, error) {
	if i < 0 || i+1 >= len(n.layers) {
		return nil, fmt.Errorf("%w: no weights leave layer %d of %d", ErrInvalidArchitecture, i, len(n.layers))
	}
	l := n.layers[i].dense()
	return mat.NewDense(l.Size(), l.next.Size(), l.weightMatrixData()), nil
}

// checkBatch validates a training set before anything is mutated.
func (n *Network) checkBatch(inputs, targets [][]float64, epochs int) error {
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
	for i := range inputs {
		if len(inputs[i]) != n.InputSize() {
			return fmt.Errorf("%w: sample %d has %d inputs, network expects %d", ErrInputSize, i, len(inputs[i]), n.InputSize())
		}
		if len(targets[i]) != n.OutputSize() {
			return fmt.Errorf("%w: sample %d has %d targets, network has %d outputs", ErrInputSize, i, len(targets[i]), n.OutputSize())
		}
	}
	return nil
}

// calibrate refreshes the running statistics of every batch-norm layer from
// the pre-normalization inputs seen over one pass of inputs.
func (n *Network) calibrate(inputs [][]float64) error {
	var norms []int
	for i, l := range n.layers {
		if l.Kind() == BatchNormKind {
			norms = append(norms, i)
		}
	}
	if len(norms) == 0 {
		return nil
	}

	samples := make([][][]float64, len(norms))
	for _, in := range inputs {
		if _, err := n.Forward(in); err != nil {
			return err
		}
		for k, i := range norms {
			samples[k] = append(samples[k], n.layers[i].(*BatchNormLayer).PreNormalization())
		}
	}
	for k, i := range norms {
		if err := n.layers[i].(*BatchNormLayer).UpdateStatistics(samples[k]); err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
	}
	return nil
}

// loss picks cross-entropy for softmax outputs and MSE otherwise.
func (n *Network) loss(out, target []float64) (float64, error) {
	if o, ok := n.layers[len(n.layers)-1].(*OutputLayer); ok && o.UseSoftmax() {
		return CrossEntropy(out, target)
	}
	return MSE(out, target)
}

// FeedForwardNetwork is a Network whose first layer is an InputLayer and
// whose last layer is an OutputLayer.
type FeedForwardNetwork struct {
	*Network
}

// NewFeedForwardNetwork builds a Network and enforces the input/output layer kinds.
func NewFeedForwardNetwork(cfg Config, layers ...Layer) (*FeedForwardNetwork, error) {
	if len(layers) < 2 {
		return nil, fmt.Errorf("%w: feed-forward network needs at least 2 layers, got %d", ErrInvalidArchitecture, len(layers))
	}
	if layers[0] == nil || layers[0].Kind() != InputKind {
		return nil, fmt.Errorf("%w: first layer must be an input layer", ErrInvalidArchitecture)
	}
	if last := layers[len(layers)-1]; last == nil || last.Kind() != OutputKind {
		return nil, fmt.Errorf("%w: last layer must be an output layer", ErrInvalidArchitecture)
	}

	net, err := NewNetwork(cfg, layers...)
	if err != nil {
		return nil, err
	}
	return &FeedForwardNetwork{Network: net}, nil
}
