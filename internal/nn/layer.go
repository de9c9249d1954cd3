package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/evalnet/internal/tensor"
)

// LayerKind identifies a dense layer variant.
type LayerKind int

// Dense layer variants.
const (
	InputKind LayerKind = iota
	StandardKind
	OutputKind
	BatchNormKind
)

// String returns the variant name.
func (k LayerKind) String() string {
	switch k {
	case InputKind:
		return "input"
	case StandardKind:
		return "standard"
	case OutputKind:
		return "output"
	case BatchNormKind:
		return "batchnorm"
	default:
		return fmt.Sprintf("LayerKind(%d)", int(k))
	}
}

// Layer is a dense layer of scalar nodes.
//
// A training step moves each layer through Forward, then Backward, which
// consumes the cached forward state and updates the parameters.
type Layer interface {
	// Kind returns the layer variant.
	Kind() LayerKind

	// Size returns the fixed node count.
	Size() int

	// Activation returns the activation shared by all nodes.
	Activation() Activation

	// Values returns a copy of the node values from the last forward pass.
	Values() []float64

	// Nodes returns the layer's node arena. Callers must treat it as read-only.
	Nodes() []Node

	// Edges returns the layer's incoming edge arena. Callers must treat it as read-only.
	Edges() []Edge

	// Forward sets node values. A nil input pulls values from the previous
	// layer through the incoming edges; a non-nil input is taken directly.
	Forward(input []float64) error

	// Backward computes node gradients from grad, updates the layer's
	// parameters with learning rate lr and returns the gradient with respect
	// to the previous layer's values, sized to that layer.
	Backward(grad []float64, lr float64) ([]float64, error)

	dense() *denseLayer
}

// denseLayer holds the node and edge arenas shared by every dense variant.
type denseLayer struct {
	kind       LayerKind
	activation Activation
	nodes      []Node
	edges      []Edge // incoming; edges[h].Target indexes nodes

	prev, next *denseLayer
	attached   bool
	forwarded  bool
}

func newDenseLayer(kind LayerKind, size int, act Activation, rng *rand.Rand) (denseLayer, error) {
	if size <= 0 {
		return denseLayer{}, fmt.Errorf("%w: %s layer size must be positive, got %d", ErrInvalidConfig, kind, size)
	}
	if rng == nil {
		return denseLayer{}, fmt.Errorf("%w: %s layer needs a random source", ErrInvalidConfig, kind)
	}

	nodes := make([]Node, size)
	for i := range nodes {
		nodes[i] = Node{
			Bias:       smallRandom(rng),
			Activation: act,
		}
	}
	return denseLayer{kind: kind, activation: act, nodes: nodes}, nil
}

func (l *denseLayer) dense() *denseLayer { return l }

// Kind returns the layer variant.
func (l *denseLayer) Kind() LayerKind { return l.kind }

// Size returns the node count.
func (l *denseLayer) Size() int { return len(l.nodes) }

// Activation returns the activation shared by all nodes.
func (l *denseLayer) Activation() Activation { return l.activation }

// Nodes returns the node arena.
func (l *denseLayer) Nodes() []Node { return l.nodes }

// Edges returns the incoming edge arena.
func (l *denseLayer) Edges() []Edge { return l.edges }

// Values returns a copy of the node values.
func (l *denseLayer) Values() []float64 {
	out := make([]float64, len(l.nodes))
	for i := range l.nodes {
		out[i] = l.nodes[i].Value
	}
	return out
}

// Biases returns a copy of the node biases.
func (l *denseLayer) Biases() []float64 {
	out := make([]float64, len(l.nodes))
	for i := range l.nodes {
		out[i] = l.nodes[i].Bias
	}
	return out
}

// connect creates a fully connected edge set from prev to next, seeds every
// edge with a small random weight and then re-seeds it with Xavier now that
// both fan-in and fan-out are known.
func connect(prev, next *denseLayer, rng *rand.Rand) {
	next.edges = make([]Edge, 0, len(prev.nodes)*len(next.nodes))
	for j := range next.nodes {
		for i := range prev.nodes {
			h := len(next.edges)
			next.edges = append(next.edges, Edge{Source: i, Target: j, Weight: smallRandom(rng)})
			next.nodes[j].Incoming = append(next.nodes[j].Incoming, h)
			prev.nodes[i].Outgoing = append(prev.nodes[i].Outgoing, h)
		}
	}
	prev.next, next.prev = next, prev

	fanIn, fanOut := len(prev.nodes), len(next.nodes)
	for h := range next.edges {
		next.edges[h].Weight = Xavier(rng, fanIn, fanOut)
	}
}

// setValues takes an external input vector directly as net input and value.
func (l *denseLayer) setValues(input []float64) error {
	if len(input) != len(l.nodes) {
		return fmt.Errorf("%w: %s layer has %d nodes, got %d values", ErrInputSize, l.kind, len(l.nodes), len(input))
	}
	for i := range l.nodes {
		l.nodes[i].NetInput = input[i]
		l.nodes[i].Value = input[i]
	}
	return nil
}

// pull computes every node from the previous layer through the incoming edges.
func (l *denseLayer) pull() error {
	if l.prev == nil {
		return fmt.Errorf("%w: %s layer has no incoming connections", ErrInvalidArchitecture, l.kind)
	}
	for i := range l.nodes {
		l.nodes[i].CalculateNetInput(l.edges, l.prev.nodes)
		l.nodes[i].ApplyActivation()
	}
	return nil
}

// forward is the shared Standard/Output forward pass.
func (l *denseLayer) forward(input []float64) error {
	var err error
	if input != nil {
		err = l.setValues(input)
	} else {
		err = l.pull()
	}
	if err != nil {
		return err
	}
	l.forwarded = true
	return nil
}

// checkBackward validates that a forward pass happened and grad fits the layer.
func (l *denseLayer) checkBackward(grad []float64) error {
	if !l.forwarded {
		return fmt.Errorf("%w: %s layer", ErrNoForwardPass, l.kind)
	}
	if grad != nil && len(grad) != len(l.nodes) {
		return fmt.Errorf("%w: %s layer has %d nodes, got %d gradients", ErrInputSize, l.kind, len(l.nodes), len(grad))
	}
	return nil
}

// hiddenGradients sets node gradients by pulling them from the next layer
// through the outgoing edges.
func (l *denseLayer) hiddenGradients() error {
	if l.next == nil {
		return fmt.Errorf("%w: %s layer has no outgoing connections", ErrInvalidArchitecture, l.kind)
	}
	for i := range l.nodes {
		l.nodes[i].CalculateHiddenGradient(l.next.edges, l.next.nodes)
	}
	return nil
}

// descend returns the gradient for the previous layer, computed from the
// current weights, then applies gradient descent to the incoming edges and
// the biases. A layer without a previous layer returns nil and updates nothing.
func (l *denseLayer) descend(lr float64) []float64 {
	l.forwarded = false
	if l.prev == nil {
		return nil
	}

	prevGrad := make([]float64, len(l.prev.nodes))
	for h := range l.edges {
		e := &l.edges[h]
		prevGrad[e.Source] += e.Weight * l.nodes[e.Target].Gradient
	}
	for h := range l.edges {
		l.edges[h].UpdateWeight(lr, l.prev.nodes, l.nodes)
	}
	for i := range l.nodes {
		l.nodes[i].Bias -= lr * l.nodes[i].Gradient
	}
	return prevGrad
}

// InputLayer copies external input into its nodes and has no parameters.
type InputLayer struct {
	denseLayer
}

// NewInputLayer creates an input layer of the given size.
//
// Biases are still drawn from rng so that every layer owns the same node layout.
func NewInputLayer(size int, rng *rand.Rand) (*InputLayer, error) {
	base, err := newDenseLayer(InputKind, size, Linear(), rng)
	if err != nil {
		return nil, err
	}
	return &InputLayer{denseLayer: base}, nil
}

// Forward copies input into the node values. Input must not be nil.
func (l *InputLayer) Forward(input []float64) error {
	if input == nil {
		return fmt.Errorf("%w: input layer needs an input vector", ErrInputSize)
	}
	if err := l.setValues(input); err != nil {
		return err
	}
	l.forwarded = true
	return nil
}

// Backward returns a zero gradient vector; the input layer has nothing to update.
func (l *InputLayer) Backward(grad []float64, _ float64) ([]float64, error) {
	if grad != nil && len(grad) != len(l.nodes) {
		return nil, fmt.Errorf("%w: input layer has %d nodes, got %d gradients", ErrInputSize, len(l.nodes), len(grad))
	}
	for i := range l.nodes {
		l.nodes[i].Gradient = 0
	}
	l.forwarded = false
	return make([]float64, len(l.nodes)), nil
}

// StandardLayer is a hidden layer: net input from incoming edges, then activation.
type StandardLayer struct {
	denseLayer
}

// NewStandardLayer creates a hidden layer with small random biases drawn from rng.
func NewStandardLayer(size int, act Activation, rng *rand.Rand) (*StandardLayer, error) {
	base, err := newDenseLayer(StandardKind, size, act, rng)
	if err != nil {
		return nil, err
	}
	return &StandardLayer{denseLayer: base}, nil
}

// Forward takes input directly when non-nil, otherwise pulls from the previous layer.
func (l *StandardLayer) Forward(input []float64) error {
	return l.forward(input)
}

// Backward treats grad as dL/d(value) for each node. A nil grad pulls the
// gradients from the next layer's nodes through the outgoing edges instead.
func (l *StandardLayer) Backward(grad []float64, lr float64) ([]float64, error) {
	if err := l.checkBackward(grad); err != nil {
		return nil, err
	}
	if grad == nil {
		if err := l.hiddenGradients(); err != nil {
			return nil, err
		}
	} else {
		for i := range l.nodes {
			n := &l.nodes[i]
			n.Gradient = grad[i] * n.Activation.Derivative(n.NetInput)
		}
	}
	return l.descend(lr), nil
}

// OutputLayer is the last layer of a feed-forward network.
//
// With UseSoftmax the node values are replaced by a softmax over the
// activated outputs and Backward uses the cross-entropy delta.
type OutputLayer struct {
	denseLayer
	useSoftmax bool
}

// NewOutputLayer creates an output layer.
func NewOutputLayer(size int, act Activation, useSoftmax bool, rng *rand.Rand) (*OutputLayer, error) {
	base, err := newDenseLayer(OutputKind, size, act, rng)
	if err != nil {
		return nil, err
	}
	return &OutputLayer{denseLayer: base, useSoftmax: useSoftmax}, nil
}

// UseSoftmax reports whether the layer normalizes its outputs with softmax.
func (l *OutputLayer) UseSoftmax() bool { return l.useSoftmax }

// Forward computes the outputs and applies softmax if enabled.
func (l *OutputLayer) Forward(input []float64) error {
	if err := l.forward(input); err != nil {
		return err
	}
	if l.useSoftmax {
		probs := Softmax(l.Values())
		for i := range l.nodes {
			l.nodes[i].Value = probs[i]
		}
	}
	return nil
}

// Backward treats grad as the target vector.
//
// The delta is value - target with softmax, otherwise
// (value - target) * activation'(net input).
func (l *OutputLayer) Backward(targets []float64, lr float64) ([]float64, error) {
	if targets == nil {
		return nil, fmt.Errorf("%w: output layer needs a target vector", ErrInputSize)
	}
	if err := l.checkBackward(targets); err != nil {
		return nil, err
	}
	for i := range l.nodes {
		n := &l.nodes[i]
		if l.useSoftmax {
			n.Gradient = n.Value - targets[i]
		} else {
			n.CalculateOutputGradient(targets[i])
		}
	}
	return l.descend(lr), nil
}

// weightMatrixData returns the outgoing weights of l laid out [size][nextSize].
func (l *denseLayer) weightMatrixData() []float64 {
	rows, cols := len(l.nodes), len(l.next.nodes)
	data := make([]float64, rows*cols)
	for h := range l.next.edges {
		e := &l.next.edges[h]
		data[e.Source*cols+e.Target] = e.Weight
	}
	return data
}

// setWeightMatrix loads outgoing weights laid out [size][nextSize].
func (l *denseLayer) setWeightMatrix(w *tensor.Tensor) {
	cols := len(l.next.nodes)
	data := w.Data()
	for h := range l.next.edges {
		e := &l.next.edges[h]
		e.Weight = data[e.Source*cols+e.Target]
	}
}
