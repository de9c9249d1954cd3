// Package nn implements the network engine for the evalnet board evaluator.
//
// This package provides two families of building blocks:
//   - Dense layers: a scalar Node/Edge graph (Input, Standard, Output, BatchNorm)
//   - Tensor layers: Conv, Pooling, Flatten, FullyConnected, BatchNorm, Dropout
//   - Activations: ReLU, Sigmoid, Tanh, Linear, LeakyReLU
//   - Loss functions: MSE, CrossEntropy
//   - Network, FeedForwardNetwork, TensorNetwork: forward, train, batch train
//
// Training is manual backpropagation with fixed-form gradient descent. Every
// backward call receives the network learning rate, and every random draw
// comes from the *rand.Rand supplied at construction.
package nn

import (
	"github.com/born-ml/evalnet/internal/tensor"
)

// TensorLayer is the base interface for all tensor-native layers.
//
// Every tensor layer must implement:
//   - Forward: Compute output from input, caching what Backward needs
//   - Backward: Consume dL/d(output), update own parameters, return dL/d(input)
//   - Parameters: Return all trainable parameters
//
// Layers are composed by a TensorNetwork:
//
//	pool, _ := nn.NewPooling(nn.PoolMax, conv.OutputShape(), tensor.PoolParams{PoolH: 2, PoolW: 2})
//	flat, _ := nn.NewFlatten(pool.OutputShape())
//	net, _ := nn.NewTensorNetwork(cfg, conv, pool, flat, fc)
type TensorLayer interface {
	// Forward computes the output of the layer for the given input.
	//
	// The input shape must equal InputShape().
	Forward(input *tensor.Tensor) (*tensor.Tensor, error)

	// Backward propagates grad (shaped like the last output) through the
	// layer, applies gradient descent with learning rate lr and returns the
	// gradient with respect to the last input.
	//
	// The returned gradient is computed from the pre-update parameters.
	Backward(grad *tensor.Tensor, lr float64) (*tensor.Tensor, error)

	// InputShape returns the shape Forward accepts.
	InputShape() tensor.Shape

	// OutputShape returns the shape Forward produces.
	OutputShape() tensor.Shape

	// Parameters returns all trainable parameters of this layer.
	//
	// Returns an empty slice for layers without trainable parameters
	// (e.g., pooling, flatten).
	Parameters() []*Parameter

	// String returns a short description of the layer.
	String() string
}
