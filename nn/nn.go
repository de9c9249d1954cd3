// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the neural networks behind evalnet's board evaluation.
//
// # Overview
//
// This package contains:
//   - Dense layers: InputLayer, StandardLayer, OutputLayer, BatchNormLayer
//   - Tensor layers: Conv2D, Pooling, Flatten, FullyConnected, BatchNorm2D, Dropout
//   - Networks: Network, FeedForwardNetwork, TensorNetwork
//   - Activations: ReLU, Sigmoid, Tanh, Linear, LeakyReLU
//   - Loss functions: MSE, CrossEntropy
//   - Persistence: Save, Load, SaveCheckpoint, SaveTensorNetwork
//
// # Basic Usage
//
//	net, err := nn.CreateDefault([]int{2, 4, 1}, nn.Config{LearningRate: 0.5, Seed: 7})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	loss, err := net.TrainBatch(inputs, targets, 1000, nil)
//	score, err := net.Score([]float64{1, 0})
//
// Every random draw comes from Config.Rand (or a generator seeded with
// Config.Seed), so equal configurations build and train identical networks.
package nn

import (
	"math/rand"

	"github.com/born-ml/evalnet/internal/nn"
	"github.com/born-ml/evalnet/internal/tensor"
)

// Configuration

// Config holds construction settings shared by all network types.
type Config = nn.Config

// DefaultLearningRate is used when Config.LearningRate is zero.
const DefaultLearningRate = nn.DefaultLearningRate

// EpochFunc receives the average loss of each completed epoch.
type EpochFunc = nn.EpochFunc

// Evaluator is the scoring and training surface shared by all networks.
type Evaluator[T any] = nn.Evaluator[T]

// Activations

// Activation is a scalar activation function with its derivative.
type Activation = nn.Activation

// ReLU returns max(0, x).
func ReLU() Activation { return nn.ReLU() }

// Sigmoid returns the logistic function.
func Sigmoid() Activation { return nn.Sigmoid() }

// Tanh returns the hyperbolic tangent.
func Tanh() Activation { return nn.Tanh() }

// Linear returns the identity.
func Linear() Activation { return nn.Linear() }

// LeakyReLU returns x for x > 0 and alpha*x otherwise.
func LeakyReLU(alpha float64) Activation { return nn.LeakyReLU(alpha) }

// LookupActivation resolves a case-insensitive activation name such as "relu".
func LookupActivation(name string) (Activation, bool) { return nn.LookupActivation(name) }

// ActivationNames returns the registered activation names in sorted order.
func ActivationNames() []string { return nn.ActivationNames() }

// Dense layers

// Layer is a dense layer of scalar nodes.
type Layer = nn.Layer

// LayerKind identifies a dense layer variant.
type LayerKind = nn.LayerKind

// Dense layer variants.
const (
	InputKind     = nn.InputKind
	StandardKind  = nn.StandardKind
	OutputKind    = nn.OutputKind
	BatchNormKind = nn.BatchNormKind
)

// Node is one unit of a dense layer.
type Node = nn.Node

// Edge is a weighted connection between two nodes.
type Edge = nn.Edge

// InputLayer holds the network input values.
type InputLayer = nn.InputLayer

// StandardLayer is a hidden layer.
type StandardLayer = nn.StandardLayer

// OutputLayer is the final layer, optionally softmax-normalized.
type OutputLayer = nn.OutputLayer

// BatchNormLayer normalizes its net inputs with running statistics.
type BatchNormLayer = nn.BatchNormLayer

// NewInputLayer creates an input layer of the given size.
func NewInputLayer(size int, rng *rand.Rand) (*InputLayer, error) {
	return nn.NewInputLayer(size, rng)
}

// NewStandardLayer creates a hidden layer.
//
// Example:
//
//	hidden, err := nn.NewStandardLayer(64, nn.ReLU(), rng)
func NewStandardLayer(size int, act Activation, rng *rand.Rand) (*StandardLayer, error) {
	return nn.NewStandardLayer(size, act, rng)
}

// NewOutputLayer creates an output layer. With useSoftmax the outputs form a
// probability vector and training uses cross-entropy.
func NewOutputLayer(size int, act Activation, useSoftmax bool, rng *rand.Rand) (*OutputLayer, error) {
	return nn.NewOutputLayer(size, act, useSoftmax, rng)
}

// NewBatchNormLayer creates a dense batch-norm layer.
func NewBatchNormLayer(size int, act Activation, rng *rand.Rand) (*BatchNormLayer, error) {
	return nn.NewBatchNormLayer(size, act, rng)
}

// Dense networks

// Network is an ordered list of dense layers.
type Network = nn.Network

// FeedForwardNetwork is a Network that starts with an InputLayer and ends
// with an OutputLayer.
type FeedForwardNetwork = nn.FeedForwardNetwork

// Architecture describes a dense network by layer sizes and hidden activation.
type Architecture = nn.Architecture

// NewNetwork connects the layers in order with Xavier-initialized edges.
func NewNetwork(cfg Config, layers ...Layer) (*Network, error) {
	return nn.NewNetwork(cfg, layers...)
}

// NewFeedForwardNetwork builds a Network and enforces the input/output layer kinds.
func NewFeedForwardNetwork(cfg Config, layers ...Layer) (*FeedForwardNetwork, error) {
	return nn.NewFeedForwardNetwork(cfg, layers...)
}

// CreateDefault builds Input → Standard(ReLU)... → Output from layer sizes.
//
// Example:
//
//	net, err := nn.CreateDefault([]int{192, 128, 64, 1}, nn.Config{Seed: 1})
func CreateDefault(layerSizes []int, cfg Config) (*FeedForwardNetwork, error) {
	return nn.CreateDefault(layerSizes, cfg)
}

// FromArchitecture builds a feed-forward network from loader data.
func FromArchitecture(arch Architecture, cfg Config) (*FeedForwardNetwork, error) {
	return nn.FromArchitecture(arch, cfg)
}

// Tensor layers

// TensorLayer is the interface shared by all tensor-native layers.
type TensorLayer = nn.TensorLayer

// Parameter is a trainable tensor with its last gradient.
type Parameter = nn.Parameter

// ConvConfig describes a Conv2D layer.
type ConvConfig = nn.ConvConfig

// Conv2D is a 2D convolutional layer.
type Conv2D = nn.Conv2D

// PoolMode selects max or average pooling.
type PoolMode = nn.PoolMode

// Pooling reductions.
const (
	PoolMax     = nn.PoolMax
	PoolAverage = nn.PoolAverage
)

// Pooling is a 2D pooling layer.
type Pooling = nn.Pooling

// Flatten converts an N-D tensor into a 1-D tensor.
type Flatten = nn.Flatten

// FullyConnected is a dense layer over 1-D tensors.
type FullyConnected = nn.FullyConnected

// BatchNorm2D normalizes a tensor per channel.
type BatchNorm2D = nn.BatchNorm2D

// Dropout zeroes random elements during training.
type Dropout = nn.Dropout

// NewConv2D creates a convolutional layer with He-uniform kernels.
//
// Example:
//
//	conv, err := nn.NewConv2D(nn.ConvConfig{
//	    InputShape: tensor.Shape{1, 3, 8, 8},
//	    Filters:    16,
//	    KernelH:    3,
//	    KernelW:    3,
//	    Padding:    true,
//	}, rng)
func NewConv2D(cfg ConvConfig, rng *rand.Rand) (*Conv2D, error) {
	return nn.NewConv2D(cfg, rng)
}

// NewPooling creates a pooling layer. Zero strides default to the pool size.
func NewPooling(mode PoolMode, inputShape tensor.Shape, params tensor.PoolParams) (*Pooling, error) {
	return nn.NewPooling(mode, inputShape, params)
}

// NewFlatten creates a flatten layer for inputs of the given shape.
func NewFlatten(inputShape tensor.Shape) (*Flatten, error) {
	return nn.NewFlatten(inputShape)
}

// NewFullyConnected creates a fully connected layer with Xavier weights.
func NewFullyConnected(in, out int, act Activation, useSoftmax bool, rng *rand.Rand) (*FullyConnected, error) {
	return nn.NewFullyConnected(in, out, act, useSoftmax, rng)
}

// NewBatchNorm2D creates a per-channel batch-norm layer.
func NewBatchNorm2D(inputShape tensor.Shape, act Activation) (*BatchNorm2D, error) {
	return nn.NewBatchNorm2D(inputShape, act)
}

// NewDropout creates a dropout layer with drop probability rate in [0, 1).
func NewDropout(shape tensor.Shape, rate float64, rng *rand.Rand) (*Dropout, error) {
	return nn.NewDropout(shape, rate, rng)
}

// Tensor networks

// TensorNetwork chains tensor layers.
type TensorNetwork = nn.TensorNetwork

// NewTensorNetwork checks that consecutive layer shapes match and builds the network.
func NewTensorNetwork(cfg Config, layers ...TensorLayer) (*TensorNetwork, error) {
	return nn.NewTensorNetwork(cfg, layers...)
}

// Loss functions

// MSE returns the mean squared error.
func MSE(predictions, targets []float64) (float64, error) {
	return nn.MSE(predictions, targets)
}

// CrossEntropy returns the cross-entropy of a probability vector against targets.
func CrossEntropy(predictions, targets []float64) (float64, error) {
	return nn.CrossEntropy(predictions, targets)
}

// Softmax returns a numerically stable softmax of scores.
func Softmax(scores []float64) []float64 {
	return nn.Softmax(scores)
}

// Persistence

// Checkpoint is the training state stored by SaveCheckpoint.
type Checkpoint = nn.Checkpoint

// Model types recorded in saved files.
const (
	ModelTypeNetwork       = nn.ModelTypeNetwork
	ModelTypeTensorNetwork = nn.ModelTypeTensorNetwork
)

// Load rebuilds a dense network saved by Network.Save.
func Load(path string, cfg Config) (*Network, error) {
	return nn.Load(path, cfg)
}

// LoadCheckpoint is Load that also returns the stored training state.
func LoadCheckpoint(path string, cfg Config) (*Network, Checkpoint, error) {
	return nn.LoadCheckpoint(path, cfg)
}

// SaveTensorNetwork writes the parameters and buffers of net to path.
func SaveTensorNetwork(path string, net *TensorNetwork) error {
	return nn.SaveTensorNetwork(path, net)
}

// LoadTensorNetworkWeights loads a file written by SaveTensorNetwork into a
// network of the same structure.
func LoadTensorNetworkWeights(path string, net *TensorNetwork) error {
	return nn.LoadTensorNetworkWeights(path, net)
}

// Errors

// Errors returned by the networks and layers.
var (
	ErrNotInitialized      = nn.ErrNotInitialized
	ErrInvalidConfig       = nn.ErrInvalidConfig
	ErrUnknownActivation   = nn.ErrUnknownActivation
	ErrInvalidArchitecture = nn.ErrInvalidArchitecture
	ErrInputSize           = nn.ErrInputSize
	ErrMissingStateTensor  = nn.ErrMissingStateTensor
	ErrUnexpectedModelType = nn.ErrUnexpectedModelType
	ErrBatchLengthMismatch = nn.ErrBatchLengthMismatch
	ErrNoForwardPass       = nn.ErrNoForwardPass
)
