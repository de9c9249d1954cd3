package nn

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

// Batch-norm defaults.
const (
	DefaultBatchNormEpsilon  = 1e-5
	DefaultBatchNormMomentum = 0.1
)

// BatchNormLayer is a dense layer that normalizes each unit's net input with
// running statistics before scale, shift and activation.
//
// Formula: value = act(gamma * (x - mean) / sqrt(var + eps) + beta)
//
// Where x is the node's net input (bias + weighted sum of the previous layer,
// or the external input), mean and var are the running statistics and gamma
// and beta are learned per unit.
//
// The running statistics are used in both training and inference. They are
// refreshed by UpdateStatistics, which Network.TrainBatch calls once per epoch.
type BatchNormLayer struct {
	denseLayer

	Gamma       []float64 // learnable scale, initialized to ones
	Beta        []float64 // learnable shift, initialized to zeros
	RunningMean []float64 // initialized to zeros
	RunningVar  []float64 // initialized to ones
	Epsilon     float64   // numerical stability constant
	Momentum    float64   // blend factor for UpdateStatistics

	normalized []float64 // x̂ from the last forward pass
	scaled     []float64 // gamma * x̂ + beta from the last forward pass
}

// NewBatchNormLayer creates a batch-norm layer with identity statistics.
func NewBatchNormLayer(size int, act Activation, rng *rand.Rand) (*BatchNormLayer, error) {
	base, err := newDenseLayer(BatchNormKind, size, act, rng)
	if err != nil {
		return nil, err
	}

	l := &BatchNormLayer{
		denseLayer:  base,
		Gamma:       make([]float64, size),
		Beta:        make([]float64, size),
		RunningMean: make([]float64, size),
		RunningVar:  make([]float64, size),
		Epsilon:     DefaultBatchNormEpsilon,
		Momentum:    DefaultBatchNormMomentum,
		normalized:  make([]float64, size),
		scaled:      make([]float64, size),
	}
	for i := 0; i < size; i++ {
		l.Gamma[i] = 1
		l.RunningVar[i] = 1
	}
	return l, nil
}

// Forward normalizes, scales, shifts and activates each unit.
//
// A non-nil input is used as x directly; otherwise x is pulled from the
// previous layer through the incoming edges.
func (l *BatchNormLayer) Forward(input []float64) error {
	if input != nil {
		if len(input) != len(l.nodes) {
			return fmt.Errorf("%w: batchnorm layer has %d nodes, got %d values", ErrInputSize, len(l.nodes), len(input))
		}
		for i := range l.nodes {
			l.nodes[i].NetInput = input[i]
		}
	} else {
		if l.prev == nil {
			return fmt.Errorf("%w: batchnorm layer has no incoming connections", ErrInvalidArchitecture)
		}
		for i := range l.nodes {
			l.nodes[i].CalculateNetInput(l.edges, l.prev.nodes)
		}
	}

	for i := range l.nodes {
		n := &l.nodes[i]
		xHat := (n.NetInput - l.RunningMean[i]) / math.Sqrt(l.RunningVar[i]+l.Epsilon)
		l.normalized[i] = xHat
		l.scaled[i] = l.Gamma[i]*xHat + l.Beta[i]
		n.Value = n.Activation.Apply(l.scaled[i])
	}
	l.forwarded = true
	return nil
}

// Backward propagates through activation, shift, scale and normalization.
//
// With dy = grad * act'(gamma*x̂ + beta):
//
//	dL/dgamma = dy * x̂
//	dL/dbeta  = dy
//	dL/dx     = dy * gamma / sqrt(var + eps)
//
// dL/dx becomes the node gradient that drives the incoming edge and bias
// updates. A nil grad pulls dL/d(value) from the next layer. When the layer
// has no previous layer, the returned vector is dL/dx for the external input.
func (l *BatchNormLayer) Backward(grad []float64, lr float64) ([]float64, error) {
	if err := l.checkBackward(grad); err != nil {
		return nil, err
	}
	if grad == nil {
		if l.next == nil {
			return nil, fmt.Errorf("%w: batchnorm layer has no outgoing connections", ErrInvalidArchitecture)
		}
		grad = make([]float64, len(l.nodes))
		for i := range l.nodes {
			for _, h := range l.nodes[i].Outgoing {
				e := &l.next.edges[h]
				grad[i] += e.Weight * l.next.nodes[e.Target].Gradient
			}
		}
	}

	dx := make([]float64, len(l.nodes))
	for i := range l.nodes {
		n := &l.nodes[i]
		dy := grad[i] * n.Activation.Derivative(l.scaled[i])
		dx[i] = dy * l.Gamma[i] / math.Sqrt(l.RunningVar[i]+l.Epsilon)
		n.Gradient = dx[i]

		l.Gamma[i] -= lr * dy * l.normalized[i]
		l.Beta[i] -= lr * dy
	}

	if l.prev == nil {
		l.forwarded = false
		return dx, nil
	}
	return l.descend(lr), nil
}

// PreNormalization returns a copy of the net inputs x from the last forward pass.
func (l *BatchNormLayer) PreNormalization() []float64 {
	out := make([]float64, len(l.nodes))
	for i := range l.nodes {
		out[i] = l.nodes[i].NetInput
	}
	return out
}

// UpdateStatistics blends the running statistics toward the population mean
// and variance of samples, one pre-normalization vector per sample:
//
//	running = (1 - momentum) * running + momentum * batch
//
// Fewer than two samples leave the statistics unchanged.
func (l *BatchNormLayer) UpdateStatistics(samples [][]float64) error {
	if len(samples) < 2 {
		return nil
	}
	for s, x := range samples {
		if len(x) != len(l.nodes) {
			return fmt.Errorf("%w: sample %d has %d values, batchnorm layer has %d nodes", ErrInputSize, s, len(x), len(l.nodes))
		}
	}

	column := make([]float64, len(samples))
	for i := range l.nodes {
		for s, x := range samples {
			column[s] = x[i]
		}
		mean, variance := stat.PopMeanVariance(column, nil)
		l.RunningMean[i] = (1-l.Momentum)*l.RunningMean[i] + l.Momentum*mean
		l.RunningVar[i] = (1-l.Momentum)*l.RunningVar[i] + l.Momentum*variance
	}
	return nil
}
