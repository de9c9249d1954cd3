package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/evalnet/internal/tensor"
)

// BatchNorm2D normalizes a tensor per channel with running statistics.
//
// Formula: y = act(gamma[c] * (x - mean[c]) / sqrt(var[c] + eps) + beta[c])
//
// The channel axis is dimension 1 for inputs of rank 2 or more
// ([batch, channels, ...]) and dimension 0 for 1-D feature vectors.
//
// Parameters:
//   - gamma: [channels], learnable scale, initialized to ones
//   - beta: [channels], learnable shift, initialized to zeros
//
// Buffers (saved in state dicts, not trained):
//   - running_mean: [channels], initialized to zeros
//   - running_var: [channels], initialized to ones
//
// As with the dense BatchNormLayer, the running statistics serve both
// training and inference and are refreshed by UpdateStatistics.
type BatchNorm2D struct {
	inputShape tensor.Shape
	activation Activation
	channels   int
	inner      int // elements per channel slice

	gamma       *Parameter
	beta        *Parameter
	runningMean *tensor.Tensor
	runningVar  *tensor.Tensor

	Epsilon  float64 // numerical stability constant (default: 1e-5)
	Momentum float64 // blend factor for UpdateStatistics (default: 0.1)

	input      *tensor.Tensor // x from the last forward pass
	normalized *tensor.Tensor // x̂
	scaled     *tensor.Tensor // gamma * x̂ + beta
}

// NewBatchNorm2D creates a batch-norm layer for inputs of the given shape.
func NewBatchNorm2D(inputShape tensor.Shape, act Activation) (*BatchNorm2D, error) {
	if err := inputShape.Validate(); err != nil {
		return nil, fmt.Errorf("batchnorm2d: %w", err)
	}

	axis := 0
	if len(inputShape) >= 2 {
		axis = 1
	}
	inner := 1
	for _, d := range inputShape[axis+1:] {
		inner *= d
	}
	channels := inputShape[axis]

	gamma := tensor.Zeros(channels)
	gamma.Fill(1)
	runningVar := tensor.Zeros(channels)
	runningVar.Fill(1)

	return &BatchNorm2D{
		inputShape:  inputShape.Clone(),
		activation:  act,
		channels:    channels,
		inner:       inner,
		gamma:       NewParameter("gamma", gamma),
		beta:        NewParameter("beta", tensor.Zeros(channels)),
		runningMean: tensor.Zeros(channels),
		runningVar:  runningVar,
		Epsilon:     DefaultBatchNormEpsilon,
		Momentum:    DefaultBatchNormMomentum,
	}, nil
}

// channel returns the channel of flat offset i.
func (b *BatchNorm2D) channel(i int) int {
	return (i / b.inner) % b.channels
}

// Forward normalizes, scales, shifts and activates every element.
func (b *BatchNorm2D) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if !input.Shape().Equal(b.inputShape) {
		return nil, fmt.Errorf("%w: batchnorm2d expects %v, got %v", tensor.ErrShapeMismatch, b.inputShape, input.Shape())
	}

	mean, variance := b.runningMean.Data(), b.runningVar.Data()
	gamma, beta := b.gamma.Tensor().Data(), b.beta.Tensor().Data()

	x := input.Clone()
	normalized := tensor.Zeros(b.inputShape...)
	scaled := tensor.Zeros(b.inputShape...)
	xd, nd, sd := x.Data(), normalized.Data(), scaled.Data()
	for i, v := range xd {
		c := b.channel(i)
		nd[i] = (v - mean[c]) / math.Sqrt(variance[c]+b.Epsilon)
		sd[i] = gamma[c]*nd[i] + beta[c]
	}

	b.input, b.normalized, b.scaled = x, normalized, scaled
	return scaled.Map(b.activation.Apply), nil
}

// Backward propagates through activation, shift, scale and normalization.
//
// With dy = grad * act'(gamma*x̂ + beta):
//
//	dL/dgamma[c] = sum over c of dy * x̂
//	dL/dbeta[c]  = sum over c of dy
//	dL/dx        = dy * gamma[c] / sqrt(var[c] + eps)
func (b *BatchNorm2D) Backward(grad *tensor.Tensor, lr float64) (*tensor.Tensor, error) {
	if b.input == nil {
		return nil, fmt.Errorf("%w: batchnorm2d", ErrNoForwardPass)
	}
	if !grad.Shape().Equal(b.inputShape) {
		return nil, fmt.Errorf("%w: batchnorm2d gradient %v, expected %v", tensor.ErrShapeMismatch, grad.Shape(), b.inputShape)
	}

	variance, gamma := b.runningVar.Data(), b.gamma.Tensor().Data()
	dGamma, dBeta := tensor.Zeros(b.channels), tensor.Zeros(b.channels)
	dg, db := dGamma.Data(), dBeta.Data()

	dx := tensor.Zeros(b.inputShape...)
	dxd, nd, sd := dx.Data(), b.normalized.Data(), b.scaled.Data()
	for i, g := range grad.Data() {
		c := b.channel(i)
		dy := g * b.activation.Derivative(sd[i])
		dg[c] += dy * nd[i]
		db[c] += dy
		dxd[i] = dy * gamma[c] / math.Sqrt(variance[c]+b.Epsilon)
	}

	b.gamma.step(dGamma, lr)
	b.beta.step(dBeta, lr)
	b.input, b.normalized, b.scaled = nil, nil, nil
	return dx, nil
}

// PreNormalization returns a copy of the input from the last forward pass,
// or nil if there is none.
func (b *BatchNorm2D) PreNormalization() *tensor.Tensor {
	if b.input == nil {
		return nil
	}
	return b.input.Clone()
}

// UpdateStatistics blends the running statistics toward the population mean
// and variance of every channel over samples:
//
//	running = (1 - momentum) * running + momentum * batch
//
// Channels with fewer than two observed values leave the statistics unchanged.
func (b *BatchNorm2D) UpdateStatistics(samples []*tensor.Tensor) error {
	for s, x := range samples {
		if !x.Shape().Equal(b.inputShape) {
			return fmt.Errorf("%w: sample %d has shape %v, batchnorm2d expects %v",
				tensor.ErrShapeMismatch, s, x.Shape(), b.inputShape)
		}
	}
	if len(samples)*b.inputShape.NumElements()/b.channels < 2 {
		return nil
	}

	columns := make([][]float64, b.channels)
	for _, x := range samples {
		for i, v := range x.Data() {
			c := b.channel(i)
			columns[c] = append(columns[c], v)
		}
	}

	mean, variance := b.runningMean.Data(), b.runningVar.Data()
	for c, column := range columns {
		m, v := stat.PopMeanVariance(column, nil)
		mean[c] = (1-b.Momentum)*mean[c] + b.Momentum*m
		variance[c] = (1-b.Momentum)*variance[c] + b.Momentum*v
	}
	return nil
}

// Gamma returns the scale parameter.
func (b *BatchNorm2D) Gamma() *Parameter { return b.gamma }

// Beta returns the shift parameter.
func (b *BatchNorm2D) Beta() *Parameter { return b.beta }

// RunningMean returns the running mean buffer.
func (b *BatchNorm2D) RunningMean() *tensor.Tensor { return b.runningMean }

// RunningVar returns the running variance buffer.
func (b *BatchNorm2D) RunningVar() *tensor.Tensor { return b.runningVar }

// InputShape returns the normalized shape.
func (b *BatchNorm2D) InputShape() tensor.Shape { return b.inputShape.Clone() }

// OutputShape returns the input shape unchanged.
func (b *BatchNorm2D) OutputShape() tensor.Shape { return b.inputShape.Clone() }

// Parameters returns [gamma, beta].
func (b *BatchNorm2D) Parameters() []*Parameter {
	return []*Parameter{b.gamma, b.beta}
}

// String returns a string representation of the layer.
func (b *BatchNorm2D) String() string {
	return fmt.Sprintf("BatchNorm2D(channels=%d, eps=%g, momentum=%g, activation=%s)",
		b.channels, b.Epsilon, b.Momentum, b.activation)
}
