package nn

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/evalnet/internal/tensor"
)

// FullyConnected implements a fully connected layer over 1-D tensors.
//
// Performs the transformation: y = act(W @ x + b)
// where:
//   - x is the input tensor with shape [in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [out_features]
//
// With softmax enabled the activated outputs are normalized into a
// probability vector, and Backward takes the incoming gradient as the
// cross-entropy delta (output - target) without an activation factor.
//
// Weights are initialized using Xavier/Glorot initialization.
// Biases are initialized to zeros.
//
// Example:
//
//	fc, err := nn.NewFullyConnected(256, 1, nn.Tanh(), false, rng)
//	score, err := fc.Forward(features) // shape: [1]
type FullyConnected struct {
	inFeatures  int
	outFeatures int
	activation  Activation
	useSoftmax  bool
	weight      *Parameter // [out_features, in_features]
	bias        *Parameter // [out_features]

	input *tensor.Tensor // cached for Backward
	z     *tensor.Tensor // pre-activation output
}

// NewFullyConnected creates a new FullyConnected layer.
//
// Parameters:
//   - inFeatures: Number of input features
//   - outFeatures: Number of output features
//   - act: Activation applied to W @ x + b
//   - useSoftmax: Normalize the activated outputs with softmax
//   - rng: Random source for the Xavier weights
func NewFullyConnected(inFeatures, outFeatures int, act Activation, useSoftmax bool, rng *rand.Rand) (*FullyConnected, error) {
	if inFeatures <= 0 || outFeatures <= 0 {
		return nil, fmt.Errorf("%w: fully connected %d -> %d", ErrInvalidConfig, inFeatures, outFeatures)
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: fully connected layer needs a random source", ErrInvalidConfig)
	}

	weight := tensor.Zeros(outFeatures, inFeatures)
	XavierTensor(rng, weight, inFeatures, outFeatures)

	return &FullyConnected{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		activation:  act,
		useSoftmax:  useSoftmax,
		weight:      NewParameter("weight", weight),
		bias:        NewParameter("bias", tensor.Zeros(outFeatures)),
	}, nil
}

// Forward computes act(W @ x + b), followed by softmax if enabled.
func (l *FullyConnected) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if !input.Shape().Equal(tensor.Shape{l.inFeatures}) {
		return nil, fmt.Errorf("%w: fully connected expects [%d], got %v", tensor.ErrShapeMismatch, l.inFeatures, input.Shape())
	}

	z := tensor.Zeros(l.outFeatures)
	zVec := mat.NewVecDense(l.outFeatures, z.Data())
	zVec.MulVec(l.weights(), mat.NewVecDense(l.inFeatures, input.Data()))
	floats.Add(z.Data(), l.bias.Tensor().Data())

	l.input = input.Clone()
	l.z = z

	out := z.Map(l.activation.Apply)
	if l.useSoftmax {
		copy(out.Data(), Softmax(out.Data()))
	}
	return out, nil
}

// Backward computes dL/dx = W^T @ dz with the pre-update weights, then
// applies W -= lr * dz x^T and b -= lr * dz.
func (l *FullyConnected) Backward(grad *tensor.Tensor, lr float64) (*tensor.Tensor, error) {
	if l.input == nil {
		return nil, fmt.Errorf("%w: fully connected", ErrNoForwardPass)
	}
	if !grad.Shape().Equal(tensor.Shape{l.outFeatures}) {
		return nil, fmt.Errorf("%w: fully connected gradient %v, expected [%d]", tensor.ErrShapeMismatch, grad.Shape(), l.outFeatures)
	}

	dz := grad.Clone()
	if !l.useSoftmax {
		dzData, zData := dz.Data(), l.z.Data()
		for i := range dzData {
			dzData[i] *= l.activation.Derivative(zData[i])
		}
	}
	dzVec := mat.NewVecDense(l.outFeatures, dz.Data())
	xVec := mat.NewVecDense(l.inFeatures, l.input.Data())
	w := l.weights()

	dx := tensor.Zeros(l.inFeatures)
	mat.NewVecDense(l.inFeatures, dx.Data()).MulVec(w.T(), dzVec)

	dW := tensor.Zeros(l.outFeatures, l.inFeatures)
	mat.NewDense(l.outFeatures, l.inFeatures, dW.Data()).Outer(1, dzVec, xVec)
	l.weight.grad = dW
	w.RankOne(w, -lr, dzVec, xVec)

	l.bias.step(dz, lr)
	l.input, l.z = nil, nil
	return dx, nil
}

// weights views the weight tensor as a matrix sharing its storage.
func (l *FullyConnected) weights() *mat.Dense {
	return mat.NewDense(l.outFeatures, l.inFeatures, l.weight.Tensor().Data())
}

// InputShape returns [in_features].
func (l *FullyConnected) InputShape() tensor.Shape { return tensor.Shape{l.inFeatures} }

// OutputShape returns [out_features].
func (l *FullyConnected) OutputShape() tensor.Shape { return tensor.Shape{l.outFeatures} }

// Weight returns the weight parameter.
func (l *FullyConnected) Weight() *Parameter { return l.weight }

// Bias returns the bias parameter.
func (l *FullyConnected) Bias() *Parameter { return l.bias }

// UseSoftmax reports whether outputs are softmax-normalized.
func (l *FullyConnected) UseSoftmax() bool { return l.useSoftmax }

// Parameters returns [weight, bias].
func (l *FullyConnected) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// String returns a string representation of the layer.
func (l *FullyConnected) String() string {
	return fmt.Sprintf("FullyConnected(in_features=%d, out_features=%d, activation=%s, softmax=%v)",
		l.inFeatures, l.outFeatures, l.activation, l.useSoftmax)
}
