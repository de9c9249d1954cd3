package nn

import (
	"fmt"

	"github.com/born-ml/evalnet/internal/tensor"
	"gonum.org/v1/gonum/floats"
)

// Parameter represents a trainable parameter of a tensor layer.
//
// Parameters are tensors updated by gradient descent during Backward.
// They typically represent kernels, weights, biases and batch-norm scales.
//
// Example:
//
//	weight := nn.NewParameter("weight", tensor.Zeros(10, 4))
//	w := weight.Tensor()
//	grad := weight.Grad() // last gradient, nil before the first Backward
type Parameter struct {
	name   string         // Parameter name (e.g., "weight", "bias")
	tensor *tensor.Tensor // The parameter tensor
	grad   *tensor.Tensor // Gradient from the last backward pass
}

// NewParameter creates a new trainable parameter.
//
// The parameter tensor should be initialized before creating the Parameter.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// Grad returns the gradient computed by the last backward pass.
//
// Returns nil if no backward pass has run yet.
func (p *Parameter) Grad() *tensor.Tensor {
	return p.grad
}

// ZeroGrad clears the stored gradient.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}

// step records grad and applies p -= lr * grad.
func (p *Parameter) step(grad *tensor.Tensor, lr float64) {
	p.grad = grad
	floats.AddScaled(p.tensor.Data(), -lr, grad.Data())
}

// load replaces the parameter values after checking the shape.
func (p *Parameter) load(src *tensor.Tensor) error {
	if !src.Shape().Equal(p.tensor.Shape()) {
		return fmt.Errorf("%w: parameter %q has shape %v, got %v",
			tensor.ErrShapeMismatch, p.name, p.tensor.Shape(), src.Shape())
	}
	return p.tensor.CopyFrom(src)
}
