package nn

import (
	"fmt"

	"github.com/born-ml/evalnet/internal/tensor"
)

// Flatten converts an N-D tensor into a 1-D tensor and back.
//
// Forward flattens an input of the configured shape; Backward reshapes the
// incoming 1-D gradient back to that shape. Both reject any other shape.
type Flatten struct {
	inputShape tensor.Shape
	size       int
}

// NewFlatten creates a flatten layer for inputs of the given shape.
func NewFlatten(inputShape tensor.Shape) (*Flatten, error) {
	if err := inputShape.Validate(); err != nil {
		return nil, fmt.Errorf("flatten: %w", err)
	}
	return &Flatten{inputShape: inputShape.Clone(), size: inputShape.NumElements()}, nil
}

// Forward returns input as a 1-D tensor.
func (f *Flatten) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if !input.Shape().Equal(f.inputShape) {
		return nil, fmt.Errorf("%w: flatten expects %v, got %v", tensor.ErrShapeMismatch, f.inputShape, input.Shape())
	}
	return tensor.Flatten(input), nil
}

// Backward reshapes grad to the input shape.
func (f *Flatten) Backward(grad *tensor.Tensor, _ float64) (*tensor.Tensor, error) {
	if !grad.Shape().Equal(tensor.Shape{f.size}) {
		return nil, fmt.Errorf("%w: flatten gradient %v, expected [%d]", tensor.ErrShapeMismatch, grad.Shape(), f.size)
	}
	return tensor.Reshape(grad, f.inputShape...)
}

// InputShape returns the N-D input shape.
func (f *Flatten) InputShape() tensor.Shape { return f.inputShape.Clone() }

// OutputShape returns [product(input shape)].
func (f *Flatten) OutputShape() tensor.Shape { return tensor.Shape{f.size} }

// Parameters returns nil; flatten has no trainable parameters.
func (f *Flatten) Parameters() []*Parameter { return nil }

// String returns a string representation of the layer.
func (f *Flatten) String() string {
	return fmt.Sprintf("Flatten(%v -> [%d])", f.inputShape, f.size)
}
