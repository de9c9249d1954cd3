package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/evalnet/internal/tensor"
)

// Dropout zeroes random elements during training.
//
// In training mode each element is kept with probability 1 - rate and
// scaled by 1 / (1 - rate) (inverted dropout), so inference is the
// identity. Layers start in inference mode; TensorNetwork switches them
// during Train and TrainBatch.
type Dropout struct {
	shape    tensor.Shape
	rate     float64
	rng      *rand.Rand
	training bool

	mask      []float64 // nil when the last forward pass was the identity
	forwarded bool
}

// NewDropout creates a dropout layer with the given drop probability in [0, 1).
func NewDropout(shape tensor.Shape, rate float64, rng *rand.Rand) (*Dropout, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("dropout: %w", err)
	}
	if rate < 0 || rate >= 1 {
		return nil, fmt.Errorf("%w: dropout rate must be in [0, 1), got %g", ErrInvalidConfig, rate)
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: dropout needs a random source", ErrInvalidConfig)
	}
	return &Dropout{shape: shape.Clone(), rate: rate, rng: rng}, nil
}

// SetTraining switches between training (masking) and inference (identity).
func (d *Dropout) SetTraining(training bool) { d.training = training }

// Training reports whether the layer is in training mode.
func (d *Dropout) Training() bool { return d.training }

// Rate returns the drop probability.
func (d *Dropout) Rate() float64 { return d.rate }

// Forward applies a fresh mask in training mode and copies input otherwise.
func (d *Dropout) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if !input.Shape().Equal(d.shape) {
		return nil, fmt.Errorf("%w: dropout expects %v, got %v", tensor.ErrShapeMismatch, d.shape, input.Shape())
	}
	d.forwarded = true
	out := input.Clone()
	if !d.training || d.rate == 0 {
		d.mask = nil
		return out, nil
	}

	keep := 1 / (1 - d.rate)
	d.mask = make([]float64, out.Size())
	data := out.Data()
	for i := range data {
		if d.rng.Float64() >= d.rate {
			d.mask[i] = keep
		}
		data[i] *= d.mask[i]
	}
	return out, nil
}

// Backward applies the last mask to grad.
func (d *Dropout) Backward(grad *tensor.Tensor, _ float64) (*tensor.Tensor, error) {
	if !d.forwarded {
		return nil, fmt.Errorf("%w: dropout", ErrNoForwardPass)
	}
	if !grad.Shape().Equal(d.shape) {
		return nil, fmt.Errorf("%w: dropout gradient %v, expected %v", tensor.ErrShapeMismatch, grad.Shape(), d.shape)
	}
	dx := grad.Clone()
	if d.mask != nil {
		data := dx.Data()
		for i := range data {
			data[i] *= d.mask[i]
		}
	}
	d.forwarded, d.mask = false, nil
	return dx, nil
}

// InputShape returns the layer shape.
func (d *Dropout) InputShape() tensor.Shape { return d.shape.Clone() }

// OutputShape returns the layer shape.
func (d *Dropout) OutputShape() tensor.Shape { return d.shape.Clone() }

// Parameters returns nil; dropout has no trainable parameters.
func (d *Dropout) Parameters() []*Parameter { return nil }

// String returns a string representation of the layer.
func (d *Dropout) String() string {
	return fmt.Sprintf("Dropout(p=%g)", d.rate)
}
