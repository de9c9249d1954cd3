package nn

import (
	"fmt"

	"github.com/born-ml/evalnet/internal/tensor"
)

// PoolMode selects the pooling reduction.
type PoolMode int

// Pooling reductions.
const (
	PoolMax PoolMode = iota
	PoolAverage
)

// String returns the mode name.
func (m PoolMode) String() string {
	if m == PoolAverage {
		return "avg"
	}
	return "max"
}

// Pooling is a 2D max or average pooling layer.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// Where:
//
//	out_height = (height - pool_h) / stride_y + 1
//	out_width  = (width - pool_w) / stride_x + 1
//
// Max pooling routes each gradient to the element that won its window;
// average pooling spreads it evenly over the window.
//
// Example:
//
//	pool, err := nn.NewPooling(nn.PoolMax, tensor.Shape{1, 16, 8, 8},
//	    tensor.PoolParams{PoolH: 2, PoolW: 2})
//	// output: [1, 16, 4, 4]
type Pooling struct {
	mode        PoolMode
	params      tensor.PoolParams
	inputShape  tensor.Shape
	outputShape tensor.Shape

	input  *tensor.Tensor // cached for average pooling
	argmax []int          // cached for max pooling
}

// NewPooling creates a pooling layer. Zero strides default to the pool size.
func NewPooling(mode PoolMode, inputShape tensor.Shape, params tensor.PoolParams) (*Pooling, error) {
	if mode != PoolMax && mode != PoolAverage {
		return nil, fmt.Errorf("%w: unknown pool mode %d", ErrInvalidConfig, int(mode))
	}
	if err := inputShape.Validate(); err != nil {
		return nil, fmt.Errorf("pooling: %w", err)
	}
	if len(inputShape) != 4 {
		return nil, fmt.Errorf("%w: pooling input must be [N,C,H,W], got %v", ErrInvalidConfig, inputShape)
	}
	if params.StrideY == 0 {
		params.StrideY = params.PoolH
	}
	if params.StrideX == 0 {
		params.StrideX = params.PoolW
	}
	if params.PoolH <= 0 || params.PoolW <= 0 || params.StrideY <= 0 || params.StrideX <= 0 {
		return nil, fmt.Errorf("%w: pool %dx%d stride %dx%d",
			ErrInvalidConfig, params.PoolH, params.PoolW, params.StrideY, params.StrideX)
	}
	if params.PoolH > inputShape[2] || params.PoolW > inputShape[3] {
		return nil, fmt.Errorf("%w: pool %dx%d larger than input %v", ErrInvalidConfig, params.PoolH, params.PoolW, inputShape)
	}

	return &Pooling{
		mode:       mode,
		params:     params,
		inputShape: inputShape.Clone(),
		outputShape: tensor.Shape{
			inputShape[0],
			inputShape[1],
			tensor.PoolOutputSize(inputShape[2], params.PoolH, params.StrideY),
			tensor.PoolOutputSize(inputShape[3], params.PoolW, params.StrideX),
		},
	}, nil
}

// Forward pools every window.
func (p *Pooling) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if !input.Shape().Equal(p.inputShape) {
		return nil, fmt.Errorf("%w: pooling expects %v, got %v", tensor.ErrShapeMismatch, p.inputShape, input.Shape())
	}

	if p.mode == PoolMax {
		out, argmax, err := tensor.MaxPoolWithIndices(input, p.params)
		if err != nil {
			return nil, err
		}
		p.argmax = argmax
		return out, nil
	}

	out, err := tensor.AvgPool(input, p.params)
	if err != nil {
		return nil, err
	}
	p.input = input.Clone()
	return out, nil
}

// Backward routes grad back to the input positions; pooling has no parameters.
func (p *Pooling) Backward(grad *tensor.Tensor, _ float64) (*tensor.Tensor, error) {
	if p.argmax == nil && p.input == nil {
		return nil, fmt.Errorf("%w: pooling", ErrNoForwardPass)
	}
	if !grad.Shape().Equal(p.outputShape) {
		return nil, fmt.Errorf("%w: pooling gradient %v, expected %v", tensor.ErrShapeMismatch, grad.Shape(), p.outputShape)
	}

	var (
		dx  *tensor.Tensor
		err error
	)
	if p.mode == PoolMax {
		dx, err = tensor.MaxPoolGrad(p.inputShape, p.argmax, grad)
	} else {
		dx, err = tensor.AvgPoolGrad(p.input, grad, p.params)
	}
	if err != nil {
		return nil, err
	}
	p.argmax, p.input = nil, nil
	return dx, nil
}

// Mode returns the pooling reduction.
func (p *Pooling) Mode() PoolMode { return p.mode }

// InputShape returns [batch, channels, height, width].
func (p *Pooling) InputShape() tensor.Shape { return p.inputShape.Clone() }

// OutputShape returns [batch, channels, out_height, out_width].
func (p *Pooling) OutputShape() tensor.Shape { return p.outputShape.Clone() }

// Parameters returns nil; pooling has no trainable parameters.
func (p *Pooling) Parameters() []*Parameter { return nil }

// String returns a string representation of the layer.
func (p *Pooling) String() string {
	return fmt.Sprintf("Pooling(mode=%s, pool=(%d, %d), stride=(%d, %d))",
		p.mode, p.params.PoolH, p.params.PoolW, p.params.StrideY, p.params.StrideX)
}
