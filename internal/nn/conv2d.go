package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/evalnet/internal/tensor"
)

// ConvConfig describes a Conv2D layer.
type ConvConfig struct {
	InputShape tensor.Shape // [batch, in_channels, height, width]
	Filters    int          // number of output channels
	KernelH    int          // kernel height
	KernelW    int          // kernel width
	StrideY    int          // vertical stride (default: 1)
	StrideX    int          // horizontal stride (default: 1)
	Padding    bool         // zero padding of kernel/2 on each side
	Activation Activation   // applied after the bias (zero value: ReLU)
}

// Conv2D is a 2D convolutional layer.
//
// Performs: output = act(Convolve(input, kernel) + bias)
//
// Input shape:  [batch, in_channels, height, width]
// Kernel shape: [filters, in_channels, kernel_h, kernel_w]
// Bias shape:   [filters]
// Output shape: [batch, filters, out_h, out_w]
//
// Where:
//
//	out_h = (height - kernel_h + 2*pad_h) / stride_y + 1
//	out_w = (width - kernel_w + 2*pad_w) / stride_x + 1
//
// Example:
//
//	// 3 input planes of an 8x8 board -> 16 feature maps, 3x3 kernel
//	conv, err := nn.NewConv2D(nn.ConvConfig{
//	    InputShape: tensor.Shape{1, 3, 8, 8},
//	    Filters:    16,
//	    KernelH:    3,
//	    KernelW:    3,
//	    Padding:    true,
//	}, rng)
type Conv2D struct {
	params      tensor.ConvParams
	inputShape  tensor.Shape
	outputShape tensor.Shape
	activation  Activation

	kernel *Parameter // [filters, in_channels, kernel_h, kernel_w]
	bias   *Parameter // [filters]

	input *tensor.Tensor // cached for Backward
	z     *tensor.Tensor // pre-activation output
}

// NewConv2D creates a convolutional layer with He-uniform kernels and zero biases.
//
// Initialization:
//   - Kernel: U(-sqrt(6/fan_in), sqrt(6/fan_in)), fan_in = in_channels * kernel_h * kernel_w
//   - Bias: Zeros
func NewConv2D(cfg ConvConfig, rng *rand.Rand) (*Conv2D, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: conv2d needs a random source", ErrInvalidConfig)
	}
	if err := cfg.InputShape.Validate(); err != nil {
		return nil, fmt.Errorf("conv2d: %w", err)
	}
	if len(cfg.InputShape) != 4 {
		return nil, fmt.Errorf("%w: conv2d input must be [N,C,H,W], got %v", ErrInvalidConfig, cfg.InputShape)
	}
	if cfg.Filters <= 0 || cfg.KernelH <= 0 || cfg.KernelW <= 0 {
		return nil, fmt.Errorf("%w: conv2d filters=%d kernel=%dx%d", ErrInvalidConfig, cfg.Filters, cfg.KernelH, cfg.KernelW)
	}
	if cfg.StrideY < 0 || cfg.StrideX < 0 {
		return nil, fmt.Errorf("%w: conv2d stride %dx%d", ErrInvalidConfig, cfg.StrideY, cfg.StrideX)
	}

	params := tensor.ConvParams{StrideY: cfg.StrideY, StrideX: cfg.StrideX, Padding: cfg.Padding}
	if params.StrideY == 0 {
		params.StrideY = 1
	}
	if params.StrideX == 0 {
		params.StrideX = 1
	}

	inChannels := cfg.InputShape[1]
	outH := tensor.ConvOutputSize(cfg.InputShape[2], cfg.KernelH, params.StrideY, cfg.Padding)
	outW := tensor.ConvOutputSize(cfg.InputShape[3], cfg.KernelW, params.StrideX, cfg.Padding)
	if outH <= 0 || outW <= 0 {
		return nil, fmt.Errorf("%w: conv2d kernel %dx%d does not fit input %v",
			ErrInvalidConfig, cfg.KernelH, cfg.KernelW, cfg.InputShape)
	}

	kernel := tensor.Zeros(cfg.Filters, inChannels, cfg.KernelH, cfg.KernelW)
	HeTensor(rng, kernel, inChannels*cfg.KernelH*cfg.KernelW)

	return &Conv2D{
		params:      params,
		inputShape:  cfg.InputShape.Clone(),
		outputShape: tensor.Shape{cfg.InputShape[0], cfg.Filters, outH, outW},
		activation:  cfg.Activation,
		kernel:      NewParameter("kernel", kernel),
		bias:        NewParameter("bias", tensor.Zeros(cfg.Filters)),
	}, nil
}

// Forward convolves, adds the per-filter bias and applies the activation.
func (c *Conv2D) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if !input.Shape().Equal(c.inputShape) {
		return nil, fmt.Errorf("%w: conv2d expects %v, got %v", tensor.ErrShapeMismatch, c.inputShape, input.Shape())
	}

	z, err := tensor.Convolve(input, c.kernel.Tensor(), c.params)
	if err != nil {
		return nil, err
	}

	plane := c.outputShape[2] * c.outputShape[3]
	filters := c.outputShape[1]
	bias, data := c.bias.Tensor().Data(), z.Data()
	for i := range data {
		data[i] += bias[(i/plane)%filters]
	}

	c.input = input.Clone()
	c.z = z
	return z.Map(c.activation.Apply), nil
}

// Backward computes kernel, bias and input gradients, then updates the
// kernel and bias. The input gradient uses the pre-update kernel.
func (c *Conv2D) Backward(grad *tensor.Tensor, lr float64) (*tensor.Tensor, error) {
	if c.input == nil {
		return nil, fmt.Errorf("%w: conv2d", ErrNoForwardPass)
	}
	if !grad.Shape().Equal(c.outputShape) {
		return nil, fmt.Errorf("%w: conv2d gradient %v, expected %v", tensor.ErrShapeMismatch, grad.Shape(), c.outputShape)
	}

	dz := grad.Clone()
	dzData, zData := dz.Data(), c.z.Data()
	for i := range dzData {
		dzData[i] *= c.activation.Derivative(zData[i])
	}

	dKernel, err := tensor.ConvolveKernelGrad(c.input, c.kernel.Tensor(), dz, c.params)
	if err != nil {
		return nil, err
	}
	dx, err := tensor.ConvolveInputGrad(c.input, c.kernel.Tensor(), dz, c.params)
	if err != nil {
		return nil, err
	}

	plane := c.outputShape[2] * c.outputShape[3]
	filters := c.outputShape[1]
	dBias := tensor.Zeros(filters)
	db := dBias.Data()
	for i, v := range dzData {
		db[(i/plane)%filters] += v
	}

	c.kernel.step(dKernel, lr)
	c.bias.step(dBias, lr)
	c.input, c.z = nil, nil
	return dx, nil
}

// InputShape returns [batch, in_channels, height, width].
func (c *Conv2D) InputShape() tensor.Shape { return c.inputShape.Clone() }

// OutputShape returns [batch, filters, out_h, out_w].
func (c *Conv2D) OutputShape() tensor.Shape { return c.outputShape.Clone() }

// Kernel returns the kernel parameter.
func (c *Conv2D) Kernel() *Parameter { return c.kernel }

// Bias returns the bias parameter.
func (c *Conv2D) Bias() *Parameter { return c.bias }

// Parameters returns [kernel, bias].
func (c *Conv2D) Parameters() []*Parameter {
	return []*Parameter{c.kernel, c.bias}
}

// String returns a string representation of the layer.
func (c *Conv2D) String() string {
	k := c.kernel.Tensor().Shape()
	return fmt.Sprintf("Conv2D(in_channels=%d, filters=%d, kernel_size=(%d, %d), stride=(%d, %d), padding=%v, activation=%s)",
		k[1], k[0], k[2], k[3], c.params.StrideY, c.params.StrideX, c.params.Padding, c.activation)
}
