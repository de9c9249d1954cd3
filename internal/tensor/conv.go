package tensor

import (
	"fmt"
	"sync/atomic"

	"github.com/born-ml/evalnet/internal/parallel"
)

// maxWorkers caps the goroutines a convolution kernel may use; 0 means one
// per CPU.
var maxWorkers atomic.Int32

// SetMaxWorkers caps the goroutines used by the convolution kernels. With
// n == 1 every kernel runs on the calling goroutine; n <= 0 restores one
// worker per CPU. Results are identical for every setting.
func SetMaxWorkers(n int) {
	maxWorkers.Store(int32(max(n, 0))) //nolint:gosec // G115: worker counts are small
}

// kernelConfig splits convolution work across workers. Every work item
// writes a disjoint slice of the result, so results do not depend on
// scheduling.
func kernelConfig() parallel.Config {
	cfg := parallel.DefaultConfig()
	if n := int(maxWorkers.Load()); n > 0 {
		cfg.NumWorkers = n
		cfg.Enabled = n > 1
	}
	return cfg
}

// ConvParams describes the geometry of a 2D convolution.
type ConvParams struct {
	StrideY int  // Vertical stride (default: 1)
	StrideX int  // Horizontal stride (default: 1)
	Padding bool // Same-style zero padding of kernelDim/2 on each side
}

func (p ConvParams) withDefaults() ConvParams {
	if p.StrideY == 0 {
		p.StrideY = 1
	}
	if p.StrideX == 0 {
		p.StrideX = 1
	}
	return p
}

// convGeometry holds the resolved dimensions shared by forward and backward kernels.
type convGeometry struct {
	n, cIn, h, w     int
	cOut, kH, kW     int
	hOut, wOut       int
	strideY, strideX int
	padY, padX       int
}

// ConvOutputSize returns the spatial output size of a convolution along one
// dimension: (dim - kernelDim + 2*pad)/stride + 1, pad = kernelDim/2 when padding.
func ConvOutputSize(dim, kernelDim, stride int, padding bool) int {
	pad := 0
	if padding {
		pad = kernelDim / 2
	}
	return (dim-kernelDim+2*pad)/stride + 1
}

func resolveConv(input, kernel *Tensor, p ConvParams) (convGeometry, error) {
	p = p.withDefaults()
	if input.Rank() != 4 {
		return convGeometry{}, fmt.Errorf("%w: conv input must be 4D [N,C,H,W], got %v", ErrShapeMismatch, input.shape)
	}
	if kernel.Rank() != 4 {
		return convGeometry{}, fmt.Errorf("%w: conv kernel must be 4D [O,C,Kh,Kw], got %v", ErrShapeMismatch, kernel.shape)
	}
	if p.StrideY < 0 || p.StrideX < 0 {
		return convGeometry{}, fmt.Errorf("%w: invalid stride %dx%d", ErrShapeMismatch, p.StrideY, p.StrideX)
	}

	g := convGeometry{
		n: input.shape[0], cIn: input.shape[1], h: input.shape[2], w: input.shape[3],
		cOut: kernel.shape[0], kH: kernel.shape[2], kW: kernel.shape[3],
		strideY: p.StrideY, strideX: p.StrideX,
	}
	if kernel.shape[1] != g.cIn {
		return convGeometry{}, fmt.Errorf("%w: input channels %d != kernel channels %d", ErrShapeMismatch, g.cIn, kernel.shape[1])
	}
	if p.Padding {
		g.padY, g.padX = g.kH/2, g.kW/2
	}
	g.hOut = ConvOutputSize(g.h, g.kH, g.strideY, p.Padding)
	g.wOut = ConvOutputSize(g.w, g.kW, g.strideX, p.Padding)
	if g.hOut <= 0 || g.wOut <= 0 {
		return convGeometry{}, fmt.Errorf("%w: kernel %dx%d too large for input %dx%d",
			ErrShapeMismatch, g.kH, g.kW, g.h, g.w)
	}
	return g, nil
}

// Convolve performs a direct 2D convolution (cross-correlation).
//
// Input shape:  [batch, in_channels, height, width]
// Kernel shape: [out_channels, in_channels, kernel_h, kernel_w]
// Output shape: [batch, out_channels, out_h, out_w]
//
// out[b,o,oh,ow] = sum over (c,kh,kw) of
// input[b, c, oh*strideY+kh-padY, ow*strideX+kw-padX] * kernel[o,c,kh,kw],
// where source positions outside the input contribute zero.
func Convolve(input, kernel *Tensor, p ConvParams) (*Tensor, error) {
	g, err := resolveConv(input, kernel, p)
	if err != nil {
		return nil, err
	}

	out, err := New(g.n, g.cOut, g.hOut, g.wOut)
	if err != nil {
		return nil, err
	}

	in, k, o := input.data, kernel.data, out.data
	cost := g.hOut * g.wOut * g.cIn * g.kH * g.kW
	parallel.ForBatch(g.n, g.cOut, cost, func(b, oc int) {
		for oh := 0; oh < g.hOut; oh++ {
			for ow := 0; ow < g.wOut; ow++ {
				sum := 0.0
				for c := 0; c < g.cIn; c++ {
					for kh := 0; kh < g.kH; kh++ {
						ih := oh*g.strideY + kh - g.padY
						if ih < 0 || ih >= g.h {
							continue
						}
						for kw := 0; kw < g.kW; kw++ {
							iw := ow*g.strideX + kw - g.padX
							if iw < 0 || iw >= g.w {
								continue
							}
							sum += in[((b*g.cIn+c)*g.h+ih)*g.w+iw] * k[((oc*g.cIn+c)*g.kH+kh)*g.kW+kw]
						}
					}
				}
				o[((b*g.cOut+oc)*g.hOut+oh)*g.wOut+ow] = sum
			}
		}
	}, kernelConfig())
	return out, nil
}

// ConvolveInputGrad computes the gradient of a convolution w.r.t. its input
// (transposed convolution). grad has the forward output's shape.
func ConvolveInputGrad(input, kernel, grad *Tensor, p ConvParams) (*Tensor, error) {
	g, err := resolveConv(input, kernel, p)
	if err != nil {
		return nil, err
	}
	if !grad.shape.Equal(Shape{g.n, g.cOut, g.hOut, g.wOut}) {
		return nil, fmt.Errorf("%w: conv grad %v, expected %v", ErrShapeMismatch, grad.shape, Shape{g.n, g.cOut, g.hOut, g.wOut})
	}

	dx := Zeros(input.shape...)
	k, gr, d := kernel.data, grad.data, dx.data
	cost := g.cOut * g.hOut * g.wOut * g.kH * g.kW
	// Each (batch, input channel) slice of dx is owned by one item.
	parallel.ForBatch(g.n, g.cIn, cost, func(b, c int) {
		for oc := 0; oc < g.cOut; oc++ {
			for oh := 0; oh < g.hOut; oh++ {
				for ow := 0; ow < g.wOut; ow++ {
					gv := gr[((b*g.cOut+oc)*g.hOut+oh)*g.wOut+ow]
					if gv == 0 {
						continue
					}
					for kh := 0; kh < g.kH; kh++ {
						ih := oh*g.strideY + kh - g.padY
						if ih < 0 || ih >= g.h {
							continue
						}
						for kw := 0; kw < g.kW; kw++ {
							iw := ow*g.strideX + kw - g.padX
							if iw < 0 || iw >= g.w {
								continue
							}
							d[((b*g.cIn+c)*g.h+ih)*g.w+iw] += gv * k[((oc*g.cIn+c)*g.kH+kh)*g.kW+kw]
						}
					}
				}
			}
		}
	}, kernelConfig())
	return dx, nil
}

// ConvolveKernelGrad computes the gradient of a convolution w.r.t. its kernel.
// grad has the forward output's shape; the result has the kernel's shape.
func ConvolveKernelGrad(input, kernel, grad *Tensor, p ConvParams) (*Tensor, error) {
	g, err := resolveConv(input, kernel, p)
	if err != nil {
		return nil, err
	}
	if !grad.shape.Equal(Shape{g.n, g.cOut, g.hOut, g.wOut}) {
		return nil, fmt.Errorf("%w: conv grad %v, expected %v", ErrShapeMismatch, grad.shape, Shape{g.n, g.cOut, g.hOut, g.wOut})
	}

	dk := Zeros(kernel.shape...)
	in, gr, d := input.data, grad.data, dk.data
	cost := g.kH * g.kW * g.n * g.hOut * g.wOut
	parallel.ForBatch(g.cOut, g.cIn, cost, func(oc, c int) {
		for kh := 0; kh < g.kH; kh++ {
			for kw := 0; kw < g.kW; kw++ {
				sum := 0.0
				for b := 0; b < g.n; b++ {
					for oh := 0; oh < g.hOut; oh++ {
						ih := oh*g.strideY + kh - g.padY
						if ih < 0 || ih >= g.h {
							continue
						}
						for ow := 0; ow < g.wOut; ow++ {
							iw := ow*g.strideX + kw - g.padX
							if iw < 0 || iw >= g.w {
								continue
							}
							sum += in[((b*g.cIn+c)*g.h+ih)*g.w+iw] * gr[((b*g.cOut+oc)*g.hOut+oh)*g.wOut+ow]
						}
					}
				}
				d[((oc*g.cIn+c)*g.kH+kh)*g.kW+kw] = sum
			}
		}
	}, kernelConfig())
	return dk, nil
}
