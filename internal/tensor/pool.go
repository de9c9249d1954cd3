package tensor

import "fmt"

// PoolParams describes a 2D pooling window.
type PoolParams struct {
	PoolH   int // Window height
	PoolW   int // Window width
	StrideY int // Vertical stride (default: PoolH)
	StrideX int // Horizontal stride (default: PoolW)
}

type poolGeometry struct {
	n, c, h, w       int
	poolH, poolW     int
	strideY, strideX int
	hOut, wOut       int
}

// PoolOutputSize returns (dim - poolDim)/stride + 1.
func PoolOutputSize(dim, poolDim, stride int) int {
	return (dim-poolDim)/stride + 1
}

func resolvePool(input *Tensor, p PoolParams) (poolGeometry, error) {
	if input.Rank() != 4 {
		return poolGeometry{}, fmt.Errorf("%w: pool input must be 4D [N,C,H,W], got %v", ErrShapeMismatch, input.shape)
	}
	if p.StrideY == 0 {
		p.StrideY = p.PoolH
	}
	if p.StrideX == 0 {
		p.StrideX = p.PoolW
	}
	if p.PoolH <= 0 || p.PoolW <= 0 || p.StrideY <= 0 || p.StrideX <= 0 {
		return poolGeometry{}, fmt.Errorf("%w: invalid pool %dx%d stride %dx%d",
			ErrShapeMismatch, p.PoolH, p.PoolW, p.StrideY, p.StrideX)
	}

	g := poolGeometry{
		n: input.shape[0], c: input.shape[1], h: input.shape[2], w: input.shape[3],
		poolH: p.PoolH, poolW: p.PoolW, strideY: p.StrideY, strideX: p.StrideX,
	}
	if g.poolH > g.h || g.poolW > g.w {
		return poolGeometry{}, fmt.Errorf("%w: pool %dx%d too large for input %dx%d",
			ErrShapeMismatch, g.poolH, g.poolW, g.h, g.w)
	}
	g.hOut = PoolOutputSize(g.h, g.poolH, g.strideY)
	g.wOut = PoolOutputSize(g.w, g.poolW, g.strideX)
	return g, nil
}

// window visits the in-bounds input offsets of one pooling window.
func (g poolGeometry) window(b, ch, oh, ow int, visit func(offset int)) {
	base := (b*g.c + ch) * g.h * g.w
	for ph := 0; ph < g.poolH; ph++ {
		ih := oh*g.strideY + ph
		if ih >= g.h {
			break
		}
		for pw := 0; pw < g.poolW; pw++ {
			iw := ow*g.strideX + pw
			if iw >= g.w {
				break
			}
			visit(base + ih*g.w + iw)
		}
	}
}

// MaxPool takes the maximum of each pooling window.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// Where:
//
//	out_height = (height - poolH) / strideY + 1
//	out_width  = (width - poolW) / strideX + 1
//
// Example (2x2 pool, stride=2):
//
//	Input: [[1,2,3,4],    Output: [[6,8],
//	        [5,6,7,8],             [14,16]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
func MaxPool(input *Tensor, p PoolParams) (*Tensor, error) {
	out, _, err := MaxPoolWithIndices(input, p)
	return out, err
}

// MaxPoolWithIndices is MaxPool that also returns, for every output element,
// the flat input offset that produced the maximum. Used for backpropagation.
func MaxPoolWithIndices(input *Tensor, p PoolParams) (*Tensor, []int, error) {
	g, err := resolvePool(input, p)
	if err != nil {
		return nil, nil, err
	}
	out, err := New(g.n, g.c, g.hOut, g.wOut)
	if err != nil {
		return nil, nil, err
	}
	argmax := make([]int, out.Size())

	i := 0
	for b := 0; b < g.n; b++ {
		for ch := 0; ch < g.c; ch++ {
			for oh := 0; oh < g.hOut; oh++ {
				for ow := 0; ow < g.wOut; ow++ {
					best := -1
					g.window(b, ch, oh, ow, func(offset int) {
						if best < 0 || input.data[offset] > input.data[best] {
							best = offset
						}
					})
					out.data[i] = input.data[best]
					argmax[i] = best
					i++
				}
			}
		}
	}
	return out, argmax, nil
}

// AvgPool takes the arithmetic mean of the in-bounds elements of each window.
// Output dimensions follow MaxPool.
func AvgPool(input *Tensor, p PoolParams) (*Tensor, error) {
	g, err := resolvePool(input, p)
	if err != nil {
		return nil, err
	}
	out, err := New(g.n, g.c, g.hOut, g.wOut)
	if err != nil {
		return nil, err
	}

	i := 0
	for b := 0; b < g.n; b++ {
		for ch := 0; ch < g.c; ch++ {
			for oh := 0; oh < g.hOut; oh++ {
				for ow := 0; ow < g.wOut; ow++ {
					sum, count := 0.0, 0
					g.window(b, ch, oh, ow, func(offset int) {
						sum += input.data[offset]
						count++
					})
					out.data[i] = sum / float64(count)
					i++
				}
			}
		}
	}
	return out, nil
}

// MaxPoolGrad routes each output gradient to the input element that won its window.
func MaxPoolGrad(inputShape Shape, argmax []int, grad *Tensor) (*Tensor, error) {
	if len(argmax) != grad.Size() {
		return nil, fmt.Errorf("%w: %d pool indices for gradient %v", ErrShapeMismatch, len(argmax), grad.shape)
	}
	dx, err := New(inputShape...)
	if err != nil {
		return nil, err
	}
	for i, offset := range argmax {
		if offset < 0 || offset >= dx.Size() {
			return nil, fmt.Errorf("%w: pool index %d for input %v", ErrIndexOutOfRange, offset, inputShape)
		}
		dx.data[offset] += grad.data[i]
	}
	return dx, nil
}

// AvgPoolGrad spreads each output gradient evenly over its window.
func AvgPoolGrad(input, grad *Tensor, p PoolParams) (*Tensor, error) {
	g, err := resolvePool(input, p)
	if err != nil {
		return nil, err
	}
	if !grad.shape.Equal(Shape{g.n, g.c, g.hOut, g.wOut}) {
		return nil, fmt.Errorf("%w: pool grad %v, expected %v", ErrShapeMismatch, grad.shape, Shape{g.n, g.c, g.hOut, g.wOut})
	}

	dx := Zeros(input.shape...)
	i := 0
	for b := 0; b < g.n; b++ {
		for ch := 0; ch < g.c; ch++ {
			for oh := 0; oh < g.hOut; oh++ {
				for ow := 0; ow < g.wOut; ow++ {
					count := 0
					g.window(b, ch, oh, ow, func(int) { count++ })
					share := grad.data[i] / float64(count)
					g.window(b, ch, oh, ow, func(offset int) { dx.data[offset] += share })
					i++
				}
			}
		}
	}
	return dx, nil
}
