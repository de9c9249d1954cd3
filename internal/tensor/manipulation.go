package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Reshape returns a new tensor with the same data and a different shape.
//
// The element count must be preserved: product(newShape) == input.Size().
// Data is reinterpreted in row-major order, unchanged.
//
// Example:
//
//	flat, err := tensor.Reshape(board, 64)   // [1, 8, 8] -> [64]
//	back, err := tensor.Reshape(flat, 1, 8, 8)
func Reshape(input *Tensor, newShape ...int) (*Tensor, error) {
	s := Shape(newShape)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.NumElements() != input.Size() {
		return nil, fmt.Errorf("%w: cannot reshape %v (%d elements) into %v (%d elements)",
			ErrShapeMismatch, input.shape, input.Size(), s, s.NumElements())
	}
	return FromSlice(input.data, newShape...)
}

// Flatten returns a rank-1 copy of input.
func Flatten(input *Tensor) *Tensor {
	out, err := FromSlice(input.data, input.Size())
	if err != nil {
		// Size() of a valid tensor is always positive.
		panic(err)
	}
	return out
}

// Transpose permutes the dimensions of input.
//
// dims must be a permutation of [0, rank). The result has
// newShape[i] = shape[dims[i]], and every element is remapped so that
// out[i0, i1, ...] == input[j] where j[dims[k]] = i_k.
//
// Example:
//
//	// [N, C, H, W] -> [N, H, W, C]
//	nhwc, err := tensor.Transpose(x, 0, 2, 3, 1)
func Transpose(input *Tensor, dims ...int) (*Tensor, error) {
	rank := input.Rank()
	if len(dims) != rank {
		return nil, fmt.Errorf("%w: transpose expects %d dims, got %d", ErrShapeMismatch, rank, len(dims))
	}
	seen := make([]bool, rank)
	for _, d := range dims {
		if d < 0 || d >= rank || seen[d] {
			return nil, fmt.Errorf("%w: %v is not a permutation of [0, %d)", ErrShapeMismatch, dims, rank)
		}
		seen[d] = true
	}

	newShape := make([]int, rank)
	for i, d := range dims {
		newShape[i] = input.shape[d]
	}
	out, err := New(newShape...)
	if err != nil {
		return nil, err
	}

	// Walk the output in row-major order and gather from the input.
	outIdx := make([]int, rank)
	for flat := range out.data {
		src := 0
		for i, d := range dims {
			src += outIdx[i] * input.strides[d]
		}
		out.data[flat] = input.data[src]

		for i := rank - 1; i >= 0; i-- {
			outIdx[i]++
			if outIdx[i] < newShape[i] {
				break
			}
			outIdx[i] = 0
		}
	}
	return out, nil
}

// Add returns the elementwise sum a + b. Shapes must be equal.
func Add(a, b *Tensor) (*Tensor, error) {
	if !a.shape.Equal(b.shape) {
		return nil, fmt.Errorf("%w: add %v and %v", ErrShapeMismatch, a.shape, b.shape)
	}
	out := a.Clone()
	floats.AddTo(out.data, a.data, b.data)
	return out, nil
}
