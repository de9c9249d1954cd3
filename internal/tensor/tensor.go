// Package tensor provides the multidimensional array used by the evalnet engine.
//
// A Tensor owns a flat float64 buffer, an immutable shape, and the row-major
// strides derived from it (rightmost dimension fastest). Elements can be
// mutated in place with Set and Fill; Map, Reshape and Transpose return new
// tensors and never touch the receiver.
package tensor

import (
	"fmt"
	"math/rand"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Tensor is a dense float64 array with an explicit shape and strides.
type Tensor struct {
	shape   Shape
	strides []int
	data    []float64
}

// New creates a zero-filled tensor with the given shape.
//
// Returns ErrInvalidShape if the shape is empty or has a non-positive dimension.
//
// Example:
//
//	t, err := tensor.New(1, 3, 8, 8) // [batch, channels, height, width]
func New(shape ...int) (*Tensor, error) {
	s := Shape(shape)
	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &Tensor{
		shape:   s.Clone(),
		strides: s.ComputeStrides(),
		data:    make([]float64, s.NumElements()),
	}, nil
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice(data []float64, shape ...int) (*Tensor, error) {
	s := Shape(shape)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.NumElements() != len(data) {
		return nil, fmt.Errorf("%w: shape %v requires %d elements, but got %d",
			ErrInvalidShape, s, s.NumElements(), len(data))
	}

	t := &Tensor{
		shape:   s.Clone(),
		strides: s.ComputeStrides(),
		data:    make([]float64, len(data)),
	}
	copy(t.data, data)
	return t, nil
}

// Zeros creates a zero-filled tensor and panics on an invalid shape.
// Intended for shapes already validated by the caller.
func Zeros(shape ...int) *Tensor {
	t, err := New(shape...)
	if err != nil {
		panic(err)
	}
	return t
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape.Clone()
}

// Strides returns a copy of the tensor's row-major strides.
func (t *Tensor) Strides() []int {
	return append([]int(nil), t.strides...)
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Size returns the total number of elements.
func (t *Tensor) Size() int {
	return len(t.data)
}

// Data returns the underlying buffer.
//
// WARNING: the slice aliases the tensor's memory; writes through it mutate the tensor.
func (t *Tensor) Data() []float64 {
	return t.data
}

// Offset converts an index vector into a flat buffer offset.
func (t *Tensor) Offset(indices ...int) (int, error) {
	if len(indices) != len(t.shape) {
		return 0, fmt.Errorf("%w: expected %d indices, got %d", ErrShapeMismatch, len(t.shape), len(indices))
	}

	offset := 0
	for i, idx := range indices {
		if idx < 0 || idx >= t.shape[i] {
			return 0, fmt.Errorf("%w: index %d for dimension %d (size %d)", ErrIndexOutOfRange, idx, i, t.shape[i])
		}
		offset += idx * t.strides[i]
	}
	return offset, nil
}

// Indices converts a flat offset back into an index vector.
func (t *Tensor) Indices(offset int) ([]int, error) {
	if offset < 0 || offset >= len(t.data) {
		return nil, fmt.Errorf("%w: offset %d for size %d", ErrIndexOutOfRange, offset, len(t.data))
	}
	idx := make([]int, len(t.shape))
	for i, stride := range t.strides {
		idx[i] = offset / stride
		offset %= stride
	}
	return idx, nil
}

// Get returns the element at the given indices.
func (t *Tensor) Get(indices ...int) (float64, error) {
	offset, err := t.Offset(indices...)
	if err != nil {
		return 0, err
	}
	return t.data[offset], nil
}

// Set writes value at the given indices.
func (t *Tensor) Set(value float64, indices ...int) error {
	offset, err := t.Offset(indices...)
	if err != nil {
		return err
	}
	t.data[offset] = value
	return nil
}

// Fill sets every element to value.
func (t *Tensor) Fill(value float64) {
	for i := range t.data {
		t.data[i] = value
	}
}

// FillUniform fills the tensor with values drawn uniformly from [lo, hi).
func (t *Tensor) FillUniform(rng *rand.Rand, lo, hi float64) {
	for i := range t.data {
		t.data[i] = lo + rng.Float64()*(hi-lo)
	}
}

// Map returns a new tensor with f applied to every element.
func (t *Tensor) Map(f func(float64) float64) *Tensor {
	out := &Tensor{
		shape:   t.shape.Clone(),
		strides: append([]int(nil), t.strides...),
		data:    make([]float64, len(t.data)),
	}
	for i, v := range t.data {
		out.data[i] = f(v)
	}
	return out
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		shape:   t.shape.Clone(),
		strides: append([]int(nil), t.strides...),
		data:    append([]float64(nil), t.data...),
	}
}

// Equal reports whether both tensors have the same shape and elements within tol.
func (t *Tensor) Equal(other *Tensor, tol float64) bool {
	if other == nil || !t.shape.Equal(other.shape) {
		return false
	}
	return floats.EqualApprox(t.data, other.data, tol)
}

// CopyFrom copies the elements of src into t. Shapes must match exactly.
func (t *Tensor) CopyFrom(src *Tensor) error {
	if !t.shape.Equal(src.shape) {
		return fmt.Errorf("%w: copy %v into %v", ErrShapeMismatch, src.shape, t.shape)
	}
	copy(t.data, src.data)
	return nil
}

// String returns a short human-readable description.
func (t *Tensor) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tensor%v", t.shape)
	if len(t.data) <= 8 {
		fmt.Fprintf(&b, " %v", t.data)
	}
	return b.String()
}
