// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for the dense float64 tensors used
// by evalnet's tensor layers.
//
// Tensors are row-major N-dimensional arrays with an immutable shape.
// Besides element access the package exposes the convolution and pooling
// kernels the layers are built on, including their gradients.
//
// Example:
//
//	board := tensor.Zeros(1, 3, 8, 8)          // [batch, planes, rows, cols]
//	_ = board.Set(1, 0, 0, 4, 4)               // piece on e5
//	flat := tensor.Flatten(board)              // shape [192]
package tensor

import (
	"github.com/born-ml/evalnet/internal/tensor"
)

// Type aliases for public API

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Tensor is a dense row-major float64 tensor.
type Tensor = tensor.Tensor

// ConvParams describes the stride and padding of a 2D convolution.
type ConvParams = tensor.ConvParams

// PoolParams describes a 2D pooling window and its stride.
type PoolParams = tensor.PoolParams

// Errors returned by tensor operations.
var (
	ErrInvalidShape    = tensor.ErrInvalidShape
	ErrShapeMismatch   = tensor.ErrShapeMismatch
	ErrIndexOutOfRange = tensor.ErrIndexOutOfRange
)

// Creation functions

// New creates a zero-filled tensor, validating the shape.
func New(shape ...int) (*Tensor, error) {
	return tensor.New(shape...)
}

// FromSlice creates a tensor holding a copy of data.
//
// Example:
//
//	t, err := tensor.FromSlice([]float64{1, 2, 3, 4}, 2, 2)
func FromSlice(data []float64, shape ...int) (*Tensor, error) {
	return tensor.FromSlice(data, shape...)
}

// Zeros creates a zero-filled tensor. It panics on an invalid shape.
func Zeros(shape ...int) *Tensor {
	return tensor.Zeros(shape...)
}

// Shape manipulation

// Reshape returns a copy of input with a new shape of the same size.
func Reshape(input *Tensor, newShape ...int) (*Tensor, error) {
	return tensor.Reshape(input, newShape...)
}

// Flatten returns a rank-1 copy of input.
func Flatten(input *Tensor) *Tensor {
	return tensor.Flatten(input)
}

// Transpose permutes the dimensions of input.
func Transpose(input *Tensor, dims ...int) (*Tensor, error) {
	return tensor.Transpose(input, dims...)
}

// Add returns the element-wise sum of two tensors of equal shape.
func Add(a, b *Tensor) (*Tensor, error) {
	return tensor.Add(a, b)
}

// Convolution and pooling

// Convolve performs a direct 2D convolution of an [N,C,H,W] input with an
// [O,C,Kh,Kw] kernel.
func Convolve(input, kernel *Tensor, p ConvParams) (*Tensor, error) {
	return tensor.Convolve(input, kernel, p)
}

// ConvOutputSize returns the spatial output size of a convolution along one dimension.
func ConvOutputSize(dim, kernelDim, stride int, padding bool) int {
	return tensor.ConvOutputSize(dim, kernelDim, stride, padding)
}

// MaxPool takes the maximum of each pooling window of an [N,C,H,W] input.
func MaxPool(input *Tensor, p PoolParams) (*Tensor, error) {
	return tensor.MaxPool(input, p)
}

// AvgPool takes the mean of each pooling window of an [N,C,H,W] input.
func AvgPool(input *Tensor, p PoolParams) (*Tensor, error) {
	return tensor.AvgPool(input, p)
}

// PoolOutputSize returns the spatial output size of a pooling window along one dimension.
func PoolOutputSize(dim, poolDim, stride int) int {
	return tensor.PoolOutputSize(dim, poolDim, stride)
}

// SetMaxWorkers caps the goroutines used by convolution. Pass 1 to keep all
// tensor work on the calling goroutine, or 0 for one worker per CPU.
func SetMaxWorkers(n int) {
	tensor.SetMaxWorkers(n)
}
