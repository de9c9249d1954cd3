package tensor

import "errors"

// Tensor errors. All of them are raised before any data is written.
var (
	// ErrInvalidShape reports a construction fault: a non-positive dimension,
	// an empty shape, or a data length that does not match the shape.
	ErrInvalidShape = errors.New("tensor: invalid shape")

	// ErrShapeMismatch reports operands whose shapes are inconsistent with the
	// requested operation (wrong rank, unequal element counts, channel mismatch).
	ErrShapeMismatch = errors.New("tensor: shape mismatch")

	// ErrIndexOutOfRange reports an index outside its dimension's bound.
	ErrIndexOutOfRange = errors.New("tensor: index out of range")
)
