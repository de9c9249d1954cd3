package nn

import "errors"

// Common errors.
var (
	ErrNotInitialized      = errors.New("network has no layers")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrUnknownActivation   = errors.New("unknown activation function")
	ErrInvalidArchitecture = errors.New("invalid network architecture")
	ErrInputSize           = errors.New("input size mismatch")
	ErrMissingStateTensor  = errors.New("state dict is missing a tensor")
	ErrUnexpectedModelType = errors.New("unexpected model type")
	ErrBatchLengthMismatch = errors.New("inputs and targets differ in length")
	ErrNoForwardPass       = errors.New("backward called before forward")
)
