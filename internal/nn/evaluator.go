package nn

import (
	"github.com/born-ml/evalnet/internal/tensor"
)

// Evaluator is the surface a game-tree search needs from a network: a scalar
// board score plus the training entry points used for self-play updates.
//
// T is the board encoding: []float64 for dense networks, *tensor.Tensor for
// tensor networks.
type Evaluator[T any] interface {
	Forward(input T) (T, error)
	Score(board T) (float64, error)
	Train(input, target T) (float64, error)
	TrainBatch(inputs, targets []T, epochs int, onEpoch EpochFunc) (float64, error)
}

var (
	_ Evaluator[[]float64]      = (*Network)(nil)
	_ Evaluator[[]float64]      = (*FeedForwardNetwork)(nil)
	_ Evaluator[*tensor.Tensor] = (*TensorNetwork)(nil)
)
