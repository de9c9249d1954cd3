package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// probabilityFloor clamps probabilities before the log in CrossEntropy.
const probabilityFloor = 1e-15

// Softmax converts a score vector into a probability distribution.
//
// The maximum score is subtracted before exponentiating, so inputs of any
// finite magnitude (including ±1e6) produce values in [0, 1] summing to 1
// with no NaN or Inf.
//
// Mathematical Formulation:
//
//	softmax(x)_i = exp(x_i - max(x)) / Σ_j exp(x_j - max(x))
func Softmax(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	maxScore := floats.Max(scores)
	for i, s := range scores {
		out[i] = math.Exp(s - maxScore)
	}
	floats.Scale(1/floats.Sum(out), out)
	return out
}

// CrossEntropy computes the cross-entropy between a predicted probability
// distribution and a target distribution (usually one-hot).
//
// Loss = -Σ target_i * log(max(p_i, 1e-15))
//
// Paired with a softmax output layer its gradient with respect to the
// pre-softmax scores is simply predictions - targets, which is the delta
// OutputLayer.Backward uses.
func CrossEntropy(predictions, targets []float64) (float64, error) {
	if len(predictions) != len(targets) {
		return 0, fmt.Errorf("%w: %d predictions, %d targets", ErrInputSize, len(predictions), len(targets))
	}
	loss := 0.0
	for i, t := range targets {
		if t == 0 {
			continue
		}
		loss -= t * math.Log(math.Max(predictions[i], probabilityFloor))
	}
	return loss, nil
}
