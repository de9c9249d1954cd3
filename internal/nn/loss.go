package nn

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// MSE computes Mean Squared Error loss.
//
// Loss = mean((predictions - targets)²)
//
// MSE is the loss reported for outputs without softmax: regression heads and
// the scalar board evaluation.
//
// Example:
//
//	out, _ := net.Forward(board)
//	loss, _ := nn.MSE(out, []float64{1})
func MSE(predictions, targets []float64) (float64, error) {
	if len(predictions) != len(targets) {
		return 0, fmt.Errorf("%w: %d predictions, %d targets", ErrInputSize, len(predictions), len(targets))
	}
	if len(predictions) == 0 {
		return 0, nil
	}
	d := floats.Distance(predictions, targets, 2)
	return d * d / float64(len(predictions)), nil
}
