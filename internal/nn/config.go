package nn

import (
	"fmt"
	"math"
	"math/rand"
)

// DefaultLearningRate is used when Config.LearningRate is zero.
const DefaultLearningRate = 0.1

// Config holds construction settings shared by all network types.
//
// Example:
//
//	net, err := nn.CreateDefault([]int{192, 64, 1}, nn.Config{
//	    LearningRate: 0.05,
//	    Seed:         42,
//	})
type Config struct {
	LearningRate float64    // Gradient descent step (default: 0.1, must be > 0)
	Seed         int64      // Seed for the generator created when Rand is nil
	Rand         *rand.Rand // Random source for initialization and dropout (optional)
}

// withDefaults fills zero fields and validates the result.
func (c Config) withDefaults() (Config, error) {
	if c.LearningRate == 0 {
		c.LearningRate = DefaultLearningRate
	}
	if c.LearningRate < 0 || math.IsNaN(c.LearningRate) || math.IsInf(c.LearningRate, 0) {
		return c, fmt.Errorf("%w: learning rate must be positive, got %g", ErrInvalidConfig, c.LearningRate)
	}
	if c.Rand == nil {
		//nolint:gosec // Using math/rand for weight initialization (not security-critical)
		c.Rand = rand.New(rand.NewSource(c.Seed))
	}
	return c, nil
}
