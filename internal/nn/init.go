package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/evalnet/internal/tensor"
)

// seedScale bounds the small random values given to fresh biases and edges
// before Xavier re-seeding.
const seedScale = 0.1

// XavierLimit returns the Xavier/Glorot bound sqrt(6 / (fan_in + fan_out)).
func XavierLimit(fanIn, fanOut int) float64 {
	return math.Sqrt(6.0 / float64(fanIn+fanOut))
}

// Xavier (Glorot) initialization for a single weight.
//
// Draws from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// This initialization helps maintain variance of activations across layers.
//
// Parameters:
//   - rng: Random source
//   - fanIn: Number of input units
//   - fanOut: Number of output units
func Xavier(rng *rand.Rand, fanIn, fanOut int) float64 {
	limit := XavierLimit(fanIn, fanOut)
	return (rng.Float64()*2.0 - 1.0) * limit
}

// HeLimit returns the He uniform bound sqrt(6 / fan_in), suited to ReLU layers.
func HeLimit(fanIn int) float64 {
	return math.Sqrt(6.0 / float64(fanIn))
}

// XavierTensor fills t with Xavier-distributed values.
func XavierTensor(rng *rand.Rand, t *tensor.Tensor, fanIn, fanOut int) {
	limit := XavierLimit(fanIn, fanOut)
	t.FillUniform(rng, -limit, limit)
}

// HeTensor fills t with He-uniform values.
func HeTensor(rng *rand.Rand, t *tensor.Tensor, fanIn int) {
	limit := HeLimit(fanIn)
	t.FillUniform(rng, -limit, limit)
}

// smallRandom returns a value in [-seedScale, seedScale).
func smallRandom(rng *rand.Rand) float64 {
	return (rng.Float64()*2.0 - 1.0) * seedScale
}
