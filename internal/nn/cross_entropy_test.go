package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestSoftmax_SumsToOne(t *testing.T) {
	p := Softmax([]float64{1, 2, 3})
	assert.InDelta(t, 1.0, floats.Sum(p), 1e-12)
	assert.True(t, p[0] < p[1] && p[1] < p[2])

	// Shift invariance.
	q := Softmax([]float64{101, 102, 103})
	assert.InDeltaSlice(t, p, q, 1e-12)
}

func TestSoftmax_ExtremeInputs(t *testing.T) {
	inputs := [][]float64{
		{1e6, 0, -1e6},
		{1e6, 1e6},
		{-1e6, -1e6, -1e6},
	}
	for _, in := range inputs {
		p := Softmax(in)
		for _, v := range p {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "%v -> %v", in, p)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
		assert.InDelta(t, 1.0, floats.Sum(p), 1e-12, "%v", in)
	}

	p := Softmax([]float64{1e6, 0, -1e6})
	assert.InDelta(t, 1.0, p[0], 1e-12)
}

func TestSoftmax_Empty(t *testing.T) {
	assert.Empty(t, Softmax(nil))
}

func TestCrossEntropy(t *testing.T) {
	loss, err := CrossEntropy([]float64{0.7, 0.2, 0.1}, []float64{1, 0, 0})
	require.NoError(t, err)
	assert.InDelta(t, -math.Log(0.7), loss, 1e-12)

	// Zero probabilities are clamped instead of producing +Inf.
	loss, err = CrossEntropy([]float64{0, 1}, []float64{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, -math.Log(probabilityFloor), loss, 1e-9)

	_, err = CrossEntropy([]float64{1}, []float64{1, 0})
	assert.ErrorIs(t, err, ErrInputSize)
}

func TestMSE(t *testing.T) {
	loss, err := MSE([]float64{1, 2, 3}, []float64{1, 0, 6})
	require.NoError(t, err)
	assert.InDelta(t, (0+4+9)/3.0, loss, 1e-12)

	loss, err = MSE(nil, nil)
	require.NoError(t, err)
	assert.Zero(t, loss)

	_, err = MSE([]float64{1, 2}, []float64{1})
	assert.ErrorIs(t, err, ErrInputSize)
}
