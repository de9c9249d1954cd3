package tensor

import (
	"testing"

	"github.com/born-ml/evalnet/internal/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
)

func TestConvolve_IdentityKernel(t *testing.T) {
	input := randomTensor(t, 11, 2, 3, 5, 4)

	// 1x1 kernel of ones per channel: out channel c reads only in channel c.
	kernel := Zeros(3, 3, 1, 1)
	for c := 0; c < 3; c++ {
		require.NoError(t, kernel.Set(1, c, c, 0, 0))
	}

	out, err := Convolve(input, kernel, ConvParams{})
	require.NoError(t, err)
	assert.True(t, out.Equal(input, 0))
}

func TestConvolve_SingleChannelIdentity(t *testing.T) {
	input := randomTensor(t, 12, 1, 1, 4, 4)
	kernel, err := FromSlice([]float64{1}, 1, 1, 1, 1)
	require.NoError(t, err)

	out, err := Convolve(input, kernel, ConvParams{StrideY: 1, StrideX: 1})
	require.NoError(t, err)
	assert.Equal(t, input.Data(), out.Data())
}

func TestConvolve_KnownValues(t *testing.T) {
	input, err := FromSlice([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, 1, 1, 3, 3)
	require.NoError(t, err)
	kernel, err := FromSlice([]float64{1, 2, 3, 4}, 1, 1, 2, 2)
	require.NoError(t, err)

	out, err := Convolve(input, kernel, ConvParams{})
	require.NoError(t, err)

	// [0,0]: 1*1 + 2*2 + 4*3 + 5*4 = 37
	assert.Equal(t, Shape{1, 1, 2, 2}, out.Shape())
	assert.Equal(t, []float64{37, 47, 67, 77}, out.Data())
}

func TestConvolve_Padding(t *testing.T) {
	input, err := FromSlice([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, 1, 1, 3, 3)
	require.NoError(t, err)
	kernel := Zeros(1, 1, 3, 3)
	kernel.Fill(1)

	out, err := Convolve(input, kernel, ConvParams{Padding: true})
	require.NoError(t, err)

	// Same-size output; each value sums the in-bounds 3x3 neighbourhood.
	assert.Equal(t, Shape{1, 1, 3, 3}, out.Shape())
	assert.Equal(t, []float64{12, 21, 16, 27, 45, 33, 24, 39, 28}, out.Data())
}

func TestConvolve_Stride(t *testing.T) {
	input := randomTensor(t, 13, 1, 2, 7, 6)
	kernel := randomTensor(t, 14, 4, 2, 3, 2)

	out, err := Convolve(input, kernel, ConvParams{StrideY: 2, StrideX: 3})
	require.NoError(t, err)

	// (7-3)/2+1 = 3, (6-2)/3+1 = 2
	assert.Equal(t, Shape{1, 4, 3, 2}, out.Shape())
	assert.Equal(t, 3, ConvOutputSize(7, 3, 2, false))
	assert.Equal(t, 7, ConvOutputSize(7, 3, 1, true))
}

func TestConvolve_ShapeErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  *Tensor
		kernel *Tensor
	}{
		{"channel mismatch", Zeros(1, 2, 4, 4), Zeros(1, 3, 2, 2)},
		{"rank 3 input", Zeros(2, 4, 4), Zeros(1, 2, 2, 2)},
		{"rank 2 kernel", Zeros(1, 1, 4, 4), Zeros(2, 2)},
		{"kernel larger than input", Zeros(1, 1, 2, 2), Zeros(1, 1, 3, 3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Convolve(tt.input, tt.kernel, ConvParams{})
			assert.ErrorIs(t, err, ErrShapeMismatch)
		})
	}
}

// convLoss returns sum(out * weights) so that d(loss)/d(out) == weights.
func convLoss(t *testing.T, input, kernel, weights *Tensor, p ConvParams) float64 {
	out, err := Convolve(input, kernel, p)
	require.NoError(t, err)
	sum := 0.0
	for i, v := range out.Data() {
		sum += v * weights.Data()[i]
	}
	return sum
}

func TestConvolveGrads_MatchFiniteDifferences(t *testing.T) {
	for _, p := range []ConvParams{{}, {Padding: true}, {StrideY: 2, StrideX: 1, Padding: true}} {
		input := randomTensor(t, 21, 2, 2, 5, 5)
		kernel := randomTensor(t, 22, 3, 2, 3, 3)

		out, err := Convolve(input, kernel, p)
		require.NoError(t, err)
		upstream := randomTensor(t, 23, []int(out.Shape())...)

		dx, err := ConvolveInputGrad(input, kernel, upstream, p)
		require.NoError(t, err)
		dk, err := ConvolveKernelGrad(input, kernel, upstream, p)
		require.NoError(t, err)

		numDx := fd.Gradient(nil, func(x []float64) float64 {
			in, err := FromSlice(x, []int(input.Shape())...)
			require.NoError(t, err)
			return convLoss(t, in, kernel, upstream, p)
		}, input.Data(), nil)
		assert.InDeltaSlice(t, numDx, dx.Data(), 1e-5, "input grad %+v", p)

		numDk := fd.Gradient(nil, func(k []float64) float64 {
			kt, err := FromSlice(k, []int(kernel.Shape())...)
			require.NoError(t, err)
			return convLoss(t, input, kt, upstream, p)
		}, kernel.Data(), nil)
		assert.InDeltaSlice(t, numDk, dk.Data(), 1e-5, "kernel grad %+v", p)
	}
}

func TestConvolve_ParallelMatchesSequential(t *testing.T) {
	input := randomTensor(t, 31, 3, 4, 9, 9)
	kernel := randomTensor(t, 32, 5, 4, 3, 3)
	p := ConvParams{Padding: true}
	t.Cleanup(func() { SetMaxWorkers(0) })

	run := func(workers int) (out, dx, dk *Tensor) {
		SetMaxWorkers(workers)
		out, err := Convolve(input, kernel, p)
		require.NoError(t, err)
		dx, err = ConvolveInputGrad(input, kernel, out, p)
		require.NoError(t, err)
		dk, err = ConvolveKernelGrad(input, kernel, out, p)
		require.NoError(t, err)
		return out, dx, dk
	}

	seqOut, seqDx, seqDk := run(1)
	parOut, parDx, parDk := run(4)

	// Same summation order per element, so the results are bit-identical.
	assert.Equal(t, seqOut.Data(), parOut.Data())
	assert.Equal(t, seqDx.Data(), parDx.Data())
	assert.Equal(t, seqDk.Data(), parDk.Data())
}

func TestKernelConfig(t *testing.T) {
	t.Cleanup(func() { SetMaxWorkers(0) })

	SetMaxWorkers(1)
	cfg := kernelConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1, cfg.NumWorkers)

	SetMaxWorkers(3)
	cfg = kernelConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 3, cfg.NumWorkers)

	SetMaxWorkers(-2)
	assert.Equal(t, parallel.DefaultConfig(), kernelConfig())
}
