package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/evalnet/internal/tensor"
)

func grid4x4(t *testing.T) *tensor.Tensor {
	t.Helper()
	x, err := tensor.FromSlice([]float64{
		1, 2, 5, 6,
		3, 4, 7, 8,
		9, 10, 13, 14,
		11, 12, 15, 16,
	}, 1, 1, 4, 4)
	require.NoError(t, err)
	return x
}

func TestNewPooling_Validation(t *testing.T) {
	shape := tensor.Shape{1, 2, 4, 4}

	_, err := NewPooling(PoolMode(7), shape, tensor.PoolParams{PoolH: 2, PoolW: 2})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewPooling(PoolMax, tensor.Shape{2, 4, 4}, tensor.PoolParams{PoolH: 2, PoolW: 2})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewPooling(PoolMax, shape, tensor.PoolParams{PoolH: 0, PoolW: 2})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewPooling(PoolMax, shape, tensor.PoolParams{PoolH: 5, PoolW: 2})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewPooling(PoolAverage, tensor.Shape{1, 2, 0, 4}, tensor.PoolParams{PoolH: 2, PoolW: 2})
	assert.ErrorIs(t, err, tensor.ErrInvalidShape)
}

func TestPooling_DefaultStride(t *testing.T) {
	pool, err := NewPooling(PoolMax, tensor.Shape{1, 3, 8, 6}, tensor.PoolParams{PoolH: 2, PoolW: 3})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 3, 4, 2}, pool.OutputShape())
	assert.Equal(t, "Pooling(mode=max, pool=(2, 3), stride=(2, 3))", pool.String())
	assert.Nil(t, pool.Parameters())
	assert.Equal(t, PoolMax, pool.Mode())
}

func TestPooling_MaxForwardBackward(t *testing.T) {
	pool, err := NewPooling(PoolMax, tensor.Shape{1, 1, 4, 4}, tensor.PoolParams{PoolH: 2, PoolW: 2})
	require.NoError(t, err)

	out, err := pool.Forward(grid4x4(t))
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 8, 12, 16}, out.Data())

	grad, err := tensor.FromSlice([]float64{0.1, 0.2, 0.3, 0.4}, 1, 1, 2, 2)
	require.NoError(t, err)
	dx, err := pool.Backward(grad, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{
		0, 0, 0, 0,
		0, 0.1, 0, 0.2,
		0, 0, 0, 0,
		0, 0.3, 0, 0.4,
	}, dx.Data())
}

func TestPooling_AverageForwardBackward(t *testing.T) {
	pool, err := NewPooling(PoolAverage, tensor.Shape{1, 1, 4, 4}, tensor.PoolParams{PoolH: 2, PoolW: 2})
	require.NoError(t, err)

	out, err := pool.Forward(grid4x4(t))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2.5, 6.5, 10.5, 14.5}, out.Data(), 1e-12)

	grad, err := tensor.FromSlice([]float64{4, 8, 12, 16}, 1, 1, 2, 2)
	require.NoError(t, err)
	dx, err := pool.Backward(grad, 1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}, dx.Data(), 1e-12)
}

func TestPooling_GradientsMatchFiniteDifferences(t *testing.T) {
	shape := tensor.Shape{2, 2, 5, 5}
	for _, mode := range []PoolMode{PoolMax, PoolAverage} {
		pool, err := NewPooling(mode, shape, tensor.PoolParams{PoolH: 3, PoolW: 2, StrideY: 1, StrideX: 2})
		require.NoError(t, err)
		requireLayerGradients(t, pool, randomTensor(t, 21, shape...), 22)
	}
}

func TestPooling_Errors(t *testing.T) {
	pool, err := NewPooling(PoolMax, tensor.Shape{1, 1, 4, 4}, tensor.PoolParams{PoolH: 2, PoolW: 2})
	require.NoError(t, err)

	_, err = pool.Backward(tensor.Zeros(1, 1, 2, 2), 0)
	assert.ErrorIs(t, err, ErrNoForwardPass)

	_, err = pool.Forward(tensor.Zeros(1, 2, 4, 4))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = pool.Forward(grid4x4(t))
	require.NoError(t, err)
	_, err = pool.Backward(tensor.Zeros(1, 1, 4, 4), 0)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestFlatten_RoundTrip(t *testing.T) {
	shape := tensor.Shape{1, 2, 3, 2}
	f, err := NewFlatten(shape)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{12}, f.OutputShape())
	assert.Equal(t, shape, f.InputShape())
	assert.Nil(t, f.Parameters())

	x := randomTensor(t, 31, shape...)
	out, err := f.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{12}, out.Shape())
	assert.Equal(t, x.Data(), out.Data())

	dx, err := f.Backward(out, 0.5)
	require.NoError(t, err)
	assert.Equal(t, shape, dx.Shape())
	assert.Equal(t, x.Data(), dx.Data())
}

func TestFlatten_Errors(t *testing.T) {
	_, err := NewFlatten(tensor.Shape{})
	assert.ErrorIs(t, err, tensor.ErrInvalidShape)

	f, err := NewFlatten(tensor.Shape{2, 3})
	require.NoError(t, err)

	_, err = f.Forward(tensor.Zeros(3, 2))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = f.Backward(tensor.Zeros(5), 0)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = f.Backward(tensor.Zeros(2, 3), 0)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}
