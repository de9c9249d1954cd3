package tensor

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomTensor(t *testing.T, seed int64, shape ...int) *Tensor {
	t.Helper()
	x, err := New(shape...)
	require.NoError(t, err)
	x.FillUniform(rand.New(rand.NewSource(seed)), -1, 1)
	return x
}

func TestReshape_RoundTrip(t *testing.T) {
	x := randomTensor(t, 1, 2, 3, 4)

	shapes := [][]int{{24}, {4, 6}, {2, 12}, {1, 2, 3, 4}, {3, 2, 2, 2}}
	for _, s := range shapes {
		y, err := Reshape(x, s...)
		require.NoError(t, err)
		assert.Equal(t, Shape(s), y.Shape())

		back, err := Reshape(y, 2, 3, 4)
		require.NoError(t, err)
		assert.Equal(t, x.Data(), back.Data())
	}
}

func TestReshape_Mismatch(t *testing.T) {
	x := Zeros(2, 3)

	_, err := Reshape(x, 4)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Reshape(x, 0, 6)
	assert.ErrorIs(t, err, ErrInvalidShape)
}

func TestFlatten(t *testing.T) {
	x := randomTensor(t, 2, 1, 2, 3, 3)
	flat := Flatten(x)

	assert.Equal(t, Shape{18}, flat.Shape())
	assert.Equal(t, x.Data(), flat.Data())
}

func TestTranspose_2D(t *testing.T) {
	x, err := FromSlice([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)

	y, err := Transpose(x, 1, 0)
	require.NoError(t, err)

	assert.Equal(t, Shape{3, 2}, y.Shape())
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, y.Data())
}

func TestTranspose_ElementRemap(t *testing.T) {
	x := randomTensor(t, 3, 2, 3, 4, 5)
	dims := []int{0, 2, 3, 1}

	y, err := Transpose(x, dims...)
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 4, 5, 3}, y.Shape())

	for off := 0; off < y.Size(); off++ {
		outIdx, err := y.Indices(off)
		require.NoError(t, err)

		srcIdx := make([]int, 4)
		for i, d := range dims {
			srcIdx[d] = outIdx[i]
		}
		want, err := x.Get(srcIdx...)
		require.NoError(t, err)
		assert.Equal(t, want, y.Data()[off])
	}
}

func TestTranspose_InvalidPermutation(t *testing.T) {
	x := Zeros(2, 3, 4)

	for _, dims := range [][]int{{0, 1}, {0, 0, 1}, {0, 1, 3}, {-1, 0, 1}} {
		_, err := Transpose(x, dims...)
		assert.ErrorIs(t, err, ErrShapeMismatch, "dims %v", dims)
	}
}

func TestAdd(t *testing.T) {
	a, err := FromSlice([]float64{1, 2, 3}, 3)
	require.NoError(t, err)
	b, err := FromSlice([]float64{10, 20, 30}, 3)
	require.NoError(t, err)

	c, err := Add(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 22, 33}, c.Data())
	assert.Equal(t, []float64{1, 2, 3}, a.Data())

	_, err = Add(a, Zeros(3, 1))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}
