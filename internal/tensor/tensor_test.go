package tensor

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ValidatesShape(t *testing.T) {
	tests := []struct {
		name  string
		shape []int
	}{
		{"empty", nil},
		{"zero dim", []int{2, 0, 3}},
		{"negative dim", []int{-1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.shape...)
			assert.ErrorIs(t, err, ErrInvalidShape)
		})
	}
}

func TestNew_StridesRowMajor(t *testing.T) {
	x, err := New(2, 3, 4)
	require.NoError(t, err)

	assert.Equal(t, []int{12, 4, 1}, x.Strides())
	assert.Equal(t, 24, x.Size())
	assert.Equal(t, 3, x.Rank())
}

func TestFromSlice_LengthMismatch(t *testing.T) {
	_, err := FromSlice([]float64{1, 2, 3}, 2, 2)
	assert.ErrorIs(t, err, ErrInvalidShape)
}

func TestFromSlice_Copies(t *testing.T) {
	src := []float64{1, 2, 3, 4}
	x, err := FromSlice(src, 2, 2)
	require.NoError(t, err)

	src[0] = 99
	v, err := x.Get(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestSetGet_ReadAfterWrite(t *testing.T) {
	x, err := New(2, 3, 4)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 4; k++ {
				v := rng.NormFloat64()
				require.NoError(t, x.Set(v, i, j, k))
				got, err := x.Get(i, j, k)
				require.NoError(t, err)
				assert.Equal(t, v, got)
			}
		}
	}
}

func TestGet_RowMajorLayout(t *testing.T) {
	x, err := FromSlice([]float64{0, 1, 2, 3, 4, 5}, 2, 3)
	require.NoError(t, err)

	v, err := x.Get(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)

	v, err = x.Get(1, 0)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}

func TestSetGet_Errors(t *testing.T) {
	x, err := New(2, 3)
	require.NoError(t, err)

	_, err = x.Get(2, 0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = x.Get(0, -1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = x.Get(0)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	assert.ErrorIs(t, x.Set(1, 0, 3), ErrIndexOutOfRange)
	assert.ErrorIs(t, x.Set(1, 0, 0, 0), ErrShapeMismatch)

	// Failed writes leave the tensor untouched.
	for _, v := range x.Data() {
		assert.Equal(t, 0.0, v)
	}
}

func TestIndices_InverseOfOffset(t *testing.T) {
	x := Zeros(3, 4, 5)
	for off := 0; off < x.Size(); off++ {
		idx, err := x.Indices(off)
		require.NoError(t, err)
		back, err := x.Offset(idx...)
		require.NoError(t, err)
		assert.Equal(t, off, back)
	}

	_, err := x.Indices(x.Size())
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestMap_IsPure(t *testing.T) {
	x, err := FromSlice([]float64{1, -2, 3}, 3)
	require.NoError(t, err)

	y := x.Map(func(v float64) float64 { return v * 2 })

	assert.Equal(t, []float64{2, -4, 6}, y.Data())
	assert.Equal(t, []float64{1, -2, 3}, x.Data())
}

func TestFill(t *testing.T) {
	x := Zeros(2, 2)
	x.Fill(0.5)
	assert.Equal(t, []float64{0.5, 0.5, 0.5, 0.5}, x.Data())
}

func TestFillUniform_Range(t *testing.T) {
	x := Zeros(1000)
	x.FillUniform(rand.New(rand.NewSource(1)), -0.25, 0.25)
	for _, v := range x.Data() {
		assert.GreaterOrEqual(t, v, -0.25)
		assert.Less(t, v, 0.25)
	}
}

func TestClone_Independent(t *testing.T) {
	x, err := FromSlice([]float64{1, 2}, 2)
	require.NoError(t, err)

	y := x.Clone()
	require.NoError(t, y.Set(5, 0))

	v, err := x.Get(0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
	assert.False(t, x.Equal(y, 1e-12))
}

func TestCopyFrom_ShapeMismatch(t *testing.T) {
	assert.ErrorIs(t, Zeros(2, 2).CopyFrom(Zeros(4)), ErrShapeMismatch)
	assert.NoError(t, Zeros(2, 2).CopyFrom(Zeros(2, 2)))
}
