package nn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	xorInputs  = [][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	xorTargets = [][]float64{{0}, {1}, {1}, {0}}
)

func newXORNetwork(t *testing.T, seed int64) *FeedForwardNetwork {
	t.Helper()
	rng := newRand(seed)
	in, err := NewInputLayer(2, rng)
	require.NoError(t, err)
	hidden, err := NewStandardLayer(4, Sigmoid(), rng)
	require.NoError(t, err)
	out, err := NewOutputLayer(1, Sigmoid(), false, rng)
	require.NoError(t, err)

	net, err := NewFeedForwardNetwork(Config{LearningRate: 0.5, Rand: rng}, in, hidden, out)
	require.NoError(t, err)
	return net
}

func TestNetwork_XORConvergence(t *testing.T) {
	net := newXORNetwork(t, 7)

	initial, err := net.Loss(xorInputs, xorTargets)
	require.NoError(t, err)

	epochs := 0
	_, err = net.TrainBatch(xorInputs, xorTargets, 1000, func(int, float64) { epochs++ })
	require.NoError(t, err)
	assert.Equal(t, 1000, epochs)

	final, err := net.Loss(xorInputs, xorTargets)
	require.NoError(t, err)
	assert.Less(t, final, 0.5*initial)

	for i, in := range xorInputs {
		score, err := net.Score(in)
		require.NoError(t, err)
		if xorTargets[i][0] == 1 {
			assert.Greater(t, score, 0.3, "input %v", in)
		} else {
			assert.Less(t, score, 0.7, "input %v", in)
		}
	}
}

func TestNetwork_Deterministic(t *testing.T) {
	a, b := newXORNetwork(t, 21), newXORNetwork(t, 21)
	lossA, err := a.TrainBatch(xorInputs, xorTargets, 20, nil)
	require.NoError(t, err)
	lossB, err := b.TrainBatch(xorInputs, xorTargets, 20, nil)
	require.NoError(t, err)
	assert.Equal(t, lossA, lossB)
	assert.Equal(t, a.StateDict()["1.weight"].Data(), b.StateDict()["1.weight"].Data())
}

func TestNetwork_TrainBatchReturnsAverageLoss(t *testing.T) {
	net := newXORNetwork(t, 3)
	var last float64
	avg, err := net.TrainBatch(xorInputs, xorTargets, 5, func(_ int, loss float64) { last = loss })
	require.NoError(t, err)
	assert.Equal(t, last, avg)
	assert.Greater(t, avg, 0.0)
}

func TestNetwork_Empty(t *testing.T) {
	net, err := NewNetwork(Config{})
	require.NoError(t, err)

	_, err = net.Forward([]float64{1})
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = net.Train([]float64{1}, []float64{1})
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = net.TrainBatch([][]float64{{1}}, [][]float64{{1}}, 1, nil)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Zero(t, net.InputSize())
	assert.Zero(t, net.OutputSize())
}

func TestNetwork_InputErrors(t *testing.T) {
	net := newXORNetwork(t, 1)

	_, err := net.Forward([]float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrInputSize)
	_, err = net.Train([]float64{1, 0}, []float64{1, 0})
	assert.ErrorIs(t, err, ErrInputSize)

	_, err = net.TrainBatch(xorInputs, xorTargets[:3], 1, nil)
	assert.ErrorIs(t, err, ErrBatchLengthMismatch)
	_, err = net.TrainBatch(xorInputs, xorTargets, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = net.TrainBatch(nil, nil, 1, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = net.TrainBatch([][]float64{{1, 0}, {1}}, [][]float64{{1}, {0}}, 1, nil)
	assert.ErrorIs(t, err, ErrInputSize)
}

func TestNetwork_FailedBatchLeavesWeightsUntouched(t *testing.T) {
	net := newXORNetwork(t, 2)
	before := net.StateDict()

	_, err := net.TrainBatch(xorInputs, [][]float64{{0}, {1}, {1}, {0, 1}}, 3, nil)
	require.ErrorIs(t, err, ErrInputSize)

	after := net.StateDict()
	for k, v := range before {
		assert.Equal(t, v.Data(), after[k].Data(), k)
	}
}

func TestNewNetwork_Validation(t *testing.T) {
	rng := newRand(4)
	in, _ := NewInputLayer(2, rng)
	in2, _ := NewInputLayer(2, rng)
	hidden, _ := NewStandardLayer(3, ReLU(), rng)

	_, err := NewNetwork(Config{Rand: rng}, in, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewNetwork(Config{Rand: rng}, hidden, in2)
	assert.ErrorIs(t, err, ErrInvalidArchitecture)

	_, err = NewNetwork(Config{Rand: rng}, in, hidden, hidden)
	assert.ErrorIs(t, err, ErrInvalidArchitecture)

	_, err = NewNetwork(Config{LearningRate: -0.1, Rand: rng}, in, hidden)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewNetwork(Config{Rand: rng}, in, hidden)
	require.NoError(t, err)
	_, err = NewNetwork(Config{Rand: rng}, in, hidden)
	assert.ErrorIs(t, err, ErrInvalidArchitecture, "layers cannot be shared between networks")
}

func TestNewFeedForwardNetwork_Validation(t *testing.T) {
	rng := newRand(5)
	in, _ := NewInputLayer(2, rng)
	hidden, _ := NewStandardLayer(3, ReLU(), rng)
	out, _ := NewOutputLayer(1, Tanh(), false, rng)

	_, err := NewFeedForwardNetwork(Config{Rand: rng}, in)
	assert.ErrorIs(t, err, ErrInvalidArchitecture)
	_, err = NewFeedForwardNetwork(Config{Rand: rng}, hidden, out)
	assert.ErrorIs(t, err, ErrInvalidArchitecture)
	_, err = NewFeedForwardNetwork(Config{Rand: rng}, in, hidden)
	assert.ErrorIs(t, err, ErrInvalidArchitecture)

	net, err := NewFeedForwardNetwork(Config{Rand: rng}, in, hidden, out)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 1}, net.LayerSizes())
	assert.Equal(t, DefaultLearningRate, net.LearningRate())
}

func TestNetwork_Accessors(t *testing.T) {
	net := newXORNetwork(t, 6)
	assert.Equal(t, 3, net.NumLayers())
	assert.Equal(t, StandardKind, net.Layer(1).Kind())
	assert.Len(t, net.Layers(), 3)
	assert.Equal(t, 2, net.InputSize())
	assert.Equal(t, 1, net.OutputSize())
	assert.Panics(t, func() { net.Layer(3) })
}

func TestNetwork_WeightMatrix(t *testing.T) {
	net := newXORNetwork(t, 8)

	w, err := net.WeightMatrix(0)
	require.NoError(t, err)
	r, c := w.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 4, c)

	hidden := net.Layer(1)
	for _, e := range hidden.Edges() {
		assert.Equal(t, e.Weight, w.At(e.Source, e.Target))
	}

	_, err = net.WeightMatrix(2)
	assert.ErrorIs(t, err, ErrInvalidArchitecture)
}

func TestNetwork_BatchNormCalibration(t *testing.T) {
	rng := newRand(9)
	in, _ := NewInputLayer(2, rng)
	bn, _ := NewBatchNormLayer(3, ReLU(), rng)
	out, _ := NewOutputLayer(1, Sigmoid(), false, rng)
	net, err := NewFeedForwardNetwork(Config{LearningRate: 0.1, Rand: rng}, in, bn, out)
	require.NoError(t, err)

	_, err = net.TrainBatch(xorInputs, xorTargets, 3, nil)
	require.NoError(t, err)

	for i := range bn.RunningMean {
		assert.NotZero(t, bn.RunningMean[i], "running mean %d", i)
		assert.NotEqual(t, 1.0, bn.RunningVar[i], "running var %d", i)
	}
}

func TestNetwork_SoftmaxOutputReportsCrossEntropy(t *testing.T) {
	net, err := CreateDefault([]int{3, 5, 4}, Config{Seed: 1})
	require.NoError(t, err)

	out, err := net.Forward([]float64{0.1, 0.2, 0.3})
	require.NoError(t, err)
	target := []float64{0, 0, 1, 0}
	want, err := CrossEntropy(out, target)
	require.NoError(t, err)

	got, err := net.Train([]float64{0.1, 0.2, 0.3}, target)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)
}

func TestCreateDefault(t *testing.T) {
	net, err := CreateDefault([]int{192, 128, 64, 32, 1}, Config{Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, []int{192, 128, 64, 32, 1}, net.LayerSizes())

	kinds := []LayerKind{InputKind, StandardKind, StandardKind, StandardKind, OutputKind}
	for i, l := range net.Layers() {
		assert.Equal(t, kinds[i], l.Kind())
	}
	assert.Equal(t, ReLU(), net.Layer(1).Activation())

	out := net.Layer(4).(*OutputLayer)
	assert.Equal(t, Tanh(), out.Activation())
	assert.False(t, out.UseSoftmax())

	multi, err := CreateDefault([]int{4, 3}, Config{Seed: 1})
	require.NoError(t, err)
	mo := multi.Layer(1).(*OutputLayer)
	assert.Equal(t, Linear(), mo.Activation())
	assert.True(t, mo.UseSoftmax())

	for _, bad := range [][]int{nil, {5}, {3, 0, 1}, {-2, 1}} {
		_, err := CreateDefault(bad, Config{})
		assert.ErrorIs(t, err, ErrInvalidArchitecture, "%v", bad)
	}
}

func TestCreateDefault_SeedReproducible(t *testing.T) {
	a, err := CreateDefault([]int{4, 3, 1}, Config{Seed: 99})
	require.NoError(t, err)
	b, err := CreateDefault([]int{4, 3, 1}, Config{Seed: 99})
	require.NoError(t, err)

	sa, sb := a.StateDict(), b.StateDict()
	for k := range sa {
		assert.Equal(t, sa[k].Data(), sb[k].Data(), k)
	}
}

func TestFromArchitecture(t *testing.T) {
	net, err := FromArchitecture(Architecture{LayerSizes: []int{8, 6, 1}, Activation: "Tanh"}, Config{Seed: 2})
	require.NoError(t, err)
	assert.Equal(t, Tanh(), net.Layer(1).Activation())

	net, err = FromArchitecture(Architecture{LayerSizes: []int{8, 6, 1}}, Config{Seed: 2})
	require.NoError(t, err)
	assert.Equal(t, ReLU(), net.Layer(1).Activation())

	_, err = FromArchitecture(Architecture{LayerSizes: []int{8, 1}, Activation: "swish"}, Config{})
	assert.ErrorIs(t, err, ErrUnknownActivation)

	_, err = FromArchitecture(Architecture{LayerSizes: []int{8}}, Config{})
	assert.ErrorIs(t, err, ErrInvalidArchitecture)
}

func TestErrors_AreDistinct(t *testing.T) {
	all := []error{
		ErrNotInitialized, ErrInvalidConfig, ErrUnknownActivation, ErrInvalidArchitecture,
		ErrInputSize, ErrMissingStateTensor, ErrUnexpectedModelType, ErrBatchLengthMismatch, ErrNoForwardPass,
	}
	for i, a := range all {
		for j, b := range all {
			if i != j {
				assert.False(t, errors.Is(a, b), "%v is %v", a, b)
			}
		}
	}
}
