package serialization

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/evalnet/internal/tensor"
)

func sampleState(t *testing.T) map[string]*tensor.Tensor {
	t.Helper()
	weight, err := tensor.FromSlice([]float64{1, -2, 3.5, 4, 0.25, -6}, 2, 3)
	require.NoError(t, err)
	bias, err := tensor.FromSlice([]float64{0.1, -0.2}, 2)
	require.NoError(t, err)
	kernel, err := tensor.FromSlice([]float64{1, 2, 3, 4, 5, 6, 7, 8}, 2, 1, 2, 2)
	require.NoError(t, err)
	return map[string]*tensor.Tensor{"0.weight": weight, "0.bias": bias, "1.kernel": kernel}
}

func encode(t *testing.T, state map[string]*tensor.Tensor, header Header) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, state, header))
	return buf.Bytes()
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	state := sampleState(t)
	raw := encode(t, state, Header{
		ModelType: "FeedForwardNetwork",
		Metadata:  map[string]string{"activation": "relu"},
	})

	got, header, err := Decode(bytes.NewReader(raw), ReaderOptions{})
	require.NoError(t, err)

	assert.Equal(t, FormatVersion, header.FormatVersion)
	assert.Equal(t, Producer, header.Producer)
	assert.Equal(t, "FeedForwardNetwork", header.ModelType)
	assert.Equal(t, "relu", header.Metadata["activation"])
	assert.Nil(t, header.CheckpointMeta)

	require.Len(t, got, len(state))
	for name, want := range state {
		require.Contains(t, got, name)
		assert.Equal(t, want.Shape(), got[name].Shape(), name)
		assert.Equal(t, want.Data(), got[name].Data(), name)
	}
}

func TestEncode_Layout(t *testing.T) {
	raw := encode(t, sampleState(t), Header{ModelType: "TensorNetwork"})

	assert.Equal(t, MagicBytes, string(raw[0:4]))
	assert.Equal(t, uint32(FormatVersion), binary.LittleEndian.Uint32(raw[4:8]))

	headerSize := int64(binary.LittleEndian.Uint64(raw[16:24]))
	dataSize := int64(binary.LittleEndian.Uint64(raw[24:32]))
	dataStart := alignedOffset(headerSize)

	assert.Zero(t, dataStart%HeaderAlignment)
	assert.Equal(t, int64((6+2+8)*elementSize), dataSize)
	assert.Equal(t, dataStart+dataSize, int64(len(raw)))

	var sum [ChecksumSize]byte
	copy(sum[:], raw[ChecksumOffset:ChecksumOffset+ChecksumSize])
	assert.Equal(t, ComputeChecksum(raw[dataStart:]), sum)
}

func TestEncode_Deterministic(t *testing.T) {
	state := sampleState(t)
	_, h1, err := Decode(bytes.NewReader(encode(t, state, Header{})), ReaderOptions{})
	require.NoError(t, err)

	names := make([]string, len(h1.Tensors))
	for i, m := range h1.Tensors {
		names[i] = m.Name
	}
	assert.Equal(t, []string{"0.bias", "0.weight", "1.kernel"}, names)
}

func TestEncode_CheckpointFlag(t *testing.T) {
	raw := encode(t, sampleState(t), Header{CheckpointMeta: &CheckpointMeta{Epoch: 12, Loss: 0.05, LearningRate: 0.1}})
	assert.NotZero(t, binary.LittleEndian.Uint32(raw[8:12])&FlagIsCheckpoint)

	_, header, err := Decode(bytes.NewReader(raw), ReaderOptions{})
	require.NoError(t, err)
	require.NotNil(t, header.CheckpointMeta)
	assert.Equal(t, 12, header.CheckpointMeta.Epoch)
	assert.InDelta(t, 0.05, header.CheckpointMeta.Loss, 1e-12)
}

func TestEncode_RejectsBadNames(t *testing.T) {
	state := map[string]*tensor.Tensor{"../w": tensor.Zeros(1)}
	var buf bytes.Buffer
	var verr *ValidationError
	assert.ErrorAs(t, Encode(&buf, state, Header{}), &verr)
}

func TestDecode_Corruption(t *testing.T) {
	good := encode(t, sampleState(t), Header{})

	t.Run("flipped data byte", func(t *testing.T) {
		raw := bytes.Clone(good)
		raw[len(raw)-1] ^= 0xFF
		_, _, err := Decode(bytes.NewReader(raw), ReaderOptions{})
		assert.ErrorIs(t, err, ErrChecksumMismatch)

		_, _, err = Decode(bytes.NewReader(raw), ReaderOptions{SkipChecksumValidation: true})
		assert.NoError(t, err)
	})

	t.Run("bad magic", func(t *testing.T) {
		raw := bytes.Clone(good)
		copy(raw, "BORN")
		_, _, err := Decode(bytes.NewReader(raw), ReaderOptions{})
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("bad version", func(t *testing.T) {
		raw := bytes.Clone(good)
		binary.LittleEndian.PutUint32(raw[4:8], 99)
		_, _, err := Decode(bytes.NewReader(raw), ReaderOptions{})
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("huge header", func(t *testing.T) {
		raw := bytes.Clone(good)
		binary.LittleEndian.PutUint64(raw[16:24], MaxHeaderSize+1)
		_, _, err := Decode(bytes.NewReader(raw), ReaderOptions{})
		assert.ErrorIs(t, err, ErrHeaderTooLarge)
	})

	t.Run("data size disagrees with tensor table", func(t *testing.T) {
		for _, size := range []uint64{1 << 40, 8} {
			raw := bytes.Clone(good)
			binary.LittleEndian.PutUint64(raw[24:32], size)
			_, _, err := Decode(bytes.NewReader(raw), ReaderOptions{SkipChecksumValidation: true})
			var verr *ValidationError
			require.ErrorAs(t, err, &verr, "data size %d", size)
			assert.Equal(t, "size_mismatch", verr.Type)
		}
	})

	t.Run("truncated", func(t *testing.T) {
		_, _, err := Decode(bytes.NewReader(good[:len(good)-3]), ReaderOptions{})
		assert.Error(t, err)
		_, _, err = Decode(bytes.NewReader(good[:10]), ReaderOptions{})
		assert.Error(t, err)
	})
}

func TestWriteFileReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.evnt")
	state := sampleState(t)
	require.NoError(t, WriteFile(path, state, Header{ModelType: "TensorNetwork"}))

	got, header, err := ReadFile(path, ReaderOptions{})
	require.NoError(t, err)
	assert.Equal(t, "TensorNetwork", header.ModelType)
	assert.Equal(t, state["1.kernel"].Data(), got["1.kernel"].Data())

	_, _, err = ReadFile(filepath.Join(t.TempDir(), "missing.evnt"), ReaderOptions{})
	assert.Error(t, err)
}
