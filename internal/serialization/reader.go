package serialization

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/born-ml/evalnet/internal/tensor"
)

// ReaderOptions configures decoding.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip checksum validation (faster but less safe)
	ValidationLevel        ValidationLevel // Validation strictness level (default: strict)
}

// Decode reads a .evnt stream into a state dictionary.
//
// The fixed header, JSON header and checksum are all verified before any
// tensor is built.
func Decode(r io.Reader, opts ReaderOptions) (map[string]*tensor.Tensor, Header, error) {
	header, data, err := decodeRaw(r, opts)
	if err != nil {
		return nil, Header{}, err
	}

	stateDict := make(map[string]*tensor.Tensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		t, err := decodeTensor(meta, data)
		if err != nil {
			return nil, Header{}, err
		}
		stateDict[meta.Name] = t
	}
	return stateDict, header, nil
}

// ReadFile decodes the .evnt file at path.
func ReadFile(path string, opts ReaderOptions) (map[string]*tensor.Tensor, Header, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, Header{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	stateDict, header, err := Decode(bufio.NewReader(file), opts)
	if err != nil {
		return nil, Header{}, fmt.Errorf("%s: %w", path, err)
	}
	return stateDict, header, nil
}

// decodeRaw reads and verifies everything up to the raw data section.
func decodeRaw(r io.Reader, opts ReaderOptions) (Header, []byte, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return Header{}, nil, fmt.Errorf("failed to read fixed header: %w", err)
	}
	if string(fixed[0:4]) != MagicBytes {
		return Header{}, nil, fmt.Errorf("%w: got %q, expected %q", ErrInvalidMagic, fixed[0:4], MagicBytes)
	}
	if version := binary.LittleEndian.Uint32(fixed[4:8]); version != FormatVersion {
		return Header{}, nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}

	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	var stored [ChecksumSize]byte
	copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return Header{}, nil, ErrHeaderTooLarge
	}
	if dataSize > math.MaxInt32*elementSize {
		return Header{}, nil, &ValidationError{Type: "out_of_bounds", Details: fmt.Sprintf("data size %d", dataSize)}
	}

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return Header{}, nil, fmt.Errorf("failed to read header JSON: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Header{}, nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}
	// The data section is allocated only once the tensor table accounts for it.
	declared, err := declaredDataSize(header.Tensors)
	if err != nil {
		return Header{}, nil, err
	}
	if declared != dataSize {
		return Header{}, nil, &ValidationError{Type: "size_mismatch",
			Details: fmt.Sprintf("fixed header declares %d data bytes, tensors describe %d", dataSize, declared)}
	}

	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize
	padding := alignedOffset(int64(headerSize)) - int64(FixedHeaderSize) - int64(headerSize)
	if _, err := io.CopyN(io.Discard, r, padding); err != nil {
		return Header{}, nil, fmt.Errorf("failed to read padding: %w", err)
	}

	data := make([]byte, dataSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return Header{}, nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if !opts.SkipChecksumValidation {
		if err := ValidateChecksum(ComputeChecksum(data), stored); err != nil {
			return Header{}, nil, err
		}
	}

	//nolint:gosec // G115: dataSize is bounded above
	if err := ValidateHeader(&header, int64(dataSize), opts.ValidationLevel); err != nil {
		return Header{}, nil, fmt.Errorf("validation failed: %w", err)
	}
	return header, data, nil
}

// declaredDataSize sums the byte sizes of the tensor table.
func declaredDataSize(tensors []TensorMeta) (uint64, error) {
	var total uint64
	for _, meta := range tensors {
		if meta.Size < 0 || uint64(meta.Size) > math.MaxInt32*elementSize-total {
			return 0, &ValidationError{Type: "out_of_bounds", Tensor: meta.Name,
				Details: fmt.Sprintf("size %d", meta.Size)}
		}
		total += uint64(meta.Size)
	}
	return total, nil
}

// decodeTensor builds one tensor from its slice of the data section.
func decodeTensor(meta TensorMeta, data []byte) (*tensor.Tensor, error) {
	if meta.DType != DTypeFloat64 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDType, meta.DType)
	}
	if meta.Offset < 0 || meta.Size < 0 || meta.Offset+meta.Size > int64(len(data)) || meta.Size%elementSize != 0 {
		return nil, &ValidationError{Type: "out_of_bounds", Tensor: meta.Name,
			Details: fmt.Sprintf("offset %d size %d data %d", meta.Offset, meta.Size, len(data))}
	}

	raw := data[meta.Offset : meta.Offset+meta.Size]
	values := make([]float64, len(raw)/elementSize)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*elementSize:]))
	}
	t, err := tensor.FromSlice(values, meta.Shape...)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", meta.Name, err)
	}
	return t, nil
}
