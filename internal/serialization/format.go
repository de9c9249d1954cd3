package serialization

import (
	"time"
)

// Format constants.
const (
	MagicBytes      = "EVNT"
	FormatVersion   = 1    // fixed header with SHA-256 checksum
	HeaderAlignment = 64   // Align tensor data to 64 bytes
	FixedHeaderSize = 64   // fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
)

// DTypeFloat64 is the only element type written to .evnt files.
const DTypeFloat64 = "float64"

// elementSize is the byte width of a float64 element.
const elementSize = 8

// Flags for the .evnt format.
const (
	FlagHasMetadata  uint32 = 1 << 0 // bit 0: custom metadata included
	FlagIsCheckpoint uint32 = 1 << 1 // bit 1: checkpoint metadata included
)

// Header represents the JSON header in a .evnt file.
type Header struct {
	FormatVersion  int               `json:"format_version"`       // Version of the .evnt format
	Producer       string            `json:"producer"`             // Version of evalnet that created this file
	ModelType      string            `json:"model_type"`           // Type of model (e.g., "FeedForwardNetwork")
	CreatedAt      time.Time         `json:"created_at"`           // When the file was created
	Tensors        []TensorMeta      `json:"tensors"`              // Tensor metadata
	Metadata       map[string]string `json:"metadata"`             // Custom metadata
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"` // Checkpoint metadata (optional)
}

// CheckpointMeta contains training state information for checkpoints.
type CheckpointMeta struct {
	Epoch        int            `json:"epoch"`         // Training epoch number
	Loss         float64        `json:"loss"`          // Average loss at checkpoint
	LearningRate float64        `json:"learning_rate"` // Learning rate in use
	TrainingMeta map[string]any `json:"training_meta"` // Additional training metadata
}

// TensorMeta describes a tensor in the .evnt file.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "0.weight")
	DType  string `json:"dtype"`  // Element type, always "float64"
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Offset in the data section (bytes from start of tensor data)
	Size   int64  `json:"size"`   // Size in bytes
}

// alignedOffset returns the data section offset for a JSON header of headerSize bytes.
func alignedOffset(headerSize int64) int64 {
	pos := int64(FixedHeaderSize) + headerSize
	return pos + (HeaderAlignment-pos%HeaderAlignment)%HeaderAlignment
}
