// Package serialization provides the .evnt binary format for saving and
// loading evalnet models.
//
// The .evnt format stores named float64 tensors behind a checksummed header:
//
//	Format Structure:
//	  [64 bytes: fixed header]
//	    0x00 Magic "EVNT"
//	    0x04 Version (uint32 LE)
//	    0x08 Flags (uint32 LE)
//	    0x0C Reserved
//	    0x10 Header size (uint64 LE)
//	    0x18 Data size (uint64 LE)
//	    0x20 SHA-256 of the data section (32 bytes)
//	  [Header: JSON metadata]
//	  [Padding to a 64-byte boundary]
//	  [Tensor data: little-endian float64, tensors in name order]
//
// The format supports:
//   - Arbitrary tensor shapes, preserved exactly
//   - Free-form string metadata (architecture, activation names)
//   - Optional training checkpoint metadata (epoch, loss)
//   - Header validation against malformed or hostile files
//
// Example usage:
//
//	// Save a state dict
//	err := serialization.WriteFile("model.evnt", net.StateDict(), serialization.Header{
//	    ModelType: "FeedForwardNetwork",
//	    Metadata:  map[string]string{"layer_sizes": "[192,64,1]"},
//	})
//
//	// Load it back
//	state, header, err := serialization.ReadFile("model.evnt", serialization.ReaderOptions{})
//	err = net.LoadStateDict(state)
package serialization
