package nn

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/born-ml/evalnet/internal/serialization"
)

// Model types recorded in file headers.
const (
	ModelTypeNetwork       = "Network"
	ModelTypeTensorNetwork = "TensorNetwork"
)

// Metadata keys written by Save.
const (
	metaLayers       = "layers"
	metaLearningRate = "learning_rate"
)

// layerSpec is the persisted description of one dense layer.
type layerSpec struct {
	Kind       string `json:"kind"`
	Size       int    `json:"size"`
	Activation string `json:"activation"`
	Softmax    bool   `json:"softmax,omitempty"`
}

// Checkpoint is the training state stored alongside the weights by
// SaveCheckpoint.
type Checkpoint struct {
	Epoch        int       // Training epoch number
	Loss         float64   // Average loss at the checkpoint
	LearningRate float64   // Learning rate in use
	CreatedAt    time.Time // When the checkpoint was written
}

// Save writes the network architecture and parameters to path.
//
// The file header records every layer's kind, size and activation, so Load
// can rebuild the network without any other input.
//
// Example:
//
//	if err := net.Save("board.evnt"); err != nil {
//	    log.Fatal(err)
//	}
//	restored, err := nn.Load("board.evnt", nn.Config{})
func (n *Network) Save(path string) error {
	header, err := n.header()
	if err != nil {
		return err
	}
	return serialization.WriteFile(path, n.StateDict(), header)
}

// SaveCheckpoint is Save plus the training epoch and loss, so a later run
// can resume where this one stopped.
func (n *Network) SaveCheckpoint(path string, epoch int, loss float64) error {
	header, err := n.header()
	if err != nil {
		return err
	}
	header.CheckpointMeta = &serialization.CheckpointMeta{
		Epoch:        epoch,
		Loss:         loss,
		LearningRate: n.learningRate,
	}
	return serialization.WriteFile(path, n.StateDict(), header)
}

func (n *Network) header() (serialization.Header, error) {
	if len(n.layers) == 0 {
		return serialization.Header{}, ErrNotInitialized
	}
	specs := make([]layerSpec, len(n.layers))
	for i, l := range n.layers {
		specs[i] = layerSpec{Kind: l.Kind().String(), Size: l.Size(), Activation: l.Activation().String()}
		if o, ok := l.(*OutputLayer); ok {
			specs[i].Softmax = o.UseSoftmax()
		}
	}
	layers, err := json.Marshal(specs)
	if err != nil {
		return serialization.Header{}, fmt.Errorf("failed to encode layers: %w", err)
	}
	return serialization.Header{
		ModelType: ModelTypeNetwork,
		Metadata: map[string]string{
			metaLayers:       string(layers),
			metaLearningRate: strconv.FormatFloat(n.learningRate, 'g', -1, 64),
		},
	}, nil
}

// Load rebuilds a dense network saved by Save or SaveCheckpoint.
//
// A zero cfg.LearningRate takes the learning rate stored in the file. The
// random source only seeds the fresh layers before the stored parameters
// replace every weight and bias.
func Load(path string, cfg Config) (*Network, error) {
	net, _, err := LoadCheckpoint(path, cfg)
	return net, err
}

// LoadCheckpoint is Load that also returns the stored training state.
// Files written by Save yield a zero Checkpoint.
func LoadCheckpoint(path string, cfg Config) (*Network, Checkpoint, error) {
	state, header, err := serialization.ReadFile(path, serialization.ReaderOptions{})
	if err != nil {
		return nil, Checkpoint{}, err
	}
	if header.ModelType != ModelTypeNetwork {
		return nil, Checkpoint{}, fmt.Errorf("%w: %q, expected %q", ErrUnexpectedModelType, header.ModelType, ModelTypeNetwork)
	}

	if cfg.LearningRate == 0 {
		if lr, err := strconv.ParseFloat(header.Metadata[metaLearningRate], 64); err == nil {
			cfg.LearningRate = lr
		}
	}
	cfg, err = cfg.withDefaults()
	if err != nil {
		return nil, Checkpoint{}, err
	}

	var specs []layerSpec
	if err := json.Unmarshal([]byte(header.Metadata[metaLayers]), &specs); err != nil {
		return nil, Checkpoint{}, fmt.Errorf("%w: layer metadata: %w", ErrInvalidArchitecture, err)
	}
	layers := make([]Layer, len(specs))
	for i, s := range specs {
		if layers[i], err = s.build(cfg); err != nil {
			return nil, Checkpoint{}, fmt.Errorf("layer %d: %w", i, err)
		}
	}

	net, err := NewNetwork(cfg, layers...)
	if err != nil {
		return nil, Checkpoint{}, err
	}
	if err := net.LoadStateDict(state); err != nil {
		return nil, Checkpoint{}, err
	}

	var cp Checkpoint
	if m := header.CheckpointMeta; m != nil {
		cp = Checkpoint{Epoch: m.Epoch, Loss: m.Loss, LearningRate: m.LearningRate, CreatedAt: header.CreatedAt}
	}
	return net, cp, nil
}

func (s layerSpec) build(cfg Config) (Layer, error) {
	act, ok := LookupActivation(s.Activation)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownActivation, s.Activation)
	}
	switch s.Kind {
	case InputKind.String():
		return NewInputLayer(s.Size, cfg.Rand)
	case StandardKind.String():
		return NewStandardLayer(s.Size, act, cfg.Rand)
	case OutputKind.String():
		return NewOutputLayer(s.Size, act, s.Softmax, cfg.Rand)
	case BatchNormKind.String():
		return NewBatchNormLayer(s.Size, act, cfg.Rand)
	default:
		return nil, fmt.Errorf("%w: unknown layer kind %q", ErrInvalidArchitecture, s.Kind)
	}
}

// SaveTensorNetwork writes the parameters and batch-norm buffers of net to path.
//
// The layer descriptions are recorded for inspection only; loading needs a
// network of the same shape, see LoadTensorNetworkWeights.
func SaveTensorNetwork(path string, net *TensorNetwork) error {
	if len(net.layers) == 0 {
		return ErrNotInitialized
	}
	desc := make([]string, len(net.layers))
	for i, l := range net.layers {
		desc[i] = l.String()
	}
	layers, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("failed to encode layers: %w", err)
	}
	return serialization.WriteFile(path, net.StateDict(), serialization.Header{
		ModelType: ModelTypeTensorNetwork,
		Metadata: map[string]string{
			metaLayers:       string(layers),
			metaLearningRate: strconv.FormatFloat(net.learningRate, 'g', -1, 64),
		},
	})
}

// LoadTensorNetworkWeights loads a file written by SaveTensorNetwork into net.
//
// net must have the layer structure of the saved network; nothing is changed
// if any tensor is missing or has a different shape.
func LoadTensorNetworkWeights(path string, net *TensorNetwork) error {
	state, header, err := serialization.ReadFile(path, serialization.ReaderOptions{})
	if err != nil {
		return err
	}
	if header.ModelType != ModelTypeTensorNetwork {
		return fmt.Errorf("%w: %q, expected %q", ErrUnexpectedModelType, header.ModelType, ModelTypeTensorNetwork)
	}
	return net.LoadStateDict(state)
}
