package nn

import (
	"fmt"
)

// Architecture describes a dense network by layer sizes and the name of the
// hidden-layer activation, as supplied by a model-size loader.
type Architecture struct {
	LayerSizes []int  `json:"layer_sizes"`
	Activation string `json:"activation"` // registry name, default "relu"
}

// CreateDefault builds Input → Standard(ReLU)... → Output from layer sizes.
//
// The output layer uses Tanh without softmax when it has a single unit
// (regression or binary evaluation) and Linear with softmax otherwise.
//
// Example:
//
//	net, err := nn.CreateDefault([]int{192, 128, 64, 32, 1}, nn.Config{Seed: 1})
//	score, err := net.Score(board)
func CreateDefault(layerSizes []int, cfg Config) (*FeedForwardNetwork, error) {
	return build(layerSizes, ReLU(), cfg)
}

// FromArchitecture builds a feed-forward network from loader data.
//
// Any sequence of two or more positive sizes is accepted. Hidden layers use
// the named activation; the output layer follows CreateDefault. An unknown
// activation name fails with ErrUnknownActivation.
func FromArchitecture(arch Architecture, cfg Config) (*FeedForwardNetwork, error) {
	act := ReLU()
	if arch.Activation != "" {
		var ok bool
		if act, ok = LookupActivation(arch.Activation); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownActivation, arch.Activation)
		}
	}
	return build(arch.LayerSizes, act, cfg)
}

func build(sizes []int, hidden Activation, cfg Config) (*FeedForwardNetwork, error) {
	if len(sizes) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 layer sizes, got %d", ErrInvalidArchitecture, len(sizes))
	}
	for i, s := range sizes {
		if s <= 0 {
			return nil, fmt.Errorf("%w: layer %d has size %d", ErrInvalidArchitecture, i, s)
		}
	}
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	layers := make([]Layer, 0, len(sizes))
	in, err := NewInputLayer(sizes[0], cfg.Rand)
	if err != nil {
		return nil, err
	}
	layers = append(layers, in)

	for _, size := range sizes[1 : len(sizes)-1] {
		l, err := NewStandardLayer(size, hidden, cfg.Rand)
		if err != nil {
			return nil, err
		}
		layers = append(layers, l)
	}

	outSize := sizes[len(sizes)-1]
	outAct, softmax := Linear(), true
	if outSize == 1 {
		outAct, softmax = Tanh(), false
	}
	out, err := NewOutputLayer(outSize, outAct, softmax, cfg.Rand)
	if err != nil {
		return nil, err
	}
	layers = append(layers, out)

	return NewFeedForwardNetwork(cfg, layers...)
}
