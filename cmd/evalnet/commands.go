package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"maps"
	"math/rand"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/born-ml/evalnet/internal/nn"
	"github.com/born-ml/evalnet/internal/serialization"
	"github.com/born-ml/evalnet/internal/tensor"
)

var (
	xorInputs  = [][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	xorTargets = [][]float64{{0}, {1}, {1}, {0}}
)

// runXOR trains a 2-4-1 sigmoid network on XOR.
func runXOR(args []string) error {
	fs := flag.NewFlagSet("xor", flag.ExitOnError)
	epochs := fs.Int("epochs", 1000, "Number of training epochs")
	lr := fs.Float64("lr", 0.5, "Learning rate")
	seed := fs.Int64("seed", 7, "Random seed for weight initialization")
	every := fs.Int("log-every", 100, "Log the loss every N epochs (0 = never)")
	out := fs.String("o", "", "Save the trained network to this path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	//nolint:gosec // Using math/rand for weight initialization (not security-critical)
	rng := rand.New(rand.NewSource(*seed))
	net, err := newXORNetwork(nn.Config{LearningRate: *lr, Rand: rng})
	if err != nil {
		return err
	}

	loss, err := net.TrainBatch(xorInputs, xorTargets, *epochs, func(epoch int, loss float64) {
		if *every > 0 && (epoch+1)%*every == 0 {
			log.Printf("epoch %d/%d: loss=%.6f", epoch+1, *epochs, loss)
		}
	})
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}
	log.Printf("final loss: %.6f", loss)

	for _, in := range xorInputs {
		score, err := net.Score(in)
		if err != nil {
			return err
		}
		fmt.Printf("%v -> %.4f\n", in, score)
	}

	if *out != "" {
		if err := net.SaveCheckpoint(*out, *epochs, loss); err != nil {
			return fmt.Errorf("failed to save network: %w", err)
		}
		log.Printf("saved %s", *out)
	}
	return nil
}

// newXORNetwork draws every initial weight and bias from cfg.Rand.
func newXORNetwork(cfg nn.Config) (*nn.FeedForwardNetwork, error) {
	rng := cfg.Rand
	in, err := nn.NewInputLayer(2, rng)
	if err != nil {
		return nil, err
	}
	hidden, err := nn.NewStandardLayer(4, nn.Sigmoid(), rng)
	if err != nil {
		return nil, err
	}
	out, err := nn.NewOutputLayer(1, nn.Sigmoid(), false, rng)
	if err != nil {
		return nil, err
	}
	return nn.NewFeedForwardNetwork(cfg, in, hidden, out)
}

// runInit builds a feed-forward network from layer sizes and saves it.
func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	sizes := fs.String("sizes", "192,64,1", "Comma-separated layer sizes, input first")
	act := fs.String("activation", "relu", "Hidden-layer activation ("+strings.Join(nn.ActivationNames(), ", ")+")")
	lr := fs.Float64("lr", nn.DefaultLearningRate, "Learning rate stored with the network")
	seed := fs.Int64("seed", 1, "Random seed for weight initialization")
	out := fs.String("o", "model.evnt", "Output path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	layerSizes, err := parseSizes(*sizes)
	if err != nil {
		return err
	}
	net, err := nn.FromArchitecture(nn.Architecture{LayerSizes: layerSizes, Activation: *act},
		nn.Config{LearningRate: *lr, Seed: *seed})
	if err != nil {
		return err
	}
	if err := net.Save(*out); err != nil {
		return fmt.Errorf("failed to save network: %w", err)
	}
	log.Printf("saved %v network to %s", net.LayerSizes(), *out)
	return nil
}

// parseSizes parses "192,64,1" into layer sizes.
func parseSizes(s string) ([]int, error) {
	fields := strings.Split(s, ",")
	sizes := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("invalid layer size %q: %w", f, err)
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}

// runInspect prints a model file header and its tensor table.
func runInspect(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	noVerify := fs.Bool("skip-checksum", false, "Do not verify the data checksum")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("inspect takes exactly one file, got %d", fs.NArg())
	}

	state, header, err := serialization.ReadFile(fs.Arg(0), serialization.ReaderOptions{
		SkipChecksumValidation: *noVerify,
	})
	if err != nil {
		return err
	}
	return printHeader(w, header, state)
}

func printHeader(w io.Writer, header serialization.Header, state map[string]*tensor.Tensor) error {
	fmt.Fprintf(w, "model:    %s\n", header.ModelType)
	fmt.Fprintf(w, "producer: %s (format v%d)\n", header.Producer, header.FormatVersion)
	fmt.Fprintf(w, "created:  %s\n", header.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	if cp := header.CheckpointMeta; cp != nil {
		fmt.Fprintf(w, "checkpoint: epoch=%d loss=%.6f lr=%g\n", cp.Epoch, cp.Loss, cp.LearningRate)
	}
	for _, k := range slices.Sorted(maps.Keys(header.Metadata)) {
		fmt.Fprintf(w, "meta %s: %s\n", k, header.Metadata[k])
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nNAME\tSHAPE\tELEMENTS\tOFFSET")
	total := 0
	for _, meta := range header.Tensors {
		n := state[meta.Name].Size()
		total += n
		fmt.Fprintf(tw, "%s\t%v\t%d\t%d\n", meta.Name, meta.Shape, n, meta.Offset)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d tensors, %d parameters\n", len(header.Tensors), total)
	return nil
}
