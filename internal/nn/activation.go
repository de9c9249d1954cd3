package nn

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
)

// ActivationKind identifies an activation function variant.
type ActivationKind int

// Activation function variants.
const (
	KindReLU ActivationKind = iota
	KindSigmoid
	KindTanh
	KindLinear
	KindLeakyReLU
)

// DefaultLeakyAlpha is the negative slope used when a LeakyReLU is looked up by name.
const DefaultLeakyAlpha = 0.01

// Activation is a pointwise nonlinearity with a defined derivative.
//
// Activation is a small value type: copies are cheap and it carries no state
// beyond the LeakyReLU slope, so one value may be shared by any number of nodes.
//
// Example:
//
//	act := nn.LeakyReLU(0.2)
//	y := act.Apply(-1)      // -0.2
//	d := act.Derivative(-1) // 0.2
type Activation struct {
	Kind  ActivationKind
	Alpha float64 // negative slope, LeakyReLU only
}

// ReLU returns the rectified linear unit: f(x) = max(0, x).
func ReLU() Activation { return Activation{Kind: KindReLU} }

// Sigmoid returns the logistic function: σ(x) = 1 / (1 + exp(-x)).
func Sigmoid() Activation { return Activation{Kind: KindSigmoid} }

// Tanh returns the hyperbolic tangent.
func Tanh() Activation { return Activation{Kind: KindTanh} }

// Linear returns the identity function.
func Linear() Activation { return Activation{Kind: KindLinear} }

// LeakyReLU returns f(x) = x for x > 0 and alpha*x otherwise.
func LeakyReLU(alpha float64) Activation { return Activation{Kind: KindLeakyReLU, Alpha: alpha} }

// Apply evaluates the activation at x.
func (a Activation) Apply(x float64) float64 {
	switch a.Kind {
	case KindReLU:
		if x > 0 {
			return x
		}
		return 0
	case KindSigmoid:
		return sigmoid(x)
	case KindTanh:
		return math.Tanh(x)
	case KindLeakyReLU:
		if x > 0 {
			return x
		}
		return a.Alpha * x
	default:
		return x
	}
}

// Derivative evaluates d(Apply)/dx at the net input x.
func (a Activation) Derivative(x float64) float64 {
	switch a.Kind {
	case KindReLU:
		if x > 0 {
			return 1
		}
		return 0
	case KindSigmoid:
		s := sigmoid(x)
		return s * (1 - s)
	case KindTanh:
		t := math.Tanh(x)
		return 1 - t*t
	case KindLeakyReLU:
		if x > 0 {
			return 1
		}
		return a.Alpha
	default:
		return 1
	}
}

// String returns the registry name of the activation.
func (a Activation) String() string {
	switch a.Kind {
	case KindReLU:
		return "relu"
	case KindSigmoid:
		return "sigmoid"
	case KindTanh:
		return "tanh"
	case KindLinear:
		return "linear"
	case KindLeakyReLU:
		return fmt.Sprintf("leakyrelu(%g)", a.Alpha)
	default:
		return fmt.Sprintf("activation(%d)", int(a.Kind))
	}
}

// sigmoid avoids exp overflow for large |x|.
func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// activations is built once and only read afterwards.
var activations = map[string]Activation{
	"relu":       ReLU(),
	"sigmoid":    Sigmoid(),
	"logistic":   Sigmoid(),
	"tanh":       Tanh(),
	"linear":     Linear(),
	"identity":   Linear(),
	"leakyrelu":  LeakyReLU(DefaultLeakyAlpha),
	"leaky_relu": LeakyReLU(DefaultLeakyAlpha),
}

// LookupActivation resolves a case-insensitive activation name.
//
// Besides the registered names it accepts the "leakyrelu(<alpha>)" form
// produced by String. Returns false if the name is unknown.
func LookupActivation(name string) (Activation, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if a, ok := activations[key]; ok {
		return a, true
	}
	if arg, ok := strings.CutPrefix(key, "leakyrelu("); ok {
		if arg, ok = strings.CutSuffix(arg, ")"); ok {
			alpha, err := strconv.ParseFloat(arg, 64)
			if err == nil {
				return LeakyReLU(alpha), true
			}
		}
	}
	return Activation{}, false
}

// ActivationNames returns the registered names in sorted order.
func ActivationNames() []string {
	return slices.Sorted(maps.Keys(activations))
}
