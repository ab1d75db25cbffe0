// Package activation provides the element-wise activation functions that
// convolution and dense layers fuse into their output stage.
//
// Every kind has a scalar closed form (Scalar) that defines its exact
// semantics, slice kernels generic over the register width (BaseReLU,
// BaseELU, ...) dispatched once at init, and in-place helpers (Apply,
// ApplyInterleaved) that route the parameter buffer to the right kernel.
package activation

import (
	"fmt"
	stdmath "math"
	"strings"
)

// Type identifies an activation function.
type Type int

const (
	// Identity passes values through: f(x) = x.
	Identity Type = iota

	// Relu is max(0, x).
	Relu

	// LeakyRelu is x for x > 0, else alpha*x. Params: [alpha].
	LeakyRelu

	// RestrictRange clamps x to [lower, upper]. Params: [lower, upper].
	RestrictRange

	// Prelu is x for x > 0, else slope[channel]*x. Params: one slope per channel.
	Prelu

	// Elu is x for x > 0, else alpha*(exp(x)-1). Params: [alpha].
	Elu

	numTypes
)

var typeNames = [...]string{
	Identity:      "identity",
	Relu:          "relu",
	LeakyRelu:     "leakyrelu",
	RestrictRange: "restrictrange",
	Prelu:         "prelu",
	Elu:           "elu",
}

// String returns the lowercase name of the activation.
func (t Type) String() string {
	if t.Valid() {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Valid reports whether t is a known activation kind.
func (t Type) Valid() bool {
	return t >= Identity && t < numTypes
}

// Types returns every activation kind in declaration order.
func Types() []Type {
	types := make([]Type, 0, numTypes)
	for t := Identity; t < numTypes; t++ {
		types = append(types, t)
	}
	return types
}

// ParseType returns the activation named s (case-insensitive).
func ParseType(s string) (Type, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for t, n := range typeNames {
		if n == name {
			return Type(t), nil
		}
	}
	return Identity, fmt.Errorf("activation: unknown type %q", s)
}

// NumParams returns how many parameters t reads for a layer with the given
// number of output channels.
func (t Type) NumParams(channels int) int {
	switch t {
	case LeakyRelu, Elu:
		return 1
	case RestrictRange:
		return 2
	case Prelu:
		return channels
	default:
		return 0
	}
}

// CheckParams returns an error if params is too short for t.
func (t Type) CheckParams(params []float32, channels int) error {
	if !t.Valid() {
		return fmt.Errorf("activation: unknown type %d", int(t))
	}
	if n := t.NumParams(channels); len(params) < n {
		return fmt.Errorf("activation: %s needs %d params, got %d", t, n, len(params))
	}
	if t == RestrictRange && params[0] > params[1] {
		return fmt.Errorf("activation: restrictrange lower %v > upper %v", params[0], params[1])
	}
	return nil
}

// Scalar applies t to a single value of the given channel.
//
// This is the reference definition every vectorized path must match.
func Scalar(t Type, x float32, params []float32, channel int) float32 {
	switch t {
	case Relu:
		return max(x, 0)
	case LeakyRelu:
		if x > 0 {
			return x
		}
		return params[0] * x
	case RestrictRange:
		return min(max(x, params[0]), params[1])
	case Prelu:
		if x > 0 {
			return x
		}
		return params[channel] * x
	case Elu:
		return elu(x, params[0])
	default:
		return x
	}
}

func elu(x, alpha float32) float32 {
	if x > 0 {
		return x
	}
	return float32(float64(alpha) * (stdmath.Exp(float64(x)) - 1.0))
}
