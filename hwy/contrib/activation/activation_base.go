// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package activation

import "github.com/ajroetker/hwyconv/hwy"

// The Base* kernels below process full vectors of V lanes and a partial
// vector for the tail. Lane operations are written against the closed forms
// in type.go so every width produces bit-identical results.

// mapLanes applies fn to input in V-sized vectors and writes the result to
// output. The tail vector is zero-filled past the live lanes and only the
// live lanes are stored.
func mapLanes[V hwy.Float32Vec](input, output []float32, fn func(x *V, offset int)) {
	size := min(len(input), len(output))
	hwy.ProcessWithTail[V](size,
		func(off int) {
			x := hwy.Load[V](input[off:])
			fn(&x, off)
			hwy.Store(&x, output[off:])
		},
		func(off, n int) {
			x := hwy.LoadN[V](input[off:], n)
			fn(&x, off)
			hwy.StoreN(&x, output[off:], n)
		},
	)
}

// BaseReLU computes the Rectified Linear Unit activation: max(0, x).
func BaseReLU[V hwy.Float32Vec](input, output []float32) {
	mapLanes(input, output, func(x *V, _ int) {
		for j := 0; j < len(*x); j++ {
			(*x)[j] = max((*x)[j], 0)
		}
	})
}

// BaseLeakyReLU computes the Leaky ReLU activation with a configurable slope.
//
// LeakyReLU(x) = x if x > 0, else alpha * x
func BaseLeakyReLU[V hwy.Float32Vec](input, output []float32, alpha float32) {
	mapLanes(input, output, func(x *V, _ int) {
		for j := 0; j < len(*x); j++ {
			if (*x)[j] <= 0 {
				(*x)[j] *= alpha
			}
		}
	})
}

// BaseClamp clamps every element to [lower, upper].
func BaseClamp[V hwy.Float32Vec](input, output []float32, lower, upper float32) {
	mapLanes(input, output, func(x *V, _ int) {
		for j := 0; j < len(*x); j++ {
			(*x)[j] = min(max((*x)[j], lower), upper)
		}
	})
}

// BasePReLU computes the parametric ReLU with one slope per element:
// output[i] = input[i] if input[i] > 0, else slope[i] * input[i].
//
// For channels-last data a row of one pixel lines up with the per-channel
// slope vector, so callers pass one pixel per call.
func BasePReLU[V hwy.Float32Vec](input, output, slope []float32) {
	size := min(len(input), len(output), len(slope))
	mapLanes(input[:size], output[:size], func(x *V, off int) {
		s := hwy.LoadN[V](slope[off:], size-off)
		for j := 0; j < len(*x); j++ {
			if (*x)[j] <= 0 {
				(*x)[j] *= s[j]
			}
		}
	})
}

// BaseELU computes the Exponential Linear Unit activation.
//
// ELU(x) = x if x > 0, else alpha * (exp(x) - 1)
func BaseELU[V hwy.Float32Vec](input, output []float32, alpha float32) {
	mapLanes(input, output, func(x *V, _ int) {
		for j := 0; j < len(*x); j++ {
			(*x)[j] = elu((*x)[j], alpha)
		}
	})
}
