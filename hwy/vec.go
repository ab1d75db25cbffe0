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

package hwy

// This file provides the scalar definitions of the register operations used
// by the generic kernels. Each loop has a constant trip count per
// instantiation, which the compiler fully unrolls for the 4 and 8 lane types.

// NumLanes returns the number of float32 lanes in V.
func NumLanes[V Float32Vec]() int {
	var v V
	return len(v)
}

// Load returns a vector holding the first NumLanes[V]() elements of src.
// Panics if src is shorter than one vector.
func Load[V Float32Vec](src []float32) V {
	var v V
	_ = src[len(v)-1]
	for i := 0; i < len(v); i++ {
		v[i] = src[i]
	}
	return v
}

// LoadN returns a vector holding the first n elements of src, with the
// remaining lanes zeroed. It never reads past src[n-1].
func LoadN[V Float32Vec](src []float32, n int) V {
	var v V
	n = min(n, len(v))
	for i := 0; i < n; i++ {
		v[i] = src[i]
	}
	return v
}

// Store writes all lanes of v to dst.
func Store[V Float32Vec](v *V, dst []float32) {
	_ = dst[len(*v)-1]
	for i := 0; i < len(*v); i++ {
		dst[i] = (*v)[i]
	}
}

// StoreN writes the first n lanes of v to dst and leaves dst[n:] untouched.
func StoreN[V Float32Vec](v *V, dst []float32, n int) {
	n = min(n, len(*v))
	for i := 0; i < n; i++ {
		dst[i] = (*v)[i]
	}
}

// MulAddScalar computes acc += s * w for the first NumLanes[V]() elements
// of w, broadcasting the scalar s to every lane.
func MulAddScalar[V Float32Vec](acc *V, s float32, w []float32) {
	_ = w[len(*acc)-1]
	for i := 0; i < len(*acc); i++ {
		(*acc)[i] += s * w[i]
	}
}
