// Package hwy provides portable fixed-width vector types with runtime CPU
// dispatch.
//
// It follows the Highway C++ library's design philosophy: write once, run
// optimally everywhere. Kernels are written once as generic functions over
// the register-sized array types below, and the width matching the host
// (AVX2, AVX-512, NEON, or a 128-bit scalar fallback) is picked a single time
// when a kernel is set up, never inside the innermost loop.
//
// Basic usage:
//
//	import "github.com/ajroetker/hwyconv/hwy"
//
//	caps := hwy.CurrentCapabilities()
//	switch caps.Float32Lanes() {
//	case 8:
//		run[hwy.Float32x8](data)
//	case 16:
//		run[hwy.Float32x16](data)
//	default:
//		run[hwy.Float32x4](data)
//	}
package hwy

// Floats is a constraint for floating-point types.
type Floats interface {
	~float32 | ~float64
}

// Float32x4 holds one 128-bit register of float32 lanes (SSE2, NEON, scalar).
type Float32x4 [4]float32

// Float32x8 holds one 256-bit register of float32 lanes (AVX2).
type Float32x8 [8]float32

// Float32x16 holds one 512-bit register of float32 lanes (AVX-512).
type Float32x16 [16]float32

// Float32Vec is a constraint for the register-sized float32 array types.
//
// Generic code must index these with an explicit loop bound of len(v);
// the constraint has no core type, so ranging or slicing is not allowed.
type Float32Vec interface {
	~[4]float32 | ~[8]float32 | ~[16]float32
}
