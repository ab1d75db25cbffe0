package hwy

import (
	"fmt"
	"os"
	"strconv"
	"unsafe"
)

// DispatchLevel represents the SIMD instruction set a kernel is sized for.
type DispatchLevel int

const (
	// DispatchScalar indicates no SIMD, pure Go implementation.
	DispatchScalar DispatchLevel = iota

	// DispatchSSE2 indicates SSE2 instructions (x86-64 baseline).
	DispatchSSE2

	// DispatchAVX2 indicates AVX2 instructions (256-bit SIMD).
	DispatchAVX2

	// DispatchAVX512 indicates AVX-512 instructions (512-bit SIMD).
	DispatchAVX512

	// DispatchNEON indicates ARM NEON instructions (128-bit SIMD).
	DispatchNEON
)

// String returns a human-readable name for the dispatch level.
func (d DispatchLevel) String() string {
	switch d {
	case DispatchScalar:
		return "scalar"
	case DispatchSSE2:
		return "sse2"
	case DispatchAVX2:
		return "avx2"
	case DispatchAVX512:
		return "avx512"
	case DispatchNEON:
		return "neon"
	default:
		return "unknown"
	}
}

// Width returns the natural register width in bytes for the level.
func (d DispatchLevel) Width() int {
	switch d {
	case DispatchAVX2:
		return 32
	case DispatchAVX512:
		return 64
	default:
		return 16
	}
}

// currentLevel is the detected SIMD level for this runtime.
// Set by init() in dispatch_*.go files.
var currentLevel DispatchLevel

// currentWidth is the SIMD register width in bytes for the current level.
// Set by init() in dispatch_*.go files.
var currentWidth int

// currentName is the human-readable name of the current SIMD level.
// Set by init() in dispatch_*.go files.
var currentName string

// CurrentLevel returns the SIMD instruction set being used.
func CurrentLevel() DispatchLevel {
	return currentLevel
}

// CurrentWidth returns the SIMD register width in bytes.
// For example: 16 for SSE2/NEON, 32 for AVX2, 64 for AVX-512.
func CurrentWidth() int {
	return currentWidth
}

// CurrentName returns a human-readable name for the current SIMD target.
// For example: "avx2", "neon", "scalar".
func CurrentName() string {
	return currentName
}

// Capabilities is a snapshot of a SIMD target: the instruction set and the
// register width kernels should be sized for. It is passed explicitly to the
// code that picks kernels so tests can pin a width regardless of the host.
type Capabilities struct {
	Level DispatchLevel
	Width int // register width in bytes
}

// CurrentCapabilities returns the capabilities detected at init time.
func CurrentCapabilities() Capabilities {
	return Capabilities{Level: currentLevel, Width: currentWidth}
}

// CapabilitiesFor returns the capabilities of level at its natural width.
func CapabilitiesFor(level DispatchLevel) Capabilities {
	return Capabilities{Level: level, Width: level.Width()}
}

// Float32Lanes returns the number of float32 lanes in one register.
func (c Capabilities) Float32Lanes() int {
	return c.Width / 4
}

// Validate reports whether kernels exist for the capabilities' width.
func (c Capabilities) Validate() error {
	switch c.Width {
	case 16, 32, 64:
		return nil
	}
	return fmt.Errorf("hwy: unsupported vector width %d bytes for %s", c.Width, c.Level)
}

func (c Capabilities) String() string {
	return fmt.Sprintf("%s/%d", c.Level, c.Width*8)
}

// NoSimdEnv checks if the HWY_NO_SIMD environment variable is set.
// When set, Highway will use scalar fallback regardless of CPU capabilities.
// This is useful for testing and debugging.
func NoSimdEnv() bool {
	return boolEnv("HWY_NO_SIMD")
}

// NoAVX512Env checks if the HWY_NO_AVX512 environment variable is set.
// When set, AVX-512 capable hosts are treated as AVX2.
func NoAVX512Env() bool {
	return boolEnv("HWY_NO_AVX512")
}

func boolEnv(name string) bool {
	val := os.Getenv(name)
	if val == "" {
		return false
	}
	// Any non-empty value is considered true, but also parse as bool
	if b, err := strconv.ParseBool(val); err == nil {
		return b
	}
	return true
}

// MaxLanes returns the maximum number of lanes for type T with the current SIMD width.
//
// For example, with AVX2 (256 bits / 32 bytes):
//   - float32: 32/4 = 8 lanes
//   - float64: 32/8 = 4 lanes
func MaxLanes[T Floats]() int {
	var dummy T
	elementSize := int(unsafe.Sizeof(dummy))
	if elementSize == 0 {
		return 0
	}
	return currentWidth / elementSize
}

func setScalarMode() {
	currentLevel = DispatchScalar
	currentWidth = 16 // Use 16-byte vectors even in scalar mode for consistency
	currentName = "scalar"
}
