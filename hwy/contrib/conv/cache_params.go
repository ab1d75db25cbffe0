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

package conv

import (
	"fmt"

	"github.com/ajroetker/hwyconv/hwy"
	"github.com/ajroetker/hwyconv/hwy/contrib/layout"
)

// CacheSizes holds the per-core cache budgets, in bytes, that bound the
// working sets of the direct engine's macro blocks.
type CacheSizes struct {
	L1 int // input-channel block of the weights (MacroC)
	L2 int // source rows feeding one row block (MacroH)
	L3 int // weight slab of one output-channel block (MacroD)
}

// CacheSizesAVX512 assumes 32KB L1d, 1MB L2 and a 2MB L3 slice per core
// (Skylake-X and later).
func CacheSizesAVX512() CacheSizes {
	return CacheSizes{L1: 32 * 1024, L2: 1024 * 1024, L3: 2 * 1024 * 1024}
}

// CacheSizesAVX2 assumes 32KB L1d, 256KB L2 and a 2MB L3 slice per core
// (Haswell and later).
func CacheSizesAVX2() CacheSizes {
	return CacheSizes{L1: 32 * 1024, L2: 256 * 1024, L3: 2 * 1024 * 1024}
}

// CacheSizesNEON assumes 64KB L1d, 512KB L2 and 2MB of shared cache per
// core (Cortex-A76 and Apple cores are larger).
func CacheSizesNEON() CacheSizes {
	return CacheSizes{L1: 64 * 1024, L2: 512 * 1024, L3: 2 * 1024 * 1024}
}

// CacheSizesFallback returns conservative budgets for unknown hardware.
func CacheSizesFallback() CacheSizes {
	return CacheSizes{L1: 32 * 1024, L2: 256 * 1024, L3: 1024 * 1024}
}

// CacheSizesFor returns the budgets for a dispatch level.
func CacheSizesFor(level hwy.DispatchLevel) CacheSizes {
	switch level {
	case hwy.DispatchAVX512:
		return CacheSizesAVX512()
	case hwy.DispatchAVX2:
		return CacheSizesAVX2()
	case hwy.DispatchNEON:
		return CacheSizesNEON()
	default:
		return CacheSizesFallback()
	}
}

// AlgorithmParameters partitions a direct convolution into cache-sized
// blocks.
//
//   - MicroD: output channels per micro-tile, two registers wide
//   - MacroH: output rows per row block
//   - MacroC: input channels per reduction pass
//   - MacroD: output channels per weight slab, a multiple of MicroD
type AlgorithmParameters struct {
	MicroD int
	MacroH int
	MacroC int
	MacroD int
}

func (a AlgorithmParameters) String() string {
	return fmt.Sprintf("microD=%d macroH=%d macroC=%d macroD=%d", a.MicroD, a.MacroH, a.MacroC, a.MacroD)
}

// NewAlgorithmParameters derives the block sizes for p from the cache
// budgets, with MicroD output channels per micro-tile.
func NewAlgorithmParameters(p Params, microD int, cache CacheSizes) AlgorithmParameters {
	const elem = 4 // sizeof(float32)
	kernel := p.KernelY * p.KernelX

	a := AlgorithmParameters{MicroD: microD}

	// One micro-panel of weights for the whole channel block stays in L1.
	a.MacroC = min(max(layout.AlignLo(cache.L1/kernel/microD/elem, 4), 1), p.SrcC)

	// The source rows read by a row block stay in L2.
	a.MacroH = 1
	for h := p.DstH; h > 1; h-- {
		rows := (h-1)*p.StrideY + (p.KernelY-1)*p.DilationY + 1
		if a.MacroC*p.SrcW*rows*elem <= cache.L2 {
			a.MacroH = h
			break
		}
	}

	// The weights of one output-channel block stay in L3.
	a.MacroD = min(max(layout.AlignLo(cache.L3/kernel/a.MacroC/elem, microD), microD), layout.AlignHi(p.DstC, microD))
	return a
}

// override replaces the non-zero block sizes of a with those of o, clamped
// so the loop nest stays valid.
func (a AlgorithmParameters) override(p Params, o AlgorithmParameters) AlgorithmParameters {
	if o.MacroC > 0 {
		a.MacroC = min(o.MacroC, p.SrcC)
	}
	if o.MacroH > 0 {
		a.MacroH = min(o.MacroH, p.DstH)
	}
	if o.MacroD > 0 {
		a.MacroD = min(layout.AlignHi(o.MacroD, a.MicroD), layout.AlignHi(p.DstC, a.MicroD))
	}
	return a
}
