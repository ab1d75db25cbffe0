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
	"github.com/ajroetker/hwyconv/hwy"
	"github.com/ajroetker/hwyconv/hwy/contrib/layout"
	"github.com/ajroetker/hwyconv/hwy/contrib/workerpool"
)

// nhwcDirect is the macro/micro tiled direct convolution for channels-last
// tensors with one group. V is the register type; MicroD = 2*lanes(V).
//
// Weights are packed per (output block, input block) pair as
//
//	[ceil(macroD/MicroD)][KernelY][KernelX][macroC][MicroD]
//
// with blocks laid out output-block major, so the slab for output channel
// dc and input channel sc starts at dc*K*SrcC + AlignHi(macroD, MicroD)*K*sc.
type nhwcDirect[V hwy.Float32Vec] struct {
	p     Params
	batch int
	alg   AlgorithmParameters
	geo   geometry

	weight []float32
	bias   []float32
	params []float32
}

// geometry holds the strides and border split shared by all kernels.
type geometry struct {
	srcC   int // source pixel stride
	dstC   int // destination pixel stride
	rowY   int // source offset of one kernel row: DilationY*SrcW*SrcC
	colX   int // source offset of one kernel column: DilationX*SrcC
	pixX   int // source offset between neighboring output pixels: StrideX*SrcC
	kx     int // full kernel width, the weight row length in taps
	noseW  int // output columns [0, noseW) are clipped on the left
	bodyW  int // output columns [noseW, bodyW) see the full kernel width
	is1x1  bool
	microD int
}

func newNhwcDirect[V hwy.Float32Vec](batch int, p Params, alg AlgorithmParameters) *nhwcDirect[V] {
	c := &nhwcDirect[V]{p: p, batch: batch, alg: alg}
	g := &c.geo
	g.srcC = p.SrcC
	g.dstC = p.DstC
	g.rowY = p.DilationY * p.SrcW * p.SrcC
	g.colX = p.DilationX * p.SrcC
	g.pixX = p.StrideX * p.SrcC
	g.kx = p.KernelX
	g.is1x1 = p.Is1x1()
	g.microD = alg.MicroD

	g.noseW = min(p.DstW, ceilDiv(p.PadLeft, p.StrideX))
	g.bodyW = g.noseW
	if last := p.SrcW - 1 + p.PadLeft - (p.KernelX-1)*p.DilationX; last >= 0 {
		g.bodyW = max(g.noseW, min(p.DstW, last/p.StrideX+1))
	}
	return c
}

func (c *nhwcDirect[V]) kind() Strategy { return StrategyNhwcDirect }

func (c *nhwcDirect[V]) algorithmParameters() AlgorithmParameters { return c.alg }

func (c *nhwcDirect[V]) externalBufferSize() int { return 0 }

func (c *nhwcDirect[V]) internalBufferSize() int {
	return len(c.weight) + len(c.bias) + len(c.params)
}

func (c *nhwcDirect[V]) setParams(weight, bias, params []float32) {
	p, a := c.p, c.alg
	kernel := p.KernelY * p.KernelX
	dstCA := layout.AlignHi(p.DstC, a.MicroD)

	if len(c.weight) != dstCA*kernel*p.SrcC {
		c.weight = make([]float32, dstCA*kernel*p.SrcC)
	}
	off := 0
	for dc := 0; dc < p.DstC; dc += a.MacroD {
		macroD := min(p.DstC, dc+a.MacroD) - dc
		for sc := 0; sc < p.SrcC; sc += a.MacroC {
			macroC := min(p.SrcC, sc+a.MacroC) - sc
			off += layout.PackFilterPanel(weight, p.DstC, p.SrcC, kernel, dc, macroD, sc, macroC, a.MicroD, c.weight[off:])
		}
	}

	c.bias = make([]float32, dstCA)
	copy(c.bias, bias[:p.DstC])
	c.params = make([]float32, max(dstCA, len(params)))
	copy(c.params, params)
}

func (c *nhwcDirect[V]) forward(pool *workerpool.Pool, src, _, dst []float32) {
	p, a := c.p, c.alg
	srcSize, dstSize := p.SrcSize(1), p.DstSize(1)
	if pool == nil {
		for b := range c.batch {
			c.forwardRegion(src[b*srcSize:(b+1)*srcSize], dst[b*dstSize:(b+1)*dstSize], 0, p.DstC, 0, p.DstH)
		}
		return
	}

	// Each cell owns a disjoint (batch item, channel block, row block) region
	// of dst and runs every input-channel pass for it.
	blocksD := ceilDiv(p.DstC, a.MacroD)
	blocksH := ceilDiv(p.DstH, a.MacroH)
	pool.ParallelForGrid(c.batch*blocksD, blocksH, func(row, col int) {
		b, dc, y := row/blocksD, (row%blocksD)*a.MacroD, col*a.MacroH
		c.forwardRegion(src[b*srcSize:(b+1)*srcSize], dst[b*dstSize:(b+1)*dstSize],
			dc, min(dc+a.MacroD, p.DstC), y, min(y+a.MacroH, p.DstH))
	})
}

// forwardRegion computes output channels [dcBeg, dcEnd) of rows
// [yBeg, yEnd) for one batch item. dcBeg must be a multiple of MacroD.
func (c *nhwcDirect[V]) forwardRegion(src, dst []float32, dcBeg, dcEnd, yBeg, yEnd int) {
	p, a := c.p, c.alg
	kernel := p.KernelY * p.KernelX
	for dc := dcBeg; dc < dcEnd; dc += a.MacroD {
		macroD := min(dcEnd, dc+a.MacroD) - dc
		for sc := 0; sc < p.SrcC; sc += a.MacroC {
			macroC := min(p.SrcC, sc+a.MacroC) - sc
			weight := c.weight[dc*kernel*p.SrcC+layout.AlignHi(macroD, a.MicroD)*kernel*sc:]
			e := &epilogue{
				term:   termFor(sc, macroC, p.SrcC, a),
				act:    p.Activation,
				bias:   c.bias,
				params: c.params,
			}
			for y := yBeg; y < yEnd; y += a.MacroH {
				rowEnd := min(y+a.MacroH, yEnd)
				if c.geo.is1x1 {
					c.convolve1x1(src, dst, dc, macroD, sc, macroC, y, rowEnd, weight, e)
				} else {
					c.convolve(src, dst, dc, macroD, sc, macroC, y, rowEnd, weight, e)
				}
			}
		}
	}
}

// convolve runs one (channel block, input block, row block) step. weight
// starts at the block's first micro-panel.
func (c *nhwcDirect[V]) convolve(src, dst []float32, dc, macroD, sc, macroC, yBeg, yEnd int, weight []float32, e *epilogue) {
	p, g := c.p, &c.geo
	panel := p.KernelY * p.KernelX * macroC * g.microD
	for d := 0; d < macroD; d += g.microD {
		n := min(g.microD, macroD-d)
		w := weight[(d/g.microD)*panel:]
		ch := dc + d
		for dy := yBeg; dy < yEnd; dy++ {
			sy := dy*p.StrideY - p.PadTop
			ky0, ky1 := kernelRange(sy, p.SrcH, p.KernelY, p.DilationY)
			row := sy*p.SrcW*p.SrcC + sc
			out := dy*p.DstW*p.DstC + ch

			// Nose: left padding clips the kernel.
			dx := 0
			for ; dx < g.noseW; dx++ {
				sx := dx*p.StrideX - p.PadLeft
				kx0, kx1 := kernelRange(sx, p.SrcW, p.KernelX, p.DilationX)
				c.kernel1(src, row+sx*p.SrcC, ky0, ky1, kx0, kx1, macroC, w, dst[out+dx*g.dstC:], ch, n, e)
			}

			// Body: full kernel width, 6, 3, then 1 pixels at a time.
			for ; dx+6 <= g.bodyW; dx += 6 {
				sx := dx*p.StrideX - p.PadLeft
				c.kernel6(src, row+sx*p.SrcC, ky0, ky1, 0, p.KernelX, macroC, w, dst[out+dx*g.dstC:], ch, n, e)
			}
			for ; dx+3 <= g.bodyW; dx += 3 {
				sx := dx*p.StrideX - p.PadLeft
				c.kernel3(src, row+sx*p.SrcC, ky0, ky1, 0, p.KernelX, macroC, w, dst[out+dx*g.dstC:], ch, n, e)
			}
			for ; dx < g.bodyW; dx++ {
				sx := dx*p.StrideX - p.PadLeft
				c.kernel1(src, row+sx*p.SrcC, ky0, ky1, 0, p.KernelX, macroC, w, dst[out+dx*g.dstC:], ch, n, e)
			}

			// Tail: right padding clips the kernel.
			for ; dx < p.DstW; dx++ {
				sx := dx*p.StrideX - p.PadLeft
				kx0, kx1 := kernelRange(sx, p.SrcW, p.KernelX, p.DilationX)
				c.kernel1(src, row+sx*p.SrcC, ky0, ky1, kx0, kx1, macroC, w, dst[out+dx*g.dstC:], ch, n, e)
			}
		}
	}
}

// convolve1x1 treats rows [yBeg, yEnd) as one run of pixels, which is valid
// because a 1x1 unit-stride unpadded convolution maps pixel i to pixel i.
func (c *nhwcDirect[V]) convolve1x1(src, dst []float32, dc, macroD, sc, macroC, yBeg, yEnd int, weight []float32, e *epilogue) {
	p, g := c.p, &c.geo
	pixels := (yEnd - yBeg) * p.DstW
	first := yBeg * p.DstW
	for d := 0; d < macroD; d += g.microD {
		n := min(g.microD, macroD-d)
		w := weight[(d/g.microD)*macroC*g.microD:]
		ch := dc + d
		s0 := first*p.SrcC + sc
		d0 := first*p.DstC + ch
		i := 0
		for ; i+6 <= pixels; i += 6 {
			c.kernel6(src, s0+i*p.SrcC, 0, 1, 0, 1, macroC, w, dst[d0+i*g.dstC:], ch, n, e)
		}
		for ; i+3 <= pixels; i += 3 {
			c.kernel3(src, s0+i*p.SrcC, 0, 1, 0, 1, macroC, w, dst[d0+i*g.dstC:], ch, n, e)
		}
		for ; i < pixels; i++ {
			c.kernel1(src, s0+i*p.SrcC, 0, 1, 0, 1, macroC, w, dst[d0+i*g.dstC:], ch, n, e)
		}
	}
}
