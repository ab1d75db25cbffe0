package conv

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/ajroetker/hwyconv/hwy/contrib/workerpool"
)

// gemmNN lowers the convolution to one matrix multiply per group.
//
// Planar layers multiply the Oiyx weights [Dg x K] by an im2col matrix
// [K x pixels]. Channels-last layers multiply an im2row matrix
// [pixels x K] by the Yxio weights [K x Dg]. K = KernelY*KernelX*SrcC/Group.
// 1x1 unit-stride unpadded layers use the source directly.
type gemmNN struct {
	p      Params
	batch  int
	weight []float32
	bias   []float32
	params []float32
}

func newGemmNN(batch int, p Params) *gemmNN {
	return &gemmNN{p: p, batch: batch}
}

func (c *gemmNN) kind() Strategy { return StrategyGemmNN }

func (c *gemmNN) externalBufferSize() int {
	if c.p.Is1x1() {
		return 0
	}
	p := c.p
	return p.KernelY * p.KernelX * p.SrcC * p.DstH * p.DstW
}

func (c *gemmNN) internalBufferSize() int {
	return len(c.weight) + len(c.bias) + len(c.params)
}

func (c *gemmNN) setParams(weight, bias, params []float32) {
	c.weight = append(c.weight[:0], weight[:c.p.WeightSize()]...)
	c.bias, c.params = copyParams(bias[:c.p.DstC], params)
}

func (c *gemmNN) forward(pool *workerpool.Pool, src, buf, dst []float32) {
	p := c.p
	srcSize, dstSize := p.SrcSize(1), p.DstSize(1)
	for b := range c.batch {
		in, out := src[b*srcSize:(b+1)*srcSize], dst[b*dstSize:(b+1)*dstSize]
		if p.IsChannelsLast() {
			c.forwardNhwc(in, buf, out)
		} else {
			c.forwardNchw(in, buf, out)
		}
		biasActivation(pool, p, c.bias, c.params, out)
	}
}

func (c *gemmNN) forwardNchw(src, buf, dst []float32) {
	p := c.p
	srcCg, dstCg := p.SrcC/p.Group, p.DstC/p.Group
	k := srcCg * p.KernelY * p.KernelX
	n := p.DstH * p.DstW
	col := src
	if !p.Is1x1() {
		im2col(p, src, buf)
		col = buf
	}
	for g := range p.Group {
		// With Is1x1, K = srcCg and the group's planes are the column matrix.
		a := blas32.General{Rows: dstCg, Cols: k, Stride: k, Data: c.weight[g*dstCg*k:]}
		bm := blas32.General{Rows: k, Cols: n, Stride: n, Data: col[g*k*n:]}
		cm := blas32.General{Rows: dstCg, Cols: n, Stride: n, Data: dst[g*dstCg*n:]}
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, a, bm, 0, cm)
	}
}

func (c *gemmNN) forwardNhwc(src, buf, dst []float32) {
	p := c.p
	srcCg, dstCg := p.SrcC/p.Group, p.DstC/p.Group
	k := srcCg * p.KernelY * p.KernelX
	m := p.DstH * p.DstW
	rows, stride := src, p.SrcC
	if !p.Is1x1() {
		im2row(p, src, buf)
		rows, stride = buf, k*p.Group
	}
	for g := range p.Group {
		a := blas32.General{Rows: m, Cols: k, Stride: stride, Data: rows[g*k:]}
		bm := blas32.General{Rows: k, Cols: dstCg, Stride: p.DstC, Data: c.weight[g*dstCg:]}
		cm := blas32.General{Rows: m, Cols: dstCg, Stride: p.DstC, Data: dst[g*dstCg:]}
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, a, bm, 0, cm)
	}
}

// im2col expands a planar image into [SrcC*KernelY*KernelX][DstH*DstW],
// rows ordered (channel, ky, kx), with zeros for padded taps.
func im2col(p Params, src, buf []float32) {
	n := p.DstH * p.DstW
	row := 0
	for c := range p.SrcC {
		plane := src[c*p.SrcH*p.SrcW:]
		for ky := range p.KernelY {
			for kx := range p.KernelX {
				out := buf[row*n : (row+1)*n]
				for dy := range p.DstH {
					sy := dy*p.StrideY - p.PadTop + ky*p.DilationY
					line := out[dy*p.DstW : (dy+1)*p.DstW]
					if sy < 0 || sy >= p.SrcH {
						clear(line)
						continue
					}
					for dx := range line {
						sx := dx*p.StrideX - p.PadLeft + kx*p.DilationX
						if sx < 0 || sx >= p.SrcW {
							line[dx] = 0
						} else {
							line[dx] = plane[sy*p.SrcW+sx]
						}
					}
				}
				row++
			}
		}
	}
}

// im2row expands a channels-last image into [DstH*DstW][Group][KernelY]
// [KernelX][SrcC/Group], with zeros for padded taps.
func im2row(p Params, src, buf []float32) {
	srcCg := p.SrcC / p.Group
	width := p.KernelY * p.KernelX * p.SrcC
	for dy := range p.DstH {
		for dx := range p.DstW {
			out := buf[(dy*p.DstW+dx)*width:]
			i := 0
			for g := range p.Group {
				for ky := range p.KernelY {
					sy := dy*p.StrideY - p.PadTop + ky*p.DilationY
					for kx := range p.KernelX {
						sx := dx*p.StrideX - p.PadLeft + kx*p.DilationX
						taps := out[i : i+srcCg]
						if sy < 0 || sy >= p.SrcH || sx < 0 || sx >= p.SrcW {
							clear(taps)
						} else {
							copy(taps, src[(sy*p.SrcW+sx)*p.SrcC+g*srcCg:])
						}
						i += srcCg
					}
				}
			}
		}
	}
}
