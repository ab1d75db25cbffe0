package conv

import (
	"github.com/ajroetker/hwyconv/hwy/contrib/activation"
	"github.com/ajroetker/hwyconv/hwy/contrib/workerpool"
)

// directNchw computes small-kernel planar layers by accumulating each
// weighted source plane into its output plane. Output channels are
// independent and run in parallel.
type directNchw struct {
	p      Params
	batch  int
	weight []float32
	bias   []float32
	params []float32
}

func newDirectNchw(batch int, p Params) *directNchw {
	return &directNchw{p: p, batch: batch}
}

func (c *directNchw) kind() Strategy { return StrategyDirectNchw }

func (c *directNchw) externalBufferSize() int { return 0 }

func (c *directNchw) internalBufferSize() int {
	return len(c.weight) + len(c.bias) + len(c.params)
}

func (c *directNchw) setParams(weight, bias, params []float32) {
	c.weight = append(c.weight[:0], weight[:c.p.WeightSize()]...)
	c.bias, c.params = copyParams(bias[:c.p.DstC], params)
}

func (c *directNchw) forward(pool *workerpool.Pool, src, _, dst []float32) {
	p := c.p
	planes := c.batch * p.DstC
	pool.ParallelFor(planes, func(start, end int) {
		for i := start; i < end; i++ {
			b, d := i/p.DstC, i%p.DstC
			c.plane(src[b*p.SrcSize(1):], d, dst[(b*p.DstC+d)*p.DstH*p.DstW:])
		}
	})
}

// plane computes output channel d of one batch item.
func (c *directNchw) plane(src []float32, d int, dst []float32) {
	p := c.p
	srcCg, dstCg := p.SrcC/p.Group, p.DstC/p.Group
	c0 := d / dstCg * srcCg
	out := dst[:p.DstH*p.DstW]
	clear(out)
	for s := range srcCg {
		plane := src[(c0+s)*p.SrcH*p.SrcW:]
		w := c.weight[(d*srcCg+s)*p.KernelY*p.KernelX:]
		for dy := range p.DstH {
			oy := dy*p.StrideY - p.PadTop
			kyBeg, kyEnd := kernelRange(oy, p.SrcH, p.KernelY, 1)
			row := out[dy*p.DstW : (dy+1)*p.DstW]
			for ky := kyBeg; ky < kyEnd; ky++ {
				line := plane[(oy+ky)*p.SrcW : (oy+ky+1)*p.SrcW]
				for kx := range p.KernelX {
					wv := w[ky*p.KernelX+kx]
					for dx := range row {
						sx := dx*p.StrideX - p.PadLeft + kx
						if sx >= 0 && sx < p.SrcW {
							row[dx] += line[sx] * wv
						}
					}
				}
			}
		}
	}
	b := c.bias[d]
	for i := range out {
		out[i] += b
	}
	activation.Apply(p.Activation, c.params, out, d)
}
