package conv

import (
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/ajroetker/hwyconv/hwy/contrib/activation"
	"github.com/ajroetker/hwyconv/hwy/contrib/workerpool"
)

// depthwiseDotProduct computes depthwise layers whose kernel covers the
// whole unpadded source: every output value is the dot product of one
// source channel with its filter.
type depthwiseDotProduct struct {
	p      Params
	batch  int
	weight []float32
	bias   []float32
	params []float32
}

func newDepthwise(batch int, p Params) *depthwiseDotProduct {
	return &depthwiseDotProduct{p: p, batch: batch}
}

func (c *depthwiseDotProduct) kind() Strategy { return StrategyDepthwiseDotProduct }

func (c *depthwiseDotProduct) externalBufferSize() int { return 0 }

func (c *depthwiseDotProduct) internalBufferSize() int {
	return len(c.weight) + len(c.bias) + len(c.params)
}

func (c *depthwiseDotProduct) setParams(weight, bias, params []float32) {
	c.weight = append(c.weight[:0], weight[:c.p.WeightSize()]...)
	c.bias, c.params = copyParams(bias[:c.p.DstC], params)
}

func (c *depthwiseDotProduct) forward(pool *workerpool.Pool, src, _, dst []float32) {
	p := c.p
	size := p.SrcH * p.SrcW
	// Planar channels are contiguous. Interleaved channels, and Yxio
	// filters, stride by the channel count.
	inc := 1
	if p.IsChannelsLast() {
		inc = p.SrcC
	}
	for b := range c.batch {
		in, out := src[b*p.SrcSize(1):], dst[b*p.DstC:(b+1)*p.DstC]
		pool.ParallelFor(p.DstC, func(start, end int) {
			for d := start; d < end; d++ {
				x := blas32.Vector{N: size, Inc: inc, Data: in[c.offset(d):]}
				w := blas32.Vector{N: size, Inc: inc, Data: c.weight[c.offset(d):]}
				out[d] = blas32.Dot(x, w) + c.bias[d]
			}
		})
		activation.ApplyInterleaved(p.Activation, c.params, out, p.DstC)
	}
}

// offset returns the index of the first element of channel d in both the
// source and the filter.
func (c *depthwiseDotProduct) offset(d int) int {
	if c.p.IsChannelsLast() {
		return d
	}
	return d * c.p.SrcH * c.p.SrcW
}
