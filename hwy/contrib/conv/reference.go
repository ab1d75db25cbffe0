package conv

import "github.com/ajroetker/hwyconv/hwy/contrib/activation"

// Reference computes the convolution with plain nested loops, for
// comparison and testing. It accepts any valid Params, with weights in
// p.WeightFormat() order. bias may be nil.
//
// Each output sums its products in kernel-row, kernel-column, input-channel
// order starting from zero, then adds the bias and applies the activation.
func Reference(batch int, p Params, weight, bias, params, src, dst []float32) {
	srcCg, dstCg := p.SrcC/p.Group, p.DstC/p.Group
	last := p.IsChannelsLast()

	srcIndex := func(c, y, x int) int {
		if last {
			return (y*p.SrcW+x)*p.SrcC + c
		}
		return (c*p.SrcH+y)*p.SrcW + x
	}
	dstIndex := func(c, y, x int) int {
		if last {
			return (y*p.DstW+x)*p.DstC + c
		}
		return (c*p.DstH+y)*p.DstW + x
	}
	weightIndex := func(d, c, ky, kx int) int {
		if last {
			return ((ky*p.KernelX+kx)*srcCg+c)*p.DstC + d
		}
		return ((d*srcCg+c)*p.KernelY+ky)*p.KernelX + kx
	}

	for b := range batch {
		in := src[b*p.SrcSize(1):]
		out := dst[b*p.DstSize(1):]
		for d := range p.DstC {
			g := d / dstCg
			var bv float32
			if bias != nil {
				bv = bias[d]
			}
			for dy := range p.DstH {
				for dx := range p.DstW {
					var sum float32
					for ky := range p.KernelY {
						sy := dy*p.StrideY - p.PadTop + ky*p.DilationY
						if sy < 0 || sy >= p.SrcH {
							continue
						}
						for kx := range p.KernelX {
							sx := dx*p.StrideX - p.PadLeft + kx*p.DilationX
							if sx < 0 || sx >= p.SrcW {
								continue
							}
							for c := range srcCg {
								sum += in[srcIndex(g*srcCg+c, sy, sx)] * weight[weightIndex(d, c, ky, kx)]
							}
						}
					}
					out[dstIndex(d, dy, dx)] = activation.Scalar(p.Activation, sum+bv, params, d)
				}
			}
		}
	}
}
