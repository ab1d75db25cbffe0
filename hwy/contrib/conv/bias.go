package conv

import (
	"github.com/ajroetker/hwyconv/hwy/contrib/activation"
	"github.com/ajroetker/hwyconv/hwy/contrib/layout"
	"github.com/ajroetker/hwyconv/hwy/contrib/workerpool"
)

// biasActivation adds the bias and applies the activation in place to one
// batch item of dst, for strategies that produce raw sums.
func biasActivation(pool *workerpool.Pool, p Params, bias, params, dst []float32) {
	spatial := p.DstH * p.DstW
	last := p.IsChannelsLast()
	rows, cols := p.DstC, spatial
	if last {
		rows, cols = spatial, p.DstC
	}
	// Each row is a one-channel planar image or a one-pixel interleaved one.
	activation.ParallelApplyRows(pool, dst, rows, cols, func(r int, row []float32) {
		var err error
		if last {
			err = layout.AddBias(bias, p.DstC, 1, row, layout.Nhwc)
		} else {
			err = layout.AddBias(bias[r:r+1], 1, spatial, row, layout.Nchw)
		}
		if err != nil {
			panic(err)
		}
	})
	activation.ParallelApply(pool, p.Activation, params, dst, rows, cols, last)
}

// copyParams returns private copies of bias and activation parameters.
func copyParams(bias, params []float32) ([]float32, []float32) {
	return append([]float32(nil), bias...), append([]float32(nil), params...)
}
