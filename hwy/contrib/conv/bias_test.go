package conv

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ajroetker/hwyconv/hwy/contrib/activation"
	"github.com/ajroetker/hwyconv/hwy/contrib/layout"
	"github.com/ajroetker/hwyconv/hwy/contrib/workerpool"
)

func TestBiasActivation(t *testing.T) {
	pool := workerpool.New(4)
	defer pool.Close()
	for _, f := range []layout.Format{layout.Nchw, layout.Nhwc} {
		for _, act := range []activation.Type{activation.Identity, activation.RestrictRange, activation.Prelu} {
			// 64x64 outputs with 8 channels cross the parallel threshold.
			for _, srcH := range []int{3, 66} {
				p := shape(2, srcH, srcH, 8, 3, 1, 1, 0, 1, f, act)
				t.Run(fmt.Sprintf("%s/%s/%dx%d", f, act, p.DstH, p.DstW), func(t *testing.T) {
					spatial := p.DstH * p.DstW
					bias := intData(p.DstC, 5)
					params := activationParams(act, p.DstC)
					dst := intData(p.DstSize(1), 6)
					want := make([]float32, len(dst))
					for i, v := range dst {
						c := i / spatial
						if f == layout.Nhwc {
							c = i % p.DstC
						}
						want[i] = activation.Scalar(act, v+bias[c], params, c)
					}
					biasActivation(pool, p, bias, params, dst)
					if diff := cmp.Diff(want, dst); diff != "" {
						t.Errorf("biasActivation mismatch (-want +got):\n%s", diff)
					}
				})
			}
		}
	}
}
