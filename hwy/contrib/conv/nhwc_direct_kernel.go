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

import "github.com/ajroetker/hwyconv/hwy"

// Micro-kernels of the direct engine.
//
// Each kernel computes up to MicroD output channels of 1, 3 or 6 output
// pixels spaced geo.pixX apart in the source. For every kernel tap and input
// channel it broadcasts one source value per pixel and multiplies it into two
// accumulator registers per pixel, reusing the two weight registers across
// all pixels of the group.
//
// s0 is the source offset of the first pixel's window origin for input
// channel sc; it may be negative when the window starts in the padding, but
// only taps in [ky0, ky1) x [kx0, kx1) are read. weight is the micro-panel
// [KernelY][KernelX][srcC][MicroD]. n is the number of live output channels
// starting at ch; lanes past n are never stored.

func (c *nhwcDirect[V]) kernel6(src []float32, s0, ky0, ky1, kx0, kx1, srcC int, weight, dst []float32, ch, n int, e *epilogue) {
	g := &c.geo
	f := hwy.NumLanes[V]()
	var a0, a1 [6]V
	for ky := ky0; ky < ky1; ky++ {
		for kx := kx0; kx < kx1; kx++ {
			so := s0 + ky*g.rowY + kx*g.colX
			w := weight[(ky*g.kx+kx)*srcC*g.microD:]
			if n > f {
				for ci := range srcC {
					w0, w1 := w[:f], w[f:2*f]
					for i := range 6 {
						s := src[so+i*g.pixX+ci]
						hwy.MulAddScalar(&a0[i], s, w0)
						hwy.MulAddScalar(&a1[i], s, w1)
					}
					w = w[g.microD:]
				}
			} else {
				for ci := range srcC {
					w0 := w[:f]
					for i := range 6 {
						hwy.MulAddScalar(&a0[i], src[so+i*g.pixX+ci], w0)
					}
					w = w[g.microD:]
				}
			}
		}
	}
	for i := range 6 {
		store2(e, dst[i*g.dstC:], &a0[i], &a1[i], ch, n)
	}
}

func (c *nhwcDirect[V]) kernel3(src []float32, s0, ky0, ky1, kx0, kx1, srcC int, weight, dst []float32, ch, n int, e *epilogue) {
	g := &c.geo
	f := hwy.NumLanes[V]()
	var a0, a1 [3]V
	for ky := ky0; ky < ky1; ky++ {
		for kx := kx0; kx < kx1; kx++ {
			so := s0 + ky*g.rowY + kx*g.colX
			w := weight[(ky*g.kx+kx)*srcC*g.microD:]
			if n > f {
				for ci := range srcC {
					w0, w1 := w[:f], w[f:2*f]
					for i := range 3 {
						s := src[so+i*g.pixX+ci]
						hwy.MulAddScalar(&a0[i], s, w0)
						hwy.MulAddScalar(&a1[i], s, w1)
					}
					w = w[g.microD:]
				}
			} else {
				for ci := range srcC {
					w0 := w[:f]
					for i := range 3 {
						hwy.MulAddScalar(&a0[i], src[so+i*g.pixX+ci], w0)
					}
					w = w[g.microD:]
				}
			}
		}
	}
	for i := range 3 {
		store2(e, dst[i*g.dstC:], &a0[i], &a1[i], ch, n)
	}
}

func (c *nhwcDirect[V]) kernel1(src []float32, s0, ky0, ky1, kx0, kx1, srcC int, weight, dst []float32, ch, n int, e *epilogue) {
	g := &c.geo
	f := hwy.NumLanes[V]()
	var a0, a1 V
	for ky := ky0; ky < ky1; ky++ {
		for kx := kx0; kx < kx1; kx++ {
			ps := src[s0+ky*g.rowY+kx*g.colX:]
			w := weight[(ky*g.kx+kx)*srcC*g.microD:]
			if n > f {
				for ci := range srcC {
					hwy.MulAddScalar(&a0, ps[ci], w[:f])
					hwy.MulAddScalar(&a1, ps[ci], w[f:2*f])
					w = w[g.microD:]
				}
			} else {
				for ci := range srcC {
					hwy.MulAddScalar(&a0, ps[ci], w[:f])
					w = w[g.microD:]
				}
			}
		}
	}
	store2(e, dst, &a0, &a1, ch, n)
}
