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

// Package conv implements forward 2-D convolution over float32 feature maps
// in planar (NCHW) or channels-last (NHWC) layout, fused with bias and an
// activation function.
//
// A Convolution is built once per shape with New, which validates the
// parameters and picks one strategy from a closed set:
//
//   - DepthwiseDotProduct: depthwise layers whose kernel covers the whole image
//   - Winograd: F(2x2, 3x3) transform for wide 3x3 stride 1 layers
//   - NhwcDirect: macro/micro tiled direct convolution for channels-last data
//   - DirectNchw: direct loops for small planar layers
//   - GemmNN: im2col/im2row followed by a matrix multiply, used as fallback
//
// The strategy and the register width of its kernels are fixed at
// construction; Forward performs no further dispatch.
//
// # NhwcDirect
//
// The direct engine partitions the work as
//
//	for each block of MacroD output channels        (L3 budget for weights)
//	  for each block of MacroC input channels       (L1 budget)
//	    for each block of MacroH output rows        (L2 budget for source rows)
//	      for each MicroD = 2*lanes output channels
//	        for each output row: nose, body, tail pixels
//
// Body pixels are computed 6, 3 or 1 at a time by micro-kernels that hold two
// accumulator vectors per pixel. Pixels whose window is clipped by padding use
// the single-pixel kernel with a narrowed kernel range, so no padded copy of
// the input is ever built.
//
// When MacroC < SrcC the input channels are reduced over several passes and
// each pass tags its stores with a Term: the first pass writes raw partial
// sums, middle passes add to them, and the last pass adds, applies the bias
// and the activation.
//
// # Weights
//
// SetParams takes weights in Oiyx order ([DstC][SrcC/Group][KernelY][KernelX])
// for planar layers and Yxio order ([KernelY][KernelX][SrcC/Group][DstC]) for
// channels-last layers, and reorders them into the strategy's private layout.
//
// # Usage
//
//	c, err := conv.New(1, params)
//	if err != nil {
//		return err
//	}
//	c.SetParams(weight, bias, nil)
//	c.Forward(src, nil, dst)
package conv
