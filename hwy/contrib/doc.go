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

// Package contrib groups the neural-network building blocks written on top
// of the hwy vector types.
//
// # Subpackages
//
//   - conv: 2-D convolution with a closed set of strategies chosen per layer
//   - layout: image and filter layout conversion and weight panel packing
//   - activation: activation functions, scalar definitions and vector kernels
//   - workerpool: persistent goroutine pool with parallel-for helpers
//
// # Convolution (hwy/contrib/conv)
//
//	import "github.com/ajroetker/hwyconv/hwy/contrib/conv"
//
//	c, err := conv.New(batch, params)
//	if err != nil { ... }
//	c.SetParams(weight, bias, nil)
//	c.Forward(src, nil, dst)
//
// # Layout Conversion (hwy/contrib/layout)
//
//	import "github.com/ajroetker/hwyconv/hwy/contrib/layout"
//
//	err := layout.ConvertImage(batch, channels, h*w, src, layout.Nchw, dst, layout.Nhwc)
//	err = layout.ConvertFilter(out, in, ky*kx, weight, layout.Oiyx, packed, layout.Oyxi8o)
//
// Every vector kernel is generic over hwy.Float32x4, hwy.Float32x8 and
// hwy.Float32x16; the width is picked once from hwy.Capabilities.
package contrib
