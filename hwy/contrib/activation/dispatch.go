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

package activation

import (
	"github.com/ajroetker/hwyconv/hwy"
	"github.com/ajroetker/hwyconv/hwy/contrib/layout"
)

// Dispatched kernels, bound once at init to the detected register width.
var (
	ReLU      func(input, output []float32)
	LeakyReLU func(input, output []float32, alpha float32)
	Clamp     func(input, output []float32, lower, upper float32)
	PReLU     func(input, output, slope []float32)
	ELU       func(input, output []float32, alpha float32)
)

func init() {
	switch hwy.CurrentCapabilities().Float32Lanes() {
	case 16:
		bind[hwy.Float32x16]()
	case 8:
		bind[hwy.Float32x8]()
	default:
		bind[hwy.Float32x4]()
	}
}

func bind[V hwy.Float32Vec]() {
	ReLU = BaseReLU[V]
	LeakyReLU = BaseLeakyReLU[V]
	Clamp = BaseClamp[V]
	PReLU = BasePReLU[V]
	ELU = BaseELU[V]
}

// Apply applies t in place to data whose elements all belong to one channel,
// such as a planar (NCHW) feature map plane. params must pass CheckParams.
func Apply(t Type, params []float32, data []float32, channel int) {
	if len(data) == 0 {
		return
	}
	switch t {
	case Relu:
		ReLU(data, data)
	case LeakyRelu:
		LeakyReLU(data, data, params[0])
	case RestrictRange:
		if err := RestrictRangeLayer(data, params[0], params[1], data); err != nil {
			panic(err)
		}
	case Prelu:
		preluLayer(data, params[channel:channel+1], 1, len(data), data, layout.Nchw)
	case Elu:
		ELU(data, data, params[0])
	}
}

// ApplyInterleaved applies t in place to channels-last data, where element i
// belongs to channel i % channels.
func ApplyInterleaved(t Type, params []float32, data []float32, channels int) {
	if t != Prelu {
		Apply(t, params, data, 0)
		return
	}
	if pixels := len(data) / channels; pixels > 0 {
		preluLayer(data, params, channels, pixels, data, layout.Nhwc)
	}
}
