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
	"fmt"

	"github.com/ajroetker/hwyconv/hwy/contrib/layout"
)

// PreluLayer computes the per-channel parametric ReLU of one image of
// channels x spatial values stored in f:
//
//	dst = src if src > 0, else slope[c] * src
//
// src and dst may be the same slice. Blocked formats get a zeroed channel
// padding in dst.
func PreluLayer(src, slope []float32, channels, spatial int, dst []float32, f layout.Format) error {
	if !f.IsImage() {
		return fmt.Errorf("%w: %s is not an image format", layout.ErrUnsupportedFormat, f)
	}
	need := layout.ImageSize(1, channels, spatial, f)
	if channels <= 0 || spatial <= 0 || len(src) < need || len(dst) < need {
		return fmt.Errorf("activation: prelu %s image %dx%d needs %d values, got src %d dst %d",
			f, channels, spatial, need, len(src), len(dst))
	}
	if len(slope) < channels {
		return fmt.Errorf("activation: prelu has %d slopes, need %d", len(slope), channels)
	}
	preluLayer(src, slope, channels, spatial, dst, f)
	return nil
}

// preluLayer is PreluLayer without the argument checks.
func preluLayer(src, slope []float32, channels, spatial int, dst []float32, f layout.Format) {
	switch f {
	case layout.Nchw:
		for c := range channels {
			off := c * spatial
			LeakyReLU(src[off:off+spatial], dst[off:off+spatial], slope[c])
		}
	case layout.Nhwc:
		for s := range spatial {
			off := s * channels
			PReLU(src[off:off+channels], dst[off:off+channels], slope[:channels])
		}
	default:
		align := f.Alignment()
		block := make([]float32, align)
		for c0 := 0; c0 < channels; c0 += align {
			live := min(align, channels-c0)
			clear(block)
			copy(block, slope[c0:c0+live])
			base := c0 * spatial
			for s := range spatial {
				off := base + s*align
				PReLU(src[off:off+align], dst[off:off+align], block)
				clear(dst[off+live : off+align])
			}
		}
	}
}

// RestrictRangeLayer clamps every value of src to [lower, upper] and stores
// the result in dst. src and dst may be the same slice.
func RestrictRangeLayer(src []float32, lower, upper float32, dst []float32) error {
	if lower > upper {
		return fmt.Errorf("activation: restrictrange lower %v > upper %v", lower, upper)
	}
	if len(dst) < len(src) {
		return fmt.Errorf("activation: restrictrange dst has %d values, need %d", len(dst), len(src))
	}
	Clamp(src, dst[:len(src)], lower, upper)
	return nil
}
