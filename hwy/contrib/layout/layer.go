package layout

import "fmt"

// AddBias adds bias[c] in place to every value of channel c of one image of
// channels x spatial values stored in f. The channel padding of blocked
// formats is left untouched.
func AddBias(bias []float32, channels, spatial int, dst []float32, f Format) error {
	if err := checkImage(channels, spatial, len(dst), f); err != nil {
		return err
	}
	if len(bias) < channels {
		return fmt.Errorf("layout: bias has %d values, need %d", len(bias), channels)
	}
	switch f {
	case Nchw:
		for c := range channels {
			b := bias[c]
			plane := dst[c*spatial : (c+1)*spatial]
			for i := range plane {
				plane[i] += b
			}
		}
	case Nhwc:
		bias = bias[:channels]
		for s := range spatial {
			pixel := dst[s*channels : (s+1)*channels]
			for c, b := range bias {
				pixel[c] += b
			}
		}
	default:
		forEachBlock(channels, spatial, f.Alignment(), func(c0, live, off int) {
			b := bias[c0 : c0+live]
			for i, v := range b {
				dst[off+i] += v
			}
		})
	}
	return nil
}

// Scale computes dst = src*scale[c] + bias[c] for every value of channel c of
// one image stored in f. bias may be nil. src and dst may be the same slice.
// Blocked formats get a zeroed channel padding in dst.
func Scale(src, scale, bias []float32, channels, spatial int, dst []float32, f Format) error {
	if err := checkImage(channels, spatial, len(src), f); err != nil {
		return err
	}
	if err := checkImage(channels, spatial, len(dst), f); err != nil {
		return err
	}
	if len(scale) < channels {
		return fmt.Errorf("layout: scale has %d values, need %d", len(scale), channels)
	}
	if bias != nil && len(bias) < channels {
		return fmt.Errorf("layout: bias has %d values, need %d", len(bias), channels)
	}
	biasAt := func(c int) float32 {
		if bias == nil {
			return 0
		}
		return bias[c]
	}
	switch f {
	case Nchw:
		for c := range channels {
			k, b := scale[c], biasAt(c)
			off := c * spatial
			for i := off; i < off+spatial; i++ {
				dst[i] = src[i]*k + b
			}
		}
	case Nhwc:
		for s := range spatial {
			off := s * channels
			for c := range channels {
				dst[off+c] = src[off+c]*scale[c] + biasAt(c)
			}
		}
	default:
		align := f.Alignment()
		forEachBlock(channels, spatial, align, func(c0, live, off int) {
			for i := range live {
				dst[off+i] = src[off+i]*scale[c0+i] + biasAt(c0+i)
			}
			clear(dst[off+live : off+align])
		})
	}
	return nil
}

// forEachBlock calls fn for every pixel of every channel block of a blocked
// image: c0 is the block's first channel, live the number of real channels
// in it and off the offset of the pixel's first lane.
func forEachBlock(channels, spatial, align int, fn func(c0, live, off int)) {
	for c0 := 0; c0 < channels; c0 += align {
		live := min(align, channels-c0)
		base := c0 * spatial
		for s := range spatial {
			fn(c0, live, base+s*align)
		}
	}
}

func checkImage(channels, spatial, size int, f Format) error {
	if !f.IsImage() {
		return fmt.Errorf("%w: %s is not an image format", ErrUnsupportedFormat, f)
	}
	if channels <= 0 || spatial <= 0 {
		return fmt.Errorf("layout: invalid image %dx%d", channels, spatial)
	}
	if need := ImageSize(1, channels, spatial, f); size < need {
		return fmt.Errorf("layout: %s image %dx%d needs %d values, got %d", f, channels, spatial, need, size)
	}
	return nil
}
