package layout

import "fmt"

// ConvertImage converts a batch of images from srcFormat to dstFormat.
//
// Supported pairs are every combination of Nchw, Nhwc and one blocked NchwXc
// format, plus identity copies. Converting between two different blocked
// formats returns ErrUnsupportedConversion.
func ConvertImage(batch, channels, spatial int, src []float32, srcFormat Format, dst []float32, dstFormat Format) error {
	if !srcFormat.IsImage() || !dstFormat.IsImage() {
		return unsupported(srcFormat, dstFormat)
	}
	srcSize := ImageSize(1, channels, spatial, srcFormat)
	dstSize := ImageSize(1, channels, spatial, dstFormat)
	if len(src) < batch*srcSize || len(dst) < batch*dstSize {
		return fmt.Errorf("layout: image buffers too short for %d x %s[%d x %d]", batch, srcFormat, channels, spatial)
	}

	var convert func(src, dst []float32)
	sa, da := srcFormat.Alignment(), dstFormat.Alignment()
	switch {
	case srcFormat == dstFormat:
		convert = func(src, dst []float32) { copy(dst[:dstSize], src[:srcSize]) }
	case srcFormat == Nchw && dstFormat == Nhwc:
		convert = func(src, dst []float32) { Transpose(src, channels, spatial, dst) }
	case srcFormat == Nhwc && dstFormat == Nchw:
		convert = func(src, dst []float32) { Transpose(src, spatial, channels, dst) }
	case srcFormat == Nchw && da > 1:
		convert = func(src, dst []float32) { chwToChwXc(src, channels, spatial, da, dst) }
	case srcFormat == Nhwc && da > 1:
		convert = func(src, dst []float32) { hwcToChwXc(src, channels, spatial, da, dst) }
	case sa > 1 && dstFormat == Nchw:
		convert = func(src, dst []float32) { chwXcToChw(src, channels, spatial, sa, dst) }
	case sa > 1 && dstFormat == Nhwc:
		convert = func(src, dst []float32) { chwXcToHwc(src, channels, spatial, sa, dst) }
	default:
		return unsupported(srcFormat, dstFormat)
	}

	for b := range batch {
		convert(src[b*srcSize:], dst[b*dstSize:])
	}
	return nil
}

// transposeBlock is the tile edge used by Transpose.
const transposeBlock = 16

// Transpose writes the k x m transpose of the row-major m x k matrix src to
// dst. It walks square tiles so both sides stay cache resident.
func Transpose(src []float32, m, k int, dst []float32) {
	if m == 0 || k == 0 {
		return
	}
	_ = src[m*k-1]
	_ = dst[m*k-1]
	for i0 := 0; i0 < m; i0 += transposeBlock {
		i1 := min(i0+transposeBlock, m)
		for j0 := 0; j0 < k; j0 += transposeBlock {
			j1 := min(j0+transposeBlock, k)
			for i := i0; i < i1; i++ {
				row := src[i*k : i*k+k]
				for j := j0; j < j1; j++ {
					dst[j*m+i] = row[j]
				}
			}
		}
	}
}

func chwToChwXc(src []float32, channels, spatial, x int, dst []float32) {
	for cb := 0; cb < channels; cb += x {
		n := min(x, channels-cb)
		block := dst[cb*spatial:]
		for s := range spatial {
			out := block[s*x : s*x+x]
			for i := range n {
				out[i] = src[(cb+i)*spatial+s]
			}
			clear(out[n:])
		}
	}
}

func hwcToChwXc(src []float32, channels, spatial, x int, dst []float32) {
	for cb := 0; cb < channels; cb += x {
		n := min(x, channels-cb)
		block := dst[cb*spatial:]
		for s := range spatial {
			out := block[s*x : s*x+x]
			copy(out, src[s*channels+cb:s*channels+cb+n])
			clear(out[n:])
		}
	}
}

func chwXcToChw(src []float32, channels, spatial, x int, dst []float32) {
	for c := range channels {
		block := src[AlignLo(c, x)*spatial:]
		out := dst[c*spatial : c*spatial+spatial]
		for s := range out {
			out[s] = block[s*x+c%x]
		}
	}
}

func chwXcToHwc(src []float32, channels, spatial, x int, dst []float32) {
	for cb := 0; cb < channels; cb += x {
		n := min(x, channels-cb)
		block := src[cb*spatial:]
		for s := range spatial {
			copy(dst[s*channels+cb:s*channels+cb+n], block[s*x:s*x+n])
		}
	}
}
