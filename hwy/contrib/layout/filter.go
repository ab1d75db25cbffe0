package layout

import "fmt"

// ConvertFilter converts a filter bank of output x input x kernel weights
// from srcFormat to dstFormat.
//
// Supported pairs are every combination of Oiyx, Yxio and one blocked
// OyxiXo format, plus identity copies.
func ConvertFilter(output, input, kernel int, src []float32, srcFormat Format, dst []float32, dstFormat Format) error {
	if !srcFormat.IsFilter() || !dstFormat.IsFilter() {
		return unsupported(srcFormat, dstFormat)
	}
	srcSize := FilterSize(output, input, kernel, srcFormat)
	dstSize := FilterSize(output, input, kernel, dstFormat)
	if len(src) < srcSize || len(dst) < dstSize {
		return fmt.Errorf("layout: filter buffers too short for %s[%d x %d x %d]", srcFormat, output, input, kernel)
	}

	sa, da := srcFormat.Alignment(), dstFormat.Alignment()
	switch {
	case srcFormat == dstFormat:
		copy(dst[:dstSize], src[:srcSize])
	case srcFormat == Oiyx && dstFormat == Yxio:
		// [O][I*K] -> [K][I][O]: a transpose per (i, k) pair.
		for o := range output {
			for i := range input {
				for k := range kernel {
					dst[(k*input+i)*output+o] = src[(o*input+i)*kernel+k]
				}
			}
		}
	case srcFormat == Yxio && dstFormat == Oiyx:
		for k := range kernel {
			for i := range input {
				row := src[(k*input+i)*output:]
				for o := range output {
					dst[(o*input+i)*kernel+k] = row[o]
				}
			}
		}
	case srcFormat == Yxio && da > 1:
		PackFilterPanel(src, output, input, kernel, 0, output, 0, input, da, dst)
	case srcFormat == Oiyx && da > 1:
		for ob := 0; ob < output; ob += da {
			n := min(da, output-ob)
			block := dst[ob*kernel*input:]
			for k := range kernel {
				for i := range input {
					out := block[(k*input+i)*da : (k*input+i)*da+da]
					for j := range n {
						out[j] = src[((ob+j)*input+i)*kernel+k]
					}
					clear(out[n:])
				}
			}
		}
	case sa > 1 && dstFormat == Yxio:
		for ob := 0; ob < output; ob += sa {
			n := min(sa, output-ob)
			block := src[ob*kernel*input:]
			for k := range kernel {
				for i := range input {
					in := block[(k*input+i)*sa:]
					copy(dst[(k*input+i)*output+ob:(k*input+i)*output+ob+n], in[:n])
				}
			}
		}
	case sa > 1 && dstFormat == Oiyx:
		for o := range output {
			block := src[AlignLo(o, sa)*kernel*input:]
			for i := range input {
				for k := range kernel {
					dst[(o*input+i)*kernel+k] = block[(k*input+i)*sa+o%sa]
				}
			}
		}
	default:
		return unsupported(srcFormat, dstFormat)
	}
	return nil
}

// PackFilterPanel packs the sub-block [oStart, oStart+oCount) x
// [iStart, iStart+iCount) of a Yxio filter bank into micro-panels of microD
// output channels.
//
// The packed layout is [ceil(oCount/microD)][kernel][iCount][microD]: for a
// given kernel position and input channel the microD weights of consecutive
// output channels are contiguous, so a micro-kernel loads them as registers.
// Output channels past output are zero-filled.
//
// Parameters:
//   - src: filter bank in Yxio order, [kernel][input][output]
//   - output, input, kernel: dimensions of the full filter bank
//   - oStart, oCount: output channel range to pack
//   - iStart, iCount: input channel range to pack
//   - microD: micro-panel width
//   - dst: destination, at least PanelSize(oCount, iCount, kernel, microD) long
//
// Returns the number of elements written.
func PackFilterPanel(src []float32, output, input, kernel, oStart, oCount, iStart, iCount, microD int, dst []float32) int {
	packIdx := 0
	for ob := oStart; ob < oStart+oCount; ob += microD {
		// Only channels inside both the requested block and the bank are live.
		n := max(0, min(microD, oStart+oCount-ob, output-ob))
		for k := range kernel {
			for i := iStart; i < iStart+iCount; i++ {
				out := dst[packIdx : packIdx+microD]
				row := src[(k*input+i)*output:]
				copy(out[:n], row[ob:ob+n])
				clear(out[n:])
				packIdx += microD
			}
		}
	}
	return packIdx
}

// PanelSize returns the number of elements PackFilterPanel writes.
func PanelSize(oCount, iCount, kernel, microD int) int {
	return AlignHi(oCount, microD) * iCount * kernel
}
