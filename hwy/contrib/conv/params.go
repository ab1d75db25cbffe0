package conv

import (
	"fmt"

	"github.com/ajroetker/hwyconv/hwy/contrib/activation"
	"github.com/ajroetker/hwyconv/hwy/contrib/layout"
)

// DataType is the element type of a tensor.
type DataType int

const (
	Float32 DataType = iota
	Uint8
)

func (t DataType) String() string {
	switch t {
	case Float32:
		return "float32"
	case Uint8:
		return "uint8"
	default:
		return fmt.Sprintf("DataType(%d)", int(t))
	}
}

// Params describes the shape, layout and activation of one convolution
// layer. It is immutable once passed to New.
type Params struct {
	SrcC, SrcH, SrcW int
	DstC, DstH, DstW int

	KernelY, KernelX     int
	DilationY, DilationX int
	StrideY, StrideX     int

	PadTop, PadLeft, PadBottom, PadRight int

	Group int

	SrcFormat, DstFormat layout.Format
	SrcType, DstType     DataType

	Activation activation.Type
}

// OutputSize returns the output extent of one spatial dimension.
func OutputSize(src, kernel, stride, dilation, padBeg, padEnd int) int {
	return (src+padBeg+padEnd-(dilation*(kernel-1)+1))/stride + 1
}

// Validate returns an error wrapping ErrConfiguration if p is not a
// computable convolution.
func (p Params) Validate() error {
	if p.SrcType != Float32 || p.DstType != Float32 {
		return p.errorf("unsupported element types %s -> %s", p.SrcType, p.DstType)
	}
	if p.SrcFormat != layout.Nchw && p.SrcFormat != layout.Nhwc {
		return p.errorf("unsupported source format %s", p.SrcFormat)
	}
	if p.DstFormat != p.SrcFormat {
		return p.errorf("source format %s does not match destination format %s", p.SrcFormat, p.DstFormat)
	}
	if p.SrcC <= 0 || p.SrcH <= 0 || p.SrcW <= 0 || p.DstC <= 0 {
		return p.errorf("non-positive tensor size")
	}
	if p.KernelY <= 0 || p.KernelX <= 0 || p.StrideY <= 0 || p.StrideX <= 0 || p.DilationY <= 0 || p.DilationX <= 0 {
		return p.errorf("kernel, stride and dilation must be positive")
	}
	if p.PadTop < 0 || p.PadLeft < 0 || p.PadBottom < 0 || p.PadRight < 0 {
		return p.errorf("negative padding")
	}
	if p.Group <= 0 || p.SrcC%p.Group != 0 || p.DstC%p.Group != 0 {
		return p.errorf("group %d does not divide channels", p.Group)
	}
	if !p.Activation.Valid() {
		return p.errorf("unsupported activation %s", p.Activation)
	}
	dstH := OutputSize(p.SrcH, p.KernelY, p.StrideY, p.DilationY, p.PadTop, p.PadBottom)
	dstW := OutputSize(p.SrcW, p.KernelX, p.StrideX, p.DilationX, p.PadLeft, p.PadRight)
	if p.DstH != dstH || p.DstW != dstW || dstH <= 0 || dstW <= 0 {
		return p.errorf("output %dx%d does not match computed %dx%d", p.DstH, p.DstW, dstH, dstW)
	}
	return nil
}

func (p Params) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrConfiguration, p, fmt.Sprintf(format, args...))
}

// IsChannelsLast reports whether tensors are interleaved (NHWC).
func (p Params) IsChannelsLast() bool {
	return p.SrcFormat == layout.Nhwc
}

// IsKernel reports whether the kernel is k x k.
func (p Params) IsKernel(k int) bool {
	return p.KernelY == k && p.KernelX == k
}

// IsStride reports whether both strides equal s.
func (p Params) IsStride(s int) bool {
	return p.StrideY == s && p.StrideX == s
}

// IsDilation reports whether both dilations equal d.
func (p Params) IsDilation(d int) bool {
	return p.DilationY == d && p.DilationX == d
}

// IsPad reports whether all four paddings equal pad.
func (p Params) IsPad(pad int) bool {
	return p.PadTop == pad && p.PadLeft == pad && p.PadBottom == pad && p.PadRight == pad
}

// Is1x1 reports whether the convolution is a per-pixel matrix multiply:
// 1x1 kernel, unit stride and dilation, no padding.
func (p Params) Is1x1() bool {
	return p.IsKernel(1) && p.IsStride(1) && p.IsDilation(1) && p.IsPad(0)
}

// IsDepthwise reports whether every output channel reads one input channel.
func (p Params) IsDepthwise() bool {
	return p.SrcC == p.Group && p.DstC == p.Group
}

// SrcSize returns the number of source elements for batch items.
func (p Params) SrcSize(batch int) int {
	return batch * p.SrcC * p.SrcH * p.SrcW
}

// DstSize returns the number of destination elements for batch items.
func (p Params) DstSize(batch int) int {
	return batch * p.DstC * p.DstH * p.DstW
}

// WeightSize returns the number of filter elements.
func (p Params) WeightSize() int {
	return p.KernelY * p.KernelX * p.SrcC / p.Group * p.DstC
}

// WeightFormat returns the filter layout SetParams expects.
func (p Params) WeightFormat() layout.Format {
	if p.IsChannelsLast() {
		return layout.Yxio
	}
	return layout.Oiyx
}

// Flop returns the multiply-add operation count of one Forward call,
// counting each multiply-add as two operations.
func (p Params) Flop(batch int) int64 {
	return 2 * int64(batch) * int64(p.DstC*p.DstH*p.DstW) * int64(p.KernelY*p.KernelX*p.SrcC/p.Group)
}

// String returns a compact description such as 8x10x10-8x3x3-1-1-1-1-nhwc.
func (p Params) String() string {
	return fmt.Sprintf("%dx%dx%d-%dx%dx%d-%d-%d-%d-%d-%s",
		p.SrcC, p.SrcH, p.SrcW, p.DstC, p.KernelY, p.KernelX,
		p.StrideX, p.DilationX, p.PadLeft, p.Group, p.SrcFormat)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// kernelRange returns the kernel taps [beg, end) whose source coordinate
// origin + k*dilation lies inside [0, size).
func kernelRange(origin, size, kernel, dilation int) (beg, end int) {
	if origin < 0 {
		beg = ceilDiv(-origin, dilation)
	}
	end = kernel
	if last := size - origin; last <= 0 {
		end = 0
	} else {
		end = min(kernel, ceilDiv(last, dilation))
	}
	return min(beg, kernel), max(end, 0)
}
