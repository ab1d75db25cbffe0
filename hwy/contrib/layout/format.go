// Package layout converts feature maps and filter banks between the memory
// layouts used by the convolution kernels.
//
// Images (feature maps) are described per batch item by a channel count and
// a spatial size (height*width):
//
//	Nchw     [channels][spatial]                  planar
//	Nhwc     [spatial][channels]                  interleaved
//	NchwXc   [ceil(channels/X)][spatial][X]       channel-blocked, X = 4, 8, 16
//
// Filters are described by output channels O, input channels I and a kernel
// size K (kernelY*kernelX):
//
//	Oiyx     [O][I][K]
//	Yxio     [K][I][O]
//	OyxiXo   [ceil(O/X)][K][I][X]                 output-blocked, X = 4, 8, 16
//
// Blocked layouts zero-fill the channel padding of their last block. AddBias
// and Scale apply per-channel layer operations to an image in any of them.
package layout

import (
	"errors"
	"fmt"
	"strings"
)

// Format identifies an image or filter memory layout.
type Format int

const (
	Unknown Format = iota

	// Image formats.
	Nchw
	Nhwc
	Nchw4c
	Nchw8c
	Nchw16c

	// Filter formats.
	Oiyx
	Yxio
	Oyxi4o
	Oyxi8o
	Oyxi16o
)

// ErrUnsupportedConversion is returned for a pair of formats that has no
// converter. Callers must handle it; there is no fallback conversion.
var ErrUnsupportedConversion = errors.New("layout: unsupported conversion")

// ErrUnsupportedFormat is returned by the layer operations for a format that
// is not an image layout.
var ErrUnsupportedFormat = errors.New("layout: unsupported format")

var formatNames = map[Format]string{
	Nchw:    "nchw",
	Nhwc:    "nhwc",
	Nchw4c:  "nchw4c",
	Nchw8c:  "nchw8c",
	Nchw16c: "nchw16c",
	Oiyx:    "oiyx",
	Yxio:    "yxio",
	Oyxi4o:  "oyxi4o",
	Oyxi8o:  "oyxi8o",
	Oyxi16o: "oyxi16o",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat returns the format named s (case-insensitive).
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for f, n := range formatNames {
		if n == name {
			return f, nil
		}
	}
	return Unknown, fmt.Errorf("layout: unknown format %q", s)
}

// IsImage reports whether f is a feature map layout.
func (f Format) IsImage() bool {
	return f >= Nchw && f <= Nchw16c
}

// IsFilter reports whether f is a filter layout.
func (f Format) IsFilter() bool {
	return f >= Oiyx && f <= Oyxi16o
}

// Alignment returns the channel block size of f: 1 for the planar and
// interleaved layouts, X for the blocked ones.
func (f Format) Alignment() int {
	switch f {
	case Nchw4c, Oyxi4o:
		return 4
	case Nchw8c, Oyxi8o:
		return 8
	case Nchw16c, Oyxi16o:
		return 16
	default:
		return 1
	}
}

// ImageSize returns the number of elements of a batch of images in f.
func ImageSize(batch, channels, spatial int, f Format) int {
	return batch * AlignHi(channels, f.Alignment()) * spatial
}

// FilterSize returns the number of elements of a filter bank in f.
func FilterSize(output, input, kernel int, f Format) int {
	return AlignHi(output, f.Alignment()) * input * kernel
}

// AlignHi rounds n up to a multiple of align.
func AlignHi(n, align int) int {
	return (n + align - 1) / align * align
}

// AlignLo rounds n down to a multiple of align.
func AlignLo(n, align int) int {
	return n / align * align
}

func unsupported(src, dst Format) error {
	return fmt.Errorf("%w: %s to %s", ErrUnsupportedConversion, src, dst)
}
