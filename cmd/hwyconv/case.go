package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/ajroetker/hwyconv/hwy/contrib/activation"
	"github.com/ajroetker/hwyconv/hwy/contrib/conv"
	"github.com/ajroetker/hwyconv/hwy/contrib/layout"
)

// testCase is one convolution layer given on the command line.
type testCase struct {
	name  string
	batch int
	p     conv.Params
}

// defaultCases covers every strategy and the direct engine's borders.
var defaultCases = []string{
	"1:8x10x10-8x3x3-1-1-1-1-nhwc-relu",
	"2:5x9x11-17x3x3-1-1-1-1-nhwc-identity",
	"1:6x13x12-20x3x3-2-2-2-1-nhwc-leakyrelu",
	"2:24x5x7-33x1x1-1-1-0-1-nhwc-prelu",
	"1:3x8x15-16x5x5-1-1-2-1-nhwc-elu",
	"1:32x16x16-32x3x3-1-1-1-1-nchw-relu",
	"1:20x9x6-17x3x3-1-1-0-1-nhwc-restrictrange",
	"2:1x20x20-8x3x3-1-1-1-1-nchw-relu",
	"1:8x7x6-6x3x3-2-1-1-2-nchw-relu",
	"1:8x7x6-6x3x3-1-2-2-2-nhwc-relu",
	"2:6x5x5-6x5x5-1-1-0-6-nchw-relu",
	"1:12x5x5-9x1x1-1-1-0-3-nhwc-identity",
}

// parseCase parses N:CxHxW-DxKyxKx-S-D-P-G-layout-act.
func parseCase(s string) (testCase, error) {
	tc := testCase{name: s, batch: 1}
	body := s
	if n, rest, ok := strings.Cut(s, ":"); ok {
		batch, err := strconv.Atoi(n)
		if err != nil || batch <= 0 {
			return tc, fmt.Errorf("case %q: invalid batch %q", s, n)
		}
		tc.batch, body = batch, rest
	}

	fields := strings.Split(body, "-")
	if len(fields) != 8 {
		return tc, fmt.Errorf("case %q: want 8 '-' separated fields, got %d", s, len(fields))
	}
	src, err := dims(fields[0])
	if err != nil {
		return tc, fmt.Errorf("case %q: source: %w", s, err)
	}
	dst, err := dims(fields[1])
	if err != nil {
		return tc, fmt.Errorf("case %q: output: %w", s, err)
	}
	scalars := make([]int, 4)
	for i, f := range fields[2:6] {
		if scalars[i], err = strconv.Atoi(f); err != nil {
			return tc, fmt.Errorf("case %q: field %d: %w", s, i+3, err)
		}
	}
	format, err := layout.ParseFormat(fields[6])
	if err != nil {
		return tc, fmt.Errorf("case %q: %w", s, err)
	}
	act, err := activation.ParseType(fields[7])
	if err != nil {
		return tc, fmt.Errorf("case %q: %w", s, err)
	}

	stride, dilation, pad, group := scalars[0], scalars[1], scalars[2], scalars[3]
	p := conv.Params{
		SrcC: src[0], SrcH: src[1], SrcW: src[2],
		DstC:    dst[0],
		KernelY: dst[1], KernelX: dst[2],
		DilationY: dilation, DilationX: dilation,
		StrideY: stride, StrideX: stride,
		PadTop: pad, PadLeft: pad, PadBottom: pad, PadRight: pad,
		Group:     group,
		SrcFormat: format, DstFormat: format,
		Activation: act,
	}
	if stride > 0 && dilation > 0 {
		p.DstH = conv.OutputSize(p.SrcH, p.KernelY, stride, dilation, pad, pad)
		p.DstW = conv.OutputSize(p.SrcW, p.KernelX, stride, dilation, pad, pad)
	}
	if err := p.Validate(); err != nil {
		return tc, fmt.Errorf("case %q: %w", s, err)
	}
	tc.p = p
	return tc, nil
}

// dims parses AxBxC.
func dims(s string) ([3]int, error) {
	var out [3]int
	parts := strings.Split(s, "x")
	if len(parts) != 3 {
		return out, fmt.Errorf("%q is not AxBxC", s)
	}
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil {
			return out, fmt.Errorf("%q: %w", s, err)
		}
		out[i] = v
	}
	return out, nil
}

// parseCases parses args, or the default cases when args is empty.
// Duplicates are dropped.
func parseCases(args []string) ([]testCase, error) {
	if len(args) == 0 {
		args = defaultCases
	}
	cases := make([]testCase, 0, len(args))
	for _, arg := range lo.Uniq(args) {
		tc, err := parseCase(arg)
		if err != nil {
			return nil, err
		}
		cases = append(cases, tc)
	}
	return cases, nil
}

// activationParams returns representative parameters for the case's
// activation.
func (tc testCase) activationParams() []float32 {
	switch tc.p.Activation {
	case activation.LeakyRelu:
		return []float32{0.1}
	case activation.RestrictRange:
		return []float32{0, 6}
	case activation.Prelu:
		return lo.Times(tc.p.DstC, func(i int) float32 { return 0.05 * float32(i%5) })
	case activation.Elu:
		return []float32{1}
	default:
		return nil
	}
}
