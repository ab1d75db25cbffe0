package conv

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ajroetker/hwyconv/hwy"
	"github.com/ajroetker/hwyconv/hwy/contrib/activation"
	"github.com/ajroetker/hwyconv/hwy/contrib/layout"
	"github.com/ajroetker/hwyconv/hwy/contrib/workerpool"
)

var (
	avx2   = hwy.CapabilitiesFor(hwy.DispatchAVX2)
	avx512 = hwy.CapabilitiesFor(hwy.DispatchAVX512)
	scalar = hwy.CapabilitiesFor(hwy.DispatchScalar)
)

// approx tolerates reassociation in strategies that reorder the sums.
var approx = cmpopts.EquateApprox(1e-4, 1e-3)

// shape returns square-kernel parameters with symmetric padding and the
// output size derived from the input.
func shape(srcC, srcH, srcW, dstC, kernel, stride, dilation, pad, group int, f layout.Format, act activation.Type) Params {
	p := Params{
		SrcC: srcC, SrcH: srcH, SrcW: srcW, DstC: dstC,
		KernelY: kernel, KernelX: kernel,
		DilationY: dilation, DilationX: dilation,
		StrideY: stride, StrideX: stride,
		PadTop: pad, PadLeft: pad, PadBottom: pad, PadRight: pad,
		Group:     group,
		SrcFormat: f, DstFormat: f,
		Activation: act,
	}
	p.fixOutput()
	return p
}

func (p *Params) fixOutput() {
	p.DstH = OutputSize(p.SrcH, p.KernelY, p.StrideY, p.DilationY, p.PadTop, p.PadBottom)
	p.DstW = OutputSize(p.SrcW, p.KernelX, p.StrideX, p.DilationX, p.PadLeft, p.PadRight)
}

// intData returns n small integers in [-3, 3], so that every sum is exact
// in float32 regardless of its order.
func intData(n int, seed uint64) []float32 {
	r := rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15))
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(r.IntN(7) - 3)
	}
	return data
}

// activationParams returns parameters valid for t over channels outputs.
func activationParams(t activation.Type, channels int) []float32 {
	switch t {
	case activation.LeakyRelu:
		return []float32{0.25}
	case activation.RestrictRange:
		return []float32{-2, 6}
	case activation.Prelu:
		slope := make([]float32, channels)
		for i := range slope {
			slope[i] = float32(i%4) * 0.125
		}
		return slope
	case activation.Elu:
		return []float32{0.5}
	default:
		return nil
	}
}

// run computes p with the given options and with Reference. It returns the
// Convolution and both outputs.
func run(t *testing.T, batch int, p Params, opts ...Option) (c *Convolution, got, want []float32) {
	t.Helper()
	c, err := New(batch, p, opts...)
	if err != nil {
		t.Fatalf("New(%s): %v", p, err)
	}
	weight := intData(p.WeightSize(), 1)
	bias := intData(p.DstC, 2)
	params := activationParams(p.Activation, p.DstC)
	src := intData(p.SrcSize(batch), 3)

	c.SetParams(weight, bias, params)
	got = make([]float32, p.DstSize(batch))
	c.Forward(src, nil, got)

	want = make([]float32, p.DstSize(batch))
	Reference(batch, p, weight, bias, params, src, want)
	return c, got, want
}

func TestStrategiesMatchReference(t *testing.T) {
	nhwc, nchw := layout.Nhwc, layout.Nchw
	relu := activation.Relu
	tests := []struct {
		name     string
		strategy Strategy
		batch    int
		p        Params
	}{
		{"direct/3x3-pad1", StrategyNhwcDirect, 2, shape(5, 9, 11, 17, 3, 1, 1, 1, 1, nhwc, relu)},
		{"direct/3x3-stride2-dil2", StrategyNhwcDirect, 1, shape(6, 13, 12, 20, 3, 2, 2, 2, 1, nhwc, relu)},
		{"direct/5x5-pad2", StrategyNhwcDirect, 1, shape(3, 8, 15, 16, 5, 1, 1, 2, 1, nhwc, activation.Identity)},
		{"direct/1x1", StrategyNhwcDirect, 2, shape(24, 5, 7, 33, 1, 1, 1, 0, 1, nhwc, relu)},
		{"direct/narrow", StrategyNhwcDirect, 1, shape(4, 3, 2, 8, 3, 1, 1, 1, 1, nhwc, relu)},
		{"direct/wide-kernel", StrategyNhwcDirect, 1, shape(2, 6, 4, 9, 5, 1, 1, 3, 1, nhwc, relu)},
		{"gemm/nchw-group2", StrategyGemmNN, 2, shape(8, 7, 6, 6, 3, 2, 1, 1, 2, nchw, relu)},
		{"gemm/nhwc-group2", StrategyGemmNN, 2, shape(8, 7, 6, 6, 3, 1, 2, 2, 2, nhwc, relu)},
		{"gemm/nchw-1x1", StrategyGemmNN, 1, shape(12, 5, 5, 10, 1, 1, 1, 0, 1, nchw, relu)},
		{"gemm/nhwc-1x1-group3", StrategyGemmNN, 1, shape(12, 5, 5, 9, 1, 1, 1, 0, 3, nhwc, relu)},
		{"winograd/nchw-pad1", StrategyWinograd, 1, shape(17, 8, 7, 18, 3, 1, 1, 1, 1, nchw, relu)},
		{"winograd/nhwc-pad0", StrategyWinograd, 2, shape(20, 9, 6, 17, 3, 1, 1, 0, 1, nhwc, relu)},
		{"directnchw/3x3", StrategyDirectNchw, 2, shape(1, 9, 10, 8, 3, 1, 1, 1, 1, nchw, relu)},
		{"directnchw/2x2-stride2", StrategyDirectNchw, 1, shape(1, 8, 9, 4, 2, 2, 1, 0, 1, nchw, relu)},
		{"directnchw/depthwise", StrategyDirectNchw, 1, shape(4, 7, 7, 4, 3, 1, 1, 1, 4, nchw, relu)},
		{"depthwise/nchw", StrategyDepthwiseDotProduct, 2, shape(6, 5, 4, 6, 1, 1, 1, 0, 6, nchw, relu)},
		{"depthwise/nhwc", StrategyDepthwiseDotProduct, 2, shape(6, 5, 4, 6, 1, 1, 1, 0, 6, nhwc, relu)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.p
			if tt.strategy == StrategyDepthwiseDotProduct {
				p.KernelY, p.KernelX = p.SrcH, p.SrcW
				p.fixOutput()
			}
			c, got, want := run(t, tt.batch, p, WithCapabilities(avx2), WithStrategies(tt.strategy))
			if c.Strategy() != tt.strategy {
				t.Fatalf("Strategy() = %s, want %s", c.Strategy(), tt.strategy)
			}
			opt := approx
			if tt.strategy == StrategyNhwcDirect {
				opt = cmp.Options{}
			}
			if diff := cmp.Diff(want, got, opt); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestActivations(t *testing.T) {
	for _, act := range activation.Types() {
		for _, s := range []Strategy{StrategyNhwcDirect, StrategyGemmNN} {
			t.Run(fmt.Sprintf("%s/%s", act, s), func(t *testing.T) {
				p := shape(7, 6, 6, 12, 3, 1, 1, 1, 1, layout.Nhwc, act)
				_, got, want := run(t, 1, p, WithCapabilities(avx2), WithStrategies(s))
				if diff := cmp.Diff(want, got, approx); diff != "" {
					t.Errorf("mismatch (-want +got):\n%s", diff)
				}
			})
		}
	}
}

// TestConcreteScenario checks hand-computed outputs of a 3x3 same-padded
// ReLU layer over 8 channels, where the input element at flat channels-last
// index i is i mod 7 and every filter of output channel d is (d%3)-1.
//
// A pixel at flat position q sums its 8 channels to 21 + q%7, so the
// outputs of channels with d%3 == 2 are sums of those pixel sums.
func TestConcreteScenario(t *testing.T) {
	p := shape(8, 10, 10, 8, 3, 1, 1, 1, 1, layout.Nhwc, activation.Relu)
	src := make([]float32, p.SrcSize(1))
	for i := range src {
		src[i] = float32(i % 7)
	}
	weight := make([]float32, p.WeightSize())
	for i := range weight {
		weight[i] = float32(i%p.DstC%3 - 1)
	}
	for _, caps := range []hwy.Capabilities{scalar, avx2, avx512} {
		t.Run(caps.String(), func(t *testing.T) {
			c, err := New(1, p, WithCapabilities(caps))
			if err != nil {
				t.Fatal(err)
			}
			if c.Strategy() != StrategyNhwcDirect {
				t.Fatalf("Strategy() = %s, want NhwcDirect", c.Strategy())
			}
			c.SetParams(weight, nil, nil)
			dst := make([]float32, p.DstSize(1))
			c.Forward(src, nil, dst)

			at := func(y, x, d int) float32 { return dst[(y*p.DstW+x)*p.DstC+d] }
			for _, tt := range []struct {
				y, x int
				want float32
			}{{0, 0, 92}, {1, 1, 211}, {9, 9, 94}} {
				for d := range p.DstC {
					want := float32(0)
					if d%3 == 2 {
						want = tt.want
					}
					if got := at(tt.y, tt.x, d); got != want {
						t.Errorf("dst[%d,%d,%d] = %v, want %v", tt.y, tt.x, d, got, want)
					}
				}
			}

			want := make([]float32, p.DstSize(1))
			Reference(1, p, weight, nil, nil, src, want)
			if diff := cmp.Diff(want, dst); diff != "" {
				t.Errorf("mismatch vs Reference (-want +got):\n%s", diff)
			}
		})
	}
}

// TestChannelTail checks that output channels past DstC are never written
// when DstC is not a multiple of the micro-block.
func TestChannelTail(t *testing.T) {
	const sentinel = -12345
	for _, p := range []Params{
		shape(5, 6, 7, 17, 3, 1, 1, 1, 1, layout.Nhwc, activation.Relu),
		shape(9, 4, 4, 17, 1, 1, 1, 0, 1, layout.Nhwc, activation.Relu),
		shape(3, 5, 5, 5, 3, 2, 1, 1, 1, layout.Nhwc, activation.Identity),
	} {
		t.Run(p.String(), func(t *testing.T) {
			c, err := New(1, p, WithCapabilities(avx2), WithStrategies(StrategyNhwcDirect))
			if err != nil {
				t.Fatal(err)
			}
			weight := intData(p.WeightSize(), 4)
			bias := intData(p.DstC, 5)
			src := intData(p.SrcSize(1), 6)
			c.SetParams(weight, bias, nil)

			size := p.DstSize(1)
			dst := make([]float32, size+64)
			for i := range dst {
				dst[i] = sentinel
			}
			c.Forward(src, nil, dst[:size])
			for i, v := range dst[size:] {
				if v != sentinel {
					t.Fatalf("dst[%d] = %v past the end was overwritten", size+i, v)
				}
			}
			want := make([]float32, size)
			Reference(1, p, weight, bias, nil, src, want)
			if diff := cmp.Diff(want, dst[:size]); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestMacroTilingInvariance checks that every blocking of the direct engine
// produces the same output.
func TestMacroTilingInvariance(t *testing.T) {
	layers := []Params{
		shape(13, 9, 11, 20, 3, 1, 1, 1, 1, layout.Nhwc, activation.Relu),
		shape(10, 6, 5, 40, 1, 1, 1, 0, 1, layout.Nhwc, activation.LeakyRelu),
		shape(7, 10, 9, 33, 3, 2, 1, 0, 1, layout.Nhwc, activation.Identity),
	}
	blockings := []AlgorithmParameters{
		{},
		{MacroC: 1},
		{MacroC: 4},
		{MacroC: 3, MacroH: 2},
		{MacroH: 1},
		{MacroD: 16},
		{MacroC: 5, MacroH: 3, MacroD: 16},
	}
	for _, p := range layers {
		for _, alg := range blockings {
			t.Run(fmt.Sprintf("%s/%s", p, alg), func(t *testing.T) {
				c, got, want := run(t, 2, p, WithCapabilities(avx2), WithAlgorithmParameters(alg))
				if alg.MacroC > 0 && c.AlgorithmParameters().MacroC != alg.MacroC {
					t.Errorf("MacroC = %d, want %d", c.AlgorithmParameters().MacroC, alg.MacroC)
				}
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("mismatch (-want +got):\n%s", diff)
				}
			})
		}
	}
}

// TestPaddingMatchesExplicitZeros compares a padded layer against the same
// layer run on an explicitly zero-padded input.
func TestPaddingMatchesExplicitZeros(t *testing.T) {
	p := shape(6, 7, 8, 16, 3, 1, 1, 0, 1, layout.Nhwc, activation.Relu)
	p.PadTop, p.PadLeft, p.PadBottom, p.PadRight = 2, 1, 0, 3
	p.fixOutput()

	q := p
	q.SrcH += p.PadTop + p.PadBottom
	q.SrcW += p.PadLeft + p.PadRight
	q.PadTop, q.PadLeft, q.PadBottom, q.PadRight = 0, 0, 0, 0

	weight := intData(p.WeightSize(), 7)
	bias := intData(p.DstC, 8)
	src := intData(p.SrcSize(1), 9)
	padded := make([]float32, q.SrcSize(1))
	for y := range p.SrcH {
		for x := range p.SrcW {
			copy(padded[((y+p.PadTop)*q.SrcW+x+p.PadLeft)*p.SrcC:], src[(y*p.SrcW+x)*p.SrcC:(y*p.SrcW+x+1)*p.SrcC])
		}
	}

	forward := func(p Params, src []float32) []float32 {
		c, err := New(1, p, WithCapabilities(avx2))
		if err != nil {
			t.Fatal(err)
		}
		c.SetParams(weight, bias, nil)
		dst := make([]float32, p.DstSize(1))
		c.Forward(src, nil, dst)
		return dst
	}
	if diff := cmp.Diff(forward(q, padded), forward(p, src)); diff != "" {
		t.Errorf("mismatch (-explicit +implicit):\n%s", diff)
	}
}

func TestForwardParallel(t *testing.T) {
	pool := workerpool.New(runtime.NumCPU())
	defer pool.Close()
	tests := []struct {
		strategy Strategy
		p        Params
	}{
		{StrategyNhwcDirect, shape(16, 20, 20, 40, 3, 1, 1, 1, 1, layout.Nhwc, activation.Relu)},
		{StrategyGemmNN, shape(16, 20, 20, 40, 3, 1, 1, 1, 1, layout.Nchw, activation.Relu)},
		{StrategyWinograd, shape(24, 12, 12, 24, 3, 1, 1, 1, 1, layout.Nchw, activation.Relu)},
		{StrategyDirectNchw, shape(1, 30, 30, 8, 3, 1, 1, 1, 1, layout.Nchw, activation.Relu)},
	}
	for _, tt := range tests {
		t.Run(tt.strategy.String(), func(t *testing.T) {
			opts := []Option{WithCapabilities(avx2), WithStrategies(tt.strategy)}
			if tt.strategy == StrategyNhwcDirect {
				opts = append(opts, WithAlgorithmParameters(AlgorithmParameters{MacroH: 3, MacroD: 16}))
			}
			c, seq, _ := run(t, 3, tt.p, opts...)
			src := intData(tt.p.SrcSize(3), 3)
			par := make([]float32, tt.p.DstSize(3))
			c.ForwardParallel(pool, src, make([]float32, c.ExternalBufferSize()), par)
			if diff := cmp.Diff(seq, par, approx); diff != "" {
				t.Errorf("mismatch (-sequential +parallel):\n%s", diff)
			}
		})
	}
}

func TestNewErrors(t *testing.T) {
	valid := shape(4, 5, 5, 8, 3, 1, 1, 1, 1, layout.Nhwc, activation.Relu)
	mutate := func(f func(p *Params)) Params {
		p := valid
		f(&p)
		return p
	}
	tests := []struct {
		name  string
		batch int
		p     Params
		opts  []Option
		want  error
	}{
		{"zero batch", 0, valid, nil, ErrConfiguration},
		{"uint8", 1, mutate(func(p *Params) { p.SrcType = Uint8 }), nil, ErrConfiguration},
		{"blocked format", 1, mutate(func(p *Params) { p.SrcFormat, p.DstFormat = layout.Nchw8c, layout.Nchw8c }), nil, ErrConfiguration},
		{"format mismatch", 1, mutate(func(p *Params) { p.DstFormat = layout.Nchw }), nil, ErrConfiguration},
		{"wrong output", 1, mutate(func(p *Params) { p.DstH++ }), nil, ErrConfiguration},
		{"zero stride", 1, mutate(func(p *Params) { p.StrideX = 0 }), nil, ErrConfiguration},
		{"negative pad", 1, mutate(func(p *Params) { p.PadLeft = -1 }), nil, ErrConfiguration},
		{"group", 1, mutate(func(p *Params) { p.Group = 3 }), nil, ErrConfiguration},
		{"activation", 1, mutate(func(p *Params) { p.Activation = activation.Type(99) }), nil, ErrConfiguration},
		{"kernel too large", 1, mutate(func(p *Params) { p.KernelY = 9; p.DstH = 0 }), nil, ErrConfiguration},
		{"capabilities", 1, valid, []Option{WithCapabilities(hwy.Capabilities{Width: 12})}, ErrConfiguration},
		{"no strategy", 1, valid, []Option{WithStrategies(StrategyWinograd)}, ErrUnsupportedStrategy},
		{"empty strategies", 1, valid, []Option{WithStrategies()}, ErrUnsupportedStrategy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.batch, tt.p, tt.opts...)
			if !errors.Is(err, tt.want) {
				t.Fatalf("New() error = %v, want %v", err, tt.want)
			}
			if c != nil {
				t.Errorf("New() returned a Convolution with error %v", err)
			}
		})
	}
}

func mustPanic(t *testing.T, substr string, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatalf("no panic, want %q", substr)
		}
		if msg := fmt.Sprint(r); !strings.Contains(msg, substr) {
			t.Errorf("panic %q, want %q", msg, substr)
		}
	}()
	fn()
}

func TestMisuse(t *testing.T) {
	p := shape(4, 5, 5, 8, 3, 1, 1, 1, 1, layout.Nchw, activation.Prelu)
	c, err := New(1, p, WithStrategies(StrategyGemmNN))
	if err != nil {
		t.Fatal(err)
	}
	src := make([]float32, p.SrcSize(1))
	dst := make([]float32, p.DstSize(1))
	weight := make([]float32, p.WeightSize())
	slope := make([]float32, p.DstC)

	mustPanic(t, "before SetParams", func() { c.Forward(src, nil, dst) })
	mustPanic(t, "weight slice too short", func() { c.SetParams(weight[1:], nil, slope) })
	mustPanic(t, "bias slice too short", func() { c.SetParams(weight, slope[1:], slope) })
	mustPanic(t, "conv: activation", func() { c.SetParams(weight, nil, slope[1:]) })

	c.SetParams(weight, nil, slope)
	mustPanic(t, "src slice too short", func() { c.Forward(src[1:], nil, dst) })
	mustPanic(t, "dst slice too short", func() { c.Forward(src, nil, dst[1:]) })
	mustPanic(t, "buf slice too short", func() { c.Forward(src, make([]float32, 1), dst) })
	c.Forward(src, nil, dst)
}

// TestSetParamsCopies checks that SetParams does not retain the caller's
// slices.
func TestSetParamsCopies(t *testing.T) {
	for _, s := range []Strategy{StrategyNhwcDirect, StrategyGemmNN} {
		t.Run(s.String(), func(t *testing.T) {
			p := shape(4, 6, 6, 8, 3, 1, 1, 1, 1, layout.Nhwc, activation.Identity)
			c, err := New(1, p, WithCapabilities(avx2), WithStrategies(s))
			if err != nil {
				t.Fatal(err)
			}
			weight := intData(p.WeightSize(), 10)
			bias := intData(p.DstC, 11)
			src := intData(p.SrcSize(1), 12)
			c.SetParams(weight, bias, nil)
			before := make([]float32, p.DstSize(1))
			c.Forward(src, nil, before)

			for i := range weight {
				weight[i] = float32(math.NaN())
			}
			clear(bias)
			after := make([]float32, p.DstSize(1))
			c.Forward(src, nil, after)
			if diff := cmp.Diff(before, after); diff != "" {
				t.Errorf("output changed after caller mutated params (-before +after):\n%s", diff)
			}
		})
	}
}

func TestBufferSizes(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		p        Params
		external int
	}{
		{"direct", StrategyNhwcDirect, shape(4, 6, 6, 8, 3, 1, 1, 1, 1, layout.Nhwc, activation.Relu), 0},
		{"gemm-1x1", StrategyGemmNN, shape(4, 6, 6, 8, 1, 1, 1, 0, 1, layout.Nchw, activation.Relu), 0},
		{"gemm-3x3", StrategyGemmNN, shape(4, 6, 6, 8, 3, 1, 1, 1, 1, layout.Nchw, activation.Relu), 4 * 9 * 36},
		{"winograd", StrategyWinograd, shape(17, 6, 6, 17, 3, 1, 1, 0, 1, layout.Nchw, activation.Relu), 16 * 34 * 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(1, tt.p, WithCapabilities(avx2), WithStrategies(tt.strategy))
			if err != nil {
				t.Fatal(err)
			}
			if got := c.ExternalBufferSize(); got != tt.external {
				t.Errorf("ExternalBufferSize() = %d, want %d", got, tt.external)
			}
			before := c.InternalBufferSize()
			c.SetParams(make([]float32, tt.p.WeightSize()), nil, nil)
			if after := c.InternalBufferSize(); after < tt.p.WeightSize() || after <= before {
				t.Errorf("InternalBufferSize() = %d after SetParams (was %d), want at least %d", after, before, tt.p.WeightSize())
			}
		})
	}
}

func BenchmarkForward(b *testing.B) {
	layers := []Params{
		shape(64, 56, 56, 64, 3, 1, 1, 1, 1, layout.Nhwc, activation.Relu),
		shape(128, 28, 28, 256, 1, 1, 1, 0, 1, layout.Nhwc, activation.Relu),
		shape(64, 56, 56, 64, 3, 1, 1, 1, 1, layout.Nchw, activation.Relu),
	}
	pool := workerpool.New(runtime.NumCPU())
	defer pool.Close()
	for _, p := range layers {
		c, err := New(1, p)
		if err != nil {
			b.Fatal(err)
		}
		c.SetParams(intData(p.WeightSize(), 1), nil, nil)
		src := intData(p.SrcSize(1), 2)
		dst := make([]float32, p.DstSize(1))
		buf := make([]float32, c.ExternalBufferSize())
		b.Run(fmt.Sprintf("%s/%s", c.Desc(), p), func(b *testing.B) {
			b.SetBytes(int64(4 * (len(src) + len(dst))))
			for b.Loop() {
				c.Forward(src, buf, dst)
			}
			b.ReportMetric(float64(c.Flop())*float64(b.N)/b.Elapsed().Seconds()/1e9, "GFLOPS")
		})
		b.Run(fmt.Sprintf("%s/%s/parallel", c.Desc(), p), func(b *testing.B) {
			for b.Loop() {
				c.ForwardParallel(pool, src, buf, dst)
			}
		})
	}
}
