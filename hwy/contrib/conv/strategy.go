package conv

import (
	"fmt"
	"strings"

	"github.com/ajroetker/hwyconv/hwy"
	"github.com/ajroetker/hwyconv/hwy/contrib/workerpool"
)

// Strategy identifies a convolution algorithm.
type Strategy int

// Strategies in selection priority order.
const (
	StrategyDepthwiseDotProduct Strategy = iota
	StrategyWinograd
	StrategyNhwcDirect
	StrategyDirectNchw
	StrategyGemmNN

	numStrategies
)

var strategyNames = [...]string{
	StrategyDepthwiseDotProduct: "DepthwiseDotProduct",
	StrategyWinograd:            "Winograd",
	StrategyNhwcDirect:          "NhwcDirect",
	StrategyDirectNchw:          "DirectNchw",
	StrategyGemmNN:              "GemmNN",
}

func (s Strategy) String() string {
	if s >= 0 && s < numStrategies {
		return strategyNames[s]
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// Strategies returns every strategy in selection priority order.
func Strategies() []Strategy {
	all := make([]Strategy, 0, numStrategies)
	for s := Strategy(0); s < numStrategies; s++ {
		all = append(all, s)
	}
	return all
}

// ParseStrategy returns the strategy named s (case-insensitive).
func ParseStrategy(s string) (Strategy, error) {
	for i, name := range strategyNames {
		if strings.EqualFold(name, s) {
			return Strategy(i), nil
		}
	}
	return 0, fmt.Errorf("conv: unknown strategy %q", s)
}

// Preferable reports whether s should compute p on hardware with caps.
// p must be valid.
func (s Strategy) Preferable(p Params, caps hwy.Capabilities) bool {
	switch s {
	case StrategyDepthwiseDotProduct:
		return p.IsDepthwise() && p.IsStride(1) && p.IsDilation(1) && p.IsPad(0) &&
			p.KernelY == p.SrcH && p.KernelX == p.SrcW && p.DstH == 1 && p.DstW == 1
	case StrategyWinograd:
		return p.IsKernel(3) && p.IsStride(1) && p.IsDilation(1) && (p.IsPad(0) || p.IsPad(1)) &&
			p.Group == 1 && p.SrcC > 16 && p.DstC > 16 && p.SrcH >= 6 && p.SrcW >= 6
	case StrategyNhwcDirect:
		return p.IsChannelsLast() && p.Group == 1 && 2*p.DstC >= caps.Float32Lanes()
	case StrategyDirectNchw:
		if p.IsChannelsLast() || !p.IsDilation(1) || p.StrideY != p.StrideX || p.StrideY > 3 {
			return false
		}
		if !p.IsKernel(2) && !p.IsKernel(3) {
			return false
		}
		k := float64(p.SrcC/p.Group*p.StrideY*p.StrideX) / float64(p.KernelY*p.KernelX)
		return k < 2.0
	case StrategyGemmNN:
		return true
	default:
		return false
	}
}

// strategy is the closed set of algorithm implementations behind a
// Convolution. Buffer sizes are in float32 elements.
type strategy interface {
	kind() Strategy
	externalBufferSize() int
	internalBufferSize() int
	setParams(weight, bias, params []float32)
	// forward computes the whole batch. pool may be nil.
	forward(pool *workerpool.Pool, src, buf, dst []float32)
}

func newStrategy(s Strategy, batch int, p Params, cfg config) strategy {
	switch s {
	case StrategyDepthwiseDotProduct:
		return newDepthwise(batch, p)
	case StrategyWinograd:
		return newWinograd(batch, p)
	case StrategyNhwcDirect:
		return newNhwcDirectFor(batch, p, cfg)
	case StrategyDirectNchw:
		return newDirectNchw(batch, p)
	default:
		return newGemmNN(batch, p)
	}
}

// newNhwcDirectFor instantiates the direct engine for the register width
// of cfg.caps.
func newNhwcDirectFor(batch int, p Params, cfg config) strategy {
	lanes := cfg.caps.Float32Lanes()
	alg := NewAlgorithmParameters(p, 2*lanes, cfg.cache).override(p, cfg.alg)
	switch lanes {
	case 16:
		return newNhwcDirect[hwy.Float32x16](batch, p, alg)
	case 8:
		return newNhwcDirect[hwy.Float32x8](batch, p, alg)
	default:
		return newNhwcDirect[hwy.Float32x4](batch, p, alg)
	}
}
