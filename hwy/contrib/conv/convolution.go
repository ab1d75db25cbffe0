package conv

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/ajroetker/hwyconv/hwy"
	"github.com/ajroetker/hwyconv/hwy/contrib/workerpool"
)

// Convolution computes one convolution layer of a fixed shape.
//
// A Convolution is not safe for concurrent use when SetParams may overlap
// a Forward call. Concurrent Forward calls must each pass their own buf,
// since a nil buf uses the single buffer owned by the Convolution.
type Convolution struct {
	p      Params
	batch  int
	caps   hwy.Capabilities
	impl   strategy
	alg    AlgorithmParameters
	ready  bool
	buffer []float32
}

// New validates p and selects the first preferable strategy for a batch of
// batch items.
//
// It returns an error wrapping ErrConfiguration for invalid parameters and
// ErrUnsupportedStrategy when no allowed strategy accepts them.
func New(batch int, p Params, opts ...Option) (*Convolution, error) {
	cfg := newConfig(opts)
	if batch <= 0 {
		return nil, fmt.Errorf("%w: batch %d", ErrConfiguration, batch)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.caps.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	for _, s := range Strategies() {
		if !slices.Contains(cfg.strategies, s) || !s.Preferable(p, cfg.caps) {
			continue
		}
		c := &Convolution{
			p:     p,
			batch: batch,
			caps:  cfg.caps,
			impl:  newStrategy(s, batch, p, cfg),
		}
		if d, ok := c.impl.(interface{ algorithmParameters() AlgorithmParameters }); ok {
			c.alg = d.algorithmParameters()
		}
		cfg.logger.Debug("conv: strategy selected",
			slog.String("desc", c.Desc()),
			slog.String("params", p.String()),
			slog.Int("batch", batch),
			slog.Int("external_buffer", c.ExternalBufferSize()),
		)
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s with strategies %v", ErrUnsupportedStrategy, p, cfg.strategies)
}

// Params returns the parameters the Convolution was built with.
func (c *Convolution) Params() Params {
	return c.p
}

// Batch returns the number of batch items per Forward call.
func (c *Convolution) Batch() int {
	return c.batch
}

// Strategy returns the selected algorithm.
func (c *Convolution) Strategy() Strategy {
	return c.impl.kind()
}

// AlgorithmParameters returns the block sizes of the direct engine, or the
// zero value for other strategies.
func (c *Convolution) AlgorithmParameters() AlgorithmParameters {
	return c.alg
}

// Desc returns the target and strategy, such as "avx2::NhwcDirect".
func (c *Convolution) Desc() string {
	return c.caps.Level.String() + "::" + c.impl.kind().String()
}

// Flop returns the operation count of one Forward call.
func (c *Convolution) Flop() int64 {
	return c.p.Flop(c.batch)
}

// ExternalBufferSize returns the minimum length of the buf argument of
// Forward, in float32 elements.
func (c *Convolution) ExternalBufferSize() int {
	return c.impl.externalBufferSize()
}

// InternalBufferSize returns the number of float32 elements owned by the
// Convolution: reordered weights, bias, activation parameters and any
// lazily allocated scratch buffer.
func (c *Convolution) InternalBufferSize() int {
	return c.impl.internalBufferSize() + len(c.buffer)
}

// SetParams installs weights, bias and activation parameters and reorders
// them into the strategy's layout. The slices are copied.
//
// weight is in Oiyx order for planar layers and Yxio for channels-last
// layers (see Params.WeightFormat). bias may be nil for a zero bias.
// params holds the activation parameters: nil for Identity and Relu,
// [alpha] for LeakyRelu and Elu, [lower, upper] for RestrictRange and one
// slope per output channel for Prelu.
func (c *Convolution) SetParams(weight, bias, params []float32) {
	if len(weight) < c.p.WeightSize() {
		panic("conv: weight slice too short")
	}
	if bias == nil {
		bias = make([]float32, c.p.DstC)
	}
	if len(bias) < c.p.DstC {
		panic("conv: bias slice too short")
	}
	if err := c.p.Activation.CheckParams(params, c.p.DstC); err != nil {
		panic("conv: " + err.Error())
	}
	c.impl.setParams(weight, bias, params)
	c.ready = true
}

// Forward computes dst from src. buf is scratch of at least
// ExternalBufferSize elements; if nil, a buffer owned by the Convolution is
// allocated on first use and reused.
//
// Panics if SetParams has not been called or a slice is too short.
func (c *Convolution) Forward(src, buf, dst []float32) {
	c.forward(nil, src, buf, dst)
}

// ForwardParallel is Forward with independent slices of the computation
// run on pool. The direct engine splits into (batch item, output-channel
// block, row block) cells; other strategies parallelize their bias and
// activation pass. A nil pool is equivalent to Forward.
func (c *Convolution) ForwardParallel(pool *workerpool.Pool, src, buf, dst []float32) {
	c.forward(pool, src, buf, dst)
}

func (c *Convolution) forward(pool *workerpool.Pool, src, buf, dst []float32) {
	if !c.ready {
		panic("conv: Forward called before SetParams")
	}
	if len(src) < c.p.SrcSize(c.batch) {
		panic("conv: src slice too short")
	}
	if len(dst) < c.p.DstSize(c.batch) {
		panic("conv: dst slice too short")
	}
	c.impl.forward(pool, src, c.scratch(buf), dst)
}

func (c *Convolution) scratch(buf []float32) []float32 {
	size := c.impl.externalBufferSize()
	if buf != nil {
		if len(buf) < size {
			panic("conv: buf slice too short")
		}
		return buf
	}
	if len(c.buffer) < size {
		c.buffer = make([]float32, size)
	}
	return c.buffer
}
