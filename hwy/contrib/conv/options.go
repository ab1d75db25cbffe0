package conv

import (
	"log/slog"

	"github.com/ajroetker/hwyconv/hwy"
)

// Option configures New.
type Option func(*config)

type config struct {
	caps       hwy.Capabilities
	cache      CacheSizes
	hasCache   bool
	alg        AlgorithmParameters
	strategies []Strategy
	logger     *slog.Logger
}

func newConfig(opts []Option) config {
	cfg := config{
		caps:       hwy.CurrentCapabilities(),
		strategies: Strategies(),
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.hasCache {
		cfg.cache = CacheSizesFor(cfg.caps.Level)
	}
	return cfg
}

// WithCapabilities sizes the kernels for caps instead of the detected host.
func WithCapabilities(caps hwy.Capabilities) Option {
	return func(c *config) { c.caps = caps }
}

// WithCacheSizes overrides the cache budgets used to derive the
// AlgorithmParameters of the direct engine.
func WithCacheSizes(cache CacheSizes) Option {
	return func(c *config) {
		c.cache = cache
		c.hasCache = true
	}
}

// WithAlgorithmParameters overrides the non-zero fields of the derived
// AlgorithmParameters. MicroD is always set by the register width; the
// other fields are clamped to valid ranges.
func WithAlgorithmParameters(alg AlgorithmParameters) Option {
	return func(c *config) { c.alg = alg }
}

// WithStrategies restricts selection to the listed strategies, tried in
// the package's priority order.
func WithStrategies(strategies ...Strategy) Option {
	return func(c *config) { c.strategies = strategies }
}

// WithLogger sets the logger used to report strategy selection.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}
