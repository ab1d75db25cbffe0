package conv

import "errors"

var (
	// ErrConfiguration reports invalid or inconsistent convolution
	// parameters. It is only returned by New.
	ErrConfiguration = errors.New("conv: invalid configuration")

	// ErrUnsupportedStrategy reports that none of the allowed strategies
	// accepts the parameters.
	ErrUnsupportedStrategy = errors.New("conv: no strategy supports parameters")
)
