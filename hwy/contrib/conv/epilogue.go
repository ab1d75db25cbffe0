package conv

import (
	"fmt"

	"github.com/ajroetker/hwyconv/hwy"
	"github.com/ajroetker/hwyconv/hwy/contrib/activation"
)

// Term is the role of one input-channel pass in a multi-pass reduction.
type Term int

const (
	// TermSingle covers all input channels: out = act(acc + bias).
	TermSingle Term = iota

	// TermFirst starts a reduction: out = acc.
	TermFirst

	// TermIterim continues a reduction: out = out + acc.
	TermIterim

	// TermLast finishes a reduction: out = act(out + acc + bias).
	TermLast
)

func (t Term) String() string {
	switch t {
	case TermSingle:
		return "single"
	case TermFirst:
		return "first"
	case TermIterim:
		return "iterim"
	case TermLast:
		return "last"
	default:
		return fmt.Sprintf("Term(%d)", int(t))
	}
}

// termFor returns the term of the pass starting at input channel sc with
// macroC channels, when blocks of alg.MacroC split srcC channels.
func termFor(sc, macroC, srcC int, alg AlgorithmParameters) Term {
	switch {
	case alg.MacroC == srcC:
		return TermSingle
	case sc == 0:
		return TermFirst
	case sc+macroC == srcC:
		return TermLast
	default:
		return TermIterim
	}
}

// epilogue stores accumulators to the destination for one pass.
// bias and params are indexed by absolute output channel.
type epilogue struct {
	term   Term
	act    activation.Type
	bias   []float32
	params []float32
}

// apply combines a raw accumulator value with the destination value prev
// for output channel ch.
func (e *epilogue) apply(acc, prev float32, ch int) float32 {
	switch e.term {
	case TermFirst:
		return acc
	case TermIterim:
		return prev + acc
	case TermLast:
		return activation.Scalar(e.act, prev+acc+e.bias[ch], e.params, ch)
	default:
		return activation.Scalar(e.act, acc+e.bias[ch], e.params, ch)
	}
}

// store writes the first n lanes of acc to dst[:n], the output channels
// starting at ch. dst[n:] is never touched.
func store[V hwy.Float32Vec](e *epilogue, dst []float32, acc *V, ch, n int) {
	dst = dst[:n]
	for i := range dst {
		dst[i] = e.apply((*acc)[i], dst[i], ch+i)
	}
}

// store2 writes a dual-register micro-tile of n <= 2*lanes channels.
func store2[V hwy.Float32Vec](e *epilogue, dst []float32, acc0, acc1 *V, ch, n int) {
	f := len(*acc0)
	if n <= f {
		store(e, dst, acc0, ch, n)
		return
	}
	store(e, dst, acc0, ch, f)
	store(e, dst[f:], acc1, ch+f, n-f)
}
