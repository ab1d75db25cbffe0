package conv

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ajroetker/hwyconv/hwy"
	"github.com/ajroetker/hwyconv/hwy/contrib/activation"
)

func TestTermFor(t *testing.T) {
	split := AlgorithmParameters{MacroC: 4}
	tests := []struct {
		sc, macroC, srcC int
		alg              AlgorithmParameters
		want             Term
	}{
		{0, 10, 10, AlgorithmParameters{MacroC: 10}, TermSingle},
		{0, 4, 10, split, TermFirst},
		{4, 4, 10, split, TermIterim},
		{8, 2, 10, split, TermLast},
	}
	for _, tt := range tests {
		if got := termFor(tt.sc, tt.macroC, tt.srcC, tt.alg); got != tt.want {
			t.Errorf("termFor(%d, %d, %d) = %s, want %s", tt.sc, tt.macroC, tt.srcC, got, tt.want)
		}
	}
}

func TestEpilogueApply(t *testing.T) {
	bias := []float32{1, -10}
	tests := []struct {
		term     Term
		acc, dst float32
		ch       int
		want     float32
	}{
		{TermFirst, -3, 7, 0, -3},
		{TermIterim, -3, 1, 0, -2},
		{TermLast, -3, 1, 0, 0},
		{TermLast, 3, 1, 0, 5},
		{TermSingle, 3, 99, 0, 4},
		{TermSingle, 3, 99, 1, 0},
	}
	for _, tt := range tests {
		e := &epilogue{term: tt.term, act: activation.Relu, bias: bias}
		if got := e.apply(tt.acc, tt.dst, tt.ch); got != tt.want {
			t.Errorf("%s.apply(%v, %v, %d) = %v, want %v", tt.term, tt.acc, tt.dst, tt.ch, got, tt.want)
		}
	}
}

func TestStorePartial(t *testing.T) {
	e := &epilogue{term: TermSingle, act: activation.Identity, bias: make([]float32, 8)}
	acc0 := hwy.Float32x4{1, 2, 3, 4}
	acc1 := hwy.Float32x4{5, 6, 7, 8}
	for n := 1; n <= 8; n++ {
		dst := []float32{-1, -1, -1, -1, -1, -1, -1, -1}
		store2(e, dst, &acc0, &acc1, 0, n)
		want := []float32{1, 2, 3, 4, 5, 6, 7, 8}
		for i := n; i < len(want); i++ {
			want[i] = -1
		}
		if diff := cmp.Diff(want, dst); diff != "" {
			t.Errorf("store2 n=%d mismatch (-want +got):\n%s", n, diff)
		}
	}
}
