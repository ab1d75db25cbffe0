package hwy

import "testing"

func TestProcessWithTail(t *testing.T) {
	for _, size := range []int{0, 3, 8, 13, 16} {
		covered := make([]int, size)
		var tails int
		ProcessWithTail[Float32x8](size,
			func(off int) {
				for i := off; i < off+8; i++ {
					covered[i]++
				}
			},
			func(off, n int) {
				tails++
				if n <= 0 || n >= 8 {
					t.Errorf("size %d: tail count %d", size, n)
				}
				for i := off; i < off+n; i++ {
					covered[i]++
				}
			},
		)
		for i, c := range covered {
			if c != 1 {
				t.Errorf("size %d: element %d visited %d times", size, i, c)
			}
		}
		if want := min(size%8, 1); tails != want {
			t.Errorf("size %d: %d tail calls, want %d", size, tails, want)
		}
	}
}
