package conv

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestWinogradTile checks that the three transforms compute the 2x2 valid
// correlation of a 4x4 tile with a 3x3 filter.
func TestWinogradTile(t *testing.T) {
	g := [9]float32{1, 2, -1, 0, 3, 1, -2, 1, 2}
	d := [16]float32{1, 0, 2, -1, 3, 1, 0, 2, -2, 1, 1, 0, 0, 3, -1, 1}

	var want [4]float32
	for i := range 2 {
		for j := range 2 {
			for ky := range 3 {
				for kx := range 3 {
					want[i*2+j] += d[(i+ky)*4+j+kx] * g[ky*3+kx]
				}
			}
		}
	}

	var u, v, m [16]float32
	filterTransform(&g, &u)
	inputTileTransform(&d, &v)
	for i := range m {
		m[i] = u[i] * v[i]
	}
	var got [4]float32
	outputTileTransform(&m, &got)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
