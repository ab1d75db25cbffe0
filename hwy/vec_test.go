package hwy

import "testing"

func testLoadStore[V Float32Vec](t *testing.T, want int) {
	t.Helper()
	if got := NumLanes[V](); got != want {
		t.Fatalf("NumLanes: got %d, want %d", got, want)
	}
	data := make([]float32, want+2)
	for i := range data {
		data[i] = float32(i + 1)
	}
	v := Load[V](data)
	out := make([]float32, want+2)
	Store(&v, out)
	for i := 0; i < want; i++ {
		if out[i] != data[i] {
			t.Errorf("lane %d: got %v, want %v", i, out[i], data[i])
		}
	}
	if out[want] != 0 || out[want+1] != 0 {
		t.Errorf("Store wrote past %d lanes: %v", want, out[want:])
	}
}

func TestLoadStore(t *testing.T) {
	t.Run("x4", func(t *testing.T) { testLoadStore[Float32x4](t, 4) })
	t.Run("x8", func(t *testing.T) { testLoadStore[Float32x8](t, 8) })
	t.Run("x16", func(t *testing.T) { testLoadStore[Float32x16](t, 16) })
}

func TestLoadNStoreN(t *testing.T) {
	src := []float32{1, 2, 3}
	v := LoadN[Float32x8](src, len(src))
	for i := 3; i < 8; i++ {
		if v[i] != 0 {
			t.Errorf("LoadN: lane %d: got %v, want 0", i, v[i])
		}
	}

	const sentinel = -7
	dst := []float32{sentinel, sentinel, sentinel, sentinel, sentinel}
	StoreN(&v, dst, 2)
	want := []float32{1, 2, sentinel, sentinel, sentinel}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("StoreN: index %d: got %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestMulAddScalar(t *testing.T) {
	var acc Float32x4
	w := []float32{1, 2, 3, 4, 100}
	MulAddScalar(&acc, 2, w)
	MulAddScalar(&acc, 0.5, w)
	want := Float32x4{2.5, 5, 7.5, 10}
	if acc != want {
		t.Errorf("MulAddScalar: got %v, want %v", acc, want)
	}
}
