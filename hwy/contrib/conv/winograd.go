package conv

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/ajroetker/hwyconv/hwy/contrib/workerpool"
)

// winogradTile is the number of elements of one transformed F(2x2,3x3)
// tile.
const winogradTile = 16

// winograd computes 3x3 unit-stride layers with the F(2x2,3x3) minimal
// filtering algorithm: filters and 4x4 input tiles are transformed, the
// 16 element-wise products are summed over channels as 16 independent
// matrix multiplies, and each product tile is reduced to a 2x2 output
// block.
//
// Transformed filters U are stored [16][DstC][SrcC], input tiles V
// [16][SrcC][tiles] and products M [16][DstC][tiles].
type winograd struct {
	p      Params
	batch  int
	tilesY int
	tilesX int
	u      []float32
	bias   []float32
	params []float32
}

func newWinograd(batch int, p Params) *winograd {
	return &winograd{
		p:      p,
		batch:  batch,
		tilesY: ceilDiv(p.DstH, 2),
		tilesX: ceilDiv(p.DstW, 2),
	}
}

func (c *winograd) kind() Strategy { return StrategyWinograd }

func (c *winograd) tiles() int { return c.tilesY * c.tilesX }

func (c *winograd) externalBufferSize() int {
	return winogradTile * (c.p.SrcC + c.p.DstC) * c.tiles()
}

func (c *winograd) internalBufferSize() int {
	return len(c.u) + len(c.bias) + len(c.params)
}

func (c *winograd) setParams(weight, bias, params []float32) {
	p := c.p
	c.u = make([]float32, winogradTile*p.DstC*p.SrcC)
	var g [9]float32
	var t [winogradTile]float32
	for d := range p.DstC {
		for s := range p.SrcC {
			for k := range 9 {
				if p.IsChannelsLast() {
					g[k] = weight[(k*p.SrcC+s)*p.DstC+d]
				} else {
					g[k] = weight[(d*p.SrcC+s)*9+k]
				}
			}
			filterTransform(&g, &t)
			for i, v := range t {
				c.u[(i*p.DstC+d)*p.SrcC+s] = v
			}
		}
	}
	c.bias, c.params = copyParams(bias[:p.DstC], params)
}

func (c *winograd) forward(pool *workerpool.Pool, src, buf, dst []float32) {
	p := c.p
	n := c.tiles()
	v := buf[:winogradTile*p.SrcC*n]
	m := buf[len(v) : len(v)+winogradTile*p.DstC*n]
	srcSize, dstSize := p.SrcSize(1), p.DstSize(1)
	for b := range c.batch {
		in, out := src[b*srcSize:(b+1)*srcSize], dst[b*dstSize:(b+1)*dstSize]
		pool.ParallelFor(p.SrcC, func(start, end int) {
			for s := start; s < end; s++ {
				c.inputTransform(in, s, v)
			}
		})
		pool.ParallelForAtomic(winogradTile, func(i int) {
			a := blas32.General{Rows: p.DstC, Cols: p.SrcC, Stride: p.SrcC, Data: c.u[i*p.DstC*p.SrcC:]}
			bm := blas32.General{Rows: p.SrcC, Cols: n, Stride: n, Data: v[i*p.SrcC*n:]}
			cm := blas32.General{Rows: p.DstC, Cols: n, Stride: n, Data: m[i*p.DstC*n:]}
			blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, a, bm, 0, cm)
		})
		pool.ParallelFor(p.DstC, func(start, end int) {
			for d := start; d < end; d++ {
				c.outputTransform(m, d, out)
			}
		})
		biasActivation(pool, p, c.bias, c.params, out)
	}
}

// inputTransform writes the transformed tiles of source channel s into v.
func (c *winograd) inputTransform(src []float32, s int, v []float32) {
	p := c.p
	n := c.tiles()
	var d, t [winogradTile]float32
	for ty := range c.tilesY {
		for tx := range c.tilesX {
			y0, x0 := 2*ty-p.PadTop, 2*tx-p.PadLeft
			for i := range 4 {
				for j := range 4 {
					y, x := y0+i, x0+j
					if y < 0 || y >= p.SrcH || x < 0 || x >= p.SrcW {
						d[i*4+j] = 0
					} else if p.IsChannelsLast() {
						d[i*4+j] = src[(y*p.SrcW+x)*p.SrcC+s]
					} else {
						d[i*4+j] = src[(s*p.SrcH+y)*p.SrcW+x]
					}
				}
			}
			inputTileTransform(&d, &t)
			tile := ty*c.tilesX + tx
			for i, val := range t {
				v[(i*p.SrcC+s)*n+tile] = val
			}
		}
	}
}

// outputTransform reduces the product tiles of output channel d into dst,
// clipping blocks at the bottom and right edges.
func (c *winograd) outputTransform(m []float32, d int, dst []float32) {
	p := c.p
	n := c.tiles()
	var t [winogradTile]float32
	var y [4]float32
	for ty := range c.tilesY {
		for tx := range c.tilesX {
			tile := ty*c.tilesX + tx
			for i := range t {
				t[i] = m[(i*p.DstC+d)*n+tile]
			}
			outputTileTransform(&t, &y)
			for i := range 2 {
				oy := 2*ty + i
				if oy >= p.DstH {
					break
				}
				for j := range 2 {
					ox := 2*tx + j
					if ox >= p.DstW {
						break
					}
					if p.IsChannelsLast() {
						dst[(oy*p.DstW+ox)*p.DstC+d] = y[i*2+j]
					} else {
						dst[(d*p.DstH+oy)*p.DstW+ox] = y[i*2+j]
					}
				}
			}
		}
	}
}

// filterTransform computes G g Gᵀ for a row-major 3x3 filter g.
func filterTransform(g *[9]float32, u *[winogradTile]float32) {
	var t [12]float32 // G g, 4x3
	for j := range 3 {
		g0, g1, g2 := g[j], g[3+j], g[6+j]
		t[j] = g0
		t[3+j] = (g0 + g1 + g2) / 2
		t[6+j] = (g0 - g1 + g2) / 2
		t[9+j] = g2
	}
	for i := range 4 {
		r0, r1, r2 := t[i*3], t[i*3+1], t[i*3+2]
		u[i*4] = r0
		u[i*4+1] = (r0 + r1 + r2) / 2
		u[i*4+2] = (r0 - r1 + r2) / 2
		u[i*4+3] = r2
	}
}

// inputTileTransform computes Bᵀ d B for a row-major 4x4 tile d.
func inputTileTransform(d, v *[winogradTile]float32) {
	var t [winogradTile]float32
	for j := range 4 {
		d0, d1, d2, d3 := d[j], d[4+j], d[8+j], d[12+j]
		t[j] = d0 - d2
		t[4+j] = d1 + d2
		t[8+j] = d2 - d1
		t[12+j] = d1 - d3
	}
	for i := range 4 {
		r0, r1, r2, r3 := t[i*4], t[i*4+1], t[i*4+2], t[i*4+3]
		v[i*4] = r0 - r2
		v[i*4+1] = r1 + r2
		v[i*4+2] = r2 - r1
		v[i*4+3] = r1 - r3
	}
}

// outputTileTransform computes Aᵀ m A for a row-major 4x4 product tile.
func outputTileTransform(m *[winogradTile]float32, y *[4]float32) {
	var t [8]float32 // Aᵀ m, 2x4
	for j := range 4 {
		m0, m1, m2, m3 := m[j], m[4+j], m[8+j], m[12+j]
		t[j] = m0 + m1 + m2
		t[4+j] = m1 - m2 - m3
	}
	for i := range 2 {
		r0, r1, r2, r3 := t[i*4], t[i*4+1], t[i*4+2], t[i*4+3]
		y[i*2] = r0 + r1 + r2
		y[i*2+1] = r1 - r2 - r3
	}
}
