package mosaic

import "sync"

// gridPoolKey identifies a pool of row-major [][]float64 buffers by shape.
type gridPoolKey struct {
	w, h int
}

// gridPools maps (width, height) -> *sync.Pool of [][]float64. A sync.Map
// avoids a mutex on the hot path; in practice only a handful of distinct
// tile/crop shapes exist per run.
//
// Grounded on the teacher's internal/tile/rgbapool.go, generalized from a
// fixed-shape *image.RGBA pool to the variably-sized float64 grids every
// Patch and WeightPatch owns — every tile's worth of these is created and
// discarded once per contributing input (spec.md §3's Patch/WeightPatch
// lifecycle), making them the hottest allocation in the pipeline.
var gridPools sync.Map

// getGrid returns a (w, h) grid from the pool, or allocates one, with
// every cell set to fill.
func getGrid(w, h int, fill float64) [][]float64 {
	key := gridPoolKey{w, h}
	var rows [][]float64
	if p, ok := gridPools.Load(key); ok {
		if v := p.(*sync.Pool).Get(); v != nil {
			rows = v.([][]float64)
		}
	}
	if rows == nil {
		rows = make([][]float64, h)
		for y := range rows {
			rows[y] = make([]float64, w)
		}
	}
	for y := range rows {
		row := rows[y]
		for x := range row {
			row[x] = fill
		}
	}
	return rows
}

// putGrid returns a grid to the pool for reuse. Nil and empty grids
// are silently ignored.
func putGrid(rows [][]float64) {
	if len(rows) == 0 {
		return
	}
	h := len(rows)
	w := len(rows[0])
	key := gridPoolKey{w, h}
	p, _ := gridPools.LoadOrStore(key, &sync.Pool{})
	p.(*sync.Pool).Put(rows)
}

// Release returns a Patch's backing grid to the shared pool. Callers must
// not use p after calling Release.
func (p *Patch) Release() {
	if p == nil {
		return
	}
	putGrid(p.Values)
	p.Values = nil
}

// Release returns a WeightPatch's backing grid to the shared pool.
// Callers must not use w after calling Release.
func (w *WeightPatch) Release() {
	if w == nil {
		return
	}
	putGrid(w.Values)
	w.Values = nil
}
