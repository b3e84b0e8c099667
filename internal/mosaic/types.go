// Package mosaic implements the core tiled-mosaic compute pipeline of
// spec.md §4: tile planning, reprojection, weight building, accumulation
// and post-processing. It is deliberately independent of how rasters are
// read or written (internal/rasterio, internal/rasterwriter) and of how
// coordinates are transformed (internal/transform) — those are the
// external collaborators of spec.md §6.
package mosaic

import (
	"github.com/pspoerri/demosaic/internal/geo"
	"github.com/pspoerri/demosaic/internal/rasterio"
)

// TileSpec is spec.md §3's TileSpec: an index into the output tile list,
// its pixel box in the output grid, and the output Georef restricted to
// that box.
type TileSpec struct {
	Index   int
	Box     geo.PixelBox
	Georef  geo.Georef // same SRS/affine/nodata as the output, box-restricted only in meaning

	// Col and Row are the tile's position in the output tile grid (row
	// major, same order Index was assigned in). They carry no semantic
	// meaning beyond locality: the driver uses them to dispatch tiles to
	// workers in Hilbert-curve order instead of Index order, so that
	// concurrently processed tiles tend to share nearby input readers.
	Col, Row int
}

// Patch is spec.md §3's Patch: a 2D array of doubles over a PixelBox
// aligned to the owning tile. Values outside an input's valid data carry
// NoData.
type Patch struct {
	Box    geo.PixelBox
	NoData float64
	Values [][]float64 // row-major, Values[y-Box.MinY][x-Box.MinX]
}

// NewPatch allocates a Patch filled with nodata.
func NewPatch(box geo.PixelBox, nodata float64) *Patch {
	p := &Patch{Box: box, NoData: nodata}
	p.Values = allocGrid(box, nodata)
	return p
}

// At reads a value; ok is false at no-data cells or outside the box.
func (p *Patch) At(x, y int) (float64, bool) {
	if p == nil || !p.Box.Contains(x, y) {
		return 0, false
	}
	v := p.Values[y-p.Box.MinY][x-p.Box.MinX]
	if v == p.NoData {
		return 0, false
	}
	return v, true
}

// Set writes a value at output-grid pixel (x, y), the same coordinate
// space as Box and At.
func (p *Patch) Set(x, y int, v float64) {
	p.Values[y-p.Box.MinY][x-p.Box.MinX] = v
}

// WeightPatch is spec.md §3's WeightPatch: parallel to a Patch, values in
// [0, +inf), zero exactly where the companion Patch is no-data.
type WeightPatch struct {
	Box    geo.PixelBox
	Values [][]float64
}

// NewWeightPatch allocates a zeroed WeightPatch over box, drawing its
// backing grid from the shared pool.
func NewWeightPatch(box geo.PixelBox) *WeightPatch {
	return &WeightPatch{Box: box, Values: getGrid(box.Width(), box.Height(), 0)}
}

func (w *WeightPatch) At(x, y int) float64 {
	if w == nil || !w.Box.Contains(x, y) {
		return 0
	}
	return w.Values[y-w.Box.MinY][x-w.Box.MinX]
}

func (w *WeightPatch) Set(x, y int, v float64) {
	w.Values[y-w.Box.MinY][x-w.Box.MinX] = v
}

// OutputTile is spec.md §3's OutputTile: a finalized value grid plus a
// no-data mask, sharing its TileSpec's pixel box.
type OutputTile struct {
	Box      geo.PixelBox
	NoData   float64
	Values   [][]float64
	IsNoData [][]bool

	// IndexMap records, per pixel, the input index chosen by a mode marked
	// "index" in spec.md §4.5's accumulator table (first/last/min/max),
	// populated only when save_index_map is enabled. -1 means no input
	// contributed.
	IndexMap [][]int32
}

func newOutputTile(box geo.PixelBox, nodata float64, withIndexMap bool) *OutputTile {
	t := &OutputTile{Box: box, NoData: nodata}
	t.Values = allocGrid(box, nodata)
	t.IsNoData = make([][]bool, box.Height())
	for y := range t.IsNoData {
		row := make([]bool, box.Width())
		for x := range row {
			row[x] = true
		}
		t.IsNoData[y] = row
	}
	if withIndexMap {
		t.IndexMap = make([][]int32, box.Height())
		for y := range t.IndexMap {
			row := make([]int32, box.Width())
			for x := range row {
				row[x] = -1
			}
			t.IndexMap[y] = row
		}
	}
	return t
}

// Set writes a finalized value, clearing the no-data flag.
func (t *OutputTile) Set(x, y int, v float64) {
	t.Values[y-t.Box.MinY][x-t.Box.MinX] = v
	t.IsNoData[y-t.Box.MinY][x-t.Box.MinX] = false
}

// SetNoData marks a pixel as no-data.
func (t *OutputTile) SetNoData(x, y int) {
	t.Values[y-t.Box.MinY][x-t.Box.MinX] = t.NoData
	t.IsNoData[y-t.Box.MinY][x-t.Box.MinX] = true
}

// Crop returns a new OutputTile restricted to box, which must lie within
// t.Box. The driver folds and post-processes a tile over a margin-padded
// box so PostProcess sees real neighboring pixels instead of a synthetic
// edge, then crops back down to the tile's own box before handing the
// result to the writer.
func (t *OutputTile) Crop(box geo.PixelBox) *OutputTile {
	out := &OutputTile{Box: box, NoData: t.NoData}
	h, w := box.Height(), box.Width()
	out.Values = make([][]float64, h)
	out.IsNoData = make([][]bool, h)
	offX, offY := box.MinX-t.Box.MinX, box.MinY-t.Box.MinY
	for y := 0; y < h; y++ {
		srcY := offY + y
		out.Values[y] = append([]float64(nil), t.Values[srcY][offX:offX+w]...)
		out.IsNoData[y] = append([]bool(nil), t.IsNoData[srcY][offX:offX+w]...)
	}
	if t.IndexMap != nil {
		out.IndexMap = make([][]int32, h)
		for y := 0; y < h; y++ {
			srcY := offY + y
			out.IndexMap[y] = append([]int32(nil), t.IndexMap[srcY][offX:offX+w]...)
		}
	}
	return out
}

func allocGrid(box geo.PixelBox, fill float64) [][]float64 {
	return getGrid(box.Width(), box.Height(), fill)
}

// contributingInput pairs a rasterio.InputHandle with its declared order —
// the "first"/"last"/priority ordering key of spec.md §4.2 and §4.5.
type contributingInput struct {
	Index  int
	Handle *rasterio.InputHandle
}
