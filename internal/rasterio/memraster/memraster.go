// Package memraster is a reference in-memory BlockReader backed by plain
// [][]float64 grids; it has no RasterWriter counterpart. It plays the role the teacher fills with a real
// mmap'd COG decoder (internal/cog/reader.go) for tests and for the
// end-to-end scenarios of spec.md §8, which only need a raster fixture
// they fully control — not a GeoTIFF codec.
package memraster

import (
	"fmt"

	"github.com/pspoerri/demosaic/internal/geo"
	"github.com/pspoerri/demosaic/internal/rasterio"
)

// Raster is an in-memory single-band raster with a fixed no-data value.
type Raster struct {
	Box    geo.PixelBox
	NoData float64
	Values [][]float64 // row-major, Values[y-Box.MinY][x-Box.MinX]
}

// New allocates a Raster of the given box, filled with nodata.
func New(box geo.PixelBox, nodata float64) *Raster {
	rows := make([][]float64, box.Height())
	for y := range rows {
		row := make([]float64, box.Width())
		for x := range row {
			row[x] = nodata
		}
		rows[y] = row
	}
	return &Raster{Box: box, NoData: nodata, Values: rows}
}

// Fill sets every cell to v.
func (r *Raster) Fill(v float64) {
	for _, row := range r.Values {
		for x := range row {
			row[x] = v
		}
	}
}

// Set writes a single pixel in the raster's own pixel space.
func (r *Raster) Set(x, y int, v float64) {
	r.Values[y-r.Box.MinY][x-r.Box.MinX] = v
}

// Get reads a single pixel; ok is false outside the box.
func (r *Raster) Get(x, y int) (float64, bool) {
	if !r.Box.Contains(x, y) {
		return 0, false
	}
	return r.Values[y-r.Box.MinY][x-r.Box.MinX], true
}

// ReadBlock implements rasterio.BlockReader by copying the intersection of
// box with the raster's own extent; cells outside the raster are nodata.
func (r *Raster) ReadBlock(box geo.PixelBox) (*rasterio.Block, error) {
	blk := &rasterio.Block{Box: box, NoData: r.NoData}
	blk.Values = make([][]float64, box.Height())
	for row := range blk.Values {
		line := make([]float64, box.Width())
		for col := range line {
			line[col] = r.NoData
		}
		blk.Values[row] = line
	}

	src := box.Intersect(r.Box)
	if src.Empty() {
		return blk, nil
	}
	for y := src.MinY; y < src.MaxY; y++ {
		srcRow := r.Values[y-r.Box.MinY]
		dstRow := blk.Values[y-box.MinY]
		for x := src.MinX; x < src.MaxX; x++ {
			dstRow[x-box.MinX] = srcRow[x-r.Box.MinX]
		}
	}
	return blk, nil
}

// Close is a no-op; Raster holds no external resource.
func (r *Raster) Close() error { return nil }

// Opener adapts a Raster into a rasterio.Opener that always returns the
// same in-memory instance.
type Opener struct {
	Raster *Raster
}

func (o Opener) Open() (rasterio.ReaderCloser, error) {
	if o.Raster == nil {
		return nil, fmt.Errorf("memraster: nil raster")
	}
	return o.Raster, nil
}

// NewInputHandle builds a rasterio.InputHandle backed by an in-memory
// Raster — the fixture constructor used throughout the mosaic test suite.
func NewInputHandle(id string, georef geo.Georef, r *Raster) (*rasterio.InputHandle, error) {
	return rasterio.NewInputHandle(id, georef, r.Box, Opener{Raster: r})
}
