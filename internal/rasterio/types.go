// Package rasterio declares the "read a georeferenced raster block"
// external collaborator of spec.md §6, the InputHandle entity of spec.md
// §3, and the bounded reader LRU of spec.md §5. It is the out-of-scope
// raster-read boundary the core mosaic package consumes only through
// BlockReader — no package outside rasterio knows how an input is
// actually decoded from disk.
package rasterio

import (
	"fmt"
	"io"

	"github.com/pspoerri/demosaic/internal/geo"
)

// Block is a rectangular patch of raw input samples in the input's own
// pixel space, plus the no-data sentinel active for the read. Values is
// row-major: Values[y-Box.MinY][x-Box.MinX].
type Block struct {
	Box    geo.PixelBox
	Values [][]float64
	NoData float64
}

// At returns the sample at input-space pixel (x, y), or (0, false) if it
// falls outside the block or equals the no-data sentinel.
func (b *Block) At(x, y int) (float64, bool) {
	if b == nil || !b.Box.Contains(x, y) {
		return 0, false
	}
	v := b.Values[y-b.Box.MinY][x-b.Box.MinX]
	if v == b.NoData {
		return 0, false
	}
	return v, true
}

// BlockReader reads a rectangular region of an input raster, the "read a
// georeferenced raster block" interface of spec.md §6. Implementations
// must be safe for concurrent calls across distinct handles (spec.md §3).
type BlockReader interface {
	ReadBlock(box geo.PixelBox) (*Block, error)
}

// ReaderCloser is a BlockReader bound to an open resource that must
// eventually be released.
type ReaderCloser interface {
	BlockReader
	io.Closer
}

// Opener lazily opens an input's underlying resource. Open may be called
// more than once over the life of an InputHandle (the reader LRU evicts
// and reopens), so it must be idempotent and side-effect-free beyond
// acquiring the handle.
type Opener interface {
	Open() (ReaderCloser, error)
}

// InputHandle is spec.md §3's InputHandle: immutable after registration,
// carrying its georeference, full pixel extent, no-data value and a
// reader capability. Footprint (its extent projected into the output
// grid's pixel space) is filled in once by the grid planner during setup
// and is read-only thereafter.
type InputHandle struct {
	ID      string // opaque source identity (path token)
	Georef  geo.Georef
	FullBox geo.PixelBox // full pixel extent of the input

	Footprint geo.PixelBox // set once by the grid planner, in output-grid pixel space

	opener Opener
}

// NewInputHandle registers an input. srs/affine/nodata describe its
// georeference; fullBox is its full-resolution pixel extent; opener lazily
// produces a BlockReader bound to the underlying resource.
func NewInputHandle(id string, georef geo.Georef, fullBox geo.PixelBox, opener Opener) (*InputHandle, error) {
	if id == "" {
		return nil, fmt.Errorf("rasterio: input handle requires a non-empty id")
	}
	if err := georef.Valid(); err != nil {
		return nil, fmt.Errorf("rasterio: input %q: %w", id, err)
	}
	if fullBox.Empty() {
		return nil, fmt.Errorf("rasterio: input %q: empty pixel extent", id)
	}
	return &InputHandle{ID: id, Georef: georef, FullBox: fullBox, opener: opener}, nil
}
