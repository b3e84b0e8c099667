// Package geotiff adapts the teacher's memory-mapped COG/GeoTIFF decoder
// (internal/cog) into spec.md §6's "read a georeferenced raster block"
// external interface: rasterio.Opener and rasterio.BlockReader. Where the
// teacher's internal/tile package only ever pulled whole display tiles out
// of a cog.Reader for a slippy-map pyramid, demosaic needs arbitrary,
// possibly off-tile-grid pixel boxes out of a single full-resolution band
// — so Reader here walks the file's native tile (or strip-promoted-to-tile)
// grid at level 0 and assembles the requested box from however many native
// tiles it overlaps.
package geotiff

import (
	"fmt"
	"strconv"

	"github.com/pspoerri/demosaic/internal/cog"
	"github.com/pspoerri/demosaic/internal/geo"
	"github.com/pspoerri/demosaic/internal/rasterio"
)

// Opener lazily opens a GeoTIFF path into a rasterio.ReaderCloser, the
// rasterio.Opener the reader LRU calls on a cache miss.
type Opener struct {
	Path string
}

func (o Opener) Open() (rasterio.ReaderCloser, error) {
	r, err := cog.Open(o.Path)
	if err != nil {
		return nil, fmt.Errorf("geotiff: opening %s: %w", o.Path, err)
	}
	return &Reader{cog: r}, nil
}

// Reader adapts one open cog.Reader into rasterio.ReadBlock semantics.
// Safe for concurrent ReadBlock calls: the underlying file is mmap'd
// read-only and cog.Reader's tile decode path touches no shared mutable
// state (spec.md §3's "implementations must be safe for concurrent calls
// across distinct handles" — a single handle is only ever owned by one
// reader-cache entry at a time, so this is stronger than required).
type Reader struct {
	cog *cog.Reader
}

// ReadBlock assembles box (in the input's own full-resolution pixel
// space) out of however many native tiles it overlaps, reading at IFD
// level 0 (spec.md §4.3 reprojection always samples the full-resolution
// band; overviews exist only for the teacher's slippy-map pyramid and
// have no role here).
func (r *Reader) ReadBlock(box geo.PixelBox) (*rasterio.Block, error) {
	noData := nodataValue(r.cog)
	blk := &rasterio.Block{Box: box, NoData: noData}
	blk.Values = make([][]float64, box.Height())
	for i := range blk.Values {
		row := make([]float64, box.Width())
		for x := range row {
			row[x] = noData
		}
		blk.Values[i] = row
	}

	full := geo.PixelBox{MinX: 0, MinY: 0, MaxX: r.cog.Width(), MaxY: r.cog.Height()}
	clipped := box.Intersect(full)
	if clipped.Empty() {
		return blk, nil
	}

	tileSize := r.cog.IFDTileSize(0)
	tw, th := tileSize[0], tileSize[1]
	if tw <= 0 || th <= 0 {
		return nil, fmt.Errorf("geotiff: %s: no tile or strip layout", r.cog.Path())
	}

	colStart, colEnd := clipped.MinX/tw, (clipped.MaxX-1)/tw
	rowStart, rowEnd := clipped.MinY/th, (clipped.MaxY-1)/th

	for row := rowStart; row <= rowEnd; row++ {
		for col := colStart; col <= colEnd; col++ {
			samples, w, h, err := r.cog.ReadFloatTile(0, col, row)
			if err != nil {
				return nil, fmt.Errorf("geotiff: %s: reading tile (%d,%d): %w", r.cog.Path(), col, row, err)
			}
			if samples == nil {
				continue // empty (all-nodata) tile; block already pre-filled with nodata
			}
			tileOriginX, tileOriginY := col*tw, row*th
			tileBox := geo.PixelBox{MinX: tileOriginX, MinY: tileOriginY, MaxX: tileOriginX + w, MaxY: tileOriginY + h}
			overlap := box.Intersect(tileBox)
			if overlap.Empty() {
				continue
			}
			for y := overlap.MinY; y < overlap.MaxY; y++ {
				dstRow := blk.Values[y-box.MinY]
				srcY := y - tileOriginY
				for x := overlap.MinX; x < overlap.MaxX; x++ {
					srcX := x - tileOriginX
					dstRow[x-box.MinX] = float64(samples[srcY*w+srcX])
				}
			}
		}
	}
	return blk, nil
}

// Close releases the memory-mapped file.
func (r *Reader) Close() error {
	return r.cog.Close()
}

func nodataValue(r *cog.Reader) float64 {
	s := r.NoData()
	if s == "" {
		return -9999
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return -9999
	}
	return v
}

// Open opens path and builds the rasterio.InputHandle spec.md §3
// describes: its id is the path itself, its Georef comes from the
// GeoTIFF's GeoKeys/ModelTiepoint/ModelPixelScale tags (or a TFW
// sidecar, via cog.Open), and its reader capability is this package's
// lazy Opener so the reader cache controls when the file is actually
// mapped into memory.
func Open(path string) (*rasterio.InputHandle, error) {
	r, err := cog.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geotiff: opening %s: %w", path, err)
	}
	defer r.Close()

	geoInfo := r.GeoInfo()
	affine := geo.IdentityPixelAffine(geoInfo.OriginX, geoInfo.OriginY, geoInfo.PixelSizeX, geoInfo.PixelSizeY)
	srs := srsToken(geoInfo.EPSG)

	georef := geo.Georef{SRS: srs, Affine: affine, NoData: nodataValue(r)}
	fullBox := geo.PixelBox{MinX: 0, MinY: 0, MaxX: r.Width(), MaxY: r.Height()}

	return rasterio.NewInputHandle(path, georef, fullBox, Opener{Path: path})
}

// OpenAll opens every path, closing any already-opened handle's
// underlying file (none are left mapped — Open above only peeks at the
// header) if a later one fails.
func OpenAll(paths []string) ([]*rasterio.InputHandle, error) {
	handles := make([]*rasterio.InputHandle, 0, len(paths))
	for _, p := range paths {
		h, err := Open(p)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

func srsToken(epsg int) string {
	if epsg == 0 {
		return "EPSG:4326"
	}
	return fmt.Sprintf("EPSG:%d", epsg)
}
