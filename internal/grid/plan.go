package grid

import (
	"math"

	"github.com/pspoerri/demosaic/internal/demoerr"
	"github.com/pspoerri/demosaic/internal/geo"
	"github.com/pspoerri/demosaic/internal/mosaic"
	"github.com/pspoerri/demosaic/internal/rasterio"
	"github.com/pspoerri/demosaic/internal/transform"
)

// defaultTileAreaBudget is the ~1,000,000-pixel default tile budget of
// spec.md §4.1 step 6, used when the caller gives neither --tile-size nor
// --georef-tile-size.
const defaultTileAreaBudget = 1_000_000

// Overrides are the grid planner's optional user inputs (spec.md §4.1).
type Overrides struct {
	TargetSRS       string // empty = inherit from inputs[0]
	TargetPixelSize float64 // 0 = inherit from inputs[0]'s dx

	HasTargetWindow bool
	TargetWindow    geo.WorldBox
	ForceWindow     bool

	TAP bool

	OutputNoData float64

	// TileSizePixels and TileSizeGeoref are mutually exclusive; both set
	// is a ConfigError (spec.md §9's open question, resolved that way).
	TileSizePixels int
	TileSizeGeoref float64
}

// Result is the grid planner's output: the output Georef, its full pixel
// box, and the ordered tile list.
type Result struct {
	Georef   geo.Georef
	PixelBox geo.PixelBox
	Tiles    []mosaic.TileSpec
}

// Plan runs spec.md §4.1's algorithm.
func Plan(inputs []*rasterio.InputHandle, ov Overrides, transformer transform.CoordTransformer) (*Result, error) {
	if len(inputs) == 0 {
		return nil, demoerr.Input("no input DEMs given")
	}
	if ov.TileSizePixels > 0 && ov.TileSizeGeoref > 0 {
		return nil, demoerr.Config("--tile-size and --georef-tile-size are mutually exclusive")
	}

	targetSRS := ov.TargetSRS
	if targetSRS == "" {
		targetSRS = inputs[0].Georef.SRS
	}
	targetPixelSize := ov.TargetPixelSize
	if targetPixelSize == 0 {
		dx, _ := inputs[0].Georef.PixelSize()
		targetPixelSize = dx
	}
	if !(targetPixelSize > 0) {
		return nil, demoerr.Config("target pixel size must be positive")
	}

	union := geo.WorldBox{}
	for _, in := range inputs {
		fp, err := ProjectWorldFootprint(in, targetSRS, transformer)
		if err != nil {
			return nil, err
		}
		union = union.Union(fp)
	}
	if union.Empty() {
		return nil, demoerr.Config("union of input footprints is empty")
	}

	window := union
	if ov.HasTargetWindow {
		if ov.ForceWindow {
			window = ov.TargetWindow
		} else {
			window = union.Intersect(ov.TargetWindow)
		}
	}
	if window.Empty() {
		return nil, demoerr.Grid("output window is empty after applying --t_projwin")
	}

	if ov.TAP {
		window = snapTAP(window, targetPixelSize)
	}

	affine := geo.IdentityPixelAffine(window.MinX, window.MaxY, targetPixelSize, targetPixelSize)
	outGeoref := geo.Georef{SRS: targetSRS, Affine: affine, NoData: ov.OutputNoData}
	if err := outGeoref.Valid(); err != nil {
		return nil, demoerr.ConfigWrap(err, "output georef")
	}

	pixelBox, ok := outGeoref.WorldToPixelBox(window)
	if !ok || pixelBox.Empty() {
		return nil, demoerr.Grid("output pixel box is empty")
	}

	for _, in := range inputs {
		footprint, err := ProjectPixelFootprint(in, outGeoref, transformer)
		if err != nil {
			return nil, err
		}
		in.Footprint = footprint
	}

	tileEdge, err := resolveTileEdge(ov, targetPixelSize)
	if err != nil {
		return nil, err
	}

	tiles := partitionTiles(pixelBox, outGeoref, tileEdge)

	return &Result{Georef: outGeoref, PixelBox: pixelBox, Tiles: tiles}, nil
}

func resolveTileEdge(ov Overrides, targetPixelSize float64) (int, error) {
	switch {
	case ov.TileSizePixels > 0:
		return ov.TileSizePixels, nil
	case ov.TileSizeGeoref > 0:
		edge := int(math.Round(ov.TileSizeGeoref / targetPixelSize))
		if edge < 1 {
			edge = 1
		}
		return edge, nil
	default:
		edge := int(math.Sqrt(float64(defaultTileAreaBudget)))
		if edge < 1 {
			edge = 1
		}
		return edge, nil
	}
}

// snapTAP expands a WorldBox outward so every edge lands on an integer
// multiple of pixelSize (spec.md §4.1 step 4).
func snapTAP(w geo.WorldBox, pixelSize float64) geo.WorldBox {
	return geo.WorldBox{
		MinX: math.Floor(w.MinX/pixelSize) * pixelSize,
		MinY: math.Floor(w.MinY/pixelSize) * pixelSize,
		MaxX: math.Ceil(w.MaxX/pixelSize) * pixelSize,
		MaxY: math.Ceil(w.MaxY/pixelSize) * pixelSize,
	}
}

// partitionTiles splits box into row-major tiles no larger than
// tileEdge x tileEdge (the last tile in each row/column may be smaller),
// per spec.md §4.1 step 6.
func partitionTiles(box geo.PixelBox, georef geo.Georef, tileEdge int) []mosaic.TileSpec {
	var tiles []mosaic.TileSpec
	index, row := 0, 0
	for y := box.MinY; y < box.MaxY; y += tileEdge {
		maxY := y + tileEdge
		if maxY > box.MaxY {
			maxY = box.MaxY
		}
		col := 0
		for x := box.MinX; x < box.MaxX; x += tileEdge {
			maxX := x + tileEdge
			if maxX > box.MaxX {
				maxX = box.MaxX
			}
			tiles = append(tiles, mosaic.TileSpec{
				Index:  index,
				Box:    geo.PixelBox{MinX: x, MinY: y, MaxX: maxX, MaxY: maxY},
				Georef: georef,
				Col:    col,
				Row:    row,
			})
			index++
			col++
		}
		row++
	}
	return tiles
}
