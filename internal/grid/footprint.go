// Package grid implements the grid planner of spec.md §4.1: it turns the
// input list plus user overrides into the output Georef, its pixel box,
// and an ordered TileSpec list, and projects each input's footprint into
// the output grid's pixel space for the tile planner (spec.md §4.2).
package grid

import (
	"github.com/pspoerri/demosaic/internal/demoerr"
	"github.com/pspoerri/demosaic/internal/geo"
	"github.com/pspoerri/demosaic/internal/rasterio"
	"github.com/pspoerri/demosaic/internal/transform"
)

// perimeterSamplesPerEdge controls how finely each of the input's four
// edges is sampled before projecting to the target SRS, so a non-affine
// reprojection's curved footprint is still bounded correctly rather than
// just its four corners (spec.md §4.1 step 2).
const perimeterSamplesPerEdge = 8

// ProjectWorldFootprint projects an input's full pixel box into world
// coordinates of targetSRS: its four corners plus a sampled perimeter,
// taking the axis-aligned bounding box of the results.
func ProjectWorldFootprint(in *rasterio.InputHandle, targetSRS string, transformer transform.CoordTransformer) (geo.WorldBox, error) {
	pixelPts := perimeterPixelPoints(in.FullBox)

	worldPts := make([]transform.Point, len(pixelPts))
	for i, p := range pixelPts {
		wx, wy := in.Georef.Affine.Forward(p.X, p.Y)
		worldPts[i] = transform.Point{X: wx, Y: wy}
	}

	if in.Georef.SRS != targetSRS {
		transformed, err := transformer.Transform(in.Georef.SRS, targetSRS, worldPts)
		if err != nil {
			return geo.WorldBox{}, demoerr.InputWrap(err, "project footprint for input %s", in.ID)
		}
		worldPts = transformed
	}

	return boundingWorldBox(worldPts), nil
}

// ProjectPixelFootprint is ProjectWorldFootprint followed by mapping the
// result into outGeoref's pixel space (spec.md §4.2's precomputed
// per-input footprint used by the tile planner).
func ProjectPixelFootprint(in *rasterio.InputHandle, outGeoref geo.Georef, transformer transform.CoordTransformer) (geo.PixelBox, error) {
	wb, err := ProjectWorldFootprint(in, outGeoref.SRS, transformer)
	if err != nil {
		return geo.PixelBox{}, err
	}
	box, ok := outGeoref.WorldToPixelBox(wb)
	if !ok {
		return geo.PixelBox{}, demoerr.Internal("output georef affine is not invertible while projecting footprint for input " + in.ID)
	}
	return box, nil
}

func perimeterPixelPoints(box geo.PixelBox) []transform.Point {
	minX, minY := float64(box.MinX), float64(box.MinY)
	maxX, maxY := float64(box.MaxX), float64(box.MaxY)

	pts := []transform.Point{
		{X: minX, Y: minY}, {X: maxX, Y: minY}, {X: maxX, Y: maxY}, {X: minX, Y: maxY},
	}

	addEdge := func(x0, y0, x1, y1 float64) {
		for i := 1; i < perimeterSamplesPerEdge; i++ {
			t := float64(i) / float64(perimeterSamplesPerEdge)
			pts = append(pts, transform.Point{X: x0 + t*(x1-x0), Y: y0 + t*(y1-y0)})
		}
	}
	addEdge(minX, minY, maxX, minY)
	addEdge(maxX, minY, maxX, maxY)
	addEdge(maxX, maxY, minX, maxY)
	addEdge(minX, maxY, minX, minY)

	return pts
}

func boundingWorldBox(pts []transform.Point) geo.WorldBox {
	if len(pts) == 0 {
		return geo.WorldBox{}
	}
	wb := geo.WorldBox{MinX: pts[0].X, MinY: pts[0].Y, MaxX: pts[0].X, MaxY: pts[0].Y}
	for _, p := range pts[1:] {
		if p.X < wb.MinX {
			wb.MinX = p.X
		}
		if p.X > wb.MaxX {
			wb.MaxX = p.X
		}
		if p.Y < wb.MinY {
			wb.MinY = p.Y
		}
		if p.Y > wb.MaxY {
			wb.MaxY = p.Y
		}
	}
	return wb
}
