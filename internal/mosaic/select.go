package mosaic

import (
	"github.com/pspoerri/demosaic/internal/geo"
	"github.com/pspoerri/demosaic/internal/rasterio"
)

// SelectInputs is the tile planner of spec.md §4.2: given a TileSpec,
// expand its box by extraCropLength pixels on every side and return the
// ordered sublist of inputs whose footprint (precomputed once, in
// output-grid pixel space, by the grid planner) intersects the expanded
// box. The original input ordering is preserved, since it defines "first"
// and "last" for both reductions and priority blending.
//
// Grounded on the teacher's internal/tile/resample.go prepareTileSources,
// which filters a full source list down to the few overlapping a given
// output tile before doing any per-pixel work.
func SelectInputs(tile TileSpec, inputs []*rasterio.InputHandle, extraCropLength int) []contributingInput {
	cropBox := tile.Box.Expand(extraCropLength)

	var selected []contributingInput
	for i, in := range inputs {
		if in.Footprint.Intersects(cropBox) {
			selected = append(selected, contributingInput{Index: i, Handle: in})
		}
	}
	return selected
}

// CropBox returns the expanded box a tile planner uses to select and crop
// inputs: the tile's own box grown by extraCropLength pixels per side.
func CropBox(tile TileSpec, extraCropLength int) geo.PixelBox {
	return tile.Box.Expand(extraCropLength)
}
