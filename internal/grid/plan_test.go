package grid

import (
	"testing"

	"github.com/pspoerri/demosaic/internal/geo"
	"github.com/pspoerri/demosaic/internal/rasterio"
	"github.com/pspoerri/demosaic/internal/rasterio/memraster"
	"github.com/pspoerri/demosaic/internal/transform/affine"
)

const testSRS = "EPSG:4326"

func adjacentInput(t *testing.T, id string, originX, originY float64, n int) *rasterio.InputHandle {
	t.Helper()
	box := geo.PixelBox{MinX: 0, MinY: 0, MaxX: n, MaxY: n}
	r := memraster.New(box, -9999)
	r.Fill(10)
	ga := geo.IdentityPixelAffine(originX, originY, 1, 1)
	h, err := memraster.NewInputHandle(id, geo.Georef{SRS: testSRS, Affine: ga, NoData: -9999}, r)
	if err != nil {
		t.Fatalf("NewInputHandle: %v", err)
	}
	return h
}

func TestPlanUnionOfTwoAdjacentInputs(t *testing.T) {
	a := adjacentInput(t, "a", 0, 10, 10)
	b := adjacentInput(t, "b", 10, 10, 10)

	result, err := Plan([]*rasterio.InputHandle{a, b}, Overrides{TileSizePixels: 1000}, affine.New())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if result.PixelBox.Width() != 20 || result.PixelBox.Height() != 10 {
		t.Fatalf("expected a 20x10 output box spanning both inputs, got %dx%d", result.PixelBox.Width(), result.PixelBox.Height())
	}
	if len(result.Tiles) != 1 {
		t.Fatalf("expected a single tile for a small output box, got %d", len(result.Tiles))
	}
	if a.Footprint.Empty() || b.Footprint.Empty() {
		t.Fatalf("grid planner should populate each input's footprint")
	}
}

func TestPlanRejectsConflictingTileSizeFlags(t *testing.T) {
	a := adjacentInput(t, "a", 0, 10, 10)
	_, err := Plan([]*rasterio.InputHandle{a}, Overrides{TileSizePixels: 256, TileSizeGeoref: 5}, affine.New())
	if err == nil {
		t.Fatalf("expected a ConfigError when both --tile-size and --georef-tile-size are given")
	}
}

func TestPlanEmptyInputListIsInputError(t *testing.T) {
	_, err := Plan(nil, Overrides{}, affine.New())
	if err == nil {
		t.Fatalf("expected an error for an empty input list")
	}
}

func TestPlanTileSizeBoundsTileCount(t *testing.T) {
	a := adjacentInput(t, "a", 0, 100, 100)
	result, err := Plan([]*rasterio.InputHandle{a}, Overrides{TileSizePixels: 40}, affine.New())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	// 100x100 output, 40x40 tiles -> 3x3 tiles (last row/col smaller).
	if len(result.Tiles) != 9 {
		t.Fatalf("expected 9 tiles, got %d", len(result.Tiles))
	}
	total := 0
	for _, ts := range result.Tiles {
		total += ts.Box.Area()
	}
	if total != result.PixelBox.Area() {
		t.Fatalf("tiles should partition the output box exactly: sum=%d, box area=%d", total, result.PixelBox.Area())
	}
}

func TestPlanTAPSnapsToPixelMultiples(t *testing.T) {
	a := adjacentInput(t, "a", 0.3, 10.7, 10)
	result, err := Plan([]*rasterio.InputHandle{a}, Overrides{TAP: true, TileSizePixels: 100}, affine.New())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	ulx, uly := result.Georef.Affine.A, result.Georef.Affine.D
	if ulx != roundToPixel(ulx, 1) || uly != roundToPixel(uly, 1) {
		t.Fatalf("TAP output origin should land on integer pixel-size multiples, got (%g, %g)", ulx, uly)
	}
}

func roundToPixel(v, pixelSize float64) float64 {
	return float64(int(v/pixelSize)) * pixelSize
}
