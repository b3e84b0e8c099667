package mosaic

import (
	"math"
	"testing"

	"github.com/pspoerri/demosaic/internal/geo"
)

func uniformOutputTile(n int, value, nodata float64) *OutputTile {
	box := geo.PixelBox{MinX: 0, MinY: 0, MaxX: n, MaxY: n}
	t := newOutputTile(box, nodata, false)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			t.Set(x, y, value)
		}
	}
	return t
}

func TestErodeLeavesInteriorFrame(t *testing.T) {
	tile := uniformOutputTile(10, 50, -9999)
	erode(tile, 2)

	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			onOuterFrame := x < 2 || y < 2 || x >= 8 || y >= 8
			if onOuterFrame && !tile.IsNoData[y][x] {
				t.Fatalf("(%d,%d) in the outer 2-pixel frame should be no-data after erode-length 2", x, y)
			}
			if !onOuterFrame && tile.IsNoData[y][x] {
				t.Fatalf("(%d,%d) in the interior 6x6 should stay valid after erode-length 2", x, y)
			}
			if !onOuterFrame && tile.Values[y][x] != 50 {
				t.Fatalf("(%d,%d) interior value should stay 50, got %v", x, y, tile.Values[y][x])
			}
		}
	}
}

func TestHoleFillRespectsLengthThreshold(t *testing.T) {
	tile := uniformOutputTile(10, 100, -9999)
	for y := 3; y < 6; y++ {
		for x := 3; x < 6; x++ {
			tile.SetNoData(x, y)
		}
	}

	holeFill(tile, 2)
	if !tile.IsNoData[4][4] {
		t.Fatalf("hole-fill-length 2 should leave a 3x3 hole unchanged")
	}

	holeFill(tile, 4)
	if tile.IsNoData[4][4] {
		t.Fatalf("hole-fill-length 4 should fill a 3x3 hole")
	}
	if math.Abs(tile.Values[4][4]-100) > 1e-6 {
		t.Fatalf("filled hole surrounded by uniform 100s should read back ~100, got %v", tile.Values[4][4])
	}
}

func TestDEMBlurUniformIsUnchanged(t *testing.T) {
	tile := uniformOutputTile(8, 42, -9999)
	demBlur(tile, 2.0)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if math.Abs(tile.Values[y][x]-42) > 1e-6 {
				t.Fatalf("blurring a uniform field should leave it unchanged, got %v at (%d,%d)", tile.Values[y][x], x, y)
			}
		}
	}
}

func TestPostProcessZeroParamsIsNoOp(t *testing.T) {
	tile := uniformOutputTile(6, 7, -9999)
	before := make([][]float64, 6)
	for y := range before {
		before[y] = append([]float64(nil), tile.Values[y]...)
	}
	PostProcess(tile, PostProcessConfig{HoleFillLength: 0, DEMBlurSigma: 0, ErodeLength: 0})
	for y := range tile.Values {
		for x := range tile.Values[y] {
			if tile.Values[y][x] != before[y][x] {
				t.Fatalf("all-zero post-process params should be a no-op, mismatch at (%d,%d)", x, y)
			}
		}
	}
}
