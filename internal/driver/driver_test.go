package driver

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pspoerri/demosaic/internal/geo"
	"github.com/pspoerri/demosaic/internal/grid"
	"github.com/pspoerri/demosaic/internal/mosaic"
	"github.com/pspoerri/demosaic/internal/rasterio"
	"github.com/pspoerri/demosaic/internal/rasterio/memraster"
	"github.com/pspoerri/demosaic/internal/rasterwriter"
	"github.com/pspoerri/demosaic/internal/transform/affine"
)

const testSRS = "EPSG:4326"

func testInput(t *testing.T, id string, originX, originY float64, n int, value float64) *rasterio.InputHandle {
	t.Helper()
	box := geo.PixelBox{MinX: 0, MinY: 0, MaxX: n, MaxY: n}
	r := memraster.New(box, -9999)
	r.Fill(value)
	a := geo.IdentityPixelAffine(originX, originY, 1, 1)
	h, err := memraster.NewInputHandle(id, geo.Georef{SRS: testSRS, Affine: a, NoData: -9999}, r)
	if err != nil {
		t.Fatalf("NewInputHandle: %v", err)
	}
	return h
}

func TestRunWritesOneFilePerTile(t *testing.T) {
	a := testInput(t, "a", 0, 10, 10, 100)
	b := testInput(t, "b", 10, 10, 10, 200)

	dir := t.TempDir()
	prefix := filepath.Join(dir, "out")

	cfg := Config{
		GridOverrides: grid.Overrides{TileSizePixels: 1000, OutputNoData: -9999},
		Mode:          mosaic.ModeBlend,
		Weights: WeightParams{
			BlurSigma: 0,
			Exponent:  2,
		},
		ExtraCropLength:  4,
		OutputNoData:     -9999,
		Threads:          2,
		CacheReaderLimit: 8,
		Writer: rasterwriter.Config{
			Path:     prefix,
			IsPrefix: true,
			Type:     rasterwriter.TypeFloat32,
		},
	}

	stats, err := Run(context.Background(), []*rasterio.InputHandle{a, b}, affine.New(), cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.TileCount != 1 {
		t.Fatalf("expected a single tile for a small output box, got %d", stats.TileCount)
	}

	if _, err := os.Stat(prefix + "-tile-0.tif"); err != nil {
		t.Fatalf("expected tile 0 file: %v", err)
	}
}

// readFloat32Tile decodes an uncompressed Float32 prefix-mode tile file
// written with no compression: raw row-major float32 LE samples.
func readFloat32Tile(t *testing.T, path string, edge int) [][]float32 {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	if len(data) != edge*edge*4 {
		t.Fatalf("%s: expected %d bytes, got %d", path, edge*edge*4, len(data))
	}
	samples := make([][]float32, edge)
	for y := 0; y < edge; y++ {
		samples[y] = make([]float32, edge)
		for x := 0; x < edge; x++ {
			bits := binary.LittleEndian.Uint32(data[(y*edge+x)*4:])
			samples[y][x] = math.Float32frombits(bits)
		}
	}
	return samples
}

// TestErosionDoesNotEatTileSeams covers spec.md §8's tile-partition
// independence property for erosion specifically: a single continuous
// valid DEM spanning two output tiles must not have its shared internal
// seam eroded away, even though each tile is processed (and previously
// post-processed) independently. Regression test for erode treating a
// tile's own box edge as a no-data seed with no real neighboring data.
func TestErosionDoesNotEatTileSeams(t *testing.T) {
	const edge = 10
	a := testInput(t, "a", 0, 20, 2*edge, 42)

	dir := t.TempDir()
	prefix := filepath.Join(dir, "out")

	cfg := Config{
		GridOverrides:    grid.Overrides{TileSizePixels: edge, OutputNoData: -9999},
		Mode:             mosaic.ModeFirst,
		ExtraCropLength:  20,
		ErodeLength:      3,
		OutputNoData:     -9999,
		Threads:          2,
		CacheReaderLimit: 8,
		Writer: rasterwriter.Config{
			Path:     prefix,
			IsPrefix: true,
			Type:     rasterwriter.TypeFloat32,
		},
	}

	stats, err := Run(context.Background(), []*rasterio.InputHandle{a}, affine.New(), cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.TileCount != 4 {
		t.Fatalf("expected a 2x2 tile grid, got %d tiles", stats.TileCount)
	}

	// Tile 0 is the top-left tile (x:[0,10), y:[0,10)); tile 1 is its
	// right neighbor (x:[10,20), y:[0,10)) — partitionTiles assigns
	// indices row-major. Rows 4-5 sit well clear of the DEM's true top
	// and bottom edges (erode-length 3), so only the internal seam at
	// x=10 is under test.
	left := readFloat32Tile(t, prefix+"-tile-0.tif", edge)
	right := readFloat32Tile(t, prefix+"-tile-1.tif", edge)

	for _, y := range []int{4, 5} {
		for _, x := range []int{7, 8, 9} {
			if left[y][x] != 42 {
				t.Fatalf("tile 0 (%d,%d) near the shared seam should stay valid at 42, got %v", x, y, left[y][x])
			}
		}
		for _, x := range []int{0, 1, 2} {
			if right[y][x] != 42 {
				t.Fatalf("tile 1 (%d,%d) near the shared seam should stay valid at 42, got %v", x, y, right[y][x])
			}
		}
	}
}

func TestRunRejectsEmptyInputList(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Writer:  rasterwriter.Config{Path: filepath.Join(dir, "out"), IsPrefix: true, Type: rasterwriter.TypeFloat32},
		Threads: 1,
	}
	_, err := Run(context.Background(), nil, affine.New(), cfg, nil)
	if err == nil {
		t.Fatalf("expected an error for an empty input list")
	}
}
