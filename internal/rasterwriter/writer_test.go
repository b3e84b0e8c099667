package rasterwriter

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/pspoerri/demosaic/internal/geo"
	"github.com/pspoerri/demosaic/internal/mosaic"
)

func sampleTile(n int, value, nodata float64) *mosaic.OutputTile {
	box := geo.PixelBox{MinX: 0, MinY: 0, MaxX: n, MaxY: n}
	values := make([][]float64, n)
	isNoData := make([][]bool, n)
	for y := 0; y < n; y++ {
		values[y] = make([]float64, n)
		isNoData[y] = make([]bool, n)
		for x := 0; x < n; x++ {
			values[y][x] = value
		}
	}
	return &mosaic.OutputTile{Box: box, NoData: nodata, Values: values, IsNoData: isNoData}
}

func TestSingleFileWriterRejectsMultipleTiles(t *testing.T) {
	_, err := NewWriter(Config{Path: filepath.Join(t.TempDir(), "out.tif"), IsPrefix: false, TileCount: 2, Type: TypeFloat32})
	if err == nil {
		t.Fatalf("expected a GridError for a single-file output with 2 tiles")
	}
}

func TestSingleFileWriterRoundTripsAllTiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.tif")

	w, err := NewWriter(Config{Path: path, TileCount: 2, Type: TypeByte, Compression: CompressDeflate})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	// Commit out of order to exercise the tile-index-ordered assembly.
	if err := w.Put(1, sampleTile(4, 200, -9999)); err != nil {
		t.Fatalf("Put(1): %v", err)
	}
	if err := w.Put(0, sampleTile(4, 100, -9999)); err != nil {
		t.Fatalf("Put(0): %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("output file should not be empty")
	}
}

func TestSingleFileWriterRequiresEveryTile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.tif")
	w, err := NewWriter(Config{Path: path, TileCount: 2, Type: TypeByte})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Put(0, sampleTile(2, 1, -9999)); err != nil {
		t.Fatalf("Put(0): %v", err)
	}
	if err := w.Close(); err == nil {
		t.Fatalf("expected Close to fail when tile 1 was never written")
	}
}

func TestPrefixWriterWritesOneFilePerTile(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "mosaic")

	w, err := NewWriter(Config{Path: prefix, IsPrefix: true, TileCount: 3, Type: TypeFloat32})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := w.Put(i, sampleTile(2, float64(i), -9999)); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	for i := 0; i < 3; i++ {
		name := prefix + "-tile-" + strconv.Itoa(i) + ".tif"
		if _, err := os.Stat(name); err != nil {
			t.Fatalf("expected tile file %s: %v", name, err)
		}
	}
}

func TestCompressionCodecsRoundTripThroughEncode(t *testing.T) {
	data := []byte("aaaaaabbbbccccccccccccddddddddeeeeeeeeeeeeeeeeeeeeeffff")
	for _, c := range []Compression{CompressNone, CompressLZW, CompressDeflate, CompressPackbits} {
		if _, err := c.encode(data); err != nil {
			t.Fatalf("codec %d: encode: %v", c, err)
		}
	}
}
