// Command deminfo dumps a single DEM GeoTIFF's georeference, no-data
// value and elevation range, adapted from the teacher's two overlapping
// cog-inspection CLIs (cmd/coginfo, cmd/debug) into one tool scoped to
// single-band float elevation data rather than RGBA preview tiles.
package main

import (
	"fmt"
	"math"
	"os"

	"github.com/pspoerri/demosaic/internal/cog"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: deminfo <file.tif>\n")
		os.Exit(1)
	}

	r, err := cog.Open(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
	defer r.Close()

	fmt.Printf("File:        %s\n", os.Args[1])
	fmt.Printf("Format:      %s\n", r.FormatDescription())
	fmt.Printf("Is float:    %v\n", r.IsFloat())
	fmt.Printf("NoData:      %q\n", r.NoData())
	fmt.Printf("EPSG:        %d\n", r.EPSG())
	fmt.Printf("Size:        %d x %d px\n", r.Width(), r.Height())
	fmt.Printf("Pixel size:  %f CRS units\n", r.PixelSize())

	minX, minY, maxX, maxY := r.BoundsInCRS()
	fmt.Printf("Bounds:      X=[%f, %f] Y=[%f, %f]\n", minX, maxX, minY, maxY)
	fmt.Printf("IFDs:        %d (1 full-res + %d overviews)\n", r.IFDCount(), r.NumOverviews())

	if !r.IsFloat() {
		return
	}

	data, w, h, err := r.ReadFloatTile(0, 0, 0)
	if err != nil {
		fmt.Printf("reading first tile: %v\n", err)
		return
	}
	if data == nil {
		fmt.Printf("first tile: empty (no-data)\n")
		return
	}

	minVal, maxVal := math.Inf(1), math.Inf(-1)
	nanCount := 0
	for _, v := range data {
		fv := float64(v)
		if math.IsNaN(fv) {
			nanCount++
			continue
		}
		if fv < minVal {
			minVal = fv
		}
		if fv > maxVal {
			maxVal = fv
		}
	}
	fmt.Printf("First tile:  %dx%d, %d NaN, elevation range [%.2f, %.2f]\n", w, h, nanCount, minVal, maxVal)
}
