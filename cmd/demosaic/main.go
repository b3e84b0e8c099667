// Command demosaic mosaics a set of DEM tiles into a single reprojected
// output raster. It implements spec.md §6's CLI surface with the
// standard library flag package, a single flat flag namespace and a
// flag.Usage override, the way the teacher's cmd/geotiff2pmtiles/main.go
// does for its own pipeline.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/pspoerri/demosaic/internal/demoerr"
	"github.com/pspoerri/demosaic/internal/driver"
	"github.com/pspoerri/demosaic/internal/geo"
	"github.com/pspoerri/demosaic/internal/grid"
	"github.com/pspoerri/demosaic/internal/mosaic"
	"github.com/pspoerri/demosaic/internal/rasterio/geotiff"
	"github.com/pspoerri/demosaic/internal/rasterwriter"
	"github.com/pspoerri/demosaic/internal/transform/projected"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("demosaic", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: demosaic [flags] --output-prefix PREFIX input.tif [input.tif ...]\n\n")
		fmt.Fprintf(fs.Output(), "Mosaics a set of georeferenced DEM tiles into one reprojected output raster.\n\n")
		fs.PrintDefaults()
	}

	var (
		demListFile    = fs.String("dem-list-file", "", "file with one input DEM path per line, in addition to positional args")
		outputPrefix   = fs.String("output-prefix", "", "prefix for per-tile output files: \"<prefix>-tile-<index>.tif\"")
		tileSizePixels = fs.Int("tile-size", 0, "output tile edge in pixels")
		tileSizeGeoref = fs.Float64("georef-tile-size", 0, "output tile edge in target CRS units")
		tileIndexFlag  = fs.Int("tile-index", -1, "emit only this single tile index")
		tileListFlag   = fs.String("tile-list", "", "comma-separated tile indices to emit")
		tifTileSize    = fs.Int("tif-tile-size", 0, "accepted for compatibility; has no effect (the output container has no internal blocks)")

		tr         = fs.Float64("tr", 0, "target pixel size in CRS units; 0 = inherit from the first input")
		tSRS       = fs.String("t_srs", "", "target SRS as EPSG:<code>; empty = inherit from the first input")
		tProjwin   = fs.String("t_projwin", "", "ulx,uly,lrx,lry target window in target CRS units")
		tap        = fs.Bool("tap", false, "snap the target window to pixel-size-aligned boundaries")
		forceWin   = fs.Bool("force-projwin", false, "use --t_projwin verbatim instead of intersecting it with the input union")

		first  = fs.Bool("first", false, "reduction mode: first contributor wins")
		last   = fs.Bool("last", false, "reduction mode: last contributor wins")
		min    = fs.Bool("min", false, "reduction mode: minimum value")
		max    = fs.Bool("max", false, "reduction mode: maximum value")
		mean   = fs.Bool("mean", false, "reduction mode: mean value")
		stddev = fs.Bool("stddev", false, "reduction mode: standard deviation")
		median = fs.Bool("median", false, "reduction mode: median value")
		nmad   = fs.Bool("nmad", false, "reduction mode: normalized median absolute deviation")
		count  = fs.Bool("count", false, "reduction mode: contributor count")

		weightsBlurSigma      = fs.Float64("weights-blur-sigma", 5.0, "Gaussian blur sigma applied to the distance-transform weight")
		weightsExponent       = fs.Float64("weights-exponent", 2.0, "exponent applied to the distance-transform weight")
		useCenterlineWeights  = fs.Bool("use-centerline-weights", false, "weight by distance to the input's medial axis instead of its border")
		priorityBlendingLen   = fs.Int("priority-blending-length", 0, "pixel band over which a higher-priority input fades in, instead of winning outright")
		extraCropLength       = fs.Int("extra-crop-length", 200, "pixels of input margin read beyond a tile's footprint, for weight-blur support")
		saveDEMWeight         = fs.Int("save-dem-weight", -1, "also write the blend weight raster of the input with this index (-1 = off)")
		saveIndexMap          = fs.Bool("save-index-map", false, "record the winning-input index per pixel in memory (first/last/min/max only); it is not written to any output file")

		holeFillLength = fs.Int("hole-fill-length", 0, "post-process: fill no-data holes whose bounding box is at most this many pixels on its longer side")
		demBlurSigma   = fs.Float64("dem-blur-sigma", 0, "post-process: Gaussian blur sigma applied to the finished DEM")
		erodeLength    = fs.Int("erode-length", 0, "post-process: erode valid-data border by this many pixels")

		ot                 = fs.String("ot", "Float32", "output sample type: Byte, UInt16, Int16, UInt32, Int32, Float32")
		outputNoDataValue  = fs.Float64("output-nodata-value", -9999, "no-data sentinel written to the output raster")
		nodataThresholdStr = fs.String("nodata-threshold", "", "treat input samples at or below this value as no-data")
		noBigTIFF          = fs.Bool("no-bigtiff", false, "accepted for compatibility; has no effect (tile offsets are always 64-bit)")
		tifCompress        = fs.String("tif-compress", "None", "tile compression: None, LZW, Deflate, Packbits")
		threads            = fs.Int("threads", 0, "tile worker count; 0 = GOMAXPROCS")
		cacheSizeMB        = fs.Int("cache-size-mb", 512, "approximate memory budget for the open-reader LRU")
		metricsAddr        = fs.String("metrics-addr", "", "serve Prometheus metrics at this address instead of not at all")
	)

	if err := fs.Parse(args); err != nil {
		return 2
	}

	positional := fs.Args()
	if *outputPrefix == "" {
		fmt.Fprintln(os.Stderr, "ConfigError: --output-prefix is required")
		return 1
	}

	paths, err := collectInputPaths(positional, *demListFile)
	if err != nil {
		return reportErr(err)
	}
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "InputError: no input DEMs given")
		return 1
	}

	mode, err := resolveMode(*first, *last, *min, *max, *mean, *stddev, *median, *nmad, *count)
	if err != nil {
		return reportErr(err)
	}

	ot_, err := rasterwriter.ParseOutputType(*ot)
	if err != nil {
		return reportErr(err)
	}
	compress, err := rasterwriter.ParseCompression(*tifCompress)
	if err != nil {
		return reportErr(err)
	}

	var nodataThreshold *float64
	if *nodataThresholdStr != "" {
		v, err := strconv.ParseFloat(*nodataThresholdStr, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ConfigError: parsing --nodata-threshold: %v\n", err)
			return 1
		}
		nodataThreshold = &v
	}

	ov := grid.Overrides{
		TargetPixelSize: *tr,
		TAP:             *tap,
		ForceWindow:     *forceWin,
		OutputNoData:    *outputNoDataValue,
		TileSizePixels:  *tileSizePixels,
		TileSizeGeoref:  *tileSizeGeoref,
	}
	if *tSRS != "" {
		ov.TargetSRS = normalizeSRS(*tSRS)
	}
	if *tProjwin != "" {
		win, err := parseProjwin(*tProjwin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ConfigError: parsing --t_projwin: %v\n", err)
			return 1
		}
		ov.HasTargetWindow = true
		ov.TargetWindow = win
	}

	tileSubset, err := resolveTileSubset(*tileIndexFlag, *tileListFlag)
	if err != nil {
		return reportErr(err)
	}

	if *threads <= 0 {
		*threads = runtime.GOMAXPROCS(0)
	}

	inputs, err := geotiff.OpenAll(paths)
	if err != nil {
		return reportErr(err)
	}

	cfg := driver.Config{
		GridOverrides: ov,
		Mode:          mode,
		SaveIndexMap:  *saveIndexMap && mode.HasIndex(),
		Weights: driver.WeightParams{
			BlurSigma:              *weightsBlurSigma,
			Exponent:               *weightsExponent,
			UseCenterline:          *useCenterlineWeights,
			PriorityBlendingLength: *priorityBlendingLen,
			PriorityEnabled:        isFlagSet(fs, "priority-blending-length"),
		},
		ExtraCropLength: *extraCropLength,
		HoleFillLength:  *holeFillLength,
		DEMBlurSigma:    *demBlurSigma,
		ErodeLength:     *erodeLength,
		OutputNoData:    *outputNoDataValue,
		NoDataThreshold: nodataThreshold,
		// --output-prefix is always used as a file-name prefix, one tile
		// per "<prefix>-tile-<index>.tif" file (spec.md §6: "one file
		// per tile when the output path is a prefix") — the CLI never
		// exposes a separate single-file output path.
		Writer: rasterwriter.Config{
			Path:        *outputPrefix,
			IsPrefix:    true,
			Type:        ot_,
			Compression: compress,
		},
		Threads:          *threads,
		CacheReaderLimit: readerLimitFromBudget(*cacheSizeMB),
		TileSubset:       tileSubset,
	}
	if *saveDEMWeight >= len(inputs) {
		fmt.Fprintf(os.Stderr, "ConfigError: --save-dem-weight %d is out of range for %d inputs\n", *saveDEMWeight, len(inputs))
		return 1
	}
	if *saveDEMWeight >= 0 {
		cfg.SaveDEMWeightInput = *saveDEMWeight
		weightWriterCfg := rasterwriter.Config{
			Path:     *outputPrefix + "-weight",
			IsPrefix: true,
			Type:     rasterwriter.TypeFloat32,
		}
		w, err := rasterwriter.NewWriter(weightWriterCfg)
		if err != nil {
			return reportErr(err)
		}
		cfg.SaveDEMWeightWriter = w
		defer w.Close()
	}
	_ = noBigTIFF   // the custom container directory always uses 64-bit offsets; see DESIGN.md
	_ = tifTileSize // accepted for CLI compatibility; the container has no internal block striping, see DESIGN.md

	printSettings(paths, *outputPrefix, mode, ov, cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var metrics *driver.Metrics
	if *metricsAddr != "" {
		metrics = driver.NewMetrics()
		go func() {
			if err := metrics.Serve(ctx, *metricsAddr); err != nil {
				fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
			}
		}()
	}

	stats, err := driver.Run(ctx, inputs, projected.New(), cfg, metrics)
	if err != nil {
		return reportErr(err)
	}

	fmt.Printf("wrote %d tiles (%d empty) in %s\n", stats.TileCount, stats.EmptyTiles, stats.Elapsed)
	return 0
}

// collectInputPaths merges positional input paths with --dem-list-file's
// contents, the way the teacher's main() merges collectTIFFs output with
// its own positional-argument handling.
func collectInputPaths(positional []string, listFile string) ([]string, error) {
	var paths []string
	if len(positional) > 0 {
		paths = append(paths, positional...)
	}
	if listFile != "" {
		data, err := os.ReadFile(listFile)
		if err != nil {
			return nil, demoerr.InputWrap(err, "reading --dem-list-file %s", listFile)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			paths = append(paths, line)
		}
	}
	return paths, nil
}

func resolveMode(first, last, min, max, mean, stddev, median, nmad, count bool) (mosaic.ReductionMode, error) {
	chosen := -1
	pick := func(set bool, m mosaic.ReductionMode) error {
		if !set {
			return nil
		}
		if chosen != -1 {
			return demoerr.Config("at most one reduction-mode flag may be given")
		}
		chosen = int(m)
		return nil
	}
	for _, c := range []struct {
		set bool
		m   mosaic.ReductionMode
	}{
		{first, mosaic.ModeFirst}, {last, mosaic.ModeLast},
		{min, mosaic.ModeMin}, {max, mosaic.ModeMax},
		{mean, mosaic.ModeMean}, {stddev, mosaic.ModeStddev},
		{median, mosaic.ModeMedian}, {nmad, mosaic.ModeNMAD},
		{count, mosaic.ModeCount},
	} {
		if err := pick(c.set, c.m); err != nil {
			return 0, err
		}
	}
	if chosen == -1 {
		return mosaic.ModeBlend, nil
	}
	return mosaic.ReductionMode(chosen), nil
}

func resolveTileSubset(tileIndex int, tileList string) ([]int, error) {
	if tileIndex >= 0 && tileList != "" {
		return nil, demoerr.Config("--tile-index and --tile-list are mutually exclusive")
	}
	if tileIndex >= 0 {
		return []int{tileIndex}, nil
	}
	if tileList == "" {
		return nil, nil
	}
	var out []int
	for _, tok := range strings.Split(tileList, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, demoerr.ConfigWrap(err, "parsing --tile-list entry %q", tok)
		}
		out = append(out, n)
	}
	return out, nil
}

func parseProjwin(s string) (geo.WorldBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geo.WorldBox{}, fmt.Errorf("expected ulx,uly,lrx,lry, got %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geo.WorldBox{}, fmt.Errorf("%q: %w", p, err)
		}
		v[i] = f
	}
	return geo.WorldBox{MinX: v[0], MaxY: v[1], MaxX: v[2], MinY: v[3]}, nil
}

func normalizeSRS(s string) string {
	if strings.Contains(strings.ToUpper(s), "EPSG") {
		return strings.ToUpper(s)
	}
	return "EPSG:" + s
}

// readerLimitFromBudget turns a CLI memory budget into an approximate
// open-reader count, assuming ~64MB of mmap'd working set per open COG.
func readerLimitFromBudget(mb int) int {
	if mb <= 0 {
		return 0
	}
	n := mb / 64
	if n < 1 {
		n = 1
	}
	return n
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func printSettings(paths []string, outputPrefix string, mode mosaic.ReductionMode, ov grid.Overrides, cfg driver.Config) {
	fmt.Printf("demosaic settings:\n")
	fmt.Printf("  %-14s %d\n", "Inputs:", len(paths))
	fmt.Printf("  %-14s %s\n", "Output:", outputPrefix)
	fmt.Printf("  %-14s %s\n", "Mode:", mode.String())
	if ov.TargetSRS != "" {
		fmt.Printf("  %-14s %s\n", "Target SRS:", ov.TargetSRS)
	}
	fmt.Printf("  %-14s %d\n", "Threads:", cfg.Threads)
}

// reportErr prints spec.md §6's single-line diagnostic and returns the
// process exit code for err's Kind.
func reportErr(err error) int {
	fmt.Fprintf(os.Stderr, "%v\n", err)
	if kind, ok := demoerr.KindOf(err); ok {
		switch kind {
		case demoerr.KindConfig:
			return 1
		case demoerr.KindInput:
			return 2
		case demoerr.KindGrid:
			return 3
		case demoerr.KindIO:
			return 4
		case demoerr.KindInternal:
			return 5
		}
	}
	return 1
}
