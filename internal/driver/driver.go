package driver

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pspoerri/demosaic/internal/coord"
	"github.com/pspoerri/demosaic/internal/demoerr"
	"github.com/pspoerri/demosaic/internal/geo"
	"github.com/pspoerri/demosaic/internal/grid"
	"github.com/pspoerri/demosaic/internal/mosaic"
	"github.com/pspoerri/demosaic/internal/rasterio"
	"github.com/pspoerri/demosaic/internal/rasterwriter"
	"github.com/pspoerri/demosaic/internal/transform"
)

// Stats summarizes one run, reported to the caller and logged via
// summaryLine.
type Stats struct {
	RunID      string
	TileCount  int64
	EmptyTiles int64
	TotalBytes int64
	Elapsed    time.Duration
}

// Run executes spec.md §4's full pipeline over inputs: plans the grid,
// then drains tiles through cfg.Threads workers, each folding its tile's
// inputs sequentially (spec.md §5's "within a single tile the
// computation is sequential"), and commits finalized tiles to
// cfg.Writer's exclusive-lock RasterWriter. Distinct tiles commute and
// carry no ordering guarantee among themselves; only the writer enforces
// final tile-index order (spec.md §5).
func Run(ctx context.Context, inputs []*rasterio.InputHandle, transformer transform.CoordTransformer, cfg Config, metrics *Metrics) (Stats, error) {
	runID := uuid.NewString()
	start := time.Now()

	planResult, err := grid.Plan(inputs, cfg.GridOverrides, transformer)
	if err != nil {
		return Stats{}, err
	}

	tiles := planResult.Tiles
	if cfg.TileSubset != nil {
		tiles = selectTileSubset(tiles, cfg.TileSubset)
	}

	writerCfg := cfg.Writer
	writerCfg.TileCount = len(tiles)
	writer, err := rasterwriter.NewWriter(writerCfg)
	if err != nil {
		return Stats{}, err
	}

	threads := cfg.Threads
	if threads < 1 {
		threads = 1
	}
	readerCache := rasterio.NewReaderCache(cfg.CacheReaderLimit)
	defer readerCache.Close()

	bar := newProgressBar("demosaic", int64(len(tiles)))
	defer bar.Finish()

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan mosaic.TileSpec, threads*2)

	var tileCount, emptyCount, totalBytes int64

	for w := 0; w < threads; w++ {
		g.Go(func() error {
			for ts := range jobs {
				if metrics != nil {
					metrics.QueueDepth.Dec()
				}
				if gctx.Err() != nil {
					return gctx.Err()
				}
				n, empty, err := processTile(gctx, ts, inputs, transformer, readerCache, cfg, writer, metrics)
				if err != nil {
					if demoerr.As(err, demoerr.KindIO) {
						if metrics != nil {
							metrics.TilesFailed.Inc()
						}
						log.Printf("run %s: tile %d: %v", runID, ts.Index, err)
						bar.Increment()
						continue
					}
					return err
				}
				tileCount++
				totalBytes += n
				if empty {
					emptyCount++
				}
				if metrics != nil {
					metrics.TilesProcessed.Inc()
					if empty {
						metrics.TilesEmpty.Inc()
					}
				}
				bar.Increment()
			}
			return nil
		})
	}

	for _, ts := range dispatchOrder(tiles) {
		if metrics != nil {
			metrics.QueueDepth.Inc()
		}
		jobs <- ts
	}
	close(jobs)

	if err := g.Wait(); err != nil {
		writer.Close()
		return Stats{}, err
	}
	if err := writer.Close(); err != nil {
		return Stats{}, err
	}

	stats := Stats{
		RunID:      runID,
		TileCount:  tileCount,
		EmptyTiles: emptyCount,
		TotalBytes: totalBytes,
		Elapsed:    time.Since(start),
	}
	log.Print(summaryLine(stats.RunID, stats.TileCount, stats.EmptyTiles, stats.TotalBytes, stats.Elapsed))
	return stats, nil
}

// processTile folds one tile's contributing inputs sequentially, in
// declared input order, per spec.md §4.2-§4.5, then post-processes and
// commits it. n is the tile's in-memory value size (pixel count times 8
// bytes), not its encoded size; it is used only for the end-of-run summary.
func processTile(
	ctx context.Context,
	ts mosaic.TileSpec,
	inputs []*rasterio.InputHandle,
	transformer transform.CoordTransformer,
	readerCache *rasterio.ReaderCache,
	cfg Config,
	writer rasterwriter.RasterWriter,
	metrics *Metrics,
) (n int64, empty bool, err error) {
	cropBox := mosaic.CropBox(ts, cfg.ExtraCropLength)
	selected := mosaic.SelectInputs(ts, inputs, cfg.ExtraCropLength)

	// Fold over cropBox, not ts.Box: PostProcess (erosion in particular)
	// needs real neighboring pixels beyond the tile's own edge, or it
	// treats every tile seam as a no-data border and erodes valid data
	// that is actually continuous into the next tile. The margin is
	// cropped away again after PostProcess, below.
	acc := mosaic.NewAccumulator(cropBox, mosaic.AccumulatorConfig{
		Mode:         cfg.Mode,
		SaveIndexMap: cfg.SaveIndexMap,
		OutputNoData: cfg.OutputNoData,
	})

	anyContributed := false
	for _, ci := range selected {
		if ctx.Err() != nil {
			return 0, false, ctx.Err()
		}

		handle := ci.Handle
		readFn := func(box geo.PixelBox) (*rasterio.Block, error) {
			return readerCache.ReadBlock(handle, box)
		}

		patch, err := mosaic.Reproject(ts.Georef, cropBox, handle, readFn, mosaic.ReprojectConfig{
			Transformer:     transformer,
			NoDataThreshold: cfg.NoDataThreshold,
		})
		if err != nil {
			return 0, false, demoerr.IOWrap(err, "reprojecting input %s for tile %d", handle.ID, ts.Index)
		}

		var weight *mosaic.WeightPatch
		if cfg.Mode.UsesWeight() {
			weight = mosaic.BuildWeight(patch, handle.Footprint, mosaic.WeightConfig{
				Exponent:               cfg.Weights.Exponent,
				BlurSigma:              cfg.Weights.BlurSigma,
				UseCenterline:          cfg.Weights.UseCenterline,
				PriorityEnabled:        cfg.Weights.PriorityEnabled,
				PriorityBlendingLength: cfg.Weights.PriorityBlendingLength,
				InputRank:              ci.Index,
			})
		}

		acc.Accumulate(ci.Index, patch, weight)
		anyContributed = true

		if cfg.SaveDEMWeightInput == ci.Index && cfg.SaveDEMWeightWriter != nil && weight != nil {
			if err := cfg.SaveDEMWeightWriter.Put(ts.Index, weightOutputTile(weight)); err != nil {
				return 0, false, demoerr.IOWrap(err, "writing dem-weight for tile %d", ts.Index)
			}
		}

		patch.Release()
		if weight != nil {
			weight.Release()
		}
	}

	out := acc.Finalize()
	mosaic.PostProcess(out, mosaic.PostProcessConfig{
		HoleFillLength: cfg.HoleFillLength,
		DEMBlurSigma:   cfg.DEMBlurSigma,
		ErodeLength:    cfg.ErodeLength,
	})
	out = out.Crop(ts.Box)

	if err := writer.Put(ts.Index, out); err != nil {
		return 0, false, demoerr.IOWrap(err, "writing tile %d", ts.Index)
	}

	return int64(out.Box.Area()) * 8, !anyContributed, nil
}

// weightOutputTile adapts a WeightPatch into an OutputTile so
// --save-dem-weight can reuse the same RasterWriter abstraction as the
// primary output; weight is defined everywhere a WeightPatch exists, so
// no pixel is marked no-data.
func weightOutputTile(wp *mosaic.WeightPatch) *mosaic.OutputTile {
	h, w := wp.Box.Height(), wp.Box.Width()
	values := make([][]float64, h)
	isNoData := make([][]bool, h)
	for y := 0; y < h; y++ {
		values[y] = make([]float64, w)
		isNoData[y] = make([]bool, w)
		copy(values[y], wp.Values[y])
	}
	return &mosaic.OutputTile{Box: wp.Box, Values: values, IsNoData: isNoData}
}

// dispatchOrder reorders tiles along a Hilbert curve over their grid
// Col/Row so that concurrently scheduled tiles tend to be spatial
// neighbors, improving hit rates in the shared ReaderCache. It never
// changes a tile's Index, only the order workers pull them off the job
// channel, so writer output is unaffected (internal/rasterwriter commits
// by Index regardless of arrival order).
func dispatchOrder(tiles []mosaic.TileSpec) []mosaic.TileSpec {
	if len(tiles) <= 1 {
		return tiles
	}
	maxEdge := 0
	for _, ts := range tiles {
		if ts.Col > maxEdge {
			maxEdge = ts.Col
		}
		if ts.Row > maxEdge {
			maxEdge = ts.Row
		}
	}
	z := 0
	for (1 << uint(z)) <= maxEdge {
		z++
	}

	byHilbert := make([][3]int, len(tiles))
	for i, ts := range tiles {
		byHilbert[i] = [3]int{z, ts.Col, ts.Row}
	}
	coord.SortTilesByHilbert(byHilbert)

	lookup := make(map[[2]int]mosaic.TileSpec, len(tiles))
	for _, ts := range tiles {
		lookup[[2]int{ts.Col, ts.Row}] = ts
	}
	ordered := make([]mosaic.TileSpec, len(tiles))
	for i, h := range byHilbert {
		ordered[i] = lookup[[2]int{h[1], h[2]}]
	}
	return ordered
}

func selectTileSubset(tiles []mosaic.TileSpec, indices []int) []mosaic.TileSpec {
	want := make(map[int]bool, len(indices))
	for _, i := range indices {
		want[i] = true
	}
	var out []mosaic.TileSpec
	for _, ts := range tiles {
		if want[ts.Index] {
			out = append(out, ts)
		}
	}
	return out
}
