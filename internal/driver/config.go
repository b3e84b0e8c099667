// Package driver wires the pipeline of spec.md §4 into the scheduling
// and resource model of spec.md §5: a work queue of TileSpecs pulled by
// N_threads workers, each folding its tile's inputs sequentially, behind
// a bounded reader cache and an exclusive-lock output writer. Grounded on
// the teacher's internal/tile/generator.go Generate, re-targeted from a
// zoom-level pyramid to the flat tile list spec.md §4.1 step 6 produces.
package driver

import (
	"github.com/pspoerri/demosaic/internal/grid"
	"github.com/pspoerri/demosaic/internal/mosaic"
	"github.com/pspoerri/demosaic/internal/rasterwriter"
)

// WeightParams are the weight builder knobs of spec.md §6, shared by
// every input in every tile; only InputRank varies per input within
// BuildWeight.
type WeightParams struct {
	BlurSigma              float64
	Exponent               float64
	UseCenterline          bool
	PriorityBlendingLength int
	// PriorityEnabled mirrors mosaic.WeightConfig.PriorityEnabled: set
	// true whenever --priority-blending-length was given on the command
	// line at all, including as 0 (spec.md §8's "priority_blending_length
	// = 0 equals first" property, which is otherwise indistinguishable
	// from priority mode being off).
	PriorityEnabled bool
}

// Config assembles every CLI-derived parameter of spec.md §6 into one
// value the driver's Run consumes.
type Config struct {
	GridOverrides grid.Overrides

	Mode         mosaic.ReductionMode
	SaveIndexMap bool

	Weights         WeightParams
	ExtraCropLength int

	HoleFillLength int
	DEMBlurSigma   float64
	ErodeLength    int

	OutputNoData    float64
	NoDataThreshold *float64

	Writer rasterwriter.Config

	// SaveDEMWeightInput, when >= 0, additionally writes the raw weight
	// field of that input index to SaveDEMWeightWriter for every tile it
	// contributes to (spec.md §6's --save-dem-weight).
	SaveDEMWeightInput  int
	SaveDEMWeightWriter rasterwriter.RasterWriter

	Threads int

	// CacheReaderLimit bounds the number of concurrently open input
	// readers (spec.md §5's "system may refuse to load all DEMs"),
	// derived from --cache-size-mb by the CLI layer against a nominal
	// per-reader memory estimate.
	CacheReaderLimit int

	// TileSubset, when non-nil, restricts processing to these tile
	// indices (--tile-index / --tile-list); nil means every tile the
	// grid planner produced.
	TileSubset []int
}
