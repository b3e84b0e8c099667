package mosaic

import (
	"math"
	"sort"

	"github.com/pspoerri/demosaic/internal/geo"
)

// AccumulatorConfig configures an Accumulator.
type AccumulatorConfig struct {
	Mode         ReductionMode
	SaveIndexMap bool
	OutputNoData float64
}

// Accumulator folds a tile's contributing (Patch, WeightPatch) pairs, in
// declared input order, into an OutputTile, per spec.md §4.5's per-mode
// state and update table. Ordering is the sole source of "first"/"last"/
// min-max-tie-breaking behavior (spec.md §4.5, §5).
type Accumulator struct {
	box geo.PixelBox
	cfg AccumulatorConfig

	sumWV, sumW [][]float64

	value [][]float64
	index [][]int32
	set   [][]bool

	sum, sumSq [][]float64
	count      [][]int64

	samples [][][]float64
}

// NewAccumulator allocates only the state the configured mode needs.
func NewAccumulator(box geo.PixelBox, cfg AccumulatorConfig) *Accumulator {
	a := &Accumulator{box: box, cfg: cfg}
	h, w := box.Height(), box.Width()

	alloc2 := func() [][]float64 {
		g := make([][]float64, h)
		for y := range g {
			g[y] = make([]float64, w)
		}
		return g
	}
	allocBool := func() [][]bool {
		g := make([][]bool, h)
		for y := range g {
			g[y] = make([]bool, w)
		}
		return g
	}
	allocIdx := func() [][]int32 {
		g := make([][]int32, h)
		for y := range g {
			g[y] = make([]int32, w)
		}
		return g
	}
	allocCount := func() [][]int64 {
		g := make([][]int64, h)
		for y := range g {
			g[y] = make([]int64, w)
		}
		return g
	}

	switch cfg.Mode {
	case ModeBlend:
		a.sumWV, a.sumW = alloc2(), alloc2()
	case ModeFirst, ModeLast, ModeMin, ModeMax:
		a.value, a.index, a.set = alloc2(), allocIdx(), allocBool()
	case ModeMean, ModeStddev:
		a.sum, a.sumSq, a.count = alloc2(), alloc2(), allocCount()
	case ModeCount:
		a.count = allocCount()
	case ModeMedian, ModeNMAD:
		a.samples = make([][][]float64, h)
		for y := range a.samples {
			a.samples[y] = make([][]float64, w)
		}
	}
	return a
}

// Accumulate folds one input's reprojected Patch (and, for blend mode,
// its WeightPatch) into the running state, at input-list position rank.
func (a *Accumulator) Accumulate(rank int, patch *Patch, weight *WeightPatch) {
	for row := 0; row < a.box.Height(); row++ {
		y := a.box.MinY + row
		for col := 0; col < a.box.Width(); col++ {
			x := a.box.MinX + col
			v, ok := patch.At(x, y)
			if !ok {
				continue
			}

			switch a.cfg.Mode {
			case ModeBlend:
				w := weight.At(x, y)
				a.sumWV[row][col] += w * v
				a.sumW[row][col] += w
			case ModeFirst:
				if !a.set[row][col] {
					a.value[row][col] = v
					a.index[row][col] = int32(rank)
					a.set[row][col] = true
				}
			case ModeLast:
				a.value[row][col] = v
				a.index[row][col] = int32(rank)
				a.set[row][col] = true
			case ModeMin:
				if !a.set[row][col] || v < a.value[row][col] {
					a.value[row][col] = v
					a.index[row][col] = int32(rank)
					a.set[row][col] = true
				}
			case ModeMax:
				if !a.set[row][col] || v > a.value[row][col] {
					a.value[row][col] = v
					a.index[row][col] = int32(rank)
					a.set[row][col] = true
				}
			case ModeMean, ModeStddev:
				a.sum[row][col] += v
				a.sumSq[row][col] += v * v
				a.count[row][col]++
			case ModeCount:
				a.count[row][col]++
			case ModeMedian, ModeNMAD:
				a.samples[row][col] = append(a.samples[row][col], v)
			}
		}
	}
}

// Finalize produces the OutputTile, per spec.md §4.5's finalization rules.
// Numeric degeneracies (sum_w = 0, stddev with n < 2) yield no-data, not
// errors (spec.md §7).
func (a *Accumulator) Finalize() *OutputTile {
	withIndexMap := a.cfg.SaveIndexMap && a.cfg.Mode.HasIndex()
	tile := newOutputTile(a.box, a.cfg.OutputNoData, withIndexMap)

	for row := 0; row < a.box.Height(); row++ {
		y := a.box.MinY + row
		for col := 0; col < a.box.Width(); col++ {
			x := a.box.MinX + col

			switch a.cfg.Mode {
			case ModeBlend:
				if a.sumW[row][col] > 0 {
					tile.Set(x, y, a.sumWV[row][col]/a.sumW[row][col])
				}
			case ModeFirst, ModeLast, ModeMin, ModeMax:
				if a.set[row][col] {
					tile.Set(x, y, a.value[row][col])
					if withIndexMap {
						tile.IndexMap[row][col] = a.index[row][col]
					}
				}
			case ModeMean:
				if n := a.count[row][col]; n > 0 {
					tile.Set(x, y, a.sum[row][col]/float64(n))
				}
			case ModeStddev:
				if n := a.count[row][col]; n >= 2 {
					fn := float64(n)
					mean := a.sum[row][col] / fn
					variance := a.sumSq[row][col]/fn - mean*mean
					if variance < 0 {
						variance = 0
					}
					tile.Set(x, y, math.Sqrt(variance))
				}
			case ModeCount:
				tile.Set(x, y, float64(a.count[row][col]))
			case ModeMedian:
				if s := a.samples[row][col]; len(s) > 0 {
					tile.Set(x, y, median(s))
				}
			case ModeNMAD:
				if s := a.samples[row][col]; len(s) > 0 {
					m := median(s)
					dev := make([]float64, len(s))
					for i, v := range s {
						dev[i] = math.Abs(v - m)
					}
					tile.Set(x, y, 1.4826*median(dev))
				}
			}
		}
	}
	return tile
}

// median sorts a copy of samples and returns the middle value, or the
// average of the two middle values for an even count.
func median(samples []float64) float64 {
	s := make([]float64, len(samples))
	copy(s, samples)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
