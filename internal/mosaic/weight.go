package mosaic

import (
	"math"

	"github.com/pspoerri/demosaic/internal/geo"
)

// WeightConfig configures the weight builder of spec.md §4.4.
type WeightConfig struct {
	// Exponent is weights_exponent (default 2.0).
	Exponent float64
	// BlurSigma is weights_blur_sigma (default 5.0); 0 skips the blur.
	BlurSigma float64
	// UseCenterline selects the distance-to-boundary / distance-to-medial-axis
	// weighting instead of the plain distance transform.
	UseCenterline bool

	// PriorityEnabled turns on priority re-mapping: the driver sets this
	// whenever --priority-blending-length was supplied at all (including
	// 0), as distinct from the flag being absent.
	PriorityEnabled bool
	// PriorityBlendingLength is the ramp band width in pixels: this
	// input's weight saturates beyond that many pixels from its boundary
	// and ramps down to the normal weight within the band. 0 means the
	// band is empty, so every valid pixel saturates — which is what makes
	// --priority-blending-length 0 reduce to "first" (spec.md §8).
	PriorityBlendingLength int
	// InputRank is this input's position (0 = earliest) in the tile's
	// ordered input list, the k of spec.md §4.4's W_k = 2^(K-k).
	InputRank int
}

// priorityRankBits is the exponent gap between consecutive priority ranks.
// A gap this wide makes a senior input's saturated weight dominate a
// float64 weighted sum against any number of junior inputs' weights well
// past floating-point rounding, which is what makes
// --priority-blending-length 0 reduce bit-for-bit to "first" (spec.md §8).
// Ranks are capped so the exponent never approaches float64's ~1023 limit.
const (
	priorityRankBits = 64
	priorityRankCap  = 15
)

func priorityWeight(rank int) float64 {
	if rank < 0 {
		rank = 0
	}
	if rank > priorityRankCap {
		rank = priorityRankCap
	}
	return math.Ldexp(1, (priorityRankCap-rank)*priorityRankBits)
}

// BuildWeight builds the WeightPatch for one input's reprojected Patch,
// per spec.md §4.4. fullBox is the input's full pixel box expressed in
// the patch's own coordinate space (identical to the patch's coordinates
// when output and input share a georeference; otherwise an approximation
// supplied by the caller) — pixels outside it are treated as boundary,
// so the weight falls off toward the input's natural edge and not just
// toward interior no-data.
func BuildWeight(patch *Patch, fullBox geo.PixelBox, cfg WeightConfig) *WeightPatch {
	h := patch.Box.Height()
	w := patch.Box.Width()

	valid := make([][]bool, h)
	for row := 0; row < h; row++ {
		valid[row] = make([]bool, w)
		py := patch.Box.MinY + row
		for col := 0; col < w; col++ {
			px := patch.Box.MinX + col
			_, ok := patch.At(px, py)
			valid[row][col] = ok && fullBox.Contains(px, py)
		}
	}

	db := DistanceTransform(valid)

	var base [][]float64
	if cfg.UseCenterline {
		base = centerlineWeight(db, valid)
	} else {
		base = db
	}

	exponent := cfg.Exponent
	if exponent == 0 {
		exponent = 1
	}
	raised := make([][]float64, h)
	for row := 0; row < h; row++ {
		raised[row] = make([]float64, w)
		for col := 0; col < w; col++ {
			if !valid[row][col] {
				continue
			}
			v := base[row][col]
			if v < 0 {
				v = 0
			}
			raised[row][col] = math.Pow(v, exponent)
		}
	}

	blurred := raised
	if cfg.BlurSigma > 0 {
		blurred, _ = BlurIgnoringInvalid(raised, valid, cfg.BlurSigma)
	}

	wp := NewWeightPatch(patch.Box)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			if !valid[row][col] {
				continue
			}
			wp.Values[row][col] = blurred[row][col]
		}
	}

	if cfg.PriorityEnabled {
		applyPriorityRemap(wp, db, valid, cfg)
	}

	return wp
}

// centerlineWeight computes, for each valid cell, db/(db+dc) where dc is
// the distance to the nearest local maximum of db — the medial-axis
// approximation spec.md §9 explicitly leaves as an open implementation
// choice, as long as the result rises smoothly to 1 along the skeleton.
func centerlineWeight(db [][]float64, valid [][]bool) [][]float64 {
	h := len(valid)
	if h == 0 {
		return nil
	}
	w := len(valid[0])

	maxima := make([][]bool, h)
	for y := 0; y < h; y++ {
		maxima[y] = make([]bool, w)
		for x := 0; x < w; x++ {
			if !valid[y][x] {
				continue
			}
			maxima[y][x] = isLocalMaximum(db, valid, x, y)
		}
	}
	dc := distanceFromSeeds(maxima)

	out := make([][]float64, h)
	for y := 0; y < h; y++ {
		out[y] = make([]float64, w)
		for x := 0; x < w; x++ {
			if !valid[y][x] {
				continue
			}
			denom := db[y][x] + dc[y][x]
			if denom <= 0 {
				out[y][x] = 1
				continue
			}
			out[y][x] = db[y][x] / denom
		}
	}
	return out
}

func isLocalMaximum(db [][]float64, valid [][]bool, x, y int) bool {
	h, w := len(db), len(db[0])
	v := db[y][x]
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := x+dx, y+dy
			if nx < 0 || nx >= w || ny < 0 || ny >= h || !valid[ny][nx] {
				continue
			}
			if db[ny][nx] > v {
				return false
			}
		}
	}
	return true
}

// applyPriorityRemap implements spec.md §4.4 step 5: for cells whose
// distance to boundary exceeds priorityBlendingLength, force the input's
// saturated priority weight; within the band, linearly ramp from the
// normal blended weight (at the boundary) up to the saturated weight (at
// the band's outer edge).
func applyPriorityRemap(wp *WeightPatch, db [][]float64, valid [][]bool, cfg WeightConfig) {
	h := len(valid)
	if h == 0 {
		return
	}
	w := len(valid[0])
	length := float64(cfg.PriorityBlendingLength)
	wk := priorityWeight(cfg.InputRank)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !valid[y][x] {
				continue
			}
			d := db[y][x]
			if length <= 0 || d >= length {
				wp.Values[y][x] = wk
				continue
			}
			t := d / length
			normal := wp.Values[y][x]
			wp.Values[y][x] = normal + t*(wk-normal)
		}
	}
}
