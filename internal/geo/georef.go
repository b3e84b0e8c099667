package geo

import "fmt"

// Georef is the pair (spatial reference system, pixel-to-world affine) that
// locates a raster, plus its no-data sentinel — spec.md §3's Georef entity.
// The SRS itself is an opaque identifier (WKT or a registry key); the
// mosaic core never interprets it beyond equality and handing it to a
// transform.CoordTransformer.
type Georef struct {
	SRS     string
	Affine  Affine
	NoData  float64
}

// PixelSize reports the raster's (dx, dy) ground sample distance, both
// positive per spec.md §3's invariant.
func (g Georef) PixelSize() (dx, dy float64) {
	return g.Affine.PixelSize()
}

// Valid checks the invariants spec.md §3 places on a Georef: the affine must
// be invertible and its pixel size finite and strictly positive.
func (g Georef) Valid() error {
	if !g.Affine.Invertible() {
		return fmt.Errorf("georef: affine is not invertible: %s", g.Affine)
	}
	dx, dy := g.PixelSize()
	if !(dx > 0) || !(dy > 0) || isNaNOrInf(dx) || isNaNOrInf(dy) {
		return fmt.Errorf("georef: pixel size must be finite and positive, got (%g, %g)", dx, dy)
	}
	return nil
}

// PixelToWorldBox converts a PixelBox to the WorldBox it covers under g's
// affine, by mapping its four corners and taking the axis-aligned bound —
// correct even when the affine carries rotation/shear terms.
func (g Georef) PixelToWorldBox(b PixelBox) WorldBox {
	if b.Empty() {
		return WorldBox{}
	}
	corners := [4][2]float64{
		{float64(b.MinX), float64(b.MinY)},
		{float64(b.MaxX), float64(b.MinY)},
		{float64(b.MinX), float64(b.MaxY)},
		{float64(b.MaxX), float64(b.MaxY)},
	}
	wb := WorldBox{MinX: +inf, MinY: +inf, MaxX: -inf, MaxY: -inf}
	for _, c := range corners {
		wx, wy := g.Affine.Forward(c[0], c[1])
		if wx < wb.MinX {
			wb.MinX = wx
		}
		if wx > wb.MaxX {
			wb.MaxX = wx
		}
		if wy < wb.MinY {
			wb.MinY = wy
		}
		if wy > wb.MaxY {
			wb.MaxY = wy
		}
	}
	return wb
}

// WorldToPixelBox converts a WorldBox into the integer PixelBox that
// contains it, rounding outward so every covered world point maps inside
// the returned box.
func (g Georef) WorldToPixelBox(w WorldBox) (PixelBox, bool) {
	corners := [4][2]float64{
		{w.MinX, w.MinY}, {w.MaxX, w.MinY}, {w.MinX, w.MaxY}, {w.MaxX, w.MaxY},
	}
	minX, minY := +inf, +inf
	maxX, maxY := -inf, -inf
	for _, c := range corners {
		px, py, ok := g.Affine.Backward(c[0], c[1])
		if !ok {
			return PixelBox{}, false
		}
		if px < minX {
			minX = px
		}
		if px > maxX {
			maxX = px
		}
		if py < minY {
			minY = py
		}
		if py > maxY {
			maxY = py
		}
	}
	return PixelBox{
		MinX: floorInt(minX), MinY: floorInt(minY),
		MaxX: ceilInt(maxX), MaxY: ceilInt(maxY),
	}, true
}

const inf = 1e300

func floorInt(v float64) int {
	i := int(v)
	if v < float64(i) {
		return i - 1
	}
	return i
}

func ceilInt(v float64) int {
	i := int(v)
	if v > float64(i) {
		return i + 1
	}
	return i
}
