// Package geo implements the georeferencing primitives shared across the
// mosaic pipeline: pixel and world bounding boxes, and the affine map
// between pixel space and projected (world) space.
package geo

import "math"

// PixelBox is an axis-aligned integer pixel rectangle. Max is exclusive,
// matching Go's image.Rectangle convention.
type PixelBox struct {
	MinX, MinY int
	MaxX, MaxY int
}

// Empty reports whether the box contains no pixels.
func (b PixelBox) Empty() bool {
	return b.MinX >= b.MaxX || b.MinY >= b.MaxY
}

// Width returns the box width in pixels.
func (b PixelBox) Width() int { return b.MaxX - b.MinX }

// Height returns the box height in pixels.
func (b PixelBox) Height() int { return b.MaxY - b.MinY }

// Area returns the number of pixels covered by the box.
func (b PixelBox) Area() int {
	if b.Empty() {
		return 0
	}
	return b.Width() * b.Height()
}

// Intersect returns the largest box contained in both b and o. The result
// may be empty if the boxes do not overlap.
func (b PixelBox) Intersect(o PixelBox) PixelBox {
	r := PixelBox{
		MinX: maxInt(b.MinX, o.MinX),
		MinY: maxInt(b.MinY, o.MinY),
		MaxX: minInt(b.MaxX, o.MaxX),
		MaxY: minInt(b.MaxY, o.MaxY),
	}
	if r.Empty() {
		return PixelBox{}
	}
	return r
}

// Intersects reports whether b and o share at least one pixel.
func (b PixelBox) Intersects(o PixelBox) bool {
	return !b.Intersect(o).Empty()
}

// Expand grows the box by n pixels on every side.
func (b PixelBox) Expand(n int) PixelBox {
	return PixelBox{
		MinX: b.MinX - n,
		MinY: b.MinY - n,
		MaxX: b.MaxX + n,
		MaxY: b.MaxY + n,
	}
}

// ClampTo intersects b with o, equivalent to Intersect; named for call sites
// that read more naturally as "clamp this crop box to the source extent".
func (b PixelBox) ClampTo(o PixelBox) PixelBox {
	return b.Intersect(o)
}

// Contains reports whether the pixel (x, y) lies within b.
func (b PixelBox) Contains(x, y int) bool {
	return x >= b.MinX && x < b.MaxX && y >= b.MinY && y < b.MaxY
}

// WorldBox is an axis-aligned rectangle in projected (world) coordinates.
// Max is exclusive by convention, matching PixelBox.
type WorldBox struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Empty reports whether the box is degenerate or inverted.
func (b WorldBox) Empty() bool {
	return !(b.MinX < b.MaxX) || !(b.MinY < b.MaxY)
}

// Union returns the smallest WorldBox containing both b and o. An empty
// input is ignored.
func (b WorldBox) Union(o WorldBox) WorldBox {
	if b.Empty() {
		return o
	}
	if o.Empty() {
		return b
	}
	return WorldBox{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

// Intersect returns the overlap of b and o; the result may be empty.
func (b WorldBox) Intersect(o WorldBox) WorldBox {
	r := WorldBox{
		MinX: math.Max(b.MinX, o.MinX),
		MinY: math.Max(b.MinY, o.MinY),
		MaxX: math.Min(b.MaxX, o.MaxX),
		MaxY: math.Min(b.MaxY, o.MaxY),
	}
	if r.Empty() {
		return WorldBox{}
	}
	return r
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
