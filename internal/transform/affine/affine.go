// Package affine is a reference transform.CoordTransformer for the common
// case spec.md §8's end-to-end scenarios all exercise: inputs that already
// share a single SRS, or whose relationship to each other is a known
// affine (e.g. two grids related by a rigid shift, used in tests of the
// reprojector's general inverse-mapping path without a real projection
// library). It plays the role the teacher fills with its own pure-Go
// internal/coord package (web Mercator + Swiss LV95) rather than binding
// to a real projection engine — this module generalizes that choice from
// two hard-coded projections to any registered pair.
package affine

import (
	"fmt"

	"github.com/pspoerri/demosaic/internal/geo"
	"github.com/pspoerri/demosaic/internal/transform"
)

// Transformer resolves an SRS pair to a geo.Affine mapping src -> dst world
// coordinates, applying it point-wise. Identity is assumed when src == dst.
type Transformer struct {
	// Pairs maps "srcSRS\x00dstSRS" to the affine that converts a point in
	// srcSRS into dstSRS. The reverse pair is derived automatically via
	// Inverse when not registered explicitly.
	pairs map[string]geo.Affine
}

// New creates an empty Transformer; register relationships with Register.
func New() *Transformer {
	return &Transformer{pairs: make(map[string]geo.Affine)}
}

// Register records that a point in srcSRS converts to dstSRS via a.
func (t *Transformer) Register(srcSRS, dstSRS string, a geo.Affine) {
	t.pairs[key(srcSRS, dstSRS)] = a
}

func key(src, dst string) string { return src + "\x00" + dst }

// Transform implements transform.CoordTransformer.
func (t *Transformer) Transform(srcSRS, dstSRS string, pts []transform.Point) ([]transform.Point, error) {
	if srcSRS == dstSRS {
		out := make([]transform.Point, len(pts))
		copy(out, pts)
		return out, nil
	}

	if a, ok := t.pairs[key(srcSRS, dstSRS)]; ok {
		return applyAffine(a, pts), nil
	}
	if a, ok := t.pairs[key(dstSRS, srcSRS)]; ok {
		inv, ok := a.Inverse()
		if !ok {
			return nil, fmt.Errorf("affine transform: registered %s->%s affine is not invertible", dstSRS, srcSRS)
		}
		return applyAffine(inv, pts), nil
	}

	return nil, fmt.Errorf("affine transform: no relationship registered between %q and %q", srcSRS, dstSRS)
}

func applyAffine(a geo.Affine, pts []transform.Point) []transform.Point {
	out := make([]transform.Point, len(pts))
	for i, p := range pts {
		wx, wy := a.Forward(p.X, p.Y)
		out[i] = transform.Point{X: wx, Y: wy}
	}
	return out
}
