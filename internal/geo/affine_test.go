package geo

import (
	"math"
	"testing"
)

func TestAffineForwardBackwardRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		a    Affine
		px   float64
		py   float64
	}{
		{"identity north-up", IdentityPixelAffine(100, 200, 2, 2), 10, 20},
		{"non-square pixels", IdentityPixelAffine(-50, 50, 0.5, 1.5), 3.25, 7.75},
		{"rotated", Affine{A: 0, B: 1, C: 0.3, D: 0, E: -0.3, F: 1}, 5, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wx, wy := tt.a.Forward(tt.px, tt.py)
			px, py, ok := tt.a.Backward(wx, wy)
			if !ok {
				t.Fatalf("Backward reported non-invertible affine")
			}
			if math.Abs(px-tt.px) > 1e-9 || math.Abs(py-tt.py) > 1e-9 {
				t.Errorf("round trip = (%g, %g), want (%g, %g)", px, py, tt.px, tt.py)
			}
		})
	}
}

func TestAffineNonInvertible(t *testing.T) {
	a := Affine{A: 0, B: 0, C: 0, D: 0, E: 0, F: 0}
	if a.Invertible() {
		t.Fatal("zero affine should not be invertible")
	}
	if _, ok := a.Inverse(); ok {
		t.Fatal("Inverse should report failure for a singular affine")
	}
}

func TestGeorefValid(t *testing.T) {
	g := Georef{SRS: "EPSG:4326", Affine: IdentityPixelAffine(0, 0, 1, 1), NoData: -9999}
	if err := g.Valid(); err != nil {
		t.Fatalf("expected valid georef, got %v", err)
	}

	degenerate := Georef{SRS: "EPSG:4326", Affine: Affine{}}
	if err := degenerate.Valid(); err == nil {
		t.Fatal("expected error for degenerate affine")
	}
}

func TestPixelWorldBoxRoundTrip(t *testing.T) {
	g := Georef{Affine: IdentityPixelAffine(1000, 2000, 10, 10)}
	pb := PixelBox{MinX: 0, MinY: 0, MaxX: 100, MaxY: 50}
	wb := g.PixelToWorldBox(pb)
	back, ok := g.WorldToPixelBox(wb)
	if !ok {
		t.Fatal("WorldToPixelBox failed")
	}
	if back != pb {
		t.Errorf("round trip pixel box = %+v, want %+v", back, pb)
	}
}
