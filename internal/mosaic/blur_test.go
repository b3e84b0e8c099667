package mosaic

import (
	"math"
	"testing"
)

func TestGaussianKernel1DNormalizes(t *testing.T) {
	for _, sigma := range []float64{0, 0.5, 1, 2.5} {
		k := GaussianKernel1D(sigma)
		sum := 0.0
		for _, v := range k {
			sum += v
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("sigma=%v: kernel sums to %v, want 1", sigma, sum)
		}
		if len(k)%2 != 1 {
			t.Fatalf("sigma=%v: kernel length %d should be odd", sigma, len(k))
		}
	}
}

func TestBlurIgnoringInvalidUniformIsUnchanged(t *testing.T) {
	values := make([][]float64, 6)
	valid := make([][]bool, 6)
	for y := range values {
		values[y] = make([]float64, 6)
		valid[y] = make([]bool, 6)
		for x := range values[y] {
			values[y][x] = 5
			valid[y][x] = true
		}
	}
	out, outValid := BlurIgnoringInvalid(values, valid, 1.5)
	for y := range out {
		for x := range out[y] {
			if !outValid[y][x] {
				t.Fatalf("(%d,%d) should stay valid", x, y)
			}
			if math.Abs(out[y][x]-5) > 1e-9 {
				t.Fatalf("uniform field should blur to itself, got %v at (%d,%d)", out[y][x], x, y)
			}
		}
	}
}

func TestBlurIgnoringInvalidSkipsHoles(t *testing.T) {
	values := [][]float64{
		{1, 1, 1},
		{1, 0, 1},
		{1, 1, 1},
	}
	valid := [][]bool{
		{true, true, true},
		{true, false, true},
		{true, true, true},
	}
	out, outValid := BlurIgnoringInvalid(values, valid, 1.0)
	if outValid[1][1] {
		t.Fatalf("hole cell should stay invalid")
	}
	if math.Abs(out[0][0]-1) > 1e-6 {
		t.Fatalf("corner surrounded by uniform 1s should stay close to 1, got %v", out[0][0])
	}
}
