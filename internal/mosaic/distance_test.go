package mosaic

import (
	"math"
	"testing"
)

func TestDistanceTransformAllValid(t *testing.T) {
	valid := [][]bool{
		{true, true, true},
		{true, true, true},
		{true, true, true},
	}
	dist := DistanceTransform(valid)
	for y := range dist {
		for x := range dist[y] {
			if dist[y][x] != 1e18 {
				t.Fatalf("expected untouched interior to stay at sentinel distance, got %v at (%d,%d)", dist[y][x], x, y)
			}
		}
	}
}

func TestDistanceTransformSingleHole(t *testing.T) {
	valid := [][]bool{
		{true, true, true, true, true},
		{true, true, true, true, true},
		{true, true, false, true, true},
		{true, true, true, true, true},
		{true, true, true, true, true},
	}
	dist := DistanceTransform(valid)

	if got := dist[2][2]; got != 0 {
		t.Fatalf("hole cell should be 0, got %v", got)
	}
	if got := dist[2][1]; math.Abs(got-1) > 1e-9 {
		t.Fatalf("orthogonal neighbor should be 1, got %v", got)
	}
	if got := dist[1][1]; math.Abs(got-math.Sqrt2) > 1e-9 {
		t.Fatalf("diagonal neighbor should be sqrt(2), got %v", got)
	}
	if got := dist[0][0]; got <= dist[1][1] {
		t.Fatalf("farther cell (0,0) should exceed the diagonal neighbor distance, got %v vs %v", got, dist[1][1])
	}
}

func TestDistanceTransformEdgeAsBoundary(t *testing.T) {
	// Mark the border invalid, as the weight builder does for an input's
	// full pixel box edge, and confirm distance grows toward the center.
	n := 5
	valid := make([][]bool, n)
	for y := 0; y < n; y++ {
		valid[y] = make([]bool, n)
		for x := 0; x < n; x++ {
			onBorder := x == 0 || y == 0 || x == n-1 || y == n-1
			valid[y][x] = !onBorder
		}
	}
	dist := DistanceTransform(valid)
	center := dist[2][2]
	corner := dist[1][1]
	if !(center > corner) {
		t.Fatalf("center distance %v should exceed near-corner distance %v", center, corner)
	}
}
