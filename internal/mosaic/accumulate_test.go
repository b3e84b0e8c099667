package mosaic

import (
	"math"
	"testing"

	"github.com/pspoerri/demosaic/internal/geo"
)

func uniformWeight(box geo.PixelBox, v float64) *WeightPatch {
	wp := NewWeightPatch(box)
	for y := box.MinY; y < box.MaxY; y++ {
		for x := box.MinX; x < box.MaxX; x++ {
			wp.Set(x, y, v)
		}
	}
	return wp
}

func TestAccumulatorBlendSymmetric(t *testing.T) {
	box := geo.PixelBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}
	a := fullyValidPatch(10, 100, -9999)
	b := fullyValidPatch(10, 200, -9999)
	wa := uniformWeight(box, 1)
	wb := uniformWeight(box, 1)

	acc := NewAccumulator(box, AccumulatorConfig{Mode: ModeBlend, OutputNoData: -9999})
	acc.Accumulate(0, a, wa)
	acc.Accumulate(1, b, wb)
	out := acc.Finalize()

	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if math.Abs(out.Values[y][x]-150) > 1e-9 {
				t.Fatalf("blend of 100/200 with equal weight should be 150, got %v at (%d,%d)", out.Values[y][x], x, y)
			}
		}
	}
}

func TestAccumulatorMean(t *testing.T) {
	box := geo.PixelBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}
	a := fullyValidPatch(10, 100, -9999)
	b := fullyValidPatch(10, 200, -9999)

	acc := NewAccumulator(box, AccumulatorConfig{Mode: ModeMean, OutputNoData: -9999})
	acc.Accumulate(0, a, nil)
	acc.Accumulate(1, b, nil)
	out := acc.Finalize()

	if math.Abs(out.Values[3][3]-150) > 1e-9 {
		t.Fatalf("mean of 100/200 should be 150, got %v", out.Values[3][3])
	}
}

func TestAccumulatorFirstLast(t *testing.T) {
	box := geo.PixelBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}
	a := fullyValidPatch(10, 100, -9999)
	b := fullyValidPatch(10, 200, -9999)

	first := NewAccumulator(box, AccumulatorConfig{Mode: ModeFirst, OutputNoData: -9999})
	first.Accumulate(0, a, nil)
	first.Accumulate(1, b, nil)
	firstOut := first.Finalize()
	if firstOut.Values[0][0] != 100 {
		t.Fatalf("first mode should equal 100, got %v", firstOut.Values[0][0])
	}

	last := NewAccumulator(box, AccumulatorConfig{Mode: ModeLast, OutputNoData: -9999})
	last.Accumulate(0, a, nil)
	last.Accumulate(1, b, nil)
	lastOut := last.Finalize()
	if lastOut.Values[0][0] != 200 {
		t.Fatalf("last mode should equal 200, got %v", lastOut.Values[0][0])
	}
}

func TestAccumulatorMinMaxTieBreaksToEarlier(t *testing.T) {
	box := geo.PixelBox{MinX: 0, MinY: 0, MaxX: 4, MaxY: 4}
	a := fullyValidPatch(4, 50, -9999)
	b := fullyValidPatch(4, 50, -9999)

	min := NewAccumulator(box, AccumulatorConfig{Mode: ModeMin, OutputNoData: -9999, SaveIndexMap: true})
	min.Accumulate(0, a, nil)
	min.Accumulate(1, b, nil)
	out := min.Finalize()
	if out.IndexMap[0][0] != 0 {
		t.Fatalf("tie should keep the earlier input's index, got %d", out.IndexMap[0][0])
	}
}

func TestAccumulatorCount(t *testing.T) {
	box := geo.PixelBox{MinX: 0, MinY: 0, MaxX: 2, MaxY: 2}
	a := fullyValidPatch(2, 1, -9999)
	acc := NewAccumulator(box, AccumulatorConfig{Mode: ModeCount, OutputNoData: -9999})
	acc.Accumulate(0, a, nil)
	out := acc.Finalize()
	if out.Values[0][0] != 1 {
		t.Fatalf("count should be 1 after one contribution, got %v", out.Values[0][0])
	}
	if out.IsNoData[0][0] {
		t.Fatalf("count is always defined, never no-data")
	}
}

func TestAccumulatorStddevDegenerate(t *testing.T) {
	box := geo.PixelBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}
	a := fullyValidPatch(1, 10, -9999)
	acc := NewAccumulator(box, AccumulatorConfig{Mode: ModeStddev, OutputNoData: -9999})
	acc.Accumulate(0, a, nil)
	out := acc.Finalize()
	if !out.IsNoData[0][0] {
		t.Fatalf("stddev with n=1 should be no-data, got %v", out.Values[0][0])
	}
}

func TestAccumulatorMedianOddEven(t *testing.T) {
	box := geo.PixelBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}
	p1 := fullyValidPatch(1, 10, -9999)
	p2 := fullyValidPatch(1, 20, -9999)
	p3 := fullyValidPatch(1, 30, -9999)

	acc := NewAccumulator(box, AccumulatorConfig{Mode: ModeMedian, OutputNoData: -9999})
	acc.Accumulate(0, p1, nil)
	acc.Accumulate(1, p2, nil)
	acc.Accumulate(2, p3, nil)
	out := acc.Finalize()
	if out.Values[0][0] != 20 {
		t.Fatalf("median of [10,20,30] should be 20, got %v", out.Values[0][0])
	}

	acc2 := NewAccumulator(box, AccumulatorConfig{Mode: ModeMedian, OutputNoData: -9999})
	acc2.Accumulate(0, p1, nil)
	acc2.Accumulate(1, p2, nil)
	out2 := acc2.Finalize()
	if out2.Values[0][0] != 15 {
		t.Fatalf("median of [10,20] should be 15, got %v", out2.Values[0][0])
	}
}

func TestPriorityBlendingLengthZeroEqualsFirst(t *testing.T) {
	box := geo.PixelBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}
	a := fullyValidPatch(10, 100, -9999)
	b := fullyValidPatch(10, 200, -9999)

	cfgA := WeightConfig{Exponent: 2, BlurSigma: 0, PriorityEnabled: true, PriorityBlendingLength: 0, InputRank: 0}
	cfgB := WeightConfig{Exponent: 2, BlurSigma: 0, PriorityEnabled: true, PriorityBlendingLength: 0, InputRank: 1}
	wa := BuildWeight(a, box, cfgA)
	wb := BuildWeight(b, box, cfgB)

	acc := NewAccumulator(box, AccumulatorConfig{Mode: ModeBlend, OutputNoData: -9999})
	acc.Accumulate(0, a, wa)
	acc.Accumulate(1, b, wb)
	out := acc.Finalize()

	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if out.Values[y][x] != 100 {
				t.Fatalf("priority-blending-length 0 should equal first mode exactly, got %v at (%d,%d)", out.Values[y][x], x, y)
			}
		}
	}
}
