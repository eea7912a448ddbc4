package binseg

import (
	"context"
	"math"
	"testing"

	"github.com/rbouman/stormphase/internal/stationdata"
)

func TestSegmentFindsLevelShift(t *testing.T) {
	x := make([]float64, 40)
	for i := range x {
		if i < 20 {
			x[i] = 0
		} else {
			x[i] = 10
		}
	}
	cfg := DefaultConfig()
	breaks := segment(x, cfg, 0.5)

	found := false
	for _, b := range breaks {
		if b >= 18 && b <= 22 {
			found = true
		}
	}
	if !found {
		t.Errorf("segment() breaks = %v, want one near index 20", breaks)
	}
}

// TestScoreSegmentsMeanReference reproduces spec.md §8 concrete scenario
// 4 from the breakpoints onward: signal [0]*50 + [5]*50 with breakpoints
// [50, 100] given as input, mean reference -> segment means [0, 5],
// reference 2.5, scores [-2.5]*50 + [2.5]*50.
func TestScoreSegmentsMeanReference(t *testing.T) {
	x := make([]float64, 100)
	for i := 50; i < 100; i++ {
		x[i] = 5
	}
	breaks := []int{50, 100}
	means := segmentMeans(x, breaks)
	if means[0] != 0 || means[1] != 5 {
		t.Fatalf("segmentMeans() = %v, want [0 5]", means)
	}

	r := reference(x, breaks, means, ReferenceMean)
	if math.Abs(r-2.5) > 1e-9 {
		t.Fatalf("reference(mean) = %v, want 2.5", r)
	}

	scores := scoreSegments(len(x), breaks, means, r)
	for i := 0; i < 50; i++ {
		if math.Abs(scores[i]-(-2.5)) > 1e-9 {
			t.Errorf("scores[%d] = %v, want -2.5", i, scores[i])
		}
	}
	for i := 50; i < 100; i++ {
		if math.Abs(scores[i]-2.5) > 1e-9 {
			t.Errorf("scores[%d] = %v, want 2.5", i, scores[i])
		}
	}
}

func TestReferenceLongestMean(t *testing.T) {
	// Segment [0,10) is longest (len 10) with mean 1; segment [10,15)
	// has mean 9. The reference must come from the longest segment, not
	// the whole signal.
	x := make([]float64, 15)
	for i := 0; i < 10; i++ {
		x[i] = 1
	}
	for i := 10; i < 15; i++ {
		x[i] = 9
	}
	breaks := []int{10, 15}
	means := segmentMeans(x, breaks)
	r := reference(x, breaks, means, ReferenceLongestMean)
	if math.Abs(r-1) > 1e-9 {
		t.Errorf("reference(longest_mean) = %v, want 1", r)
	}
}

func TestReferenceMinLengthBestFitFallsBackToMean(t *testing.T) {
	// For N=10, L_min = 24*4*30*3/35040 * 10 ~= 2.47, so none of the five
	// length-2 segments qualifies and minimum_length_best_fit must fall
	// back to the whole-signal mean (spec.md §8 boundary behavior).
	x := []float64{0, 0, 5, 5, 0, 0, 5, 5, 0, 0}
	breaks := []int{2, 4, 6, 8, 10}
	means := segmentMeans(x, breaks)
	r := reference(x, breaks, means, ReferenceMinLengthBestFit)
	want := mean(x)
	if math.Abs(r-want) > 1e-9 {
		t.Errorf("reference(minimum_length_best_fit) = %v, want fallback to mean %v", r, want)
	}
}

func TestPenaltyValueLinScalesWithBetaAndLength(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Penalty = PenaltyLin
	cfg.Beta = 2
	x := make([]float64, 10)
	got := cfg.penaltyValue(x)
	if got != 20 {
		t.Errorf("penaltyValue(lin) = %v, want 20 (n*beta)", got)
	}
}

func TestPenaltyValueL1ScalesWithAbsDeviation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Penalty = PenaltyL1
	cfg.Beta = 1
	x := []float64{0, 0, 4, 4} // mean 2, abs deviations sum to 8
	got := cfg.penaltyValue(x)
	if math.Abs(got-8) > 1e-9 {
		t.Errorf("penaltyValue(l1) = %v, want 8 (beta*sum|x-mean|)", got)
	}
}

func TestEngineFitTransformPredict(t *testing.T) {
	e := New()
	e.Config.Scaling = false
	e.Config.MoveAvg = 0
	batch := &stationdata.PreprocessedBatch{Stations: []*stationdata.Preprocessed{
		{ID: "s1", Diff: []float64{0, 0, 0, 0, 0, 5, 5, 5, 5, 5}},
	}}
	scores, err := e.FitTransformPredict(context.Background(), batch)
	if err != nil {
		t.Fatalf("FitTransformPredict: %v", err)
	}
	if len(scores[0]) != 10 {
		t.Fatalf("score length = %d, want 10", len(scores[0]))
	}
	if len(e.Breakpoints()[0]) == 0 {
		t.Fatal("Breakpoints() returned no breakpoints")
	}
	if len(e.SegmentMeans()[0]) != len(e.Breakpoints()[0]) {
		t.Fatalf("SegmentMeans() length = %d, want %d to match Breakpoints()",
			len(e.SegmentMeans()[0]), len(e.Breakpoints()[0]))
	}
}
