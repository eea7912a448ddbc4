package engine

import (
	"context"
	"math"
	"testing"

	"github.com/rbouman/stormphase/internal/stationdata"
)

func TestCenteredMovingAverageBoundaryTruncation(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	got := CenteredMovingAverage(x, 3)
	// Boundary points average over a truncated window, not a zero-padded one.
	want := []float64{1.5, 2, 3, 4, 4.5}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("CenteredMovingAverage()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCenteredMovingAverageSkipsNaN(t *testing.T) {
	// Window [0,2) for index 0 covers x[0] and x[1]; x[1] is NaN and must
	// be excluded from the average rather than poisoning it.
	x := []float64{1, math.NaN(), 3}
	got := CenteredMovingAverage(x, 3)
	if math.Abs(got[0]-1) > 1e-9 {
		t.Errorf("CenteredMovingAverage()[0] = %v, want 1 (NaN skipped)", got[0])
	}
}

func TestRobustScaleZeroRangeFallsBackToUnitScale(t *testing.T) {
	x := []float64{5, 5, 5, 5}
	got := RobustScale(x, 10, 90)
	for i, v := range got {
		if v != 0 {
			t.Errorf("RobustScale()[%d] = %v, want 0 for a constant series", i, v)
		}
	}
}

func TestPercentileLinearInterpolation(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	if got := percentile(sorted, 50); math.Abs(got-2.5) > 1e-9 {
		t.Errorf("percentile(50) = %v, want 2.5", got)
	}
}

func TestSPCFitTransformPredict(t *testing.T) {
	diff := []float64{0, 0, 0, 0, 0, 1000, 0, 0, 0, 0, 0}
	station := &stationdata.Preprocessed{ID: "s1", Diff: diff}
	batch := &stationdata.PreprocessedBatch{Stations: []*stationdata.Preprocessed{station}}

	spc := NewSPC()
	scores, err := spc.FitTransformPredict(context.Background(), batch)
	if err != nil {
		t.Fatalf("FitTransformPredict: %v", err)
	}
	if len(scores) != 1 || len(scores[0]) != len(diff) {
		t.Fatalf("unexpected output shape: %v", scores)
	}
	// The spike at index 5 should score further from zero than a flat
	// region untouched by the smoothing window.
	if math.Abs(scores[0][5]) <= math.Abs(scores[0][0]) {
		t.Errorf("spike score %v not more extreme than flat score %v", scores[0][5], scores[0][0])
	}
}
