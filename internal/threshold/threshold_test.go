package threshold

import (
	"math"
	"testing"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/rbouman/stormphase/internal/stationdata"
)

func TestFBeta(t *testing.T) {
	if got := FBeta(1, 1, DefaultBeta); math.Abs(got-1) > 1e-9 {
		t.Errorf("FBeta(1,1,beta) = %v, want 1", got)
	}
	if got := FBeta(0, 0, DefaultBeta); got != 0 {
		t.Errorf("FBeta(0,0,beta) = %v, want 0", got)
	}
}

func TestInterp1DFlatExtrapolation(t *testing.T) {
	xp := []float64{3, 1, 2}
	fp := []float64{30, 10, 20}
	got := Interp1D([]float64{0, 1.5, 4}, xp, fp)
	want := []float64{10, 15, 30}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("Interp1D()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func singleBucketBatch(scores []float64, labels []int) (*stationdata.PreprocessedBatch, []stationdata.LengthFilterBank) {
	n := len(scores)
	// Exclusion mask: false means "keep" (nothing excluded), matching
	// eventlen.Filters' convention.
	mask := make([]bool, n)
	station := &stationdata.Preprocessed{ID: "s1", Label: labels}
	batch := &stationdata.PreprocessedBatch{Stations: []*stationdata.Preprocessed{station}}
	bank := orderedmap.New[string, []bool]()
	bank.Set("all", mask)
	return batch, []stationdata.LengthFilterBank{bank}
}

// TestOptimizeDoubleScenario reproduces the worked example: scores
// [-3,-2,-1,0,1,2,3] with labels [1,1,0,0,0,1,1] in a single bucket
// should yield tau_neg=-2, tau_pos=2, with perfect F-beta.
func TestOptimizeDoubleScenario(t *testing.T) {
	scores := []float64{-3, -2, -1, 0, 1, 2, 3}
	labels := []int{1, 1, 0, 0, 0, 1, 1}
	batch, filters := singleBucketBatch(scores, labels)

	result := OptimizeDouble([][]float64{scores}, batch, filters, []string{"all"}, DefaultBeta)

	if math.Abs(result.TauNeg-(-2)) > 1e-6 {
		t.Errorf("TauNeg = %v, want -2", result.TauNeg)
	}
	if math.Abs(result.TauPos-2) > 1e-6 {
		t.Errorf("TauPos = %v, want 2", result.TauPos)
	}
	if math.Abs(result.FBeta-1) > 1e-6 {
		t.Errorf("FBeta = %v, want 1", result.FBeta)
	}

	state := Double{TauNeg: result.TauNeg, TauPos: result.TauPos}
	pred := PredictAll(state, scores)
	for i, p := range pred {
		if p != labels[i] {
			t.Errorf("prediction[%d] = %v, want %v", i, p, labels[i])
		}
	}
}

func TestOptimizeSingleMonotone(t *testing.T) {
	scores := []float64{0, 1, 2, 3, 4, 5}
	labels := []int{0, 0, 0, 1, 1, 1}
	batch, filters := singleBucketBatch(scores, labels)

	result := OptimizeSingle([][]float64{scores}, batch, filters, []string{"all"}, DefaultBeta)
	if result.FBeta < 0.99 {
		t.Errorf("FBeta = %v, want near 1 for a perfectly separable bucket", result.FBeta)
	}
	state := Single{Tau: result.Tau}
	pred := PredictAll(state, scores)
	for i, p := range pred {
		if p != labels[i] {
			t.Errorf("prediction[%d] = %v, want %v (tau=%v)", i, p, labels[i], result.Tau)
		}
	}
}
