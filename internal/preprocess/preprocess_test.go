package preprocess

import (
	"math"
	"testing"

	"github.com/rbouman/stormphase/internal/stationdata"
)

func TestStaleRunIndicesFlagsLongRuns(t *testing.T) {
	s := []float64{1, 2, 2, 2, 2, 3}
	got := staleRunIndices(s, 4)
	want := map[int]bool{1: true, 2: true, 3: true, 4: true}
	for i, g := range got {
		_ = i
		if !want[g] {
			t.Errorf("unexpected flagged index %d", g)
		}
	}
	if len(got) != len(want) {
		t.Errorf("len(got) = %d, want %d (got=%v)", len(got), len(want), got)
	}
}

func TestStaleRunIndicesNoRunBelowThreshold(t *testing.T) {
	s := []float64{1, 2, 2, 3}
	if got := staleRunIndices(s, 4); got != nil {
		t.Errorf("staleRunIndices = %v, want nil", got)
	}
}

func TestPreprocessLinearAlignment(t *testing.T) {
	n := 20
	bu := make([]float64, n)
	s := make([]float64, n)
	label := make([]int, n)
	ts := make([]string, n)
	for i := 0; i < n; i++ {
		bu[i] = float64(i)
		s[i] = 2*float64(i) + 1 // S = 2*BU + 1, exactly recoverable
		ts[i] = "t"
	}

	raw := &stationdata.RawStation{
		ID: "s1", Timestamp: ts, SOriginal: s, BUOriginal: bu, Label: label,
	}
	cfg := DefaultConfig()
	cfg.SubsequentNr = 1000 // disable stale-run masking for this synthetic ramp

	out, err := Preprocess(raw, cfg)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if out.Len() != n {
		t.Fatalf("Len() = %d, want %d", out.Len(), n)
	}
	for i, d := range out.Diff {
		if math.Abs(d) > 0.5 {
			t.Errorf("Diff[%d] = %v, want near 0 for a perfectly aligned series", i, d)
		}
	}
}

func TestPreprocessInsufficientDataError(t *testing.T) {
	raw := &stationdata.RawStation{
		ID:         "empty",
		SOriginal:  []float64{math.NaN(), math.NaN()},
		BUOriginal: []float64{math.NaN(), math.NaN()},
		Label:      []int{0, 0},
	}
	_, err := Preprocess(raw, DefaultConfig())
	if err == nil {
		t.Fatal("expected an error for an all-missing station")
	}
}

func TestPreprocessMismatchedLengths(t *testing.T) {
	raw := &stationdata.RawStation{
		ID:         "bad",
		SOriginal:  []float64{1, 2, 3},
		BUOriginal: []float64{1, 2},
		Label:      []int{0, 0, 0},
	}
	_, err := Preprocess(raw, DefaultConfig())
	if err == nil {
		t.Fatal("expected an error for mismatched slice lengths")
	}
}
