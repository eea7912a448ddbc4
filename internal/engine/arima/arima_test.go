package arima

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/rbouman/stormphase/internal/stationdata"
)

func constantSeries(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestBasicFitsConstantSeriesWithSmallResidual(t *testing.T) {
	diff := constantSeries(50, 3.0)
	batch := &stationdata.PreprocessedBatch{Stations: []*stationdata.Preprocessed{
		{ID: "s1", Diff: diff},
	}}

	b := NewBasic()
	b.Config.P = 2
	scores, err := b.FitTransformPredict(context.Background(), batch)
	if err != nil {
		t.Fatalf("FitTransformPredict: %v", err)
	}
	if len(scores[0]) != len(diff) {
		t.Fatalf("score length = %d, want %d", len(scores[0]), len(diff))
	}
	for i := b.Config.P + 2; i < len(scores[0]); i++ {
		if scores[0][i] < 0 {
			t.Errorf("squared residual[%d] = %v, squared residuals must be non-negative", i, scores[0][i])
		}
		if math.Abs(scores[0][i]) > 1e-6 {
			t.Errorf("residual[%d] = %v, want ~0 for a constant series", i, scores[0][i])
		}
	}
}

func TestSquareAll(t *testing.T) {
	got := squareAll([]float64{-2, 0, 3})
	want := []float64{4, 0, 9}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("squareAll()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSARIMAXWithLaggedLoadScoresEverySampleNonNegatively(t *testing.T) {
	n := 40
	diff := make([]float64, n)
	s := make([]float64, n)
	for i := range diff {
		diff[i] = float64(i % 5)
		s[i] = float64(i)
	}
	batch := &stationdata.PreprocessedBatch{Stations: []*stationdata.Preprocessed{
		{ID: "s1", Diff: diff, S: s},
	}}

	sx := NewSARIMAX()
	sx.Config.Season = 0
	sx.Config.SeasonalP = 0
	sx.Config.P = 2
	scores, err := sx.FitTransformPredict(context.Background(), batch)
	if err != nil {
		t.Fatalf("FitTransformPredict: %v", err)
	}
	if len(scores[0]) != n {
		t.Fatalf("score length = %d, want %d", len(scores[0]), n)
	}
	for _, v := range scores[0] {
		if v < 0 {
			t.Fatalf("squared residual must be non-negative, got %v", v)
		}
	}
}

func TestModelStringIncludesSeasonalOrderWhenSeasonSet(t *testing.T) {
	cfg := DefaultSeasonalConfig()
	got := cfg.modelString("sarimax")
	if got == "" {
		t.Fatal("modelString() returned empty string")
	}
	if cfg.Season == 0 {
		t.Fatal("DefaultSeasonalConfig() did not set Season")
	}
	if want := "x(P=1,D=0,Q=0,s=24)"; !strings.Contains(got, want) {
		t.Errorf("modelString() = %q, want it to contain %q", got, want)
	}
}

func TestNewIterativeDefaultsToTwoPointFiveSigma(t *testing.T) {
	it := NewIterative()
	if it.SigmaMult != 2.5 {
		t.Errorf("SigmaMult = %v, want 2.5 (spec.md §4.3.4)", it.SigmaMult)
	}
}

func TestLagOne(t *testing.T) {
	got := lagOne([]float64{1, 2, 3, 4})
	want := []float64{1, 1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("lagOne()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDifferenceOrderOne(t *testing.T) {
	got := difference([]float64{1, 3, 6, 10}, 1)
	want := []float64{2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("difference()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPadFront(t *testing.T) {
	got := padFront([]float64{1, 2}, 3)
	want := []float64{0, 0, 0, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("padFront()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
