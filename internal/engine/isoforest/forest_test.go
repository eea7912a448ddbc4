package isoforest

import (
	"math/rand"
	"testing"
)

func TestAveragePathLengthConstBaseCases(t *testing.T) {
	if got := averagePathLengthConst(1); got != 0 {
		t.Errorf("c(1) = %v, want 0", got)
	}
	if got := averagePathLengthConst(2); got != 1 {
		t.Errorf("c(2) = %v, want 1", got)
	}
}

func TestDecisionFunctionSeparatesOutlier(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	var points [][]float64
	for i := 0; i < 200; i++ {
		points = append(points, []float64{rng.NormFloat64() * 0.1})
	}
	f := fit(points, 100, 64, rng)

	normalScore := 1 - f.decisionFunction([]float64{0})
	outlierScore := 1 - f.decisionFunction([]float64{50})

	if outlierScore <= normalScore {
		t.Errorf("expected outlier score (%v) > normal score (%v)", outlierScore, normalScore)
	}
}
