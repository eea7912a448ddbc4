package ensemble

import (
	"context"
	"testing"

	"github.com/rbouman/stormphase/internal/engine/binseg"
	"github.com/rbouman/stormphase/internal/stationdata"
	"github.com/rbouman/stormphase/internal/threshold"
)

func TestSequentialPredictionCoversEverySample(t *testing.T) {
	// With lin penalty 8*0.1 the primary engine splits this series at
	// [2, 4, 8] (segment means 0, 4.5, 20 against a mean reference of
	// 11.125), so every segment scores at least 5 in magnitude and is
	// flagged by the primary threshold. The test checks only that the
	// combined prediction covers every sample.
	diff := []float64{0, 0, 9, 0, 20, 20, 20, 20}
	batch := &stationdata.PreprocessedBatch{Stations: []*stationdata.Preprocessed{
		{ID: "s1", Diff: diff, Label: make([]int, len(diff))},
	}}

	primary := binseg.New()
	primary.Config.MinSize = 2
	primary.Config.Scaling = false
	primary.Config.MoveAvg = 0
	primary.Config.Beta = 0.1

	secondary := &constScorer{name: "secondary"}

	result, err := Sequential(context.Background(), primary, threshold.Single{Tau: 5},
		secondary, threshold.Single{Tau: 5}, batch)
	if err != nil {
		t.Fatalf("Sequential: %v", err)
	}
	if len(result.Prediction[0]) != len(diff) {
		t.Fatalf("Prediction length = %d, want %d", len(result.Prediction[0]), len(diff))
	}
}
