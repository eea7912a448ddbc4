// Package ensemble implements the Stack, NaiveStack and Sequential
// ensembling strategies (spec.md §4.5): Stack combines multiple engines'
// predictions with a logical OR; NaiveStack merges their scores into one
// max-absolute-score column and produces no prediction; Sequential feeds
// one engine's non-anomalous segments into a second engine.
package ensemble

import (
	"context"
	"fmt"

	"github.com/rbouman/stormphase/internal/engine"
	"github.com/rbouman/stormphase/internal/stationdata"
	"github.com/rbouman/stormphase/internal/threshold"
)

// Member pairs a fitted engine with its (already optimized) threshold
// state.
type Member struct {
	Engine engine.ScoreProducer
	State  threshold.State
}

// StackResult holds per-station, per-member scores and the combined
// prediction.
type StackResult struct {
	Scores      map[string][][]float64 // engine name -> per-station score slices
	Prediction  [][]int                // per-station, logical OR across members
}

// Stack runs every member's scorer over the batch, applies each
// member's threshold state, and combines predictions with a logical OR
// (spec.md §4.5.1: "an event is flagged if ANY constituent engine flags
// it"). Unlike NaiveStack, Stack assumes each member was independently
// fit and thresholded beforehand; this function only scores, predicts
// and combines.
func Stack(ctx context.Context, members []Member, batch *stationdata.PreprocessedBatch) (*StackResult, error) {
	result := &StackResult{Scores: map[string][][]float64{}}
	n := len(batch.Stations)
	result.Prediction = make([][]int, n)
	for i, station := range batch.Stations {
		result.Prediction[i] = make([]int, station.Len())
	}

	for _, m := range members {
		scores, err := m.Engine.FitTransformPredict(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", m.Engine.Name(), err)
		}
		result.Scores[m.Engine.Name()] = scores
		for i := range scores {
			pred := threshold.PredictAll(m.State, scores[i])
			for j, p := range pred {
				if p == 1 {
					result.Prediction[i][j] = 1
				}
			}
		}
	}
	return result, nil
}

// NaiveStackResult pairs a stacked score column with a prediction.
// NaiveStack itself returns only the stacked scores ([][]float64), not
// this type, and nothing in this package fills Prediction.
type NaiveStackResult struct {
	StackedScores [][]float64 // per-station, one score per sample: the member score with the largest magnitude
	Prediction    [][]int
}

// NaiveStack scores every member, then for each station/sample takes the
// maximum absolute score across members as a single stacked score
// column, leaving threshold optimization to the caller (spec.md §4.5.1).
func NaiveStack(ctx context.Context, members []engine.ScoreProducer, batch *stationdata.PreprocessedBatch) ([][]float64, error) {
	n := len(batch.Stations)
	stacked := make([][]float64, n)
	for i, station := range batch.Stations {
		stacked[i] = make([]float64, station.Len())
	}

	for _, m := range members {
		scores, err := m.FitTransformPredict(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", m.Name(), err)
		}
		for i, s := range scores {
			for j, v := range s {
				if abs(v) > abs(stacked[i][j]) {
					stacked[i][j] = v
				}
			}
		}
	}
	return stacked, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
