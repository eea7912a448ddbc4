package ensemble

import (
	"context"
	"fmt"

	"github.com/rbouman/stormphase/internal/engine"
	"github.com/rbouman/stormphase/internal/stationdata"
	"github.com/rbouman/stormphase/internal/stormerr"
	"github.com/rbouman/stormphase/internal/threshold"
)

// SegmentingEngine is implemented by engines that can report the
// breakpoints they found alongside their scores -- BinarySegmentation is
// the only current implementer -- so SequentialEnsemble can carve the
// series into segments before handing the non-anomalous ones to a
// secondary engine.
type SegmentingEngine interface {
	engine.ScoreProducer
	// Breakpoints returns, per station, the sorted exclusive-end indices
	// of the segments found by the most recent FitTransformPredict call.
	Breakpoints() [][]int
	// SegmentMeans returns, per station, the mean of each segment
	// returned by Breakpoints, in the same order -- persisted alongside
	// the breakpoints so a reloaded model recovers its segment means
	// without re-fitting (spec.md §4.6).
	SegmentMeans() [][]float64
}

// segment carries the bookkeeping SequentialEnsemble needs to map a
// secondary engine's per-segment result back onto the original series.
type segment struct {
	stationIdx int
	start, end int
}

// SequentialResult holds the combined prediction: primary-engine
// predictions stand as-is, and segments the primary engine judged
// non-anomalous are overwritten by the secondary engine's verdict on
// that sub-series.
type SequentialResult struct {
	Prediction [][]int
	PrimaryScores   [][]float64
	SecondaryScores [][]float64
}

// Sequential implements spec.md §4.5.2: a SegmentingEngine (typically
// BinarySegmentation) first splits each station into segments and
// scores/predicts them; every segment the primary threshold state marks
// non-anomalous is then re-scored, independently, by a secondary engine,
// whose own threshold state decides the final prediction for that
// segment's samples. Segments are never split across a station boundary,
// and every breakpoint must fall within its station's length --
// violating that invariant is a BreakpointConsistencyError, since it can
// only arise from a corrupted or mismatched reload.
func Sequential(ctx context.Context, primary SegmentingEngine, primaryState threshold.State,
	secondary engine.ScoreProducer, secondaryState threshold.State,
	batch *stationdata.PreprocessedBatch) (*SequentialResult, error) {

	primaryScores, err := primary.FitTransformPredict(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("primary engine %s: %w", primary.Name(), err)
	}
	breaks := primary.Breakpoints()

	result := &SequentialResult{PrimaryScores: primaryScores}
	result.Prediction = make([][]int, len(batch.Stations))
	result.SecondaryScores = make([][]float64, len(batch.Stations))

	var segments []segment
	for si, station := range batch.Stations {
		result.Prediction[si] = make([]int, station.Len())
		result.SecondaryScores[si] = make([]float64, station.Len())

		stationBreaks := breaks[si]
		start := 0
		for _, end := range stationBreaks {
			if end > station.Len() {
				return nil, &stormerr.BreakpointConsistencyError{Station: station.ID, End: end, Length: station.Len()}
			}
			anomalous := false
			for i := start; i < end; i++ {
				if primaryState.Predict(primaryScores[si][i]) == 1 {
					anomalous = true
					break
				}
			}
			if anomalous {
				for i := start; i < end; i++ {
					result.Prediction[si][i] = 1
				}
			} else {
				segments = append(segments, segment{stationIdx: si, start: start, end: end})
			}
			start = end
		}
	}

	if len(segments) == 0 {
		return result, nil
	}

	// Build a synthetic batch of the non-anomalous segments so the
	// secondary engine can fit/score them with its own (typically
	// per-segment) state, then scatter its scores back.
	subBatch := &stationdata.PreprocessedBatch{}
	for _, seg := range segments {
		station := batch.Stations[seg.stationIdx]
		subBatch.Stations = append(subBatch.Stations, sliceStation(station, seg.start, seg.end))
	}

	subScores, err := secondary.FitTransformPredict(ctx, subBatch)
	if err != nil {
		return nil, fmt.Errorf("secondary engine %s: %w", secondary.Name(), err)
	}

	for k, seg := range segments {
		for i, v := range subScores[k] {
			idx := seg.start + i
			result.SecondaryScores[seg.stationIdx][idx] = v
			if secondaryState.Predict(v) == 1 {
				result.Prediction[seg.stationIdx][idx] = 1
			}
		}
	}

	return result, nil
}

func sliceStation(s *stationdata.Preprocessed, start, end int) *stationdata.Preprocessed {
	return &stationdata.Preprocessed{
		ID:        s.ID,
		Timestamp: sliceStrings(s.Timestamp, start, end),
		S:         sliceFloats(s.S, start, end),
		BU:        sliceFloats(s.BU, start, end),
		Diff:      sliceFloats(s.Diff, start, end),
		Missing:   sliceBools(s.Missing, start, end),
		Label:     sliceInts(s.Label, start, end),
	}
}

func sliceFloats(x []float64, start, end int) []float64 {
	if x == nil {
		return nil
	}
	return append([]float64(nil), x[start:end]...)
}
func sliceInts(x []int, start, end int) []int {
	if x == nil {
		return nil
	}
	return append([]int(nil), x[start:end]...)
}
func sliceBools(x []bool, start, end int) []bool {
	if x == nil {
		return nil
	}
	return append([]bool(nil), x[start:end]...)
}
func sliceStrings(x []string, start, end int) []string {
	if x == nil {
		return nil
	}
	return append([]string(nil), x[start:end]...)
}
