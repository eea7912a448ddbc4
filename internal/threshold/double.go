package threshold

import (
	"math"

	"github.com/rbouman/stormphase/internal/stationdata"
)

// DoubleResult is the outcome of a double-threshold optimization: a
// lower cutoff τ⁻ (applied to negative scores) and an upper cutoff τ⁺
// (applied to non-negative scores).
type DoubleResult struct {
	TauNeg, TauPos float64
	FBeta          float64
}

type halfCurve struct {
	fps, tps, fns, thresholds []float64
	maxAbs                    float64
}

// buildHalfCurve computes the binary classification curve for one half
// of the score distribution (spec.md §4.4.2 step 1): scores are first
// made non-negative (the negative half is sign-flipped), so in both
// halves larger values are "more anomalous".
func buildHalfCurve(score []float64, label []int, negative bool) halfCurve {
	var sub []float64
	var lab []int
	maxAbs := 0.0
	for i, s := range score {
		if negative && s < 0 {
			v := -s
			sub = append(sub, v)
			lab = append(lab, label[i])
			if v > maxAbs {
				maxAbs = v
			}
		} else if !negative && s >= 0 {
			sub = append(sub, s)
			lab = append(lab, label[i])
			if s > maxAbs {
				maxAbs = s
			}
		}
	}
	if len(sub) == 0 {
		return halfCurve{}
	}
	fps, tps, thresholds := BinaryClfCurve(lab, sub)
	totalPos := 0
	for _, l := range lab {
		if l == 1 {
			totalPos++
		}
	}
	fns := make([]float64, len(tps))
	for i, tp := range tps {
		fns[i] = float64(totalPos) - tp
	}
	return halfCurve{fps: fps, tps: tps, fns: fns, thresholds: thresholds, maxAbs: maxAbs}
}

// OptimizeDouble implements spec.md §4.4.2: independent binary
// classification curves for the negative and non-negative halves of the
// score distribution, each interpolated onto its own descending grid of
// magnitude cutoffs, combined via an outer-product confusion grid (every
// (negative cutoff, positive cutoff) pair sums the two halves' tp/fp/fn
// counts), scored by mean F-beta across usedBuckets, with the argmax
// cell's grid coordinates mapped back to (τ⁻, τ⁺).
func OptimizeDouble(scores [][]float64, batch *stationdata.PreprocessedBatch, filters []stationdata.LengthFilterBank, usedBuckets []string, beta float64) DoubleResult {
	buckets := collectBuckets(scores, batch, filters, false)

	// Build per-bucket half curves.
	type perBucket struct {
		neg, pos halfCurve
	}
	curves := map[string]perBucket{}
	globalMaxNeg, globalMaxPos := 0.0, 0.0
	for pair := buckets.Oldest(); pair != nil; pair = pair.Next() {
		key, bs := pair.Key, pair.Value
		if len(bs.label) == 0 {
			continue
		}
		neg := buildHalfCurve(bs.score, bs.label, true)
		pos := buildHalfCurve(bs.score, bs.label, false)
		curves[key] = perBucket{neg, pos}
		if neg.maxAbs > globalMaxNeg {
			globalMaxNeg = neg.maxAbs
		}
		if pos.maxAbs > globalMaxPos {
			globalMaxPos = pos.maxAbs
		}
	}

	if globalMaxNeg == 0 && globalMaxPos == 0 {
		return DoubleResult{}
	}

	negGrid := descendingGrid(globalMaxNeg, InterpLen)
	posGrid := descendingGrid(globalMaxPos, InterpLen)

	// sumFBeta[i][j]: accumulated F-beta at (negGrid[i], posGrid[j]) across
	// usedBuckets.
	sumFBeta := make([][]float64, InterpLen)
	for i := range sumFBeta {
		sumFBeta[i] = make([]float64, InterpLen)
	}

	used := 0
	for _, key := range usedBuckets {
		cb, ok := curves[key]
		if !ok {
			continue
		}
		used++
		negTotalPos := halfTotalPos(cb.neg)
		posTotalPos := halfTotalPos(cb.pos)
		negFP := interpHalf(negGrid, cb.neg, cb.neg.fps, 0)
		negTP := interpHalf(negGrid, cb.neg, cb.neg.tps, 0)
		negFN := interpHalf(negGrid, cb.neg, cb.neg.fns, negTotalPos)
		posFP := interpHalf(posGrid, cb.pos, cb.pos.fps, 0)
		posTP := interpHalf(posGrid, cb.pos, cb.pos.tps, 0)
		posFN := interpHalf(posGrid, cb.pos, cb.pos.fns, posTotalPos)

		for i := 0; i < InterpLen; i++ {
			for j := 0; j < InterpLen; j++ {
				tp := negTP[i] + posTP[j]
				fp := negFP[i] + posFP[j]
				fn := negFN[i] + posFN[j]
				var precision, recall float64
				if tp+fp > 0 {
					precision = tp / (tp + fp)
				}
				if tp+fn > 0 {
					recall = tp / (tp + fn)
				}
				sumFBeta[i][j] += FBeta(precision, recall, beta)
			}
		}
	}

	if used == 0 {
		return DoubleResult{}
	}

	bestI, bestJ := 0, 0
	bestVal := sumFBeta[0][0]
	for i := 0; i < InterpLen; i++ {
		for j := 0; j < InterpLen; j++ {
			if sumFBeta[i][j] > bestVal {
				bestVal = sumFBeta[i][j]
				bestI, bestJ = i, j
			}
		}
	}

	return DoubleResult{
		TauNeg: -negGrid[bestI],
		TauPos: posGrid[bestJ],
		FBeta:  bestVal / float64(used),
	}
}

// descendingGrid returns n points from max down to 0 inclusive. A
// zero-width half (no data on that side) degenerates to all-zero.
func descendingGrid(max float64, n int) []float64 {
	grid := make([]float64, n)
	if max == 0 {
		return grid
	}
	step := max / float64(n-1)
	for i := range grid {
		grid[i] = max - float64(i)*step
	}
	return grid
}

// interpHalf interpolates one confusion-matrix component onto grid,
// extending the curve with an explicit sentinel at threshold=+inf whose
// value is the metric's true limit there (tailValue) rather than a
// repeat of the last observed point.
func interpHalf(grid []float64, h halfCurve, vals []float64, tailValue float64) []float64 {
	if len(h.thresholds) == 0 {
		return make([]float64, len(grid))
	}
	xp := append(append([]float64{}, h.thresholds...), math.Inf(1))
	fp := append(append([]float64{}, vals...), tailValue)
	return Interp1D(grid, xp, fp)
}

func halfTotalPos(h halfCurve) float64 {
	if len(h.fns) == 0 {
		return 0
	}
	return h.fns[0] + h.tps[0]
}
