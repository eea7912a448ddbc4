package threshold

import (
	"math"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/rbouman/stormphase/internal/stationdata"
)

// InterpLen is the number of points sampled on the shared threshold grid
// used by both optimizers (spec.md §4.4: "a dense common grid").
const InterpLen = 10000

// SingleResult is the outcome of a single-threshold optimization: a
// scalar cutoff applied to |score|.
type SingleResult struct {
	Tau   float64
	FBeta float64
}

// bucketSeries holds the concatenated (score, label) pairs filtered
// into one event-length bucket, across every station in the batch; the
// scores are absolute values when collectBuckets is called with abs set.
type bucketSeries struct {
	score []float64
	label []int
}

// collectBuckets concatenates, per bucket key, the score (|score| when
// abs is true, the signed score otherwise) and label values of every
// station whose length filter bank selects that bucket.
// Station order follows batch order, and within a station the original
// sample order is preserved, matching the source's pandas concat-by-key
// semantics.
func collectBuckets(scores [][]float64, batch *stationdata.PreprocessedBatch, filters []stationdata.LengthFilterBank, abs bool) *orderedmap.OrderedMap[string, *bucketSeries] {
	out := orderedmap.New[string, *bucketSeries]()
	for si, station := range batch.Stations {
		bank := filters[si]
		for pair := bank.Oldest(); pair != nil; pair = pair.Next() {
			key, mask := pair.Key, pair.Value
			bs, ok := out.Get(key)
			if !ok {
				bs = &bucketSeries{}
				out.Set(key, bs)
			}
			for i, exclude := range mask {
				if exclude || i >= len(scores[si]) {
					continue
				}
				v := scores[si][i]
				if abs {
					v = math.Abs(v)
				}
				bs.score = append(bs.score, v)
				bs.label = append(bs.label, station.Label[i])
			}
		}
	}
	return out
}

// OptimizeSingle implements spec.md §4.4.1: for each event-length bucket,
// compute a precision-recall curve over |score|, interpolate every
// bucket's precision/recall onto a shared descending grid spanning the
// global min/max score, score each grid point by its mean F-beta across
// usedBuckets, and return the grid point maximizing that mean.
func OptimizeSingle(scores [][]float64, batch *stationdata.PreprocessedBatch, filters []stationdata.LengthFilterBank, usedBuckets []string, beta float64) SingleResult {
	buckets := collectBuckets(scores, batch, filters, true)

	globalMin := math.Inf(1)
	globalMax := math.Inf(-1)
	type curve struct {
		precision, recall, thresholds []float64
	}
	curves := map[string]curve{}

	for pair := buckets.Oldest(); pair != nil; pair = pair.Next() {
		key, bs := pair.Key, pair.Value
		if len(bs.score) == 0 {
			continue
		}
		for _, s := range bs.score {
			if s < globalMin {
				globalMin = s
			}
			if s > globalMax {
				globalMax = s
			}
		}
		p, r, t := PrecisionRecallCurve(bs.label, bs.score)
		curves[key] = curve{p, r, t}
	}

	if math.IsInf(globalMin, 1) || math.IsInf(globalMax, -1) || globalMax == globalMin {
		return SingleResult{Tau: globalMax, FBeta: 0}
	}

	// Descending grid from max to min, matching the source's
	// np.linspace(max, min, interp_len) convention (spec.md §9).
	grid := make([]float64, InterpLen)
	step := (globalMax - globalMin) / float64(InterpLen-1)
	for i := range grid {
		grid[i] = globalMax - float64(i)*step
	}

	sumFBeta := make([]float64, InterpLen)
	used := 0
	for _, key := range usedBuckets {
		c, ok := curves[key]
		if !ok {
			continue
		}
		used++
		// Curve thresholds are ascending (ex-sentinel); precision/recall
		// carry one extra trailing point for the +inf threshold, so pad
		// the threshold axis with +inf to align lengths before interp.
		xp := append(append([]float64{}, c.thresholds...), math.Inf(1))
		pInterp := Interp1D(grid, xp, c.precision)
		rInterp := Interp1D(grid, xp, c.recall)
		fb := FBetaSlice(pInterp, rInterp, beta)
		for i := range sumFBeta {
			sumFBeta[i] += fb[i]
		}
	}

	if used == 0 {
		return SingleResult{Tau: globalMax, FBeta: 0}
	}

	bestIdx := 0
	bestVal := sumFBeta[0]
	for i := 1; i < len(sumFBeta); i++ {
		if sumFBeta[i] > bestVal {
			bestVal = sumFBeta[i]
			bestIdx = i
		}
	}
	return SingleResult{Tau: grid[bestIdx], FBeta: bestVal / float64(used)}
}
