package engine

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rbouman/stormphase/internal/stationdata"
)

// SPCConfig holds the Statistical Process Control engine's
// hyperparameters (spec.md §4.2.1).
type SPCConfig struct {
	MovingAverageWindow int     `yaml:"move_avg"`
	QuantileLow         float64 `yaml:"quantile_low"`
	QuantileHigh        float64 `yaml:"quantile_high"`
}

// DefaultSPCConfig mirrors the source's default hyperparameters.
func DefaultSPCConfig() SPCConfig {
	return SPCConfig{MovingAverageWindow: 5, QuantileLow: 10, QuantileHigh: 90}
}

// SPC implements ScoreProducer with a centered moving-average filter
// followed by robust interpercentile-range scaling, matching
// StatisticalProfiling in the source.
type SPC struct {
	Config SPCConfig
}

// NewSPC constructs an SPC engine with default hyperparameters.
func NewSPC() ScoreProducer {
	return &SPC{Config: DefaultSPCConfig()}
}

func (s *SPC) Name() string { return "spc" }

func (s *SPC) ModelString() string {
	return fmt.Sprintf("spc(move_avg=%d,quantile_low=%g,quantile_high=%g)",
		s.Config.MovingAverageWindow, s.Config.QuantileLow, s.Config.QuantileHigh)
}

func (s *SPC) FitTransformPredict(ctx context.Context, batch *stationdata.PreprocessedBatch) ([][]float64, error) {
	out := make([][]float64, len(batch.Stations))
	for i, station := range batch.Stations {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		smoothed := CenteredMovingAverage(station.Diff, s.Config.MovingAverageWindow)
		out[i] = RobustScale(smoothed, s.Config.QuantileLow, s.Config.QuantileHigh)
	}
	return out, nil
}

// CenteredMovingAverage averages x over a window-sized centered box,
// placed the same way as np.convolve(x, ones(window)/window,
// mode="same"). Each output is the mean of the non-NaN samples inside
// the window, truncated at the series boundary: unlike np.convolve, the
// edges are not zero-padded and are not divided by the full window size.
// Exported so other engines (binseg's optional smoothing
// step, spec.md §4.3.5) can reuse the same filter.
func CenteredMovingAverage(x []float64, window int) []float64 {
	if window <= 1 {
		return append([]float64(nil), x...)
	}
	n := len(x)
	out := make([]float64, n)
	half := window / 2
	for i := 0; i < n; i++ {
		lo := i - half
		hi := lo + window
		if lo < 0 {
			lo = 0
		}
		if hi > n {
			hi = n
		}
		var sum float64
		count := 0
		for j := lo; j < hi; j++ {
			if math.IsNaN(x[j]) {
				continue
			}
			sum += x[j]
			count++
		}
		if count == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(count)
		}
	}
	return out
}

// RobustScale centers x on its median and scales by the interpercentile
// range [qLow, qHigh], matching sklearn.preprocessing.RobustScaler with
// quantile_range=(qLow, qHigh). Exported for binseg's optional
// pre-segmentation scaling step (spec.md §4.3.5).
func RobustScale(x []float64, qLow, qHigh float64) []float64 {
	valid := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return append([]float64(nil), x...)
	}
	sort.Float64s(valid)
	median := percentile(valid, 50)
	lo := percentile(valid, qLow)
	hi := percentile(valid, qHigh)
	scale := hi - lo
	if scale == 0 {
		scale = 1
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - median) / scale
	}
	return out
}

// percentile computes a linear-interpolated percentile over an
// already-sorted slice, matching numpy.percentile's default method.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
