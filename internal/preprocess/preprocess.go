// Package preprocess reconciles a station's measured load S with its
// bottom-up reconstruction BU via a robust linear fit, derives the missing
// mask, and applies the label translation table -- spec.md §4.1.
package preprocess

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/rbouman/stormphase/internal/stationdata"
	"github.com/rbouman/stormphase/internal/stormerr"
)

// Config enumerates the preprocessing hyperparameters (spec.md §4.1),
// replacing the source's opaque keyword-argument dict with one explicit
// struct per spec.md §9.
type Config struct {
	SubsequentNr       int        `yaml:"subsequent_nr"`
	LinFitQuantiles    [2]float64 `yaml:"lin_fit_quantiles"`
	LabelTransformDict map[int]int `yaml:"label_transform_dict"`
	RemoveUncertain    bool       `yaml:"remove_uncertain"`
	RescaleSToKW       bool       `yaml:"rescale_s_to_kw"`
}

// DefaultConfig mirrors the defaults used throughout the original system's
// experiments: no rescale, uncertain rows kept (not dropped), subsequent-run
// staleness at 24 samples (the original's repeated-value-run default).
func DefaultConfig() Config {
	return Config{
		SubsequentNr:    24,
		LinFitQuantiles: [2]float64{10, 90},
		LabelTransformDict: map[int]int{
			0: 0, 1: 1, 2: 1, 3: 1, 4: 1, 5: 5,
		},
		RemoveUncertain: false,
		RescaleSToKW:    false,
	}
}

// ModelString renders the config canonically (stable field order) for
// hashing -- spec.md §4.6/§9.
func (c Config) ModelString() string {
	keys := make([]int, 0, len(c.LabelTransformDict))
	for k := range c.LabelTransformDict {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	s := fmt.Sprintf("subsequent_nr=%d;lin_fit_quantiles=%g,%g;remove_uncertain=%v;rescale_s_to_kw=%v;label_transform=",
		c.SubsequentNr, c.LinFitQuantiles[0], c.LinFitQuantiles[1], c.RemoveUncertain, c.RescaleSToKW)
	for _, k := range keys {
		s += fmt.Sprintf("%d:%d,", k, c.LabelTransformDict[k])
	}
	return s
}

// Preprocess implements spec.md §4.1's algorithm for a single station.
func Preprocess(raw *stationdata.RawStation, cfg Config) (*stationdata.Preprocessed, error) {
	n := len(raw.SOriginal)
	if len(raw.BUOriginal) != n || len(raw.Label) != n {
		return nil, stormerr.InsufficientDataError(raw.ID, "S, BU, and label lengths differ")
	}

	sOriginal := make([]float64, n)
	copy(sOriginal, raw.SOriginal)
	if cfg.RescaleSToKW {
		for i := range sOriginal {
			sOriginal[i] *= 1000
		}
	}

	diffOriginal := make([]float64, n)
	for i := range diffOriginal {
		diffOriginal[i] = sOriginal[i] - raw.BUOriginal[i]
	}

	missing := make([]bool, n)
	if raw.Missing != nil {
		copy(missing, raw.Missing)
	}
	for i := 0; i < n; i++ {
		if math.IsNaN(sOriginal[i]) || math.IsNaN(raw.BUOriginal[i]) {
			missing[i] = true
		}
	}
	for _, idx := range staleRunIndices(sOriginal, cfg.SubsequentNr) {
		missing[idx] = true
	}

	label := make([]int, n)
	for i, l := range raw.Label {
		if v, ok := cfg.LabelTransformDict[l]; ok {
			label[i] = v
		} else {
			label[i] = l
		}
	}

	// Optionally drop uncertain rows, compacting all parallel slices.
	keep := make([]bool, n)
	for i := range keep {
		keep[i] = true
	}
	if cfg.RemoveUncertain {
		for i, l := range label {
			if l == 5 {
				keep[i] = false
			}
		}
	}
	sOriginal, raw2BU, diffOriginal, missing, label, timestamp := compact(
		keep, sOriginal, raw.BUOriginal, diffOriginal, missing, label, raw.Timestamp)

	// Candidate set for the linear fit: not missing, diff within the
	// configured interpercentile range.
	var candDiff, candBU, candS []float64
	for i := range sOriginal {
		if !missing[i] {
			candDiff = append(candDiff, diffOriginal[i])
			candBU = append(candBU, raw2BU[i])
			candS = append(candS, sOriginal[i])
		}
	}
	if len(candDiff) == 0 {
		return nil, stormerr.InsufficientDataError(raw.ID, "no non-missing rows to fit linear alignment")
	}
	loQ, hiQ := quantile(candDiff, cfg.LinFitQuantiles[0]), quantile(candDiff, cfg.LinFitQuantiles[1])

	var fitBU, fitS []float64
	for i, d := range candDiff {
		if d > loQ && d < hiQ {
			fitBU = append(fitBU, candBU[i])
			fitS = append(fitS, candS[i])
		}
	}
	if len(fitBU) == 0 {
		return nil, stormerr.InsufficientDataError(raw.ID, "no candidate rows remain after quantile filter for linear fit")
	}

	a, b := matchBottomUpLoad(fitBU, fitS)

	bu := make([]float64, len(raw2BU))
	for i, v := range raw2BU {
		bu[i] = a*v + b
	}

	s := make([]float64, len(sOriginal))
	copy(s, sOriginal)
	if minOf(sOriginal) >= 0 {
		argmin := argminOf(sOriginal)
		if bu[argmin] < 0 {
			for i := range s {
				s[i] = math.Copysign(1, bu[i]) * s[i]
			}
		}
	}

	diff := make([]float64, len(s))
	for i := range diff {
		diff[i] = s[i] - bu[i]
	}

	finalKeep := make([]bool, len(diff))
	for i, d := range diff {
		finalKeep[i] = !math.IsNaN(d)
	}
	sOriginal, bu, diff, missing, label, timestamp = compact6(finalKeep, sOriginal, bu, diff, missing, label, timestamp)
	s, raw2BU, diffOriginal = compact3(finalKeep, s, raw2BU, diffOriginal)

	return &stationdata.Preprocessed{
		ID:           raw.ID,
		Timestamp:    timestamp,
		SOriginal:    sOriginal,
		BUOriginal:   raw2BU,
		DiffOriginal: diffOriginal,
		S:            s,
		BU:           bu,
		Diff:         diff,
		Missing:      missing,
		Label:        label,
	}, nil
}

// staleRunIndices flags every index inside a run of subsequentNr or more
// consecutive equal values (spec.md §4.1 step 2).
func staleRunIndices(s []float64, subsequentNr int) []int {
	n := len(s)
	if n < 2 || subsequentNr < 1 {
		return nil
	}
	var out []int
	count := 1
	for i := 1; i < n; i++ {
		if s[i] == s[i-1] {
			count++
		} else {
			count = 1
		}
		if count >= subsequentNr {
			for j := i - count + 1; j <= i; j++ {
				out = append(out, j)
			}
		}
	}
	return out
}

// matchBottomUpLoad solves (a, b) = argmin sum((a*BU+b) - S)^2 (signed
// error if min(S) < 0, else (|a*BU+b| - S)^2), falling back to identity
// parameters on optimizer non-convergence -- spec.md §4.1 step 5.
func matchBottomUpLoad(bu, s []float64) (a, b float64) {
	signed := minOf(s) < 0

	cost := func(x []float64) float64 {
		a, b := x[0], x[1]
		var sum float64
		for i := range bu {
			fitted := a*bu[i] + b
			var residual float64
			if signed {
				residual = fitted - s[i]
			} else {
				residual = math.Abs(fitted) - s[i]
			}
			sum += residual * residual
		}
		return sum
	}

	problem := optimize.Problem{Func: cost}
	result, err := optimize.Minimize(problem, []float64{1, 0}, nil, &optimize.NelderMead{})
	if err != nil || result == nil || result.Status == optimize.Failure {
		// Optimizer did not converge: fall back to identity parameters
		// (spec.md §4.1 failure modes).
		return 1, 0
	}
	return result.X[0], result.X[1]
}

func quantile(x []float64, p float64) float64 {
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	return stat.Quantile(p/100.0, stat.Empirical, sorted, nil)
}

func minOf(x []float64) float64 {
	m := math.Inf(1)
	for _, v := range x {
		if v < m {
			m = v
		}
	}
	return m
}

func argminOf(x []float64) int {
	idx := 0
	m := math.Inf(1)
	for i, v := range x {
		if v < m {
			m = v
			idx = i
		}
	}
	return idx
}

func compact(keep []bool, s, bu, diffOrig []float64, missing []bool, label []int, ts []string) ([]float64, []float64, []float64, []bool, []int, []string) {
	var s2, bu2, d2 []float64
	var m2 []bool
	var l2 []int
	var t2 []string
	for i, k := range keep {
		if !k {
			continue
		}
		s2 = append(s2, s[i])
		bu2 = append(bu2, bu[i])
		d2 = append(d2, diffOrig[i])
		m2 = append(m2, missing[i])
		l2 = append(l2, label[i])
		if ts != nil {
			t2 = append(t2, ts[i])
		}
	}
	return s2, bu2, d2, m2, l2, t2
}

func compact6(keep []bool, s, bu, diff []float64, missing []bool, label []int, ts []string) ([]float64, []float64, []float64, []bool, []int, []string) {
	return compact(keep, s, bu, diff, missing, label, ts)
}

func compact3(keep []bool, a, b, c []float64) ([]float64, []float64, []float64) {
	var a2, b2, c2 []float64
	for i, k := range keep {
		if !k {
			continue
		}
		a2 = append(a2, a[i])
		b2 = append(b2, b[i])
		c2 = append(c2, c[i])
	}
	return a2, b2, c2
}
