// Package eventlen computes per-sample event lengths and the length-filter
// bank that every scoring/threshold stage uses to stratify evaluation by
// event duration.
package eventlen

import (
	"fmt"
	"math"

	"github.com/rbouman/stormphase/internal/stationdata"
)

// Cutoff is a half-open event-length bucket (lo, hi]. Hi may be +Inf.
type Cutoff struct {
	Lo float64
	Hi float64
}

// Key renders the cutoff in the canonical textual form used as a bucket
// key throughout the pipeline (dictionary keys, interpolated-table column
// names). Mirrors the Python tuple repr the original system keys its
// dicts with, e.g. "(0, 24]" or "(4032, inf]".
func (c Cutoff) Key() string {
	if math.IsInf(c.Hi, 1) {
		return fmt.Sprintf("(%s, inf]", trimFloat(c.Lo))
	}
	return fmt.Sprintf("(%s, %s]", trimFloat(c.Lo), trimFloat(c.Hi))
}

func trimFloat(f float64) string {
	if f == math.Trunc(f) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

// DefaultCutoffs returns the canonical bucket set from spec.md §6.
func DefaultCutoffs() []Cutoff {
	return []Cutoff{
		{Lo: 0, Hi: 24},
		{Lo: 24, Hi: 288},
		{Lo: 288, Hi: 4032},
		{Lo: 4032, Hi: math.Inf(1)},
	}
}

// EventLengths assigns to each index the length of its containing
// label==1 run, or 0. Single pass: track the run start, and on a 1->0
// transition (or end of series) write the run length to every index in
// [start, end).
func EventLengths(label []int) []int {
	n := len(label)
	lengths := make([]int, n)

	started := false
	start := 0
	for i := 0; i < n; i++ {
		if started {
			if label[i] != 1 {
				end := i
				fill(lengths, start, end, end-start)
				started = false
			}
			continue
		}
		if label[i] == 1 {
			start = i
			started = true
		}
	}
	if started {
		end := n
		fill(lengths, start, end, end-start)
	}
	return lengths
}

func fill(lengths []int, start, end, value int) {
	for i := start; i < end; i++ {
		lengths[i] = value
	}
}

// Filters produces the exclusion mask per bucket as described in spec.md
// §3/§4.2: a sample is excluded from bucket k when its event length falls
// into any bucket other than k, when its label is uncertain, or (if
// removeMissing) when it is flagged missing. Lower bound is strict,
// upper bound is inclusive; length 0 excludes the sample from every
// bucket (it belongs to none of the (lo>0,hi] ranges).
func Filters(lengths []int, cutoffs []Cutoff, uncertainCodes []int, removeMissing bool, missing []bool, label []int) stationdata.LengthFilterBank {
	n := len(lengths)
	uncertain := make([]bool, n)
	uncertainSet := make(map[int]bool, len(uncertainCodes))
	for _, c := range uncertainCodes {
		uncertainSet[c] = true
	}
	for i, l := range label {
		uncertain[i] = uncertainSet[l]
	}

	partial := make([][]bool, len(cutoffs))
	for k, c := range cutoffs {
		mask := make([]bool, n)
		for i, l := range lengths {
			fl := float64(l)
			mask[i] = fl > c.Lo && fl <= c.Hi
		}
		partial[k] = mask
	}

	bank := stationdata.NewLengthFilterBank()
	for k := range cutoffs {
		exclude := make([]bool, n)
		for i := 0; i < n; i++ {
			// A sample is kept in bucket k only when its event length
			// actually falls in (cutoffs[k].Lo, cutoffs[k].Hi] -- anything
			// else (length 0, a length in a different bucket, an
			// uncertain label, or missing data when requested) is excluded.
			exclude[i] = !partial[k][i] || uncertain[i]
			if removeMissing && missing != nil && missing[i] {
				exclude[i] = true
			}
		}
		bank.Set(cutoffs[k].Key(), exclude)
	}
	return bank
}
