// Package stationdata defines the batch and per-station types that flow
// through the pipeline: raw station batches, preprocessed stations, and
// the length-filter bank used by every downstream evaluator.
package stationdata

import orderedmap "github.com/wk8/go-ordered-map/v2"

// RawStation is one station's aligned signals and labels before
// preprocessing.
type RawStation struct {
	ID         string
	Timestamp  []string
	SOriginal  []float64
	BUOriginal []float64
	// Label codes: 0 normal, 1 anomaly, 5 uncertain, others caller-defined.
	Label []int
	// Missing, if non-nil, is the caller-supplied missing mask (spec.md §6:
	// "X/<station_id>.csv ... optionally missing"). Preprocessing derives
	// its own mask and ORs it in when this is present.
	Missing []bool
}

// Batch is an ordered set of raw stations.
type Batch struct {
	Stations []*RawStation
}

// Preprocessed is one station after SignalAligner + Masker have run.
type Preprocessed struct {
	ID           string
	Timestamp    []string
	SOriginal    []float64
	BUOriginal   []float64
	DiffOriginal []float64
	S            []float64
	BU           []float64
	Diff         []float64
	Missing      []bool
	// Label is the (possibly translated, possibly uncertain-filtered) label
	// sequence, index-aligned with the other fields.
	Label []int
}

// Len returns the number of samples, enforcing the invariant that all
// fields are the same length by construction (see preprocess package).
func (p *Preprocessed) Len() int { return len(p.S) }

// PreprocessedBatch is an ordered set of preprocessed stations. Order is
// significant: the worker pool and ensembles depend on positional
// correspondence with the original station list (spec.md §5).
type PreprocessedBatch struct {
	Stations []*Preprocessed
}

// LengthFilterBank maps a bucket's canonical textual key (e.g. "(0, 24]")
// to a per-sample exclusion mask: true means "exclude this sample from
// this bucket's evaluation". An ordered map is used (not a plain Go map)
// so that bucket iteration order -- and therefore grid construction in the
// threshold optimizer -- is deterministic across runs, which the
// Prediction determinism invariant (spec.md §8) requires.
type LengthFilterBank = *orderedmap.OrderedMap[string, []bool]

// NewLengthFilterBank returns an empty, ready-to-populate bank.
func NewLengthFilterBank() LengthFilterBank {
	return orderedmap.New[string, []bool]()
}
