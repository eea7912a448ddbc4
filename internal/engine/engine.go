// Package engine defines the shared scoring contract implemented by every
// anomaly-scoring algorithm (spec.md §4.2): SPC, IsolationForest,
// BasicARIMA, IterativeARIMA, SARIMAX and BinarySegmentation all satisfy
// ScoreProducer, modeled on the teacher's collector.Collector interface
// (one method that turns raw input into typed output, a Name for
// registry lookup, and a stable hyperparameter fingerprint for the
// model store).
package engine

import (
	"context"

	"github.com/rbouman/stormphase/internal/stationdata"
)

// ScoreProducer turns a preprocessed batch into one anomaly score per
// sample, per station, honoring the filter bank's classification of
// which samples belong to which event-length bucket.
type ScoreProducer interface {
	// Name identifies the engine for the result database and model
	// store (spec.md §6).
	Name() string

	// ModelString returns a stable, field-ordered serialization of the
	// engine's hyperparameters, used as the model store's hash input
	// (spec.md §5).
	ModelString() string

	// FitTransformPredict scores every station in batch, fitting any
	// per-station or global state the engine needs along the way.
	// Returned scores are parallel to batch.Stations, one slice per
	// station, indexed the same way as that station's samples.
	FitTransformPredict(ctx context.Context, batch *stationdata.PreprocessedBatch) ([][]float64, error)
}

// Registry maps engine names to constructors, mirroring the teacher's
// executor.Registry pattern for pluggable, name-addressable components.
type Registry map[string]func() ScoreProducer

// NewRegistry returns an empty, ready-to-populate Registry.
func NewRegistry() Registry {
	return Registry{}
}

// Register adds a constructor under name, overwriting any existing
// entry -- callers are expected to register built-ins once at startup.
func (r Registry) Register(name string, ctor func() ScoreProducer) {
	r[name] = ctor
}

// Build constructs a new ScoreProducer for name, or reports that no such
// engine is registered.
func (r Registry) Build(name string) (ScoreProducer, bool) {
	ctor, ok := r[name]
	if !ok {
		return nil, false
	}
	return ctor(), true
}

// Names returns every registered engine name.
func (r Registry) Names() []string {
	out := make([]string, 0, len(r))
	for name := range r {
		out = append(out, name)
	}
	return out
}
