// Package stormerr defines the typed error hierarchy used across the
// pipeline, so callers can distinguish configuration mistakes from
// per-station data or numerical failures. The scoring engines return
// either kind as the error of the whole batch.
package stormerr

import "fmt"

// ConfigError marks a misconfiguration that must be caught before any
// computation starts: an unknown bucket key, an invalid threshold-variant
// or penalty literal, and similar.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Reason)
}

// DataError marks a problem with a specific station's data: insufficient
// rows for the linear fit, an all-NaN station, a breakpoint past the end
// of the signal on reload.
type DataError struct {
	Station string
	Reason  string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error for station %q: %s", e.Station, e.Reason)
}

// InsufficientDataError is a DataError raised when a candidate set used for
// fitting (e.g. the robust linear fit) ends up empty.
func InsufficientDataError(station, reason string) error {
	return &DataError{Station: station, Reason: reason}
}

// ConvergenceWarning marks a numerical failure: a fit that did not
// converge. The ARIMA engines return it, wrapped with the station ID, as
// the error of the whole FitTransformPredict call, which then yields no
// scores for any station. The preprocessing linear fit does not use it:
// on non-convergence it falls back to identity parameters by itself.
type ConvergenceWarning struct {
	Station string
	Reason  string
}

func (e *ConvergenceWarning) Error() string {
	return fmt.Sprintf("convergence warning for station %q: %s", e.Station, e.Reason)
}

// CacheConsistencyError marks a mismatch between a cached artifact and the
// hash that is supposed to key it (e.g. breakpoints reloaded for the wrong
// preprocessing hash). Fatal for the fit in progress.
type CacheConsistencyError struct {
	Station string
	Reason  string
}

func (e *CacheConsistencyError) Error() string {
	return fmt.Sprintf("cache consistency error for station %q: %s", e.Station, e.Reason)
}

// BreakpointConsistencyError marks a SequentialEnsemble segment whose end
// index exceeds the station length -- typically caused by an incorrect
// model reload.
type BreakpointConsistencyError struct {
	Station string
	End     int
	Length  int
}

func (e *BreakpointConsistencyError) Error() string {
	return fmt.Sprintf("breakpoint consistency error for station %q: segment end %d exceeds length %d",
		e.Station, e.End, e.Length)
}
