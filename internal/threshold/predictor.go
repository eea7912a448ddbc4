package threshold

// State is a fitted threshold state (spec.md §4.4.3): given a raw score,
// it yields a binary prediction.
type State interface {
	Predict(score float64) int
	ModelString() string
}

// Single applies a scalar cutoff to |score|.
type Single struct {
	Tau float64
}

// Predict returns 1 when |score| >= Tau.
func (s Single) Predict(score float64) int {
	v := score
	if v < 0 {
		v = -v
	}
	if v >= s.Tau {
		return 1
	}
	return 0
}

func (s Single) ModelString() string {
	return "single"
}

// Double applies independent lower/upper cutoffs: a prediction fires
// when the raw (signed) score falls below TauNeg or at/above TauPos.
type Double struct {
	TauNeg, TauPos float64
}

// Predict returns 1 when score < TauNeg or score >= TauPos.
func (d Double) Predict(score float64) int {
	if score < d.TauNeg || score >= d.TauPos {
		return 1
	}
	return 0
}

func (d Double) ModelString() string {
	return "double"
}

// PredictAll applies a fitted State across a full score slice.
func PredictAll(state State, scores []float64) []int {
	out := make([]int, len(scores))
	for i, s := range scores {
		out[i] = state.Predict(s)
	}
	return out
}
