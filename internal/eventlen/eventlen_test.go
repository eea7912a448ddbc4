package eventlen

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCutoffKey(t *testing.T) {
	cases := []struct {
		c    Cutoff
		want string
	}{
		{Cutoff{Lo: 0, Hi: 24}, "(0, 24]"},
		{Cutoff{Lo: 4032, Hi: math.Inf(1)}, "(4032, inf]"},
	}
	for _, tc := range cases {
		if got := tc.c.Key(); got != tc.want {
			t.Errorf("Key() = %q, want %q", got, tc.want)
		}
	}
}

func TestEventLengths(t *testing.T) {
	label := []int{0, 1, 1, 1, 0, 0, 1, 0}
	got := EventLengths(label)
	want := []int{0, 3, 3, 3, 0, 0, 1, 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("EventLengths() mismatch (-want +got):\n%s", diff)
	}
}

func TestEventLengthsRunAtEnd(t *testing.T) {
	label := []int{0, 1, 1}
	got := EventLengths(label)
	want := []int{0, 2, 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("EventLengths() mismatch (-want +got):\n%s", diff)
	}
}

func TestFiltersExcludeOtherBucketsAndUncertain(t *testing.T) {
	// Two events: length 2 (indices 1-2) and length 30 (indices 4-33,
	// truncated here for brevity via a synthetic lengths slice instead
	// of a full label run).
	lengths := []int{0, 2, 2, 0, 30, 30}
	label := []int{0, 1, 1, 0, 1, 2} // 2 = uncertain code
	cutoffs := []Cutoff{{Lo: 0, Hi: 24}, {Lo: 24, Hi: 288}}

	bank := Filters(lengths, cutoffs, []int{2}, false, nil, label)

	short, ok := bank.Get(cutoffs[0].Key())
	if !ok {
		t.Fatalf("missing bucket %s", cutoffs[0].Key())
	}
	// Index 4 and 5 belong to the long bucket, so they must be excluded
	// from the short bucket; index 5 is also uncertain.
	want := []bool{true, false, false, true, true, true}
	if diff := cmp.Diff(want, short); diff != "" {
		t.Errorf("short bucket exclusion mask mismatch (-want +got):\n%s", diff)
	}
}
