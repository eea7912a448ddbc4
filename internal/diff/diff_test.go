package diff

import (
	"testing"

	"github.com/rbouman/stormphase/internal/resultrow"
)

func TestCompareRegression(t *testing.T) {
	baseline := []resultrow.ResultRow{
		{Engine: "spc", ThresholdVariant: "single", Split: "test", FBeta: 0.80},
	}
	current := []resultrow.ResultRow{
		{Engine: "spc", ThresholdVariant: "single", Split: "test", FBeta: 0.40},
	}

	report := Compare(baseline, current)
	if report.Regressions == 0 {
		t.Fatal("expected a regression for the F-beta drop")
	}
	if len(report.Changes) != 1 {
		t.Fatalf("len(Changes) = %d, want 1", len(report.Changes))
	}
	c := report.Changes[0]
	if c.Direction != "regression" {
		t.Errorf("direction = %q, want regression", c.Direction)
	}
	if c.Significance != "high" {
		t.Errorf("significance = %q, want high (50%% drop)", c.Significance)
	}
}

func TestCompareIdentical(t *testing.T) {
	rows := []resultrow.ResultRow{
		{Engine: "spc", ThresholdVariant: "single", Split: "test", FBeta: 0.9},
	}
	report := Compare(rows, rows)
	if report.Regressions != 0 || report.Improvements != 0 {
		t.Errorf("expected no changes for identical rows, got %+v", report.Changes)
	}
}

func TestCompareImprovement(t *testing.T) {
	baseline := []resultrow.ResultRow{
		{Engine: "iterative_arima", ThresholdVariant: "double", Split: "test", FBeta: 0.5},
	}
	current := []resultrow.ResultRow{
		{Engine: "iterative_arima", ThresholdVariant: "double", Split: "test", FBeta: 0.95},
	}

	report := Compare(baseline, current)
	if report.Improvements == 0 {
		t.Fatal("expected an improvement")
	}
}

func TestCompareUnmatchedRowIgnored(t *testing.T) {
	baseline := []resultrow.ResultRow{
		{Engine: "spc", ThresholdVariant: "single", Split: "train", FBeta: 0.5},
	}
	current := []resultrow.ResultRow{
		{Engine: "spc", ThresholdVariant: "single", Split: "test", FBeta: 0.5},
	}
	report := Compare(baseline, current)
	if len(report.Changes) != 0 {
		t.Errorf("expected no matched rows across different splits, got %+v", report.Changes)
	}
}

func TestFormatDiff(t *testing.T) {
	report := &Report{
		Baseline:     "run-1.json",
		Current:      "run-2.json",
		Regressions:  1,
		Improvements: 1,
		Changes: []Change{
			{Key: "spc/single/test", OldFBeta: 0.8, NewFBeta: 0.4, Delta: -0.4, DeltaPct: -50, Direction: "regression", Significance: "high"},
			{Key: "binary_segmentation/double/test", OldFBeta: 0.5, NewFBeta: 0.9, Delta: 0.4, DeltaPct: 80, Direction: "improvement", Significance: "high"},
		},
	}

	out := FormatDiff(report)
	if out == "" {
		t.Fatal("empty diff output")
	}
	if len(out) < 50 {
		t.Error("diff output too short")
	}
}
