// Package diff compares two stormphase result-row sets and highlights
// per-engine F-beta regressions/improvements, generalized from the
// teacher's system-metrics report differ (internal/diff originally
// compared CPU/memory/disk USE metrics between two runs; the same
// "match by key, delta, classify, summarize" shape applies to comparing
// threshold-optimization results across two preprocessing or
// hyperparameter configurations).
package diff

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/rbouman/stormphase/internal/resultrow"
)

// Report contains the comparison between two result-row sets.
type Report struct {
	Baseline     string   `json:"baseline"`
	Current      string   `json:"current"`
	Changes      []Change `json:"changes"`
	Regressions  int      `json:"regressions"`
	Improvements int      `json:"improvements"`
}

// Change represents one (engine, threshold_variant, split) row's F-beta
// movement between two runs.
type Change struct {
	Key          string  `json:"key"`
	OldFBeta     float64 `json:"old_f_beta"`
	NewFBeta     float64 `json:"new_f_beta"`
	Delta        float64 `json:"delta"`
	DeltaPct     float64 `json:"delta_pct"`
	Direction    string  `json:"direction"`    // "regression", "improvement", "unchanged"
	Significance string  `json:"significance"` // "high", "medium", "low"
}

// LoadRows reads a JSON-encoded []resultrow.ResultRow file.
func LoadRows(path string) ([]resultrow.ResultRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var rows []resultrow.ResultRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rows, nil
}

func rowKey(r resultrow.ResultRow) string {
	return strings.Join([]string{r.Engine, r.ThresholdVariant, r.Split}, "/")
}

// Compare matches baseline and current rows by (engine, threshold
// variant, split) and reports F-beta movement for every matched pair.
func Compare(baseline, current []resultrow.ResultRow) *Report {
	report := &Report{}

	byKey := make(map[string]resultrow.ResultRow, len(baseline))
	for _, r := range baseline {
		byKey[rowKey(r)] = r
	}

	for _, cur := range current {
		key := rowKey(cur)
		old, ok := byKey[key]
		if !ok {
			continue
		}
		addChange(report, key, old.FBeta, cur.FBeta)
	}

	for _, c := range report.Changes {
		switch c.Direction {
		case "regression":
			report.Regressions++
		case "improvement":
			report.Improvements++
		}
	}
	return report
}

func addChange(report *Report, key string, oldVal, newVal float64) {
	delta := newVal - oldVal
	deltaPct := 0.0
	if oldVal != 0 {
		deltaPct = (delta / math.Abs(oldVal)) * 100
	}

	if math.Abs(deltaPct) < 1.0 && math.Abs(delta) < 0.001 {
		return
	}

	direction := "unchanged"
	if deltaPct < -5 {
		direction = "regression"
	} else if deltaPct > 5 {
		direction = "improvement"
	}

	significance := "low"
	absPct := math.Abs(deltaPct)
	if absPct >= 50 {
		significance = "high"
	} else if absPct >= 20 {
		significance = "medium"
	}

	report.Changes = append(report.Changes, Change{
		Key:          key,
		OldFBeta:     oldVal,
		NewFBeta:     newVal,
		Delta:        delta,
		DeltaPct:     deltaPct,
		Direction:    direction,
		Significance: significance,
	})
}

// FormatDiff returns a human-readable diff summary.
func FormatDiff(d *Report) string {
	var sb strings.Builder

	sb.WriteString("=== Result Diff ===\n")
	sb.WriteString(fmt.Sprintf("Baseline: %s\n", d.Baseline))
	sb.WriteString(fmt.Sprintf("Current:  %s\n\n", d.Current))
	sb.WriteString(fmt.Sprintf("Regressions: %d, Improvements: %d\n\n", d.Regressions, d.Improvements))

	if d.Regressions > 0 {
		sb.WriteString("Regressions:\n")
		for _, c := range d.Changes {
			if c.Direction == "regression" {
				sb.WriteString(fmt.Sprintf("  [%s] %s: %.4f -> %.4f (%+.1f%%)\n",
					strings.ToUpper(c.Significance), c.Key, c.OldFBeta, c.NewFBeta, c.DeltaPct))
			}
		}
		sb.WriteString("\n")
	}

	if d.Improvements > 0 {
		sb.WriteString("Improvements:\n")
		for _, c := range d.Changes {
			if c.Direction == "improvement" {
				sb.WriteString(fmt.Sprintf("  [%s] %s: %.4f -> %.4f (%+.1f%%)\n",
					strings.ToUpper(c.Significance), c.Key, c.OldFBeta, c.NewFBeta, c.DeltaPct))
			}
		}
	}

	return sb.String()
}
