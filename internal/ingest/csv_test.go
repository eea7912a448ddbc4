package ingest

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeCSV(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadStation(t *testing.T) {
	dir := t.TempDir()
	xPath := writeCSV(t, dir, "s1_x.csv",
		"M_TIMESTAMP,S_original,BU_original,missing\n"+
			"2024-01-01T00:00,10.0,9.5,0\n"+
			"2024-01-01T00:05,,9.6,1\n"+
			"2024-01-01T00:10,11.0,9.7,0\n")
	yPath := writeCSV(t, dir, "s1_y.csv", "label\n0\n1\n0\n")

	station, err := LoadStation("s1", xPath, yPath)
	if err != nil {
		t.Fatalf("LoadStation: %v", err)
	}
	if station.ID != "s1" {
		t.Errorf("ID = %q, want s1", station.ID)
	}
	if len(station.SOriginal) != 3 {
		t.Fatalf("len(SOriginal) = %d, want 3", len(station.SOriginal))
	}
	if !math.IsNaN(station.SOriginal[1]) {
		t.Errorf("SOriginal[1] = %v, want NaN for empty cell", station.SOriginal[1])
	}
	if !station.Missing[1] {
		t.Errorf("Missing[1] = false, want true")
	}
	want := []int{0, 1, 0}
	for i, v := range want {
		if station.Label[i] != v {
			t.Errorf("Label[%d] = %d, want %d", i, station.Label[i], v)
		}
	}
}

func TestLoadStationMissingLabelColumn(t *testing.T) {
	dir := t.TempDir()
	xPath := writeCSV(t, dir, "s2_x.csv", "M_TIMESTAMP,S_original,BU_original\n2024-01-01,1,1\n")
	yPath := writeCSV(t, dir, "s2_y.csv", "not_label\n0\n")

	if _, err := LoadStation("s2", xPath, yPath); err == nil {
		t.Fatal("expected error for missing label column")
	}
}

func TestLoadBatchOrdersByID(t *testing.T) {
	xDir := t.TempDir()
	yDir := t.TempDir()
	for _, id := range []string{"b_station", "a_station"} {
		writeCSV(t, xDir, id+".csv", "M_TIMESTAMP,S_original,BU_original\n2024-01-01,1,1\n")
		writeCSV(t, yDir, id+".csv", "label\n0\n")
	}

	batch, err := LoadBatch(xDir, yDir)
	if err != nil {
		t.Fatalf("LoadBatch: %v", err)
	}
	if len(batch.Stations) != 2 {
		t.Fatalf("len(Stations) = %d, want 2", len(batch.Stations))
	}
	if batch.Stations[0].ID != "a_station" || batch.Stations[1].ID != "b_station" {
		t.Errorf("stations not sorted by ID: %s, %s", batch.Stations[0].ID, batch.Stations[1].ID)
	}
}
