// Package ingest loads raw station batches from the CSV layout described
// in spec.md §6: X/<station_id>.csv with columns M_TIMESTAMP, S_original,
// BU_original, and optionally missing; y/<station_id>.csv with column
// label.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rbouman/stormphase/internal/stationdata"
)

// LoadBatch reads every station under xDir/<id>.csv + yDir/<id>.csv and
// returns them as a Batch, ordered by station ID for determinism.
func LoadBatch(xDir, yDir string) (*stationdata.Batch, error) {
	entries, err := os.ReadDir(xDir)
	if err != nil {
		return nil, fmt.Errorf("read X dir %s: %w", xDir, err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".csv"))
	}
	sort.Strings(ids)

	batch := &stationdata.Batch{}
	for _, id := range ids {
		station, err := LoadStation(id, filepath.Join(xDir, id+".csv"), filepath.Join(yDir, id+".csv"))
		if err != nil {
			return nil, err
		}
		batch.Stations = append(batch.Stations, station)
	}
	return batch, nil
}

// LoadStation reads one station's X and y CSV files.
func LoadStation(id, xPath, yPath string) (*stationdata.RawStation, error) {
	xCols, err := readCSV(xPath)
	if err != nil {
		return nil, fmt.Errorf("read X for station %s: %w", id, err)
	}
	yCols, err := readCSV(yPath)
	if err != nil {
		return nil, fmt.Errorf("read y for station %s: %w", id, err)
	}

	ts := xCols["M_TIMESTAMP"]
	sOrig, err := toFloats(xCols["S_original"])
	if err != nil {
		return nil, fmt.Errorf("station %s: S_original: %w", id, err)
	}
	buOrig, err := toFloats(xCols["BU_original"])
	if err != nil {
		return nil, fmt.Errorf("station %s: BU_original: %w", id, err)
	}

	var missing []bool
	if col, ok := xCols["missing"]; ok {
		missing = make([]bool, len(col))
		for i, v := range col {
			missing[i] = v == "1" || strings.EqualFold(v, "true")
		}
	}

	labelCol, ok := yCols["label"]
	if !ok {
		return nil, fmt.Errorf("station %s: y CSV missing label column", id)
	}
	label := make([]int, len(labelCol))
	for i, v := range labelCol {
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("station %s: label row %d: %w", id, i, err)
		}
		label[i] = n
	}

	return &stationdata.RawStation{
		ID:         id,
		Timestamp:  ts,
		SOriginal:  sOrig,
		BUOriginal: buOrig,
		Label:      label,
		Missing:    missing,
	}, nil
}

// readCSV parses a header row plus data rows into column name -> values.
func readCSV(path string) (map[string][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return map[string][]string{}, nil
		}
		return nil, err
	}

	cols := make(map[string][]string, len(header))
	for _, h := range header {
		cols[h] = nil
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for i, h := range header {
			if i < len(row) {
				cols[h] = append(cols[h], row[i])
			} else {
				cols[h] = append(cols[h], "")
			}
		}
	}
	return cols, nil
}

func toFloats(col []string) ([]float64, error) {
	out := make([]float64, len(col))
	for i, v := range col {
		if v == "" || strings.EqualFold(v, "nan") {
			out[i] = math.NaN()
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}
