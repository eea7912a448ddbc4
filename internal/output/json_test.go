package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rbouman/stormphase/internal/resultrow"
)

func TestWriteJSONToFile(t *testing.T) {
	rows := []resultrow.ResultRow{
		{Engine: "spc", ThresholdVariant: "single", Split: "test", FBeta: 0.8},
	}

	tmpDir := t.TempDir()
	outPath := filepath.Join(tmpDir, "rows.json")

	if err := WriteJSON(rows, outPath); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), `"engine": "spc"`) {
		t.Errorf("output missing engine field, got %q", data)
	}
}

func TestWriteJSONStdout(t *testing.T) {
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := WriteJSON(map[string]int{"a": 1}, "-")

	w.Close()
	os.Stdout = oldStdout

	if err != nil {
		t.Fatalf("WriteJSON to stdout: %v", err)
	}

	buf := make([]byte, 4096)
	n, _ := r.Read(buf)
	if n == 0 {
		t.Error("no output to stdout")
	}
}
