// Package output writes pipeline results as indented JSON, generalized
// from the teacher's output.WriteJSON (which serialized one fixed
// report type) into a generic writer so it serves ResultRow slices,
// store.Record values, or any other pipeline output alike.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// WriteJSON serializes v as indented JSON. If path is "-" or empty, it
// writes to stdout.
func WriteJSON[T any](v T, path string) error {
	var w io.Writer = os.Stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}
