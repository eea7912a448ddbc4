// Package store implements the content-addressed ModelStore (spec.md
// §4.6/§6): a fitted engine/threshold combination is keyed by the
// SHA-256 hash of its canonical hyperparameter string and persisted
// under a path that also encodes the engine's name and the hash of the
// preprocessing configuration it was fit against, with an atomic
// write-temp-then-rename so a crash mid-write never corrupts an
// existing entry, the way the teacher's installer package stages
// downloads before making them visible.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/rbouman/stormphase/internal/stormerr"
)

// Record is everything persisted for one fitted model: its canonical
// hyperparameter string (for human debugging), the threshold state, the
// event-length buckets it was optimized over, the per-station score and
// prediction frames, and -- for segmenting engines -- the breakpoints
// and per-segment means needed to recover the fit without rescoring
// (spec.md §3/§4.6: "persist breakpoints and per-segment means
// alongside the model").
type Record struct {
	ModelString  string          `json:"model_string"`
	Hash         string          `json:"hash"`
	UsedBuckets  []string        `json:"used_buckets"`
	Threshold    json.RawMessage `json:"threshold"`
	Frames       FrameSet        `json:"frames"`
	Breakpoints  [][]int         `json:"breakpoints,omitempty"`
	SegmentMeans [][]float64     `json:"segment_means,omitempty"`
}

// Hash returns the content-addressing key for a model string: the
// hex-encoded SHA-256 digest (spec.md §4.6: "hyperparameter hash is a
// function only of hyperparameters").
func Hash(modelString string) string {
	sum := sha256.Sum256([]byte(modelString))
	return hex.EncodeToString(sum[:])
}

// Store is a directory of Records keyed by Hash(modelString), rooted
// under a method-name/preprocessing-hash directory pair.
type Store struct {
	Dir string
}

// New creates a Store rooted at
// <base>/<methodName>/<preprocessingHash> (spec.md §4.6/§6), creating
// the directory if absent. preprocessingHash must be part of the key:
// two runs of the same engine hyperparameters against different
// preprocessing configurations must not collide on disk.
func New(base, methodName, preprocessingHash string) (*Store, error) {
	dir := filepath.Join(base, methodName, preprocessingHash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir %s: %w", dir, err)
	}
	return &Store{Dir: dir}, nil
}

func (s *Store) path(hash string) string {
	return filepath.Join(s.Dir, hash+".json")
}

// Save persists rec under Hash(rec.ModelString), writing to a
// uuid-named temp file in the same directory and renaming it into place
// so readers never observe a partially written file.
func (s *Store) Save(rec *Record) error {
	rec.Hash = Hash(rec.ModelString)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	tmp := filepath.Join(s.Dir, uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path(rec.Hash)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// Load reads back the Record for modelString, if present. UsedBuckets is
// preserved verbatim from the write (spec.md §4.6: "a reload must not
// silently change which buckets a model was optimized over").
func (s *Store) Load(modelString string) (*Record, bool, error) {
	hash := Hash(modelString)
	data, err := os.ReadFile(s.path(hash))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("unmarshal record: %w", err)
	}
	if rec.Hash != hash {
		return nil, false, &stormerr.CacheConsistencyError{
			Station: "",
			Reason:  fmt.Sprintf("stored hash %q does not match expected %q", rec.Hash, hash),
		}
	}
	return &rec, true, nil
}
