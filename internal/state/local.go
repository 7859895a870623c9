package state

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// LocalStore persists one JSON file per stage under a directory.
// Commits write to a temporary file in the same directory and rename it
// over the old record, so a crash never leaves a partial write behind.
type LocalStore struct {
	Dir string
}

// NewLocalStore creates a local file store rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{Dir: dir}
}

func (s *LocalStore) path(stage string) string {
	return filepath.Join(s.Dir, stage+".json")
}

// Load reads the record for a stage. A missing file yields an empty
// record; anything else unreadable is a StoreError.
func (s *LocalStore) Load(stage string) (*Record, error) {
	data, err := os.ReadFile(s.path(stage))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewRecord(), nil
		}
		return nil, &StoreError{Stage: stage, Op: "load", Err: err}
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return nil, &StoreError{Stage: stage, Op: "load", Err: err}
	}
	return rec, nil
}

// Commit atomically replaces the record for a stage.
func (s *LocalStore) Commit(stage string, record *Record) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return &StoreError{Stage: stage, Op: "commit", Err: err}
	}
	sortResources(record.Resources)
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return &StoreError{Stage: stage, Op: "commit", Err: err}
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.Dir, "."+stage+"-*.tmp")
	if err != nil {
		return &StoreError{Stage: stage, Op: "commit", Err: err}
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &StoreError{Stage: stage, Op: "commit", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &StoreError{Stage: stage, Op: "commit", Err: err}
	}
	if err := os.Rename(tmpPath, s.path(stage)); err != nil {
		os.Remove(tmpPath)
		return &StoreError{Stage: stage, Op: "commit", Err: err}
	}
	return nil
}
