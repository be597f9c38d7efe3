package state

import (
	"fmt"
	"time"

	"scenesmith/internal/fileutil"
)

// Store reads and writes one project record file.
type Store struct {
	path string
	now  func() time.Time
}

// NewStore returns a Store for the record at path. A nil clock uses
// time.Now.
func NewStore(path string, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{path: path, now: now}
}

// Path returns the record file location.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a record file is present.
func (s *Store) Exists() bool {
	return fileutil.Exists(s.path)
}

// Load recovers and normalizes the record. It never fails; a missing or
// unreadable file yields a default record.
func (s *Store) Load() ProjectState {
	return Normalize(ReadBestEffort(s.path), s.now())
}

// Save stamps UpdatedAt and atomically replaces the record file.
func (s *Store) Save(st *ProjectState) error {
	if st == nil {
		return fmt.Errorf("save project state: nil state")
	}
	st.UpdatedAt = s.now().UTC()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = st.UpdatedAt
	}
	if err := fileutil.WriteJSONAtomic(s.path, st); err != nil {
		return fmt.Errorf("save project state: %w", err)
	}
	return nil
}
