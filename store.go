package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store persists per-item outcomes to a JSON results file. The full record is
// rewritten after every change so a crash never loses more than the item in
// flight.
type Store struct {
	path   string
	record ProgressRecord
}

// NewStore creates a store backed by the given results file
func NewStore(path string) *Store {
	return &Store{
		path:   path,
		record: make(ProgressRecord),
	}
}

// Load reads the results file into memory. A missing file starts an empty
// record; a file that exists but cannot be parsed is an error so a corrupt
// store is never silently overwritten.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.record = make(ProgressRecord)
			return nil
		}
		return fmt.Errorf("reading results file %s: %w", s.path, err)
	}

	var record ProgressRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("results file %s is corrupt, fix or remove it: %w", s.path, err)
	}
	if record == nil {
		record = make(ProgressRecord)
	}

	s.record = record
	return nil
}

// Record stores one item outcome and persists the record immediately
func (s *Store) Record(result ExtractionResult) error {
	result.UpdatedAt = time.Now().UTC()
	s.record[result.ItemID] = result
	return s.save()
}

// IsComplete reports whether an item already has a terminal outcome
func (s *Store) IsComplete(itemID string) bool {
	r, ok := s.record[itemID]
	return ok && r.Status.Terminal()
}

// Get returns the recorded outcome for an item
func (s *Store) Get(itemID string) (ExtractionResult, bool) {
	r, ok := s.record[itemID]
	return r, ok
}

// Results returns the in-memory record
func (s *Store) Results() ProgressRecord {
	return s.record
}

// Len returns the number of recorded items
func (s *Store) Len() int {
	return len(s.record)
}

// Counts tallies recorded outcomes by status
func (s *Store) Counts() (success, failed, skipped int) {
	for _, r := range s.record {
		switch r.Status {
		case StatusSuccess:
			success++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return success, failed, skipped
}

// ResetFailed removes failed entries so the next pass reprocesses them.
// Returns the number of entries cleared.
func (s *Store) ResetFailed() (int, error) {
	cleared := 0
	for id, r := range s.record {
		if r.Status == StatusFailed {
			delete(s.record, id)
			cleared++
		}
	}
	if cleared == 0 {
		return 0, nil
	}
	return cleared, s.save()
}

// save writes the record to a temp file in the same directory, syncs it, and
// renames it over the results file. Readers always see a complete file.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".results-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp results file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp results file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp results file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp results file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing results file: %w", err)
	}

	return nil
}
