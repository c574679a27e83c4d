package store

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/himanishpuri/RehearsalDNA/internal/fingerprint"
)

type storeRecord struct {
	Version            int                        `json:"version"`
	Files              map[string]json.RawMessage `json:"files"`
	ExcludedFiles      []string                   `json:"excluded_files"`
	IsReferenceFolder  bool                       `json:"is_reference_folder"`
	IgnoreFingerprints bool                       `json:"ignore_fingerprints"`
}

// fileEntryRecord is either shape a file entry has been written in.
type fileEntryRecord interface {
	normalize() *FileEntry
}

// currentFileEntry carries one vector per algorithm.
type currentFileEntry struct {
	Fingerprints map[string][]float64 `json:"fingerprints"`
	Size         flexInt              `json:"size"`
	ModTime      flexInt              `json:"mtime"`
	DurationMs   flexInt              `json:"duration_ms"`
}

// legacyFileEntry predates multiple algorithms: a single bare vector.
type legacyFileEntry struct {
	Fingerprint []float64 `json:"fingerprint"`
	Size        flexInt   `json:"size"`
	ModTime     flexInt   `json:"mtime"`
	DurationMs  flexInt   `json:"duration_ms"`
}

func (r currentFileEntry) normalize() *FileEntry {
	e := NewFileEntry()
	for id, v := range r.Fingerprints {
		e.Fingerprints[fingerprint.Algorithm(id)] = v
	}
	e.Size, e.ModTime, e.DurationMs = int64(r.Size), int64(r.ModTime), int64(r.DurationMs)
	return e
}

func (r legacyFileEntry) normalize() *FileEntry {
	e := NewFileEntry()
	if len(r.Fingerprint) > 0 {
		e.Fingerprints[fingerprint.DefaultAlgorithm] = r.Fingerprint
	}
	e.Size, e.ModTime, e.DurationMs = int64(r.Size), int64(r.ModTime), int64(r.DurationMs)
	return e
}

// decodeFileEntry picks the record shape from the keys present.
func decodeFileEntry(raw json.RawMessage) (fileEntryRecord, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, err
	}
	if _, hasNew := keys["fingerprints"]; !hasNew {
		if _, hasOld := keys["fingerprint"]; hasOld {
			var legacy legacyFileEntry
			if err := json.Unmarshal(raw, &legacy); err != nil {
				return nil, err
			}
			return legacy, nil
		}
	}
	var current currentFileEntry
	if err := json.Unmarshal(raw, &current); err != nil {
		return nil, err
	}
	return current, nil
}

// Decode parses a persisted Store and reports whether any legacy entries
// were migrated.
func Decode(data []byte) (*Store, bool, error) {
	var rec storeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, err
	}

	s := New()
	migrated := rec.Version < CurrentVersion && len(rec.Files) > 0
	for name, raw := range rec.Files {
		entry, err := decodeFileEntry(raw)
		if err != nil {
			return nil, false, fmt.Errorf("file entry %q: %w", name, err)
		}
		if _, ok := entry.(legacyFileEntry); ok {
			migrated = true
		}
		s.Files[name] = entry.normalize()
	}
	for _, name := range rec.ExcludedFiles {
		s.ExcludedFiles[name] = true
	}
	s.IsReferenceFolder = rec.IsReferenceFolder
	s.IgnoreFingerprints = rec.IgnoreFingerprints
	return s, migrated, nil
}

// Encode renders s in the current schema.
func Encode(s *Store) ([]byte, error) {
	out := struct {
		Version            int                         `json:"version"`
		Files              map[string]currentFileEntry `json:"files"`
		ExcludedFiles      []string                    `json:"excluded_files"`
		IsReferenceFolder  bool                        `json:"is_reference_folder"`
		IgnoreFingerprints bool                        `json:"ignore_fingerprints"`
	}{
		Version:            CurrentVersion,
		Files:              make(map[string]currentFileEntry, len(s.Files)),
		ExcludedFiles:      s.excludedList(),
		IsReferenceFolder:  s.IsReferenceFolder,
		IgnoreFingerprints: s.IgnoreFingerprints,
	}
	for name, e := range s.Files {
		if e == nil {
			continue
		}
		rec := currentFileEntry{
			Fingerprints: make(map[string][]float64, len(e.Fingerprints)),
			Size:         flexInt(e.Size),
			ModTime:      flexInt(e.ModTime),
			DurationMs:   flexInt(e.DurationMs),
		}
		for a, v := range e.Fingerprints {
			rec.Fingerprints[string(a)] = v
		}
		out.Files[name] = rec
	}
	return json.MarshalIndent(out, "", "  ")
}

// flexInt accepts integral JSON numbers written as floats (e.g. a
// fractional mtime) and truncates them.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = 0
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("invalid integer %s", b)
	}
	*f = flexInt(int64(v))
	return nil
}
