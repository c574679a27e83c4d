package store

import (
	"sort"

	"github.com/himanishpuri/RehearsalDNA/internal/fingerprint"
	"github.com/himanishpuri/RehearsalDNA/pkg/models"
)

// CurrentVersion is the schema version written by Save.
const CurrentVersion = 1

// DefaultFileName is the per-folder file holding a Store.
const DefaultFileName = ".rehearsal_fingerprints.json"

// FileEntry holds everything cached about one audio file.
type FileEntry struct {
	Fingerprints map[fingerprint.Algorithm]fingerprint.Vector
	Size         int64
	ModTime      int64
	DurationMs   int64
}

func NewFileEntry() *FileEntry {
	return &FileEntry{Fingerprints: make(map[fingerprint.Algorithm]fingerprint.Vector)}
}

// Vector returns the stored vector for algorithm a.
func (e *FileEntry) Vector(a fingerprint.Algorithm) (fingerprint.Vector, bool) {
	if e == nil {
		return nil, false
	}
	v, ok := e.Fingerprints[a]
	if !ok || len(v) == 0 {
		return nil, false
	}
	return v, true
}

func (e *FileEntry) Signature() models.Signature {
	return models.Signature{Size: e.Size, ModTime: e.ModTime}
}

// IsStale reports whether the live file signature no longer matches.
func (e *FileEntry) IsStale(live models.Signature) bool {
	return e == nil || e.Signature() != live
}

// Missing returns the algorithms in want that have no stored vector.
func (e *FileEntry) Missing(want []fingerprint.Algorithm) []fingerprint.Algorithm {
	var out []fingerprint.Algorithm
	for _, a := range want {
		if _, ok := e.Vector(a); !ok {
			out = append(out, a)
		}
	}
	return out
}

// Stored returns the algorithms with a vector in e, in registry order.
func (e *FileEntry) Stored() []fingerprint.Algorithm {
	var out []fingerprint.Algorithm
	for _, a := range fingerprint.Algorithms() {
		if _, ok := e.Vector(a); ok {
			out = append(out, a)
		}
	}
	return out
}

// Merge adds or replaces vectors without touching other algorithms.
func (e *FileEntry) Merge(vectors map[fingerprint.Algorithm]fingerprint.Vector) {
	if e.Fingerprints == nil {
		e.Fingerprints = make(map[fingerprint.Algorithm]fingerprint.Vector, len(vectors))
	}
	for a, v := range vectors {
		e.Fingerprints[a] = v
	}
}

// Store is the persisted record of one folder.
type Store struct {
	Version            int
	Files              map[string]*FileEntry
	ExcludedFiles      map[string]bool
	IsReferenceFolder  bool
	IgnoreFingerprints bool
}

// New returns an empty Store at the current schema version.
func New() *Store {
	return &Store{
		Version:       CurrentVersion,
		Files:         make(map[string]*FileEntry),
		ExcludedFiles: make(map[string]bool),
	}
}

func (s *Store) Entry(filename string) (*FileEntry, bool) {
	e, ok := s.Files[filename]
	return e, ok
}

// EnsureEntry returns the entry for filename, creating it when absent.
func (s *Store) EnsureEntry(filename string) *FileEntry {
	if e, ok := s.Files[filename]; ok && e != nil {
		return e
	}
	e := NewFileEntry()
	s.Files[filename] = e
	return e
}

func (s *Store) IsExcluded(filename string) bool {
	return s.ExcludedFiles[filename]
}

// ToggleExclusion flips the exclusion state of filename and returns it.
func (s *Store) ToggleExclusion(filename string) bool {
	if s.ExcludedFiles[filename] {
		delete(s.ExcludedFiles, filename)
		return false
	}
	s.ExcludedFiles[filename] = true
	return true
}

// Filenames returns the cached file names in sorted order.
func (s *Store) Filenames() []string {
	names := make([]string, 0, len(s.Files))
	for name := range s.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Store) excludedList() []string {
	out := make([]string, 0, len(s.ExcludedFiles))
	for name, on := range s.ExcludedFiles {
		if on {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
