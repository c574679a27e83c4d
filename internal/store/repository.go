package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/himanishpuri/RehearsalDNA/pkg/utils"
)

// Logger is the subset of pkg/logger used here.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

// Repository loads and saves Stores and serialises load/mutate/save cycles
// per folder. Different folders never block each other.
type Repository struct {
	fileName string
	log      Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewRepository(fileName string, log Logger) *Repository {
	if fileName == "" {
		fileName = DefaultFileName
	}
	return &Repository{
		fileName: fileName,
		log:      log,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Path is the location of folder's Store file.
func (r *Repository) Path(folder string) string {
	return filepath.Join(folder, r.fileName)
}

// Exists reports whether folder already has a Store file.
func (r *Repository) Exists(folder string) bool {
	info, err := os.Stat(r.Path(folder))
	return err == nil && !info.IsDir()
}

func (r *Repository) lock(folder string) func() {
	key := utils.CleanFolder(folder)
	r.mu.Lock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Load returns folder's Store. A missing or unreadable file yields an empty
// Store; legacy entries are migrated and written back in the current schema.
func (r *Repository) Load(folder string) *Store {
	unlock := r.lock(folder)
	defer unlock()
	return r.load(folder)
}

func (r *Repository) load(folder string) *Store {
	path := r.Path(folder)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.warnf("Failed to read fingerprint store %s, treating as empty: %v", path, err)
		}
		return New()
	}

	s, migrated, err := Decode(data)
	if err != nil {
		r.warnf("Corrupt fingerprint store %s, treating as empty: %v", path, err)
		return New()
	}

	if migrated {
		r.infof("Migrated legacy fingerprint store %s to version %d", path, CurrentVersion)
		if err := r.save(folder, s); err != nil {
			r.warnf("Failed to persist migrated store %s: %v", path, err)
		}
	}
	return s
}

// Save writes s to folder's Store file atomically.
func (r *Repository) Save(folder string, s *Store) error {
	unlock := r.lock(folder)
	defer unlock()
	return r.save(folder, s)
}

func (r *Repository) save(folder string, s *Store) error {
	if s == nil {
		return errors.New("nil store")
	}
	data, err := Encode(s)
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}
	if err := utils.WriteFileAtomic(r.Path(folder), data, 0o644); err != nil {
		return fmt.Errorf("saving store for %s: %w", folder, err)
	}
	s.Version = CurrentVersion
	return nil
}

// Update runs fn on the freshly loaded Store while holding the folder lock
// and saves the result. Nothing is saved when fn fails.
func (r *Repository) Update(folder string, fn func(*Store) error) error {
	unlock := r.lock(folder)
	defer unlock()

	s := r.load(folder)
	if err := fn(s); err != nil {
		return err
	}
	return r.save(folder, s)
}

func (r *Repository) IsExcluded(folder, filename string) bool {
	return r.Load(folder).IsExcluded(filename)
}

// ToggleExclusion flips whether filename is skipped during collection and
// returns the new state.
func (r *Repository) ToggleExclusion(folder, filename string) (bool, error) {
	var state bool
	err := r.Update(folder, func(s *Store) error {
		state = s.ToggleExclusion(filename)
		return nil
	})
	return state, err
}

// ToggleReferenceFolder flips the folder's own reference flag.
func (r *Repository) ToggleReferenceFolder(folder string) (bool, error) {
	var state bool
	err := r.Update(folder, func(s *Store) error {
		s.IsReferenceFolder = !s.IsReferenceFolder
		state = s.IsReferenceFolder
		return nil
	})
	return state, err
}

// ToggleIgnoreFolder flips whether the whole folder is left out of matching.
func (r *Repository) ToggleIgnoreFolder(folder string) (bool, error) {
	var state bool
	err := r.Update(folder, func(s *Store) error {
		s.IgnoreFingerprints = !s.IgnoreFingerprints
		state = s.IgnoreFingerprints
		return nil
	})
	return state, err
}

func (r *Repository) warnf(format string, args ...any) {
	if r.log != nil {
		r.log.Warnf(format, args...)
	}
}

func (r *Repository) infof(format string, args ...any) {
	if r.log != nil {
		r.log.Infof(format, args...)
	}
}
