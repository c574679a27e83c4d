package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/RehearsalDNA/pkg/rehearsaldna"
)

func setupGlobals(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dbPath = filepath.Join(t.TempDir(), "notes.sqlite3")
	tempDir = t.TempDir()
	sampleRate = 22050
	algorithm = "spectral"
	threshold = 0.70
	referenceDir = ""
	libraryRoots = root
	storeFile = ".rehearsal_fingerprints.json"
	return root
}

func TestRunReturnsHandlerErrors(t *testing.T) {
	root := setupGlobals(t)
	dir := filepath.Join(root, "session")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	err := run("match", []string{dir, "missing.wav"})
	if !errors.Is(err, rehearsaldna.ErrNotFingerprinted) {
		t.Errorf("Expected ErrNotFingerprinted, got %v", err)
	}

	if err := run("exclude", []string{dir, "gone.wav"}); err != nil {
		t.Errorf("Expected exclude to succeed, got %v", err)
	}
}

func TestMatchableIgnoresExclusionsWithoutEntries(t *testing.T) {
	root := setupGlobals(t)
	dir := filepath.Join(root, "session")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	eng, err := createEngine()
	if err != nil {
		t.Fatalf("createEngine failed: %v", err)
	}
	defer eng.Close()
	if _, err := eng.ToggleExclusion(dir, "deleted-take.wav"); err != nil {
		t.Fatal(err)
	}

	info := eng.Folder(dir)
	if len(info.Excluded) != 1 {
		t.Fatalf("Expected 1 excluded name, got %v", info.Excluded)
	}
	if n := matchable(info.Files); n != 0 {
		t.Errorf("Expected 0 matchable files, got %d", n)
	}

	files := []rehearsaldna.FileInfo{
		{Filename: "a.wav"},
		{Filename: "b.wav", Excluded: true},
		{Filename: "c.wav"},
	}
	if n := matchable(files); n != 2 {
		t.Errorf("Expected 2 matchable files, got %d", n)
	}
}
