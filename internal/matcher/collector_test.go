package matcher

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/RehearsalDNA/internal/fingerprint"
	"github.com/himanishpuri/RehearsalDNA/internal/store"
	"github.com/himanishpuri/RehearsalDNA/pkg/logger"
)

type fakeAnnotations struct {
	names map[string]string
	refs  map[string]bool
	err   error
}

func (f *fakeAnnotations) key(folder, filename string) string {
	return filepath.Join(folder, filename)
}

func (f *fakeAnnotations) ProvidedName(folder, filename string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.names[f.key(folder, filename)], nil
}

func (f *fakeAnnotations) IsReferenceSong(folder, filename string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.refs[f.key(folder, filename)], nil
}

func unitVector(n int, values ...float64) fingerprint.Vector {
	v := make(fingerprint.Vector, n)
	copy(v, values)
	return v
}

func seedFolder(t *testing.T, repo *store.Repository, folder string, mutate func(s *store.Store), files map[string]fingerprint.Vector) {
	t.Helper()
	err := repo.Update(folder, func(s *store.Store) error {
		for name, vec := range files {
			s.EnsureEntry(name).Merge(map[fingerprint.Algorithm]fingerprint.Vector{fingerprint.Spectral: vec})
		}
		if mutate != nil {
			mutate(s)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to seed %s: %v", folder, err)
	}
}

func setupCollector(t *testing.T, notes Annotations) (*Collector, *store.Repository) {
	t.Helper()
	repo := store.NewRepository(store.DefaultFileName, logger.Discard())
	return NewCollector(repo, notes, logger.Discard()), repo
}

func TestCrossFolderScenario(t *testing.T) {
	folderA, folderB := t.TempDir(), t.TempDir()
	notes := &fakeAnnotations{names: map[string]string{
		filepath.Join(folderB, "x.wav"): "Intro",
	}}
	c, repo := setupCollector(t, notes)

	seedFolder(t, repo, folderA, nil, map[string]fingerprint.Vector{"01.wav": unitVector(144, 1)})
	seedFolder(t, repo, folderB, nil, map[string]fingerprint.Vector{"x.wav": unitVector(144, 0.99, 0.01)})

	index, err := c.Collect(context.Background(), []string{folderA, folderB}, fingerprint.Spectral, folderA, "")
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if _, ok := index["01.wav"]; ok {
		t.Error("The query folder must not be collected")
	}

	got := New(logger.Discard()).FindBestMatch(unitVector(144, 1), index, 0.7)
	if got == nil {
		t.Fatal("Expected a match")
	}
	if got.Filename != "x.wav" || got.SourceFolder != folderB || got.ProvidedName != "Intro" {
		t.Errorf("Unexpected match: %+v", got)
	}
	want := 0.99 / math.Sqrt(0.99*0.99+0.01*0.01)
	if math.Abs(got.RawSimilarity-want) > 1e-9 || got.RawSimilarity < 0.999 {
		t.Errorf("Expected raw similarity %f, got %f", want, got.RawSimilarity)
	}
}

func TestCollectSkipsIgnoredFoldersAndExcludedFiles(t *testing.T) {
	ignored, normal := t.TempDir(), t.TempDir()
	c, repo := setupCollector(t, nil)

	seedFolder(t, repo, ignored, func(s *store.Store) { s.IgnoreFingerprints = true },
		map[string]fingerprint.Vector{"hidden.wav": {1, 0}})
	seedFolder(t, repo, normal, func(s *store.Store) { s.ExcludedFiles["skip.wav"] = true },
		map[string]fingerprint.Vector{"keep.wav": {1, 0}, "skip.wav": {1, 0}})

	index, err := c.Collect(context.Background(), []string{ignored, normal}, fingerprint.Spectral, "", "")
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(index) != 1 {
		t.Fatalf("Expected only keep.wav, got %v", index)
	}
	if _, ok := index["keep.wav"]; !ok {
		t.Error("Expected keep.wav in index")
	}
}

func TestCollectSkipsEntriesWithoutAlgorithm(t *testing.T) {
	folder := t.TempDir()
	c, repo := setupCollector(t, nil)
	err := repo.Update(folder, func(s *store.Store) error {
		s.EnsureEntry("chroma-only.wav").Merge(map[fingerprint.Algorithm]fingerprint.Vector{fingerprint.Chroma: {1}})
		s.EnsureEntry("both.wav").Merge(map[fingerprint.Algorithm]fingerprint.Vector{
			fingerprint.Chroma:   {1},
			fingerprint.Spectral: {1},
		})
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	index, _ := c.Collect(context.Background(), []string{folder}, fingerprint.Spectral, "", "")
	if len(index) != 1 || index["both.wav"] == nil {
		t.Errorf("Expected only both.wav for spectral, got %v", index)
	}
}

func TestCollectProvenanceFlags(t *testing.T) {
	global, flagged := t.TempDir(), t.TempDir()
	notes := &fakeAnnotations{refs: map[string]bool{filepath.Join(flagged, "song.wav"): true}}
	c, repo := setupCollector(t, notes)

	seedFolder(t, repo, global, nil, map[string]fingerprint.Vector{"song.wav": {1, 0}})
	seedFolder(t, repo, flagged, func(s *store.Store) { s.IsReferenceFolder = true },
		map[string]fingerprint.Vector{"song.wav": {0, 1}})

	index, err := c.Collect(context.Background(), []string{global, flagged}, fingerprint.Spectral, "", global)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	cands := index["song.wav"]
	if len(cands) != 2 {
		t.Fatalf("Expected one candidate per folder, got %d", len(cands))
	}

	first, second := cands[0], cands[1]
	if first.SourceFolder != global || !first.IsGlobalReferenceFolder || first.IsPerFolderReference || first.IsReferenceSong {
		t.Errorf("Unexpected flags for global reference candidate: %+v", first)
	}
	if second.SourceFolder != flagged || second.IsGlobalReferenceFolder || !second.IsPerFolderReference || !second.IsReferenceSong {
		t.Errorf("Unexpected flags for flagged candidate: %+v", second)
	}
	if first.ProvidedName != "song" {
		t.Errorf("Expected stem fallback name 'song', got %q", first.ProvidedName)
	}
}

func TestCollectSwallowsAnnotationErrors(t *testing.T) {
	folder := t.TempDir()
	c, repo := setupCollector(t, &fakeAnnotations{err: errors.New("db locked")})
	seedFolder(t, repo, folder, nil, map[string]fingerprint.Vector{"02 Verse.mp3": {1}})

	index, err := c.Collect(context.Background(), []string{folder}, fingerprint.Spectral, "", "")
	if err != nil {
		t.Fatalf("Annotation failures must not fail collection: %v", err)
	}
	got := index["02 Verse.mp3"]
	if len(got) != 1 || got[0].ProvidedName != "02 Verse" || got[0].IsReferenceSong {
		t.Errorf("Unexpected candidate: %+v", got)
	}
}

func TestCollectOrderFollowsFolderList(t *testing.T) {
	var folders []string
	c, repo := setupCollector(t, nil)
	for i := 0; i < 8; i++ {
		f := t.TempDir()
		seedFolder(t, repo, f, nil, map[string]fingerprint.Vector{"same.wav": {float64(i + 1)}})
		folders = append(folders, f)
	}
	folders = append(folders, folders[0])

	index, err := c.Collect(context.Background(), folders, fingerprint.Spectral, "", "")
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	cands := index["same.wav"]
	if len(cands) != 8 {
		t.Fatalf("Expected duplicate folders collected once, got %d candidates", len(cands))
	}
	for i, cand := range cands {
		if cand.SourceFolder != folders[i] {
			t.Errorf("Candidate %d from %s, want %s", i, cand.SourceFolder, folders[i])
		}
	}
}

func TestCollectCancelled(t *testing.T) {
	c, _ := setupCollector(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Collect(ctx, []string{t.TempDir()}, fingerprint.Spectral, "", ""); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestCollectMissingStore(t *testing.T) {
	c, _ := setupCollector(t, nil)
	index, err := c.Collect(context.Background(), []string{t.TempDir()}, fingerprint.Spectral, "", "")
	if err != nil || len(index) != 0 {
		t.Errorf("Expected empty index for folder without a store, got %v, %v", index, err)
	}
}
