package rehearsaldna

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/himanishpuri/RehearsalDNA/internal/audio"
	"github.com/himanishpuri/RehearsalDNA/internal/fingerprint"
	"github.com/himanishpuri/RehearsalDNA/pkg/logger"
)

const testRate = 8000

// toneDecoder returns a sine whose pitch depends on the file name, so that
// equally named takes in different folders look like the same song.
type toneDecoder struct {
	pitches map[string]float64
	block   chan struct{}
}

func (d *toneDecoder) Decode(ctx context.Context, path string) (*audio.Samples, error) {
	if d.block != nil {
		<-d.block
	}
	freq, ok := d.pitches[filepath.Base(path)]
	if !ok {
		freq = 440
	}
	mono := make([]float64, testRate)
	for i := range mono {
		mono[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/testRate)
	}
	return &audio.Samples{Mono: mono, SampleRate: testRate}, nil
}

func setupEngine(t *testing.T, dec SampleSource, opts ...Option) (*Engine, string) {
	t.Helper()
	root := t.TempDir()
	base := []Option{
		WithLogger(logger.Discard()),
		WithDecoder(dec),
		WithAnnotationsDBPath(filepath.Join(t.TempDir(), "notes.sqlite3")),
		WithLibraryRoots(root),
	}
	eng, err := NewEngine(append(base, opts...)...)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng, root
}

func makeSession(t *testing.T, root, name string, files ...string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte(f), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func generate(t *testing.T, eng *Engine, folder string) Summary {
	t.Helper()
	task, err := eng.Generate(context.Background(), GenerateRequest{
		Folder:     folder,
		Algorithms: []Algorithm{fingerprint.Spectral, fingerprint.Lightweight},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sum, err := task.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	return sum
}

func TestNewEngineValidatesConfig(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "x.sqlite3")
	if _, err := NewEngine(WithAlgorithm("mfcc"), WithAnnotationsDBPath(dbPath)); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("Expected ErrUnknownAlgorithm, got %v", err)
	}
	if _, err := NewEngine(WithThreshold(1.5), WithAnnotationsDBPath(dbPath)); !errors.Is(err, ErrInvalidThreshold) {
		t.Errorf("Expected ErrInvalidThreshold, got %v", err)
	}
}

func TestGenerateAndMatchAcrossSessions(t *testing.T) {
	dec := &toneDecoder{pitches: map[string]float64{
		"intro.wav": 440, "intro-take2.wav": 440,
		"outro.wav": 1500, "outro-take2.wav": 1500,
	}}
	eng, root := setupEngine(t, dec)
	first := makeSession(t, root, "2024-01-10", "intro.wav", "outro.wav")
	second := makeSession(t, root, "2024-01-17", "intro-take2.wav", "outro-take2.wav")

	for _, dir := range []string{first, second} {
		if sum := generate(t, eng, dir); sum.Status.String() != "completed" || sum.Processed != 2 {
			t.Fatalf("Unexpected generation summary for %s: %+v", dir, sum)
		}
	}
	if err := eng.SetProvidedName(first, "intro.wav", "Intro"); err != nil {
		t.Fatalf("SetProvidedName failed: %v", err)
	}

	got, err := eng.FindMatch(context.Background(), MatchQuery{Folder: second, Filename: "intro-take2.wav"})
	if err != nil {
		t.Fatalf("FindMatch failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected a match")
	}
	if got.Filename != "intro.wav" || got.SourceFolder != first || got.ProvidedName != "Intro" {
		t.Errorf("Unexpected match: %+v", got)
	}
	if got.RawSimilarity < 0.99 {
		t.Errorf("Expected near-identical similarity, got %f", got.RawSimilarity)
	}

	batch, err := eng.MatchFolder(context.Background(), MatchQuery{Folder: second, Algorithm: fingerprint.Lightweight})
	if err != nil {
		t.Fatalf("MatchFolder failed: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("Expected both files matched, got %v", batch)
	}
	if batch["outro-take2.wav"].Filename != "outro.wav" {
		t.Errorf("Expected outro-take2.wav to match outro.wav, got %+v", batch["outro-take2.wav"])
	}
	if batch["outro-take2.wav"].ProvidedName != "outro" {
		t.Errorf("Expected stem fallback name, got %q", batch["outro-take2.wav"].ProvidedName)
	}
}

func TestFindMatchNeverMatchesOwnFolder(t *testing.T) {
	eng, root := setupEngine(t, &toneDecoder{})
	only := makeSession(t, root, "solo", "a.wav", "b.wav")
	generate(t, eng, only)

	got, err := eng.FindMatch(context.Background(), MatchQuery{Folder: only, Filename: "a.wav"})
	if err != nil {
		t.Fatalf("FindMatch failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected no match without other folders, got %+v", got)
	}
}

func TestFindMatchRequiresFingerprint(t *testing.T) {
	eng, root := setupEngine(t, &toneDecoder{})
	dir := makeSession(t, root, "s", "a.wav")

	_, err := eng.FindMatch(context.Background(), MatchQuery{Folder: dir, Filename: "a.wav"})
	if !errors.Is(err, ErrNotFingerprinted) {
		t.Errorf("Expected ErrNotFingerprinted, got %v", err)
	}
}

func TestGenerateRejectsConcurrentRequest(t *testing.T) {
	dec := &toneDecoder{block: make(chan struct{})}
	eng, root := setupEngine(t, dec)
	dir := makeSession(t, root, "s", "a.wav")

	task, err := eng.Generate(context.Background(), GenerateRequest{Folder: dir, Algorithms: []Algorithm{fingerprint.Spectral}})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, err := eng.Generate(context.Background(), GenerateRequest{Folder: dir}); !errors.Is(err, ErrGenerationInProgress) {
		t.Errorf("Expected ErrGenerationInProgress, got %v", err)
	}
	if eng.CurrentTask() != task {
		t.Error("Expected CurrentTask to be the running task")
	}
	close(dec.block)
	task.Wait(context.Background())
}

func TestGlobalReferenceFolderOutranksCloserMatch(t *testing.T) {
	dec := &toneDecoder{pitches: map[string]float64{
		"song.wav":       440,
		"other-song.wav": 440,
		"ref-song.wav":   470,
	}}
	root := t.TempDir()
	ref := makeSession(t, root, "reference", "ref-song.wav")
	other := makeSession(t, root, "other", "other-song.wav")
	query := makeSession(t, root, "query", "song.wav")

	eng, err := NewEngine(
		WithLogger(logger.Discard()),
		WithDecoder(dec),
		WithAnnotationsDBPath(filepath.Join(t.TempDir(), "notes.sqlite3")),
		WithLibraryRoots(root),
		WithGlobalReferenceFolder(ref),
	)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer eng.Close()

	for _, dir := range []string{other, ref, query} {
		generate(t, eng, dir)
	}

	got, err := eng.FindMatch(context.Background(), MatchQuery{Folder: query, Filename: "song.wav"})
	if err != nil || got == nil {
		t.Fatalf("Expected a match, got %v, %v", got, err)
	}
	if got.Filename != "ref-song.wav" || got.SourceFolder != ref {
		t.Errorf("Expected the global reference take to win, got %+v", got)
	}
	if got.RawSimilarity > 1 {
		t.Errorf("Raw similarity must not include the boost, got %f", got.RawSimilarity)
	}
}

func TestDiscoverFolders(t *testing.T) {
	eng, root := setupEngine(t, &toneDecoder{})
	a := makeSession(t, root, "a", "x.wav")
	nested := makeSession(t, root, filepath.Join("year", "b"), "y.wav")
	makeSession(t, root, "empty", "z.wav")
	hidden := makeSession(t, root, ".trash", "w.wav")

	for _, dir := range []string{a, nested, hidden} {
		if _, err := eng.ToggleReferenceFolder(dir); err != nil {
			t.Fatal(err)
		}
	}

	got, err := eng.DiscoverFolders()
	if err != nil {
		t.Fatalf("DiscoverFolders failed: %v", err)
	}
	if len(got) != 2 || got[0] != a || got[1] != nested {
		t.Errorf("Expected [%s %s], got %v", a, nested, got)
	}
}

func TestFolderInfo(t *testing.T) {
	eng, root := setupEngine(t, &toneDecoder{})
	dir := makeSession(t, root, "s", "a.wav", "b.wav")
	generate(t, eng, dir)

	if on, _ := eng.ToggleExclusion(dir, "b.wav"); !on {
		t.Fatal("Expected b.wav excluded")
	}
	if on, _ := eng.ToggleIgnoreFolder(dir); !on {
		t.Fatal("Expected folder ignored")
	}
	if err := eng.SetReferenceSong(dir, "a.wav", true); err != nil {
		t.Fatal(err)
	}
	if err := eng.SetProvidedName(dir, "b.wav", "Bridge"); err != nil {
		t.Fatal(err)
	}

	info := eng.Folder(dir)
	if !info.IgnoreFingerprints || info.IsReferenceFolder {
		t.Errorf("Unexpected folder flags: %+v", info)
	}
	if len(info.Files) != 2 || len(info.Excluded) != 1 || info.Excluded[0] != "b.wav" {
		t.Fatalf("Unexpected files: %+v", info)
	}
	a := info.Files[0]
	if a.Filename != "a.wav" || !a.ReferenceSong || len(a.Algorithms) != 2 || a.DurationMs != 1000 {
		t.Errorf("Unexpected info for a.wav: %+v", a)
	}
	if a.ProvidedName != "" {
		t.Errorf("Expected no name for a.wav, got %q", a.ProvidedName)
	}
	b := info.Files[1]
	if b.ProvidedName != "Bridge" || b.ReferenceSong {
		t.Errorf("Unexpected annotations for b.wav: %+v", b)
	}
	if !eng.IsExcluded(dir, "b.wav") || !b.Excluded {
		t.Error("Expected b.wav reported as excluded")
	}
}

func TestExplicitZeroThreshold(t *testing.T) {
	eng, root := setupEngine(t, &toneDecoder{})
	dir := makeSession(t, root, "s", "a.wav")
	generate(t, eng, dir)

	entry, _ := eng.repo.Load(dir).Entry("a.wav")
	stored, _ := entry.Vector(fingerprint.Spectral)
	silent := make(Vector, len(stored))
	q := MatchQuery{Folder: filepath.Join(root, "elsewhere"), Algorithm: fingerprint.Spectral}

	res, err := eng.FindMatchVector(context.Background(), silent, q)
	if err != nil {
		t.Fatalf("FindMatchVector failed: %v", err)
	}
	if res != nil {
		t.Errorf("Expected no match at the configured threshold, got %+v", res)
	}

	zero := 0.0
	q.Threshold = &zero
	res, err = eng.FindMatchVector(context.Background(), silent, q)
	if err != nil {
		t.Fatalf("FindMatchVector failed: %v", err)
	}
	if res == nil || res.Filename != "a.wav" || res.RawSimilarity != 0 {
		t.Errorf("Expected a.wav at similarity 0, got %+v", res)
	}

	bad := -0.1
	q.Threshold = &bad
	if _, err := eng.FindMatchVector(context.Background(), silent, q); !errors.Is(err, ErrInvalidThreshold) {
		t.Errorf("Expected ErrInvalidThreshold, got %v", err)
	}
}
