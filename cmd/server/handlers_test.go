package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/himanishpuri/RehearsalDNA/internal/audio"
	"github.com/himanishpuri/RehearsalDNA/pkg/logger"
	"github.com/himanishpuri/RehearsalDNA/pkg/rehearsaldna"
)

type sineDecoder struct {
	gate chan struct{}
}

func (d *sineDecoder) Decode(ctx context.Context, path string) (*audio.Samples, error) {
	if d.gate != nil {
		<-d.gate
	}
	mono := make([]float64, 8000)
	for i := range mono {
		mono[i] = math.Sin(2 * math.Pi * 440 * float64(i) / 8000)
	}
	return &audio.Samples{Mono: mono, SampleRate: 8000}, nil
}

func setupServer(t *testing.T, dec *sineDecoder) (http.Handler, string) {
	t.Helper()
	root := t.TempDir()
	eng, err := rehearsaldna.NewEngine(
		rehearsaldna.WithLogger(logger.Discard()),
		rehearsaldna.WithDecoder(dec),
		rehearsaldna.WithAnnotationsDBPath(filepath.Join(t.TempDir(), "notes.sqlite3")),
		rehearsaldna.WithLibraryRoots(root),
	)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	t.Cleanup(func() { eng.Close() })

	srv := NewServer(eng, &ServerConfig{AllowedOrigins: []string{"*"}})
	srv.log = logger.Discard()
	return srv.setupRoutes(), root
}

func makeFolder(t *testing.T, root, name string, files ...string) string {
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

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func waitForTask(t *testing.T, h http.Handler) TaskDTO {
	t.Helper()
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		var dto TaskDTO
		rec := doJSON(t, h, http.MethodGet, "/api/generate", nil)
		if err := json.NewDecoder(rec.Body).Decode(&dto); err != nil {
			t.Fatalf("Failed to decode task: %v", err)
		}
		if dto.Status != "running" {
			return dto
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Task did not finish in time")
	return TaskDTO{}
}

func TestHealth(t *testing.T) {
	h, _ := setupServer(t, &sineDecoder{})
	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestGenerateThenMatch(t *testing.T) {
	h, root := setupServer(t, &sineDecoder{})
	a := makeFolder(t, root, "a", "song.wav")
	b := makeFolder(t, root, "b", "take.wav")

	for _, dir := range []string{a, b} {
		rec := doJSON(t, h, http.MethodPost, "/api/generate", GenerateRequest{Folder: dir, Algorithms: []string{"spectral"}})
		if rec.Code != http.StatusAccepted {
			t.Fatalf("Expected 202, got %d: %s", rec.Code, rec.Body.String())
		}
		if dto := waitForTask(t, h); dto.Status != "completed" || dto.Processed != 1 {
			t.Fatalf("Unexpected task result: %+v", dto)
		}
	}

	rec := doJSON(t, h, http.MethodPost, "/api/annotations/name", NameRequest{
		FolderFileRequest: FolderFileRequest{Folder: a, Filename: "song.wav"},
		Name:              "Opener",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 setting name, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/match", MatchRequest{Folder: b, Filename: "take.wav"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp MatchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Match == nil || resp.Match.Filename != "song.wav" || resp.Match.ProvidedName != "Opener" {
		t.Errorf("Unexpected match: %+v", resp.Match)
	}
}

func TestMatchUnknownFileIs404(t *testing.T) {
	h, root := setupServer(t, &sineDecoder{})
	dir := makeFolder(t, root, "a")

	rec := doJSON(t, h, http.MethodPost, "/api/match", MatchRequest{Folder: dir, Filename: "nope.wav"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestMatchVectorValidation(t *testing.T) {
	h, _ := setupServer(t, &sineDecoder{})

	rec := doJSON(t, h, http.MethodPost, "/api/match/vector", MatchRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty vector, got %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodPost, "/api/match/vector", MatchRequest{Vector: []float64{1}, Algorithm: "mfcc"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown algorithm, got %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodPost, "/api/match/vector", MatchRequest{Vector: []float64{1, 0}})
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with no match, got %d", rec.Code)
	}
}

func TestSecondGenerateConflicts(t *testing.T) {
	dec := &sineDecoder{gate: make(chan struct{})}
	h, root := setupServer(t, dec)
	dir := makeFolder(t, root, "a", "one.wav")

	if rec := doJSON(t, h, http.MethodPost, "/api/generate", GenerateRequest{Folder: dir}); rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodPost, "/api/generate", GenerateRequest{Folder: dir}); rec.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", rec.Code)
	}

	if rec := doJSON(t, h, http.MethodDelete, "/api/generate", nil); rec.Code != http.StatusAccepted {
		t.Errorf("Expected 202 on cancel, got %d", rec.Code)
	}
	close(dec.gate)
	if dto := waitForTask(t, h); dto.Status != "completed" && dto.Status != "cancelled" {
		t.Errorf("Unexpected final status %q", dto.Status)
	}
}

func TestToggles(t *testing.T) {
	h, root := setupServer(t, &sineDecoder{})
	dir := makeFolder(t, root, "a")

	var resp ToggleResponse
	rec := doJSON(t, h, http.MethodPost, "/api/folder/reference", FolderRequest{Folder: dir})
	json.NewDecoder(rec.Body).Decode(&resp)
	if rec.Code != http.StatusOK || !resp.State {
		t.Errorf("Expected reference flag on, got %d %+v", rec.Code, resp)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/folder/exclude", FolderFileRequest{Folder: dir})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without filename, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/folder/ignore", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/folders", nil)
	var folders FoldersResponse
	json.NewDecoder(rec.Body).Decode(&folders)
	if folders.Count != 1 || folders.Folders[0] != dir {
		t.Errorf("Expected %s discovered, got %+v", dir, folders)
	}
}
