package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/himanishpuri/RehearsalDNA/internal/audio"
	"github.com/himanishpuri/RehearsalDNA/internal/fingerprint"
	"github.com/himanishpuri/RehearsalDNA/internal/store"
	"github.com/himanishpuri/RehearsalDNA/pkg/models"
	"github.com/himanishpuri/RehearsalDNA/pkg/utils"
)

// ErrGenerationInProgress is returned when a task is already running.
var ErrGenerationInProgress = errors.New("fingerprint generation already in progress")

// Policy selects which algorithms are computed for a file that needs work.
type Policy int

const (
	// AllAlgorithms recomputes every requested algorithm.
	AllAlgorithms Policy = iota
	// MissingAlgorithms computes only requested algorithms with no stored
	// vector. A stale file still gets every requested algorithm.
	MissingAlgorithms
)

// Request describes one generation run over a folder.
type Request struct {
	Folder string
	// Files are names inside Folder, processed in order. Empty means every
	// audio file in Folder.
	Files []string
	// Algorithms to make sure exist. Empty means all of them.
	Algorithms []fingerprint.Algorithm
	Policy     Policy
	Force      bool
}

type Decoder interface {
	Decode(ctx context.Context, path string) (*audio.Samples, error)
}

// Logger is the subset of pkg/logger used here.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

// Generator runs at most one Task at a time.
type Generator struct {
	repo      *store.Repository
	decoder   Decoder
	extractor *fingerprint.Extractor
	log       Logger

	mu      sync.Mutex
	current *Task
}

func New(repo *store.Repository, decoder Decoder, extractor *fingerprint.Extractor, log Logger) *Generator {
	return &Generator{repo: repo, decoder: decoder, extractor: extractor, log: log}
}

// Current returns the running task, or nil.
func (g *Generator) Current() *Task {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current != nil && g.current.Status().Done() {
		return nil
	}
	return g.current
}

// Start validates req and launches a Task in the background. Cancelling ctx
// cancels the task. A second Start while a task runs returns
// ErrGenerationInProgress.
func (g *Generator) Start(ctx context.Context, req Request) (*Task, error) {
	algos := req.Algorithms
	if len(algos) == 0 {
		algos = fingerprint.Algorithms()
	}
	for _, a := range algos {
		if !a.Valid() {
			return nil, fmt.Errorf("%w: %q", fingerprint.ErrUnknownAlgorithm, a)
		}
	}
	req.Algorithms = algos

	files := req.Files
	if len(files) == 0 {
		listed, err := utils.ListAudioFiles(req.Folder)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", req.Folder, err)
		}
		files = listed
	}
	req.Files = files

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current != nil && !g.current.Status().Done() {
		return nil, ErrGenerationInProgress
	}

	taskCtx, cancel := context.WithCancel(ctx)
	task := newTask(req.Folder, len(files), cancel)
	g.current = task

	g.infof("Generation %s started: %d files in %s, algorithms %v", task.ID, len(files), req.Folder, algos)
	go g.run(taskCtx, task, req)
	return task, nil
}

type pendingEntry struct {
	sig        models.Signature
	durationMs int64
	vectors    map[fingerprint.Algorithm]fingerprint.Vector
}

func (g *Generator) run(ctx context.Context, task *Task, req Request) {
	snapshot := g.repo.Load(req.Folder)
	pending := make(map[string]pendingEntry)
	status := StatusCompleted

	for i, name := range req.Files {
		if ctx.Err() != nil {
			g.infof("Generation %s cancelled after %d of %d files", task.ID, i, len(req.Files))
			status = StatusCancelled
			break
		}
		idx := i + 1

		if snapshot.IsExcluded(name) {
			task.emit(Event{Kind: EventSkipped, Index: idx, Filename: name})
			continue
		}

		path := filepath.Join(req.Folder, name)
		sig, err := statSignature(path)
		if err != nil {
			g.warnf("Skipping %s: %v", path, err)
			task.emit(Event{Kind: EventFileFailed, Index: idx, Filename: name, Err: err})
			continue
		}

		need := needed(snapshot.Files[name], sig, req)
		if len(need) == 0 {
			task.emit(Event{Kind: EventSkipped, Index: idx, Filename: name})
			continue
		}

		entry, err := g.fingerprintFile(ctx, path, need)
		if err != nil {
			g.warnf("Failed to fingerprint %s: %v", path, err)
			task.emit(Event{Kind: EventFileFailed, Index: idx, Filename: name, Err: err})
			continue
		}
		entry.sig = sig
		pending[name] = entry
		g.debugf("Fingerprinted %s (%d/%d)", name, idx, len(req.Files))
		task.emit(Event{Kind: EventProgress, Index: idx, Filename: name})
	}

	var saveErr error
	if len(pending) > 0 {
		saveErr = g.repo.Update(req.Folder, func(s *store.Store) error {
			for name, p := range pending {
				e := s.EnsureEntry(name)
				e.Merge(p.vectors)
				e.Size, e.ModTime, e.DurationMs = p.sig.Size, p.sig.ModTime, p.durationMs
			}
			return nil
		})
	}
	if saveErr != nil {
		g.warnf("Generation %s could not save %s: %v", task.ID, req.Folder, saveErr)
		status = StatusFailed
	}

	g.infof("Generation %s %s: %d new, %d files", task.ID, status, len(pending), len(req.Files))
	task.finish(status, saveErr)
}

// needed returns the algorithms to compute for a file given its stored
// entry and live signature. A stale entry also recomputes every algorithm
// it already holds.
func needed(entry *store.FileEntry, sig models.Signature, req Request) []fingerprint.Algorithm {
	if entry.IsStale(sig) {
		return union(req.Algorithms, entry.Stored())
	}
	if req.Force {
		return req.Algorithms
	}
	missing := entry.Missing(req.Algorithms)
	if len(missing) == 0 {
		return nil
	}
	if req.Policy == MissingAlgorithms {
		return missing
	}
	return req.Algorithms
}

func union(a, b []fingerprint.Algorithm) []fingerprint.Algorithm {
	out := append([]fingerprint.Algorithm(nil), a...)
	for _, x := range b {
		if !slices.Contains(out, x) {
			out = append(out, x)
		}
	}
	return out
}

func (g *Generator) fingerprintFile(ctx context.Context, path string, algos []fingerprint.Algorithm) (pendingEntry, error) {
	// cancellation is only honoured between files
	samples, err := g.decoder.Decode(context.WithoutCancel(ctx), path)
	if err != nil {
		return pendingEntry{}, fmt.Errorf("decoding: %w", err)
	}
	vectors, err := g.extractor.ComputeAll(algos, samples.Mono, samples.SampleRate)
	if err != nil {
		return pendingEntry{}, err
	}
	return pendingEntry{durationMs: samples.DurationMs(), vectors: vectors}, nil
}

func statSignature(path string) (models.Signature, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.Signature{}, err
	}
	if info.IsDir() {
		return models.Signature{}, fmt.Errorf("%s is a directory", path)
	}
	return models.Signature{Size: info.Size(), ModTime: info.ModTime().Unix()}, nil
}

func (g *Generator) debugf(format string, args ...any) {
	if g.log != nil {
		g.log.Debugf(format, args...)
	}
}

func (g *Generator) infof(format string, args ...any) {
	if g.log != nil {
		g.log.Infof(format, args...)
	}
}

func (g *Generator) warnf(format string, args ...any) {
	if g.log != nil {
		g.log.Warnf(format, args...)
	}
}
