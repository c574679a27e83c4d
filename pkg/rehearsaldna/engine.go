package rehearsaldna

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/himanishpuri/RehearsalDNA/internal/annotations"
	"github.com/himanishpuri/RehearsalDNA/internal/audio"
	"github.com/himanishpuri/RehearsalDNA/internal/fingerprint"
	"github.com/himanishpuri/RehearsalDNA/internal/generator"
	"github.com/himanishpuri/RehearsalDNA/internal/matcher"
	"github.com/himanishpuri/RehearsalDNA/internal/store"
	"github.com/himanishpuri/RehearsalDNA/pkg/logger"
	"github.com/himanishpuri/RehearsalDNA/pkg/utils"
)

// Engine fingerprints folders of recordings and matches files across them.
type Engine struct {
	cfg       Config
	log       Logger
	repo      *store.Repository
	notes     Annotations
	ownsNotes bool
	decoder   SampleSource
	extractor *fingerprint.Extractor
	collector *matcher.Collector
	matcher   *matcher.Matcher
	generator *generator.Generator
}

func NewEngine(opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if !cfg.Algorithm.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, cfg.Algorithm)
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, cfg.Threshold)
	}
	cfg.GlobalReferenceFolder = utils.CleanFolder(cfg.GlobalReferenceFolder)

	notes, owns := cfg.Annotations, false
	if notes == nil {
		db, err := annotations.NewDBClientWithPath(cfg.AnnotationsDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open annotations: %w", err)
		}
		notes, owns = db, true
	}

	decoder := cfg.Decoder
	if decoder == nil {
		decoder = audio.NewFileDecoder(audio.DecoderConfig{
			TempDir:    cfg.TempDir,
			SampleRate: cfg.SampleRate,
			Logger:     cfg.Logger,
		})
	}

	log := cfg.Logger
	repo := store.NewRepository(cfg.StoreFileName, log)
	extractor := fingerprint.NewExtractor(log)

	return &Engine{
		cfg:       *cfg,
		log:       log,
		repo:      repo,
		notes:     notes,
		ownsNotes: owns,
		decoder:   decoder,
		extractor: extractor,
		collector: matcher.NewCollector(repo, notes, log),
		matcher:   matcher.New(log),
		generator: generator.New(repo, decoder, extractor, log),
	}, nil
}

// Config returns a copy of the engine's settings.
func (e *Engine) Config() Config { return e.cfg }

// Generate starts fingerprinting req.Folder in the background. Only one
// generation runs per engine; a second call while one is running fails with
// ErrGenerationInProgress. Cancelling ctx cancels the task.
func (e *Engine) Generate(ctx context.Context, req GenerateRequest) (*Task, error) {
	if req.Folder == "" {
		return nil, errors.New("generate: folder is required")
	}
	req.Folder = utils.CleanFolder(req.Folder)
	return e.generator.Start(ctx, req)
}

// CurrentTask returns the running generation task, or nil.
func (e *Engine) CurrentTask() *Task {
	return e.generator.Current()
}

func (e *Engine) resolve(q MatchQuery) (Algorithm, float64, error) {
	algo := q.Algorithm
	if algo == "" {
		algo = e.cfg.Algorithm
	}
	if !algo.Valid() {
		return "", 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algo)
	}
	threshold := e.cfg.Threshold
	if q.Threshold != nil {
		threshold = *q.Threshold
	}
	if threshold < 0 || threshold > 1 {
		return "", 0, fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}
	return algo, threshold, nil
}

// FindMatch looks up the stored fingerprint of q.Filename in q.Folder and
// returns its best match in the other folders, or nil when none qualifies.
func (e *Engine) FindMatch(ctx context.Context, q MatchQuery) (*MatchResult, error) {
	algo, _, err := e.resolve(q)
	if err != nil {
		return nil, err
	}
	entry, _ := e.repo.Load(q.Folder).Entry(q.Filename)
	vec, ok := entry.Vector(algo)
	if !ok {
		return nil, fmt.Errorf("%w: %s (%s)", ErrNotFingerprinted, q.Filename, algo)
	}
	return e.FindMatchVector(ctx, vec, q)
}

// FindMatchVector matches an already computed vector. q.Filename is unused.
func (e *Engine) FindMatchVector(ctx context.Context, vec Vector, q MatchQuery) (*MatchResult, error) {
	algo, threshold, err := e.resolve(q)
	if err != nil {
		return nil, err
	}
	index, err := e.collect(ctx, q, algo)
	if err != nil {
		return nil, err
	}
	return e.matcher.FindBestMatch(vec, index, threshold), nil
}

// MatchFile decodes a loose audio file and matches it. When q.Folder is
// empty the file's own directory is excluded from the search.
func (e *Engine) MatchFile(ctx context.Context, path string, q MatchQuery) (*MatchResult, error) {
	algo, _, err := e.resolve(q)
	if err != nil {
		return nil, err
	}
	vec, err := e.FingerprintFile(ctx, path, algo)
	if err != nil {
		return nil, err
	}
	if q.Folder == "" {
		q.Folder = filepath.Dir(path)
	}
	q.Algorithm = algo
	return e.FindMatchVector(ctx, vec, q)
}

// MatchFolder matches every fingerprinted, non-excluded file of q.Folder.
// The other folders are read once for the whole batch. Files without a
// qualifying match are absent from the result.
func (e *Engine) MatchFolder(ctx context.Context, q MatchQuery) (map[string]*MatchResult, error) {
	algo, threshold, err := e.resolve(q)
	if err != nil {
		return nil, err
	}
	index, err := e.collect(ctx, q, algo)
	if err != nil {
		return nil, err
	}

	s := e.repo.Load(q.Folder)
	results := make(map[string]*MatchResult)
	for _, name := range s.Filenames() {
		if s.IsExcluded(name) {
			continue
		}
		vec, ok := s.Files[name].Vector(algo)
		if !ok {
			continue
		}
		if m := e.matcher.FindBestMatch(vec, index, threshold); m != nil {
			results[name] = m
		}
	}
	e.log.Infof("Matched %d of %d files in %s", len(results), len(s.Files), q.Folder)
	return results, nil
}

func (e *Engine) collect(ctx context.Context, q MatchQuery, algo Algorithm) (matcher.Index, error) {
	folders := append([]string(nil), q.Candidates...)
	if len(folders) == 0 {
		discovered, err := e.DiscoverFolders()
		if err != nil {
			return nil, err
		}
		folders = discovered
	}
	if e.cfg.GlobalReferenceFolder != "" {
		folders = append(folders, e.cfg.GlobalReferenceFolder)
	}
	return e.collector.Collect(ctx, folders, algo, q.Folder, e.cfg.GlobalReferenceFolder)
}

// FingerprintFile decodes path and computes one algorithm's vector.
func (e *Engine) FingerprintFile(ctx context.Context, path string, algo Algorithm) (Vector, error) {
	samples, err := e.decoder.Decode(ctx, path)
	if err != nil {
		return nil, err
	}
	return e.extractor.Compute(algo, samples.Mono, samples.SampleRate)
}

// DiscoverFolders returns every folder under the library roots that holds a
// fingerprint store, sorted. Hidden directories are not descended into.
func (e *Engine) DiscoverFolders() ([]string, error) {
	seen := make(map[string]bool)
	for _, root := range e.cfg.LibraryRoots {
		root = utils.CleanFolder(root)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root {
					return err
				}
				e.log.Debugf("Skipping unreadable %s: %v", path, err)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			if e.repo.Exists(path) {
				seen[path] = true
			}
			return nil
		})
		if err != nil {
			e.log.Warnf("Library root %s could not be scanned: %v", root, err)
		}
	}

	folders := make([]string, 0, len(seen))
	for f := range seen {
		folders = append(folders, f)
	}
	sort.Strings(folders)
	return folders, nil
}

func (e *Engine) ToggleExclusion(folder, filename string) (bool, error) {
	return e.repo.ToggleExclusion(folder, filename)
}

func (e *Engine) ToggleReferenceFolder(folder string) (bool, error) {
	return e.repo.ToggleReferenceFolder(folder)
}

func (e *Engine) ToggleIgnoreFolder(folder string) (bool, error) {
	return e.repo.ToggleIgnoreFolder(folder)
}

func (e *Engine) IsExcluded(folder, filename string) bool {
	return e.repo.IsExcluded(folder, filename)
}

func (e *Engine) SetProvidedName(folder, filename, name string) error {
	return e.notes.SetProvidedName(folder, filename, name)
}

func (e *Engine) SetReferenceSong(folder, filename string, on bool) error {
	return e.notes.SetReferenceSong(folder, filename, on)
}

// Folder summarises a folder's Store together with its annotations.
func (e *Engine) Folder(folder string) *FolderInfo {
	folder = utils.CleanFolder(folder)
	s := e.repo.Load(folder)
	notes := make(map[string]Annotation)
	if list, err := e.notes.ListFolder(folder); err == nil {
		for _, a := range list {
			notes[a.Filename] = a
		}
	} else {
		e.log.Debugf("No annotations for %s: %v", folder, err)
	}

	info := &FolderInfo{
		Folder:             folder,
		IsReferenceFolder:  s.IsReferenceFolder,
		IgnoreFingerprints: s.IgnoreFingerprints,
		IsGlobalReference:  folder == e.cfg.GlobalReferenceFolder,
		Files:              make([]FileInfo, 0, len(s.Files)),
		Excluded:           make([]string, 0, len(s.ExcludedFiles)),
	}

	for _, name := range s.Filenames() {
		entry := s.Files[name]
		fi := FileInfo{
			Filename:   name,
			DurationMs: entry.DurationMs,
			Size:       entry.Size,
			Excluded:   s.IsExcluded(name),
		}
		for _, a := range entry.Stored() {
			fi.Algorithms = append(fi.Algorithms, a.String())
		}
		if a, ok := notes[name]; ok {
			fi.ProvidedName, fi.ReferenceSong = a.ProvidedName, a.IsReferenceSong
		}
		info.Files = append(info.Files, fi)
	}
	for name := range s.ExcludedFiles {
		info.Excluded = append(info.Excluded, name)
	}
	sort.Strings(info.Excluded)
	return info
}

// Close releases the annotation database when the engine opened it.
func (e *Engine) Close() error {
	if e.ownsNotes {
		return e.notes.Close()
	}
	return nil
}
