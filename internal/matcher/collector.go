package matcher

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/RehearsalDNA/internal/fingerprint"
	"github.com/himanishpuri/RehearsalDNA/internal/store"
	"github.com/himanishpuri/RehearsalDNA/pkg/models"
	"github.com/himanishpuri/RehearsalDNA/pkg/utils"
)

// Index groups candidates by filename. The same logical song recorded in
// several sessions shows up as several candidates under one key.
type Index map[string][]models.MatchCandidate

// Len returns the total number of candidates.
func (ix Index) Len() int {
	n := 0
	for _, c := range ix {
		n += len(c)
	}
	return n
}

// Annotations looks up per-file user metadata. Both lookups are best-effort.
type Annotations interface {
	ProvidedName(folder, filename string) (string, error)
	IsReferenceSong(folder, filename string) (bool, error)
}

type Collector struct {
	repo    *store.Repository
	notes   Annotations
	log     Logger
	workers int
}

// NewCollector builds a Collector. notes may be nil, in which case names fall
// back to the filename stem and no file is a reference song.
func NewCollector(repo *store.Repository, notes Annotations, log Logger) *Collector {
	return &Collector{
		repo:    repo,
		notes:   notes,
		log:     log,
		workers: runtime.NumCPU(),
	}
}

type folderCandidate struct {
	filename  string
	candidate models.MatchCandidate
}

// Collect reads the Store of every folder and builds the candidate Index for
// algo. Folders flagged to ignore fingerprints and excludeFolder are skipped,
// as are excluded files and entries without a vector for algo. Folders are
// read concurrently; the result does not depend on scheduling.
func (c *Collector) Collect(ctx context.Context, folders []string, algo fingerprint.Algorithm, excludeFolder, globalReference string) (Index, error) {
	excludeFolder = utils.CleanFolder(excludeFolder)
	globalReference = utils.CleanFolder(globalReference)

	unique := make([]string, 0, len(folders))
	seen := make(map[string]bool, len(folders))
	for _, f := range folders {
		clean := utils.CleanFolder(f)
		if clean == "" || seen[clean] || clean == excludeFolder {
			continue
		}
		seen[clean] = true
		unique = append(unique, clean)
	}

	perFolder := make([][]folderCandidate, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, folder := range unique {
		i, folder := i, folder
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perFolder[i] = c.collectFolder(folder, algo, folder == globalReference)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	index := make(Index)
	for _, cands := range perFolder {
		for _, fc := range cands {
			index[fc.filename] = append(index[fc.filename], fc.candidate)
		}
	}
	c.debugf("Collected %d %s candidates under %d filenames from %d folders", index.Len(), algo, len(index), len(unique))
	return index, nil
}

func (c *Collector) collectFolder(folder string, algo fingerprint.Algorithm, isGlobalReference bool) []folderCandidate {
	s := c.repo.Load(folder)
	if s.IgnoreFingerprints {
		c.debugf("Skipping ignored folder %s", folder)
		return nil
	}

	var out []folderCandidate
	for _, name := range s.Filenames() {
		if s.IsExcluded(name) {
			continue
		}
		vec, ok := s.Files[name].Vector(algo)
		if !ok {
			continue
		}
		out = append(out, folderCandidate{
			filename: name,
			candidate: models.MatchCandidate{
				Fingerprint:             vec,
				SourceFolder:            folder,
				ProvidedName:            c.providedName(folder, name),
				IsGlobalReferenceFolder: isGlobalReference,
				IsPerFolderReference:    s.IsReferenceFolder,
				IsReferenceSong:         c.isReferenceSong(folder, name),
			},
		})
	}
	return out
}

func (c *Collector) providedName(folder, filename string) string {
	if c.notes != nil {
		name, err := c.notes.ProvidedName(folder, filename)
		if err != nil {
			c.debugf("Name lookup failed for %s in %s: %v", filename, folder, err)
		} else if name != "" {
			return name
		}
	}
	return utils.Stem(filename)
}

func (c *Collector) isReferenceSong(folder, filename string) bool {
	if c.notes == nil {
		return false
	}
	ref, err := c.notes.IsReferenceSong(folder, filename)
	if err != nil {
		c.debugf("Reference song lookup failed for %s in %s: %v", filename, folder, err)
		return false
	}
	return ref
}

func (c *Collector) debugf(format string, args ...any) {
	if c.log != nil {
		c.log.Debugf(format, args...)
	}
}
