package matcher

import (
	"sort"

	"github.com/himanishpuri/RehearsalDNA/internal/fingerprint"
	"github.com/himanishpuri/RehearsalDNA/pkg/models"
)

// Provenance boosts. Only the largest applicable one is added.
const (
	GlobalReferenceBoost = 0.15
	FolderReferenceBoost = 0.10
	ReferenceSongBoost   = 0.10
)

// DefaultThreshold is the minimum weighted score a match must reach.
const DefaultThreshold = 0.70

// Logger is the subset of pkg/logger used here.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// Scored is the best candidate kept for one filename.
type Scored struct {
	Filename    string
	Candidate   models.MatchCandidate
	Raw         float64
	Weighted    float64
	FolderCount int // distinct folders the filename was collected from
}

// Result converts s to the public match shape, carrying the raw score.
func (s Scored) Result() *models.MatchResult {
	return &models.MatchResult{
		Filename:      s.Filename,
		RawSimilarity: s.Raw,
		SourceFolder:  s.Candidate.SourceFolder,
		ProvidedName:  s.Candidate.ProvidedName,
	}
}

// Matcher scores query vectors against an Index. It performs no I/O.
type Matcher struct {
	log Logger
}

func New(log Logger) *Matcher {
	return &Matcher{log: log}
}

// Boost returns the single largest provenance boost for c.
func Boost(c models.MatchCandidate) float64 {
	boost := 0.0
	if c.IsGlobalReferenceFolder {
		boost = max(boost, GlobalReferenceBoost)
	}
	if c.IsPerFolderReference {
		boost = max(boost, FolderReferenceBoost)
	}
	if c.IsReferenceSong {
		boost = max(boost, ReferenceSongBoost)
	}
	return boost
}

// Weighted applies the provenance boost to raw, capped at 1.
func Weighted(raw float64, c models.MatchCandidate) float64 {
	return min(1.0, raw+Boost(c))
}

// Rank returns every filename whose best weighted score reaches threshold,
// best first. Order: any reference provenance, then filenames seen in a
// single folder, then weighted score, then filename.
func (m *Matcher) Rank(query []float64, index Index, threshold float64) []Scored {
	if len(query) == 0 || len(index) == 0 {
		return nil
	}

	ranked := make([]Scored, 0, len(index))
	for filename, cands := range index {
		best, ok := m.bestCandidate(query, filename, cands)
		if !ok || best.Weighted < threshold {
			continue
		}
		ranked = append(ranked, best)
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if ra, rb := a.Candidate.HasReference(), b.Candidate.HasReference(); ra != rb {
			return ra
		}
		if ua, ub := a.FolderCount == 1, b.FolderCount == 1; ua != ub {
			return ua
		}
		if a.Weighted != b.Weighted {
			return a.Weighted > b.Weighted
		}
		return a.Filename < b.Filename
	})
	return ranked
}

// FindBestMatch returns the top ranked match, or nil when nothing reaches
// threshold.
func (m *Matcher) FindBestMatch(query []float64, index Index, threshold float64) *models.MatchResult {
	ranked := m.Rank(query, index, threshold)
	if len(ranked) == 0 {
		return nil
	}
	return ranked[0].Result()
}

// bestCandidate keeps the highest weighted candidate; the earliest wins ties.
func (m *Matcher) bestCandidate(query []float64, filename string, cands []models.MatchCandidate) (Scored, bool) {
	var best Scored
	found := false
	folders := make(map[string]struct{}, len(cands))

	for _, c := range cands {
		folders[c.SourceFolder] = struct{}{}
		if fingerprint.LengthMismatch(query, c.Fingerprint) {
			m.warnf("Length mismatch comparing %s in %s: query %d values, stored %d; algorithms may be mixed",
				filename, c.SourceFolder, len(query), len(c.Fingerprint))
		}
		raw := fingerprint.Similarity(query, c.Fingerprint)
		w := Weighted(raw, c)
		if !found || w > best.Weighted {
			best = Scored{Filename: filename, Candidate: c, Raw: raw, Weighted: w}
			found = true
		}
	}
	best.FolderCount = len(folders)
	return best, found
}

func (m *Matcher) warnf(format string, args ...any) {
	if m.log != nil {
		m.log.Warnf(format, args...)
	}
}
