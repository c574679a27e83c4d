package models

// Signature is the cheap change-detection pair recorded for every audio file.
type Signature struct {
	Size    int64 // bytes
	ModTime int64 // unix seconds
}

// MatchCandidate is one stored fingerprint offered to the matcher, tagged with
// where it came from. Built per query batch, never persisted.
type MatchCandidate struct {
	Fingerprint             []float64
	SourceFolder            string
	ProvidedName            string
	IsGlobalReferenceFolder bool
	IsPerFolderReference    bool
	IsReferenceSong         bool
}

// HasReference reports whether any reference provenance flag is set.
func (c MatchCandidate) HasReference() bool {
	return c.IsGlobalReferenceFolder || c.IsPerFolderReference || c.IsReferenceSong
}

// MatchResult is the winning candidate for a query. RawSimilarity is the
// unweighted cosine score even though boosts influenced the selection.
type MatchResult struct {
	Filename      string  `json:"filename"`
	RawSimilarity float64 `json:"raw_similarity"`
	SourceFolder  string  `json:"source_folder"`
	ProvidedName  string  `json:"provided_name"`
}
