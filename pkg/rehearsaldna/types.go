package rehearsaldna

import (
	"errors"

	"github.com/himanishpuri/RehearsalDNA/internal/annotations"
	"github.com/himanishpuri/RehearsalDNA/internal/audio"
	"github.com/himanishpuri/RehearsalDNA/internal/fingerprint"
	"github.com/himanishpuri/RehearsalDNA/internal/generator"
	"github.com/himanishpuri/RehearsalDNA/pkg/models"
)

type (
	Algorithm       = fingerprint.Algorithm
	Vector          = fingerprint.Vector
	Task            = generator.Task
	TaskStatus      = generator.Status
	Event           = generator.Event
	Summary         = generator.Summary
	GenerateRequest = generator.Request
	Policy          = generator.Policy
	MatchResult     = models.MatchResult
	Annotation      = annotations.Annotation
)

const (
	AllAlgorithms     = generator.AllAlgorithms
	MissingAlgorithms = generator.MissingAlgorithms
)

var (
	ErrGenerationInProgress = generator.ErrGenerationInProgress
	ErrUnknownAlgorithm     = fingerprint.ErrUnknownAlgorithm
	ErrNoSamples            = audio.ErrNoSamples
	ErrUnsupportedFormat    = audio.ErrUnsupportedFormat

	ErrNotFingerprinted = errors.New("file has no fingerprint for this algorithm")
	ErrInvalidThreshold = errors.New("threshold must be between 0 and 1")
)

// MatchQuery selects what to match and against which folders. An empty
// Algorithm or nil Threshold falls back to the engine's configuration.
type MatchQuery struct {
	Folder    string // folder of the query; never matched against itself
	Filename  string
	Algorithm Algorithm
	Threshold *float64
	// Candidates are the folders to search. Empty means every folder found
	// under the library roots, plus the global reference folder.
	Candidates []string
}

// FileInfo describes one cached file of a folder.
type FileInfo struct {
	Filename      string   `json:"filename"`
	Algorithms    []string `json:"algorithms"`
	DurationMs    int64    `json:"duration_ms"`
	Size          int64    `json:"size"`
	Excluded      bool     `json:"excluded"`
	ProvidedName  string   `json:"provided_name,omitempty"`
	ReferenceSong bool     `json:"reference_song"`
}

// FolderInfo is a read-only view of a folder's Store and annotations.
type FolderInfo struct {
	Folder             string     `json:"folder"`
	IsReferenceFolder  bool       `json:"is_reference_folder"`
	IgnoreFingerprints bool       `json:"ignore_fingerprints"`
	IsGlobalReference  bool       `json:"is_global_reference"`
	Files              []FileInfo `json:"files"`
	Excluded           []string   `json:"excluded_files"`
}
