package main

import (
	"fmt"

	"github.com/himanishpuri/RehearsalDNA/internal/fingerprint"
	"github.com/himanishpuri/RehearsalDNA/pkg/rehearsaldna"
)

// MaxVectorLength bounds POST /api/match/vector bodies. No algorithm
// produces longer vectors.
const MaxVectorLength = 4096

// FolderFileRequest names one file of a folder.
type FolderFileRequest struct {
	Folder   string `json:"folder"`
	Filename string `json:"filename"`
}

func (r *FolderFileRequest) Validate() error {
	if r.Folder == "" || r.Filename == "" {
		return fmt.Errorf("folder and filename are required")
	}
	return nil
}

// FolderRequest names a folder.
type FolderRequest struct {
	Folder string `json:"folder"`
}

func (r *FolderRequest) Validate() error {
	if r.Folder == "" {
		return fmt.Errorf("folder is required")
	}
	return nil
}

// NameRequest is the body of POST /api/annotations/name.
type NameRequest struct {
	FolderFileRequest
	Name string `json:"name"`
}

// ReferenceSongRequest is the body of POST /api/annotations/refsong.
type ReferenceSongRequest struct {
	FolderFileRequest
	On bool `json:"on"`
}

// MatchRequest is the body of the match endpoints. Algorithm and threshold
// default to the server's configuration.
type MatchRequest struct {
	Folder     string    `json:"folder"`
	Filename   string    `json:"filename,omitempty"`
	Algorithm  string    `json:"algorithm,omitempty"`
	Threshold  *float64  `json:"threshold,omitempty"`
	Candidates []string  `json:"candidates,omitempty"`
	Vector     []float64 `json:"vector,omitempty"`
}

// Query converts the request into an engine query.
func (r *MatchRequest) Query() (rehearsaldna.MatchQuery, error) {
	q := rehearsaldna.MatchQuery{
		Folder:     r.Folder,
		Filename:   r.Filename,
		Threshold:  r.Threshold,
		Candidates: r.Candidates,
	}
	if r.Algorithm != "" {
		a, err := fingerprint.Parse(r.Algorithm)
		if err != nil {
			return q, err
		}
		q.Algorithm = a
	}
	if r.Threshold != nil && (*r.Threshold < 0 || *r.Threshold > 1) {
		return q, fmt.Errorf("threshold must be between 0 and 1")
	}
	return q, nil
}

// MatchResponse wraps a single match; Match is null when nothing qualifies.
type MatchResponse struct {
	Match *rehearsaldna.MatchResult `json:"match"`
}

// MatchFolderResponse is the response for POST /api/match/folder.
type MatchFolderResponse struct {
	Matches map[string]*rehearsaldna.MatchResult `json:"matches"`
	Count   int                                  `json:"count"`
}

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Folder     string   `json:"folder"`
	Files      []string `json:"files,omitempty"`
	Algorithms []string `json:"algorithms,omitempty"`
	Missing    bool     `json:"missing_only,omitempty"`
	Force      bool     `json:"force,omitempty"`
}

// EngineRequest validates r and converts it for the engine.
func (r *GenerateRequest) EngineRequest() (rehearsaldna.GenerateRequest, error) {
	req := rehearsaldna.GenerateRequest{Folder: r.Folder, Files: r.Files, Force: r.Force}
	if r.Folder == "" {
		return req, fmt.Errorf("folder is required")
	}
	for _, s := range r.Algorithms {
		a, err := fingerprint.Parse(s)
		if err != nil {
			return req, err
		}
		req.Algorithms = append(req.Algorithms, a)
	}
	if r.Missing {
		req.Policy = rehearsaldna.MissingAlgorithms
	}
	return req, nil
}

// FailedFileDTO is a file that could not be fingerprinted.
type FailedFileDTO struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// TaskDTO reports the state of a generation task.
type TaskDTO struct {
	ID        string          `json:"id"`
	Folder    string          `json:"folder"`
	Status    string          `json:"status"`
	Current   int             `json:"current"`
	Total     int             `json:"total"`
	Processed int             `json:"processed,omitempty"`
	Skipped   int             `json:"skipped,omitempty"`
	Failed    []FailedFileDTO `json:"failed,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ToggleResponse reports the new state of a flag.
type ToggleResponse struct {
	State bool `json:"state"`
}

// FoldersResponse is the response for GET /api/folders.
type FoldersResponse struct {
	Folders []string `json:"folders"`
	Count   int      `json:"count"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
