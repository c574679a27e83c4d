package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/himanishpuri/RehearsalDNA/pkg/logger"
	"github.com/himanishpuri/RehearsalDNA/pkg/rehearsaldna"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	engine *rehearsaldna.Engine
	config *ServerConfig
	log    rehearsaldna.Logger

	mu   sync.Mutex
	last *rehearsaldna.Task
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	AllowedOrigins []string
}

// NewServer creates a new server instance
func NewServer(engine *rehearsaldna.Engine, config *ServerConfig) *Server {
	return &Server{
		engine: engine,
		config: config,
		log:    logger.GetLogger().With("http"),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// decode reads a JSON body into v and answers 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.log.Warnf("Failed to decode request: %v", err)
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "RehearsalDNA API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":        "GET /health",
			"folders":       "GET /api/folders",
			"folder":        "GET /api/folder?path=",
			"exclude":       "POST /api/folder/exclude",
			"reference":     "POST /api/folder/reference",
			"ignore":        "POST /api/folder/ignore",
			"name":          "POST /api/annotations/name",
			"referenceSong": "POST /api/annotations/refsong",
			"match":         "POST /api/match",
			"matchFolder":   "POST /api/match/folder",
			"matchVector":   "POST /api/match/vector",
			"generate":      "POST /api/generate",
			"taskStatus":    "GET /api/generate",
			"taskCancel":    "DELETE /api/generate",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleFolders handles GET /api/folders
func (s *Server) handleFolders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	folders, err := s.engine.DiscoverFolders()
	if err != nil {
		s.log.Errorf("Failed to discover folders: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to discover folders")
		return
	}
	s.respondJSON(w, http.StatusOK, FoldersResponse{Folders: folders, Count: len(folders)})
}

// handleFolder handles GET /api/folder?path=
func (s *Server) handleFolder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	s.respondJSON(w, http.StatusOK, s.engine.Folder(path))
}

func (s *Server) respondToggle(w http.ResponseWriter, state bool, err error) {
	if err != nil {
		s.log.Errorf("Failed to update folder store: %v", err)
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save: %v", err))
		return
	}
	s.respondJSON(w, http.StatusOK, ToggleResponse{State: state})
}

// handleExclude handles POST /api/folder/exclude
func (s *Server) handleExclude(w http.ResponseWriter, r *http.Request) {
	var req FolderFileRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := s.engine.ToggleExclusion(req.Folder, req.Filename)
	s.respondToggle(w, state, err)
}

// handleReference handles POST /api/folder/reference
func (s *Server) handleReference(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := s.engine.ToggleReferenceFolder(req.Folder)
	s.respondToggle(w, state, err)
}

// handleIgnore handles POST /api/folder/ignore
func (s *Server) handleIgnore(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := s.engine.ToggleIgnoreFolder(req.Folder)
	s.respondToggle(w, state, err)
}

// handleName handles POST /api/annotations/name
func (s *Server) handleName(w http.ResponseWriter, r *http.Request) {
	var req NameRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.SetProvidedName(req.Folder, req.Filename, req.Name); err != nil {
		s.log.Errorf("Failed to set name: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save name")
		return
	}
	s.respondJSON(w, http.StatusOK, req)
}

// handleReferenceSong handles POST /api/annotations/refsong
func (s *Server) handleReferenceSong(w http.ResponseWriter, r *http.Request) {
	var req ReferenceSongRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.SetReferenceSong(req.Folder, req.Filename, req.On); err != nil {
		s.log.Errorf("Failed to set reference song: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save reference song")
		return
	}
	s.respondToggle(w, req.On, nil)
}

func (s *Server) matchQuery(w http.ResponseWriter, r *http.Request) (MatchRequest, rehearsaldna.MatchQuery, bool) {
	var req MatchRequest
	if !s.decode(w, r, &req) {
		return req, rehearsaldna.MatchQuery{}, false
	}
	q, err := req.Query()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return req, q, false
	}
	return req, q, true
}

func (s *Server) respondMatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rehearsaldna.ErrNotFingerprinted):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, rehearsaldna.ErrUnknownAlgorithm), errors.Is(err, rehearsaldna.ErrInvalidThreshold):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Errorf("Match failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to match: %v", err))
	}
}

// handleMatch handles POST /api/match
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	req, q, ok := s.matchQuery(w, r)
	if !ok {
		return
	}
	if req.Folder == "" || req.Filename == "" {
		s.respondError(w, http.StatusBadRequest, "folder and filename are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()
	m, err := s.engine.FindMatch(ctx, q)
	if err != nil {
		s.respondMatchError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, MatchResponse{Match: m})
}

// handleMatchVector handles POST /api/match/vector
func (s *Server) handleMatchVector(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	req, q, ok := s.matchQuery(w, r)
	if !ok {
		return
	}
	if len(req.Vector) == 0 || len(req.Vector) > MaxVectorLength {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("vector must have 1 to %d values", MaxVectorLength))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()
	m, err := s.engine.FindMatchVector(ctx, req.Vector, q)
	if err != nil {
		s.respondMatchError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, MatchResponse{Match: m})
}

// handleMatchFolder handles POST /api/match/folder
func (s *Server) handleMatchFolder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	req, q, ok := s.matchQuery(w, r)
	if !ok {
		return
	}
	if req.Folder == "" {
		s.respondError(w, http.StatusBadRequest, "folder is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()
	matches, err := s.engine.MatchFolder(ctx, q)
	if err != nil {
		s.respondMatchError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, MatchFolderResponse{Matches: matches, Count: len(matches)})
}

func taskDTO(t *rehearsaldna.Task) TaskDTO {
	current, total := t.Progress()
	dto := TaskDTO{
		ID:      t.ID,
		Folder:  t.Folder,
		Status:  t.Status().String(),
		Current: current,
		Total:   total,
	}
	if !t.Status().Done() {
		return dto
	}
	sum, err := t.Wait(context.Background())
	if err != nil {
		return dto
	}
	dto.Processed, dto.Skipped = sum.Processed, sum.Skipped
	for _, f := range sum.Failed {
		dto.Failed = append(dto.Failed, FailedFileDTO{Filename: f.Filename, Error: f.Err.Error()})
	}
	if sum.Err != nil {
		dto.Error = sum.Err.Error()
	}
	return dto
}

// handleGenerate routes requests to /api/generate
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleStartGenerate(w, r)
	case http.MethodGet:
		s.mu.Lock()
		last := s.last
		s.mu.Unlock()
		if last == nil {
			s.respondJSON(w, http.StatusOK, TaskDTO{Status: "idle"})
			return
		}
		s.respondJSON(w, http.StatusOK, taskDTO(last))
	case http.MethodDelete:
		task := s.engine.CurrentTask()
		if task == nil {
			s.respondError(w, http.StatusNotFound, "No generation is running")
			return
		}
		task.Cancel()
		s.log.Infof("Cancellation requested for task %s", task.ID)
		s.respondJSON(w, http.StatusAccepted, taskDTO(task))
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleStartGenerate(w http.ResponseWriter, r *http.Request) {
	var body GenerateRequest
	if !s.decode(w, r, &body) {
		return
	}
	req, err := body.EngineRequest()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// the task outlives the request
	task, err := s.engine.Generate(context.Background(), req)
	switch {
	case errors.Is(err, rehearsaldna.ErrGenerationInProgress):
		s.respondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.log.Errorf("Failed to start generation: %v", err)
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	s.last = task
	s.mu.Unlock()
	s.respondJSON(w, http.StatusAccepted, taskDTO(task))
}
