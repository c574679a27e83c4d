package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/himanishpuri/RehearsalDNA/pkg/rehearsaldna"
)

// setupRoutes registers all HTTP routes and middleware
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Root endpoint
	mux.HandleFunc("/", s.handleRoot)

	// Health endpoint
	mux.HandleFunc("/health", s.handleHealth)

	// Folder endpoints
	mux.HandleFunc("/api/folders", s.handleFolders)
	mux.HandleFunc("/api/folder", s.handleFolder)
	mux.HandleFunc("/api/folder/exclude", postOnly(s, s.handleExclude))
	mux.HandleFunc("/api/folder/reference", postOnly(s, s.handleReference))
	mux.HandleFunc("/api/folder/ignore", postOnly(s, s.handleIgnore))

	// Annotation endpoints
	mux.HandleFunc("/api/annotations/name", postOnly(s, s.handleName))
	mux.HandleFunc("/api/annotations/refsong", postOnly(s, s.handleReferenceSong))

	// Match endpoints
	mux.HandleFunc("/api/match", s.handleMatch)
	mux.HandleFunc("/api/match/folder", s.handleMatchFolder)
	mux.HandleFunc("/api/match/vector", s.handleMatchVector)

	// Generation task
	mux.HandleFunc("/api/generate", s.handleGenerate)

	// Wrap with CORS middleware
	return corsMiddleware(s.config.AllowedOrigins)(loggingMiddleware(s.log)(mux))
}

// postOnly rejects every method but POST.
func postOnly(s *Server, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Check if origin is allowed
			allowed := false
			if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
				// Allow all origins
				w.Header().Set("Access-Control-Allow-Origin", "*")
				allowed = true
			} else {
				// Check if origin is in allowed list
				for _, allowedOrigin := range allowedOrigins {
					if allowedOrigin == origin {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
				w.Header().Set("Access-Control-Max-Age", "3600")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			// Handle preflight requests
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs all HTTP requests at debug level
func loggingMiddleware(log rehearsaldna.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Create a response writer wrapper to capture status code
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(wrapped, r)

			log.Debugf("%s %s from %s -> %d (%s)", r.Method, r.URL.Path, getClientIP(r), wrapped.statusCode, time.Since(start))
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		// X-Forwarded-For can contain multiple IPs, take the first one
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	// Check X-Real-IP header
	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	ip := r.RemoteAddr
	// Remove port if present
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// Start starts the HTTP server
func (s *Server) Start() error {
	handler := s.setupRoutes()

	addr := fmt.Sprintf(":%d", s.config.Port)
	cfg := s.engine.Config()
	s.log.Infof("RehearsalDNA server starting on %s", addr)
	s.log.Infof("   Annotations: %s", s.config.DBPath)
	s.log.Infof("   Algorithm: %s, threshold %.2f", cfg.Algorithm, cfg.Threshold)
	s.log.Infof("   Library roots: %v", cfg.LibraryRoots)
	if cfg.GlobalReferenceFolder != "" {
		s.log.Infof("   Global reference: %s", cfg.GlobalReferenceFolder)
	}
	s.log.Infof("   CORS Origins: %v", s.config.AllowedOrigins)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
