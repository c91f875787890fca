package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/metamate-app/metamate/internal/chat"
	"github.com/metamate-app/metamate/internal/config"
	"github.com/metamate-app/metamate/internal/db"
)

// Server exposes the chat endpoint plus the owner-facing admin API.
type Server struct {
	database *db.DB
	pipeline *chat.Pipeline
	config   *config.API
	server   *http.Server
}

// NewServer creates the HTTP server
func NewServer(database *db.DB, pipeline *chat.Pipeline, cfg *config.API) *Server {
	return &Server{
		database: database,
		pipeline: pipeline,
		config:   cfg,
	}
}

// routes builds the full handler tree
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Visitor-facing routes, no auth
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/contribute", s.handleContribute)
	mux.HandleFunc("/health", s.handleHealth)

	// Owner/admin routes
	mux.HandleFunc("/api/owners", s.authMiddleware(s.handleOwners))
	mux.HandleFunc("/api/owners/prompt", s.authMiddleware(s.handleOwnerPrompt))
	mux.HandleFunc("/api/tasks", s.authMiddleware(s.handleTasks))
	mux.HandleFunc("/api/tasks/", s.authMiddleware(s.handleTaskAction))
	mux.HandleFunc("/api/contributions", s.authMiddleware(s.handleContributions))
	mux.HandleFunc("/api/contributions/", s.authMiddleware(s.handleContributionReview))
	mux.HandleFunc("/api/groups", s.authMiddleware(s.handleGroups))
	mux.HandleFunc("/api/analytics", s.authMiddleware(s.handleAnalytics))
	mux.HandleFunc("/api/meetings", s.authMiddleware(s.handleMeetings))

	return s.corsMiddleware(mux)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // LLM calls can be slow
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("API server starting on port %d", s.config.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Auth middleware checks for Bearer token
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
			return
		}

		if parts[1] != s.config.AuthKey {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}

// CORS middleware for the browser frontend
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Health check endpoint (no auth required)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Helper to write JSON responses
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Helper to write error responses
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
