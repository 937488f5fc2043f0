// ABOUTME: HTTP server wiring for the public API surface
// ABOUTME: Registers routes on a ServeMux and hosts shared response helpers

package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mindevis/QMServer/internal/auth"
	"github.com/mindevis/QMServer/internal/modules"
)

// Server exposes the module registry and admin account API over HTTP.
type Server struct {
	manager  *modules.Manager
	verifier *auth.JWTVerifier
	logger   *slog.Logger
}

// New creates a new Server backed by the given module manager.
func New(manager *modules.Manager, verifier *auth.JWTVerifier) *Server {
	return &Server{
		manager:  manager,
		verifier: verifier,
		logger:   slog.Default().With("component", "server"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /api/v1/{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleReady)

	// Module registry (read-only, no auth)
	mux.HandleFunc("GET /api/v1/modules", s.handleListModules)
	mux.HandleFunc("GET /api/v1/modules/{name}", s.handleModuleDetail)

	// Admin account endpoints (username/password, OAuth2-style form login)
	mux.HandleFunc("POST /api/v1/admin/register", s.handleAdminRegister)
	mux.HandleFunc("POST /api/v1/admin/login", s.handleAdminLogin)

	authMW := auth.HTTPAuthMiddleware(func() auth.AdminLookup {
		if b := s.manager.Backend(); b != nil {
			return b
		}
		return nil
	}, s.verifier)
	mux.Handle("GET /api/v1/admin/me", authMW(http.HandlerFunc(s.handleAdminMe)))

	// Frontend-facing endpoints (email-based, JSON login)
	mux.HandleFunc("POST /api/v1/auth/register", s.handleAuthRegister)
	mux.HandleFunc("POST /api/v1/auth/login", s.handleAuthLogin)
	mux.HandleFunc("GET /api/v1/auth/me", s.handleAuthMe)
	mux.HandleFunc("PATCH /api/v1/auth/profile", s.handleProfileUpdate)
}

// handleRoot returns the service banner.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{
		"message": "QMServer is running and modules initialization attempted.",
	})
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once a storage backend has activated.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.manager.Backend() == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no backend activated"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// requireBackend resolves the active storage backend, writing a 503 response
// and returning false when no module has activated one yet.
func (s *Server) requireBackend(w http.ResponseWriter) (modules.Backend, bool) {
	backend := s.manager.Backend()
	if backend == nil {
		s.sendJSONError(w, http.StatusServiceUnavailable, "database backend not available")
		return nil, false
	}
	return backend, true
}

// sendJSON writes a JSON response with the given status.
func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// sendAuthError writes a 401 with the WWW-Authenticate challenge header.
func (s *Server) sendAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	s.sendJSONError(w, http.StatusUnauthorized, message)
}

// decodeJSON decodes a request body into v, writing a 400 on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}
