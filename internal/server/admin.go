// ABOUTME: HTTP handlers for admin account registration and login
// ABOUTME: Provides POST /api/v1/admin/register, /login and GET /admin/me

package server

import (
	"errors"
	"net/http"

	"github.com/mindevis/QMServer/internal/auth"
	"github.com/mindevis/QMServer/internal/modules"
)

// RegisterAdminRequest is the JSON request body for POST /api/v1/admin/register.
type RegisterAdminRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

// AdminResponse is the JSON response for admin account endpoints.
type AdminResponse struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// TokenResponse is the JSON response for login endpoints.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// handleAdminRegister handles POST /api/v1/admin/register requests.
func (s *Server) handleAdminRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterAdminRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		s.sendJSONError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	backend, ok := s.requireBackend(w)
	if !ok {
		return
	}

	if err := backend.CreateAdmin(r.Context(), req.Username, req.Password, req.Email); err != nil {
		if errors.Is(err, modules.ErrAdminExists) {
			s.sendJSONError(w, http.StatusBadRequest, "Username already registered")
			return
		}
		s.logger.Error("failed to register admin", "username", req.Username, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "Failed to register admin")
		return
	}

	s.logger.Info("admin registered", "username", req.Username)
	s.sendJSON(w, http.StatusCreated, AdminResponse{Username: req.Username, Email: req.Email})
}

// handleAdminLogin handles POST /api/v1/admin/login requests.
// Credentials arrive as an OAuth2-style password form (username/password fields).
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		s.sendJSONError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	backend, ok := s.requireBackend(w)
	if !ok {
		return
	}

	admin, err := backend.GetAdminByUsername(r.Context(), username)
	if err != nil || !backend.VerifyPassword(admin.PasswordHash, password) {
		s.sendAuthError(w, "Incorrect username or password")
		return
	}

	token, err := s.verifier.Generate(admin.Username, admin.Email, auth.AccessTokenTTL)
	if err != nil {
		s.logger.Error("failed to generate access token", "username", username, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	s.sendJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// handleAdminMe handles GET /api/v1/admin/me requests.
// The auth middleware has already validated the token and attached the identity.
func (s *Server) handleAdminMe(w http.ResponseWriter, r *http.Request) {
	id := auth.MustFromContext(r.Context())
	s.sendJSON(w, http.StatusOK, AdminResponse{Username: id.Username, Email: id.Email})
}
