// ABOUTME: HTTP handlers for the frontend-facing account API under /api/v1/auth
// ABOUTME: Email-based registration and login, profile updates, and token introspection

package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/mindevis/QMServer/internal/auth"
	"github.com/mindevis/QMServer/internal/modules"
)

// RegisterRequest is the JSON request body for POST /api/v1/auth/register.
// Username is optional; when absent the local part of the email is used.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username,omitempty"`
}

// LoginRequest is the JSON request body for POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdateRequest is the JSON request body for PATCH /api/v1/auth/profile.
type ProfileUpdateRequest struct {
	Username string `json:"username"`
}

// ProfileUpdateResponse is the JSON response for PATCH /api/v1/auth/profile.
// A fresh token is issued because the username travels in the token's subject.
type ProfileUpdateResponse struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// emailLocalPart returns the part of an email address before the "@".
func emailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}

// handleAuthRegister handles POST /api/v1/auth/register requests.
func (s *Server) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		s.sendJSONError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	username := req.Username
	if username == "" {
		username = emailLocalPart(req.Email)
	}

	backend, ok := s.requireBackend(w)
	if !ok {
		return
	}

	if err := backend.CreateAdmin(r.Context(), username, req.Password, req.Email); err != nil {
		if errors.Is(err, modules.ErrAdminExists) {
			s.sendJSONError(w, http.StatusBadRequest, "User with this email already exists")
			return
		}
		s.logger.Error("failed to register user", "username", username, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "Failed to register user")
		return
	}

	s.logger.Info("user registered", "username", username)
	s.sendJSON(w, http.StatusCreated, AdminResponse{Username: username, Email: req.Email})
}

// handleAuthLogin handles POST /api/v1/auth/login requests.
// Lookup is by email first, falling back to the email local part as a
// username for accounts created before emails were recorded.
func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		s.sendJSONError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	backend, ok := s.requireBackend(w)
	if !ok {
		return
	}

	admin, err := backend.GetAdminByEmail(r.Context(), req.Email)
	if errors.Is(err, modules.ErrAdminNotFound) {
		admin, err = backend.GetAdminByUsername(r.Context(), emailLocalPart(req.Email))
	}
	if err != nil || !backend.VerifyPassword(admin.PasswordHash, req.Password) {
		s.sendAuthError(w, "Incorrect email or password")
		return
	}

	email := admin.Email
	if email == "" {
		email = req.Email
	}
	token, err := s.verifier.Generate(admin.Username, email, auth.AccessTokenTTL)
	if err != nil {
		s.logger.Error("failed to generate access token", "username", admin.Username, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	s.sendJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// identityFromRequest resolves the calling admin from a bearer token in the
// Authorization header or, for GET /auth/me, a token query parameter.
func (s *Server) identityFromRequest(w http.ResponseWriter, r *http.Request) (*modules.Admin, bool) {
	token := ""
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		token = strings.TrimPrefix(h, "Bearer ")
	}
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		s.sendAuthError(w, "Could not validate credentials")
		return nil, false
	}

	username, err := s.verifier.Verify(token)
	if err != nil {
		s.sendAuthError(w, "Could not validate credentials")
		return nil, false
	}

	backend, ok := s.requireBackend(w)
	if !ok {
		return nil, false
	}

	admin, err := backend.GetAdminByUsername(r.Context(), username)
	if err != nil {
		s.sendAuthError(w, "Could not validate credentials")
		return nil, false
	}
	return admin, true
}

// handleAuthMe handles GET /api/v1/auth/me requests.
func (s *Server) handleAuthMe(w http.ResponseWriter, r *http.Request) {
	admin, ok := s.identityFromRequest(w, r)
	if !ok {
		return
	}
	s.sendJSON(w, http.StatusOK, AdminResponse{Username: admin.Username, Email: admin.Email})
}

// handleProfileUpdate handles PATCH /api/v1/auth/profile requests.
// Renaming reissues the access token since the subject claim changes.
func (s *Server) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	admin, ok := s.identityFromRequest(w, r)
	if !ok {
		return
	}

	var req ProfileUpdateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" {
		s.sendJSONError(w, http.StatusBadRequest, "username is required")
		return
	}

	if req.Username != admin.Username {
		backend, ok := s.requireBackend(w)
		if !ok {
			return
		}
		if err := backend.UpdateAdminUsername(r.Context(), admin.Username, req.Username); err != nil {
			if errors.Is(err, modules.ErrAdminExists) {
				s.sendJSONError(w, http.StatusBadRequest, "Username already taken")
				return
			}
			s.logger.Error("failed to update username", "username", admin.Username, "error", err)
			s.sendJSONError(w, http.StatusInternalServerError, "Failed to update username")
			return
		}
		s.logger.Info("username updated", "old", admin.Username, "new", req.Username)
	}

	token, err := s.verifier.Generate(req.Username, admin.Email, auth.AccessTokenTTL)
	if err != nil {
		s.logger.Error("failed to generate access token", "username", req.Username, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	s.sendJSON(w, http.StatusOK, ProfileUpdateResponse{
		Username:    req.Username,
		Email:       admin.Email,
		AccessToken: token,
		TokenType:   "bearer",
	})
}
