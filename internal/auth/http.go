// ABOUTME: HTTP middleware for JWT authentication on API endpoints
// ABOUTME: Extracts JWT from Authorization header and adds the admin identity to context

package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mindevis/QMServer/internal/modules"
)

// AdminLookup resolves usernames to stored admin accounts. The active module
// backend satisfies this; it may be absent when no backend has activated yet.
type AdminLookup interface {
	GetAdminByUsername(ctx context.Context, username string) (*modules.Admin, error)
}

// writeJSONError writes a JSON error body with the given status. 401s carry a
// WWW-Authenticate challenge so bearer clients know to re-authenticate.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// HTTPAuthMiddleware creates an HTTP middleware that extracts and validates JWT
// tokens. It looks up the admin behind the token's "sub" claim and attaches an
// Identity to the request context via WithIdentity/FromContext.
//
// The lookup is resolved per request so the middleware tracks backend swaps
// when a module re-activates. A nil lookup means no backend is available.
func HTTPAuthMiddleware(admins func() AdminLookup, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				writeJSONError(w, http.StatusUnauthorized, errMsg)
				return
			}

			username, err := verifier.Verify(token)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			lookup := admins()
			if lookup == nil {
				writeJSONError(w, http.StatusServiceUnavailable, "database backend not available")
				return
			}

			admin, err := lookup.GetAdminByUsername(r.Context(), username)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "admin not found")
				return
			}

			id := &Identity{Username: admin.Username, Email: admin.Email}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
