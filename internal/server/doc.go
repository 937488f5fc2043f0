// ABOUTME: Package documentation for the HTTP server package
// ABOUTME: Describes the API surface and its error conventions

// Package server exposes the module registry and admin account API over HTTP.
//
// Routes are registered on a standard net/http ServeMux using method
// patterns. The surface splits into three groups:
//
//   - Module registry reads: GET /api/v1/modules and
//     GET /api/v1/modules/{name}. These never require authentication and
//     serve degraded entries (failed or unconfigured pipelines) as-is.
//   - Admin endpoints under /api/v1/admin: username/password registration,
//     an OAuth2-style form login issuing a bearer token, and a bearer-gated
//     /me.
//   - Frontend endpoints under /api/v1/auth: JSON email/password
//     registration and login, token introspection, and profile updates.
//
// Errors are JSON objects with a single "error" key. Operations that need
// the storage backend return 503 until a module has activated one; failed
// credential checks return 401 with a WWW-Authenticate: Bearer challenge.
package server
