// ABOUTME: Package documentation for the auth package
// ABOUTME: Describes token issuance, verification, and HTTP middleware

// Package auth provides admin session authentication for the server.
//
// Sessions are stateless JWTs signed with HS256. JWTVerifier both issues
// tokens (Generate) and validates them (Verify); the username travels in the
// "sub" claim and the token expires after AccessTokenTTL.
//
// HTTPAuthMiddleware wires verification into net/http handler chains: it
// pulls the bearer token from the Authorization header, verifies it, confirms
// the admin still exists in the active module backend, and attaches an
// Identity to the request context. Handlers downstream read it back with
// FromContext or MustFromContext.
package auth
